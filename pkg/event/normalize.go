// Package event maps raw server-pushed events to the canonical representation
// consumed by the session reducer. The mapping is pure: unknown event names
// and malformed payloads are reported as protocol violations and never reach
// the reducer.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stormloop-dev/stormloop/pkg/brainstorm"
	apperrors "github.com/stormloop-dev/stormloop/pkg/errors"
)

// Raw wire names as emitted by the brainstorm gateway.
const (
	RawSessionCreated   = "session:created"
	RawSessionStarted   = "session:started"
	RawSessionPaused    = "session:paused"
	RawSessionResumed   = "session:resumed"
	RawSessionCompleted = "session:completed"
	RawSessionError     = "session:error"

	RawStageStarted   = "stage:started"
	RawStageCompleted = "stage:completed"
	RawStageProgress  = "stage:progress"

	RawAgentStatusUpdate     = "agent:status-update"
	RawAgentThinkingStart    = "agent:thinking-start"
	RawAgentThinkingProgress = "agent:thinking-progress"
	RawAgentResult           = "agent:result"
	RawAgentError            = "agent:error"
)

var kindByRawName = map[string]brainstorm.Kind{
	RawSessionCreated:        brainstorm.KindSessionCreated,
	RawSessionStarted:        brainstorm.KindSessionStarted,
	RawSessionPaused:         brainstorm.KindSessionPaused,
	RawSessionResumed:        brainstorm.KindSessionResumed,
	RawSessionCompleted:      brainstorm.KindSessionCompleted,
	RawSessionError:          brainstorm.KindSessionError,
	RawStageStarted:          brainstorm.KindStageStarted,
	RawStageCompleted:        brainstorm.KindStageCompleted,
	RawStageProgress:         brainstorm.KindStageProgress,
	RawAgentStatusUpdate:     brainstorm.KindAgentStatusUpdate,
	RawAgentThinkingStart:    brainstorm.KindAgentThinkingStart,
	RawAgentThinkingProgress: brainstorm.KindAgentThinkingProgress,
	RawAgentResult:           brainstorm.KindAgentResult,
	RawAgentError:            brainstorm.KindAgentError,
}

// rawPayload is the superset of fields the gateway puts on event payloads.
type rawPayload struct {
	SessionID int    `json:"sessionId"`
	AgentID   int    `json:"agentId"`
	PhaseType string `json:"phaseType"`
	Status    string `json:"status"`
	Progress  *int   `json:"progress"`
	Summary   string `json:"summary"`
	Error     string `json:"error"`
	Result    *struct {
		Content          string `json:"content"`
		ProcessingTimeMs int64  `json:"processingTimeMs"`
	} `json:"result"`
}

var runtimeStatuses = map[string]brainstorm.AgentRuntimeStatus{
	string(brainstorm.AgentStatusIdle):      brainstorm.AgentStatusIdle,
	string(brainstorm.AgentStatusThinking):  brainstorm.AgentStatusThinking,
	string(brainstorm.AgentStatusCompleted): brainstorm.AgentStatusCompleted,
	string(brainstorm.AgentStatusError):     brainstorm.AgentStatusError,
}

// Normalize maps a raw event name and payload to a normalized event. A
// non-nil error means the event must be dropped: either the name is not
// recognized or the payload is missing required fields for its kind. Errors
// carry the protocol-violation code and are safe to log and discard.
func Normalize(rawName string, payload json.RawMessage) (*brainstorm.Event, error) {
	kind, ok := kindByRawName[rawName]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeProtocol,
			fmt.Sprintf("unknown event %q", rawName), nil)
	}

	var raw rawPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeProtocol,
			fmt.Sprintf("malformed payload for %q", rawName), err)
	}
	if raw.SessionID <= 0 {
		return nil, apperrors.New(apperrors.ErrCodeProtocol,
			fmt.Sprintf("event %q missing sessionId", rawName), nil)
	}

	ev := &brainstorm.Event{Kind: kind, SessionID: raw.SessionID}

	switch kind {
	case brainstorm.KindSessionCreated, brainstorm.KindSessionStarted,
		brainstorm.KindSessionPaused, brainstorm.KindSessionResumed,
		brainstorm.KindSessionCompleted:
		// Session id alone is sufficient.

	case brainstorm.KindSessionError:
		if raw.Error == "" {
			return nil, missingField(rawName, "error")
		}
		ev.Error = raw.Error

	case brainstorm.KindStageStarted:
		phase, err := parsePhase(rawName, raw.PhaseType)
		if err != nil {
			return nil, err
		}
		ev.Phase = phase

	case brainstorm.KindStageCompleted:
		phase, err := parsePhase(rawName, raw.PhaseType)
		if err != nil {
			return nil, err
		}
		if raw.Summary == "" {
			return nil, missingField(rawName, "summary")
		}
		ev.Phase = phase
		ev.Summary = raw.Summary

	case brainstorm.KindStageProgress:
		phase, err := parsePhase(rawName, raw.PhaseType)
		if err != nil {
			return nil, err
		}
		if raw.Progress == nil {
			return nil, missingField(rawName, "progress")
		}
		ev.Phase = phase
		ev.Progress = clampProgress(*raw.Progress)

	case brainstorm.KindAgentStatusUpdate:
		if raw.AgentID <= 0 {
			return nil, missingField(rawName, "agentId")
		}
		status, ok := runtimeStatuses[raw.Status]
		if !ok {
			return nil, apperrors.New(apperrors.ErrCodeProtocol,
				fmt.Sprintf("event %q has unknown agent status %q", rawName, raw.Status), nil)
		}
		ev.AgentID = raw.AgentID
		ev.AgentStatus = status

	case brainstorm.KindAgentThinkingStart:
		if raw.AgentID <= 0 {
			return nil, missingField(rawName, "agentId")
		}
		ev.AgentID = raw.AgentID

	case brainstorm.KindAgentThinkingProgress:
		if raw.AgentID <= 0 {
			return nil, missingField(rawName, "agentId")
		}
		if raw.Progress == nil {
			return nil, missingField(rawName, "progress")
		}
		ev.AgentID = raw.AgentID
		ev.Progress = clampProgress(*raw.Progress)

	case brainstorm.KindAgentResult:
		if raw.AgentID <= 0 {
			return nil, missingField(rawName, "agentId")
		}
		if raw.Result == nil {
			return nil, missingField(rawName, "result")
		}
		ev.AgentID = raw.AgentID
		ev.Content = raw.Result.Content
		ev.ProcessingTime = time.Duration(raw.Result.ProcessingTimeMs) * time.Millisecond

	case brainstorm.KindAgentError:
		if raw.AgentID <= 0 {
			return nil, missingField(rawName, "agentId")
		}
		if raw.Error == "" {
			return nil, missingField(rawName, "error")
		}
		ev.AgentID = raw.AgentID
		ev.Error = raw.Error
	}

	return ev, nil
}

func parsePhase(rawName, phaseType string) (brainstorm.PhaseType, error) {
	if phaseType == "" {
		return "", missingField(rawName, "phaseType")
	}
	pt := brainstorm.PhaseType(phaseType)
	if brainstorm.PhaseIndex(pt) < 0 {
		return "", apperrors.New(apperrors.ErrCodeProtocol,
			fmt.Sprintf("event %q has unknown phase type %q", rawName, phaseType), nil)
	}
	return pt, nil
}

func missingField(rawName, field string) error {
	return apperrors.New(apperrors.ErrCodeProtocol,
		fmt.Sprintf("event %q missing %s", rawName, field), nil)
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
