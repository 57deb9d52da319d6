package brainstorm

import "time"

// Kind identifies the canonical event kind consumed by the reducer. Inbound
// kinds are produced by the event normalizer from server pushes; the proceed
// and restart kinds originate from user commands.
type Kind string

const (
	KindSessionCreated   Kind = "session.created"
	KindSessionStarted   Kind = "session.started"
	KindSessionPaused    Kind = "session.paused"
	KindSessionResumed   Kind = "session.resumed"
	KindSessionCompleted Kind = "session.completed"
	KindSessionError     Kind = "session.error"

	KindStageStarted   Kind = "stage.started"
	KindStageCompleted Kind = "stage.completed"
	KindStageProgress  Kind = "stage.progress"

	KindAgentStatusUpdate     Kind = "agent.status_update"
	KindAgentThinkingStart    Kind = "agent.thinking_start"
	KindAgentThinkingProgress Kind = "agent.thinking_progress"
	KindAgentResult           Kind = "agent.result"
	KindAgentError            Kind = "agent.error"

	// User-initiated transitions, applied through the same reducer so the
	// guard rules live in one place.
	KindProceed      Kind = "command.proceed"
	KindRestartStage Kind = "command.restart_stage"
)

// Event is the normalized form of an occurrence affecting a session,
// decoupled from the wire format. Fields beyond Kind and SessionID are
// populated per kind.
type Event struct {
	Kind      Kind
	SessionID int

	// Phase carries the phase type for stage events and phase commands.
	Phase PhaseType

	// AgentID is set for agent lifecycle events.
	AgentID int

	// AgentStatus is set for agent status updates.
	AgentStatus AgentRuntimeStatus

	// Progress is a 0-100 percentage for progress events.
	Progress int

	// Content and ProcessingTime are set for agent results.
	Content        string
	ProcessingTime time.Duration

	// Summary is set for stage completion.
	Summary string

	// Error is set for session and agent errors.
	Error string
}
