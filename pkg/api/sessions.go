package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/stormloop-dev/stormloop/pkg/brainstorm"
	apperrors "github.com/stormloop-dev/stormloop/pkg/errors"
)

// CreateSessionRequest creates a session in CREATED status. The roster and
// topic are validated locally before the request goes out.
type CreateSessionRequest struct {
	Title    string `json:"title,omitempty"`
	Topic    string `json:"topic"`
	AgentIDs []int  `json:"agentIds"`
}

// StartSessionRequest kicks off the first phase over REST. The same command
// is available on the realtime channel; REST start is the fallback when no
// channel is up yet.
type StartSessionRequest struct {
	Topic    string `json:"topic"`
	AgentIDs []int  `json:"agentIds"`
}

// ListSessionsParams filters and pages the session list.
type ListSessionsParams struct {
	Page   int
	Limit  int
	Status brainstorm.SessionStatus
}

func (p ListSessionsParams) encode() string {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Status != "" {
		q.Set("status", string(p.Status))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListSessions returns one page of the user's sessions. Sessions on a list
// page carry no phases; fetch the session by id for the full state.
func (c *Client) ListSessions(ctx context.Context, params ListSessionsParams) (*Paginated[brainstorm.Session], error) {
	var page Paginated[brainstorm.Session]
	if err := c.do(ctx, "GET", "/sessions"+params.encode(), nil, &page, apperrors.ErrCodeSessionGet); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetSession fetches the full state of one session.
func (c *Client) GetSession(ctx context.Context, id int) (*brainstorm.Session, error) {
	var session brainstorm.Session
	if err := c.do(ctx, "GET", fmt.Sprintf("/sessions/%d", id), nil, &session, apperrors.ErrCodeSessionGet); err != nil {
		return nil, err
	}
	return &session, nil
}

// ActiveSession returns the user's currently running session, or a
// session-get error when none is active.
func (c *Client) ActiveSession(ctx context.Context) (*brainstorm.Session, error) {
	var session brainstorm.Session
	if err := c.do(ctx, "GET", "/sessions/active", nil, &session, apperrors.ErrCodeSessionGet); err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateSession creates a new session.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*brainstorm.Session, error) {
	if err := brainstorm.ValidateSessionInput(req.Topic, req.AgentIDs); err != nil {
		return nil, err
	}
	var session brainstorm.Session
	if err := c.do(ctx, "POST", "/sessions", req, &session, apperrors.ErrCodeSessionCreate); err != nil {
		return nil, err
	}
	return &session, nil
}

// DuplicateSession clones a session's topic and roster into a fresh CREATED
// session.
func (c *Client) DuplicateSession(ctx context.Context, id int) (*brainstorm.Session, error) {
	var session brainstorm.Session
	if err := c.do(ctx, "POST", fmt.Sprintf("/sessions/%d/duplicate", id), nil, &session, apperrors.ErrCodeSessionCreate); err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession removes a session and its phases.
func (c *Client) DeleteSession(ctx context.Context, id int) error {
	return c.do(ctx, "DELETE", fmt.Sprintf("/sessions/%d", id), nil, nil, apperrors.ErrCodeSessionDelete)
}

// StartSession starts the session over REST.
func (c *Client) StartSession(ctx context.Context, id int, req StartSessionRequest) error {
	if err := brainstorm.ValidateSessionInput(req.Topic, req.AgentIDs); err != nil {
		return err
	}
	return c.do(ctx, "POST", fmt.Sprintf("/sessions/%d/start", id), req, nil, apperrors.ErrCodeSessionCommand)
}

// PauseSession pauses a running session.
func (c *Client) PauseSession(ctx context.Context, id int) error {
	return c.do(ctx, "POST", fmt.Sprintf("/sessions/%d/pause", id), nil, nil, apperrors.ErrCodeSessionCommand)
}

// ResumeSession resumes a paused session.
func (c *Client) ResumeSession(ctx context.Context, id int) error {
	return c.do(ctx, "POST", fmt.Sprintf("/sessions/%d/resume", id), nil, nil, apperrors.ErrCodeSessionCommand)
}

// CancelSession cancels a session. Cancellation is terminal.
func (c *Client) CancelSession(ctx context.Context, id int) error {
	return c.do(ctx, "POST", fmt.Sprintf("/sessions/%d/cancel", id), nil, nil, apperrors.ErrCodeSessionCommand)
}

// GetPhases returns all phases of a session in execution order.
func (c *Client) GetPhases(ctx context.Context, id int) ([]brainstorm.Phase, error) {
	var phases []brainstorm.Phase
	if err := c.do(ctx, "GET", fmt.Sprintf("/sessions/%d/phases", id), nil, &phases, apperrors.ErrCodeSessionGet); err != nil {
		return nil, err
	}
	return phases, nil
}

// ApprovePhase approves a phase waiting at the approval gate.
func (c *Client) ApprovePhase(ctx context.Context, id int, phase brainstorm.PhaseType) error {
	return c.do(ctx, "POST", phasePath(id, phase, "approve"), nil, nil, apperrors.ErrCodeSessionCommand)
}

// RejectPhase rejects a phase with a reason; the server reverts it for rework.
func (c *Client) RejectPhase(ctx context.Context, id int, phase brainstorm.PhaseType, reason string) error {
	body := map[string]string{"reason": reason}
	return c.do(ctx, "POST", phasePath(id, phase, "reject"), body, nil, apperrors.ErrCodeSessionCommand)
}

// RetryPhase re-runs a failed or rejected phase.
func (c *Client) RetryPhase(ctx context.Context, id int, phase brainstorm.PhaseType) error {
	return c.do(ctx, "POST", phasePath(id, phase, "retry"), nil, nil, apperrors.ErrCodeSessionCommand)
}

// SubmitPhaseForApproval moves a phase to the approval gate.
func (c *Client) SubmitPhaseForApproval(ctx context.Context, id int, phase brainstorm.PhaseType) error {
	return c.do(ctx, "POST", phasePath(id, phase, "submit-for-approval"), nil, nil, apperrors.ErrCodeSessionCommand)
}

func phasePath(id int, phase brainstorm.PhaseType, action string) string {
	return fmt.Sprintf("/sessions/%d/phases/%s/%s", id, string(phase), action)
}
