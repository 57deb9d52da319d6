// Package brainstorm defines the domain model of a brainstorm session (the
// staged multi-agent workflow tracked by the client), the pure state reducer
// that applies normalized server events to it, and the progress derivation
// used for display.
package brainstorm

import "time"

// SessionStatus represents the lifecycle status of a session. Transitions are
// monotonic except PAUSED and IN_PROGRESS, which may alternate. COMPLETED and
// CANCELLED are terminal.
type SessionStatus string

const (
	SessionStatusCreated    SessionStatus = "CREATED"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusPaused     SessionStatus = "PAUSED"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusCancelled  SessionStatus = "CANCELLED"
)

// IsTerminal reports whether no further events may mutate the session.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// PhaseType identifies one of the three fixed brainstorm stages. Sessions
// progress through them in declaration order.
type PhaseType string

const (
	PhaseIdeaGeneration      PhaseType = "IDEA_GENERATION"
	PhaseFeasibilityAnalysis PhaseType = "FEASIBILITY_ANALYSIS"
	PhaseCriticismDiscussion PhaseType = "CRITICISM_DISCUSSION"
)

// PhaseOrder is the declared progression of phase types.
var PhaseOrder = []PhaseType{
	PhaseIdeaGeneration,
	PhaseFeasibilityAnalysis,
	PhaseCriticismDiscussion,
}

// PhaseIndex returns the position of t in the declared order, or -1.
func PhaseIndex(t PhaseType) int {
	for i, pt := range PhaseOrder {
		if pt == t {
			return i
		}
	}
	return -1
}

// NextPhase returns the phase type following t, and false when t is the last
// declared phase or unknown.
func NextPhase(t PhaseType) (PhaseType, bool) {
	idx := PhaseIndex(t)
	if idx < 0 || idx+1 >= len(PhaseOrder) {
		return "", false
	}
	return PhaseOrder[idx+1], true
}

// DisplayName returns the human-readable stage name.
func (t PhaseType) DisplayName() string {
	switch t {
	case PhaseIdeaGeneration:
		return "Idea Generation"
	case PhaseFeasibilityAnalysis:
		return "Feasibility Analysis"
	case PhaseCriticismDiscussion:
		return "Criticism Discussion"
	default:
		return string(t)
	}
}

// PhaseStatus represents the lifecycle status of a single phase.
type PhaseStatus string

const (
	PhaseStatusNotStarted      PhaseStatus = "NOT_STARTED"
	PhaseStatusInProgress      PhaseStatus = "IN_PROGRESS"
	PhaseStatusWaitingApproval PhaseStatus = "WAITING_APPROVAL"
	PhaseStatusApproved        PhaseStatus = "APPROVED"
	PhaseStatusRejected        PhaseStatus = "REJECTED"
	PhaseStatusCompleted       PhaseStatus = "COMPLETED"
)

// ResponseStatus represents the status of one agent's response in a phase.
// COMPLETED and FAILED are terminal; a terminal response is immutable.
type ResponseStatus string

const (
	ResponseStatusPending   ResponseStatus = "PENDING"
	ResponseStatusCompleted ResponseStatus = "COMPLETED"
	ResponseStatusFailed    ResponseStatus = "FAILED"
)

// IsTerminal reports whether the response counts toward phase completion.
func (s ResponseStatus) IsTerminal() bool {
	return s == ResponseStatusCompleted || s == ResponseStatusFailed
}

// AgentRuntimeStatus is the session-scoped, ephemeral status of an agent.
// Reset to idle at session start; not persisted outside the session.
type AgentRuntimeStatus string

const (
	AgentStatusIdle      AgentRuntimeStatus = "idle"
	AgentStatusThinking  AgentRuntimeStatus = "thinking"
	AgentStatusCompleted AgentRuntimeStatus = "completed"
	AgentStatusError     AgentRuntimeStatus = "error"
)

// SessionAgent is the session-local view of a roster agent: a weak reference
// to the agent profile (id plus a name/role/model snapshot) and its runtime
// status within this session.
type SessionAgent struct {
	AgentID  int                `json:"agentId"`
	Name     string             `json:"name"`
	Role     string             `json:"role"`
	Model    string             `json:"model"`
	Status   AgentRuntimeStatus `json:"status"`
	Progress int                `json:"progress,omitempty"`
}

// AgentResponse is one agent's output for one phase. Once its status is
// terminal the reducer treats it as immutable.
type AgentResponse struct {
	AgentID        int            `json:"agentId"`
	Status         ResponseStatus `json:"status"`
	Content        string         `json:"content,omitempty"`
	ProcessingTime time.Duration  `json:"processingTime,omitempty"`
	Error          string         `json:"error,omitempty"`
	CompletedAt    time.Time      `json:"completedAt,omitzero"`
}

// Phase is one ordered stage of a session. The session owns its phases
// exclusively; responses belong to exactly one phase.
type Phase struct {
	ID        int             `json:"id"`
	Type      PhaseType       `json:"phaseType"`
	Status    PhaseStatus     `json:"status"`
	Summary   string          `json:"summary,omitempty"`
	Progress  int             `json:"progress"`
	Responses []AgentResponse `json:"responses,omitempty"`
}

// Response returns the response for agentID in p, or nil.
func (p *Phase) Response(agentID int) *AgentResponse {
	for i := range p.Responses {
		if p.Responses[i].AgentID == agentID {
			return &p.Responses[i]
		}
	}
	return nil
}

// Session is one end-to-end brainstorm workflow instance.
type Session struct {
	ID           int            `json:"id"`
	Topic        string         `json:"topic"`
	Title        string         `json:"title,omitempty"`
	Status       SessionStatus  `json:"status"`
	CurrentPhase PhaseType      `json:"currentPhase,omitempty"`
	Phases       []Phase        `json:"phases"`
	Agents       []SessionAgent `json:"agents"`
	LastError    string         `json:"lastError,omitempty"`
	CreatedAt    time.Time      `json:"createdAt,omitzero"`
	UpdatedAt    time.Time      `json:"updatedAt,omitzero"`
}

// Phase returns the phase with the given type, or nil.
func (s *Session) Phase(t PhaseType) *Phase {
	for i := range s.Phases {
		if s.Phases[i].Type == t {
			return &s.Phases[i]
		}
	}
	return nil
}

// Agent returns the session agent with the given id, or nil.
func (s *Session) Agent(agentID int) *SessionAgent {
	for i := range s.Agents {
		if s.Agents[i].AgentID == agentID {
			return &s.Agents[i]
		}
	}
	return nil
}

// HasAgent reports whether agentID is part of the session roster.
func (s *Session) HasAgent(agentID int) bool {
	return s.Agent(agentID) != nil
}

// Clone returns a deep copy of the session. The reducer works on copies so
// that callers holding a previous snapshot never observe mutation.
func (s Session) Clone() Session {
	out := s
	out.Phases = make([]Phase, len(s.Phases))
	for i, p := range s.Phases {
		cp := p
		cp.Responses = make([]AgentResponse, len(p.Responses))
		copy(cp.Responses, p.Responses)
		out.Phases[i] = cp
	}
	out.Agents = make([]SessionAgent, len(s.Agents))
	copy(out.Agents, s.Agents)
	return out
}

// allResponsesTerminal reports whether every roster agent has a terminal
// response in p. The roster is the session's agent list as of now; an empty
// roster never satisfies the check.
func (s *Session) allResponsesTerminal(p *Phase) bool {
	if len(s.Agents) == 0 {
		return false
	}
	for _, agent := range s.Agents {
		resp := p.Response(agent.AgentID)
		if resp == nil || !resp.Status.IsTerminal() {
			return false
		}
	}
	return true
}
