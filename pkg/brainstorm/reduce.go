package brainstorm

// OutcomeKind classifies what the reducer did with an event.
type OutcomeKind string

const (
	// OutcomeApplied means the event produced a state change.
	OutcomeApplied OutcomeKind = "applied"
	// OutcomeNoop means the event matched no transition in the current
	// state and was ignored. Replays of already-applied terminal events
	// land here.
	OutcomeNoop OutcomeKind = "noop"
	// OutcomeConflict means the event referenced a phase or agent the
	// session does not know about, or violated a transition guard. The
	// event is dropped; the caller records it for diagnostics.
	OutcomeConflict OutcomeKind = "conflict"
)

// Outcome describes the reducer's disposition of one event.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

func applied() Outcome               { return Outcome{Kind: OutcomeApplied} }
func noop(reason string) Outcome     { return Outcome{Kind: OutcomeNoop, Reason: reason} }
func conflict(reason string) Outcome { return Outcome{Kind: OutcomeConflict, Reason: reason} }

// Reduce applies one normalized event to a session and returns the next
// session state together with the disposition. It is pure and deterministic:
// the input session is never mutated, no transition ever returns an error,
// and bad input degrades to a dropped event. Events for a session in a
// terminal status are ignored.
func Reduce(s Session, ev Event) (Session, Outcome) {
	if ev.SessionID != 0 && s.ID != 0 && ev.SessionID != s.ID {
		return s, conflict("event for different session")
	}
	if s.Status.IsTerminal() {
		return s, noop("session is terminal")
	}

	switch ev.Kind {
	case KindSessionCreated:
		if s.Status != "" {
			return s, noop("session already initialized")
		}
		next := s.Clone()
		next.Status = SessionStatusCreated
		return next, applied()

	case KindSessionStarted:
		return reduceSessionStarted(s)

	case KindSessionPaused:
		if s.Status != SessionStatusInProgress {
			return s, noop("session not in progress")
		}
		next := s.Clone()
		next.Status = SessionStatusPaused
		return next, applied()

	case KindSessionResumed:
		if s.Status != SessionStatusPaused {
			return s, noop("session not paused")
		}
		next := s.Clone()
		next.Status = SessionStatusInProgress
		return next, applied()

	case KindSessionCompleted:
		next := s.Clone()
		next.Status = SessionStatusCompleted
		return next, applied()

	case KindSessionError:
		next := s.Clone()
		next.LastError = ev.Error
		return next, applied()

	case KindStageStarted:
		return reduceStageStarted(s, ev)

	case KindStageCompleted:
		return reduceStageCompleted(s, ev)

	case KindStageProgress:
		return reduceStageProgress(s, ev)

	case KindAgentStatusUpdate:
		return reduceAgentStatus(s, ev.AgentID, ev.AgentStatus, 0)

	case KindAgentThinkingStart:
		return reduceAgentStatus(s, ev.AgentID, AgentStatusThinking, 0)

	case KindAgentThinkingProgress:
		return reduceAgentStatus(s, ev.AgentID, AgentStatusThinking, ev.Progress)

	case KindAgentResult:
		return reduceAgentTerminal(s, ev, ResponseStatusCompleted)

	case KindAgentError:
		return reduceAgentTerminal(s, ev, ResponseStatusFailed)

	case KindProceed:
		return reduceProceed(s)

	case KindRestartStage:
		return reduceRestartStage(s)
	}

	return s, noop("no transition for event")
}

func reduceSessionStarted(s Session) (Session, Outcome) {
	if s.Status == SessionStatusInProgress {
		return s, noop("session already started")
	}
	next := s.Clone()
	next.Status = SessionStatusInProgress
	ensurePhases(&next)
	next.CurrentPhase = PhaseOrder[0]
	first := next.Phase(next.CurrentPhase)
	first.Status = PhaseStatusInProgress
	first.Progress = 0
	first.Responses = nil
	setAllAgents(&next, AgentStatusThinking)
	return next, applied()
}

func reduceStageStarted(s Session, ev Event) (Session, Outcome) {
	if s.Status != SessionStatusInProgress {
		return s, noop("session not in progress")
	}
	idx := PhaseIndex(ev.Phase)
	if idx < 0 {
		return s, conflict("unknown phase " + string(ev.Phase))
	}
	if s.CurrentPhase == ev.Phase {
		if p := s.Phase(ev.Phase); p != nil && p.Status == PhaseStatusInProgress {
			return s, noop("phase already started")
		}
	}
	// Stale replays must not regress the workflow: a start for a phase that
	// already completed, or for one earlier in the declared order than the
	// current phase, would leave two phases active and wipe settled
	// responses.
	if p := s.Phase(ev.Phase); p != nil && p.Status == PhaseStatusCompleted {
		return s, conflict("phase " + string(ev.Phase) + " already completed")
	}
	if s.CurrentPhase != "" && idx < PhaseIndex(s.CurrentPhase) {
		return s, conflict("phase " + string(ev.Phase) + " precedes current phase")
	}
	next := s.Clone()
	ensurePhases(&next)
	phase := next.Phase(ev.Phase)
	next.CurrentPhase = ev.Phase
	phase.Status = PhaseStatusInProgress
	phase.Progress = 0
	phase.Responses = nil
	setAllAgents(&next, AgentStatusThinking)
	return next, applied()
}

func reduceStageCompleted(s Session, ev Event) (Session, Outcome) {
	phase := s.Phase(ev.Phase)
	if phase == nil {
		return s, conflict("unknown phase " + string(ev.Phase))
	}
	// Completion is only valid once every roster agent has produced a
	// terminal response and the phase reached the approval gate.
	if phase.Status != PhaseStatusWaitingApproval && phase.Status != PhaseStatusApproved {
		return s, conflict("phase " + string(ev.Phase) + " not ready for completion")
	}
	next := s.Clone()
	p := next.Phase(ev.Phase)
	p.Summary = ev.Summary
	p.Status = PhaseStatusCompleted
	p.Progress = 100
	return next, applied()
}

func reduceStageProgress(s Session, ev Event) (Session, Outcome) {
	phase := s.Phase(ev.Phase)
	if phase == nil {
		return s, conflict("unknown phase " + string(ev.Phase))
	}
	if phase.Progress == ev.Progress {
		return s, noop("progress unchanged")
	}
	next := s.Clone()
	next.Phase(ev.Phase).Progress = ev.Progress
	return next, applied()
}

func reduceAgentStatus(s Session, agentID int, status AgentRuntimeStatus, progress int) (Session, Outcome) {
	if !s.HasAgent(agentID) {
		return s, conflict("agent not in session roster")
	}
	next := s.Clone()
	agent := next.Agent(agentID)
	agent.Status = status
	if progress > 0 {
		agent.Progress = progress
	}
	return next, applied()
}

// reduceAgentTerminal upserts the agent's response in the current phase with
// a terminal status. Failure counts toward phase completion exactly like
// success. When the last roster agent turns terminal the phase moves to the
// approval gate.
func reduceAgentTerminal(s Session, ev Event, status ResponseStatus) (Session, Outcome) {
	if !s.HasAgent(ev.AgentID) {
		return s, conflict("agent not in session roster")
	}
	if s.CurrentPhase == "" {
		return s, conflict("no phase in progress")
	}
	phase := s.Phase(s.CurrentPhase)
	if phase == nil {
		return s, conflict("unknown phase " + string(s.CurrentPhase))
	}
	if existing := phase.Response(ev.AgentID); existing != nil && existing.Status.IsTerminal() {
		return s, noop("response already terminal")
	}

	next := s.Clone()
	p := next.Phase(next.CurrentPhase)

	resp := AgentResponse{
		AgentID:        ev.AgentID,
		Status:         status,
		Content:        ev.Content,
		ProcessingTime: ev.ProcessingTime,
		Error:          ev.Error,
	}
	if existing := p.Response(ev.AgentID); existing != nil {
		*existing = resp
	} else {
		p.Responses = append(p.Responses, resp)
	}

	agent := next.Agent(ev.AgentID)
	if status == ResponseStatusCompleted {
		agent.Status = AgentStatusCompleted
	} else {
		agent.Status = AgentStatusError
	}

	if next.allResponsesTerminal(p) {
		p.Status = PhaseStatusWaitingApproval
	}
	return next, applied()
}

func reduceProceed(s Session) (Session, Outcome) {
	if s.CurrentPhase == "" {
		return s, conflict("no phase in progress")
	}
	phase := s.Phase(s.CurrentPhase)
	if phase == nil {
		return s, conflict("unknown phase " + string(s.CurrentPhase))
	}
	if phase.Status != PhaseStatusApproved && phase.Status != PhaseStatusCompleted {
		return s, conflict("current phase not approved or completed")
	}
	nextType, ok := NextPhase(s.CurrentPhase)
	if !ok {
		return s, noop("no further phases")
	}

	next := s.Clone()
	ensurePhases(&next)
	next.CurrentPhase = nextType
	p := next.Phase(nextType)
	p.Status = PhaseStatusInProgress
	p.Progress = 0
	p.Responses = nil
	setAllAgents(&next, AgentStatusThinking)
	return next, applied()
}

func reduceRestartStage(s Session) (Session, Outcome) {
	if s.CurrentPhase == "" {
		return s, conflict("no phase in progress")
	}
	phase := s.Phase(s.CurrentPhase)
	if phase == nil {
		return s, conflict("unknown phase " + string(s.CurrentPhase))
	}

	next := s.Clone()
	p := next.Phase(next.CurrentPhase)
	p.Status = PhaseStatusInProgress
	p.Progress = 0
	p.Summary = ""
	p.Responses = nil
	setAllAgents(&next, AgentStatusThinking)
	return next, applied()
}

// ensurePhases guarantees the session carries one phase per declared type,
// in order. Sessions loaded from a list endpoint may arrive without phases.
func ensurePhases(s *Session) {
	if len(s.Phases) == len(PhaseOrder) {
		return
	}
	for i, pt := range PhaseOrder {
		if s.Phase(pt) == nil {
			s.Phases = append(s.Phases, Phase{
				ID:     i + 1,
				Type:   pt,
				Status: PhaseStatusNotStarted,
			})
		}
	}
}

func setAllAgents(s *Session, status AgentRuntimeStatus) {
	for i := range s.Agents {
		s.Agents[i].Status = status
		s.Agents[i].Progress = 0
	}
}
