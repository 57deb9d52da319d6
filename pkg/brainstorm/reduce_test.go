package brainstorm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(agentIDs ...int) Session {
	if len(agentIDs) == 0 {
		agentIDs = []int{1, 2}
	}
	s := Session{
		ID:     10,
		Topic:  "ceramic travel mug for cultural tourism",
		Status: SessionStatusCreated,
	}
	for i, pt := range PhaseOrder {
		s.Phases = append(s.Phases, Phase{ID: i + 1, Type: pt, Status: PhaseStatusNotStarted})
	}
	for _, id := range agentIDs {
		s.Agents = append(s.Agents, SessionAgent{
			AgentID: id,
			Name:    "agent",
			Role:    "product manager",
			Model:   "gpt-4",
			Status:  AgentStatusIdle,
		})
	}
	return s
}

func startedSession(agentIDs ...int) Session {
	s, outcome := Reduce(newTestSession(agentIDs...), Event{Kind: KindSessionStarted, SessionID: 10})
	if outcome.Kind != OutcomeApplied {
		panic("test setup: session start not applied")
	}
	return s
}

func resultEvent(agentID int, content string) Event {
	return Event{
		Kind:           KindAgentResult,
		SessionID:      10,
		AgentID:        agentID,
		Content:        content,
		ProcessingTime: 3 * time.Second,
	}
}

func TestReduce_SessionStarted(t *testing.T) {
	s := newTestSession()

	next, outcome := Reduce(s, Event{Kind: KindSessionStarted, SessionID: 10})

	assert.Equal(t, OutcomeApplied, outcome.Kind)
	assert.Equal(t, SessionStatusInProgress, next.Status)
	assert.Equal(t, PhaseIdeaGeneration, next.CurrentPhase)
	assert.Equal(t, PhaseStatusInProgress, next.Phase(PhaseIdeaGeneration).Status)
	for _, agent := range next.Agents {
		assert.Equal(t, AgentStatusThinking, agent.Status)
	}
	// Input untouched.
	assert.Equal(t, SessionStatusCreated, s.Status)
}

func TestReduce_SessionStarted_WithoutPhases(t *testing.T) {
	s := newTestSession()
	s.Phases = nil

	next, outcome := Reduce(s, Event{Kind: KindSessionStarted, SessionID: 10})

	assert.Equal(t, OutcomeApplied, outcome.Kind)
	require.Len(t, next.Phases, len(PhaseOrder))
	assert.Equal(t, PhaseStatusInProgress, next.Phases[0].Status)
	assert.Equal(t, PhaseStatusNotStarted, next.Phases[1].Status)
}

func TestReduce_AgentResult_Upsert(t *testing.T) {
	s := startedSession()

	next, outcome := Reduce(s, resultEvent(1, "idea one"))
	require.Equal(t, OutcomeApplied, outcome.Kind)

	phase := next.Phase(PhaseIdeaGeneration)
	require.NotNil(t, phase.Response(1))
	assert.Equal(t, ResponseStatusCompleted, phase.Response(1).Status)
	assert.Equal(t, "idea one", phase.Response(1).Content)
	assert.Equal(t, 3*time.Second, phase.Response(1).ProcessingTime)
	assert.Equal(t, AgentStatusCompleted, next.Agent(1).Status)
}

func TestReduce_PhaseWaitsForAllAgents(t *testing.T) {
	// Two agents: the phase must move to the approval gate only after the
	// second terminal response, not the first.
	s := startedSession(1, 2)

	afterFirst, outcome := Reduce(s, resultEvent(1, "idea one"))
	require.Equal(t, OutcomeApplied, outcome.Kind)
	assert.Equal(t, PhaseStatusInProgress, afterFirst.Phase(PhaseIdeaGeneration).Status)

	afterSecond, outcome := Reduce(afterFirst, resultEvent(2, "idea two"))
	require.Equal(t, OutcomeApplied, outcome.Kind)
	assert.Equal(t, PhaseStatusWaitingApproval, afterSecond.Phase(PhaseIdeaGeneration).Status)
}

func TestReduce_AgentError_CountsAsTerminal(t *testing.T) {
	s := startedSession(1, 2)

	s, _ = Reduce(s, resultEvent(1, "idea one"))
	next, outcome := Reduce(s, Event{
		Kind: KindAgentError, SessionID: 10, AgentID: 2, Error: "model timeout",
	})

	require.Equal(t, OutcomeApplied, outcome.Kind)
	phase := next.Phase(PhaseIdeaGeneration)
	assert.Equal(t, PhaseStatusWaitingApproval, phase.Status)
	assert.Equal(t, ResponseStatusFailed, phase.Response(2).Status)
	assert.Equal(t, "model timeout", phase.Response(2).Error)
	assert.Equal(t, AgentStatusError, next.Agent(2).Status)
}

func TestReduce_AgentResult_UnknownAgent(t *testing.T) {
	s := startedSession(1, 2)

	next, outcome := Reduce(s, resultEvent(99, "phantom idea"))

	assert.Equal(t, OutcomeConflict, outcome.Kind)
	assert.Equal(t, s, next)
	assert.Nil(t, next.Phase(PhaseIdeaGeneration).Response(99))
}

func TestReduce_AgentResult_TerminalResponseImmutable(t *testing.T) {
	s := startedSession(1, 2)
	s, _ = Reduce(s, resultEvent(1, "original"))

	next, outcome := Reduce(s, resultEvent(1, "revised"))

	assert.Equal(t, OutcomeNoop, outcome.Kind)
	assert.Equal(t, "original", next.Phase(PhaseIdeaGeneration).Response(1).Content)
}

func TestReduce_ResponsesNeverExceedRoster(t *testing.T) {
	s := startedSession(1, 2)
	events := []Event{
		resultEvent(1, "a"),
		resultEvent(2, "b"),
		resultEvent(1, "a again"),
		resultEvent(3, "intruder"),
		resultEvent(2, "b again"),
	}

	for _, ev := range events {
		s, _ = Reduce(s, ev)
	}

	assert.LessOrEqual(t, len(s.Phase(PhaseIdeaGeneration).Responses), len(s.Agents))
}

func TestReduce_StageCompleted(t *testing.T) {
	s := startedSession(1)
	s, _ = Reduce(s, resultEvent(1, "idea"))
	require.Equal(t, PhaseStatusWaitingApproval, s.Phase(PhaseIdeaGeneration).Status)

	next, outcome := Reduce(s, Event{
		Kind: KindStageCompleted, SessionID: 10,
		Phase: PhaseIdeaGeneration, Summary: "good spread of concepts",
	})

	require.Equal(t, OutcomeApplied, outcome.Kind)
	phase := next.Phase(PhaseIdeaGeneration)
	assert.Equal(t, PhaseStatusCompleted, phase.Status)
	assert.Equal(t, "good spread of concepts", phase.Summary)
}

func TestReduce_StageCompleted_Premature(t *testing.T) {
	s := startedSession(1, 2)

	next, outcome := Reduce(s, Event{
		Kind: KindStageCompleted, SessionID: 10,
		Phase: PhaseIdeaGeneration, Summary: "too soon",
	})

	assert.Equal(t, OutcomeConflict, outcome.Kind)
	assert.Equal(t, PhaseStatusInProgress, next.Phase(PhaseIdeaGeneration).Status)
	assert.Empty(t, next.Phase(PhaseIdeaGeneration).Summary)
}

func TestReduce_Proceed_RequiresApprovedOrCompleted(t *testing.T) {
	s := startedSession(1, 2)

	next, outcome := Reduce(s, Event{Kind: KindProceed, SessionID: 10})

	assert.Equal(t, OutcomeConflict, outcome.Kind)
	assert.Equal(t, PhaseIdeaGeneration, next.CurrentPhase)
}

func TestReduce_Proceed_AdvancesAndClearsNewPhaseOnly(t *testing.T) {
	s := startedSession(1)
	s, _ = Reduce(s, resultEvent(1, "idea"))
	s, _ = Reduce(s, Event{
		Kind: KindStageCompleted, SessionID: 10,
		Phase: PhaseIdeaGeneration, Summary: "done",
	})

	next, outcome := Reduce(s, Event{Kind: KindProceed, SessionID: 10})

	require.Equal(t, OutcomeApplied, outcome.Kind)
	assert.Equal(t, PhaseFeasibilityAnalysis, next.CurrentPhase)
	assert.Equal(t, PhaseStatusInProgress, next.Phase(PhaseFeasibilityAnalysis).Status)
	assert.Empty(t, next.Phase(PhaseFeasibilityAnalysis).Responses)
	// Prior phase keeps its results.
	assert.Equal(t, PhaseStatusCompleted, next.Phase(PhaseIdeaGeneration).Status)
	assert.Len(t, next.Phase(PhaseIdeaGeneration).Responses, 1)
	assert.Equal(t, AgentStatusThinking, next.Agent(1).Status)
}

func TestReduce_Proceed_ApprovedPhase(t *testing.T) {
	s := startedSession(1)
	s, _ = Reduce(s, resultEvent(1, "idea"))
	s.Phase(PhaseIdeaGeneration).Status = PhaseStatusApproved

	next, outcome := Reduce(s, Event{Kind: KindProceed, SessionID: 10})

	assert.Equal(t, OutcomeApplied, outcome.Kind)
	assert.Equal(t, PhaseFeasibilityAnalysis, next.CurrentPhase)
}

func TestReduce_Proceed_NoFurtherPhases(t *testing.T) {
	s := startedSession(1)
	s.CurrentPhase = PhaseCriticismDiscussion
	s.Phase(PhaseCriticismDiscussion).Status = PhaseStatusCompleted

	next, outcome := Reduce(s, Event{Kind: KindProceed, SessionID: 10})

	assert.Equal(t, OutcomeNoop, outcome.Kind)
	assert.Equal(t, PhaseCriticismDiscussion, next.CurrentPhase)
}

func TestReduce_RestartStage(t *testing.T) {
	s := startedSession(1, 2)
	s, _ = Reduce(s, resultEvent(1, "idea"))
	s, _ = Reduce(s, Event{Kind: KindAgentError, SessionID: 10, AgentID: 2, Error: "timeout"})
	require.Len(t, s.Phase(PhaseIdeaGeneration).Responses, 2)

	next, outcome := Reduce(s, Event{Kind: KindRestartStage, SessionID: 10})

	require.Equal(t, OutcomeApplied, outcome.Kind)
	phase := next.Phase(PhaseIdeaGeneration)
	assert.Empty(t, phase.Responses)
	assert.Equal(t, PhaseStatusInProgress, phase.Status)
	for _, agent := range next.Agents {
		assert.Equal(t, AgentStatusThinking, agent.Status)
	}
}

func TestReduce_RestartStage_DoesNotTouchPriorPhases(t *testing.T) {
	s := startedSession(1)
	s, _ = Reduce(s, resultEvent(1, "idea"))
	s, _ = Reduce(s, Event{
		Kind: KindStageCompleted, SessionID: 10,
		Phase: PhaseIdeaGeneration, Summary: "done",
	})
	s, _ = Reduce(s, Event{Kind: KindProceed, SessionID: 10})

	next, _ := Reduce(s, Event{Kind: KindRestartStage, SessionID: 10})

	assert.Equal(t, PhaseStatusCompleted, next.Phase(PhaseIdeaGeneration).Status)
	assert.Len(t, next.Phase(PhaseIdeaGeneration).Responses, 1)
}

func TestReduce_SessionCompleted_Terminal(t *testing.T) {
	s := startedSession(1)

	done, outcome := Reduce(s, Event{Kind: KindSessionCompleted, SessionID: 10})
	require.Equal(t, OutcomeApplied, outcome.Kind)
	assert.Equal(t, SessionStatusCompleted, done.Status)

	// Replaying the terminal event is idempotent.
	replayed, outcome := Reduce(done, Event{Kind: KindSessionCompleted, SessionID: 10})
	assert.Equal(t, OutcomeNoop, outcome.Kind)
	assert.Equal(t, done, replayed)

	// Any further event is ignored, not an error.
	after, outcome := Reduce(done, resultEvent(1, "late idea"))
	assert.Equal(t, OutcomeNoop, outcome.Kind)
	assert.Equal(t, done, after)
}

func TestReduce_PauseResume(t *testing.T) {
	s := startedSession(1)

	paused, outcome := Reduce(s, Event{Kind: KindSessionPaused, SessionID: 10})
	require.Equal(t, OutcomeApplied, outcome.Kind)
	assert.Equal(t, SessionStatusPaused, paused.Status)

	resumed, outcome := Reduce(paused, Event{Kind: KindSessionResumed, SessionID: 10})
	require.Equal(t, OutcomeApplied, outcome.Kind)
	assert.Equal(t, SessionStatusInProgress, resumed.Status)

	// Resume without pause is a no-op.
	_, outcome = Reduce(resumed, Event{Kind: KindSessionResumed, SessionID: 10})
	assert.Equal(t, OutcomeNoop, outcome.Kind)
}

func TestReduce_CrossSessionLeakage(t *testing.T) {
	s := startedSession(1)

	ev := resultEvent(1, "leaked")
	ev.SessionID = 999

	next, outcome := Reduce(s, ev)

	assert.Equal(t, OutcomeConflict, outcome.Kind)
	assert.Equal(t, s, next)
}

func TestReduce_StageProgress(t *testing.T) {
	s := startedSession(1)

	next, outcome := Reduce(s, Event{
		Kind: KindStageProgress, SessionID: 10,
		Phase: PhaseIdeaGeneration, Progress: 60,
	})

	require.Equal(t, OutcomeApplied, outcome.Kind)
	assert.Equal(t, 60, next.Phase(PhaseIdeaGeneration).Progress)

	// Unchanged progress is a no-op.
	_, outcome = Reduce(next, Event{
		Kind: KindStageProgress, SessionID: 10,
		Phase: PhaseIdeaGeneration, Progress: 60,
	})
	assert.Equal(t, OutcomeNoop, outcome.Kind)
}

func TestReduce_AgentStatusUpdate(t *testing.T) {
	s := startedSession(1, 2)

	next, outcome := Reduce(s, Event{
		Kind: KindAgentStatusUpdate, SessionID: 10,
		AgentID: 2, AgentStatus: AgentStatusCompleted,
	})

	require.Equal(t, OutcomeApplied, outcome.Kind)
	assert.Equal(t, AgentStatusCompleted, next.Agent(2).Status)

	_, outcome = Reduce(s, Event{
		Kind: KindAgentStatusUpdate, SessionID: 10,
		AgentID: 42, AgentStatus: AgentStatusCompleted,
	})
	assert.Equal(t, OutcomeConflict, outcome.Kind)
}

func TestReduce_SessionError_Recorded(t *testing.T) {
	s := startedSession(1)

	next, outcome := Reduce(s, Event{Kind: KindSessionError, SessionID: 10, Error: "backend down"})

	require.Equal(t, OutcomeApplied, outcome.Kind)
	assert.Equal(t, "backend down", next.LastError)
	assert.Equal(t, SessionStatusInProgress, next.Status)
}

func TestReduce_OutOfOrderResults(t *testing.T) {
	// Within a phase there is no ordering guarantee across agents: any
	// permutation of terminal responses ends in the same phase state.
	permutations := [][]int{{1, 2, 3}, {3, 1, 2}, {2, 3, 1}}

	var final []Session
	for _, order := range permutations {
		s := startedSession(1, 2, 3)
		for _, id := range order {
			var outcome Outcome
			s, outcome = Reduce(s, resultEvent(id, "idea"))
			require.Equal(t, OutcomeApplied, outcome.Kind)
		}
		final = append(final, s)
	}

	for _, s := range final {
		assert.Equal(t, PhaseStatusWaitingApproval, s.Phase(PhaseIdeaGeneration).Status)
		assert.Len(t, s.Phase(PhaseIdeaGeneration).Responses, 3)
	}
}

func TestReduce_StageStarted_ReplayForCompletedPhase(t *testing.T) {
	s := startedSession(1, 2)
	s, _ = Reduce(s, resultEvent(1, "idea one"))
	s, _ = Reduce(s, resultEvent(2, "idea two"))
	s, _ = Reduce(s, Event{
		Kind: KindStageCompleted, SessionID: 10,
		Phase: PhaseIdeaGeneration, Summary: "done",
	})
	s, _ = Reduce(s, Event{Kind: KindProceed, SessionID: 10})
	require.Equal(t, PhaseFeasibilityAnalysis, s.CurrentPhase)

	next, outcome := Reduce(s, Event{
		Kind: KindStageStarted, SessionID: 10, Phase: PhaseIdeaGeneration,
	})

	assert.Equal(t, OutcomeConflict, outcome.Kind)
	assert.Equal(t, PhaseFeasibilityAnalysis, next.CurrentPhase)
	prior := next.Phase(PhaseIdeaGeneration)
	assert.Equal(t, PhaseStatusCompleted, prior.Status)
	assert.Len(t, prior.Responses, 2)

	active := 0
	for _, p := range next.Phases {
		if p.Status == PhaseStatusInProgress || p.Status == PhaseStatusWaitingApproval {
			active++
		}
	}
	assert.LessOrEqual(t, active, 1)
}

func TestReduce_StageStarted_EarlierPhaseRejected(t *testing.T) {
	s := startedSession(1)
	s.CurrentPhase = PhaseCriticismDiscussion
	s.Phase(PhaseIdeaGeneration).Status = PhaseStatusCompleted
	s.Phase(PhaseFeasibilityAnalysis).Status = PhaseStatusApproved
	s.Phase(PhaseCriticismDiscussion).Status = PhaseStatusInProgress

	next, outcome := Reduce(s, Event{
		Kind: KindStageStarted, SessionID: 10, Phase: PhaseFeasibilityAnalysis,
	})

	assert.Equal(t, OutcomeConflict, outcome.Kind)
	assert.Equal(t, PhaseCriticismDiscussion, next.CurrentPhase)
	assert.Equal(t, PhaseStatusApproved, next.Phase(PhaseFeasibilityAnalysis).Status)
}

func TestReduce_StageStarted_UnknownPhase(t *testing.T) {
	s := startedSession(1)

	next, outcome := Reduce(s, Event{
		Kind: KindStageStarted, SessionID: 10, Phase: PhaseType("BOGUS"),
	})

	assert.Equal(t, OutcomeConflict, outcome.Kind)
	assert.Equal(t, s, next)
}
