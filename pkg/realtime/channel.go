package realtime

import (
	"github.com/stormloop-dev/stormloop/pkg/brainstorm"
	apperrors "github.com/stormloop-dev/stormloop/pkg/errors"
)

// BrainstormNamespace is the gateway namespace carrying session events.
const BrainstormNamespace = "/brainstorm"

// SessionChannel binds one session room on a connection to its tracker:
// outbound user commands go through the reducer's guards before they are
// dispatched, and the local state is advanced on successful dispatch so the
// UI reflects the command immediately.
type SessionChannel struct {
	conn    *Conn
	tracker *Tracker
	session int
}

// NewSessionChannel joins the session's room on conn and returns the command
// surface for it.
func NewSessionChannel(conn *Conn, tracker *Tracker, sessionID int) (*SessionChannel, error) {
	if sessionID <= 0 {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "session id must be positive", nil)
	}
	if err := conn.Join(sessionID); err != nil {
		return nil, err
	}
	return &SessionChannel{conn: conn, tracker: tracker, session: sessionID}, nil
}

// Tracker returns the tracker backing this channel.
func (sc *SessionChannel) Tracker() *Tracker {
	return sc.tracker
}

// Start dispatches brainstorm:start for the session.
func (sc *SessionChannel) Start(topic string, agentIDs []int) error {
	if err := brainstorm.ValidateSessionInput(topic, agentIDs); err != nil {
		return err
	}
	return sc.conn.Emit(outStart, startPayload{
		SessionID: sc.session,
		Topic:     topic,
		AgentIDs:  agentIDs,
	})
}

// Proceed advances to the next phase. Rejected locally unless the current
// phase is approved or completed.
func (sc *SessionChannel) Proceed() error {
	ev := brainstorm.Event{Kind: brainstorm.KindProceed, SessionID: sc.session}
	if outcome := sc.tracker.dryRun(ev); outcome.Kind == brainstorm.OutcomeConflict {
		return guardErr("proceed", outcome)
	}

	next, ok := brainstorm.NextPhase(sc.tracker.Session().CurrentPhase)
	if !ok {
		return apperrors.New(apperrors.ErrCodeStateConflict, "no further phases", nil)
	}
	if err := sc.conn.Emit(outProceed, phasePayload{
		SessionID: sc.session,
		PhaseType: string(next),
	}); err != nil {
		return err
	}
	sc.tracker.Apply(ev)
	return nil
}

// RestartStage resets the current phase. Completed prior phases are left
// untouched.
func (sc *SessionChannel) RestartStage() error {
	ev := brainstorm.Event{Kind: brainstorm.KindRestartStage, SessionID: sc.session}
	if outcome := sc.tracker.dryRun(ev); outcome.Kind == brainstorm.OutcomeConflict {
		return guardErr("restart-stage", outcome)
	}

	current := sc.tracker.Session().CurrentPhase
	if err := sc.conn.Emit(outRestartStage, phasePayload{
		SessionID: sc.session,
		PhaseType: string(current),
	}); err != nil {
		return err
	}
	sc.tracker.Apply(ev)
	return nil
}

// Pause dispatches brainstorm:pause.
func (sc *SessionChannel) Pause() error {
	return sc.conn.Emit(outPause, roomPayload{SessionID: sc.session})
}

// Resume dispatches brainstorm:resume.
func (sc *SessionChannel) Resume() error {
	return sc.conn.Emit(outResume, roomPayload{SessionID: sc.session})
}

// Cancel dispatches brainstorm:cancel.
func (sc *SessionChannel) Cancel() error {
	return sc.conn.Emit(outCancel, roomPayload{SessionID: sc.session})
}

// Close leaves the session room. The connection itself stays up for other
// rooms on the namespace.
func (sc *SessionChannel) Close() error {
	return sc.conn.Leave(sc.session)
}
