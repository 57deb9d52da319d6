package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/stormloop-dev/stormloop/pkg/brainstorm"
	apperrors "github.com/stormloop-dev/stormloop/pkg/errors"
	"github.com/stormloop-dev/stormloop/pkg/event"
)

// Sink receives the disposition of every processed event. Implemented by the
// diagnostics package; a nil sink is fine.
type Sink interface {
	RecordEvent(kind brainstorm.Kind, outcome brainstorm.OutcomeKind)
	RecordProtocolDrop(rawEvent string)
}

// DropRecord remembers one discarded event for diagnostics output. Protocol
// and state-conflict drops are invisible to the user but observable here.
type DropRecord struct {
	Time   time.Time `json:"time"`
	Event  string    `json:"event"`
	Class  string    `json:"class"` // "protocol" or "conflict"
	Reason string    `json:"reason"`
}

const defaultDropHistory = 64

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	Logger logr.Logger
	Sink   Sink
	// DropHistory bounds the retained drop records (default 64).
	DropHistory int
}

// Tracker folds inbound events into session state: normalize, reduce, record
// the disposition. Events are processed strictly one at a time; snapshots
// handed out are deep copies, so readers never observe mutation.
type Tracker struct {
	log  logr.Logger
	sink Sink

	mu      sync.Mutex
	session brainstorm.Session
	drops   []DropRecord
	maxDrop int
}

// NewTracker creates a tracker seeded with an initial session snapshot,
// typically loaded over REST before joining the session room.
func NewTracker(initial brainstorm.Session, opts TrackerOptions) *Tracker {
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	if opts.DropHistory <= 0 {
		opts.DropHistory = defaultDropHistory
	}
	return &Tracker{
		log:     opts.Logger.WithName("tracker").WithValues("sessionID", initial.ID),
		sink:    opts.Sink,
		session: initial,
		maxDrop: opts.DropHistory,
	}
}

// HandleFrame is the connection Handler: it normalizes one raw frame and
// applies it. Bad frames are dropped and recorded, never propagated.
func (t *Tracker) HandleFrame(rawEvent string, payload json.RawMessage) {
	ev, err := event.Normalize(rawEvent, payload)
	if err != nil {
		t.log.V(1).Info("dropping event", "event", rawEvent, "error", err.Error())
		t.recordDrop(rawEvent, "protocol", err.Error())
		if t.sink != nil {
			t.sink.RecordProtocolDrop(rawEvent)
		}
		return
	}
	t.Apply(*ev)
}

// Apply runs one normalized event through the reducer.
func (t *Tracker) Apply(ev brainstorm.Event) brainstorm.Outcome {
	t.mu.Lock()
	next, outcome := brainstorm.Reduce(t.session, ev)
	t.session = next
	t.mu.Unlock()

	switch outcome.Kind {
	case brainstorm.OutcomeConflict:
		t.log.V(1).Info("event conflicts with session state",
			"kind", string(ev.Kind), "reason", outcome.Reason)
		t.recordDrop(string(ev.Kind), "conflict", outcome.Reason)
	case brainstorm.OutcomeNoop:
		t.log.V(2).Info("event ignored", "kind", string(ev.Kind), "reason", outcome.Reason)
	}
	if t.sink != nil {
		t.sink.RecordEvent(ev.Kind, outcome.Kind)
	}
	return outcome
}

// Session returns a deep copy of the current session state.
func (t *Tracker) Session() brainstorm.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.Clone()
}

// Progress derives stage progress from the current state.
func (t *Tracker) Progress() brainstorm.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return brainstorm.DeriveProgress(t.session)
}

// RecentDrops returns the retained drop records, oldest first.
func (t *Tracker) RecentDrops() []DropRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]DropRecord, len(t.drops))
	copy(out, t.drops)
	return out
}

// dryRun reduces the event against the current state without committing.
func (t *Tracker) dryRun(ev brainstorm.Event) brainstorm.Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, outcome := brainstorm.Reduce(t.session, ev)
	return outcome
}

func (t *Tracker) recordDrop(eventName, class, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drops = append(t.drops, DropRecord{
		Time:   time.Now(),
		Event:  eventName,
		Class:  class,
		Reason: reason,
	})
	if len(t.drops) > t.maxDrop {
		t.drops = t.drops[len(t.drops)-t.maxDrop:]
	}
}

// guardErr converts a conflicting command outcome into a state conflict error.
func guardErr(command string, outcome brainstorm.Outcome) error {
	return apperrors.New(apperrors.ErrCodeStateConflict,
		command+" rejected: "+outcome.Reason, nil)
}
