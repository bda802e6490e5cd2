package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/ctdf"
)

const DefaultMaxLength = 100

var ErrEmptyLedger = errors.New("no data")

// Store is the durable backing of the ledger. Save always receives the full
// ledger, most recent first.
type Store interface {
	Load(ctx context.Context) ([]ctdf.TelemetryEvent, error)
	Save(ctx context.Context, events []ctdf.TelemetryEvent) error
}

// Ledger is the bounded, most-recent-first history of committed telemetry
// events. It is the only thing allowed to mutate the history; callers get
// copies.
type Ledger struct {
	mutex sync.RWMutex

	events    []ctdf.TelemetryEvent
	maxLength int

	store  Store
	now    func() time.Time
	status DurabilityStatus
}

type Option func(*Ledger)

func WithMaxLength(maxLength int) Option {
	return func(l *Ledger) {
		if maxLength > 0 {
			l.maxLength = maxLength
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

func New(store Store, options ...Option) *Ledger {
	l := &Ledger{
		events:    []ctdf.TelemetryEvent{},
		maxLength: DefaultMaxLength,
		store:     store,
		now:       time.Now,
		status:    DurabilityStatus{OK: true},
	}

	for _, option := range options {
		option(l)
	}

	return l
}

// Load replaces the in-memory ledger with the stored one. On error the ledger
// is left empty so the process can still start.
func (l *Ledger) Load(ctx context.Context) error {
	events, err := l.store.Load(ctx)

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if err != nil {
		l.events = []ctdf.TelemetryEvent{}
		return err
	}

	if len(events) > l.maxLength {
		events = events[:l.maxLength]
	}
	l.events = append([]ctdf.TelemetryEvent{}, events...)

	return nil
}

// Classify reports whether event is a new stop transition relative to head.
// Only the current and next stop ids are compared.
func Classify(head *ctdf.TelemetryEvent, event ctdf.TelemetryEvent) bool {
	if head == nil {
		return true
	}

	return !head.SameStopPair(event)
}

// Commit classifies the event against the current head, stamps it, writes it
// into the ledger and persists the result before returning.
//
// A failed write does not undo the in-memory change. The committed event is
// returned together with a *PersistenceError so it can still be broadcast.
func (l *Ledger) Commit(ctx context.Context, event ctdf.TelemetryEvent) (ctdf.TelemetryEvent, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	var head *ctdf.TelemetryEvent
	if len(l.events) > 0 {
		head = &l.events[0]
	}

	event.IsNewEvent = Classify(head, event)
	event.RecordedAt = l.timestamp(head)

	if event.IsNewEvent {
		l.events = append(l.events, ctdf.TelemetryEvent{})
		copy(l.events[1:], l.events)
		l.events[0] = event

		if len(l.events) > l.maxLength {
			clear(l.events[l.maxLength:])
			l.events = l.events[:l.maxLength]
		}
	} else {
		l.events[0] = event
	}

	log.Debug().
		Int64("vehicle", event.Vehicle.ID).
		Bool("novo_evento", event.IsNewEvent).
		Int("ledger_length", len(l.events)).
		Msg("Committed telemetry event")

	return event, l.persist(ctx, "commit")
}

// Latest returns the head of the ledger or ErrEmptyLedger.
func (l *Ledger) Latest() (ctdf.TelemetryEvent, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if len(l.events) == 0 {
		return ctdf.TelemetryEvent{}, ErrEmptyLedger
	}

	return l.events[0], nil
}

// History returns up to the first n entries, most recent first.
func (l *Ledger) History(n int) []ctdf.TelemetryEvent {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if n <= 0 {
		return []ctdf.TelemetryEvent{}
	}
	n = min(n, len(l.events))

	history := make([]ctdf.TelemetryEvent, n)
	copy(history, l.events[:n])

	return history
}

// Reset empties the ledger and persists the empty state.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.events = []ctdf.TelemetryEvent{}

	log.Info().Msg("Telemetry history cleared")

	return l.persist(ctx, "reset")
}

func (l *Ledger) Len() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return len(l.events)
}

// timestamp is the commit time, never earlier than the current head so the head
// timestamps stay non-decreasing if the wall clock steps backwards.
func (l *Ledger) timestamp(head *ctdf.TelemetryEvent) time.Time {
	now := l.now().UTC().Truncate(time.Millisecond)

	if head != nil && now.Before(head.RecordedAt) {
		return head.RecordedAt
	}

	return now
}

// persist must be called with the write lock held.
func (l *Ledger) persist(ctx context.Context, operation string) error {
	if err := l.store.Save(ctx, l.events); err != nil {
		persistenceError := &PersistenceError{Operation: operation, Err: err}
		l.status.recordFailure(persistenceError, l.now())

		log.Error().Err(err).Str("operation", operation).Msg("Failed to persist telemetry history")

		return persistenceError
	}

	l.status.recordSuccess(l.now())

	return nil
}
