package trigger

import (
	"context"
	"sync"
	"time"
)

// DefaultEventLogCapacity bounds the in-memory audit ring.
const DefaultEventLogCapacity = 100

// EventLog is the bounded audit trail of engine decisions.
//
// Appends evict the oldest event past capacity; the only mutation of
// an appended event is flipping its acknowledged flag. Events are
// additionally written through to the repository so the audit trail
// survives restarts (the in-memory ring is the hot path for the
// status API).
//
// All public methods are thread-safe.
type EventLog struct {
	repo     Repository
	mu       sync.RWMutex
	events   []*TriggerEvent // newest last
	capacity int
	logger   Logger
}

// NewEventLog creates an event log with the given ring capacity.
// Capacity below 1 falls back to DefaultEventLogCapacity.
func NewEventLog(repo Repository, capacity int) *EventLog {
	if capacity < 1 {
		capacity = DefaultEventLogCapacity
	}
	return &EventLog{
		repo:     repo,
		events:   make([]*TriggerEvent, 0, capacity),
		capacity: capacity,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the event log.
func (l *EventLog) SetLogger(logger Logger) {
	l.logger = logger
}

// Load seeds the ring with the most recent persisted events so that
// cooldown arithmetic and the status API survive restarts.
func (l *EventLog) Load(ctx context.Context) error {
	events, err := l.repo.ListEvents(ctx, l.capacity)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Repository returns newest first; the ring stores newest last.
	l.events = make([]*TriggerEvent, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		l.events = append(l.events, events[i].DeepCopy())
	}

	l.logger.Info("trigger events loaded", "count", len(events))
	return nil
}

// Append records an event, assigning ID and timestamp if unset, and
// evicts the oldest event beyond capacity.
//
// Persistence failures are logged, not propagated: losing one durable
// audit row must not block the control decision that produced it.
func (l *EventLog) Append(ctx context.Context, ev *TriggerEvent) {
	if ev.ID == "" {
		ev.ID = GenerateID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	l.mu.Lock()
	l.events = append(l.events, ev.DeepCopy())
	if len(l.events) > l.capacity {
		l.events = l.events[len(l.events)-l.capacity:]
	}
	l.mu.Unlock()

	if err := l.repo.CreateEvent(ctx, ev); err != nil {
		l.logger.Error("failed to persist trigger event", "event_id", ev.ID, "error", err)
	}
}

// Acknowledge flips the acknowledged flag on an event.
// Returns ErrEventNotFound if the event has been evicted or never existed.
func (l *EventLog) Acknowledge(ctx context.Context, eventID string) error {
	l.mu.Lock()
	var found *TriggerEvent
	for _, ev := range l.events {
		if ev.ID == eventID {
			found = ev
			break
		}
	}
	if found == nil {
		l.mu.Unlock()
		return ErrEventNotFound
	}
	found.Acknowledged = true
	l.mu.Unlock()

	if err := l.repo.AcknowledgeEvent(ctx, eventID); err != nil {
		l.logger.Error("failed to persist event acknowledgement", "event_id", eventID, "error", err)
	}
	return nil
}

// Recent returns the n most recent events, newest first.
// n <= 0 returns all retained events.
func (l *EventLog) Recent(n int) []TriggerEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.events) {
		n = len(l.events)
	}

	out := make([]TriggerEvent, 0, n)
	for i := len(l.events) - 1; i >= len(l.events)-n; i-- {
		out = append(out, *l.events[i].DeepCopy())
	}
	return out
}

// Len returns the number of retained events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// LastActivated returns the creation time of the most recent activated
// event for (configID, pondID), for cooldown arithmetic. The zero time
// means the rule has never activated within the retained window.
func (l *EventLog) LastActivated(configID, pondID string) time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := len(l.events) - 1; i >= 0; i-- {
		ev := l.events[i]
		if ev.Action == ActionActivated && ev.ConfigID == configID && ev.PondID == pondID {
			return ev.CreatedAt
		}
	}
	return time.Time{}
}
