package trigger

import "sync"

// bufferKey identifies one confirmation buffer: a (rule, pond) pair.
type bufferKey struct {
	ConfigID string
	PondID   string
}

// Tracker holds per (rule, pond) sliding buffers of recent
// rule-violating readings. Requiring N consecutive violations before
// acting rejects single-reading sensor noise.
//
// A buffer is cleared entirely the instant the condition stops holding
// for its key. A condition that alternates true/false every tick
// therefore never confirms — intentional noise rejection, not a bug.
//
// All methods are safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	buffers map[bufferKey][]float64
}

// NewTracker creates an empty confirmation tracker.
func NewTracker() *Tracker {
	return &Tracker{
		buffers: make(map[bufferKey][]float64),
	}
}

// Record appends a rule-violating value to the buffer for
// (configID, pondID), evicting the oldest value when the buffer would
// exceed capacity (FIFO). Returns the buffer length after the append.
//
// Capacity below 1 is treated as 1.
func (t *Tracker) Record(configID, pondID string, value float64, capacity int) int {
	if capacity < 1 {
		capacity = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := bufferKey{ConfigID: configID, PondID: pondID}
	buf := append(t.buffers[key], value)
	if len(buf) > capacity {
		buf = buf[len(buf)-capacity:]
	}
	t.buffers[key] = buf
	return len(buf)
}

// Clear drops the buffer for (configID, pondID).
func (t *Tracker) Clear(configID, pondID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.buffers, bufferKey{ConfigID: configID, PondID: pondID})
}

// Count returns the current buffer length for (configID, pondID).
func (t *Tracker) Count(configID, pondID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buffers[bufferKey{ConfigID: configID, PondID: pondID}])
}

// Values returns a copy of the buffer for (configID, pondID).
func (t *Tracker) Values(configID, pondID string) []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	buf := t.buffers[bufferKey{ConfigID: configID, PondID: pondID}]
	if buf == nil {
		return nil
	}
	cpy := make([]float64, len(buf))
	copy(cpy, buf)
	return cpy
}

// Reset drops every buffer. Used when the system is re-enabled so
// stale confirmations from before the pause cannot trigger actions.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buffers = make(map[bufferKey][]float64)
}
