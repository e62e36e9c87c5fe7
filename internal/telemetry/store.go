package telemetry

import (
	"sync"
	"time"
)

// Snapshot is the most recent set of sensor readings for one pond.
type Snapshot struct {
	PondID    string             `json:"pond_id"`
	Values    map[string]float64 `json:"values"`
	Timestamp time.Time          `json:"timestamp"`
}

// Forecast is the most recent set of predicted values for one pond at
// the forecasting model's configured horizon.
type Forecast struct {
	PondID       string             `json:"pond_id"`
	Values       map[string]float64 `json:"values"`
	HorizonHours int                `json:"horizon_hours"`
	Timestamp    time.Time          `json:"timestamp"`
}

// Store keeps the latest snapshot and forecast per pond.
//
// All methods are safe for concurrent use: MQTT handlers write while
// the decision loop reads. Readings older than maxAge are treated as
// missing by the Current/Predicted accessors.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
	forecasts map[string]*Forecast
	maxAge    time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewStore creates a telemetry store. Readings older than maxAge are
// reported as missing; maxAge <= 0 disables the staleness guard.
func NewStore(maxAge time.Duration) *Store {
	return &Store{
		snapshots: make(map[string]*Snapshot),
		forecasts: make(map[string]*Forecast),
		maxAge:    maxAge,
		now:       time.Now,
	}
}

// UpdateSnapshot replaces the stored snapshot for a pond.
func (s *Store) UpdateSnapshot(pondID string, values map[string]float64, ts time.Time) {
	cpy := make(map[string]float64, len(values))
	for k, v := range values {
		cpy[k] = v
	}

	s.mu.Lock()
	s.snapshots[pondID] = &Snapshot{PondID: pondID, Values: cpy, Timestamp: ts}
	s.mu.Unlock()
}

// UpdateForecast replaces the stored forecast for a pond.
func (s *Store) UpdateForecast(pondID string, values map[string]float64, horizonHours int, ts time.Time) {
	cpy := make(map[string]float64, len(values))
	for k, v := range values {
		cpy[k] = v
	}

	s.mu.Lock()
	s.forecasts[pondID] = &Forecast{PondID: pondID, Values: cpy, HorizonHours: horizonHours, Timestamp: ts}
	s.mu.Unlock()
}

// Current returns the latest observed value of a parameter for a pond.
// The second return is false when the parameter has never been
// reported or the snapshot has gone stale.
func (s *Store) Current(pondID, parameter string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[pondID]
	if !ok || s.stale(snap.Timestamp) {
		return 0, false
	}
	v, ok := snap.Values[parameter]
	return v, ok
}

// Predicted returns the latest forecasted value of a parameter for a
// pond. The second return is false when no fresh forecast exists.
func (s *Store) Predicted(pondID, parameter string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fc, ok := s.forecasts[pondID]
	if !ok || s.stale(fc.Timestamp) {
		return 0, false
	}
	v, ok := fc.Values[parameter]
	return v, ok
}

// GetSnapshot returns a copy of the latest snapshot for a pond, stale
// or not. Intended for status reporting, not rule evaluation.
func (s *Store) GetSnapshot(pondID string) (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[pondID]
	if !ok {
		return nil, false
	}

	cpy := Snapshot{PondID: snap.PondID, Timestamp: snap.Timestamp}
	cpy.Values = make(map[string]float64, len(snap.Values))
	for k, v := range snap.Values {
		cpy.Values[k] = v
	}
	return &cpy, true
}

// LastUpdated returns the timestamp of the latest snapshot for a pond.
func (s *Store) LastUpdated(pondID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[pondID]
	if !ok {
		return time.Time{}, false
	}
	return snap.Timestamp, true
}

// PondIDs returns the set of ponds that have reported at least once.
func (s *Store) PondIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	return ids
}

func (s *Store) stale(ts time.Time) bool {
	if s.maxAge <= 0 {
		return false
	}
	return s.now().Sub(ts) > s.maxAge
}
