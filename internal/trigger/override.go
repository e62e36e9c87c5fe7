package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// OverrideStore holds operator-issued manual overrides.
//
// While an override is enabled for a device, the decision loop must
// exclude that device from every candidate target set and must not
// alter its status or power. Expiry is enforced by the scheduler's
// tick (ExpireDue), never as a side effect of reads.
//
// All public methods are thread-safe.
type OverrideStore struct {
	repo      Repository
	mu        sync.RWMutex
	overrides map[string]*ManualOverride // by device ID
	logger    Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewOverrideStore creates an override store backed by the repository.
func NewOverrideStore(repo Repository) *OverrideStore {
	return &OverrideStore{
		repo:      repo,
		overrides: make(map[string]*ManualOverride),
		logger:    noopLogger{},
		now:       time.Now,
	}
}

// SetLogger sets the logger for the store.
func (s *OverrideStore) SetLogger(logger Logger) {
	s.logger = logger
}

// Load reads persisted overrides into memory on startup.
func (s *OverrideStore) Load(ctx context.Context) error {
	overrides, err := s.repo.ListOverrides(ctx)
	if err != nil {
		return fmt.Errorf("loading overrides: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.overrides = make(map[string]*ManualOverride, len(overrides))
	for i := range overrides {
		o := overrides[i].DeepCopy()
		s.overrides[o.DeviceID] = o
	}

	s.logger.Info("manual overrides loaded", "count", len(overrides))
	return nil
}

// Set pins a device at the given power. A durationMinutes of 0 means
// no expiry.
func (s *OverrideStore) Set(ctx context.Context, deviceID string, power, durationMinutes int, reason, operator string) (*ManualOverride, error) {
	now := s.now().UTC()
	o := &ManualOverride{
		DeviceID:   deviceID,
		Enabled:    true,
		PowerLevel: power,
		StartedAt:  now,
		Reason:     reason,
		Operator:   operator,
	}
	if durationMinutes > 0 {
		expires := now.Add(time.Duration(durationMinutes) * time.Minute)
		o.ExpiresAt = &expires
	}

	if err := s.repo.SaveOverride(ctx, o); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.overrides[deviceID] = o.DeepCopy()
	s.mu.Unlock()

	s.logger.Info("manual override set",
		"device_id", deviceID, "power", power, "duration_minutes", durationMinutes, "operator", operator)
	return o, nil
}

// Clear removes the override for a device.
// Returns ErrOverrideNotFound if none is set.
func (s *OverrideStore) Clear(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.overrides[deviceID]; !ok {
		return ErrOverrideNotFound
	}

	if err := s.repo.DeleteOverride(ctx, deviceID); err != nil {
		return err
	}
	delete(s.overrides, deviceID)

	s.logger.Info("manual override cleared", "device_id", deviceID)
	return nil
}

// Get returns the override for a device, if any.
func (s *OverrideStore) Get(deviceID string) (*ManualOverride, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.overrides[deviceID]
	if !ok {
		return nil, false
	}
	return o.DeepCopy(), true
}

// IsOverridden reports whether a device currently has an enabled override.
func (s *OverrideStore) IsOverridden(deviceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.overrides[deviceID]
	return ok && o.Enabled
}

// List returns all current overrides.
func (s *OverrideStore) List() []ManualOverride {
	s.mu.RLock()
	defer s.mu.RUnlock()

	overrides := make([]ManualOverride, 0, len(s.overrides))
	for _, o := range s.overrides {
		overrides = append(overrides, *o.DeepCopy())
	}
	return overrides
}

// ExpireDue clears every override whose expiry has passed and returns
// the cleared overrides so the caller can release the devices.
// Called by the scheduler once per tick.
func (s *OverrideStore) ExpireDue(ctx context.Context, now time.Time) []ManualOverride {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []ManualOverride
	for deviceID, o := range s.overrides {
		if o.ExpiresAt == nil || now.Before(*o.ExpiresAt) {
			continue
		}
		if err := s.repo.DeleteOverride(ctx, deviceID); err != nil {
			s.logger.Error("failed to delete expired override", "device_id", deviceID, "error", err)
			continue
		}
		expired = append(expired, *o.DeepCopy())
		delete(s.overrides, deviceID)
		s.logger.Info("manual override expired", "device_id", deviceID)
	}
	return expired
}
