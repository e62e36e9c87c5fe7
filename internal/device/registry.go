package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by write-through CRUD and state operations. State changes are visible
// to the next read immediately; the decision loop never sees stale
// state of its own making.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*HardwareDevice // Cached devices by ID
	cacheMu sync.RWMutex               // Protects cache
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*HardwareDevice),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*HardwareDevice, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*HardwareDevice, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new device not yet cached)
	d, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = d.DeepCopy()
	r.cacheMu.Unlock()

	return d, nil
}

// ListDevices retrieves all devices, or only a pond's devices when
// pondID is non-empty.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListDevices(ctx context.Context, pondID string) ([]HardwareDevice, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		devices := make([]HardwareDevice, 0, len(r.cache))
		for _, d := range r.cache {
			if pondID != "" && d.PondID != pondID {
				continue
			}
			devices = append(devices, *d.DeepCopy())
		}
		return devices, nil
	}

	if pondID != "" {
		return r.repo.ListByPond(ctx, pondID)
	}
	return r.repo.List(ctx)
}

// GetDevicesByCapability retrieves a pond's devices of a given
// capability type. Used by the decision loop to resolve default
// trigger targets.
func (r *Registry) GetDevicesByCapability(ctx context.Context, pondID string, capability Capability) ([]HardwareDevice, error) {
	devices, err := r.ListDevices(ctx, pondID)
	if err != nil {
		return nil, err
	}

	filtered := devices[:0]
	for _, d := range devices {
		if d.Capability == capability {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// CreateDevice creates a new device.
// It validates the device, generates an ID if needed, applies creation
// defaults (standby, power 0, override off, connected) and persists it.
func (r *Registry) CreateDevice(ctx context.Context, d *HardwareDevice) error {
	if d.ID == "" {
		d.ID = GenerateID()
	}

	if d.Status == "" {
		d.Status = StatusStandby
	}
	d.PowerLevel = MinPowerLevel
	d.ManualOverride = false
	d.IsConnected = true

	if err := ValidateDevice(d); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, d); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[d.ID] = d.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device created",
		"id", d.ID, "name", d.Name, "pond_id", d.PondID, "capability", d.Capability)
	return nil
}

// UpdateDevice updates an existing device.
func (r *Registry) UpdateDevice(ctx context.Context, d *HardwareDevice) error {
	if err := ValidateDevice(d); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, d); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[d.ID] = d.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device updated", "id", d.ID, "name", d.Name)
	return nil
}

// DeleteDevice removes a device.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// SetState applies a decision-loop state change: status, power level
// and last-trigger timestamp. The change is written through to the
// repository and visible to the next cache read immediately.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) SetState(ctx context.Context, id string, status DeviceStatus, power int, lastTrigger *time.Time) error {
	if err := ValidateStatus(status); err != nil {
		return err
	}
	if err := ValidatePowerLevel(power); err != nil {
		return err
	}

	if err := r.repo.UpdateState(ctx, id, status, power, lastTrigger); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		cached.Status = status
		cached.PowerLevel = power
		if lastTrigger != nil {
			t := *lastTrigger
			cached.LastTrigger = &t
		}
		cached.UpdatedAt = time.Now().UTC()
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device state set", "id", id, "status", status, "power", power)
	return nil
}

// MarkOverride flips the manual-override flag for a device, pinning
// power at the given level while enabled.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) MarkOverride(ctx context.Context, id string, enabled bool, power int) error {
	if err := ValidatePowerLevel(power); err != nil {
		return err
	}

	if err := r.repo.UpdateOverride(ctx, id, enabled, power); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		cached.ManualOverride = enabled
		cached.PowerLevel = power
		cached.UpdatedAt = time.Now().UTC()
	}
	r.cacheMu.Unlock()

	r.logger.Info("device override marked", "id", id, "enabled", enabled, "power", power)
	return nil
}

// SetConnection records an external health signal: connectivity and
// the status it implies. The engine never calls this itself.
func (r *Registry) SetConnection(ctx context.Context, id string, connected bool, status DeviceStatus) error {
	if err := ValidateStatus(status); err != nil {
		return err
	}

	if err := r.repo.UpdateConnection(ctx, id, connected, status); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		cached.IsConnected = connected
		cached.Status = status
		cached.UpdatedAt = time.Now().UTC()
	}
	r.cacheMu.Unlock()

	r.logger.Info("device connection set", "id", id, "connected", connected, "status", status)
	return nil
}

// GetPond retrieves a pond by ID.
func (r *Registry) GetPond(ctx context.Context, id string) (*Pond, error) {
	return r.repo.GetPond(ctx, id)
}

// ListPonds retrieves all ponds.
func (r *Registry) ListPonds(ctx context.Context) ([]Pond, error) {
	return r.repo.ListPonds(ctx)
}

// CreatePond creates a new pond.
func (r *Registry) CreatePond(ctx context.Context, p *Pond) error {
	if p.ID == "" {
		p.ID = GenerateID()
	}
	if err := ValidateName(p.Name); err != nil {
		return err
	}

	if err := r.repo.CreatePond(ctx, p); err != nil {
		return err
	}

	r.logger.Info("pond created", "id", p.ID, "name", p.Name)
	return nil
}
