package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockRepository is a test implementation of Repository.
type MockRepository struct {
	mu      sync.Mutex
	devices map[string]*HardwareDevice
	ponds   map[string]*Pond
	// For testing error paths
	createErr      error
	updateStateErr error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		devices: make(map[string]*HardwareDevice),
		ponds:   make(map[string]*Pond),
	}
}

func (m *MockRepository) GetByID(_ context.Context, id string) (*HardwareDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d, ok := m.devices[id]; ok {
		return d.DeepCopy(), nil
	}
	return nil, ErrDeviceNotFound
}

func (m *MockRepository) List(_ context.Context) ([]HardwareDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	devices := make([]HardwareDevice, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, *d.DeepCopy())
	}
	return devices, nil
}

func (m *MockRepository) ListByPond(_ context.Context, pondID string) ([]HardwareDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var devices []HardwareDevice
	for _, d := range m.devices {
		if d.PondID == pondID {
			devices = append(devices, *d.DeepCopy())
		}
	}
	return devices, nil
}

func (m *MockRepository) Create(_ context.Context, d *HardwareDevice) error {
	if m.createErr != nil {
		return m.createErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.devices[d.ID]; exists {
		return ErrDeviceExists
	}
	m.devices[d.ID] = d.DeepCopy()
	return nil
}

func (m *MockRepository) Update(_ context.Context, d *HardwareDevice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.devices[d.ID]; !exists {
		return ErrDeviceNotFound
	}
	m.devices[d.ID] = d.DeepCopy()
	return nil
}

func (m *MockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.devices[id]; !exists {
		return ErrDeviceNotFound
	}
	delete(m.devices, id)
	return nil
}

func (m *MockRepository) UpdateState(_ context.Context, id string, status DeviceStatus, power int, lastTrigger *time.Time) error {
	if m.updateStateErr != nil {
		return m.updateStateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, exists := m.devices[id]
	if !exists {
		return ErrDeviceNotFound
	}
	d.Status = status
	d.PowerLevel = power
	if lastTrigger != nil {
		t := *lastTrigger
		d.LastTrigger = &t
	}
	return nil
}

func (m *MockRepository) UpdateOverride(_ context.Context, id string, enabled bool, power int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, exists := m.devices[id]
	if !exists {
		return ErrDeviceNotFound
	}
	d.ManualOverride = enabled
	d.PowerLevel = power
	return nil
}

func (m *MockRepository) UpdateConnection(_ context.Context, id string, connected bool, status DeviceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, exists := m.devices[id]
	if !exists {
		return ErrDeviceNotFound
	}
	d.IsConnected = connected
	d.Status = status
	return nil
}

func (m *MockRepository) GetPond(_ context.Context, id string) (*Pond, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.ponds[id]; ok {
		cpy := *p
		return &cpy, nil
	}
	return nil, ErrPondNotFound
}

func (m *MockRepository) ListPonds(_ context.Context) ([]Pond, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ponds := make([]Pond, 0, len(m.ponds))
	for _, p := range m.ponds {
		ponds = append(ponds, *p)
	}
	return ponds, nil
}

func (m *MockRepository) CreatePond(_ context.Context, p *Pond) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.ponds[p.ID]; exists {
		return ErrPondExists
	}
	cpy := *p
	m.ponds[p.ID] = &cpy
	return nil
}

// setupRegistry creates a registry with a mock repository and one pond.
func setupRegistry(t *testing.T) (*Registry, *MockRepository) {
	t.Helper()

	repo := NewMockRepository()
	repo.ponds["pond-1"] = &Pond{ID: "pond-1", Name: "Pond 1", CreatedAt: time.Now().UTC()}
	return NewRegistry(repo), repo
}

func testDevice(id, pondID string, capability Capability) *HardwareDevice {
	return &HardwareDevice{
		ID:         id,
		Name:       "Device " + id,
		PondID:     pondID,
		Capability: capability,
	}
}

func TestRegistryCreateDeviceDefaults(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()

	d := testDevice("dev-1", "pond-1", CapAerator)
	d.PowerLevel = 75 // Must be reset by creation defaults
	if err := reg.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	got, err := reg.GetDevice(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if got.Status != StatusStandby {
		t.Errorf("status = %q, want %q", got.Status, StatusStandby)
	}
	if got.PowerLevel != 0 {
		t.Errorf("power = %d, want 0", got.PowerLevel)
	}
	if got.ManualOverride {
		t.Error("manual override should default to false")
	}
	if !got.IsConnected {
		t.Error("device should default to connected")
	}
}

func TestRegistryCreateDeviceGeneratesID(t *testing.T) {
	reg, _ := setupRegistry(t)

	d := testDevice("", "pond-1", CapHeater)
	if err := reg.CreateDevice(context.Background(), d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if d.ID == "" {
		t.Error("expected generated ID")
	}
}

func TestRegistryCreateDeviceValidation(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		device  *HardwareDevice
		wantErr error
	}{
		{
			name:    "empty name",
			device:  &HardwareDevice{ID: "d1", PondID: "pond-1", Capability: CapAerator},
			wantErr: ErrInvalidName,
		},
		{
			name:    "missing pond",
			device:  &HardwareDevice{ID: "d2", Name: "Aerator", Capability: CapAerator},
			wantErr: ErrInvalidDevice,
		},
		{
			name:    "unknown capability",
			device:  &HardwareDevice{ID: "d3", Name: "Widget", PondID: "pond-1", Capability: "widget"},
			wantErr: ErrInvalidCapability,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.CreateDevice(ctx, tt.device)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateDevice() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistrySetStateVisibleImmediately(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()

	d := testDevice("dev-1", "pond-1", CapAerator)
	if err := reg.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	now := time.Now().UTC()
	if err := reg.SetState(ctx, "dev-1", StatusRunning, 85, &now); err != nil {
		t.Fatalf("SetState: %v", err)
	}

	got, err := reg.GetDevice(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if got.Status != StatusRunning {
		t.Errorf("status = %q, want %q", got.Status, StatusRunning)
	}
	if got.PowerLevel != 85 {
		t.Errorf("power = %d, want 85", got.PowerLevel)
	}
	if got.LastTrigger == nil || !got.LastTrigger.Equal(now) {
		t.Errorf("last trigger = %v, want %v", got.LastTrigger, now)
	}
}

func TestRegistrySetStateNotFound(t *testing.T) {
	reg, _ := setupRegistry(t)

	err := reg.SetState(context.Background(), "missing", StatusRunning, 50, nil)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("SetState() error = %v, want %v", err, ErrDeviceNotFound)
	}
}

func TestRegistrySetStateRejectsInvalidPower(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()

	d := testDevice("dev-1", "pond-1", CapAerator)
	if err := reg.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	if err := reg.SetState(ctx, "dev-1", StatusRunning, 101, nil); !errors.Is(err, ErrInvalidPowerLevel) {
		t.Errorf("SetState(101) error = %v, want %v", err, ErrInvalidPowerLevel)
	}
	if err := reg.SetState(ctx, "dev-1", StatusRunning, -1, nil); !errors.Is(err, ErrInvalidPowerLevel) {
		t.Errorf("SetState(-1) error = %v, want %v", err, ErrInvalidPowerLevel)
	}
}

func TestRegistryMarkOverride(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()

	d := testDevice("dev-1", "pond-1", CapOxygenPump)
	if err := reg.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	if err := reg.MarkOverride(ctx, "dev-1", true, 60); err != nil {
		t.Fatalf("MarkOverride: %v", err)
	}

	got, _ := reg.GetDevice(ctx, "dev-1")
	if !got.ManualOverride {
		t.Error("expected manual override enabled")
	}
	if got.PowerLevel != 60 {
		t.Errorf("power = %d, want 60", got.PowerLevel)
	}

	if err := reg.MarkOverride(ctx, "dev-1", false, 0); err != nil {
		t.Fatalf("MarkOverride clear: %v", err)
	}
	got, _ = reg.GetDevice(ctx, "dev-1")
	if got.ManualOverride {
		t.Error("expected manual override cleared")
	}
}

func TestRegistryListDevicesByPond(t *testing.T) {
	reg, repo := setupRegistry(t)
	ctx := context.Background()

	repo.ponds["pond-2"] = &Pond{ID: "pond-2", Name: "Pond 2", CreatedAt: time.Now().UTC()}

	for _, d := range []*HardwareDevice{
		testDevice("a1", "pond-1", CapAerator),
		testDevice("a2", "pond-1", CapHeater),
		testDevice("b1", "pond-2", CapAerator),
	} {
		if err := reg.CreateDevice(ctx, d); err != nil {
			t.Fatalf("CreateDevice(%s): %v", d.ID, err)
		}
	}

	all, err := reg.ListDevices(ctx, "")
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all devices = %d, want 3", len(all))
	}

	pond1, err := reg.ListDevices(ctx, "pond-1")
	if err != nil {
		t.Fatalf("ListDevices(pond-1): %v", err)
	}
	if len(pond1) != 2 {
		t.Errorf("pond-1 devices = %d, want 2", len(pond1))
	}
}

func TestRegistryGetDevicesByCapability(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()

	for _, d := range []*HardwareDevice{
		testDevice("a1", "pond-1", CapAerator),
		testDevice("a2", "pond-1", CapAerator),
		testDevice("h1", "pond-1", CapHeater),
	} {
		if err := reg.CreateDevice(ctx, d); err != nil {
			t.Fatalf("CreateDevice(%s): %v", d.ID, err)
		}
	}

	aerators, err := reg.GetDevicesByCapability(ctx, "pond-1", CapAerator)
	if err != nil {
		t.Fatalf("GetDevicesByCapability: %v", err)
	}
	if len(aerators) != 2 {
		t.Errorf("aerators = %d, want 2", len(aerators))
	}
	for _, d := range aerators {
		if d.Capability != CapAerator {
			t.Errorf("unexpected capability %q", d.Capability)
		}
	}
}

func TestRegistryCacheIsolation(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()

	d := testDevice("dev-1", "pond-1", CapAerator)
	if err := reg.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	// Mutating a returned copy must not affect the cache
	got, _ := reg.GetDevice(ctx, "dev-1")
	got.Status = StatusError
	got.PowerLevel = 99

	fresh, _ := reg.GetDevice(ctx, "dev-1")
	if fresh.Status != StatusStandby {
		t.Errorf("cache corrupted: status = %q", fresh.Status)
	}
	if fresh.PowerLevel != 0 {
		t.Errorf("cache corrupted: power = %d", fresh.PowerLevel)
	}
}

func TestRegistryRefreshCache(t *testing.T) {
	reg, repo := setupRegistry(t)
	ctx := context.Background()

	// Insert directly into the repository, bypassing the registry
	repo.devices["dev-raw"] = &HardwareDevice{
		ID: "dev-raw", Name: "Raw", PondID: "pond-1",
		Capability: CapWaterPump, Status: StatusStandby, IsConnected: true,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}

	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	got, err := reg.GetDevice(ctx, "dev-raw")
	if err != nil {
		t.Fatalf("GetDevice after refresh: %v", err)
	}
	if got.Name != "Raw" {
		t.Errorf("name = %q, want Raw", got.Name)
	}
}

func TestRegistryGetDeviceCount(t *testing.T) {
	reg, _ := setupRegistry(t)
	ctx := context.Background()

	if reg.GetDeviceCount() != 0 {
		t.Errorf("GetDeviceCount() = %d, want 0", reg.GetDeviceCount())
	}

	for _, id := range []string{"dev-1", "dev-2"} {
		if err := reg.CreateDevice(ctx, testDevice(id, "pond-1", CapAerator)); err != nil {
			t.Fatalf("CreateDevice(%s): %v", id, err)
		}
	}

	if reg.GetDeviceCount() != 2 {
		t.Errorf("GetDeviceCount() = %d, want 2", reg.GetDeviceCount())
	}

	if err := reg.DeleteDevice(ctx, "dev-1"); err != nil {
		t.Fatalf("DeleteDevice: %v", err)
	}
	if reg.GetDeviceCount() != 1 {
		t.Errorf("GetDeviceCount() after delete = %d, want 1", reg.GetDeviceCount())
	}
}

func TestIsHealthy(t *testing.T) {
	tests := []struct {
		name      string
		status    DeviceStatus
		connected bool
		want      bool
	}{
		{"standby connected", StatusStandby, true, true},
		{"running connected", StatusRunning, true, true},
		{"online connected", StatusOnline, true, true},
		{"error", StatusError, true, false},
		{"maintenance", StatusMaintenance, true, false},
		{"offline status", StatusOffline, true, false},
		{"disconnected", StatusStandby, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &HardwareDevice{Status: tt.status, IsConnected: tt.connected}
			if got := d.IsHealthy(); got != tt.want {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.want)
			}
		})
	}
}
