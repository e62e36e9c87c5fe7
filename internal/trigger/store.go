package trigger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by this package.
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

// Store holds the set of trigger configurations the engine evaluates.
//
// Rules live in memory in insertion order (SortOrder) and are written
// through to the repository on every mutation. Operator mutations
// (toggle, threshold edits) validate before committing — a malformed
// rule is rejected here, never discovered mid-tick.
//
// All public methods are thread-safe.
type Store struct {
	repo    Repository
	mu      sync.RWMutex
	ordered []*TriggerConfig // insertion order
	byID    map[string]*TriggerConfig
	logger  Logger
}

// NewStore creates a rule store backed by the given repository.
func NewStore(repo Repository) *Store {
	return &Store{
		repo:   repo,
		byID:   make(map[string]*TriggerConfig),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Load reads all configs from the repository into memory.
// This should be called on application startup, after seeding.
func (s *Store) Load(ctx context.Context) error {
	configs, err := s.repo.ListConfigs(ctx)
	if err != nil {
		return fmt.Errorf("loading trigger configs: %w", err)
	}

	sort.SliceStable(configs, func(i, j int) bool {
		return configs[i].SortOrder < configs[j].SortOrder
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ordered = make([]*TriggerConfig, 0, len(configs))
	s.byID = make(map[string]*TriggerConfig, len(configs))
	for i := range configs {
		c := configs[i].DeepCopy()
		s.ordered = append(s.ordered, c)
		s.byID[c.ID] = c
	}

	s.logger.Info("trigger configs loaded", "count", len(configs))
	return nil
}

// Create validates and persists a new rule, appending it to the
// insertion order.
func (s *Store) Create(ctx context.Context, cfg *TriggerConfig) error {
	if cfg.ID == "" {
		cfg.ID = GenerateID()
	}

	if err := ValidateConfig(cfg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[cfg.ID]; exists {
		return ErrConfigExists
	}

	cfg.SortOrder = len(s.ordered)
	if err := s.repo.CreateConfig(ctx, cfg); err != nil {
		return err
	}

	c := cfg.DeepCopy()
	s.ordered = append(s.ordered, c)
	s.byID[c.ID] = c

	s.logger.Info("trigger config created", "id", cfg.ID, "name", cfg.Name, "priority", cfg.Priority)
	return nil
}

// Get retrieves a config by ID.
// The returned config is a deep copy; callers can safely modify it.
func (s *Store) Get(id string) (*TriggerConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, ErrConfigNotFound
	}
	return c.DeepCopy(), nil
}

// List returns all configs in insertion order.
// The returned configs are deep copies; callers can safely modify them.
func (s *Store) List() []TriggerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	configs := make([]TriggerConfig, 0, len(s.ordered))
	for _, c := range s.ordered {
		configs = append(configs, *c.DeepCopy())
	}
	return configs
}

// ApplicableRules returns all enabled rules whose target is "all" or
// equals pondID, in insertion order. First-defined rules come first:
// when two rules of equal priority contend for a device in one tick,
// position in this slice breaks the tie.
func (s *Store) ApplicableRules(pondID string) []TriggerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rules []TriggerConfig
	for _, c := range s.ordered {
		if c.Enabled && c.AppliesTo(pondID) {
			rules = append(rules, *c.DeepCopy())
		}
	}
	return rules
}

// Toggle enables or disables a rule. Disabling is the only supported
// removal path during a run; rules are never silently deleted.
func (s *Store) Toggle(ctx context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return ErrConfigNotFound
	}

	updated := c.DeepCopy()
	updated.Enabled = enabled
	updated.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateConfig(ctx, updated); err != nil {
		return err
	}

	*c = *updated
	s.logger.Info("trigger config toggled", "id", id, "enabled", enabled)
	return nil
}

// UpdateThreshold mutates one boundary field of one parameter's
// threshold in place. The full ordering invariant is re-validated
// before anything is committed, so a mis-ordered edit is rejected
// atomically.
//
// Valid fields: soft_min, soft_max, critical_min, critical_max.
func (s *Store) UpdateThreshold(ctx context.Context, id, parameter, field string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return ErrConfigNotFound
	}

	updated := c.DeepCopy()
	idx := -1
	for i := range updated.Thresholds {
		if updated.Thresholds[i].Parameter == parameter {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: no threshold for parameter %q", ErrInvalidThreshold, parameter)
	}

	th := &updated.Thresholds[idx]
	switch field {
	case "soft_min":
		th.SoftMin = value
	case "soft_max":
		th.SoftMax = value
	case "critical_min":
		th.CriticalMin = value
	case "critical_max":
		th.CriticalMax = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownThresholdField, field)
	}

	if err := ValidateThreshold(th); err != nil {
		return err
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateConfig(ctx, updated); err != nil {
		return err
	}

	*c = *updated
	s.logger.Info("trigger threshold updated",
		"id", id, "parameter", parameter, "field", field, "value", value)
	return nil
}

// Count returns the number of configs, and how many are enabled.
func (s *Store) Count() (total, enabled int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.ordered {
		total++
		if c.Enabled {
			enabled++
		}
	}
	return total, enabled
}
