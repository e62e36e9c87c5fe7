package trigger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCheckInterval is the evaluation cadence when none is configured.
const DefaultCheckInterval = 10 * time.Second

// Status is the scheduler's contribution to the system status snapshot.
type Status struct {
	Enabled              bool      `json:"enabled"`
	LastCheck            time.Time `json:"last_check"`
	NextCheck            time.Time `json:"next_check"`
	CheckIntervalSeconds int       `json:"check_interval_seconds"`
	SkippedTicks         int64     `json:"skipped_ticks"`
	ActiveTriggers       int       `json:"active_triggers"`
	PendingDecisions     int       `json:"pending_decisions"`
}

// Scheduler drives the engine on a fixed cadence.
//
// Ticks never overlap: if an evaluation pass is still running when the
// next tick is due, that tick is dropped (not queued) and counted.
// The confirmation tracker's "N consecutive readings" semantics and
// the cooldown arithmetic both assume exactly one pass per interval;
// overlapping passes would double-count confirmations.
//
// Disabling stops scheduling further ticks but never rolls back a
// committed pass: devices left running stay running until auto-shutoff,
// an operator stop, or restart.
type Scheduler struct {
	engine   *Engine
	interval time.Duration

	enabled atomic.Bool
	ticking atomic.Bool
	skipped atomic.Int64

	mu             sync.RWMutex
	lastCheck      time.Time
	nextCheck      time.Time
	lastDecisions  []TriggerDecision
	activeTriggers int

	cancel context.CancelFunc
	done   chan struct{}
	logger Logger
}

// NewScheduler creates a scheduler for the given engine.
// An interval <= 0 falls back to DefaultCheckInterval.
func NewScheduler(engine *Engine, interval time.Duration, logger Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	s := &Scheduler{
		engine:   engine,
		interval: interval,
		logger:   logger,
	}
	s.enabled.Store(true)
	return s
}

// Start launches the tick loop. It returns immediately; the loop runs
// until Stop is called or the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("scheduler started", "interval", s.interval)
}

// Stop halts the tick loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one evaluation pass unless the system is disabled or a
// previous pass is still running (in which case the tick is dropped).
func (s *Scheduler) tick(ctx context.Context) {
	if !s.enabled.Load() {
		return
	}

	if !s.ticking.CompareAndSwap(false, true) {
		n := s.skipped.Add(1)
		s.logger.Warn("tick skipped, previous pass still running", "skipped_total", n)
		return
	}
	defer s.ticking.Store(false)

	start := time.Now().UTC()
	decisions := s.engine.Tick(ctx)

	active := 0
	for i := range decisions {
		if decisions[i].AllChecksPassed {
			active++
		}
	}

	s.mu.Lock()
	s.lastCheck = start
	s.nextCheck = start.Add(s.interval)
	s.lastDecisions = decisions
	s.activeTriggers = active
	s.mu.Unlock()

	s.logger.Debug("tick complete",
		"decisions", len(decisions), "activated", active,
		"duration_ms", time.Since(start).Milliseconds())
}

// RunOnce forces a single evaluation pass outside the cadence, for
// operator tooling. Returns ErrSystemDisabled when disabled; drops the
// request (nil decisions) when a pass is already running.
func (s *Scheduler) RunOnce(ctx context.Context) ([]TriggerDecision, error) {
	if !s.enabled.Load() {
		return nil, ErrSystemDisabled
	}
	if !s.ticking.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		return nil, nil
	}
	defer s.ticking.Store(false)

	decisions := s.engine.Tick(ctx)

	active := 0
	for i := range decisions {
		if decisions[i].AllChecksPassed {
			active++
		}
	}

	s.mu.Lock()
	s.lastCheck = time.Now().UTC()
	s.nextCheck = s.lastCheck.Add(s.interval)
	s.lastDecisions = decisions
	s.activeTriggers = active
	s.mu.Unlock()

	return decisions, nil
}

// SetEnabled enables or disables scheduling. Re-enabling resets the
// confirmation tracker so breaches observed before the pause cannot
// count toward a fresh activation.
func (s *Scheduler) SetEnabled(enabled bool) {
	was := s.enabled.Swap(enabled)
	if was == enabled {
		return
	}
	if enabled {
		s.engine.ResetConfirmations()
	}
	s.logger.Info("system enabled state changed", "enabled", enabled)
}

// IsEnabled reports whether scheduling is active.
func (s *Scheduler) IsEnabled() bool {
	return s.enabled.Load()
}

// Status returns the scheduler's status snapshot.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pending := 0
	for i := range s.lastDecisions {
		if !s.lastDecisions[i].AllChecksPassed {
			pending++
		}
	}

	return Status{
		Enabled:              s.enabled.Load(),
		LastCheck:            s.lastCheck,
		NextCheck:            s.nextCheck,
		CheckIntervalSeconds: int(s.interval.Seconds()),
		SkippedTicks:         s.skipped.Load(),
		ActiveTriggers:       s.activeTriggers,
		PendingDecisions:     pending,
	}
}

// LastDecisions returns the decisions from the most recent pass.
func (s *Scheduler) LastDecisions() []TriggerDecision {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TriggerDecision, len(s.lastDecisions))
	copy(out, s.lastDecisions)
	return out
}
