package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/aqua-logic-core/internal/device"
)

// DeviceRegistry is the interface the engine needs from the device package.
type DeviceRegistry interface {
	// GetDevice retrieves a single device.
	GetDevice(ctx context.Context, id string) (*device.HardwareDevice, error)

	// ListDevices retrieves all devices, or one pond's when pondID is set.
	ListDevices(ctx context.Context, pondID string) ([]device.HardwareDevice, error)

	// GetDevicesByCapability retrieves a pond's devices of one capability.
	GetDevicesByCapability(ctx context.Context, pondID string, capability device.Capability) ([]device.HardwareDevice, error)

	// SetState applies a status/power transition.
	SetState(ctx context.Context, id string, status device.DeviceStatus, power int, lastTrigger *time.Time) error

	// MarkOverride flips the manual-override flag, pinning power.
	MarkOverride(ctx context.Context, id string, enabled bool, power int) error

	// ListPonds retrieves all ponds.
	ListPonds(ctx context.Context) ([]device.Pond, error)
}

// TelemetrySource supplies the latest observed and forecasted values.
type TelemetrySource interface {
	Current(pondID, parameter string) (float64, bool)
	Predicted(pondID, parameter string) (float64, bool)
}

// CommandPublisher hands device commands to the external command
// boundary. Delivery guarantees are the boundary's concern; the device
// registry remains the source of truth for what was last commanded.
type CommandPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MetricsSink receives telemetry points for operator dashboards.
// Implementations must never block.
type MetricsSink interface {
	WriteTriggerEvent(configID, pondID, action, parameter string, value float64)
	WriteDevicePower(deviceID, pondID string, powerLevel int)
}

// Engine performs one full evaluation pass over all ponds and rules.
//
// A pass holds the engine mutex, so operator commands routed through
// the Engine (overrides, stop device) are atomic with respect to
// ticks: fully visible to the next tick or fully deferred to the one
// after.
type Engine struct {
	devices   DeviceRegistry
	telemetry TelemetrySource
	rules     *Store
	confirm   *Tracker
	safety    *Pipeline
	overrides *OverrideStore
	events    *EventLog
	publisher CommandPublisher // may be nil (commands only reflected in registry)
	sink      MetricsSink      // may be nil

	// lastActivated backs the cooldown check per (rule, pond). Seeded
	// lazily from the event log so cooldowns survive restarts.
	lastActivated map[bufferKey]time.Time

	mu     sync.Mutex
	logger Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine creates a decision engine.
//
// Parameters:
//   - devices: Device registry for target resolution and state changes
//   - telemetry: Latest-snapshot source for observed/forecasted values
//   - rules: Rule store
//   - confirm: Confirmation tracker
//   - safety: Safety check pipeline
//   - overrides: Manual override store
//   - events: Bounded event log
//   - publisher: Command boundary (may be nil)
//   - sink: Metrics sink (may be nil)
//   - logger: Logger instance (nil for silent)
func NewEngine(
	devices DeviceRegistry,
	telemetry TelemetrySource,
	rules *Store,
	confirm *Tracker,
	safety *Pipeline,
	overrides *OverrideStore,
	events *EventLog,
	publisher CommandPublisher,
	sink MetricsSink,
	logger Logger,
) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		devices:       devices,
		telemetry:     telemetry,
		rules:         rules,
		confirm:       confirm,
		safety:        safety,
		overrides:     overrides,
		events:        events,
		publisher:     publisher,
		sink:          sink,
		lastActivated: make(map[bufferKey]time.Time),
		logger:        logger,
		now:           time.Now,
	}
}

// Tick performs one full evaluation pass: expire due overrides,
// evaluate every pond against every applicable rule, then sweep
// auto-shutoff timers. Returns the decisions produced.
//
// No sub-operation blocks on external I/O; commands are fire-and-
// forget to the publisher, so a tick completes in bounded time.
func (e *Engine) Tick(ctx context.Context) []TriggerDecision {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.releaseExpiredOverrides(ctx)
	decisions := e.evaluateAll(ctx)
	e.autoShutoffSweep(ctx)
	return decisions
}

// evaluateAll runs the evaluation algorithm for every pond and rule.
func (e *Engine) evaluateAll(ctx context.Context) []TriggerDecision {
	ponds, err := e.devices.ListPonds(ctx)
	if err != nil {
		e.logger.Error("failed to list ponds", "error", err)
		return nil
	}

	var decisions []TriggerDecision

	// commanded tracks, per device, the priority rank of the rule that
	// already commanded it this tick. A later rule only overwrites a
	// device's state when its priority is strictly higher; equal
	// priorities resolve to the first-defined rule.
	commanded := make(map[string]int)

	for _, pond := range ponds {
		for _, rule := range e.rules.ApplicableRules(pond.ID) {
			decision := e.evaluateRule(ctx, pond.ID, rule, commanded)
			if decision != nil {
				decisions = append(decisions, *decision)
			}
		}
	}

	return decisions
}

// evaluateRule runs the per-(pond, rule) evaluation algorithm:
// condition, confirmation, target resolution, safety, power, commit.
// Returns nil when the rule is non-evaluable or the condition does not
// hold (no event is emitted in either case).
func (e *Engine) evaluateRule(ctx context.Context, pondID string, rule TriggerConfig, commanded map[string]int) *TriggerDecision {
	if rule.Kind != KindThreshold && rule.Kind != KindPrediction {
		// Manual and safety kinds are driven by operator commands and
		// external health signals, not by threshold evaluation.
		return nil
	}

	breach, evaluable := e.worstBreach(pondID, rule)
	if !evaluable {
		// Missing parameter: skip without clearing confirmations.
		return nil
	}
	if breach.severity == SeverityNone {
		// Condition cleared: drop the buffer the instant it stops holding.
		e.confirm.Clear(rule.ID, pondID)
		return nil
	}

	count := e.confirm.Record(rule.ID, pondID, breach.value, rule.ConfirmationReadings)

	targets, err := e.resolveTargets(ctx, pondID, rule, breach.threshold.Parameter)
	if err != nil {
		e.logger.Error("failed to resolve targets",
			"config_id", rule.ID, "pond_id", pondID, "error", err)
		return nil
	}
	if len(targets) == 0 {
		// All candidates overridden or none exist: skip, no event.
		return nil
	}

	checks := e.safety.Run(PipelineInput{
		Parameter:            breach.threshold.Parameter,
		Value:                breach.value,
		LastActivated:        e.lastActivatedAt(rule.ID, pondID),
		CooldownSeconds:      rule.CooldownSeconds,
		Devices:              targets,
		ConfirmationCount:    count,
		ConfirmationRequired: rule.ConfirmationReadings,
		Priority:             rule.Priority,
	})
	allPassed := AllPassed(checks)

	power := ComputePowerLevel(breach.value, breach.threshold, rule.Priority)

	targetIDs := make([]string, len(targets))
	for i := range targets {
		targetIDs[i] = targets[i].ID
	}

	decision := &TriggerDecision{
		ConfigID:        rule.ID,
		PondID:          pondID,
		Parameter:       breach.threshold.Parameter,
		Value:           breach.value,
		ShouldTrigger:   true,
		TargetDeviceIDs: targetIDs,
		PowerLevel:      power,
		Checks:          checks,
		AllChecksPassed: allPassed,
	}

	event := &TriggerEvent{
		ConfigID:        rule.ID,
		PondID:          pondID,
		Parameter:       breach.threshold.Parameter,
		Value:           breach.value,
		Threshold:       CrossedBoundary(breach.value, breach.threshold),
		DeviceIDs:       targetIDs,
		Priority:        rule.Priority,
		PredictionBased: rule.Kind == KindPrediction,
		Confirmed:       count >= rule.ConfirmationReadings,
	}

	if allPassed {
		decision.Reasoning = fmt.Sprintf("%s %.2f breached %.2f, commanding %d device(s) at power %d",
			breach.threshold.Parameter, breach.value, event.Threshold, len(targets), power)
		e.activate(ctx, pondID, rule, targets, power, commanded)
		e.lastActivated[bufferKey{ConfigID: rule.ID, PondID: pondID}] = e.now().UTC()
		event.Action = ActionActivated
	} else {
		decision.Reasoning = FailureReasons(checks)
		event.Action = ActionBlocked
		event.BlockReason = decision.Reasoning
	}

	e.events.Append(ctx, event)
	if e.sink != nil {
		e.sink.WriteTriggerEvent(rule.ID, pondID, string(event.Action), event.Parameter, event.Value)
	}

	e.logger.Debug("rule evaluated",
		"config_id", rule.ID, "pond_id", pondID, "action", event.Action,
		"parameter", event.Parameter, "value", event.Value, "power", power)

	return decision
}

// breachResult captures the worst threshold violation found for a rule.
type breachResult struct {
	threshold TriggerThreshold
	value     float64
	severity  Severity
}

// worstBreach evaluates every threshold of a rule against the pond's
// telemetry. Prediction rules read the forecasted value instead of the
// observed one. The second return is false when no threshold was
// evaluable (all parameters missing or stale).
func (e *Engine) worstBreach(pondID string, rule TriggerConfig) (breachResult, bool) {
	var best breachResult
	evaluable := false

	for _, th := range rule.Thresholds {
		var value float64
		var ok bool
		if rule.Kind == KindPrediction {
			value, ok = e.telemetry.Predicted(pondID, th.Parameter)
		} else {
			value, ok = e.telemetry.Current(pondID, th.Parameter)
		}
		if !ok {
			continue
		}

		sev := EvaluateThreshold(value, th)
		if !evaluable || sev > best.severity {
			best = breachResult{threshold: th, value: value, severity: sev}
		}
		evaluable = true
	}

	return best, evaluable
}

// resolveTargets produces the device set a passing rule would command:
// the explicit list, or the pond's devices of the capability relevant
// to the breached parameter, minus any device under an enabled manual
// override.
func (e *Engine) resolveTargets(ctx context.Context, pondID string, rule TriggerConfig, parameter string) ([]device.HardwareDevice, error) {
	var candidates []device.HardwareDevice

	if len(rule.TargetDeviceIDs) > 0 {
		for _, id := range rule.TargetDeviceIDs {
			d, err := e.devices.GetDevice(ctx, id)
			if err != nil {
				e.logger.Warn("explicit target device missing", "config_id", rule.ID, "device_id", id)
				continue
			}
			if d.PondID != pondID {
				continue
			}
			candidates = append(candidates, *d)
		}
	} else {
		capability, ok := CapabilityForParameter(parameter)
		if !ok {
			return nil, nil
		}
		devices, err := e.devices.GetDevicesByCapability(ctx, pondID, capability)
		if err != nil {
			return nil, err
		}
		candidates = devices
	}

	targets := candidates[:0]
	for _, d := range candidates {
		if d.ManualOverride || e.overrides.IsOverridden(d.ID) {
			continue
		}
		targets = append(targets, d)
	}
	return targets, nil
}

// activate commits an all-checks-passed decision: transitions each
// target to running at the computed power and emits commands, subject
// to this tick's per-device arbitration.
func (e *Engine) activate(ctx context.Context, pondID string, rule TriggerConfig, targets []device.HardwareDevice, power int, commanded map[string]int) {
	rank := rule.Priority.Rank()
	now := e.now().UTC()

	for i := range targets {
		id := targets[i].ID
		if prev, ok := commanded[id]; ok && prev >= rank {
			// A same-or-higher priority rule already commanded this
			// device this tick; first-defined wins on equal priority.
			continue
		}
		commanded[id] = rank

		if err := e.devices.SetState(ctx, id, device.StatusRunning, power, &now); err != nil {
			e.logger.Error("failed to set device state",
				"device_id", id, "config_id", rule.ID, "error", err)
			continue
		}

		e.publishCommand(pondID, id, device.StatusRunning, power, "trigger:"+rule.ID)
		if e.sink != nil {
			e.sink.WriteDevicePower(id, pondID, power)
		}
	}
}

// autoShutoffSweep returns long-running devices to standby. A device
// that has been running longer than its governing rule's
// auto_shutoff_minutes without a fresh activation is deactivated;
// overridden devices are left alone.
func (e *Engine) autoShutoffSweep(ctx context.Context) {
	devices, err := e.devices.ListDevices(ctx, "")
	if err != nil {
		e.logger.Error("auto-shutoff sweep failed to list devices", "error", err)
		return
	}

	now := e.now().UTC()
	for i := range devices {
		d := &devices[i]
		if d.Status != device.StatusRunning || d.ManualOverride || e.overrides.IsOverridden(d.ID) {
			continue
		}
		if d.LastTrigger == nil {
			continue
		}

		shutoff, ok := e.shutoffFor(d)
		if !ok {
			continue
		}
		if now.Sub(*d.LastTrigger) < shutoff {
			continue
		}

		if err := e.devices.SetState(ctx, d.ID, device.StatusStandby, 0, d.LastTrigger); err != nil {
			e.logger.Error("auto-shutoff failed", "device_id", d.ID, "error", err)
			continue
		}
		e.publishCommand(d.PondID, d.ID, device.StatusStandby, 0, "auto_shutoff")

		e.events.Append(ctx, &TriggerEvent{
			PondID:    d.PondID,
			Action:    ActionDeactivated,
			DeviceIDs: []string{d.ID},
			Priority:  PriorityLow,
			Confirmed: true,
			Message:   fmt.Sprintf("auto shutoff after %s without re-confirmation", shutoff),
		})

		e.logger.Info("device auto shutoff", "device_id", d.ID, "running_since", d.LastTrigger)
	}
}

// shutoffFor finds the shortest positive auto-shutoff duration among
// enabled rules that could command this device.
func (e *Engine) shutoffFor(d *device.HardwareDevice) (time.Duration, bool) {
	var best time.Duration
	found := false

	for _, rule := range e.rules.ApplicableRules(d.PondID) {
		if rule.AutoShutoffMinutes <= 0 {
			continue
		}
		if !e.ruleTargets(rule, d) {
			continue
		}
		dur := time.Duration(rule.AutoShutoffMinutes) * time.Minute
		if !found || dur < best {
			best = dur
			found = true
		}
	}
	return best, found
}

// ruleTargets reports whether a rule's target set could include the device.
func (e *Engine) ruleTargets(rule TriggerConfig, d *device.HardwareDevice) bool {
	if len(rule.TargetDeviceIDs) > 0 {
		for _, id := range rule.TargetDeviceIDs {
			if id == d.ID {
				return true
			}
		}
		return false
	}
	for _, th := range rule.Thresholds {
		if capability, ok := CapabilityForParameter(th.Parameter); ok && capability == d.Capability {
			return true
		}
	}
	return false
}

// releaseExpiredOverrides clears overrides past their expiry and
// releases the devices back to automatic control.
func (e *Engine) releaseExpiredOverrides(ctx context.Context) {
	for _, o := range e.overrides.ExpireDue(ctx, e.now().UTC()) {
		if err := e.devices.MarkOverride(ctx, o.DeviceID, false, o.PowerLevel); err != nil {
			e.logger.Error("failed to release expired override",
				"device_id", o.DeviceID, "error", err)
		}
	}
}

// lastActivatedAt returns when a rule last activated for a pond,
// falling back to the event log when the in-memory map is cold.
func (e *Engine) lastActivatedAt(configID, pondID string) time.Time {
	key := bufferKey{ConfigID: configID, PondID: pondID}
	if t, ok := e.lastActivated[key]; ok {
		return t
	}
	t := e.events.LastActivated(configID, pondID)
	if !t.IsZero() {
		e.lastActivated[key] = t
	}
	return t
}

// commandPayload is the wire format published on
// aqualogic/command/{pond}/{device}.
type commandPayload struct {
	DeviceID   string `json:"device_id"`
	PondID     string `json:"pond_id"`
	Status     string `json:"status"`
	PowerLevel int    `json:"power_level"`
	Source     string `json:"source"`
	IssuedAt   string `json:"issued_at"`
}

// publishCommand hands a state change to the command boundary.
// Publish failures are logged, never propagated: the registry is the
// source of truth, delivery is the boundary's problem.
func (e *Engine) publishCommand(pondID, deviceID string, status device.DeviceStatus, power int, source string) {
	if e.publisher == nil {
		return
	}

	payload, err := json.Marshal(commandPayload{
		DeviceID:   deviceID,
		PondID:     pondID,
		Status:     string(status),
		PowerLevel: power,
		Source:     source,
		IssuedAt:   e.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		e.logger.Error("failed to marshal command", "device_id", deviceID, "error", err)
		return
	}

	topic := "aqualogic/command/" + pondID + "/" + deviceID
	if err := e.publisher.Publish(topic, payload, 1, false); err != nil {
		e.logger.Error("failed to publish command", "topic", topic, "error", err)
	}
}

// ResetConfirmations drops every confirmation buffer. Called when the
// system is re-enabled after a pause.
func (e *Engine) ResetConfirmations() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.confirm.Reset()
}

// SetManualOverride pins a device at the given power under operator
// control and records the action. Atomic with respect to ticks.
func (e *Engine) SetManualOverride(ctx context.Context, deviceID string, power, durationMinutes int, reason, operator string) error {
	if err := device.ValidatePowerLevel(power); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}

	if _, err := e.overrides.Set(ctx, deviceID, power, durationMinutes, reason, operator); err != nil {
		return err
	}
	if err := e.devices.MarkOverride(ctx, deviceID, true, power); err != nil {
		return err
	}

	status := device.StatusRunning
	if power == 0 {
		status = device.StatusStandby
	}
	if err := e.devices.SetState(ctx, deviceID, status, power, d.LastTrigger); err != nil {
		return err
	}
	e.publishCommand(d.PondID, deviceID, status, power, "override:"+operator)

	e.events.Append(ctx, &TriggerEvent{
		PondID:    d.PondID,
		Action:    ActionManualOverride,
		DeviceIDs: []string{deviceID},
		Priority:  PriorityHigh,
		Confirmed: true,
		Message: fmt.Sprintf("manual override set: power %d, reason %q, operator %s",
			power, reason, operator),
	})
	if e.sink != nil {
		e.sink.WriteDevicePower(deviceID, d.PondID, power)
	}

	return nil
}

// ClearManualOverride releases a device back to automatic control.
// The device keeps its pinned state until the next tick re-evaluates it.
func (e *Engine) ClearManualOverride(ctx context.Context, deviceID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}

	if err := e.overrides.Clear(ctx, deviceID); err != nil {
		return err
	}
	if err := e.devices.MarkOverride(ctx, deviceID, false, d.PowerLevel); err != nil {
		return err
	}

	e.events.Append(ctx, &TriggerEvent{
		PondID:    d.PondID,
		Action:    ActionManualOverride,
		DeviceIDs: []string{deviceID},
		Priority:  PriorityHigh,
		Confirmed: true,
		Message:   "manual override cleared",
	})

	return nil
}

// StopDevice returns a device to standby at power 0 on operator
// command, regardless of rule state. Atomic with respect to ticks.
func (e *Engine) StopDevice(ctx context.Context, deviceID, operator string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}

	if err := e.devices.SetState(ctx, deviceID, device.StatusStandby, 0, d.LastTrigger); err != nil {
		return err
	}
	e.publishCommand(d.PondID, deviceID, device.StatusStandby, 0, "operator:"+operator)

	e.events.Append(ctx, &TriggerEvent{
		PondID:    d.PondID,
		Action:    ActionDeactivated,
		DeviceIDs: []string{deviceID},
		Priority:  PriorityMedium,
		Confirmed: true,
		Message:   "stopped by operator " + operator,
	})

	return nil
}
