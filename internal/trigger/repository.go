package trigger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Repository defines the persistence operations for trigger configs,
// events and manual overrides. The SQLite implementation below is the
// production one; tests substitute in-memory mocks.
type Repository interface {
	// ListConfigs retrieves all trigger configs.
	ListConfigs(ctx context.Context) ([]TriggerConfig, error)

	// CreateConfig inserts a new config.
	// Returns ErrConfigExists if the ID already exists.
	CreateConfig(ctx context.Context, cfg *TriggerConfig) error

	// UpdateConfig modifies an existing config.
	// Returns ErrConfigNotFound if the config does not exist.
	UpdateConfig(ctx context.Context, cfg *TriggerConfig) error

	// CreateEvent inserts a new event.
	CreateEvent(ctx context.Context, ev *TriggerEvent) error

	// AcknowledgeEvent flips the acknowledged flag on a persisted event.
	// Returns ErrEventNotFound if the event does not exist.
	AcknowledgeEvent(ctx context.Context, id string) error

	// ListEvents retrieves the most recent events, newest first.
	ListEvents(ctx context.Context, limit int) ([]TriggerEvent, error)

	// ListOverrides retrieves all manual overrides.
	ListOverrides(ctx context.Context) ([]ManualOverride, error)

	// SaveOverride inserts or replaces the override for a device.
	SaveOverride(ctx context.Context, o *ManualOverride) error

	// DeleteOverride removes the override for a device.
	// Returns ErrOverrideNotFound if none exists.
	DeleteOverride(ctx context.Context, deviceID string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const configColumns = `id, name, enabled, pond_id, kind, thresholds, target_device_ids,
		forecast_horizon_hours, cooldown_seconds, confirmation_readings,
		auto_shutoff_minutes, priority, sort_order, created_at, updated_at`

// ListConfigs retrieves all trigger configs in insertion order.
func (r *SQLiteRepository) ListConfigs(ctx context.Context) ([]TriggerConfig, error) {
	query := `SELECT ` + configColumns + ` FROM trigger_configs ORDER BY sort_order`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying trigger configs: %w", err)
	}
	defer rows.Close()

	var configs []TriggerConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trigger config: %w", err)
		}
		configs = append(configs, *cfg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trigger configs: %w", err)
	}

	return configs, nil
}

// CreateConfig inserts a new config.
func (r *SQLiteRepository) CreateConfig(ctx context.Context, cfg *TriggerConfig) error {
	thresholdsJSON, err := json.Marshal(cfg.Thresholds)
	if err != nil {
		return fmt.Errorf("marshalling thresholds: %w", err)
	}
	targetsJSON, err := json.Marshal(cfg.TargetDeviceIDs)
	if err != nil {
		return fmt.Errorf("marshalling target device ids: %w", err)
	}

	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	query := `
		INSERT INTO trigger_configs (
			id, name, enabled, pond_id, kind, thresholds, target_device_ids,
			forecast_horizon_hours, cooldown_seconds, confirmation_readings,
			auto_shutoff_minutes, priority, sort_order, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		cfg.ID,
		cfg.Name,
		boolToInt(cfg.Enabled),
		cfg.PondID,
		string(cfg.Kind),
		string(thresholdsJSON),
		string(targetsJSON),
		cfg.ForecastHorizonHours,
		cfg.CooldownSeconds,
		cfg.ConfirmationReadings,
		cfg.AutoShutoffMinutes,
		string(cfg.Priority),
		cfg.SortOrder,
		cfg.CreatedAt.Format(time.RFC3339),
		cfg.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrConfigExists
		}
		return fmt.Errorf("inserting trigger config: %w", err)
	}

	return nil
}

// UpdateConfig modifies an existing config.
func (r *SQLiteRepository) UpdateConfig(ctx context.Context, cfg *TriggerConfig) error {
	thresholdsJSON, err := json.Marshal(cfg.Thresholds)
	if err != nil {
		return fmt.Errorf("marshalling thresholds: %w", err)
	}
	targetsJSON, err := json.Marshal(cfg.TargetDeviceIDs)
	if err != nil {
		return fmt.Errorf("marshalling target device ids: %w", err)
	}

	cfg.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE trigger_configs SET
			name = ?, enabled = ?, pond_id = ?, kind = ?, thresholds = ?,
			target_device_ids = ?, forecast_horizon_hours = ?, cooldown_seconds = ?,
			confirmation_readings = ?, auto_shutoff_minutes = ?, priority = ?,
			sort_order = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		cfg.Name,
		boolToInt(cfg.Enabled),
		cfg.PondID,
		string(cfg.Kind),
		string(thresholdsJSON),
		string(targetsJSON),
		cfg.ForecastHorizonHours,
		cfg.CooldownSeconds,
		cfg.ConfirmationReadings,
		cfg.AutoShutoffMinutes,
		string(cfg.Priority),
		cfg.SortOrder,
		cfg.UpdatedAt.Format(time.RFC3339),
		cfg.ID,
	)
	if err != nil {
		return fmt.Errorf("updating trigger config: %w", err)
	}

	return checkAffected(result, ErrConfigNotFound)
}

// CreateEvent inserts a new event.
func (r *SQLiteRepository) CreateEvent(ctx context.Context, ev *TriggerEvent) error {
	deviceIDsJSON, err := json.Marshal(ev.DeviceIDs)
	if err != nil {
		return fmt.Errorf("marshalling device ids: %w", err)
	}

	query := `
		INSERT INTO trigger_events (
			id, created_at, config_id, pond_id, parameter, value, threshold,
			action, device_ids, priority, prediction_based, confirmed,
			message, block_reason, acknowledged
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		ev.ID,
		ev.CreatedAt.Format(time.RFC3339),
		ev.ConfigID,
		ev.PondID,
		ev.Parameter,
		ev.Value,
		ev.Threshold,
		string(ev.Action),
		string(deviceIDsJSON),
		string(ev.Priority),
		boolToInt(ev.PredictionBased),
		boolToInt(ev.Confirmed),
		ev.Message,
		ev.BlockReason,
		boolToInt(ev.Acknowledged),
	)
	if err != nil {
		return fmt.Errorf("inserting trigger event: %w", err)
	}

	return nil
}

// AcknowledgeEvent flips the acknowledged flag on a persisted event.
func (r *SQLiteRepository) AcknowledgeEvent(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE trigger_events SET acknowledged = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("acknowledging trigger event: %w", err)
	}
	return checkAffected(result, ErrEventNotFound)
}

// ListEvents retrieves the most recent events, newest first.
func (r *SQLiteRepository) ListEvents(ctx context.Context, limit int) ([]TriggerEvent, error) {
	if limit <= 0 {
		limit = DefaultEventLogCapacity
	}

	query := `
		SELECT id, created_at, config_id, pond_id, parameter, value, threshold,
			action, device_ids, priority, prediction_based, confirmed,
			message, block_reason, acknowledged
		FROM trigger_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying trigger events: %w", err)
	}
	defer rows.Close()

	var events []TriggerEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trigger event: %w", err)
		}
		events = append(events, *ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trigger events: %w", err)
	}

	return events, nil
}

// ListOverrides retrieves all manual overrides.
func (r *SQLiteRepository) ListOverrides(ctx context.Context) ([]ManualOverride, error) {
	query := `
		SELECT device_id, enabled, power_level, started_at, expires_at, reason, operator
		FROM manual_overrides`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying overrides: %w", err)
	}
	defer rows.Close()

	var overrides []ManualOverride
	for rows.Next() {
		var o ManualOverride
		var enabled int
		var startedAt string
		var expiresAt sql.NullString

		if err := rows.Scan(&o.DeviceID, &enabled, &o.PowerLevel, &startedAt, &expiresAt, &o.Reason, &o.Operator); err != nil {
			return nil, fmt.Errorf("scanning override: %w", err)
		}

		o.Enabled = enabled != 0
		o.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing override started_at: %w", err)
		}
		if expiresAt.Valid {
			t, err := time.Parse(time.RFC3339, expiresAt.String)
			if err == nil {
				o.ExpiresAt = &t
			}
		}

		overrides = append(overrides, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating overrides: %w", err)
	}

	return overrides, nil
}

// SaveOverride inserts or replaces the override for a device.
func (r *SQLiteRepository) SaveOverride(ctx context.Context, o *ManualOverride) error {
	var expiresAt sql.NullString
	if o.ExpiresAt != nil {
		expiresAt = sql.NullString{String: o.ExpiresAt.UTC().Format(time.RFC3339), Valid: true}
	}

	query := `
		INSERT INTO manual_overrides (device_id, enabled, power_level, started_at, expires_at, reason, operator)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			enabled = excluded.enabled,
			power_level = excluded.power_level,
			started_at = excluded.started_at,
			expires_at = excluded.expires_at,
			reason = excluded.reason,
			operator = excluded.operator`

	_, err := r.db.ExecContext(ctx, query,
		o.DeviceID,
		boolToInt(o.Enabled),
		o.PowerLevel,
		o.StartedAt.UTC().Format(time.RFC3339),
		expiresAt,
		o.Reason,
		o.Operator,
	)
	if err != nil {
		return fmt.Errorf("saving override: %w", err)
	}

	return nil
}

// DeleteOverride removes the override for a device.
func (r *SQLiteRepository) DeleteOverride(ctx context.Context, deviceID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM manual_overrides WHERE device_id = ?", deviceID)
	if err != nil {
		return fmt.Errorf("deleting override: %w", err)
	}
	return checkAffected(result, ErrOverrideNotFound)
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanConfig scans a row or rows result into a TriggerConfig.
func scanConfig(scanner rowScanner) (*TriggerConfig, error) {
	var cfg TriggerConfig
	var enabled int
	var kind, priority string
	var thresholdsJSON, targetsJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&cfg.ID,
		&cfg.Name,
		&enabled,
		&cfg.PondID,
		&kind,
		&thresholdsJSON,
		&targetsJSON,
		&cfg.ForecastHorizonHours,
		&cfg.CooldownSeconds,
		&cfg.ConfirmationReadings,
		&cfg.AutoShutoffMinutes,
		&priority,
		&cfg.SortOrder,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled != 0
	cfg.Kind = TriggerKind(kind)
	cfg.Priority = Priority(priority)

	if err := json.Unmarshal([]byte(thresholdsJSON), &cfg.Thresholds); err != nil {
		return nil, fmt.Errorf("unmarshalling thresholds: %w", err)
	}
	if err := json.Unmarshal([]byte(targetsJSON), &cfg.TargetDeviceIDs); err != nil {
		return nil, fmt.Errorf("unmarshalling target device ids: %w", err)
	}

	var parseErr error
	cfg.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	cfg.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &cfg, nil
}

// scanEvent scans a row or rows result into a TriggerEvent.
func scanEvent(scanner rowScanner) (*TriggerEvent, error) {
	var ev TriggerEvent
	var createdAt string
	var action, priority string
	var deviceIDsJSON string
	var predictionBased, confirmed, acknowledged int

	err := scanner.Scan(
		&ev.ID,
		&createdAt,
		&ev.ConfigID,
		&ev.PondID,
		&ev.Parameter,
		&ev.Value,
		&ev.Threshold,
		&action,
		&deviceIDsJSON,
		&priority,
		&predictionBased,
		&confirmed,
		&ev.Message,
		&ev.BlockReason,
		&acknowledged,
	)
	if err != nil {
		return nil, err
	}

	ev.Action = EventAction(action)
	ev.Priority = Priority(priority)
	ev.PredictionBased = predictionBased != 0
	ev.Confirmed = confirmed != 0
	ev.Acknowledged = acknowledged != 0

	if err := json.Unmarshal([]byte(deviceIDsJSON), &ev.DeviceIDs); err != nil {
		return nil, fmt.Errorf("unmarshalling device ids: %w", err)
	}

	ev.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &ev, nil
}

// checkAffected returns notFound when an UPDATE/DELETE touched no rows.
func checkAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}

// Ensure the SQLite implementation satisfies the interface.
var _ Repository = (*SQLiteRepository)(nil)
