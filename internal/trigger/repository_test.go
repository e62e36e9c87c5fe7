package trigger

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the trigger
// tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE trigger_configs (
			id                     TEXT PRIMARY KEY,
			name                   TEXT NOT NULL,
			enabled                INTEGER NOT NULL DEFAULT 1,
			pond_id                TEXT NOT NULL,
			kind                   TEXT NOT NULL,
			thresholds             TEXT NOT NULL,
			target_device_ids      TEXT NOT NULL,
			forecast_horizon_hours INTEGER NOT NULL DEFAULT 0,
			cooldown_seconds       INTEGER NOT NULL,
			confirmation_readings  INTEGER NOT NULL,
			auto_shutoff_minutes   INTEGER NOT NULL,
			priority               TEXT NOT NULL,
			sort_order             INTEGER NOT NULL,
			created_at             TEXT NOT NULL,
			updated_at             TEXT NOT NULL
		);
		CREATE TABLE trigger_events (
			id               TEXT PRIMARY KEY,
			created_at       TEXT NOT NULL,
			config_id        TEXT NOT NULL,
			pond_id          TEXT NOT NULL,
			parameter        TEXT NOT NULL,
			value            REAL NOT NULL,
			threshold        REAL NOT NULL,
			action           TEXT NOT NULL,
			device_ids       TEXT NOT NULL,
			priority         TEXT NOT NULL,
			prediction_based INTEGER NOT NULL DEFAULT 0,
			confirmed        INTEGER NOT NULL DEFAULT 0,
			message          TEXT NOT NULL DEFAULT '',
			block_reason     TEXT NOT NULL DEFAULT '',
			acknowledged     INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE manual_overrides (
			device_id   TEXT PRIMARY KEY,
			enabled     INTEGER NOT NULL DEFAULT 1,
			power_level INTEGER NOT NULL DEFAULT 0,
			started_at  TEXT NOT NULL,
			expires_at  TEXT,
			reason      TEXT NOT NULL DEFAULT '',
			operator    TEXT NOT NULL DEFAULT ''
		);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// repoConfig creates a trigger config for repository testing.
func repoConfig(id string, sortOrder int) *TriggerConfig {
	return &TriggerConfig{
		ID:      id,
		Name:    "Low DO Emergency",
		Enabled: true,
		PondID:  "pond-1",
		Kind:    KindThreshold,
		Thresholds: []TriggerThreshold{
			{Parameter: "dissolved_oxygen", Unit: "mg/L", SoftMin: 4.0, CriticalMin: 3.0},
		},
		CooldownSeconds:      300,
		ConfirmationReadings: 2,
		AutoShutoffMinutes:   60,
		Priority:             PriorityCritical,
		SortOrder:            sortOrder,
	}
}

// repoEvent creates a trigger event for repository testing.
func repoEvent(id string, at time.Time) *TriggerEvent {
	return &TriggerEvent{
		ID:        id,
		CreatedAt: at,
		ConfigID:  "low-do-emergency",
		PondID:    "pond-1",
		Parameter: "dissolved_oxygen",
		Value:     2.8,
		Threshold: 3.0,
		Action:    ActionActivated,
		DeviceIDs: []string{"aer-1"},
		Priority:  PriorityCritical,
		Confirmed: true,
		Message:   "aerators ramped to full",
	}
}

func TestSQLiteRepository_Configs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	t.Run("creates and lists configs in sort order", func(t *testing.T) {
		second := repoConfig("rule-b", 2)
		first := repoConfig("rule-a", 1)

		if err := repo.CreateConfig(ctx, second); err != nil {
			t.Fatalf("CreateConfig() error = %v", err)
		}
		if err := repo.CreateConfig(ctx, first); err != nil {
			t.Fatalf("CreateConfig() error = %v", err)
		}

		configs, err := repo.ListConfigs(ctx)
		if err != nil {
			t.Fatalf("ListConfigs() error = %v", err)
		}
		if len(configs) != 2 {
			t.Fatalf("ListConfigs() count = %d, want 2", len(configs))
		}
		if configs[0].ID != "rule-a" || configs[1].ID != "rule-b" {
			t.Errorf("order = [%s %s], want [rule-a rule-b]", configs[0].ID, configs[1].ID)
		}
		if configs[0].CreatedAt.IsZero() || configs[0].UpdatedAt.IsZero() {
			t.Error("timestamps should be set on create")
		}
	})

	t.Run("round-trips thresholds and targets", func(t *testing.T) {
		cfg := repoConfig("rule-full", 3)
		cfg.TargetDeviceIDs = []string{"aer-1", "aer-2"}
		cfg.Kind = KindPrediction
		cfg.ForecastHorizonHours = 6

		if err := repo.CreateConfig(ctx, cfg); err != nil {
			t.Fatalf("CreateConfig() error = %v", err)
		}

		configs, err := repo.ListConfigs(ctx)
		if err != nil {
			t.Fatalf("ListConfigs() error = %v", err)
		}

		var got *TriggerConfig
		for i := range configs {
			if configs[i].ID == "rule-full" {
				got = &configs[i]
			}
		}
		if got == nil {
			t.Fatal("config rule-full not found")
		}
		if len(got.Thresholds) != 1 || got.Thresholds[0].Parameter != "dissolved_oxygen" {
			t.Errorf("thresholds = %+v, want dissolved_oxygen entry", got.Thresholds)
		}
		if len(got.TargetDeviceIDs) != 2 {
			t.Errorf("targets = %v, want 2 entries", got.TargetDeviceIDs)
		}
		if got.Kind != KindPrediction || got.ForecastHorizonHours != 6 {
			t.Errorf("kind/horizon = %s/%d, want prediction/6", got.Kind, got.ForecastHorizonHours)
		}
	})

	t.Run("returns error for duplicate ID", func(t *testing.T) {
		err := repo.CreateConfig(ctx, repoConfig("rule-a", 9))
		if !errors.Is(err, ErrConfigExists) {
			t.Errorf("CreateConfig() error = %v, want ErrConfigExists", err)
		}
	})

	t.Run("updates existing config", func(t *testing.T) {
		cfg := repoConfig("rule-a", 1)
		cfg.Name = "Renamed Rule"
		cfg.Enabled = false
		cfg.CooldownSeconds = 600

		if err := repo.UpdateConfig(ctx, cfg); err != nil {
			t.Fatalf("UpdateConfig() error = %v", err)
		}

		configs, err := repo.ListConfigs(ctx)
		if err != nil {
			t.Fatalf("ListConfigs() error = %v", err)
		}
		for _, c := range configs {
			if c.ID != "rule-a" {
				continue
			}
			if c.Name != "Renamed Rule" || c.Enabled || c.CooldownSeconds != 600 {
				t.Errorf("updated config = %+v", c)
			}
		}
	})

	t.Run("update of missing config fails", func(t *testing.T) {
		err := repo.UpdateConfig(ctx, repoConfig("rule-missing", 1))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("UpdateConfig() error = %v, want ErrConfigNotFound", err)
		}
	})
}

func TestSQLiteRepository_Events(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"ev-1", "ev-2", "ev-3"} {
		ev := repoEvent(id, base.Add(time.Duration(i)*time.Minute))
		if err := repo.CreateEvent(ctx, ev); err != nil {
			t.Fatalf("CreateEvent(%s) error = %v", id, err)
		}
	}

	t.Run("lists newest first", func(t *testing.T) {
		events, err := repo.ListEvents(ctx, 10)
		if err != nil {
			t.Fatalf("ListEvents() error = %v", err)
		}
		if len(events) != 3 {
			t.Fatalf("ListEvents() count = %d, want 3", len(events))
		}
		if events[0].ID != "ev-3" || events[2].ID != "ev-1" {
			t.Errorf("order = [%s %s %s], want newest first", events[0].ID, events[1].ID, events[2].ID)
		}
		if events[0].Action != ActionActivated || !events[0].Confirmed {
			t.Errorf("event fields not round-tripped: %+v", events[0])
		}
		if len(events[0].DeviceIDs) != 1 || events[0].DeviceIDs[0] != "aer-1" {
			t.Errorf("DeviceIDs = %v, want [aer-1]", events[0].DeviceIDs)
		}
		if events[0].Message != "aerators ramped to full" {
			t.Errorf("Message = %q, not round-tripped", events[0].Message)
		}
	})

	t.Run("respects limit", func(t *testing.T) {
		events, err := repo.ListEvents(ctx, 2)
		if err != nil {
			t.Fatalf("ListEvents() error = %v", err)
		}
		if len(events) != 2 {
			t.Errorf("ListEvents(2) count = %d, want 2", len(events))
		}
	})

	t.Run("acknowledges event", func(t *testing.T) {
		if err := repo.AcknowledgeEvent(ctx, "ev-1"); err != nil {
			t.Fatalf("AcknowledgeEvent() error = %v", err)
		}

		events, err := repo.ListEvents(ctx, 10)
		if err != nil {
			t.Fatalf("ListEvents() error = %v", err)
		}
		for _, ev := range events {
			if ev.ID == "ev-1" && !ev.Acknowledged {
				t.Error("ev-1 not acknowledged after AcknowledgeEvent()")
			}
		}

		err = repo.AcknowledgeEvent(ctx, "ev-missing")
		if !errors.Is(err, ErrEventNotFound) {
			t.Errorf("AcknowledgeEvent(missing) error = %v, want ErrEventNotFound", err)
		}
	})
}

func TestSQLiteRepository_Overrides(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	started := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	expires := started.Add(2 * time.Hour)

	t.Run("saves and lists override", func(t *testing.T) {
		o := &ManualOverride{
			DeviceID:   "aer-1",
			Enabled:    true,
			PowerLevel: 80,
			StartedAt:  started,
			ExpiresAt:  &expires,
			Reason:     "harvest prep",
			Operator:   "dawn-shift",
		}
		if err := repo.SaveOverride(ctx, o); err != nil {
			t.Fatalf("SaveOverride() error = %v", err)
		}

		overrides, err := repo.ListOverrides(ctx)
		if err != nil {
			t.Fatalf("ListOverrides() error = %v", err)
		}
		if len(overrides) != 1 {
			t.Fatalf("ListOverrides() count = %d, want 1", len(overrides))
		}

		got := overrides[0]
		if got.DeviceID != "aer-1" || got.PowerLevel != 80 || !got.Enabled {
			t.Errorf("override = %+v", got)
		}
		if !got.StartedAt.Equal(started) {
			t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
		}
		if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
			t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, expires)
		}
		if got.Reason != "harvest prep" || got.Operator != "dawn-shift" {
			t.Errorf("reason/operator = %q/%q", got.Reason, got.Operator)
		}
	})

	t.Run("save replaces existing override", func(t *testing.T) {
		o := &ManualOverride{
			DeviceID:   "aer-1",
			Enabled:    true,
			PowerLevel: 50,
			StartedAt:  started.Add(time.Hour),
		}
		if err := repo.SaveOverride(ctx, o); err != nil {
			t.Fatalf("SaveOverride() error = %v", err)
		}

		overrides, err := repo.ListOverrides(ctx)
		if err != nil {
			t.Fatalf("ListOverrides() error = %v", err)
		}
		if len(overrides) != 1 {
			t.Fatalf("ListOverrides() count = %d, want 1 after replace", len(overrides))
		}
		if overrides[0].PowerLevel != 50 {
			t.Errorf("PowerLevel = %d, want 50", overrides[0].PowerLevel)
		}
		if overrides[0].ExpiresAt != nil {
			t.Errorf("ExpiresAt = %v, want nil after replace", overrides[0].ExpiresAt)
		}
	})

	t.Run("deletes override", func(t *testing.T) {
		if err := repo.DeleteOverride(ctx, "aer-1"); err != nil {
			t.Fatalf("DeleteOverride() error = %v", err)
		}

		overrides, err := repo.ListOverrides(ctx)
		if err != nil {
			t.Fatalf("ListOverrides() error = %v", err)
		}
		if len(overrides) != 0 {
			t.Errorf("ListOverrides() count = %d, want 0", len(overrides))
		}

		err = repo.DeleteOverride(ctx, "aer-1")
		if !errors.Is(err, ErrOverrideNotFound) {
			t.Errorf("second DeleteOverride() error = %v, want ErrOverrideNotFound", err)
		}
	})
}
