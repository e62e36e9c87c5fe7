// Aqua Logic Core - Pond Automation Platform
//
// This is the main entry point for the Aqua Logic Core application.
// Aqua Logic is an autonomous decision engine for aquaculture sites:
//   - Continuous water-quality evaluation (10s cadence)
//   - Safe, rate-limited actuator control with confirmation gating
//   - Offline-first operation (broker + SQLite on site)
//   - Open standards (MQTT transport, JSON payloads)
//
// For architecture details, see: docs/architecture/system-overview.md
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/aqua-logic-core/migrations"

	"github.com/nerrad567/aqua-logic-core/internal/api"
	"github.com/nerrad567/aqua-logic-core/internal/device"
	"github.com/nerrad567/aqua-logic-core/internal/infrastructure/config"
	"github.com/nerrad567/aqua-logic-core/internal/infrastructure/database"
	"github.com/nerrad567/aqua-logic-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/aqua-logic-core/internal/infrastructure/logging"
	"github.com/nerrad567/aqua-logic-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/aqua-logic-core/internal/telemetry"
	"github.com/nerrad567/aqua-logic-core/internal/trigger"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	// This is the Go pattern for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Aqua Logic Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise device registry
	deviceRepo := device.NewSQLiteRepository(db.DB)
	deviceRegistry := device.NewRegistry(deviceRepo)
	deviceRegistry.SetLogger(log)

	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	// Load trigger rules, overrides and event history
	triggerRepo := trigger.NewSQLiteRepository(db.DB)

	rules := trigger.NewStore(triggerRepo)
	rules.SetLogger(log)
	if loadErr := rules.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading trigger configs: %w", loadErr)
	}
	if seedErr := trigger.SeedDefaults(ctx, rules); seedErr != nil {
		return fmt.Errorf("seeding default trigger configs: %w", seedErr)
	}

	overrides := trigger.NewOverrideStore(triggerRepo)
	overrides.SetLogger(log)
	if loadErr := overrides.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading manual overrides: %w", loadErr)
	}

	events := trigger.NewEventLog(triggerRepo, cfg.Engine.EventLogCapacity)
	events.SetLogger(log)
	if loadErr := events.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading trigger events: %w", loadErr)
	}

	total, enabled := rules.Count()
	log.Info("trigger state loaded",
		"configs", total,
		"enabled", enabled,
		"overrides", len(overrides.List()),
		"events", events.Len(),
	)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Set up MQTT logging callbacks
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Telemetry store fed by the ingestion pipeline over MQTT
	telemetryStore := telemetry.NewStore(cfg.GetSnapshotMaxAge())
	if subErr := subscribeTelemetry(mqttClient, telemetryStore, byte(cfg.MQTT.QoS), log); subErr != nil {
		return fmt.Errorf("subscribing to telemetry: %w", subErr)
	}
	log.Info("telemetry subscriptions active",
		"snapshots", mqtt.Topics{}.AllSnapshots(),
		"forecasts", mqtt.Topics{}.AllForecasts(),
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		// Set up InfluxDB error callback
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Build the decision engine and start the evaluation loop
	engine, err := buildEngine(cfg, deviceRegistry, telemetryStore, rules, overrides, events, mqttClient, influxClient, log)
	if err != nil {
		return fmt.Errorf("building decision engine: %w", err)
	}

	interval := cfg.GetCheckInterval()
	scheduler := trigger.NewScheduler(engine, interval, log)
	scheduler.Start(ctx)
	defer func() {
		log.Info("stopping scheduler")
		scheduler.Stop()
	}()
	log.Info("evaluation loop started", "interval", interval)

	// Start the REST API
	apiServer, err := api.New(api.Deps{
		Config:    cfg.API,
		Logger:    log,
		Registry:  deviceRegistry,
		Engine:    engine,
		Scheduler: scheduler,
		Rules:     rules,
		Events:    events,
		Overrides: overrides,
		Telemetry: telemetryStore,
		MQTT:      mqttClient,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Scheduler
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("Aqua Logic Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses AQUALOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AQUALOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// subscribeTelemetry wires the telemetry store's ingest handlers to the
// broker. Malformed payloads are logged and dropped; they never stop
// the subscription.
func subscribeTelemetry(client *mqtt.Client, store *telemetry.Store, qos byte, log *logging.Logger) error {
	topics := mqtt.Topics{}

	if err := client.Subscribe(topics.AllSnapshots(), qos, func(topic string, payload []byte) error {
		if err := store.HandleSnapshotMessage(topic, payload); err != nil {
			log.Warn("dropping snapshot message", "topic", topic, "error", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("subscribing to snapshots: %w", err)
	}

	if err := client.Subscribe(topics.AllForecasts(), qos, func(topic string, payload []byte) error {
		if err := store.HandleForecastMessage(topic, payload); err != nil {
			log.Warn("dropping forecast message", "topic", topic, "error", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("subscribing to forecasts: %w", err)
	}

	return nil
}

// buildEngine assembles the decision engine from configuration.
//
// The maintenance window is evaluated in the site's local timezone so a
// window configured as "02:00-04:00" blocks at 2 AM on site, not 2 AM UTC.
func buildEngine(
	cfg *config.Config,
	registry *device.Registry,
	telemetryStore *telemetry.Store,
	rules *trigger.Store,
	overrides *trigger.OverrideStore,
	events *trigger.EventLog,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
	log *logging.Logger,
) (*trigger.Engine, error) {
	window, err := maintenanceWindow(cfg)
	if err != nil {
		return nil, err
	}

	// A nil *influxdb.Client must become a nil interface, otherwise the
	// engine would call methods on a nil pointer.
	var sink trigger.MetricsSink
	if influxClient != nil {
		sink = influxClient
	}

	engine := trigger.NewEngine(
		registry,
		telemetryStore,
		rules,
		trigger.NewTracker(),
		trigger.NewPipeline(window),
		overrides,
		events,
		mqttClient,
		sink,
		log,
	)
	return engine, nil
}

// maintenanceWindow converts the configured HH:MM window into engine form.
func maintenanceWindow(cfg *config.Config) (trigger.MaintenanceWindow, error) {
	startHour, startMinute, err := config.ParseClock(cfg.Engine.Maintenance.Start)
	if err != nil {
		return trigger.MaintenanceWindow{}, fmt.Errorf("maintenance window start: %w", err)
	}
	endHour, endMinute, err := config.ParseClock(cfg.Engine.Maintenance.End)
	if err != nil {
		return trigger.MaintenanceWindow{}, fmt.Errorf("maintenance window end: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Site.Timezone)
	if err != nil {
		return trigger.MaintenanceWindow{}, fmt.Errorf("site timezone %q: %w", cfg.Site.Timezone, err)
	}

	return trigger.MaintenanceWindow{
		StartHour:   startHour,
		StartMinute: startMinute,
		EndHour:     endHour,
		EndMinute:   endMinute,
		Location:    loc,
	}, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
