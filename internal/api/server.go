// Package api provides the HTTP REST API for Aqua Logic Core.
//
// It exposes the system status snapshot, device and pond registry
// operations, trigger rule management, the event audit trail, and
// operator commands (manual overrides, device stop, system
// enable/disable) to farm dashboards and operator tooling.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/aqua-logic-core/internal/device"
	"github.com/nerrad567/aqua-logic-core/internal/infrastructure/config"
	"github.com/nerrad567/aqua-logic-core/internal/infrastructure/logging"
	"github.com/nerrad567/aqua-logic-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/aqua-logic-core/internal/telemetry"
	"github.com/nerrad567/aqua-logic-core/internal/trigger"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Registry  *device.Registry
	Engine    *trigger.Engine
	Scheduler *trigger.Scheduler
	Rules     *trigger.Store
	Events    *trigger.EventLog
	Overrides *trigger.OverrideStore
	Telemetry *telemetry.Store
	MQTT      *mqtt.Client // optional: reported in the status snapshot
	Version   string
}

// Server is the HTTP API server for Aqua Logic Core.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	registry  *device.Registry
	engine    *trigger.Engine
	scheduler *trigger.Scheduler
	rules     *trigger.Store
	events    *trigger.EventLog
	overrides *trigger.OverrideStore
	telemetry *telemetry.Store
	mqtt      *mqtt.Client
	version   string
	server    *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies; only MQTT is optional
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("trigger engine is required")
	}
	if deps.Scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if deps.Rules == nil {
		return nil, fmt.Errorf("rule store is required")
	}
	if deps.Events == nil {
		return nil, fmt.Errorf("event log is required")
	}
	if deps.Overrides == nil {
		return nil, fmt.Errorf("override store is required")
	}
	if deps.Telemetry == nil {
		return nil, fmt.Errorf("telemetry store is required")
	}
	// MQTT is optional — the status snapshot reports it as disconnected

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		registry:  deps.Registry,
		engine:    deps.Engine,
		scheduler: deps.Scheduler,
		rules:     deps.Rules,
		events:    deps.Events,
		overrides: deps.Overrides,
		telemetry: deps.Telemetry,
		mqtt:      deps.MQTT,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
