package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// System control
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
			r.Post("/enable", s.handleSystemEnable)
			r.Post("/disable", s.handleSystemDisable)
			r.Post("/evaluate", s.handleSystemEvaluate)
		})

		// Pond endpoints
		r.Route("/ponds", func(r chi.Router) {
			r.Get("/", s.handleListPonds)
			r.Post("/", s.handleCreatePond)
			r.Get("/{id}/telemetry", s.handleGetPondTelemetry)
		})

		// Device endpoints
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Patch("/", s.handleUpdateDevice)
				r.Delete("/", s.handleDeleteDevice)
				r.Post("/stop", s.handleStopDevice)
				r.Put("/override", s.handleSetOverride)
				r.Delete("/override", s.handleClearOverride)
			})
		})

		// Trigger rule and event endpoints
		r.Route("/triggers", func(r chi.Router) {
			r.Route("/configs", func(r chi.Router) {
				r.Get("/", s.handleListConfigs)
				r.Post("/", s.handleCreateConfig)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetConfig)
					r.Post("/enable", s.handleEnableConfig)
					r.Post("/disable", s.handleDisableConfig)
					r.Patch("/threshold", s.handleUpdateThreshold)
				})
			})

			r.Route("/events", func(r chi.Router) {
				r.Get("/", s.handleListEvents)
				r.Post("/{id}/acknowledge", s.handleAcknowledgeEvent)
			})

			r.Get("/overrides", s.handleListOverrides)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
