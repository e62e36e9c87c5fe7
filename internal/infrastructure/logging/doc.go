// Package logging provides structured logging for Aqua Logic Core.
//
// It wraps log/slog with configuration-driven level, format and output
// selection, and stamps every record with the service name and version.
// Components derive child loggers via With:
//
//	log := logging.New(cfg.Logging, version)
//	engineLog := log.With("component", "engine")
package logging
