// Package config loads and validates Aqua Logic Core configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// AQUALOGIC_* environment variable overrides. The engine section carries
// the decision-loop cadence, event log capacity, snapshot staleness limit
// and the daily maintenance blackout window.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	interval := cfg.GetCheckInterval()
package config
