// Package device manages the hardware inventory for Aqua Logic Core.
//
// It provides the domain types for ponds and the actuators attached to
// them (aerators, oxygen pumps, water pumps, heaters, feeders), a
// SQLite-backed Repository for persistence, and a cached Registry that
// the decision engine reads and writes on every evaluation tick.
//
// The Registry is the single source of truth for "what we last
// commanded": state changes applied through it are visible to the next
// tick immediately, with no buffering. All Registry methods are safe
// for concurrent use, and returned devices are deep copies so callers
// can never corrupt the cache.
package device
