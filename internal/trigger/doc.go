// Package trigger implements the autonomous decision engine at the
// heart of Aqua Logic Core.
//
// On a fixed cadence the engine evaluates every pond against every
// applicable trigger rule: is a threshold breached (now, or at the
// forecast horizon), has the breach been confirmed across consecutive
// readings, and is it safe to act? When all gates pass, target devices
// are commanded to run at a severity-derived power level; when any
// gate fails, a blocked event records exactly why.
//
// The package is organised around the components of that loop:
//
//   - Store: the ordered set of TriggerConfigs, mutated only by
//     operator commands
//   - Tracker: per (rule, pond) confirmation buffers for noise
//     rejection
//   - Pipeline: the five safety checks run before any command
//   - OverrideStore: operator pins that exclude devices from
//     automatic control
//   - EventLog: the bounded audit ring
//   - Engine: one evaluation pass over all ponds
//   - Scheduler: the periodic, non-overlapping tick driver
//
// All engine-owned state is mutated under a single tick at a time;
// operator commands interleave between ticks and are atomic with
// respect to them.
package trigger
