// Package lifecycle starts and stops platform components as detached
// background processes tracked by PID records.
//
// Ownership boundary:
// - per-component launch and termination outcomes
// - PID record reconciliation (stale and corrupt records are removed)
// - restart and status built from the same primitives
//
// Components are processed independently; one failure never prevents the
// others from being attempted.
package lifecycle
