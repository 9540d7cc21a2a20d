// Package engine contains the signal-fusion layer and the per-tick decision
// state machine, plus the driver task that runs decisions across all active
// instruments on a fixed period with wake coalescing.
package engine
