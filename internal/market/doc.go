// Package market holds the per-instrument mutable state: the reconstructed
// orderbook, the position and pair-cost model, the order lifecycle table,
// signal flow state, and resting-order hints.
//
// One TickerState exists per traded market. Its RWMutex is the sole
// synchronization primitive for that market's state; the Shared map may be
// read, inserted into, and removed from concurrently across markets.
package market
