// Package parallel runs blocking work, mainly tile fetches and tile
// encoding, on a fixed set of goroutines.
//
// A WorkerPool has one unbounded FIFO queue shared by all workers, so
// Submit never blocks the caller. That matters because controllers submit
// loads from their logical thread, which must stay responsive while a large
// grid is being fetched.
//
// Thread safety: WorkerPool is safe for concurrent use.
package parallel
