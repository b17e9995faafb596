// Package stats is a small introspection surface counting how often each of
// spec section 7's logged-and-contained conditions actually fires, so an
// operator can observe the error-handling design's behavior without
// grepping logs (a SPEC_FULL.md supplement, not part of the distilled
// spec.md).
package stats

import "sync/atomic"

// Stats holds monotonically increasing counters. All fields are safe for
// concurrent use via atomic operations; read with the accessor methods, not
// direct field access.
type Stats struct {
	batchesProcessed int64
	echoesDropped    int64
	mutationsExpired int64
	staleRemovals    int64
	cyclesPruned     int64
}

func (s *Stats) IncBatchesProcessed() { atomic.AddInt64(&s.batchesProcessed, 1) }
func (s *Stats) IncEchoesDropped()    { atomic.AddInt64(&s.echoesDropped, 1) }
func (s *Stats) AddMutationsExpired(n int64) {
	atomic.AddInt64(&s.mutationsExpired, n)
}
func (s *Stats) AddStaleRemovals(n int64) { atomic.AddInt64(&s.staleRemovals, n) }
func (s *Stats) IncCyclesPruned()         { atomic.AddInt64(&s.cyclesPruned, 1) }

// Snapshot is a point-in-time read of every counter.
type Snapshot struct {
	BatchesProcessed int64
	EchoesDropped    int64
	MutationsExpired int64
	StaleRemovals    int64
	CyclesPruned     int64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		BatchesProcessed: atomic.LoadInt64(&s.batchesProcessed),
		EchoesDropped:    atomic.LoadInt64(&s.echoesDropped),
		MutationsExpired: atomic.LoadInt64(&s.mutationsExpired),
		StaleRemovals:    atomic.LoadInt64(&s.staleRemovals),
		CyclesPruned:     atomic.LoadInt64(&s.cyclesPruned),
	}
}
