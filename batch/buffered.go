package batch

import (
	"sync"
	"time"

	log "github.com/golang/glog"

	"github.com/nodeflow/portstate/echofilter"
	"github.com/nodeflow/portstate/internal/xerrors"
	"github.com/nodeflow/portstate/portevent"
	"github.com/nodeflow/portstate/store"
)

// tickRate is the buffered variant's drain frequency, matching the source
// system's 60 Hz ticker (spec section 9's Open Question about the two
// coexisting processor variants -- both are retained here).
const tickRate = time.Second / 60

// Buffered accumulates incoming events and drains them through Process on a
// fixed tick instead of synchronously per call. It exists alongside the
// direct Process function; Process remains the primary path (spec section
// 9), Buffered is for a host that wants to coalesce a burst of
// rapid-fire local-optimistic events into fewer store applies.
type Buffered struct {
	mu       sync.Mutex
	queue    []*portevent.Event
	maxQueue int

	snap         echofilter.Snapshot
	filter       *echofilter.Filter
	nodePortKeys NodePortKeys

	onBatch func(store.ProcessedBatch, []echofilter.Confirmation)

	stop chan struct{}
}

// NewBuffered returns a Buffered processor. maxQueue <= 0 means unbounded
// (overflow warnings never fire). onBatch is called once per tick in which
// the queue was non-empty, with the result of processing that queue (which
// is empty when the echo filter drops every queued event).
func NewBuffered(snap echofilter.Snapshot, filter *echofilter.Filter, nodePortKeys NodePortKeys, maxQueue int, onBatch func(store.ProcessedBatch, []echofilter.Confirmation)) *Buffered {
	return &Buffered{
		maxQueue:     maxQueue,
		snap:         snap,
		filter:       filter,
		nodePortKeys: nodePortKeys,
		onBatch:      onBatch,
		stop:         make(chan struct{}),
	}
}

// Enqueue adds events to the pending queue. If the queue exceeds maxQueue, a
// warning is logged; events are never dropped, only processed over more
// ticks (spec section 7's "Bulk buffer overflow warning").
func (b *Buffered) Enqueue(events ...*portevent.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, events...)
	if b.maxQueue > 0 && len(b.queue) > b.maxQueue {
		log.Warningf("%s: buffered batch queue at %d entries, exceeds configured maximum %d", xerrors.BufferOverflow, len(b.queue), b.maxQueue)
	}
}

// Start begins draining the queue once per tick until Stop is called.
func (b *Buffered) Start() {
	ticker := time.NewTicker(tickRate)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-b.stop:
				return
			case <-ticker.C:
				b.drain()
			}
		}
	}()
}

// Stop halts the drain loop. It does not flush a partially-filled queue.
func (b *Buffered) Stop() {
	close(b.stop)
}

func (b *Buffered) drain() {
	b.mu.Lock()
	if len(b.queue) == 0 {
		b.mu.Unlock()
		return
	}
	pending := b.queue
	b.queue = nil
	b.mu.Unlock()

	processed, confirmations := Process(pending, b.snap, b.filter, b.nodePortKeys)
	if b.onBatch != nil {
		b.onBatch(processed, confirmations)
	}
}
