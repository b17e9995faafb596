// Package pending implements spec section 4.5's optimistic-mutation ledger:
// a per-PortKey list of outstanding local writes, confirmed or rejected by
// echoes, auto-expired after a configured timeout by a periodic sweep.
package pending

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	log "github.com/golang/glog"

	"github.com/nodeflow/portstate/internal/keys"
	"github.com/nodeflow/portstate/internal/xerrors"
	"github.com/nodeflow/portstate/portevent"
)

// DefaultTimeout and DefaultSweepInterval match spec section 4.5's defaults.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultSweepInterval = 5 * time.Second
)

// Ledger is the pending-mutations store. It is safe for concurrent use,
// though the engine as a whole is single-threaded cooperative; the mutex
// exists because the sweep runs on its own timer goroutine.
type Ledger struct {
	mu      sync.Mutex
	entries map[keys.PortKey][]*portevent.PendingMutation
	timeout time.Duration

	expiredCount func(portKey keys.PortKey, n int)
}

// New returns an empty Ledger with the given expiry timeout (use
// DefaultTimeout if unsure).
func New(timeout time.Duration) *Ledger {
	return &Ledger{
		entries: make(map[keys.PortKey][]*portevent.PendingMutation),
		timeout: timeout,
	}
}

// OnExpired registers a callback invoked once per portKey each time the
// sweep drops entries for it, passing the number dropped. Used by
// internal/stats to count PendingExpired occurrences without the ledger
// depending on the stats package.
func (l *Ledger) OnExpired(fn func(portKey keys.PortKey, n int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expiredCount = fn
}

// Add appends a new pending mutation for its portKey.
func (l *Ledger) Add(m *portevent.PendingMutation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[m.PortKey] = append(l.entries[m.PortKey], m)
}

// Confirm removes the entry with the given mutationId from portKey's list.
// If the list becomes empty, the portKey entry is deleted entirely.
func (l *Ledger) Confirm(portKey keys.PortKey, mutationID string) {
	l.remove(portKey, mutationID, "")
}

// Reject removes the entry with the given mutationId, logging reason.
func (l *Ledger) Reject(portKey keys.PortKey, mutationID, reason string) {
	l.remove(portKey, mutationID, reason)
}

func (l *Ledger) remove(portKey keys.PortKey, mutationID, rejectReason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	list := l.entries[portKey]
	for i, m := range list {
		if m.MutationID == mutationID {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(l.entries, portKey)
			} else {
				l.entries[portKey] = list
			}
			if rejectReason != "" {
				log.Warningf("pending mutation %s on %s rejected: %s", mutationID, portKey, rejectReason)
			}
			return
		}
	}
}

// For returns a copy of the pending mutations for portKey, or nil.
func (l *Ledger) For(portKey keys.PortKey) []*portevent.PendingMutation {
	l.mu.Lock()
	defer l.mu.Unlock()
	src := l.entries[portKey]
	if len(src) == 0 {
		return nil
	}
	out := make([]*portevent.PendingMutation, len(src))
	copy(out, src)
	return out
}

// HighestVersion returns the maximum Version among portKey's pending
// mutations and true, or (0, false) if there are none.
func (l *Ledger) HighestVersion(portKey keys.PortKey) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	list := l.entries[portKey]
	if len(list) == 0 {
		return 0, false
	}
	max := list[0].Version
	for _, m := range list[1:] {
		if m.Version > max {
			max = m.Version
		}
	}
	return max, true
}

// Match looks for a pending mutation on portKey with equal version and
// deep-equal value, returning it if found (spec section 4.6 step 1).
func (l *Ledger) Match(portKey keys.PortKey, version int64, value interface{}) *portevent.PendingMutation {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.entries[portKey] {
		if m.Version == version && keys.DeepEqual(m.Value, value) {
			return m
		}
	}
	return nil
}

// Sweep drops every entry older than the ledger's timeout, as of now, and
// logs a warning with the count dropped per portKey (spec section 4.5, 4.7).
// It returns the total number of entries dropped.
func (l *Ledger) Sweep(now time.Time) int {
	l.mu.Lock()
	type expiry struct {
		key keys.PortKey
		n   int
	}
	var expired []expiry
	total := 0
	for k, list := range l.entries {
		cutoff := now.Add(-l.timeout)
		var kept []*portevent.PendingMutation
		dropped := 0
		for _, m := range list {
			if time.UnixMilli(m.Timestamp).Before(cutoff) {
				dropped++
				continue
			}
			kept = append(kept, m)
		}
		if dropped > 0 {
			total += dropped
			expired = append(expired, expiry{k, dropped})
			if len(kept) == 0 {
				delete(l.entries, k)
			} else {
				l.entries[k] = kept
			}
		}
	}
	cb := l.expiredCount
	l.mu.Unlock()

	for _, e := range expired {
		log.Warningf("%s: %d pending mutation(s) on %s auto-expired", xerrors.PendingExpired, e.n, e.key)
		if cb != nil {
			cb(e.key, e.n)
		}
	}
	return total
}

// RunSweeper starts a goroutine that calls Sweep every interval until stop
// is closed. Use DefaultSweepInterval if unsure.
func (l *Ledger) RunSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case t := <-ticker.C:
				l.Sweep(t)
			}
		}
	}()
}

// GenerateMutationID implements spec section 4.5's id scheme:
// "<unixMilli>-<9-char random base36>".
func GenerateMutationID(nowMillis int64) string {
	return fmt.Sprintf("%d-%s", nowMillis, randomBase36(9))
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomBase36(n int) string {
	buf := make([]byte, n)
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		// crypto/rand failures are effectively never recoverable; fall back
		// to a fixed pattern rather than panicking the caller's write path.
		for i := range buf {
			buf[i] = base36Alphabet[0]
		}
		return string(buf)
	}
	for i, b := range raw {
		buf[i] = base36Alphabet[int(b)%len(base36Alphabet)]
	}
	return string(buf)
}
