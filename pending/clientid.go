package pending

import (
	"crypto/rand"
	"fmt"
	"sync"
)

var (
	clientIDOnce sync.Once
	clientID     string
)

// ClientID returns a UUID-like string generated on first use and held for
// the life of the process, so echoes originating from other sessions can be
// distinguished from this one's own optimistic writes (spec section 4.5).
// Host processes embedding this engine across multiple logical "tabs" can
// instead manage their own session-scoped ids and pass them explicitly on
// each PendingMutation; this is the default when none is supplied.
func ClientID() string {
	clientIDOnce.Do(func() {
		clientID = newUUIDLike()
	})
	return clientID
}

func newUUIDLike() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "00000000-0000-4000-8000-000000000000"
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
