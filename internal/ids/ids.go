// ABOUTME: Identifier generation for snagbox entities
// ABOUTME: ULIDs for time-sortable row ids, UUIDs for opaque account-level ids

package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// ULID returns a new lexicographically sortable identifier. Used for
// captures, tasks, and sessions so that primary-key order follows creation
// order.
func ULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// UUID returns a new random identifier. Used for users, organizations, and
// API token ids where sort order carries no meaning.
func UUID() string {
	return uuid.New().String()
}
