package host

import (
	"sync"
	"time"
)

// DefaultStaleAfter is how long a snapshot stays usable without a refresh.
const DefaultStaleAfter = 30 * time.Second

// Latest holds the most recent snapshot. It is safe for concurrent use.
type Latest struct {
	staleAfter time.Duration
	now        func() time.Time

	mu         sync.RWMutex
	snap       Snapshot
	has        bool
	receivedAt time.Time
}

// LatestOption configures a Latest.
type LatestOption func(*Latest)

// WithStaleAfter sets the staleness window. Zero disables expiry.
func WithStaleAfter(d time.Duration) LatestOption {
	return func(l *Latest) { l.staleAfter = d }
}

// WithNow sets the clock (for testing).
func WithNow(now func() time.Time) LatestOption {
	return func(l *Latest) { l.now = now }
}

// NewLatest creates an empty holder.
func NewLatest(opts ...LatestOption) *Latest {
	l := &Latest{staleAfter: DefaultStaleAfter, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Put stores a copy of s, replacing the previous snapshot.
func (l *Latest) Put(s Snapshot) {
	cp := s.Clone()
	l.mu.Lock()
	l.snap = cp
	l.has = true
	l.receivedAt = l.now()
	l.mu.Unlock()
}

// Clear forgets the snapshot, as when the player leaves the world.
func (l *Latest) Clear() {
	l.mu.Lock()
	l.snap = Snapshot{}
	l.has = false
	l.receivedAt = time.Time{}
	l.mu.Unlock()
}

// Get returns a copy of the snapshot. ok is false when there is no
// snapshot, it is stale, or the player is not in a world.
func (l *Latest) Get() (Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.has || !l.snap.InWorld {
		return Snapshot{}, false
	}
	if l.staleAfter > 0 && l.now().Sub(l.receivedAt) > l.staleAfter {
		return Snapshot{}, false
	}
	return l.snap.Clone(), true
}

// ReceivedAt returns when the snapshot was stored, or the zero time.
func (l *Latest) ReceivedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.receivedAt
}
