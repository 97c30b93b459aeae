package idgen

import (
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// sourceLocks is a keyed mutex table: one lock per source identity,
// created on first use. Generations against different sources proceed
// independently; generations against the same source serialize.
type sourceLocks struct {
	locks cmap.ConcurrentMap[string, *sync.Mutex]
}

func newSourceLocks() *sourceLocks {
	return &sourceLocks{locks: cmap.New[*sync.Mutex]()}
}

// acquire blocks until the lock for key is held and returns the unlock
// function. Locks are never removed: the table is bounded by the number
// of configured sources.
func (l *sourceLocks) acquire(key string) func() {
	l.locks.SetIfAbsent(key, &sync.Mutex{})
	mu, _ := l.locks.Get(key)
	mu.Lock()
	return mu.Unlock
}
