package state

import "sync"

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyLocks serializes work per key. It uses reference counting to garbage
// collect unused locks.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// processLocks is shared by every Store of the process so two stores bound to
// the same blob key still serialize their merges.
var processLocks = newKeyLocks()

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*lockEntry)}
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST lock entry.mu, and then call release(key) after unlocking.
func (k *keyLocks) acquire(key string) *lockEntry {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, exists := k.locks[key]
	if !exists {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (k *keyLocks) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, exists := k.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(k.locks, key)
	}
}

// with runs fn while holding the lock for key.
func (k *keyLocks) with(key string, fn func()) {
	entry := k.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		k.release(key)
	}()
	fn()
}
