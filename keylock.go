package librarian

import "sync"

// keyLock hands out one mutex per archive key so add and remove cannot
// interleave on the same key. Entries are refcounted and dropped when the
// last holder releases, keeping the map bounded by in-flight operations
// rather than by the key space.
type keyLock struct {
	mu    sync.Mutex
	locks map[Key]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[Key]*keyLockEntry)}
}

func (kl *keyLock) lock(key Key) {
	kl.mu.Lock()
	entry := kl.locks[key]
	if entry == nil {
		entry = &keyLockEntry{}
		kl.locks[key] = entry
	}
	entry.refs++
	kl.mu.Unlock()

	entry.mu.Lock()
}

func (kl *keyLock) unlock(key Key) {
	kl.mu.Lock()
	entry := kl.locks[key]
	entry.refs--
	if entry.refs == 0 {
		delete(kl.locks, key)
	}
	kl.mu.Unlock()

	entry.mu.Unlock()
}
