// Package keylock provides per-key read/write locks. The studio service
// uses one to serialize mutations per session id while letting distinct
// sessions proceed in parallel.
package keylock

import "sync"

// KeyLock hands out a read/write lock per key. Entries are created on
// first use and removed when the last holder or waiter releases, so an
// idle KeyLock retains nothing for keys it has seen.
type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	lock sync.RWMutex
	refs int
}

// NewKeyLock returns an empty lock table.
func NewKeyLock() *KeyLock {
	return &KeyLock{entries: make(map[string]*entry)}
}

// Lock acquires the exclusive lock for key and returns the release
// function. Each call gets its own release func; call it exactly once.
func (k *KeyLock) Lock(key string) func() {
	e := k.acquire(key)
	e.lock.Lock()
	return func() {
		e.lock.Unlock()
		k.release(key, e)
	}
}

// RLock acquires the shared lock for key and returns the release
// function.
func (k *KeyLock) RLock(key string) func() {
	e := k.acquire(key)
	e.lock.RLock()
	return func() {
		e.lock.RUnlock()
		k.release(key, e)
	}
}

// Len reports the number of keys currently held or waited on.
func (k *KeyLock) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// acquire bumps the refcount before the caller blocks on the entry's
// lock, so the entry cannot be reclaimed while waiters queue on it.
func (k *KeyLock) acquire(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *KeyLock) release(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}
