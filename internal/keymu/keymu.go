// Package keymu provides per-key mutual exclusion over dynamic key sets.
package keymu

import "sync"

// Mutex serializes callers per key. An entry exists only while some goroutine
// holds or waits on its key, so churning key names do not accumulate state.
type Mutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty Mutex.
func New() *Mutex {
	return &Mutex{entries: make(map[string]*entry)}
}

// Lock blocks until the key's lock is held by the caller.
func (m *Mutex) Lock(key string) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()
	e.mu.Lock()
}

// Unlock releases the key's lock and drops the entry once no other goroutine
// holds or waits on it.
func (m *Mutex) Unlock(key string) {
	m.mu.Lock()
	e := m.entries[key]
	if e == nil {
		m.mu.Unlock()
		panic("keymu: unlock of unlocked key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
	m.mu.Unlock()
	e.mu.Unlock()
}

// Len reports how many keys currently have a holder or waiter.
func (m *Mutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
