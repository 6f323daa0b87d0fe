// Package lock provides per-key mutual exclusion with bounded waits.
package lock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Keyed hands out one exclusive lock per key. Entries are dropped once no
// goroutine holds or waits on them, so the map stays as small as the set of
// keys in use.
type Keyed[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

// NewKeyed creates an empty keyed lock
func NewKeyed[K comparable]() *Keyed[K] {
	return &Keyed[K]{entries: make(map[K]*entry)}
}

// Lock blocks until the key is free or ctx is done. On success the returned
// func releases the key and must be called exactly once.
func (k *Keyed[K]) Lock(ctx context.Context, key K) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		k.release(key, e, false)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { k.release(key, e, true) })
	}, nil
}

func (k *Keyed[K]) release(key K, e *entry, held bool) {
	if held {
		e.sem.Release(1)
	}
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()
}

// Len number of keys currently held or waited on
func (k *Keyed[K]) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
