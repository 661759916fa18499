package vaultd

import (
	"sort"
	"sync"
)

// keyedLocks hands out mutexes by name. Entries are reference counted and
// dropped once no holder or waiter remains.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: make(map[string]*keyedLock)}
}

// lock acquires every named lock in sorted order and returns the release
// function. Duplicate names are collapsed.
func (k *keyedLocks) lock(names ...string) func() {
	unique := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		unique = append(unique, name)
	}
	sort.Strings(unique)

	held := make([]*keyedLock, 0, len(unique))
	for _, name := range unique {
		k.mu.Lock()
		entry, ok := k.entries[name]
		if !ok {
			entry = &keyedLock{}
			k.entries[name] = entry
		}
		entry.refs++
		k.mu.Unlock()
		entry.mu.Lock()
		held = append(held, entry)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
		k.mu.Lock()
		for i, name := range unique {
			held[i].refs--
			if held[i].refs == 0 {
				delete(k.entries, name)
			}
		}
		k.mu.Unlock()
	}
}

func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
