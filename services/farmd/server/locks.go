package server

import (
	"sync"

	"farmchain/native/farming"
)

// poolLocks serialises mutations per pool. Entries are reference counted so
// idle pools do not pin a mutex.
type poolLocks struct {
	mu    sync.Mutex
	locks map[farming.PoolID]*poolLock
}

type poolLock struct {
	mu   sync.Mutex
	refs int
}

func newPoolLocks() *poolLocks {
	return &poolLocks{locks: make(map[farming.PoolID]*poolLock)}
}

// lock acquires the mutex of id and returns its release function.
func (l *poolLocks) lock(id farming.PoolID) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &poolLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *poolLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
