// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coordinator

import (
	"sync"

	"github.com/luxfi/ids"
)

type refLock struct {
	sync.Mutex
	refs int
}

// lockMap hands out one mutex per transfer id. Entries are dropped when the
// last holder or waiter releases them.
type lockMap struct {
	lock  sync.Mutex
	locks map[ids.ID]*refLock
}

func newLockMap() *lockMap {
	return &lockMap{locks: make(map[ids.ID]*refLock)}
}

// Lock blocks until [id] is held and returns the matching unlock.
func (m *lockMap) Lock(id ids.ID) func() {
	m.lock.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &refLock{}
		m.locks[id] = l
	}
	l.refs++
	m.lock.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		m.lock.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.lock.Unlock()
	}
}

func (m *lockMap) len() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.locks)
}
