package engine

import (
	"strings"
	"sync"
)

// teamLocks hands out one mutex per team name. Entries are dropped once no
// caller holds or waits on them.
type teamLocks struct {
	mu    sync.Mutex
	locks map[string]*teamLock
}

type teamLock struct {
	mu   sync.Mutex
	refs int
}

func newTeamLocks() *teamLocks {
	return &teamLocks{locks: make(map[string]*teamLock)}
}

// lock blocks until the team is free and returns the unlock func
func (l *teamLocks) lock(team string) func() {
	key := strings.ToLower(team)

	l.mu.Lock()
	tl, ok := l.locks[key]
	if !ok {
		tl = &teamLock{}
		l.locks[key] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()

	return func() {
		tl.mu.Unlock()

		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// size is the number of tracked teams
func (l *teamLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
