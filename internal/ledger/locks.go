package ledger

import (
	"sync"

	"github.com/google/uuid"
)

type userLock struct {
	mu   sync.Mutex
	refs int
}

// UserLocks provides per-user mutual exclusion. The reward engine holds a
// user's lock across check-limit -> compute-reward -> append-and-credit so
// two concurrent claims for the same user cannot both pass the quota check.
// Different users never contend. Entries are reference-counted and removed
// once the last holder unlocks, so the map stays bounded by the number of
// in-flight claims rather than the number of users ever seen.
type UserLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*userLock
}

// NewUserLocks creates an empty lock set.
func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[uuid.UUID]*userLock)}
}

// Lock acquires the lock for userID and returns the unlock function.
func (l *UserLocks) Lock(userID uuid.UUID) func() {
	l.mu.Lock()
	e, ok := l.locks[userID]
	if !ok {
		e = &userLock{}
		l.locks[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

// size reports the number of live entries, for tests.
func (l *UserLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
