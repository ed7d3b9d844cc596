package engine

import "sync"

// userLocks serializes requests per user. Entries are reference counted and
// removed once the last holder releases, so the registry stays bounded by the
// number of in-flight users.
type userLocks struct {
	mu    sync.Mutex
	users map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{users: make(map[int64]*userLock)}
}

// lock blocks until the user's lock is held and returns the release func.
func (l *userLocks) lock(userID int64) func() {
	l.mu.Lock()
	entry, ok := l.users[userID]
	if !ok {
		entry = &userLock{}
		l.users[userID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.users, userID)
		}
		l.mu.Unlock()
	}
}
