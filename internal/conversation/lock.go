package conversation

import "sync"

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Locker serializes work per user id. Entries are reference counted and
// removed once no goroutine holds or waits for them.
type Locker struct {
	mu    sync.Mutex
	locks map[int64]*lockEntry
}

// NewLocker creates an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[int64]*lockEntry)}
}

func (l *Locker) acquire(userID int64) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[userID]
	if !ok {
		entry = &lockEntry{}
		l.locks[userID] = entry
	}
	entry.refs++
	return entry
}

func (l *Locker) release(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[userID]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, userID)
	}
}

// WithLock runs fn while holding the lock for userID.
func (l *Locker) WithLock(userID int64, fn func() error) error {
	entry := l.acquire(userID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		l.release(userID)
	}()
	return fn()
}

// active returns the number of lock entries currently tracked.
func (l *Locker) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
