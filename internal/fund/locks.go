package fund

import "sync"

// Locker serializes mutating operations per fund id. Concurrent buys, sells,
// and trades on the same fund read and write the shared assets basket and
// token supply; without per-fund exclusion two writers can both read the
// same supply and lose one update. The storage layer's version check catches
// cross-instance races; this lock prevents them within one process.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocker creates a per-fund lock set.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for the given fund id and returns its unlock
// function.
func (l *Locker) Lock(fundID string) func() {
	l.mu.Lock()
	m, ok := l.locks[fundID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[fundID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
