package orchestrator

import "sync"

// dealLocks provides per-deal mutual exclusion keyed by external ID.
// Acquisition never blocks: the caller either gets the lock or learns a run
// is already in flight.
type dealLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newDealLocks() *dealLocks {
	return &dealLocks{held: make(map[string]struct{})}
}

func (l *dealLocks) tryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

func (l *dealLocks) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
