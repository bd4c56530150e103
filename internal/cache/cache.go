// Package cache holds the in-memory caches of the server and the janitor
// that expires their entries.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cleaner is implemented by caches whose entries expire.
type Cleaner interface {
	CleanExpired() int
}

var _ Cleaner = (*LRUCache[struct{}])(nil)

// Manager runs CleanExpired on every registered cache at a fixed interval.
type Manager struct {
	mu      sync.Mutex
	caches  []Cleaner
	stop    chan struct{}
	done    chan struct{}
	stopped sync.Once
}

func NewManager() *Manager {
	return &Manager{}
}

// Register adds c to the caches swept by the janitor.
func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	m.caches = append(m.caches, c)
	m.mu.Unlock()
}

// StartCleanup starts the janitor. Calling it again while it runs does
// nothing.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(interval, m.stop, m.done)
}

func (m *Manager) run(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Debug("Expired cache entries removed", "component", "cache", "count", n)
			}
		case <-stop:
			return
		}
	}
}

// Sweep expires entries in every registered cache now and returns how many
// were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()
	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

// Stop ends the janitor and waits for it. It is safe to call more than once
// and before StartCleanup.
func (m *Manager) Stop() {
	m.stopped.Do(func() {
		m.mu.Lock()
		stop, done := m.stop, m.done
		m.mu.Unlock()
		if stop == nil {
			return
		}
		close(stop)
		<-done
	})
}
