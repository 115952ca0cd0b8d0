// Package locks provides per-key mutual exclusion with bounded wait. It is
// the only concurrency-control primitive used by the sync core: every
// mutating operation on a modpack runs under its pack id key.
package locks

import (
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a lock is not granted within the caller's
// timeout. Not retryable mid-operation; surface as "operation busy".
var ErrLockTimeout = errors.New("timed out waiting for lock")

// Manager hands out process-lifetime locks keyed by opaque strings. Nothing
// is persisted, so a crash can never leave a permanently stuck lock.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	held    bool
	waiters []chan struct{} // FIFO; closed channel = lock handed to that waiter
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{locks: make(map[string]*keyLock)}
}

// Acquire takes the lock for key, waiting at most timeout. On success it
// returns a release function; releasing twice is a no-op. Waiters are
// granted the lock in FIFO order.
func (m *Manager) Acquire(key string, timeout time.Duration) (func(), error) {
	m.mu.Lock()
	kl := m.locks[key]
	if kl == nil {
		kl = &keyLock{}
		m.locks[key] = kl
	}
	if !kl.held {
		kl.held = true
		m.mu.Unlock()
		return m.releaseFunc(key), nil
	}

	grant := make(chan struct{})
	kl.waiters = append(kl.waiters, grant)
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-grant:
		return m.releaseFunc(key), nil
	case <-timer.C:
		m.mu.Lock()
		for i, w := range kl.waiters {
			if w == grant {
				kl.waiters = append(kl.waiters[:i], kl.waiters[i+1:]...)
				m.mu.Unlock()
				return nil, ErrLockTimeout
			}
		}
		m.mu.Unlock()
		// The grant raced with the timer: we already own the lock, so pass
		// it straight on and report the timeout.
		<-grant
		m.release(key)
		return nil, ErrLockTimeout
	}
}

// WithLock runs fn while holding the lock for key. The lock is released on
// every exit path, including a panic inside fn.
func (m *Manager) WithLock(key string, timeout time.Duration, fn func() error) error {
	release, err := m.Acquire(key, timeout)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func (m *Manager) releaseFunc(key string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { m.release(key) })
	}
}

func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kl := m.locks[key]
	if kl == nil {
		return
	}
	if len(kl.waiters) > 0 {
		next := kl.waiters[0]
		kl.waiters = kl.waiters[1:]
		close(next) // hand off; held stays true
		return
	}
	kl.held = false
	delete(m.locks, key)
}
