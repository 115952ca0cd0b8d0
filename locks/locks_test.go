package locks

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWithLockSerializes(t *testing.T) {
	m := NewManager()

	var mu sync.Mutex
	var active, maxActive int
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithLock("pack-1", time.Second, func() error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("WithLock returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("observed %d concurrent holders of the same key, want 1", maxActive)
	}
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	m := NewManager()

	release, err := m.Acquire("pack-a", time.Second)
	if err != nil {
		t.Fatalf("Acquire(pack-a) failed: %v", err)
	}
	defer release()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := m.WithLock("pack-b", 50*time.Millisecond, func() error { return nil }); err != nil {
			t.Errorf("lock on an unrelated key should not block: %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key never completed")
	}
}

func TestAcquireTimeout(t *testing.T) {
	m := NewManager()

	release, err := m.Acquire("pack-1", time.Second)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	start := time.Now()
	if _, err := m.Acquire("pack-1", 50*time.Millisecond); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	elapsed := time.Since(start)

	// Timeout must be governed by the waiter's bound, not the holder's.
	if elapsed < 40*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Errorf("timeout fired after %v, want roughly 50ms", elapsed)
	}

	release()
}

func TestFIFOGrantOrder(t *testing.T) {
	m := NewManager()

	release, err := m.Acquire("pack-1", time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := m.WithLock("pack-1", time.Second, func() error {
				mu.Lock()
				order = append(order, n)
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("waiter %d failed: %v", n, err)
			}
		}(i)
		// Give each waiter time to enqueue so the queue order is deterministic.
		time.Sleep(20 * time.Millisecond)
	}

	release()
	wg.Wait()

	for i, n := range order {
		if n != i {
			t.Fatalf("grant order = %v, want FIFO", order)
		}
	}
}

func TestTimedOutWaiterDoesNotDisturbQueue(t *testing.T) {
	m := NewManager()

	release, err := m.Acquire("pack-1", time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// First waiter times out quickly.
	timedOut := make(chan error, 1)
	go func() {
		_, err := m.Acquire("pack-1", 30*time.Millisecond)
		timedOut <- err
	}()
	time.Sleep(10 * time.Millisecond)

	// Second waiter outlives the first one's timeout.
	granted := make(chan error, 1)
	go func() {
		granted <- m.WithLock("pack-1", time.Second, func() error { return nil })
	}()

	if err := <-timedOut; !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("first waiter: expected ErrLockTimeout, got %v", err)
	}

	release()

	select {
	case err := <-granted:
		if err != nil {
			t.Errorf("surviving waiter failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("surviving waiter never got the lock after the holder released")
	}
}

func TestWithLockReleasesOnError(t *testing.T) {
	m := NewManager()

	wantErr := errors.New("boom")
	if err := m.WithLock("pack-1", time.Second, func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("WithLock should surface fn's error, got %v", err)
	}

	// The key must be free again.
	if err := m.WithLock("pack-1", 50*time.Millisecond, func() error { return nil }); err != nil {
		t.Errorf("lock was not released after fn error: %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := NewManager()

	release, err := m.Acquire("pack-1", time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	release()
	release() // second call must be a no-op

	if err := m.WithLock("pack-1", 50*time.Millisecond, func() error { return nil }); err != nil {
		t.Errorf("key unusable after double release: %v", err)
	}
}
