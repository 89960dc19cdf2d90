package provision

import (
	"context"
	"sync"
)

// Tasks tracks background population per session so callers can wait for it.
type Tasks struct {
	mu      sync.Mutex
	running map[string]chan struct{}
	wg      sync.WaitGroup
}

// NewTasks returns an empty task tracker.
func NewTasks() *Tasks {
	return &Tasks{running: make(map[string]chan struct{})}
}

// Go runs fn in a goroutine tracked under key. A later task for the same key replaces the earlier
// one for Wait; both still count for WaitAll.
func (t *Tasks) Go(key string, fn func()) {
	done := make(chan struct{})
	t.mu.Lock()
	t.running[key] = done
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			t.mu.Lock()
			if t.running[key] == done {
				delete(t.running, key)
			}
			t.mu.Unlock()
			close(done)
		}()
		fn()
	}()
}

// Wait blocks until the latest task for key finishes or ctx is done. Returns nil at once if none runs.
func (t *Tasks) Wait(ctx context.Context, key string) error {
	t.mu.Lock()
	done, ok := t.running[key]
	t.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitAll blocks until every task finishes or ctx is done.
func (t *Tasks) WaitAll(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
