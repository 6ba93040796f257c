package assets

import (
	"context"
	"sync"
)

// barrier tracks an outstanding set of keys and signals once when the set
// drains. Completion order does not matter.
type barrier struct {
	mu      sync.Mutex
	pending map[string]struct{}
	ready   chan struct{}
	closed  bool
}

func newBarrier(keys []string) *barrier {
	b := &barrier{
		pending: make(map[string]struct{}, len(keys)),
		ready:   make(chan struct{}),
	}
	for _, k := range keys {
		b.pending[k] = struct{}{}
	}
	if len(b.pending) == 0 {
		b.closed = true
		close(b.ready)
	}
	return b
}

// Complete removes key from the outstanding set. It reports whether this
// call drained the set.
func (b *barrier) Complete(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[key]; !ok {
		return false
	}
	delete(b.pending, key)
	if len(b.pending) == 0 && !b.closed {
		b.closed = true
		close(b.ready)
		return true
	}
	return false
}

// Outstanding returns the number of keys not yet completed.
func (b *barrier) Outstanding() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Ready is closed once every key has completed.
func (b *barrier) Ready() <-chan struct{} {
	return b.ready
}

// Wait blocks until the set drains or ctx is done.
func (b *barrier) Wait(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
