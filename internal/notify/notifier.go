// Package notify coalesces bursts of state changes into a single broadcast.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQuietWindow is the wait between the first invalidation of a burst
// and the refresh that answers it
const DefaultQuietWindow = 100 * time.Millisecond

// Notifier publishes snapshots of some state to subscribers. Invalidate may
// be called from any goroutine; at most one refresh is pending at a time.
type Notifier[T any] struct {
	quiet    time.Duration
	snapshot func() T

	waiting atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
	closed bool
}

// New creates a notifier. No goroutine is started until the first Invalidate.
func New[T any](quiet time.Duration, snapshot func() T) *Notifier[T] {
	if quiet <= 0 {
		quiet = DefaultQuietWindow
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Notifier[T]{
		quiet:    quiet,
		snapshot: snapshot,
		ctx:      ctx,
		cancel:   cancel,
		subs:     make(map[int]chan T),
	}
}

// Invalidate schedules a refresh one quiet window from now unless one is
// already pending, in which case the call is absorbed.
func (n *Notifier[T]) Invalidate() {
	if !n.waiting.CompareAndSwap(false, true) {
		return
	}

	go func() {
		// released even when the wait is cancelled
		defer n.waiting.Store(false)

		timer := time.NewTimer(n.quiet)
		defer timer.Stop()

		select {
		case <-n.ctx.Done():
			return
		case <-timer.C:
		}

		n.Refresh()
	}()
}

// Pending reports whether a refresh is scheduled
func (n *Notifier[T]) Pending() bool {
	return n.waiting.Load()
}

// Refresh takes a snapshot and hands it to every subscriber. Slow
// subscribers only ever see the latest value.
func (n *Notifier[T]) Refresh() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}

	value := n.snapshot()
	for _, ch := range n.subs {
		select {
		case <-ch:
		default:
		}
		ch <- value
	}
}

// Subscribe returns a channel receiving refreshed snapshots and a function
// that ends the subscription
func (n *Notifier[T]) Subscribe() (<-chan T, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan T, 1)
	if n.closed {
		close(ch)
		return ch, func() {}
	}

	id := n.nextID
	n.nextID++
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if _, ok := n.subs[id]; ok {
				delete(n.subs, id)
				close(ch)
			}
		})
	}
}

// Close cancels any pending refresh and closes all subscriber channels
func (n *Notifier[T]) Close() {
	n.cancel()

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}
