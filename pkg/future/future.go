// Package future runs latent operations off the caller's goroutine and hands
// their results back only to views that are still alive.
package future

import (
	"context"
	"sync"
)

// Future is the eventual result of an operation started with Go
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go starts fn on its own goroutine. fn runs under a context that keeps the
// caller's values but not its cancellation: once started, the call completes
// even if the caller goes away.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	detached := context.WithoutCancel(ctx)
	go func() {
		defer close(f.done)
		f.value, f.err = fn(detached)
	}()
	return f
}

// Resolved returns a future that is already complete
func Resolved[T any](value T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), value: value, err: err}
	close(f.done)
	return f
}

// Done is closed when the result is available
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the result is available or ctx ends.
// Giving up on the wait does not stop the underlying operation.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Lifetime marks whether the view that started an operation is still around
type Lifetime struct {
	mu    sync.RWMutex
	ended bool
}

// NewLifetime returns a live Lifetime
func NewLifetime() *Lifetime {
	return &Lifetime{}
}

// End marks the view as torn down
func (l *Lifetime) End() {
	l.mu.Lock()
	l.ended = true
	l.mu.Unlock()
}

// Alive reports whether End has not been called
func (l *Lifetime) Alive() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.ended
}

// Deliver waits for f in the background and calls handler with the result,
// unless the lifetime ended first. The returned channel closes once the
// result was either delivered (true) or dropped (false).
func Deliver[T any](lt *Lifetime, f *Future[T], handler func(T, error)) <-chan bool {
	out := make(chan bool, 1)
	go func() {
		defer close(out)
		<-f.done
		lt.mu.RLock()
		defer lt.mu.RUnlock()
		if lt.ended {
			out <- false
			return
		}
		handler(f.value, f.err)
		out <- true
	}()
	return out
}
