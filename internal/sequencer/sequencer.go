// Package sequencer runs calls one at a time in submission order.
package sequencer

import (
	"context"
	"sync"
)

// Queue admits one call at a time. The zero value is ready to use.
//
// Each call takes the current tail of the chain and installs its own done
// channel as the new tail under mu, so submission order is the order in
// which calls reach Do. A call waits for its predecessor to settle, runs,
// and then releases its successor whether it returned an error or panicked.
// A queued call is not abandoned when ctx is cancelled; fn observes ctx.
type Queue struct {
	mu   sync.Mutex
	tail chan struct{}
}

// Do runs fn after every previously submitted call has settled.
func (q *Queue) Do(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan struct{})
	q.mu.Lock()
	prev := q.tail
	q.tail = done
	q.mu.Unlock()
	defer close(done)

	if prev != nil {
		<-prev
	}
	return fn(ctx)
}

// Idle reports whether no call is queued or running.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	tail := q.tail
	q.mu.Unlock()
	if tail == nil {
		return true
	}
	select {
	case <-tail:
		return true
	default:
		return false
	}
}

// Run is Do for calls that produce a value.
func Run[T any](ctx context.Context, q *Queue, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := q.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}
