// Package worker isolates runtime operations behind a queue. A single Worker
// goroutine executes calls in arrival order; hosts talk to it through a
// Client over a Broker (in-memory or Redis).
package worker

import "context"

// Broker moves calls to the worker and replies back to callers.
type Broker interface {
	// Enqueue appends a call to the queue.
	Enqueue(ctx context.Context, call *Call) error
	// Dequeue blocks until a call is available or ctx ends.
	Dequeue(ctx context.Context) (*Call, error)
	// Subscribe registers for the reply to call id. It must be called
	// before the call is enqueued.
	Subscribe(ctx context.Context, id string) (Subscription, error)
	// Publish delivers a reply to its subscriber, if any.
	Publish(ctx context.Context, reply *Reply) error
	// SignalCancel asks the worker to cancel call id. Signals sent before
	// the worker starts the call are not lost.
	SignalCancel(ctx context.Context, id string) error
	// WatchCancel returns a channel closed when SignalCancel(id) is issued.
	// Watching stops when ctx ends.
	WatchCancel(ctx context.Context, id string) (<-chan struct{}, error)
}

// Subscription receives the reply for one call.
type Subscription interface {
	Replies() <-chan *Reply
	Close() error
}
