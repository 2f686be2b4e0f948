package worker

import (
	"context"
	"sync"
	"time"
)

const defaultMemoryBuffer = 128

// MemoryBroker is an in-process Broker backed by channels.
type MemoryBroker struct {
	calls         chan *Call
	subscribers   map[string]chan *Reply
	cancellations map[string]chan struct{}
	// cancelled holds signal times; marks older than markTTL are swept.
	cancelled map[string]time.Time
	markTTL   time.Duration
	now       func() time.Time
	mu        sync.Mutex
}

func NewMemoryBroker(bufferSize int) *MemoryBroker {
	if bufferSize <= 0 {
		bufferSize = defaultMemoryBuffer
	}
	return &MemoryBroker{
		calls:         make(chan *Call, bufferSize),
		subscribers:   make(map[string]chan *Reply),
		cancellations: make(map[string]chan struct{}),
		cancelled:     make(map[string]time.Time),
		markTTL:       cancelMarkTTL,
		now:           time.Now,
	}
}

func (b *MemoryBroker) Enqueue(ctx context.Context, call *Call) error {
	select {
	case b.calls <- call:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBroker) Dequeue(ctx context.Context) (*Call, error) {
	select {
	case c := <-b.calls:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports queued calls not yet dequeued.
func (b *MemoryBroker) Len() int { return len(b.calls) }

type memorySub struct {
	b  *MemoryBroker
	id string
	ch chan *Reply
}

func (s *memorySub) Replies() <-chan *Reply { return s.ch }

func (s *memorySub) Close() error {
	s.b.unsubscribe(s.id)
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, id string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *Reply, 1)
	b.subscribers[id] = ch
	return &memorySub{b: b, id: id, ch: ch}, nil
}

func (b *MemoryBroker) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, id)
}

// Publish drops the reply when nobody is subscribed.
func (b *MemoryBroker) Publish(_ context.Context, r *Reply) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[r.ID]; ok {
		select {
		case ch <- r:
		default:
		}
	}
	return nil
}

// SignalCancel marks id cancelled even if no worker watches it yet. Marks
// that no worker picks up expire after the same TTL the Redis broker uses.
func (b *MemoryBroker) SignalCancel(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sweepLocked()
	b.cancelled[id] = b.now()
	if ch, ok := b.cancellations[id]; ok {
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
	return nil
}

// WatchCancel state for id is dropped once ctx ends.
func (b *MemoryBroker) WatchCancel(ctx context.Context, id string) (<-chan struct{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sweepLocked()
	ch, ok := b.cancellations[id]
	if !ok {
		ch = make(chan struct{})
		b.cancellations[id] = ch
	}
	if _, marked := b.cancelled[id]; marked {
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.cancellations, id)
		delete(b.cancelled, id)
		b.mu.Unlock()
	}()
	return ch, nil
}

// sweepLocked drops expired cancel marks. Caller holds b.mu.
func (b *MemoryBroker) sweepLocked() {
	cutoff := b.now().Add(-b.markTTL)
	for id, at := range b.cancelled {
		if at.Before(cutoff) {
			delete(b.cancelled, id)
		}
	}
}

// pendingCancels reports cancel marks not yet swept.
func (b *MemoryBroker) pendingCancels() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.cancelled)
}
