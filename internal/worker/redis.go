package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	defaultQueueName = "modelrt:calls"
	// dequeuePoll bounds each BRPOP so ctx cancellation is noticed.
	dequeuePoll = time.Second
	// cancelMarkTTL keeps early cancel signals until the worker reaches the call.
	cancelMarkTTL = 10 * time.Minute
)

// RedisBroker queues calls in a Redis list (LPUSH/BRPOP) and delivers
// replies and cancel signals over pub/sub.
type RedisBroker struct {
	rdb   *redis.Client
	queue string
}

func NewRedisBroker(rdb *redis.Client, queue string) *RedisBroker {
	if queue == "" {
		queue = defaultQueueName
	}
	return &RedisBroker{rdb: rdb, queue: queue}
}

func replyChannel(id string) string  { return "modelrt:reply:" + id }
func cancelChannel(id string) string { return "modelrt:cancel:" + id }
func cancelKey(id string) string     { return "modelrt:cancelled:" + id }

func (b *RedisBroker) Enqueue(ctx context.Context, call *Call) error {
	item, err := json.Marshal(call)
	if err != nil {
		return err
	}
	return b.rdb.LPush(ctx, b.queue, item).Err()
}

func (b *RedisBroker) Dequeue(ctx context.Context) (*Call, error) {
	for {
		data, err := b.rdb.BRPop(ctx, dequeuePoll, b.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if len(data) < 2 {
			continue
		}
		var call Call
		if err := json.Unmarshal([]byte(data[1]), &call); err != nil {
			return nil, fmt.Errorf("decode call: %w", err)
		}
		return &call, nil
	}
}

type redisSub struct {
	ps *redis.PubSub
	ch chan *Reply
}

func (s *redisSub) Replies() <-chan *Reply { return s.ch }
func (s *redisSub) Close() error           { return s.ps.Close() }

// Subscribe waits for the subscription to be confirmed so a reply published
// right after Enqueue is not missed.
func (b *RedisBroker) Subscribe(ctx context.Context, id string) (Subscription, error) {
	ps := b.rdb.Subscribe(ctx, replyChannel(id))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	sub := &redisSub{ps: ps, ch: make(chan *Reply, 1)}
	go func() {
		for msg := range ps.Channel() {
			var r Reply
			if err := json.Unmarshal([]byte(msg.Payload), &r); err != nil {
				r = Reply{ID: id, Error: "decode reply: " + err.Error(), Code: CodeInternal}
			}
			select {
			case sub.ch <- &r:
			default:
			}
		}
	}()
	return sub, nil
}

func (b *RedisBroker) Publish(ctx context.Context, r *Reply) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, replyChannel(r.ID), data).Err()
}

func (b *RedisBroker) SignalCancel(ctx context.Context, id string) error {
	if err := b.rdb.Set(ctx, cancelKey(id), 1, cancelMarkTTL).Err(); err != nil {
		return err
	}
	return b.rdb.Publish(ctx, cancelChannel(id), "cancel").Err()
}

func (b *RedisBroker) WatchCancel(ctx context.Context, id string) (<-chan struct{}, error) {
	ps := b.rdb.Subscribe(ctx, cancelChannel(id))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	done := make(chan struct{})
	n, err := b.rdb.Exists(ctx, cancelKey(id)).Result()
	if err != nil {
		_ = ps.Close()
		return nil, err
	}
	if n > 0 {
		close(done)
		_ = ps.Close()
		b.rdb.Del(context.Background(), cancelKey(id))
		return done, nil
	}
	go func() {
		defer ps.Close()
		select {
		case <-ps.Channel():
			close(done)
		case <-ctx.Done():
		}
		b.rdb.Del(context.Background(), cancelKey(id))
	}()
	return done, nil
}
