package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

// MemoryQueue is an in-process go-job queue for single-binary deployments.
// Messages deduplicate on idempotency key while queued or in flight, so a
// slow sweep never stacks up behind its own schedule.
type MemoryQueue struct {
	mu       sync.Mutex
	inflight map[string]struct{}
	dead     []*job.ExecutionMessage
	messages chan *job.ExecutionMessage
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &MemoryQueue{
		inflight: map[string]struct{}{},
		messages: make(chan *job.ExecutionMessage, capacity),
	}
}

// Enqueue adds a message without blocking. A duplicate idempotency key is
// dropped silently; a full queue is an error the caller decides about.
func (q *MemoryQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	if q == nil {
		return fmt.Errorf("gojob: queue is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	key := strings.TrimSpace(msg.IdempotencyKey)
	if key != "" {
		q.mu.Lock()
		if _, dup := q.inflight[key]; dup {
			q.mu.Unlock()
			return nil
		}
		q.inflight[key] = struct{}{}
		q.mu.Unlock()
	}
	select {
	case q.messages <- msg:
		return nil
	default:
		q.release(key)
		return fmt.Errorf("gojob: queue is full")
	}
}

// Dequeue blocks until a message is available or the context ends.
func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	if q == nil {
		return nil, fmt.Errorf("gojob: queue is not configured")
	}
	select {
	case msg := <-q.messages:
		return &memoryDelivery{queue: q, msg: msg}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DeadLetters returns the messages dropped after redelivery was refused.
func (q *MemoryQueue) DeadLetters() []*job.ExecutionMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*job.ExecutionMessage, len(q.dead))
	copy(out, q.dead)
	return out
}

func (q *MemoryQueue) release(key string) {
	if key == "" {
		return
	}
	q.mu.Lock()
	delete(q.inflight, key)
	q.mu.Unlock()
}

type memoryDelivery struct {
	queue *MemoryQueue
	msg   *job.ExecutionMessage
	done  sync.Once
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.msg
}

func (d *memoryDelivery) Ack(context.Context) error {
	d.done.Do(func() {
		d.queue.release(strings.TrimSpace(d.msg.IdempotencyKey))
	})
	return nil
}

// Nack either dead-letters, drops, or requeues the message. Delay is ignored:
// the in-process queue redelivers immediately.
func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	var err error
	d.done.Do(func() {
		key := strings.TrimSpace(d.msg.IdempotencyKey)
		if opts.DeadLetter {
			d.queue.mu.Lock()
			d.queue.dead = append(d.queue.dead, d.msg)
			if key != "" {
				delete(d.queue.inflight, key)
			}
			d.queue.mu.Unlock()
			return
		}
		if !opts.Requeue {
			d.queue.release(key)
			return
		}
		select {
		case d.queue.messages <- d.msg:
			// The idempotency key stays held: the message is back in line.
		default:
			d.queue.release(key)
			err = fmt.Errorf("gojob: queue is full")
		}
	})
	return err
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
)
