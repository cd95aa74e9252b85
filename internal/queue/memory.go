package queue

import (
	"context"
	"sync"
	"time"
)

var _ Queue = (*MemoryQueue)(nil)

// MemoryQueue is an in-process Queue. Delayed tasks are held in timers; no
// task survives a restart.
type MemoryQueue struct {
	mu      sync.Mutex
	ready   chan Task
	timers  map[*time.Timer]struct{}
	dead    []Task
	delayed []DelayedTask
	closed  bool
}

// DelayedTask records an EnqueueAfter call
type DelayedTask struct {
	Task  Task
	Delay time.Duration
}

// NewMemoryQueue creates a MemoryQueue buffering up to size ready tasks
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{
		ready:  make(chan Task, size),
		timers: make(map[*time.Timer]struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, task Task) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case q.ready <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) EnqueueAfter(_ context.Context, task Task, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}

	q.delayed = append(q.delayed, DelayedTask{Task: task, Delay: delay})

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		closed := q.closed
		q.mu.Unlock()
		if !closed {
			q.ready <- task
		}
	})
	q.timers[timer] = struct{}{}
	return nil
}

func (q *MemoryQueue) Consume(ctx context.Context, _ string) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case task := <-q.ready:
				select {
				case out <- &memoryDelivery{queue: q, task: task}:
				case <-ctx.Done():
					q.requeue(task)
					return
				}
			}
		}
	}()
	return out, nil
}

// Ping always succeeds for the memory queue
func (q *MemoryQueue) Ping(_ context.Context) error { return nil }

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for t := range q.timers {
		t.Stop()
	}
	q.timers = map[*time.Timer]struct{}{}
	return nil
}

// Len returns the number of tasks ready for delivery
func (q *MemoryQueue) Len() int {
	return len(q.ready)
}

// Delayed returns every EnqueueAfter call made so far
func (q *MemoryQueue) Delayed() []DelayedTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DelayedTask(nil), q.delayed...)
}

// DeadLettered returns the tasks that were nacked without requeue
func (q *MemoryQueue) DeadLettered() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Task(nil), q.dead...)
}

func (q *MemoryQueue) requeue(task Task) {
	select {
	case q.ready <- task:
	default:
	}
}

type memoryDelivery struct {
	queue *MemoryQueue
	task  Task
}

func (d *memoryDelivery) Task() Task { return d.task }

func (d *memoryDelivery) Ack() error { return nil }

func (d *memoryDelivery) Nack(requeue bool) error {
	if requeue {
		d.queue.requeue(d.task)
		return nil
	}
	d.queue.mu.Lock()
	d.queue.dead = append(d.queue.dead, d.task)
	d.queue.mu.Unlock()
	return nil
}
