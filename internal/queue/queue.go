// Package queue decouples job submission from job execution. A Task names
// the job to run and which attempt it is; backends deliver tasks to the
// worker with at-least-once semantics.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned when using a queue after Close
var ErrClosed = errors.New("queue closed")

// Task is the unit of work carried by the queue
type Task struct {
	JobID   string `json:"job_id"`
	Attempt int    `json:"attempt"`
}

// NewTask creates the first-attempt task for a job
func NewTask(jobID string) Task {
	return Task{JobID: jobID, Attempt: 1}
}

// Next returns the task for the following attempt of the same job
func (t Task) Next() Task {
	return Task{JobID: t.JobID, Attempt: t.AttemptNumber() + 1}
}

// AttemptNumber returns the attempt, treating missing values as the first one
func (t Task) AttemptNumber() int {
	if t.Attempt < 1 {
		return 1
	}
	return t.Attempt
}

// IsRetry reports whether this task is a re-attempt after a failure
func (t Task) IsRetry() bool {
	return t.AttemptNumber() > 1
}

// Encode serializes the task into a message body
func (t Task) Encode() ([]byte, error) {
	return json.Marshal(t)
}

// DecodeTask parses a message body produced by Task.Encode
func DecodeTask(body []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(body, &t); err != nil {
		return Task{}, fmt.Errorf("failed to decode task: %w", err)
	}
	if t.JobID == "" {
		return Task{}, errors.New("failed to decode task: missing job_id")
	}
	t.Attempt = t.AttemptNumber()
	return t, nil
}

// Delivery is a task handed to a consumer. Exactly one of Ack or Nack must
// be called once the task has been handled.
type Delivery interface {
	Task() Task
	Ack() error
	// Nack rejects the delivery. With requeue the task is delivered again,
	// otherwise it is dead-lettered when the backend supports it.
	Nack(requeue bool) error
}

// Publisher enqueues tasks
type Publisher interface {
	Enqueue(ctx context.Context, task Task) error
	EnqueueAfter(ctx context.Context, task Task, delay time.Duration) error
}

// Queue is a task queue with immediate and delayed publishing
type Queue interface {
	Publisher
	// Consume starts delivering tasks until ctx is canceled or the queue
	// is closed, at which point the channel is closed.
	Consume(ctx context.Context, consumerTag string) (<-chan Delivery, error)
	Ping(ctx context.Context) error
	Close() error
}
