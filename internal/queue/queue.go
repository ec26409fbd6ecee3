package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrQueueClosed = errors.New("queue is closed")
)

// Job is the unit of work handed from the inbound transport to the pipeline
// worker. The queue owns it between enqueue and pickup; the worker owns it
// until terminal.
type Job struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	ChannelID  string    `json:"channelId"`
	MessageID  string    `json:"messageId"`
	GuildID    string    `json:"guildId,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Queue is the durable work queue substrate. Delivery guarantees are the
// implementation's; the pipeline does not re-implement them.
type Queue interface {
	Enqueue(ctx context.Context, job *Job) error
	Dequeue(ctx context.Context) (*Job, error)
	Size(ctx context.Context) (int64, error)
	Close() error
}

// MemoryQueue is an in-process queue used in tests and single-process runs.
// Blocked Dequeue callers park on the wake channel, never inside the lock, so
// cancellation is just a select branch.
type MemoryQueue struct {
	mu     sync.Mutex
	jobs   []*Job
	closed bool
	wake   chan struct{}
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{wake: make(chan struct{}, 1)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.jobs = append(q.jobs, job)
	q.notify()
	return nil
}

// Dequeue blocks until a job is available, the queue closes, or the context
// is cancelled. A waiter that makes progress re-arms the wake token whenever
// more work (or the close) is still observable, so one consumed wakeup never
// strands the remaining waiters.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			if len(q.jobs) > 0 || q.closed {
				q.notify()
			}
			q.mu.Unlock()
			return job, nil
		}
		if q.closed {
			q.notify()
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.wake:
		}
	}
}

func (q *MemoryQueue) Size(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.notify()
	return nil
}

// notify arms the wake token without blocking; callers hold q.mu.
func (q *MemoryQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
