package job

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
)

// SubscriberChannelBufferSize is the buffer size for subscriber channels
const SubscriberChannelBufferSize = 100

// Queue is the job repository used by the scheduler and the HTTP surface.
// Every change is published to subscribers so observers can follow jobs
// live.
type Queue struct {
	store *Store
	now   func() time.Time

	mu          sync.RWMutex
	subscribers []chan *Job
}

// NewQueue creates a queue on a migrated database.
func NewQueue(db *sql.DB) *Queue {
	return &Queue{store: NewStore(db), now: time.Now}
}

// Store returns the underlying store.
func (q *Queue) Store() *Store {
	return q.store
}

// Enqueue persists a new scheduled job.
func (q *Queue) Enqueue(ctx context.Context, j *Job) error {
	if err := q.store.Create(ctx, j); err != nil {
		err = errors.Wrap(err, "failed to enqueue job")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", j.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Meeting: %s", j.Meeting))
		return err
	}
	q.publish(j)
	return nil
}

func (q *Queue) Get(ctx context.Context, id string) (*Job, error) {
	return q.store.Get(ctx, id)
}

func (q *Queue) NextScheduled(ctx context.Context) (*Job, error) {
	return q.store.NextScheduled(ctx)
}

func (q *Queue) ListFailed(ctx context.Context) ([]*Job, error) {
	return q.store.ListFailed(ctx)
}

func (q *Queue) List(ctx context.Context, f Filter) ([]*Job, error) {
	return q.store.List(ctx, f)
}

func (q *Queue) ExistsBySource(ctx context.Context, source string) (bool, error) {
	return q.store.ExistsBySource(ctx, source)
}

func (q *Queue) Summary(ctx context.Context) ([]StatusCount, error) {
	return q.store.Summary(ctx)
}

// Transition moves a job between statuses with a conditional update; see
// Store.Transition.
func (q *Queue) Transition(ctx context.Context, id string, from, to Status) error {
	if err := q.store.Transition(ctx, id, from, to, q.now()); err != nil {
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", id))
		err = errors.WithDetail(err, fmt.Sprintf("Transition: %s -> %s", from, to))
		return err
	}
	q.publishCurrent(ctx, id)
	return nil
}

func (q *Queue) IncrementRetry(ctx context.Context, id string) error {
	if err := q.store.IncrementRetry(ctx, id, q.now()); err != nil {
		return errors.WithDetail(err, fmt.Sprintf("Job ID: %s", id))
	}
	q.publishCurrent(ctx, id)
	return nil
}

func (q *Queue) AddGenerated(ctx context.Context, id, resource string) error {
	if err := q.store.AddGenerated(ctx, id, resource, q.now()); err != nil {
		return errors.WithDetail(err, fmt.Sprintf("Job ID: %s", id))
	}
	q.publishCurrent(ctx, id)
	return nil
}

// Subscribe returns a channel that receives a snapshot of every job that
// changes. The caller is responsible for calling Unsubscribe when done.
func (q *Queue) Subscribe() chan *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch := make(chan *Job, SubscriberChannelBufferSize)
	q.subscribers = append(q.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel from the queue.
// The channel is NOT closed by this method - callers should close it themselves
// after unsubscribing if needed. This prevents double-close panics.
func (q *Queue) Unsubscribe(ch chan *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, sub := range q.subscribers {
		if sub == ch {
			q.subscribers = append(q.subscribers[:i], q.subscribers[i+1:]...)
			return
		}
	}
}

func (q *Queue) publishCurrent(ctx context.Context, id string) {
	q.mu.RLock()
	listening := len(q.subscribers) > 0
	q.mu.RUnlock()
	if !listening {
		return
	}
	if j, err := q.store.Get(ctx, id); err == nil {
		q.publish(j)
	}
}

// publish uses non-blocking sends so a slow subscriber never stalls a job.
func (q *Queue) publish(j *Job) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, ch := range q.subscribers {
		copied := *j
		copied.Scope = append([]Scope(nil), j.Scope...)
		copied.Generated = append([]string(nil), j.Generated...)
		select {
		case ch <- &copied:
		default:
		}
	}
}
