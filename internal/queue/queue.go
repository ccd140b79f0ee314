package queue

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/supercheck/core/internal/xerrors"
)

// MaxListLimit bounds unbounded list queries the same way the teacher's
// MaxJobsLimit did — callers asking for "all" still get a bounded scan.
const MaxListLimit = 10000

// SubscriberChannelBufferSize is the buffer depth for each Subscribe channel.
const SubscriberChannelBufferSize = 100

// Queue is a FIFO with delayed visibility, repeatable entries, and terminal
// event notification, backed by Store (spec §4.2).
type Queue struct {
	store       *Store
	mu          sync.RWMutex
	subscribers []chan *Task
}

func New(store *Store) *Queue {
	return &Queue{store: store}
}

// Enqueue creates a new Task of kind. If opts.Source is non-empty and an
// active (queued/running/paused) task already exists for (kind, source), the
// enqueue is silently rejected — this is the idempotency key from spec §4.2.
func (q *Queue) Enqueue(kind string, payload interface{}, opts EnqueueOptions) (*Task, error) {
	if opts.Source != "" {
		existing, err := q.store.FindActiveBySource(kind, opts.Source)
		if err != nil {
			return nil, xerrors.Wrap(err, "failed to check for duplicate task")
		}
		if existing != nil {
			return existing, nil
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to marshal task payload")
	}

	now := time.Now().UTC()
	runAt := now
	if opts.DelayMs > 0 {
		runAt = now.Add(time.Duration(opts.DelayMs) * time.Millisecond)
	}

	maxAttempts := opts.Attempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoffBase := int64(opts.Backoff.BaseDelay / time.Millisecond)
	if backoffBase <= 0 {
		backoffBase = 5000
	}

	task := &Task{
		ID:            uuid.NewString(),
		Kind:          kind,
		Source:        opts.Source,
		Payload:       body,
		Status:        Queued,
		RunAt:         runAt,
		MaxAttempts:   maxAttempts,
		BackoffBaseMS: backoffBase,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := q.store.CreateTask(task); err != nil {
		return nil, xerrors.Wrapf(err, "failed to enqueue task kind=%s source=%s", kind, opts.Source)
	}

	q.notify(task)
	return task, nil
}

// Dequeue claims the oldest visible queued task of kind, or nil if none.
func (q *Queue) Dequeue(kind string) (*Task, error) {
	task, err := q.store.DequeueNext(kind, time.Now().UTC())
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to dequeue task")
	}
	if task == nil {
		return nil, nil
	}
	q.notify(task)
	return task, nil
}

func (q *Queue) GetTask(id string) (*Task, error) {
	return q.store.GetTask(id)
}

// Complete marks a task completed. Calling it twice on an already-terminal
// task is a no-op, matching the teacher's CompleteJob idempotence.
func (q *Queue) Complete(id string) error {
	task, err := q.store.GetTask(id)
	if err != nil {
		return xerrors.Wrapf(err, "failed to load task %s", id)
	}
	if task.Status.Terminal() {
		return nil
	}
	task.Complete(time.Now().UTC())
	if err := q.store.UpdateTask(task); err != nil {
		return xerrors.Wrap(err, "failed to complete task")
	}
	q.notify(task)
	return nil
}

// Fail records a task failure. If attempts remain, it requeues with
// exponential backoff (BackoffBaseMS doubled per attempt already made)
// instead of marking it terminal. Backoff.Type is not stored with the task,
// so a "fixed" backoff is handled as exponential too.
func (q *Queue) Fail(id string, taskErr error) error {
	task, err := q.store.GetTask(id)
	if err != nil {
		return xerrors.Wrapf(err, "failed to load task %s", id)
	}
	if task.Status.Terminal() {
		return nil
	}

	task.Attempts++
	now := time.Now().UTC()

	if task.Attempts < task.MaxAttempts {
		delay := time.Duration(task.BackoffBaseMS) * time.Millisecond * time.Duration(1<<uint(task.Attempts-1))
		task.Status = Queued
		task.RunAt = now.Add(delay)
		task.Error = taskErr.Error()
		task.UpdatedAt = now
		if err := q.store.UpdateTask(task); err != nil {
			return xerrors.Wrap(err, "failed to requeue failed task")
		}
		q.notify(task)
		return nil
	}

	task.Fail(taskErr, now)
	if err := q.store.UpdateTask(task); err != nil {
		return xerrors.Wrap(err, "failed to fail task")
	}
	q.notify(task)
	return nil
}

// MoveToDelayed pushes a queued task's visibility forward, used by the
// Capacity admission controller to reschedule without consuming an attempt.
func (q *Queue) MoveToDelayed(id string, until time.Time) error {
	task, err := q.store.GetTask(id)
	if err != nil {
		return xerrors.Wrapf(err, "failed to load task %s", id)
	}
	task.Status = Queued
	task.RunAt = until
	task.UpdatedAt = time.Now().UTC()
	if err := q.store.UpdateTask(task); err != nil {
		return xerrors.Wrap(err, "failed to move task to delayed")
	}
	return nil
}

func (q *Queue) Cancel(id, reason string) error {
	task, err := q.store.GetTask(id)
	if err != nil {
		return xerrors.Wrapf(err, "failed to load task %s", id)
	}
	if task.Status.Terminal() {
		return nil
	}
	task.Cancel(reason, time.Now().UTC())
	if err := q.store.UpdateTask(task); err != nil {
		return xerrors.Wrap(err, "failed to cancel task")
	}
	q.notify(task)
	return nil
}

func (q *Queue) ListByStatus(status Status, limit int) ([]*Task, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	return q.store.ListByStatus(status, limit)
}

// ActiveCount returns the combined running-task count across kinds — the
// value the Capacity admission controller gates on.
func (q *Queue) ActiveCount(kinds ...string) (int, error) {
	return q.store.ActiveCountForKinds(kinds)
}

// UpsertRepeatable installs a single authoritative repeatable entry keyed by
// (kind, key). Calling it twice with the same key updates the one entry
// rather than creating a duplicate (idempotent, per spec §4.2).
func (q *Queue) UpsertRepeatable(kind, key string, payload interface{}, cronExpr string, everyMs int64, nextFireAt time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return xerrors.Wrap(err, "failed to marshal repeatable payload")
	}
	return q.store.UpsertRepeatable(kind, key, body, cronExpr, everyMs, nextFireAt)
}

func (q *Queue) DeleteRepeatable(kind, key string) error {
	return q.store.DeleteRepeatable(kind, key)
}

func (q *Queue) DueRepeatables(kind string) ([]*RepeatableEntry, error) {
	return q.store.DueRepeatables(kind, time.Now().UTC())
}

func (q *Queue) AdvanceRepeatable(kind, key string, nextFireAt time.Time) error {
	return q.store.AdvanceRepeatable(kind, key, nextFireAt)
}

// Cleanup enforces terminal-state retention (spec §4.2): successes kept at
// least 24h capped at 1000, failures kept 7 days capped at 5000.
func (q *Queue) Cleanup(completedRetention, failedRetention time.Duration, completedCap, failedCap int) (int, error) {
	c1, err := q.store.CleanupTerminal(Completed, completedRetention, completedCap)
	if err != nil {
		return c1, err
	}
	c2, err := q.store.CleanupTerminal(Failed, failedRetention, failedCap)
	return c1 + c2, err
}

// Subscribe returns a channel that receives every task mutation. The
// channel is buffered; a slow subscriber misses notifications rather than
// blocking the queue (non-blocking send, same tradeoff as the teacher).
func (q *Queue) Subscribe() chan *Task {
	ch := make(chan *Task, SubscriberChannelBufferSize)
	q.mu.Lock()
	q.subscribers = append(q.subscribers, ch)
	q.mu.Unlock()
	return ch
}

func (q *Queue) Unsubscribe(ch chan *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, sub := range q.subscribers {
		if sub == ch {
			q.subscribers = append(q.subscribers[:i], q.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (q *Queue) notify(task *Task) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, ch := range q.subscribers {
		select {
		case ch <- task:
		default:
			// Drop rather than block the queue on a slow subscriber.
		}
	}
}
