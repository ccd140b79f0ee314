// Package queue implements the durable queue abstraction (spec §4.2): a
// FIFO with delayed visibility, repeatable cron/interval entries, per-task
// idempotency keys, and terminal-event notifications for subscribers.
package queue

import (
	"encoding/json"
	"time"
)

// Status is a Task's lifecycle state.
type Status string

const (
	Queued    Status = "queued"
	Running   Status = "running"
	Paused    Status = "paused"
	Completed Status = "completed"
	Failed    Status = "failed"
	Cancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// Backoff describes the retry delay policy for a Task.
type Backoff struct {
	Type       string // "exponential" | "fixed"
	BaseDelay  time.Duration
}

// EnqueueOptions configures Enqueue (spec §4.2's `opts`).
type EnqueueOptions struct {
	// Source is the idempotency key: a second Enqueue for the same (kind,
	// source) while an active task exists is silently rejected.
	Source       string
	DelayMs      int64
	Attempts     int
	Backoff      Backoff
}

// Task is one unit of work flowing through a queue, handled by the
// HandlerRegistry entry matching its Kind.
type Task struct {
	ID             string
	Kind           string
	Source         string
	Payload        json.RawMessage
	Status         Status
	RunAt          time.Time
	Attempts       int
	MaxAttempts    int
	BackoffBaseMS  int64
	Error          string
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	UpdatedAt      time.Time
}

func (t *Task) Start(now time.Time) {
	t.Status = Running
	t.StartedAt = &now
	t.UpdatedAt = now
}

func (t *Task) Complete(now time.Time) {
	t.Status = Completed
	t.CompletedAt = &now
	t.UpdatedAt = now
}

func (t *Task) Fail(err error, now time.Time) {
	t.Status = Failed
	if err != nil {
		t.Error = err.Error()
	}
	t.CompletedAt = &now
	t.UpdatedAt = now
}

func (t *Task) Cancel(reason string, now time.Time) {
	t.Status = Cancelled
	t.Error = reason
	t.CompletedAt = &now
	t.UpdatedAt = now
}
