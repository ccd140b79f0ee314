// Package capacity implements the admission controller (spec §4.4): a
// single global running-count gate shared by the job-execution and
// monitor-execution queues.
package capacity

import (
	"time"

	"github.com/supercheck/core/internal/queue"
	"github.com/supercheck/core/internal/xerrors"
)

// delayOnReject is the fixed delay applied via moveToDelayed when a task is
// rejected for being over capacity (spec §4.4).
const delayOnReject = 5 * time.Second

// Controller gates task admission on the combined active count across the
// execution queues it watches. RunningCapacity is the only tunable; there is
// no per-queue sub-limit.
type Controller struct {
	queue           *queue.Queue
	executionKinds  []string
	runningCapacity int
}

func New(q *queue.Queue, runningCapacity int, executionKinds ...string) *Controller {
	if runningCapacity <= 0 {
		runningCapacity = 5
	}
	return &Controller{queue: q, executionKinds: executionKinds, runningCapacity: runningCapacity}
}

// Admit reports whether task may proceed. On rejection it also delays the
// task's visibility by 5s via MoveToDelayed and returns a
// KindCapacityRejection error — this never consumes one of the task's
// retry attempts (spec §4.4, §7).
//
// If the active count can't be determined, Admit fails open (admits the
// task) rather than stalling the system on a transient count query error.
func (c *Controller) Admit(task *queue.Task) (bool, error) {
	active, err := c.queue.ActiveCount(c.executionKinds...)
	if err != nil {
		return true, nil
	}

	if active < c.runningCapacity {
		return true, nil
	}

	if moveErr := c.queue.MoveToDelayed(task.ID, time.Now().Add(delayOnReject)); moveErr != nil {
		return false, xerrors.Wrap(moveErr, "failed to delay over-capacity task")
	}

	return false, xerrors.CapacityRejection(xerrors.Newf(
		"over capacity: %d active >= running_capacity %d", active, c.runningCapacity))
}
