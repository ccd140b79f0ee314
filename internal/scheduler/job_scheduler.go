// Package scheduler reconciles the Job and Monitor tables' schedules into
// the queue's repeatable entries, and fires execution tasks when they come
// due (spec §4.5, §4.7).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supercheck/core/internal/cronplan"
	"github.com/supercheck/core/internal/logging"
	"github.com/supercheck/core/internal/queue"
	"github.com/supercheck/core/internal/repo"
)

// JobExecutionPayload is the body of a task enqueued on JobExecutionKind.
type JobExecutionPayload struct {
	JobID      string `json:"job_id"`
	RunID      string `json:"run_id"`
	RetryLimit int    `json:"retry_limit"`
}

// JobScheduler reconciles jobs.cron_schedule into the queue's repeatable
// entries and, on fire, creates a Run and enqueues its execution task.
type JobScheduler struct {
	repo         *repo.Repo
	queue        *queue.Queue
	pollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *zap.SugaredLogger
}

func NewJobScheduler(r *repo.Repo, q *queue.Queue, pollInterval time.Duration) *JobScheduler {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &JobScheduler{repo: r, queue: q, pollInterval: pollInterval, log: logging.Named("scheduler.job")}
}

// Start reconciles once immediately, then runs a ticker loop that
// re-reconciles and checks for due repeatable entries every pollInterval.
func (s *JobScheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.Reconcile(); err != nil {
		s.log.Errorw("initial job reconciliation failed", "error", err)
	}

	s.wg.Add(1)
	go s.run()
}

func (s *JobScheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *JobScheduler) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.checkDue(); err != nil {
				s.log.Warnw("job scheduler tick error", "error", err)
			}
		}
	}
}

// Reconcile gives every runnable job (one with a cron schedule) a
// repeatable entry keyed by its ID, creating or updating it. It does not
// remove entries left behind by jobs whose cron schedule was cleared; only
// RemoveSchedule deletes an entry.
func (s *JobScheduler) Reconcile() error {
	jobs, err := s.repo.ListRunnableJobs()
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		seen[job.ID] = true
		next, err := cronplan.Next(job.CronSchedule, time.Now().UTC())
		if err != nil {
			s.log.Warnw("skipping job with invalid cron schedule", "job_id", job.ID, "error", err)
			continue
		}
		payload := JobExecutionPayload{JobID: job.ID, RetryLimit: job.RetryLimit}
		if err := s.queue.UpsertRepeatable(queue.JobSchedulerKind, job.ID, payload, job.CronSchedule, 0, next); err != nil {
			s.log.Errorw("failed to upsert job repeatable entry", "job_id", job.ID, "error", err)
		}
	}

	return nil
}

// RemoveSchedule deletes the repeatable entry for a job that no longer has a
// cron schedule — called from job-mutation handlers, not just reconcile.
func (s *JobScheduler) RemoveSchedule(jobID string) error {
	return s.queue.DeleteRepeatable(queue.JobSchedulerKind, jobID)
}

// checkDue processes every due repeatable entry under the
// JobSchedulerProcessor contract from spec §4.5.
func (s *JobScheduler) checkDue() error {
	due, err := s.queue.DueRepeatables(queue.JobSchedulerKind)
	if err != nil {
		return err
	}

	for _, entry := range due {
		s.onFire(entry.Key)

		job, err := s.repo.GetJob(entry.Key)
		if err != nil {
			s.log.Warnw("job disappeared before rescheduling", "job_id", entry.Key)
			continue
		}
		next, err := cronplan.Next(job.CronSchedule, time.Now().UTC())
		if err != nil {
			continue
		}
		if err := s.queue.AdvanceRepeatable(queue.JobSchedulerKind, entry.Key, next); err != nil {
			s.log.Errorw("failed to advance job repeatable entry", "job_id", entry.Key, "error", err)
		}
	}

	return nil
}

// onFire re-reads job state, skips if a run is already active, creates a Run
// and enqueues its execution task — spec §4.5's processor contract. It never
// runs the test itself.
func (s *JobScheduler) onFire(jobID string) {
	job, err := s.repo.GetJob(jobID)
	if err != nil {
		s.log.Warnw("job not found on fire", "job_id", jobID, "error", err)
		return
	}

	runID := uuid.NewString()
	run, err := s.repo.CreateRun(job.ID, repo.TriggerSchedule, runID, time.Now().UTC())
	if err == repo.ErrConcurrentRun {
		s.log.Warnw("skipping scheduled fire: job already has a running run", "job_id", job.ID)
		return
	}
	if err != nil {
		s.log.Errorw("failed to create run on schedule fire", "job_id", job.ID, "error", err)
		return
	}

	payload := JobExecutionPayload{JobID: job.ID, RunID: run.ID, RetryLimit: job.RetryLimit}
	attempts := job.RetryLimit
	if attempts <= 0 {
		attempts = 1
	}
	_, err = s.queue.Enqueue(queue.JobExecutionKind, payload, queue.EnqueueOptions{
		Source:   run.ID,
		Attempts: attempts,
		Backoff:  queue.Backoff{Type: "exponential", BaseDelay: 5 * time.Second},
	})
	if err != nil {
		s.log.Errorw("failed to enqueue job execution task", "job_id", job.ID, "run_id", run.ID, "error", err)
	}
}
