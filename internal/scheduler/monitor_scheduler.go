package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/supercheck/core/internal/logging"
	"github.com/supercheck/core/internal/queue"
	"github.com/supercheck/core/internal/repo"
)

// MonitorExecutionPayload is the body of a task enqueued on MonitorExecutionKind.
type MonitorExecutionPayload struct {
	MonitorID string `json:"monitor_id"`
}

// MonitorScheduler maintains one repeatable queue entry per enabled monitor,
// firing every frequencyMinutes (spec §4.7).
type MonitorScheduler struct {
	repo         *repo.Repo
	queue        *queue.Queue
	pollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *zap.SugaredLogger
}

func NewMonitorScheduler(r *repo.Repo, q *queue.Queue, pollInterval time.Duration) *MonitorScheduler {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &MonitorScheduler{repo: r, queue: q, pollInterval: pollInterval, log: logging.Named("scheduler.monitor")}
}

func (s *MonitorScheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.Reconcile(); err != nil {
		s.log.Errorw("initial monitor reconciliation failed", "error", err)
	}

	s.wg.Add(1)
	go s.run()
}

func (s *MonitorScheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *MonitorScheduler) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.checkDue(); err != nil {
				s.log.Warnw("monitor scheduler tick error", "error", err)
			}
		}
	}
}

// Reconcile implements spec §4.7: every enabled monitor gets (or keeps) a
// repeatable entry firing every frequencyMinutes.
func (s *MonitorScheduler) Reconcile() error {
	monitors, err := s.repo.ListEnabledMonitors()
	if err != nil {
		return err
	}

	for _, m := range monitors {
		if m.Status == repo.MonitorPaused || m.Status == repo.MonitorMaintenance {
			if err := s.queue.DeleteRepeatable(queue.MonitorSchedulerKind, m.ID); err != nil {
				s.log.Warnw("failed to remove repeatable for paused monitor", "monitor_id", m.ID, "error", err)
			}
			continue
		}

		everyMs := int64(m.FrequencyMinutes) * 60_000
		next := time.Now().UTC().Add(time.Duration(everyMs) * time.Millisecond)
		payload := MonitorExecutionPayload{MonitorID: m.ID}
		if err := s.queue.UpsertRepeatable(queue.MonitorSchedulerKind, m.ID, payload, "", everyMs, next); err != nil {
			s.log.Errorw("failed to upsert monitor repeatable entry", "monitor_id", m.ID, "error", err)
		}
	}

	return nil
}

// RemoveSchedule deletes the repeatable entry for a disabled/deleted monitor.
func (s *MonitorScheduler) RemoveSchedule(monitorID string) error {
	return s.queue.DeleteRepeatable(queue.MonitorSchedulerKind, monitorID)
}

func (s *MonitorScheduler) checkDue() error {
	due, err := s.queue.DueRepeatables(queue.MonitorSchedulerKind)
	if err != nil {
		return err
	}

	for _, entry := range due {
		s.onFire(entry.Key)

		everyMs := entry.EveryMs
		if everyMs <= 0 {
			everyMs = 5 * 60_000
		}
		next := time.Now().UTC().Add(time.Duration(everyMs) * time.Millisecond)
		if err := s.queue.AdvanceRepeatable(queue.MonitorSchedulerKind, entry.Key, next); err != nil {
			s.log.Errorw("failed to advance monitor repeatable entry", "monitor_id", entry.Key, "error", err)
		}
	}

	return nil
}

// onFire enqueues a monitor-execution task keyed by monitorId for
// idempotency, 3 attempts, exponential backoff base 5s (spec §4.7).
func (s *MonitorScheduler) onFire(monitorID string) {
	payload := MonitorExecutionPayload{MonitorID: monitorID}
	_, err := s.queue.Enqueue(queue.MonitorExecutionKind, payload, queue.EnqueueOptions{
		Source:   monitorID,
		Attempts: 3,
		Backoff:  queue.Backoff{Type: "exponential", BaseDelay: 5 * time.Second},
	})
	if err != nil {
		s.log.Errorw("failed to enqueue monitor execution task", "monitor_id", monitorID, "error", err)
	}
}
