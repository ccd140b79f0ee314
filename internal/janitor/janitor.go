// Package janitor implements the periodic retention sweep (spec §5, §6):
// queue residue cleanup plus TTL enforcement on job data, monitor results,
// and alert history, running every 12h with bounded, cursor-style batches
// so a single sweep can't hold an unbounded transaction.
package janitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/supercheck/core/internal/logging"
	"github.com/supercheck/core/internal/queue"
	"github.com/supercheck/core/internal/repo"
)

const (
	queueCompletedRetention = 24 * time.Hour
	queueFailedRetention    = 7 * 24 * time.Hour
	queueCompletedCap       = 1000
	queueFailedCap          = 5000
)

// Config carries the TTLs and batch size the sweep enforces (spec §6: 7d
// job data, 24h event streams, 48h metrics).
type Config struct {
	Interval       time.Duration
	JobDataTTL     time.Duration
	EventStreamTTL time.Duration
	MetricsTTL     time.Duration
	BatchSize      int
}

// Janitor periodically prunes orphaned/expired state that outlives its
// owning entity (spec "Janitor sets TTLs on any orphan keys").
type Janitor struct {
	repo   *repo.Repo
	queue  *queue.Queue
	config Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *zap.SugaredLogger
}

func New(r *repo.Repo, q *queue.Queue, cfg Config) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 12 * time.Hour
	}
	if cfg.JobDataTTL <= 0 {
		cfg.JobDataTTL = 7 * 24 * time.Hour
	}
	if cfg.EventStreamTTL <= 0 {
		cfg.EventStreamTTL = 24 * time.Hour
	}
	if cfg.MetricsTTL <= 0 {
		cfg.MetricsTTL = 48 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Janitor{repo: r, queue: q, config: cfg, log: logging.Named("janitor")}
}

func (j *Janitor) Start(ctx context.Context) {
	j.ctx, j.cancel = context.WithCancel(ctx)
	j.wg.Add(1)
	go j.run()
}

func (j *Janitor) Stop() {
	j.cancel()
	j.wg.Wait()
}

func (j *Janitor) run() {
	defer j.wg.Done()
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep runs one full cleanup pass: queue residue, then each TTL class in
// turn, each as a sequence of bounded batch deletes (the incremental-scan
// requirement from spec §5, applied to SQL deletes rather than a keyspace
// scan since the queue backend here is relational, not a keyed store).
func (j *Janitor) Sweep() {
	if n, err := j.queue.Cleanup(queueCompletedRetention, queueFailedRetention, queueCompletedCap, queueFailedCap); err != nil {
		j.log.Errorw("queue cleanup failed", "error", err)
	} else if n > 0 {
		j.log.Infow("queue cleanup removed terminal tasks", "count", n)
	}

	now := time.Now().UTC()
	j.pruneBatched("job data (runs)", now.Add(-j.config.JobDataTTL), j.repo.PruneOldRuns)
	j.pruneBatched("event streams (alert history)", now.Add(-j.config.EventStreamTTL), j.repo.PruneOldAlertHistory)
	j.pruneBatched("metrics (monitor results)", now.Add(-j.config.MetricsTTL), j.repo.PruneOldMonitorResults)
}

func (j *Janitor) pruneBatched(label string, cutoff time.Time, prune func(time.Time, int) (int, error)) {
	total := 0
	for {
		n, err := prune(cutoff, j.config.BatchSize)
		if err != nil {
			j.log.Errorw("retention sweep failed", "class", label, "error", err)
			return
		}
		total += n
		if n < j.config.BatchSize {
			break
		}
	}
	if total > 0 {
		j.log.Infow("retention sweep removed rows", "class", label, "count", total)
	}
}
