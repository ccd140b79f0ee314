package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/supercheck/core/internal/logging"
	"github.com/supercheck/core/internal/xerrors"
)

// PoolConfig configures a WorkerPool's concurrency and polling cadence.
type PoolConfig struct {
	Kind               string
	Workers            int
	PollInterval       time.Duration // 0 means use the gradual ramp-up below
	GracefulStartPhase time.Duration
}

func DefaultPoolConfig(kind string) PoolConfig {
	return PoolConfig{
		Kind:               kind,
		Workers:            1,
		PollInterval:       0,
		GracefulStartPhase: 5 * time.Minute,
	}
}

const (
	maxOrphanedTasksToRecover = 1000
	maxConsecutiveErrors      = 5
	maxBackoff                = 30 * time.Second
)

// WorkerPool polls a Queue for tasks of one Kind and runs them through a
// Registry, with orphan recovery on startup, gradual ramp-up, and
// exponential backoff on consecutive poll errors.
type WorkerPool struct {
	queue    *Queue
	registry *Registry
	config   PoolConfig

	parentCtx context.Context
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	tasksProcessed int64
	activeWorkers  int32
	startTime      time.Time
	mu             sync.Mutex

	log *zap.SugaredLogger
}

func NewWorkerPool(ctx context.Context, q *Queue, registry *Registry, config PoolConfig) *WorkerPool {
	return &WorkerPool{
		queue:     q,
		registry:  registry,
		config:    config,
		parentCtx: ctx,
		log:       logging.Named("queue.worker." + config.Kind),
	}
}

// Start recovers orphaned (running but never finished — e.g. the process
// died mid-task) tasks, then spawns config.Workers poller goroutines.
func (wp *WorkerPool) Start() {
	wp.ctx, wp.cancel = context.WithCancel(wp.parentCtx)
	wp.startTime = time.Now()

	wp.recoverOrphanedTasks()

	for i := 0; i < wp.config.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.log.Infow("worker pool started", "workers", wp.config.Workers, logging.FieldSymbol, logging.SymbolQueueOpen)
}

// Stop cancels polling and waits up to 30s for in-flight tasks to finish —
// the bounded graceful-shutdown window from spec §5.
func (wp *WorkerPool) Stop() {
	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		wp.log.Warnw("graceful shutdown timed out, workers may still be in flight")
	}

	wp.log.Infow("worker pool stopped", logging.FieldSymbol, logging.SymbolQueueClose)
}

// recoverOrphanedTasks finds tasks left in Running state (from a prior
// process that died mid-task) and requeues them: one immediately, the rest
// gradually so a restart doesn't stampede all recovered work onto workers at
// once.
func (wp *WorkerPool) recoverOrphanedTasks() {
	orphans, err := wp.queue.store.ListByStatus(Running, maxOrphanedTasksToRecover)
	if err != nil {
		wp.log.Errorw("failed to list orphaned tasks", "error", err)
		return
	}
	orphans = filterKind(orphans, wp.config.Kind)
	if len(orphans) == 0 {
		return
	}

	wp.log.Infow("recovering orphaned tasks", "count", len(orphans), logging.FieldSymbol, logging.SymbolQueueOpen)

	first := orphans[0]
	wp.requeueOrphan(first)

	if len(orphans) > 1 {
		go wp.gradualRecovery(orphans[1:])
	}
}

func (wp *WorkerPool) gradualRecovery(tasks []*Task) {
	warmStart := wp.config.GracefulStartPhase / 5
	if warmStart <= 0 {
		warmStart = 10 * time.Second
	}
	slowStart := wp.config.GracefulStartPhase * 3
	if slowStart <= 0 {
		slowStart = 15 * time.Minute
	}

	warmCount := 9
	if warmCount > len(tasks) {
		warmCount = len(tasks)
	}
	wp.recoverWithInterval(tasks[:warmCount], warmStart)

	if len(tasks) > warmCount {
		wp.recoverWithInterval(tasks[warmCount:], slowStart)
	}
}

func (wp *WorkerPool) recoverWithInterval(tasks []*Task, span time.Duration) {
	if len(tasks) == 0 {
		return
	}
	interval := span / time.Duration(len(tasks))
	for _, t := range tasks {
		select {
		case <-wp.ctx.Done():
			return
		case <-time.After(interval):
			wp.requeueOrphan(t)
		}
	}
}

func (wp *WorkerPool) requeueOrphan(t *Task) {
	t.Status = Queued
	t.RunAt = time.Now().UTC()
	t.UpdatedAt = t.RunAt
	if err := wp.queue.store.UpdateTask(t); err != nil {
		wp.log.Errorw("failed to requeue orphaned task", "task_id", t.ID, "error", err)
	}
}

func filterKind(tasks []*Task, kind string) []*Task {
	out := tasks[:0]
	for _, t := range tasks {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	errorCount := 0
	backoff := time.Second

	for {
		select {
		case <-wp.ctx.Done():
			return
		default:
		}

		interval := wp.pollInterval()
		select {
		case <-wp.ctx.Done():
			return
		case <-time.After(interval):
		}

		processed, err := wp.processNext()
		if err != nil {
			if wp.ctx.Err() != nil {
				return
			}
			errorCount++
			wp.log.Warnw("worker poll error", "worker", id, "error", err, "consecutive_errors", errorCount)
			if errorCount >= maxConsecutiveErrors {
				select {
				case <-wp.ctx.Done():
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}

		errorCount = 0
		backoff = time.Second

		if processed {
			wp.mu.Lock()
			wp.tasksProcessed++
			wp.mu.Unlock()
		}
	}
}

func (wp *WorkerPool) pollInterval() time.Duration {
	if wp.config.PollInterval > 0 {
		return wp.config.PollInterval
	}
	wp.mu.Lock()
	warming := wp.tasksProcessed < 20 && time.Since(wp.startTime) < 2*time.Minute
	wp.mu.Unlock()
	if warming {
		return time.Second
	}
	return 5 * time.Second
}

// processNext dequeues and runs one task, returning (true, nil) if a task
// was processed, (false, nil) if the queue was empty.
func (wp *WorkerPool) processNext() (bool, error) {
	task, err := wp.queue.Dequeue(wp.config.Kind)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	wp.mu.Lock()
	wp.activeWorkers++
	wp.mu.Unlock()
	defer func() {
		wp.mu.Lock()
		wp.activeWorkers--
		wp.mu.Unlock()
	}()

	execErr := wp.registry.Execute(wp.ctx, task)

	if execErr != nil {
		if wp.ctx.Err() != nil {
			// Shutdown in flight: leave the task running so the next
			// process recovers it rather than recording a spurious failure.
			return true, nil
		}
		if xerrors.IsCapacityRejection(execErr) {
			// The capacity gate already moved the task back to queued with a
			// delay; recording a failure would consume one of its attempts.
			return true, nil
		}
		if err := wp.queue.Fail(task.ID, execErr); err != nil {
			wp.log.Errorw("failed to record task failure", "task_id", task.ID, "error", err)
		}
		return true, nil
	}

	if err := wp.queue.Complete(task.ID); err != nil {
		wp.log.Errorw("failed to record task completion", "task_id", task.ID, "error", err)
	}
	return true, nil
}

// Stats summarizes pool activity for health/introspection endpoints.
type Stats struct {
	TasksProcessed int64
	ActiveWorkers  int32
}

func (wp *WorkerPool) Stats() Stats {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return Stats{TasksProcessed: wp.tasksProcessed, ActiveWorkers: wp.activeWorkers}
}
