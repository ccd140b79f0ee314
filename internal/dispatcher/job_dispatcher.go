// Package dispatcher implements JobDispatcher and MonitorDispatcher (spec
// §4.6, §4.9): the queue.Handler implementations that turn a fired
// execution task into an actual probe or test-script run.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/supercheck/core/internal/alert"
	"github.com/supercheck/core/internal/artifact"
	"github.com/supercheck/core/internal/capacity"
	"github.com/supercheck/core/internal/executor"
	"github.com/supercheck/core/internal/logging"
	"github.com/supercheck/core/internal/queue"
	"github.com/supercheck/core/internal/repo"
	"github.com/supercheck/core/internal/xerrors"
)

// reportDirName is the canonical subdirectory the external executor is
// expected to write its HTML report into, within each run's working
// directory (spec §4.6 step 5).
const reportDirName = "report"

// JobDispatcher implements queue.Handler for queue.JobExecutionKind (spec §4.6).
type JobDispatcher struct {
	repo       *repo.Repo
	capacity   *capacity.Controller
	executor   executor.Executor
	artifacts  artifact.Store
	alerts     *alert.Engine
	workDir    string
	execCmd    string
	execArgs   []string
	execTimeout time.Duration
	log        *zap.SugaredLogger
}

func NewJobDispatcher(r *repo.Repo, cap *capacity.Controller, exec executor.Executor, artifacts artifact.Store,
	alerts *alert.Engine, workDirBase, execCommand string, execArgs []string, execTimeout time.Duration) *JobDispatcher {
	return &JobDispatcher{
		repo: r, capacity: cap, executor: exec, artifacts: artifacts, alerts: alerts,
		workDir: workDirBase, execCmd: execCommand, execArgs: execArgs, execTimeout: execTimeout,
		log: logging.Named("dispatcher.job"),
	}
}

func (d *JobDispatcher) Kind() string { return queue.JobExecutionKind }

func (d *JobDispatcher) Execute(ctx context.Context, task *queue.Task) error {
	var payload struct {
		JobID      string `json:"job_id"`
		RunID      string `json:"run_id"`
		RetryLimit int    `json:"retry_limit"`
	}
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return xerrors.UserError(xerrors.Wrap(err, "invalid job execution task payload"))
	}

	if admitted, err := d.capacity.Admit(task); err != nil {
		return err
	} else if !admitted {
		return nil
	}

	job, err := d.repo.GetJob(payload.JobID)
	if err != nil {
		return xerrors.Wrap(err, "failed to load job")
	}

	scripts, err := d.repo.GetTestScriptsForJob(payload.JobID)
	if err != nil {
		return xerrors.Wrap(err, "failed to load test scripts")
	}

	runDir := filepath.Join(d.workDir, payload.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return xerrors.Wrap(err, "failed to create run working directory")
	}
	defer d.cleanupWorkDir(runDir)

	if err := d.repo.UpsertReport(repo.ReportRun, payload.RunID, "running", "", "", time.Now()); err != nil {
		d.log.Warnw("failed to write running report metadata", "run_id", payload.RunID, "error", err)
	}

	for _, script := range scripts {
		scriptPath := filepath.Join(runDir, fmt.Sprintf("%02d_%s.script", script.OrderPosition, sanitizeFilename(script.Name)))
		if err := os.WriteFile(scriptPath, []byte(script.Script), 0o644); err != nil {
			return xerrors.Wrapf(err, "failed to write test script %s", script.Name)
		}
	}

	start := time.Now()
	result, execErr := d.executor.Execute(ctx, executor.Request{
		Command:    d.execCmd,
		Args:       append(append([]string{}, d.execArgs...), runDir),
		WorkingDir: runDir,
		Timeout:    d.execTimeout,
	})
	durationSec := int(time.Since(start).Seconds())

	reportDir := filepath.Join(runDir, reportDirName)
	reportURL := ""
	if _, statErr := os.Stat(reportDir); statErr == nil {
		uploadedURL, uploadErr := d.artifacts.Upload(ctx, reportDir, filepath.Join("runs", payload.RunID))
		if uploadErr != nil {
			d.log.Errorw("failed to upload run artifacts", "run_id", payload.RunID, "error", uploadErr)
		} else if _, err := os.Stat(filepath.Join(reportDir, "index.html")); err == nil {
			reportURL = uploadedURL
		}
	}

	status := d.resolveStatus(execErr, result, reportURL)
	errorDetails := ""
	if execErr != nil {
		errorDetails = execErr.Error()
	} else if result != nil && len(result.Stderr) > 0 {
		errorDetails = string(result.Stderr)
	}

	finishErr := d.repo.FinishRun(payload.RunID, status, durationSec, errorDetails, reportURL, time.Now())
	if finishErr != nil {
		d.log.Warnw("failed to finish run, retrying once", "run_id", payload.RunID, "error", finishErr)
		finishErr = d.repo.FinishRun(payload.RunID, status, durationSec, errorDetails, reportURL, time.Now())
	}
	if finishErr != nil {
		d.log.Errorw("failed to finish run after retry", "run_id", payload.RunID, "error", finishErr)
		return xerrors.Fatal(xerrors.Wrap(finishErr, "failed to persist terminal run state after retry"))
	}

	run, err := d.repo.GetRun(payload.RunID)
	if err != nil {
		d.log.Errorw("failed to reload run for alerting", "run_id", payload.RunID, "error", err)
		return nil
	}
	d.alerts.HandleJobOutcome(ctx, job, run)

	// A non-zero exit, error, or timeout is a normal domain outcome (spec
	// §7/§8), not a queue-level failure: it's already persisted as a
	// terminal Run and alerted on above, so returning an error here would
	// just cause the queue to retry a job whose result has already been
	// recorded, discarding every retry's outcome.
	return nil
}

func (d *JobDispatcher) resolveStatus(execErr error, result *executor.Result, reportURL string) repo.RunStatus {
	if result != nil && result.TimedOut {
		return repo.RunTimeout
	}
	if execErr != nil {
		return repo.RunError
	}
	if result.ExitCode == 0 && reportURL != "" {
		return repo.RunPassed
	}
	return repo.RunFailed
}

func (d *JobDispatcher) cleanupWorkDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		d.log.Warnw("failed to clean up run working directory", "dir", dir, "error", err)
	}
}

func sanitizeFilename(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
