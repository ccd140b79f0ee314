package repo

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/supercheck/core/internal/xerrors"
)

// ErrConcurrentRun is returned by CreateRun when a Run is already in the
// running state for the given job (invariant P1/P6).
var ErrConcurrentRun = xerrors.New("concurrent run: job already has a running run")

// ErrNotFound is returned by single-row lookups that found no matching row.
var ErrNotFound = xerrors.New("not found")

// Repo is the transactional gateway to every entity in the data model. All
// writes that must be consistent together (e.g. creating a Run while
// marking its Job running) execute inside a single database transaction.
type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// --- Jobs ---

func (r *Repo) CreateJob(job *Job) error {
	const q = `
		INSERT INTO jobs (id, name, cron_schedule, status, last_run_at, next_run_at, alert_config, retry_limit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(q, job.ID, job.Name, nullString(job.CronSchedule), job.Status,
		job.LastRunAt, job.NextRunAt, nullString(job.AlertConfig), job.RetryLimit, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return xerrors.Wrap(err, "failed to create job")
	}
	return nil
}

func (r *Repo) GetJob(id string) (*Job, error) {
	const q = `
		SELECT id, name, cron_schedule, status, last_run_at, next_run_at, alert_config, retry_limit, created_at, updated_at
		FROM jobs WHERE id = ?
	`
	job, err := scanJob(r.db.QueryRow(q, id))
	if err != nil {
		return nil, xerrors.Wrapf(err, "failed to get job %s", id)
	}
	return job, nil
}

func (r *Repo) UpdateJob(job *Job) error {
	const q = `
		UPDATE jobs SET name = ?, cron_schedule = ?, status = ?, last_run_at = ?, next_run_at = ?,
			alert_config = ?, retry_limit = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.Exec(q, job.Name, nullString(job.CronSchedule), job.Status, job.LastRunAt,
		job.NextRunAt, nullString(job.AlertConfig), job.RetryLimit, job.UpdatedAt, job.ID)
	if err != nil {
		return xerrors.Wrapf(err, "failed to update job %s", job.ID)
	}
	return nil
}

func (r *Repo) DeleteJob(id string) error {
	result, err := r.db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return xerrors.Wrapf(err, "failed to delete job %s", id)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return xerrors.Wrapf(ErrNotFound, "job %s", id)
	}
	return nil
}

// ListRunnableJobs returns jobs with a non-empty cron schedule, the set the
// JobScheduler reconciles into repeatable queue entries.
func (r *Repo) ListRunnableJobs() ([]*Job, error) {
	const q = `
		SELECT id, name, cron_schedule, status, last_run_at, next_run_at, alert_config, retry_limit, created_at, updated_at
		FROM jobs WHERE cron_schedule IS NOT NULL AND cron_schedule != ''
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(q)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to list runnable jobs")
	}
	defer rows.Close()
	return scanJobs(rows)
}

// --- TestScripts ---

func (r *Repo) ReplaceTestScripts(jobID string, scripts []*TestScript) error {
	tx, err := r.db.Begin()
	if err != nil {
		return xerrors.Wrap(err, "failed to begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM test_scripts WHERE job_id = ?`, jobID); err != nil {
		return xerrors.Wrap(err, "failed to clear test scripts")
	}
	for _, s := range scripts {
		if _, err := tx.Exec(
			`INSERT INTO test_scripts (id, job_id, name, script, order_position) VALUES (?, ?, ?, ?, ?)`,
			s.ID, jobID, s.Name, s.Script, s.OrderPosition,
		); err != nil {
			return xerrors.Wrap(err, "failed to insert test script")
		}
	}
	return xerrors.Wrap(tx.Commit(), "failed to commit test scripts")
}

func (r *Repo) GetTestScriptsForJob(jobID string) ([]*TestScript, error) {
	const q = `SELECT id, job_id, name, script, order_position FROM test_scripts WHERE job_id = ? ORDER BY order_position ASC`
	rows, err := r.db.Query(q, jobID)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to list test scripts")
	}
	defer rows.Close()

	var scripts []*TestScript
	for rows.Next() {
		var s TestScript
		if err := rows.Scan(&s.ID, &s.JobID, &s.Name, &s.Script, &s.OrderPosition); err != nil {
			return nil, xerrors.Wrap(err, "failed to scan test script")
		}
		scripts = append(scripts, &s)
	}
	return scripts, xerrors.Wrap(rows.Err(), "error iterating test scripts")
}

// --- Runs ---

// CreateRun inserts a new Run in the running state, returning ErrConcurrentRun
// if the job already has an in-flight run. The uniqueness is enforced by a
// partial unique index (idx_runs_one_running_per_job), making the guard
// atomic even under concurrent callers.
func (r *Repo) CreateRun(jobID string, trigger RunTrigger, id string, startedAt time.Time) (*Run, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to begin tx")
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM runs WHERE job_id = ? AND status = 'running')`, jobID).Scan(&exists)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to check for concurrent run")
	}
	if exists {
		return nil, ErrConcurrentRun
	}

	run := &Run{
		ID:        id,
		JobID:     jobID,
		Status:    RunRunning,
		StartedAt: startedAt,
		Trigger:   trigger,
	}

	_, err = tx.Exec(
		`INSERT INTO runs (id, job_id, status, started_at, trigger) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.JobID, run.Status, run.StartedAt, run.Trigger,
	)
	if err != nil {
		// The partial unique index is the authoritative guard under races;
		// a violation here means another caller won the race between our
		// check and insert.
		return nil, ErrConcurrentRun
	}

	if _, err := tx.Exec(`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`, JobRunning, startedAt, jobID); err != nil {
		return nil, xerrors.Wrap(err, "failed to update job status to running")
	}

	if err := tx.Commit(); err != nil {
		return nil, xerrors.Wrap(err, "failed to commit run creation")
	}

	return run, nil
}

// FinishRun writes terminal state for a Run and updates the owning Job's
// status/lastRunAt together. Idempotent: calling it twice with the same
// arguments on an already-terminal run is a no-op that returns nil.
func (r *Repo) FinishRun(runID string, status RunStatus, durationSec int, errorDetails, reportURL string, completedAt time.Time) error {
	tx, err := r.db.Begin()
	if err != nil {
		return xerrors.Wrap(err, "failed to begin tx")
	}
	defer tx.Rollback()

	var jobID string
	var currentStatus RunStatus
	err = tx.QueryRow(`SELECT job_id, status FROM runs WHERE id = ?`, runID).Scan(&jobID, &currentStatus)
	if err == sql.ErrNoRows {
		return xerrors.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return xerrors.Wrap(err, "failed to load run")
	}

	if currentStatus.Terminal() {
		// Already finished — idempotent no-op, same as the teacher's
		// CompleteJob/FailJob guard against double-processing a retry.
		return nil
	}

	_, err = tx.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, duration_sec = ?, error_details = ?, report_url = ? WHERE id = ?`,
		status, completedAt, durationSec, nullString(errorDetails), nullString(reportURL), runID,
	)
	if err != nil {
		return xerrors.Wrap(err, "failed to finish run")
	}

	jobStatus := JobFailed
	switch status {
	case RunPassed:
		jobStatus = JobPassed
	case RunTimeout:
		jobStatus = JobError
	case RunError:
		jobStatus = JobError
	}

	_, err = tx.Exec(`UPDATE jobs SET status = ?, last_run_at = ?, updated_at = ? WHERE id = ?`,
		jobStatus, completedAt, completedAt, jobID)
	if err != nil {
		return xerrors.Wrap(err, "failed to update job after run finish")
	}

	return xerrors.Wrap(tx.Commit(), "failed to commit run finish")
}

func (r *Repo) GetRun(id string) (*Run, error) {
	const q = `SELECT id, job_id, status, started_at, completed_at, duration_sec, trigger, error_details, report_url FROM runs WHERE id = ?`
	return scanRun(r.db.QueryRow(q, id))
}

// GetRunStatusesForJob returns recent run statuses newest-first, used by the
// alert engine's consecutive-streak computation.
func (r *Repo) GetRunStatusesForJob(jobID string, limit int) ([]RunStatus, error) {
	const q = `SELECT status FROM runs WHERE job_id = ? ORDER BY started_at DESC LIMIT ?`
	rows, err := r.db.Query(q, jobID, limit)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to get run statuses")
	}
	defer rows.Close()

	var statuses []RunStatus
	for rows.Next() {
		var s RunStatus
		if err := rows.Scan(&s); err != nil {
			return nil, xerrors.Wrap(err, "failed to scan run status")
		}
		statuses = append(statuses, s)
	}
	return statuses, xerrors.Wrap(rows.Err(), "error iterating run statuses")
}

// --- Reports ---

// UpsertReport inserts or updates a Report keyed by (entityType, entityId).
func (r *Repo) UpsertReport(entityType ReportEntityType, entityID, status, artifactPath, artifactURL string, updatedAt time.Time) error {
	const q = `
		INSERT INTO reports (entity_type, entity_id, status, artifact_url, artifact_path, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			status = excluded.status,
			artifact_url = excluded.artifact_url,
			artifact_path = excluded.artifact_path,
			updated_at = excluded.updated_at
	`
	_, err := r.db.Exec(q, entityType, entityID, status, nullString(artifactURL), nullString(artifactPath), updatedAt)
	return xerrors.Wrap(err, "failed to upsert report")
}

// --- Monitors ---

func (r *Repo) CreateMonitor(m *Monitor) error {
	const q = `
		INSERT INTO monitors (id, type, target, frequency_minutes, enabled, status, config, alert_config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(q, m.ID, m.Type, m.Target, m.FrequencyMinutes, m.Enabled, m.Status, m.Config,
		nullString(m.AlertConfig), m.CreatedAt, m.UpdatedAt)
	return xerrors.Wrap(err, "failed to create monitor")
}

func (r *Repo) GetMonitor(id string) (*Monitor, error) {
	const q = `
		SELECT id, type, target, frequency_minutes, enabled, status, config, last_check_at,
		       last_status_change_at, alert_config, ssl_last_checked_at, last_ping_at, created_at, updated_at
		FROM monitors WHERE id = ?
	`
	m, err := scanMonitor(r.db.QueryRow(q, id))
	if err != nil {
		return nil, xerrors.Wrapf(err, "failed to get monitor %s", id)
	}
	return m, nil
}

func (r *Repo) ListEnabledMonitors() ([]*Monitor, error) {
	const q = `
		SELECT id, type, target, frequency_minutes, enabled, status, config, last_check_at,
		       last_status_change_at, alert_config, ssl_last_checked_at, last_ping_at, created_at, updated_at
		FROM monitors WHERE enabled = 1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(q)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to list enabled monitors")
	}
	defer rows.Close()
	return scanMonitors(rows)
}

// UpdateMonitor applies a partial patch: fields left nil in patch are
// untouched, and Config is merged (shallow JSON object merge) rather than
// replaced.
func (r *Repo) UpdateMonitor(id string, patch MonitorPatch) error {
	tx, err := r.db.Begin()
	if err != nil {
		return xerrors.Wrap(err, "failed to begin tx")
	}
	defer tx.Rollback()

	var currentConfig string
	if len(patch.ConfigMerge) > 0 {
		if err := tx.QueryRow(`SELECT config FROM monitors WHERE id = ?`, id).Scan(&currentConfig); err != nil {
			if err == sql.ErrNoRows {
				return xerrors.Wrapf(ErrNotFound, "monitor %s", id)
			}
			return xerrors.Wrap(err, "failed to load monitor config for merge")
		}
	}

	setClauses := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}

	if patch.Status != nil {
		setClauses = append(setClauses, "status = ?")
		args = append(args, *patch.Status)
	}
	if patch.LastCheckAt != nil {
		setClauses = append(setClauses, "last_check_at = ?")
		args = append(args, *patch.LastCheckAt)
	}
	if patch.LastStatusChangeAt != nil {
		setClauses = append(setClauses, "last_status_change_at = ?")
		args = append(args, *patch.LastStatusChangeAt)
	}
	if patch.SSLLastCheckedAt != nil {
		setClauses = append(setClauses, "ssl_last_checked_at = ?")
		args = append(args, *patch.SSLLastCheckedAt)
	}
	if patch.LastPingAt != nil {
		setClauses = append(setClauses, "last_ping_at = ?")
		args = append(args, *patch.LastPingAt)
	}
	if len(patch.ConfigMerge) > 0 {
		merged, err := mergeJSONObject(currentConfig, patch.ConfigMerge)
		if err != nil {
			return xerrors.Wrap(err, "failed to merge monitor config")
		}
		setClauses = append(setClauses, "config = ?")
		args = append(args, merged)
	}

	q := "UPDATE monitors SET "
	for i, c := range setClauses {
		if i > 0 {
			q += ", "
		}
		q += c
	}
	q += " WHERE id = ?"
	args = append(args, id)

	if _, err := tx.Exec(q, args...); err != nil {
		return xerrors.Wrap(err, "failed to update monitor")
	}

	return xerrors.Wrap(tx.Commit(), "failed to commit monitor update")
}

func (r *Repo) DeleteMonitor(id string) error {
	result, err := r.db.Exec(`DELETE FROM monitors WHERE id = ?`, id)
	if err != nil {
		return xerrors.Wrapf(err, "failed to delete monitor %s", id)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return xerrors.Wrapf(ErrNotFound, "monitor %s", id)
	}
	return nil
}

// --- MonitorResults ---

func (r *Repo) InsertMonitorResult(res *MonitorResult) error {
	const q = `
		INSERT INTO monitor_results (id, monitor_id, checked_at, status, response_time_ms, details, is_up, is_status_change)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(q, res.ID, res.MonitorID, res.CheckedAt, res.Status, res.ResponseTimeMs, res.Details, res.IsUp, res.IsStatusChange)
	return xerrors.Wrap(err, "failed to insert monitor result")
}

// RecentMonitorResults returns results newest-first, used for streak
// computation (consecutive failures/successes) and status-change detection.
func (r *Repo) RecentMonitorResults(monitorID string, limit int) ([]*MonitorResult, error) {
	const q = `
		SELECT id, monitor_id, checked_at, status, response_time_ms, details, is_up, is_status_change
		FROM monitor_results WHERE monitor_id = ? ORDER BY checked_at DESC LIMIT ?
	`
	rows, err := r.db.Query(q, monitorID, limit)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to list recent monitor results")
	}
	defer rows.Close()

	var results []*MonitorResult
	for rows.Next() {
		var res MonitorResult
		if err := rows.Scan(&res.ID, &res.MonitorID, &res.CheckedAt, &res.Status, &res.ResponseTimeMs,
			&res.Details, &res.IsUp, &res.IsStatusChange); err != nil {
			return nil, xerrors.Wrap(err, "failed to scan monitor result")
		}
		results = append(results, &res)
	}
	return results, xerrors.Wrap(rows.Err(), "error iterating monitor results")
}

// --- NotificationProviders ---

func (r *Repo) CreateNotificationProvider(p *NotificationProvider) error {
	const q = `INSERT INTO notification_providers (id, type, config, enabled) VALUES (?, ?, ?, ?)`
	_, err := r.db.Exec(q, p.ID, p.Type, p.Config, p.Enabled)
	return xerrors.Wrap(err, "failed to create notification provider")
}

func (r *Repo) GetNotificationProvider(id string) (*NotificationProvider, error) {
	const q = `SELECT id, type, config, enabled FROM notification_providers WHERE id = ?`
	var p NotificationProvider
	err := r.db.QueryRow(q, id).Scan(&p.ID, &p.Type, &p.Config, &p.Enabled)
	if err == sql.ErrNoRows {
		return nil, xerrors.Wrapf(ErrNotFound, "notification provider %s", id)
	}
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to get notification provider")
	}
	return &p, nil
}

func (r *Repo) ListNotificationProviders(ids []string) ([]*NotificationProvider, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT id, type, config, enabled FROM notification_providers WHERE id IN (` + placeholders(len(ids)) + `)`
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to list notification providers")
	}
	defer rows.Close()

	var providers []*NotificationProvider
	for rows.Next() {
		var p NotificationProvider
		if err := rows.Scan(&p.ID, &p.Type, &p.Config, &p.Enabled); err != nil {
			return nil, xerrors.Wrap(err, "failed to scan notification provider")
		}
		providers = append(providers, &p)
	}
	return providers, xerrors.Wrap(rows.Err(), "error iterating notification providers")
}

// --- AlertHistory ---

func (r *Repo) InsertAlertHistory(a *AlertHistory) error {
	const q = `
		INSERT INTO alert_history (id, type, target_kind, target_id, message, providers, status, error_message, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(q, a.ID, a.Type, a.TargetKind, a.TargetID, a.Message, a.Providers, a.Status, nullString(a.ErrorMessage), a.SentAt)
	return xerrors.Wrap(err, "failed to insert alert history")
}

// LastAlertOfKind returns the most recent AlertHistory row for targetID of
// the given type, or nil if none exists — the basis for cooldown checks.
func (r *Repo) LastAlertOfKind(targetID, alertType string) (*AlertHistory, error) {
	const q = `
		SELECT id, type, target_kind, target_id, message, providers, status, error_message, sent_at
		FROM alert_history WHERE target_id = ? AND type = ? ORDER BY sent_at DESC LIMIT 1
	`
	var a AlertHistory
	var errMsg sql.NullString
	err := r.db.QueryRow(q, targetID, alertType).Scan(
		&a.ID, &a.Type, &a.TargetKind, &a.TargetID, &a.Message, &a.Providers, &a.Status, &errMsg, &a.SentAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to get last alert of kind")
	}
	a.ErrorMessage = errMsg.String
	return &a, nil
}

// --- retention (Janitor) ---

// PruneOldRuns deletes terminal Runs completed before cutoff, in batches of
// at most batchSize, returning how many rows were removed — bounded so a
// single sweep can't hold an unbounded transaction (spec §5's cursor-based
// incremental scan requirement, applied here via repeated bounded deletes).
func (r *Repo) PruneOldRuns(cutoff time.Time, batchSize int) (int, error) {
	const q = `
		DELETE FROM runs WHERE id IN (
			SELECT id FROM runs WHERE status != 'running' AND completed_at IS NOT NULL AND completed_at < ? LIMIT ?
		)
	`
	res, err := r.db.Exec(q, cutoff, batchSize)
	if err != nil {
		return 0, xerrors.Wrap(err, "failed to prune old runs")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PruneOldMonitorResults deletes MonitorResult rows checked before cutoff
// (spec §6's 48h metrics TTL), batched the same way.
func (r *Repo) PruneOldMonitorResults(cutoff time.Time, batchSize int) (int, error) {
	const q = `
		DELETE FROM monitor_results WHERE id IN (
			SELECT id FROM monitor_results WHERE checked_at < ? LIMIT ?
		)
	`
	res, err := r.db.Exec(q, cutoff, batchSize)
	if err != nil {
		return 0, xerrors.Wrap(err, "failed to prune old monitor results")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PruneOldAlertHistory deletes AlertHistory rows sent before cutoff (spec
// §6's 24h event-stream TTL), batched the same way.
func (r *Repo) PruneOldAlertHistory(cutoff time.Time, batchSize int) (int, error) {
	const q = `
		DELETE FROM alert_history WHERE id IN (
			SELECT id FROM alert_history WHERE sent_at < ? LIMIT ?
		)
	`
	res, err := r.db.Exec(q, cutoff, batchSize)
	if err != nil {
		return 0, xerrors.Wrap(err, "failed to prune old alert history")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var cronSchedule, alertConfig sql.NullString
	err := row.Scan(&j.ID, &j.Name, &cronSchedule, &j.Status, &j.LastRunAt, &j.NextRunAt, &alertConfig, &j.RetryLimit, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	j.CronSchedule = cronSchedule.String
	j.AlertConfig = alertConfig.String
	return &j, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, xerrors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, j)
	}
	return jobs, xerrors.Wrap(rows.Err(), "error iterating jobs")
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var errorDetails, reportURL sql.NullString
	err := row.Scan(&run.ID, &run.JobID, &run.Status, &run.StartedAt, &run.CompletedAt, &run.DurationSec,
		&run.Trigger, &errorDetails, &reportURL)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to scan run")
	}
	run.ErrorDetails = errorDetails.String
	run.ReportURL = reportURL.String
	return &run, nil
}

func scanMonitor(row rowScanner) (*Monitor, error) {
	var m Monitor
	var alertConfig sql.NullString
	err := row.Scan(&m.ID, &m.Type, &m.Target, &m.FrequencyMinutes, &m.Enabled, &m.Status, &m.Config,
		&m.LastCheckAt, &m.LastStatusChangeAt, &alertConfig, &m.SSLLastCheckedAt, &m.LastPingAt, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.AlertConfig = alertConfig.String
	return &m, nil
}

func scanMonitors(rows *sql.Rows) ([]*Monitor, error) {
	var monitors []*Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, xerrors.Wrap(err, "failed to scan monitor")
		}
		monitors = append(monitors, m)
	}
	return monitors, xerrors.Wrap(rows.Err(), "error iterating monitors")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func placeholders(n int) string {
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

func mergeJSONObject(current string, patch map[string]interface{}) (string, error) {
	obj := map[string]interface{}{}
	if current != "" {
		if err := json.Unmarshal([]byte(current), &obj); err != nil {
			return "", xerrors.Wrap(err, "failed to unmarshal current config")
		}
	}
	for k, v := range patch {
		obj[k] = v
	}
	merged, err := json.Marshal(obj)
	if err != nil {
		return "", xerrors.Wrap(err, "failed to marshal merged config")
	}
	return string(merged), nil
}
