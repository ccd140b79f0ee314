package repo

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qntxtest "github.com/supercheck/core/internal/testing"
	"github.com/supercheck/core/internal/xerrors"
)

func TestCreateJobExecutesInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := New(db)
	now := time.Now()
	job := &Job{
		ID: "job-1", Name: "smoke suite", CronSchedule: "*/5 * * * *",
		Status: JobPending, RetryLimit: 2, CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(job.ID, job.Name, sqlmock.AnyArg(), job.Status, job.LastRunAt, job.NextRunAt,
			sqlmock.AnyArg(), job.RetryLimit, job.CreatedAt, job.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, r.CreateJob(job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := New(db)
	mock.ExpectQuery("FROM jobs WHERE id = ").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = r.GetJob("missing")
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobScansRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := New(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "cron_schedule", "status", "last_run_at", "next_run_at",
		"alert_config", "retry_limit", "created_at", "updated_at"}).
		AddRow("job-1", "smoke suite", "*/5 * * * *", JobPassed, nil, nil, "", 0, now, now)

	mock.ExpectQuery("FROM jobs WHERE id = ").
		WithArgs("job-1").
		WillReturnRows(rows)

	job, err := r.GetJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, "smoke suite", job.Name)
	assert.Equal(t, JobPassed, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastAlertOfKindReturnsNilWhenAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := New(db)
	mock.ExpectQuery("FROM alert_history WHERE target_id = ").
		WithArgs("mon-1", "monitor_failure").
		WillReturnError(sql.ErrNoRows)

	last, err := r.LastAlertOfKind("mon-1", "monitor_failure")
	require.NoError(t, err)
	assert.Nil(t, last)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastAlertOfKindScansRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := New(db)
	sentAt := time.Now()
	rows := sqlmock.NewRows([]string{"id", "type", "target_kind", "target_id", "message", "providers", "status", "error_message", "sent_at"}).
		AddRow("alert-1", "monitor_failure", TargetMonitor, "mon-1", "down", "[]", AlertSent, nil, sentAt)

	mock.ExpectQuery("FROM alert_history WHERE target_id = ").
		WithArgs("mon-1", "monitor_failure").
		WillReturnRows(rows)

	last, err := r.LastAlertOfKind("mon-1", "monitor_failure")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "alert-1", last.ID)
	assert.Equal(t, AlertSent, last.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPruneOldRunsReportsRowsAffected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := New(db)
	cutoff := time.Now()

	mock.ExpectExec("DELETE FROM runs WHERE id IN").
		WithArgs(cutoff, 100).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := r.PruneOldRuns(cutoff, 100)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- real-sqlite tests for the transactional paths sqlmock can't express ---

func TestCreateRunRejectsConcurrentRun(t *testing.T) {
	database := qntxtest.CreateTestDB(t)
	r := New(database)
	now := time.Now()

	require.NoError(t, r.CreateJob(&Job{ID: "job-1", Name: "n", Status: JobPending, CreatedAt: now, UpdatedAt: now}))

	_, err := r.CreateRun("job-1", TriggerManual, "run-1", now)
	require.NoError(t, err)

	_, err = r.CreateRun("job-1", TriggerManual, "run-2", now)
	assert.True(t, xerrors.Is(err, ErrConcurrentRun))
}

func TestFinishRunIsIdempotentOnTerminalRun(t *testing.T) {
	database := qntxtest.CreateTestDB(t)
	r := New(database)
	now := time.Now()

	require.NoError(t, r.CreateJob(&Job{ID: "job-1", Name: "n", Status: JobPending, CreatedAt: now, UpdatedAt: now}))
	_, err := r.CreateRun("job-1", TriggerManual, "run-1", now)
	require.NoError(t, err)

	require.NoError(t, r.FinishRun("run-1", RunPassed, 5, "", "", now))
	require.NoError(t, r.FinishRun("run-1", RunFailed, 9, "should be ignored", "", now))

	run, err := r.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, RunPassed, run.Status, "second FinishRun call on an already-terminal run must be a no-op")
	require.NotNil(t, run.DurationSec)
	assert.Equal(t, 5, *run.DurationSec)
}

func TestUpdateMonitorMergesConfig(t *testing.T) {
	database := qntxtest.CreateTestDB(t)
	r := New(database)
	now := time.Now()

	m := &Monitor{ID: "mon-1", Type: MonitorWebsite, Target: "https://example.com", FrequencyMinutes: 5,
		Status: MonitorPending, Config: `{"timeoutSeconds":10}`, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, r.CreateMonitor(m))

	require.NoError(t, r.UpdateMonitor("mon-1", MonitorPatch{
		ConfigMerge: map[string]interface{}{"followRedirects": true},
	}))

	updated, err := r.GetMonitor("mon-1")
	require.NoError(t, err)
	assert.Contains(t, updated.Config, `"timeoutSeconds":10`)
	assert.Contains(t, updated.Config, `"followRedirects":true`)
}
