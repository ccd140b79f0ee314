package janitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qntxtest "github.com/supercheck/core/internal/testing"
	"github.com/supercheck/core/internal/queue"
	"github.com/supercheck/core/internal/repo"
)

func TestNewAppliesDefaults(t *testing.T) {
	db := qntxtest.CreateTestDB(t)
	r := repo.New(db)
	q := queue.New(queue.NewStore(db))

	j := New(r, q, Config{})

	assert.Equal(t, 12*time.Hour, j.config.Interval)
	assert.Equal(t, 7*24*time.Hour, j.config.JobDataTTL)
	assert.Equal(t, 24*time.Hour, j.config.EventStreamTTL)
	assert.Equal(t, 48*time.Hour, j.config.MetricsTTL)
	assert.Equal(t, 500, j.config.BatchSize)
}

func seedOldRun(t *testing.T, r *repo.Repo, age time.Duration) {
	t.Helper()
	now := time.Now()
	jobID := "job-" + time.Now().Format(time.RFC3339Nano)
	require.NoError(t, r.CreateJob(&repo.Job{
		ID: jobID, Name: "test job", Status: repo.JobPending, CreatedAt: now, UpdatedAt: now,
	}))

	runID := jobID + "-run"
	_, err := r.CreateRun(jobID, repo.TriggerManual, runID, now.Add(-age))
	require.NoError(t, err)
	require.NoError(t, r.FinishRun(runID, repo.RunPassed, 1, "", "", now.Add(-age)))
}

func TestSweepPrunesExpiredRuns(t *testing.T) {
	db := qntxtest.CreateTestDB(t)
	r := repo.New(db)
	q := queue.New(queue.NewStore(db))

	seedOldRun(t, r, 10*24*time.Hour) // older than the default 7d TTL
	seedOldRun(t, r, time.Hour)       // fresh, must survive

	j := New(r, q, Config{BatchSize: 10})
	j.Sweep()

	remaining, err := r.PruneOldRuns(time.Now().Add(time.Hour), 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining, "exactly the fresh run should remain prunable once its own TTL is exceeded")
}

func TestSweepIsSafeWithNoData(t *testing.T) {
	db := qntxtest.CreateTestDB(t)
	r := repo.New(db)
	q := queue.New(queue.NewStore(db))

	j := New(r, q, Config{})
	assert.NotPanics(t, func() { j.Sweep() })
}
