package alert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supercheck/core/internal/notifier"
	"github.com/supercheck/core/internal/repo"
	qntxtest "github.com/supercheck/core/internal/testing"
)

func newTestMonitor(t *testing.T, r *repo.Repo, alertConfig string) *repo.Monitor {
	t.Helper()
	now := time.Now()
	m := &repo.Monitor{
		ID:               "mon-1",
		Type:             repo.MonitorWebsite,
		Target:           "https://example.com",
		FrequencyMinutes: 5,
		Enabled:          true,
		Status:           repo.MonitorPending,
		Config:           "{}",
		AlertConfig:      alertConfig,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, r.CreateMonitor(m))
	return m
}

// feedResult mimics MonitorDispatcher.Execute: it inserts a MonitorResult,
// mutates monitor.Status in-memory to the new up/down status, and invokes
// HandleMonitorOutcome with the status captured before that mutation.
func feedResult(ctx context.Context, t *testing.T, e *Engine, r *repo.Repo, monitor *repo.Monitor, isUp bool, at time.Time) {
	t.Helper()
	previousStatus := monitor.Status

	newStatus := repo.MonitorDown
	if isUp {
		newStatus = repo.MonitorUp
	}

	result := &repo.MonitorResult{
		ID:             at.Format(time.RFC3339Nano),
		MonitorID:      monitor.ID,
		CheckedAt:      at,
		Status:         repo.ProbeDown,
		IsUp:           isUp,
		IsStatusChange: newStatus != previousStatus,
	}
	if isUp {
		result.Status = repo.ProbeUp
	}
	require.NoError(t, r.InsertMonitorResult(result))

	monitor.Status = newStatus
	monitor.LastCheckAt = &at
	e.HandleMonitorOutcome(ctx, monitor, previousStatus, result)
}

// alertID returns the ID of the most recent alert of alertType for
// targetID, or "" if none has been sent yet.
func alertID(t *testing.T, r *repo.Repo, targetID, alertType string) string {
	t.Helper()
	last, err := r.LastAlertOfKind(targetID, alertType)
	require.NoError(t, err)
	if last == nil {
		return ""
	}
	return last.ID
}

// TestHandleMonitorOutcomeScenario3 reproduces spec.md Scenario 3: a monitor
// probed every minute returns 500,500,200,500,500,500,200,200 with
// failureThreshold=3 and recoveryThreshold=2. The streak of three 500s
// starting at result 4 crosses threshold at result 6, and the streak of two
// 200s starting at result 7 crosses threshold at result 8 — exactly one
// monitor_failure and one monitor_recovery should be recorded, not one per
// result once each threshold is reached.
func TestHandleMonitorOutcomeScenario3(t *testing.T) {
	db := qntxtest.CreateTestDB(t)
	r := repo.New(db)
	engine := NewEngine(r, notifier.NewDefault(), "", 0, 0, 0)

	monitor := newTestMonitor(t, r, `{"enabled":true,"alertOnFailure":true,"alertOnRecovery":true,"failureThreshold":3,"recoveryThreshold":2}`)

	statuses := []bool{false, false, true, false, false, false, true, true} // 500,500,200,500,500,500,200,200
	base := time.Now()
	ctx := context.Background()

	var failureAlertID, recoveryAlertID string

	for i, up := range statuses {
		feedResult(ctx, t, engine, r, monitor, up, base.Add(time.Duration(i)*time.Minute))

		switch i {
		case 0, 1, 2, 3, 4:
			assert.Empty(t, alertID(t, r, monitor.ID, "monitor_failure"), "no failure alert before threshold is reached (result %d)", i+1)
		case 5:
			failureAlertID = alertID(t, r, monitor.ID, "monitor_failure")
			assert.NotEmpty(t, failureAlertID, "failure alert fires once threshold is reached (result %d)", i+1)
		case 6:
			assert.Equal(t, failureAlertID, alertID(t, r, monitor.ID, "monitor_failure"), "no duplicate failure alert for the same streak (result %d)", i+1)
			assert.Empty(t, alertID(t, r, monitor.ID, "monitor_recovery"), "no recovery alert before threshold is reached (result %d)", i+1)
		case 7:
			recoveryAlertID = alertID(t, r, monitor.ID, "monitor_recovery")
			assert.NotEmpty(t, recoveryAlertID, "recovery alert fires once threshold is reached (result %d)", i+1)
		}
	}

	assert.Equal(t, failureAlertID, alertID(t, r, monitor.ID, "monitor_failure"), "exactly one failure alert for the whole down streak")
	assert.Equal(t, recoveryAlertID, alertID(t, r, monitor.ID, "monitor_recovery"), "exactly one recovery alert for the whole up streak")
}

// TestHandleMonitorOutcomeNoRecoveryWithoutPriorDown ensures a monitor that
// has always been up never fires a spurious recovery alert merely because
// its up-streak satisfies the recovery threshold.
func TestHandleMonitorOutcomeNoRecoveryWithoutPriorDown(t *testing.T) {
	db := qntxtest.CreateTestDB(t)
	r := repo.New(db)
	engine := NewEngine(r, notifier.NewDefault(), "", 0, 0, 0)

	monitor := newTestMonitor(t, r, `{"enabled":true,"alertOnRecovery":true,"recoveryThreshold":2}`)

	base := time.Now()
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		feedResult(ctx, t, engine, r, monitor, true, base.Add(time.Duration(i)*time.Minute))
	}

	assert.Empty(t, alertID(t, r, monitor.ID, "monitor_recovery"), "an always-up monitor never recovers")
}

// TestHandleMonitorOutcomeDisabledConfigNoOps confirms the early exit on an
// empty/disabled alertConfig, which the heartbeat receiver relies on in
// tests that don't set up alert configuration at all.
func TestHandleMonitorOutcomeDisabledConfigNoOps(t *testing.T) {
	db := qntxtest.CreateTestDB(t)
	r := repo.New(db)
	engine := NewEngine(r, notifier.NewDefault(), "", 0, 0, 0)

	monitor := newTestMonitor(t, r, "")

	base := time.Now()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		feedResult(ctx, t, engine, r, monitor, false, base.Add(time.Duration(i)*time.Minute))
	}

	assert.Empty(t, alertID(t, r, monitor.ID, "monitor_failure"))
}

// TestHandleMonitorOutcomePausedSuppressesDispatch mirrors the engine's
// guard against alerting while a monitor is administratively paused.
func TestHandleMonitorOutcomePausedSuppressesDispatch(t *testing.T) {
	db := qntxtest.CreateTestDB(t)
	r := repo.New(db)
	engine := NewEngine(r, notifier.NewDefault(), "", 0, 0, 0)

	monitor := newTestMonitor(t, r, `{"enabled":true,"alertOnFailure":true,"failureThreshold":1}`)
	monitor.Status = repo.MonitorPaused

	result := &repo.MonitorResult{ID: "r1", MonitorID: monitor.ID, CheckedAt: time.Now(), Status: repo.ProbeDown, IsUp: false}
	require.NoError(t, r.InsertMonitorResult(result))

	engine.HandleMonitorOutcome(context.Background(), monitor, repo.MonitorPaused, result)

	assert.Empty(t, alertID(t, r, monitor.ID, "monitor_failure"))
}
