package heartbeat

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supercheck/core/internal/alert"
	"github.com/supercheck/core/internal/notifier"
	"github.com/supercheck/core/internal/repo"
	qntxtest "github.com/supercheck/core/internal/testing"
)

func newTestReceiver(r *repo.Repo) *Receiver {
	engine := alert.NewEngine(r, notifier.NewDefault(), "", 0, 0, 0)
	return NewReceiver(r, engine)
}

func newTestMonitor(t *testing.T, r *repo.Repo, status repo.MonitorStatus) *repo.Monitor {
	t.Helper()
	now := time.Now()
	m := &repo.Monitor{
		ID:               "mon-heartbeat-1",
		Type:             repo.MonitorHeartbeat,
		Target:           "heartbeat",
		FrequencyMinutes: 5,
		Enabled:          true,
		Status:           status,
		Config:           "{}",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, r.CreateMonitor(m))
	return m
}

func newRequest(monitorID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/heartbeat/"+monitorID, nil)
	req.SetPathValue("monitorId", monitorID)
	return req
}

func TestServeHTTPRecordsUpResultAndTransitionsStatus(t *testing.T) {
	db := qntxtest.CreateTestDB(t)
	r := repo.New(db)
	newTestMonitor(t, r, repo.MonitorDown)

	receiver := newTestReceiver(r)
	w := httptest.NewRecorder()
	receiver.ServeHTTP(w, newRequest("mon-heartbeat-1"))

	assert.Equal(t, http.StatusOK, w.Code)

	updated, err := r.GetMonitor("mon-heartbeat-1")
	require.NoError(t, err)
	assert.Equal(t, repo.MonitorUp, updated.Status)
	require.NotNil(t, updated.LastPingAt)
	require.NotNil(t, updated.LastStatusChangeAt)
}

func TestServeHTTPIsIdempotentAcrossCalls(t *testing.T) {
	db := qntxtest.CreateTestDB(t)
	r := repo.New(db)
	newTestMonitor(t, r, repo.MonitorUp)

	receiver := newTestReceiver(r)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		receiver.ServeHTTP(w, newRequest("mon-heartbeat-1"))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	results, err := r.RecentMonitorResults("mon-heartbeat-1", 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	for _, res := range results {
		assert.True(t, res.IsUp)
		assert.False(t, res.IsStatusChange)
	}
}

func TestServeHTTPUnknownMonitor(t *testing.T) {
	db := qntxtest.CreateTestDB(t)
	r := repo.New(db)
	receiver := newTestReceiver(r)

	w := httptest.NewRecorder()
	receiver.ServeHTTP(w, newRequest("does-not-exist"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServeHTTPRejectsNonHeartbeatMonitor(t *testing.T) {
	db := qntxtest.CreateTestDB(t)
	r := repo.New(db)
	now := time.Now()
	m := &repo.Monitor{
		ID:               "mon-website-1",
		Type:             repo.MonitorWebsite,
		Target:           "https://example.com",
		FrequencyMinutes: 5,
		Enabled:          true,
		Status:           repo.MonitorPending,
		Config:           "{}",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, r.CreateMonitor(m))

	receiver := newTestReceiver(r)
	w := httptest.NewRecorder()
	receiver.ServeHTTP(w, newRequest("mon-website-1"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServeHTTPRejectsWrongMethod(t *testing.T) {
	db := qntxtest.CreateTestDB(t)
	r := repo.New(db)
	receiver := newTestReceiver(r)

	req := httptest.NewRequest(http.MethodDelete, "/heartbeat/mon-heartbeat-1", nil)
	req.SetPathValue("monitorId", "mon-heartbeat-1")
	w := httptest.NewRecorder()
	receiver.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
