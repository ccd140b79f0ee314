// Package heartbeat implements HeartbeatReceiver (spec §4.8, §6): the
// inbound HTTP endpoint external systems POST to, confirming they're alive.
package heartbeat

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supercheck/core/internal/alert"
	"github.com/supercheck/core/internal/logging"
	"github.com/supercheck/core/internal/repo"
	"github.com/supercheck/core/internal/xerrors"
)

// Receiver handles inbound pings for heartbeat-type monitors.
type Receiver struct {
	repo   *repo.Repo
	alerts *alert.Engine
	log    *zap.SugaredLogger
}

func NewReceiver(r *repo.Repo, alerts *alert.Engine) *Receiver {
	return &Receiver{repo: r, alerts: alerts, log: logging.Named("heartbeat.receiver")}
}

// ServeHTTP handles POST /heartbeat/{monitorId}. Idempotent: each call
// appends one "up" MonitorResult and bumps lastPingAt, regardless of how
// many times it's called within a single grace window.
func (h *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	monitorID := r.PathValue("monitorId")
	if monitorID == "" {
		writeError(w, http.StatusBadRequest, "missing monitor id")
		return
	}

	monitor, err := h.repo.GetMonitor(monitorID)
	if err != nil {
		if xerrors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown monitor")
			return
		}
		h.log.Errorw("failed to load monitor for heartbeat ping", "monitor_id", monitorID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if monitor.Type != repo.MonitorHeartbeat {
		writeError(w, http.StatusBadRequest, "monitor is not a heartbeat monitor")
		return
	}

	previousStatus := monitor.Status

	now := time.Now()
	responseMs := 0
	result := &repo.MonitorResult{
		ID:        uuid.NewString(),
		MonitorID: monitor.ID,
		CheckedAt: now,
		Status:    repo.ProbeUp,
		IsUp:      true,
		ResponseTimeMs: &responseMs,
		Details:   `{"checkType":"heartbeat_ping"}`,
	}
	if previousStatus != repo.MonitorUp {
		result.IsStatusChange = true
	}
	if err := h.repo.InsertMonitorResult(result); err != nil {
		h.log.Errorw("failed to record heartbeat ping", "monitor_id", monitorID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := repo.MonitorUp
	patch := repo.MonitorPatch{LastPingAt: &now, LastCheckAt: &now}
	if result.IsStatusChange {
		patch.Status = &status
		patch.LastStatusChangeAt = &now
	}
	if err := h.repo.UpdateMonitor(monitor.ID, patch); err != nil {
		h.log.Errorw("failed to update monitor after heartbeat ping", "monitor_id", monitorID, "error", err)
	}

	monitor.Status = status
	monitor.LastCheckAt = &now
	h.alerts.HandleMonitorOutcome(r.Context(), monitor, previousStatus, result)

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "checkedAt": now})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
