package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supercheck/core/internal/alert"
	"github.com/supercheck/core/internal/logging"
	"github.com/supercheck/core/internal/prober"
	"github.com/supercheck/core/internal/queue"
	"github.com/supercheck/core/internal/repo"
	"github.com/supercheck/core/internal/xerrors"
)

// MonitorDispatcher implements queue.Handler for queue.MonitorExecutionKind
// (spec §4.9).
type MonitorDispatcher struct {
	repo    *repo.Repo
	alerts  *alert.Engine
	probers map[repo.MonitorType]prober.Prober
	heartbeat *prober.HeartbeatChecker
	sslWarnThreshold int
	sslCheckFrequencyHours int
	log     *zap.SugaredLogger
}

func NewMonitorDispatcher(r *repo.Repo, alerts *alert.Engine, probers map[repo.MonitorType]prober.Prober,
	heartbeat *prober.HeartbeatChecker, sslWarnThreshold, sslCheckFrequencyHours int) *MonitorDispatcher {
	return &MonitorDispatcher{
		repo: r, alerts: alerts, probers: probers, heartbeat: heartbeat,
		sslWarnThreshold: sslWarnThreshold, sslCheckFrequencyHours: sslCheckFrequencyHours,
		log: logging.Named("dispatcher.monitor"),
	}
}

func (d *MonitorDispatcher) Kind() string { return queue.MonitorExecutionKind }

func (d *MonitorDispatcher) Execute(ctx context.Context, task *queue.Task) error {
	var payload struct {
		MonitorID string `json:"monitor_id"`
	}
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return xerrors.UserError(xerrors.Wrap(err, "invalid monitor execution task payload"))
	}

	monitor, err := d.repo.GetMonitor(payload.MonitorID)
	if err != nil {
		if xerrors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return xerrors.Wrap(err, "failed to load monitor")
	}
	if monitor.Status == repo.MonitorPaused {
		return nil
	}

	previousStatus := monitor.Status

	result, err := d.runProbe(ctx, monitor)
	if err != nil {
		return xerrors.Wrap(err, "prober failed")
	}
	if result == nil {
		// Heartbeat within grace window: skip result insert entirely (spec §4.9 step 3).
		return nil
	}

	now := time.Now()
	detailsJSON, err := json.Marshal(result.Details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	monitorResult := &repo.MonitorResult{
		ID:        uuid.NewString(),
		MonitorID: monitor.ID,
		CheckedAt: now,
		Status:    repo.ProbeStatus(result.Status),
		IsUp:      result.IsUp,
		Details:   string(detailsJSON),
	}
	if result.ResponseTimeMs != nil {
		monitorResult.ResponseTimeMs = result.ResponseTimeMs
	}

	newMonitorStatus := previousStatus
	if result.IsUp {
		newMonitorStatus = repo.MonitorUp
	} else {
		newMonitorStatus = repo.MonitorDown
	}
	monitorResult.IsStatusChange = newMonitorStatus != previousStatus

	if err := d.repo.InsertMonitorResult(monitorResult); err != nil {
		return xerrors.Wrap(err, "failed to insert monitor result")
	}

	patch := repo.MonitorPatch{LastCheckAt: &now}
	if monitorResult.IsStatusChange {
		patch.Status = &newMonitorStatus
		patch.LastStatusChangeAt = &now
	}
	if _, ok := result.Details["sslCertificate"]; ok {
		patch.SSLLastCheckedAt = &now
	}
	if err := d.repo.UpdateMonitor(monitor.ID, patch); err != nil {
		d.log.Errorw("failed to update monitor after check", "monitor_id", monitor.ID, "error", err)
	}

	monitor.Status = newMonitorStatus
	monitor.LastCheckAt = &now
	d.alerts.HandleMonitorOutcome(ctx, monitor, previousStatus, monitorResult)

	return nil
}

func (d *MonitorDispatcher) runProbe(ctx context.Context, monitor *repo.Monitor) (*prober.Result, error) {
	var config map[string]interface{}
	if monitor.Config != "" {
		if err := json.Unmarshal([]byte(monitor.Config), &config); err != nil {
			return nil, xerrors.UserError(xerrors.Wrap(err, "invalid monitor config"))
		}
	}
	if config == nil {
		config = map[string]interface{}{}
	}

	if monitor.Type == repo.MonitorHeartbeat {
		return d.heartbeat.Check(time.Now(), monitor.CreatedAt, monitor.LastPingAt, config), nil
	}

	if monitor.Type == repo.MonitorWebsite {
		config["_performSslCheck"] = d.shouldPerformSSLCheck(monitor, config)
	}

	p, ok := d.probers[monitor.Type]
	if !ok {
		return nil, xerrors.UserError(xerrors.Newf("no prober registered for monitor type %q", monitor.Type))
	}
	return p.Probe(ctx, monitor.Target, config)
}

func (d *MonitorDispatcher) shouldPerformSSLCheck(monitor *repo.Monitor, config map[string]interface{}) bool {
	recent, err := d.repo.RecentMonitorResults(monitor.ID, 1)
	if err != nil || len(recent) == 0 {
		return prober.ShouldPerformSSLCheck(false, 0, 0, d.sslWarnThreshold, d.sslCheckFrequencyHours)
	}

	hasPrior := monitor.SSLLastCheckedAt != nil
	hoursSinceLast := 0.0
	if hasPrior {
		hoursSinceLast = time.Since(*monitor.SSLLastCheckedAt).Hours()
	}

	daysRemaining := 0
	details := recent[0].DecodedDetails()
	if cert, ok := details["sslCertificate"].(map[string]interface{}); ok {
		if d, ok := cert["DaysRemaining"].(float64); ok {
			daysRemaining = int(d)
		}
	}

	return prober.ShouldPerformSSLCheck(hasPrior, hoursSinceLast, daysRemaining, d.sslWarnThreshold, d.sslCheckFrequencyHours)
}
