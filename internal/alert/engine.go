// Package alert implements AlertEngine (spec §4.10): status-transition and
// SSL-expiry alerts for monitors, terminal-outcome alerts for jobs, uniform
// payload synthesis, and fan-out with history recording.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supercheck/core/internal/logging"
	"github.com/supercheck/core/internal/notifier"
	"github.com/supercheck/core/internal/repo"
)

// Engine evaluates alert conditions and fans payloads out to providers.
type Engine struct {
	repo     *repo.Repo
	notifier *notifier.Notifier

	dashboardURL      string
	sslCooldown       time.Duration
	providerTimeout   time.Duration
	sslCheckFrequency int // hours

	log *zap.SugaredLogger
}

func NewEngine(r *repo.Repo, n *notifier.Notifier, dashboardURL string, sslCooldownHours, providerTimeoutSeconds, sslCheckFrequencyHours int) *Engine {
	if sslCooldownHours <= 0 {
		sslCooldownHours = 24
	}
	if providerTimeoutSeconds <= 0 {
		providerTimeoutSeconds = 10
	}
	if sslCheckFrequencyHours <= 0 {
		sslCheckFrequencyHours = 24
	}
	return &Engine{
		repo:              r,
		notifier:          n,
		dashboardURL:      dashboardURL,
		sslCooldown:       time.Duration(sslCooldownHours) * time.Hour,
		providerTimeout:   time.Duration(providerTimeoutSeconds) * time.Second,
		sslCheckFrequency: sslCheckFrequencyHours,
		log:               logging.Named("alert.engine"),
	}
}

// consecutiveCounts scans results newest-first, counting the run of results
// matching the current result's isUp value (spec §4.10, inclusive of the
// current result).
func consecutiveCounts(results []*repo.MonitorResult) (consecutiveFailures, consecutiveSuccesses int) {
	if len(results) == 0 {
		return 0, 0
	}
	currentUp := results[0].IsUp
	count := 0
	for _, r := range results {
		if r.IsUp != currentUp {
			break
		}
		count++
	}
	if currentUp {
		return 0, count
	}
	return count, 0
}

// recoveredFromDown reports whether the up-streak of length streakLen is
// immediately preceded (in the newest-first recent slice) by a down result.
// Without this, a monitor that has simply always been up would satisfy a
// recovery threshold on every result once it first reaches it.
func recoveredFromDown(recent []*repo.MonitorResult, streakLen int) bool {
	return streakLen < len(recent) && !recent[streakLen].IsUp
}

// alreadyAlertedThisStreak reports whether the most recent alert of
// alertType was already sent for the current streak, so that a streak
// meeting threshold fires exactly one alert (spec property P8) rather than
// one per result once the threshold is reached.
func (e *Engine) alreadyAlertedThisStreak(monitorID, alertType string, recent []*repo.MonitorResult, streakLen int) bool {
	if streakLen <= 0 || streakLen > len(recent) {
		return false
	}
	streakStart := recent[streakLen-1].CheckedAt
	last, err := e.repo.LastAlertOfKind(monitorID, alertType)
	if err != nil {
		e.log.Errorw("failed to load last alert for streak dedup", "monitor_id", monitorID, "alert_type", alertType, "error", err)
		return false
	}
	return last != nil && !last.SentAt.Before(streakStart)
}

// HandleMonitorOutcome implements spec §4.9 step 6 / §4.10's monitor
// status-transition and SSL-expiry alerts.
func (e *Engine) HandleMonitorOutcome(ctx context.Context, monitor *repo.Monitor, previousStatus repo.MonitorStatus, result *repo.MonitorResult) {
	cfg, err := ParseConfig(monitor.AlertConfig)
	if err != nil {
		e.log.Warnw("invalid monitor alert config", "monitor_id", monitor.ID, "error", err)
		return
	}
	if !cfg.Enabled {
		return
	}

	recent, err := e.repo.RecentMonitorResults(monitor.ID, 50)
	if err != nil {
		e.log.Errorw("failed to load recent monitor results", "monitor_id", monitor.ID, "error", err)
		return
	}
	consecutiveFailures, consecutiveSuccesses := consecutiveCounts(recent)

	currentStatus := monitor.Status
	if previousStatus != repo.MonitorPaused {
		switch {
		case currentStatus == repo.MonitorDown && cfg.AlertOnFailure && consecutiveFailures >= cfg.FailureThreshold:
			if !e.alreadyAlertedThisStreak(monitor.ID, "monitor_failure", recent, consecutiveFailures) {
				e.dispatch(ctx, repo.TargetMonitor, monitor.ID, monitor.Target, cfg, payloadForMonitorFailure(monitor, result, consecutiveFailures, e.dashboardURL, cfg))
			}
		case currentStatus == repo.MonitorUp && cfg.AlertOnRecovery && consecutiveSuccesses >= cfg.RecoveryThreshold && recoveredFromDown(recent, consecutiveSuccesses):
			if !e.alreadyAlertedThisStreak(monitor.ID, "monitor_recovery", recent, consecutiveSuccesses) {
				e.dispatch(ctx, repo.TargetMonitor, monitor.ID, monitor.Target, cfg, payloadForMonitorRecovery(monitor, result, consecutiveSuccesses, e.dashboardURL, cfg))
			}
		}
	}

	e.evaluateSSLExpiry(ctx, monitor, result, cfg)
}

func (e *Engine) evaluateSSLExpiry(ctx context.Context, monitor *repo.Monitor, result *repo.MonitorResult, cfg Config) {
	if !cfg.AlertOnSslExpiration {
		return
	}
	certRaw, ok := result.DecodedDetails()["sslCertificate"]
	if !ok {
		return
	}
	cert, ok := certRaw.(map[string]interface{})
	if !ok {
		return
	}
	daysRemaining, ok := numericField(cert["DaysRemaining"])
	if !ok {
		return
	}

	var alertType string
	switch {
	case daysRemaining <= 0:
		alertType = "ssl_expired"
	case daysRemaining <= cfg.SslDaysUntilExpirationWarning:
		alertType = "ssl_expiring"
	default:
		return
	}

	last, err := e.repo.LastAlertOfKind(monitor.ID, "ssl_expiring")
	if err != nil {
		e.log.Errorw("failed to load last ssl alert", "monitor_id", monitor.ID, "error", err)
		return
	}
	if last != nil && time.Since(last.SentAt) < e.sslCooldown {
		return
	}

	severity := notifier.SeverityWarning
	if alertType == "ssl_expired" {
		severity = notifier.SeverityError
	}

	payload := notifier.Payload{
		Type:       alertType,
		Severity:   severity,
		Title:      fmt.Sprintf("SSL certificate for %s", monitor.Target),
		Message:    fmt.Sprintf("Certificate for %s expires in %d day(s)", monitor.Target, daysRemaining),
		TargetName: monitor.Target,
		TargetID:   monitor.ID,
		Timestamp:  time.Now(),
		Fields: []notifier.Field{
			{Name: "Days remaining", Value: fmt.Sprintf("%d", daysRemaining), Short: true},
		},
		Metadata: map[string]interface{}{"dashboardUrl": e.dashboardURL},
	}
	if cfg.CustomMessage != "" {
		payload.Message = cfg.CustomMessage
	}

	e.fanOut(ctx, repo.TargetMonitor, monitor.ID, alertType, payload, cfg.ProviderIDs)
}

func numericField(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// HandleJobOutcome implements spec §4.10's job outcome alerts, evaluated on
// terminal Run state.
func (e *Engine) HandleJobOutcome(ctx context.Context, job *repo.Job, run *repo.Run) {
	cfg, err := ParseConfig(job.AlertConfig)
	if err != nil {
		e.log.Warnw("invalid job alert config", "job_id", job.ID, "error", err)
		return
	}
	if !cfg.Enabled {
		return
	}

	statuses, err := e.repo.GetRunStatusesForJob(job.ID, 50)
	if err != nil {
		e.log.Errorw("failed to load run history", "job_id", job.ID, "error", err)
		return
	}
	consecutiveFailures, consecutiveSuccesses := consecutiveRunCounts(statuses)

	switch {
	case cfg.AlertOnFailure && run.Status == repo.RunFailed && consecutiveFailures >= cfg.FailureThreshold:
		e.dispatch(ctx, repo.TargetJob, job.ID, job.Name, cfg, payloadForJobFailure(job, run, consecutiveFailures, e.dashboardURL, cfg))
	case cfg.AlertOnSuccess && run.Status == repo.RunPassed && consecutiveSuccesses >= cfg.RecoveryThreshold:
		e.dispatch(ctx, repo.TargetJob, job.ID, job.Name, cfg, payloadForJobSuccess(job, run, consecutiveSuccesses, e.dashboardURL, cfg))
	case cfg.AlertOnTimeout && run.Status == repo.RunTimeout:
		e.dispatch(ctx, repo.TargetJob, job.ID, job.Name, cfg, payloadForJobTimeout(job, run, e.dashboardURL, cfg))
	}
}

func consecutiveRunCounts(statuses []repo.RunStatus) (consecutiveFailures, consecutiveSuccesses int) {
	if len(statuses) == 0 {
		return 0, 0
	}
	currentPassed := statuses[0] == repo.RunPassed
	count := 0
	for _, s := range statuses {
		if (s == repo.RunPassed) != currentPassed {
			break
		}
		count++
	}
	if currentPassed {
		return 0, count
	}
	return count, 0
}

func (e *Engine) dispatch(ctx context.Context, kind repo.AlertTargetKind, targetID, targetName string, cfg Config, payload notifier.Payload) {
	payload.TargetID = targetID
	payload.TargetName = targetName
	payload.Metadata = mergeMetadata(payload.Metadata, map[string]interface{}{"dashboardUrl": e.dashboardURL})
	e.fanOut(ctx, kind, targetID, payload.Type, payload, cfg.ProviderIDs)
}

func mergeMetadata(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = make(map[string]interface{})
	}
	for k, v := range src {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
	return dst
}

// fanOut resolves providers, sends through each, and records one
// AlertHistory row (spec §4.10 "Fan-out & history").
func (e *Engine) fanOut(ctx context.Context, kind repo.AlertTargetKind, targetID, alertType string, payload notifier.Payload, providerIDs []string) {
	providers, err := e.repo.ListNotificationProviders(providerIDs)
	if err != nil {
		e.log.Errorw("failed to resolve notification providers", "target_id", targetID, "error", err)
		return
	}

	succeeded, failed := 0, 0
	var lastErr error
	for _, p := range providers {
		if !p.Enabled {
			e.log.Warnw("skipping disabled notification provider", "provider_id", p.ID, "target_id", targetID)
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, e.providerTimeout)
		result := e.notifier.Send(sendCtx, payload, *p)
		cancel()

		if result.OK {
			succeeded++
		} else {
			failed++
			lastErr = result.Error
			e.log.Warnw("notifier send failed", "provider_id", p.ID, "target_id", targetID, "error", result.Error)
		}
	}

	status := repo.AlertSent
	errMsg := ""
	switch {
	case succeeded == 0 && failed > 0:
		status = repo.AlertFailed
		if lastErr != nil {
			errMsg = lastErr.Error()
		}
	case succeeded > 0 && failed > 0:
		status = repo.AlertSent
		errMsg = fmt.Sprintf("%d of %d providers failed", failed, succeeded+failed)
	}

	history := &repo.AlertHistory{
		ID:           uuid.NewString(),
		Type:         alertType,
		TargetKind:   kind,
		TargetID:     targetID,
		Message:      payload.Message,
		Providers:    marshalProviderIDs(providerIDs),
		Status:       status,
		ErrorMessage: errMsg,
		SentAt:       time.Now(),
	}
	if err := e.repo.InsertAlertHistory(history); err != nil {
		e.log.Errorw("failed to record alert history", "target_id", targetID, "error", err)
	}
}

func marshalProviderIDs(ids []string) string {
	raw, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(raw)
}
