package alert

import (
	"fmt"
	"time"

	"github.com/supercheck/core/internal/notifier"
	"github.com/supercheck/core/internal/repo"
)

func responseTimeField(ms *int) []notifier.Field {
	if ms == nil {
		return nil
	}
	return []notifier.Field{{Name: "Response time", Value: fmt.Sprintf("%dms", *ms), Short: true}}
}

func withCustomMessage(message string, cfg Config) string {
	if cfg.CustomMessage != "" {
		return cfg.CustomMessage
	}
	return message
}

func payloadForMonitorFailure(monitor *repo.Monitor, result *repo.MonitorResult, consecutiveFailures int, dashboardURL string, cfg Config) notifier.Payload {
	message := fmt.Sprintf("%s is down (%d consecutive failure(s))", monitor.Target, consecutiveFailures)
	fields := append(responseTimeField(result.ResponseTimeMs),
		notifier.Field{Name: "Consecutive failures", Value: fmt.Sprintf("%d", consecutiveFailures), Short: true})

	return notifier.Payload{
		Type:      "monitor_failure",
		Severity:  notifier.SeverityError,
		Title:     fmt.Sprintf("Monitor down: %s", monitor.Target),
		Message:   withCustomMessage(message, cfg),
		Timestamp: time.Now(),
		Fields:    fields,
		Metadata: map[string]interface{}{
			"status":              result.Status,
			"consecutiveFailures": consecutiveFailures,
		},
	}
}

func payloadForMonitorRecovery(monitor *repo.Monitor, result *repo.MonitorResult, consecutiveSuccesses int, dashboardURL string, cfg Config) notifier.Payload {
	message := fmt.Sprintf("%s has recovered", monitor.Target)
	fields := append(responseTimeField(result.ResponseTimeMs),
		notifier.Field{Name: "Consecutive successes", Value: fmt.Sprintf("%d", consecutiveSuccesses), Short: true})

	return notifier.Payload{
		Type:      "monitor_recovery",
		Severity:  notifier.SeveritySuccess,
		Title:     fmt.Sprintf("Monitor recovered: %s", monitor.Target),
		Message:   withCustomMessage(message, cfg),
		Timestamp: time.Now(),
		Fields:    fields,
		Metadata: map[string]interface{}{
			"status":               result.Status,
			"consecutiveSuccesses": consecutiveSuccesses,
		},
	}
}

func payloadForJobFailure(job *repo.Job, run *repo.Run, consecutiveFailures int, dashboardURL string, cfg Config) notifier.Payload {
	message := fmt.Sprintf("Job %q failed (%d consecutive failure(s))", job.Name, consecutiveFailures)
	return notifier.Payload{
		Type:      "job_failure",
		Severity:  notifier.SeverityError,
		Title:     fmt.Sprintf("Job failed: %s", job.Name),
		Message:   withCustomMessage(message, cfg),
		Timestamp: time.Now(),
		Fields: []notifier.Field{
			{Name: "Run ID", Value: run.ID, Short: true},
			{Name: "Consecutive failures", Value: fmt.Sprintf("%d", consecutiveFailures), Short: true},
		},
		Metadata: map[string]interface{}{"duration": run.DurationSec, "consecutiveFailures": consecutiveFailures},
	}
}

func payloadForJobSuccess(job *repo.Job, run *repo.Run, consecutiveSuccesses int, dashboardURL string, cfg Config) notifier.Payload {
	message := fmt.Sprintf("Job %q passed (%d consecutive success(es))", job.Name, consecutiveSuccesses)
	return notifier.Payload{
		Type:      "job_success",
		Severity:  notifier.SeveritySuccess,
		Title:     fmt.Sprintf("Job passed: %s", job.Name),
		Message:   withCustomMessage(message, cfg),
		Timestamp: time.Now(),
		Fields: []notifier.Field{
			{Name: "Run ID", Value: run.ID, Short: true},
			{Name: "Consecutive successes", Value: fmt.Sprintf("%d", consecutiveSuccesses), Short: true},
		},
		Metadata: map[string]interface{}{"duration": run.DurationSec, "consecutiveSuccesses": consecutiveSuccesses},
	}
}

func payloadForJobTimeout(job *repo.Job, run *repo.Run, dashboardURL string, cfg Config) notifier.Payload {
	message := fmt.Sprintf("Job %q timed out", job.Name)
	return notifier.Payload{
		Type:      "job_timeout",
		Severity:  notifier.SeverityError,
		Title:     fmt.Sprintf("Job timed out: %s", job.Name),
		Message:   withCustomMessage(message, cfg),
		Timestamp: time.Now(),
		Fields: []notifier.Field{
			{Name: "Run ID", Value: run.ID, Short: true},
		},
		Metadata: map[string]interface{}{"duration": run.DurationSec},
	}
}
