package repo

import (
	"encoding/json"
	"time"
)

// JobStatus is a Job's lifecycle state, owned exclusively by the scheduler
// and dispatcher pair — never written directly by the API layer.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobPassed  JobStatus = "passed"
	JobFailed  JobStatus = "failed"
	JobError   JobStatus = "error"
)

// Job is a bundle of test scripts executed on a cron schedule or on demand.
type Job struct {
	ID           string
	Name         string
	CronSchedule string // empty means "no cron schedule"
	Status       JobStatus
	LastRunAt    *time.Time
	NextRunAt    *time.Time
	AlertConfig  string // JSON, see AlertConfig shape
	RetryLimit   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Runnable reports whether this job should have an active repeatable queue
// entry: it has a schedule, and hasn't been archived out of it.
func (j *Job) Runnable() bool {
	return j.CronSchedule != ""
}

// TestScript belongs to a Job through an ordered join.
type TestScript struct {
	ID            string
	JobID         string
	Name          string
	Script        string
	OrderPosition int
}

// RunStatus is a Run's terminal or in-flight state.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunPassed  RunStatus = "passed"
	RunFailed  RunStatus = "failed"
	RunError   RunStatus = "error"
	RunTimeout RunStatus = "timeout"
)

func (s RunStatus) Terminal() bool {
	return s != RunRunning
}

// RunTrigger distinguishes schedule-fired runs from operator-triggered ones.
type RunTrigger string

const (
	TriggerSchedule RunTrigger = "schedule"
	TriggerManual   RunTrigger = "manual"
)

// Run is one attempted execution of a Job.
type Run struct {
	ID           string
	JobID        string
	Status       RunStatus
	StartedAt    time.Time
	CompletedAt  *time.Time
	DurationSec  *int
	Trigger      RunTrigger
	ErrorDetails string
	ReportURL    string
}

// MonitorType selects which prober handles a Monitor.
type MonitorType string

const (
	MonitorHTTPRequest MonitorType = "http_request"
	MonitorWebsite      MonitorType = "website"
	MonitorPingHost     MonitorType = "ping_host"
	MonitorPortCheck    MonitorType = "port_check"
	MonitorHeartbeat    MonitorType = "heartbeat"
)

// MonitorStatus is the Monitor's derived or operator-set health state.
type MonitorStatus string

const (
	MonitorPending     MonitorStatus = "pending"
	MonitorUp          MonitorStatus = "up"
	MonitorDown        MonitorStatus = "down"
	MonitorPaused      MonitorStatus = "paused"
	MonitorMaintenance MonitorStatus = "maintenance"
	MonitorErrorStatus MonitorStatus = "error"
)

// Monitor is a recurring health probe.
type Monitor struct {
	ID                 string
	Type               MonitorType
	Target             string
	FrequencyMinutes   int
	Enabled            bool
	Status             MonitorStatus
	Config             string // JSON tagged union, per Type
	LastCheckAt        *time.Time
	LastStatusChangeAt *time.Time
	AlertConfig        string // JSON
	SSLLastCheckedAt   *time.Time
	LastPingAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// MonitorPatch carries the subset of Monitor fields updateMonitor can change.
// nil fields are left untouched; Config, when non-nil, is merged rather than
// replaced (per spec §4.3 "config (merge)").
type MonitorPatch struct {
	Status             *MonitorStatus
	LastCheckAt        *time.Time
	LastStatusChangeAt *time.Time
	ConfigMerge        map[string]interface{}
	SSLLastCheckedAt   *time.Time
	LastPingAt         *time.Time
}

// ProbeStatus is the normalized outcome of a single probe attempt.
type ProbeStatus string

const (
	ProbeUp      ProbeStatus = "up"
	ProbeDown    ProbeStatus = "down"
	ProbeError   ProbeStatus = "error"
	ProbeTimeout ProbeStatus = "timeout"
)

// MonitorResult records one probe's outcome for a Monitor.
type MonitorResult struct {
	ID              string
	MonitorID       string
	CheckedAt       time.Time
	Status          ProbeStatus
	ResponseTimeMs  *int
	Details         string // JSON, typed per prober
	IsUp            bool
	IsStatusChange  bool
}

// DecodedDetails unmarshals Details into a generic map, returning an empty
// map on malformed or empty JSON rather than erroring — Details is
// best-effort diagnostic data, not load-bearing for persistence.
func (m *MonitorResult) DecodedDetails() map[string]interface{} {
	if m.Details == "" {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(m.Details), &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}

// NotifierType identifies a notification transport.
type NotifierType string

const (
	NotifierEmail    NotifierType = "email"
	NotifierSlack    NotifierType = "slack"
	NotifierWebhook  NotifierType = "webhook"
	NotifierTelegram NotifierType = "telegram"
	NotifierDiscord  NotifierType = "discord"
)

// NotificationProvider is a configured destination for alert payloads.
type NotificationProvider struct {
	ID      string
	Type    NotifierType
	Config  string // JSON
	Enabled bool
}

// AlertTargetKind distinguishes what an AlertHistory row refers to.
type AlertTargetKind string

const (
	TargetMonitor AlertTargetKind = "monitor"
	TargetJob     AlertTargetKind = "job"
)

// AlertDeliveryStatus is the fan-out outcome recorded for one alert.
type AlertDeliveryStatus string

const (
	AlertSent    AlertDeliveryStatus = "sent"
	AlertFailed  AlertDeliveryStatus = "failed"
	AlertPending AlertDeliveryStatus = "pending"
)

// AlertHistory records one alert fan-out attempt.
type AlertHistory struct {
	ID           string
	Type         string
	TargetKind   AlertTargetKind
	TargetID     string
	Message      string
	Providers    string // JSON array of provider ids
	Status       AlertDeliveryStatus
	ErrorMessage string
	SentAt       time.Time
}

// ReportEntityType identifies what a Report row describes.
type ReportEntityType string

const (
	ReportJob     ReportEntityType = "job"
	ReportRun     ReportEntityType = "run"
	ReportMonitor ReportEntityType = "monitor"
)

// Report is the artifact-bundle status for one entity, keyed uniquely by
// (entityType, entityId).
type Report struct {
	EntityType   ReportEntityType
	EntityID     string
	Status       string
	ArtifactURL  string
	ArtifactPath string
	UpdatedAt    time.Time
}
