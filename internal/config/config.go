// Package config loads the supercheck-core configuration via viper, mirroring
// the teacher's am package: a mapstructure-tagged Config struct, defaults set
// on a *viper.Viper before any file is read, and environment variable
// overrides under a stable prefix.
package config

// Config is the root configuration for supercheck-core.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Capacity  CapacityConfig  `mapstructure:"capacity"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Prober    ProberConfig    `mapstructure:"prober"`
	Alert     AlertConfig     `mapstructure:"alert"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Artifact  ArtifactConfig  `mapstructure:"artifact"`
	Janitor   JanitorConfig   `mapstructure:"janitor"`
	Log       LogConfig       `mapstructure:"log"`
}

// StorageConfig configures the SQLite-backed Repo.
type StorageConfig struct {
	Path string `mapstructure:"path"` // default: supercheck.db
}

// CapacityConfig configures the admission controller (spec §4.4).
type CapacityConfig struct {
	RunningCapacity int `mapstructure:"running_capacity"` // default 5
	QueuedCapacity  int `mapstructure:"queued_capacity"`  // default 10
}

// QueueConfig configures terminal-state retention (spec §4.2).
type QueueConfig struct {
	CompletedRetentionHours int `mapstructure:"completed_retention_hours"` // default 24
	CompletedRetentionCap   int `mapstructure:"completed_retention_cap"`   // default 1000
	FailedRetentionHours    int `mapstructure:"failed_retention_hours"`    // default 168 (7d)
	FailedRetentionCap      int `mapstructure:"failed_retention_cap"`      // default 5000
	SubscriberBufferSize    int `mapstructure:"subscriber_buffer_size"`    // default 100
}

// SchedulerConfig configures JobScheduler/MonitorScheduler polling and the
// worker pools backing the two execution queues.
type SchedulerConfig struct {
	JobWorkers             int `mapstructure:"job_workers"`              // default 1 (browser tests are heavy)
	MonitorWorkers         int `mapstructure:"monitor_workers"`          // default 4
	PollIntervalSeconds    int `mapstructure:"poll_interval_seconds"`    // default 1
	StartupGracePeriodSecs int `mapstructure:"startup_grace_period_secs"` // default 0 (recover orphans immediately)
}

// ProberConfig configures default timeouts for the monitor probers (spec §4.8).
type ProberConfig struct {
	HTTPTimeoutSeconds int  `mapstructure:"http_timeout_seconds"` // default 30
	PingTimeoutSeconds int  `mapstructure:"ping_timeout_seconds"` // default 5
	PortTimeoutSeconds int  `mapstructure:"port_timeout_seconds"` // default 10
	BlockPrivateIPs    bool `mapstructure:"block_private_ips"`    // default false: monitor targets are often internal
}

// AlertConfig configures alert-engine defaults (spec §4.10, §6).
type AlertConfig struct {
	DefaultFailureThreshold  int     `mapstructure:"default_failure_threshold"`  // default 1
	DefaultRecoveryThreshold int     `mapstructure:"default_recovery_threshold"` // default 1
	SSLWarnDays              int     `mapstructure:"ssl_warn_days"`              // default 30
	SSLCheckFrequencyHours   int     `mapstructure:"ssl_check_frequency_hours"`  // default 24
	SSLCooldownHours         int     `mapstructure:"ssl_cooldown_hours"`         // default 24
	NotifierTimeoutSeconds   int     `mapstructure:"notifier_timeout_seconds"`   // default 10
	ChannelMaxPerHour        float64 `mapstructure:"channel_max_per_hour"`       // default 60
	DashboardURL             string  `mapstructure:"dashboard_url"`              // default ""
}

// HeartbeatConfig configures the inbound heartbeat ingress and sweep.
type HeartbeatConfig struct {
	ListenAddr          string `mapstructure:"listen_addr"`           // default ":8877"
	SweepIntervalMinutes int   `mapstructure:"sweep_interval_minutes"` // default 5
}

// ExecutorConfig configures the external test executor child process.
type ExecutorConfig struct {
	Command            string `mapstructure:"command"`              // default "supercheck-runner"
	TimeoutSeconds      int   `mapstructure:"timeout_seconds"`      // default 900 (15min)
	MaxOutputBytes      int   `mapstructure:"max_output_bytes"`     // default 10MiB
	WorkingDirBase      string `mapstructure:"working_dir_base"`     // default "./run-workspace"
}

// ArtifactConfig configures the artifact store collaborator.
type ArtifactConfig struct {
	BaseDir string `mapstructure:"base_dir"` // default "./artifacts" (filesystem-backed store)
	BaseURL string `mapstructure:"base_url"` // default "http://localhost:8877/artifacts"
}

// JanitorConfig configures the periodic cleanup sweep (spec §5).
type JanitorConfig struct {
	IntervalHours      int `mapstructure:"interval_hours"`       // default 12
	OrphanJobTTLDays   int `mapstructure:"orphan_job_ttl_days"`  // default 7
	EventStreamTTLHours int `mapstructure:"event_stream_ttl_hours"` // default 24
	MetricsTTLHours    int `mapstructure:"metrics_ttl_hours"`    // default 48
	ScanBatchSize      int `mapstructure:"scan_batch_size"`      // default 500, cursor-based
}

// LogConfig configures the ambient logger.
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}

func (c *Config) GetDatabasePath() string {
	if c.Storage.Path == "" {
		return "supercheck.db"
	}
	return c.Storage.Path
}
