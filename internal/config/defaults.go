package config

import "github.com/spf13/viper"

// SetDefaults seeds v with every default value before any config file or
// environment variable is applied, mirroring the teacher's am.SetDefaults.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.path", "supercheck.db")

	v.SetDefault("capacity.running_capacity", 5)
	v.SetDefault("capacity.queued_capacity", 10)

	v.SetDefault("queue.completed_retention_hours", 24)
	v.SetDefault("queue.completed_retention_cap", 1000)
	v.SetDefault("queue.failed_retention_hours", 168)
	v.SetDefault("queue.failed_retention_cap", 5000)
	v.SetDefault("queue.subscriber_buffer_size", 100)

	v.SetDefault("scheduler.job_workers", 1)
	v.SetDefault("scheduler.monitor_workers", 4)
	v.SetDefault("scheduler.poll_interval_seconds", 1)
	v.SetDefault("scheduler.startup_grace_period_secs", 0)

	v.SetDefault("prober.http_timeout_seconds", 30)
	v.SetDefault("prober.ping_timeout_seconds", 5)
	v.SetDefault("prober.port_timeout_seconds", 10)
	v.SetDefault("prober.block_private_ips", false)

	v.SetDefault("alert.default_failure_threshold", 1)
	v.SetDefault("alert.default_recovery_threshold", 1)
	v.SetDefault("alert.ssl_warn_days", 30)
	v.SetDefault("alert.ssl_check_frequency_hours", 24)
	v.SetDefault("alert.ssl_cooldown_hours", 24)
	v.SetDefault("alert.notifier_timeout_seconds", 10)
	v.SetDefault("alert.channel_max_per_hour", 60)
	v.SetDefault("alert.dashboard_url", "")

	v.SetDefault("heartbeat.listen_addr", ":8877")
	v.SetDefault("heartbeat.sweep_interval_minutes", 5)

	v.SetDefault("executor.command", "supercheck-runner")
	v.SetDefault("executor.timeout_seconds", 900)
	v.SetDefault("executor.max_output_bytes", 10*1024*1024)
	v.SetDefault("executor.working_dir_base", "./run-workspace")

	v.SetDefault("artifact.base_dir", "./artifacts")
	v.SetDefault("artifact.base_url", "http://localhost:8877/artifacts")

	v.SetDefault("janitor.interval_hours", 12)
	v.SetDefault("janitor.orphan_job_ttl_days", 7)
	v.SetDefault("janitor.event_stream_ttl_hours", 24)
	v.SetDefault("janitor.metrics_ttl_hours", 48)
	v.SetDefault("janitor.scan_batch_size", 500)

	v.SetDefault("log.json", false)
}

// BindSensitiveEnvVars binds environment variables that must not be exposed
// through a printed config (notifier secrets, webhook tokens) individually,
// so they never end up written back to a merged config file on disk.
func BindSensitiveEnvVars(v *viper.Viper) {
	_ = v.BindEnv("alert.slack_webhook_url", "SUPERCHECK_ALERT_SLACK_WEBHOOK_URL")
	_ = v.BindEnv("alert.pagerduty_routing_key", "SUPERCHECK_ALERT_PAGERDUTY_ROUTING_KEY")
}
