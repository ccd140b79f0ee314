package config

import "fmt"

// Validate checks that loaded configuration is self-consistent. It
// deliberately uses plain fmt.Errorf rather than xerrors: these are
// user-facing startup errors, not internal faults that need a stack trace.
func (c *Config) Validate() error {
	if c.Capacity.RunningCapacity <= 0 {
		return fmt.Errorf("capacity.running_capacity must be > 0, got %d", c.Capacity.RunningCapacity)
	}
	if c.Capacity.QueuedCapacity < 0 {
		return fmt.Errorf("capacity.queued_capacity must be >= 0, got %d", c.Capacity.QueuedCapacity)
	}

	if c.Scheduler.JobWorkers < 0 {
		return fmt.Errorf("scheduler.job_workers must be >= 0 (0 = disabled), got %d", c.Scheduler.JobWorkers)
	}
	if c.Scheduler.MonitorWorkers < 0 {
		return fmt.Errorf("scheduler.monitor_workers must be >= 0 (0 = disabled), got %d", c.Scheduler.MonitorWorkers)
	}
	if c.Scheduler.PollIntervalSeconds <= 0 {
		return fmt.Errorf("scheduler.poll_interval_seconds must be > 0, got %d", c.Scheduler.PollIntervalSeconds)
	}
	if c.Scheduler.StartupGracePeriodSecs < 0 {
		return fmt.Errorf("scheduler.startup_grace_period_secs must be >= 0, got %d", c.Scheduler.StartupGracePeriodSecs)
	}

	if c.Prober.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("prober.http_timeout_seconds must be > 0, got %d", c.Prober.HTTPTimeoutSeconds)
	}
	if c.Prober.PingTimeoutSeconds <= 0 {
		return fmt.Errorf("prober.ping_timeout_seconds must be > 0, got %d", c.Prober.PingTimeoutSeconds)
	}
	if c.Prober.PortTimeoutSeconds <= 0 {
		return fmt.Errorf("prober.port_timeout_seconds must be > 0, got %d", c.Prober.PortTimeoutSeconds)
	}

	if c.Alert.SSLWarnDays <= 0 {
		return fmt.Errorf("alert.ssl_warn_days must be > 0, got %d", c.Alert.SSLWarnDays)
	}
	if c.Alert.ChannelMaxPerHour < 0 {
		return fmt.Errorf("alert.channel_max_per_hour must be >= 0 (0 = unlimited), got %f", c.Alert.ChannelMaxPerHour)
	}

	if c.Executor.TimeoutSeconds <= 0 {
		return fmt.Errorf("executor.timeout_seconds must be > 0, got %d", c.Executor.TimeoutSeconds)
	}
	if c.Executor.MaxOutputBytes <= 0 {
		return fmt.Errorf("executor.max_output_bytes must be > 0, got %d", c.Executor.MaxOutputBytes)
	}

	if c.Janitor.IntervalHours <= 0 {
		return fmt.Errorf("janitor.interval_hours must be > 0, got %d", c.Janitor.IntervalHours)
	}
	if c.Janitor.ScanBatchSize <= 0 {
		return fmt.Errorf("janitor.scan_batch_size must be > 0, got %d", c.Janitor.ScanBatchSize)
	}

	return nil
}
