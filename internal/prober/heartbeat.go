package prober

import "time"

// HeartbeatChecker implements the heartbeat monitor type's pull-mode sweep
// (spec §4.8): it only ever detects a missed ping. "up" results are written
// exclusively by the inbound heartbeat receiver, never synthesized here.
type HeartbeatChecker struct{}

func NewHeartbeatChecker() *HeartbeatChecker { return &HeartbeatChecker{} }

// Check returns nil when the monitor is still within its grace window — the
// caller must skip inserting a MonitorResult in that case (spec §4.8).
func (c *HeartbeatChecker) Check(now, createdAt time.Time, lastPingAt *time.Time, config map[string]interface{}) *Result {
	expectedMinutes := intField(config, "expectedIntervalMinutes", 60)
	graceMinutes := intField(config, "gracePeriodMinutes", 10)
	totalWait := time.Duration(expectedMinutes+graceMinutes) * time.Minute

	reference := createdAt
	reason := "no initial ping"
	if lastPingAt != nil {
		reference = *lastPingAt
		reason = "missed_heartbeat"
	}

	if now.Sub(reference) <= totalWait {
		return nil
	}

	return &Result{
		Status: StatusDown,
		IsUp:   false,
		Details: map[string]interface{}{
			"checkType": "missed_heartbeat",
			"reason":    reason,
		},
	}
}
