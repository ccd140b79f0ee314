package queue

// Kind names for the four logical queues from spec §2's data-flow diagram.
// Repeatable entries use the *Scheduler kinds; one-shot execution tasks use
// the *Execution kinds.
const (
	JobSchedulerKind      = "job_scheduler"
	JobExecutionKind      = "job_execution"
	MonitorSchedulerKind  = "monitor_scheduler"
	MonitorExecutionKind  = "monitor_execution"
)
