package xerrors

// Kind classifies an error into one of the taxonomy buckets from the error
// handling design: who retries it, and how it should be surfaced.
type Kind int

const (
	// KindUnknown is the zero value; treat like Fatal until classified.
	KindUnknown Kind = iota

	// KindUserError covers invalid cron expressions, unknown monitor types,
	// missing required config, bad schedules. Surfaced to the API layer,
	// never retried.
	KindUserError

	// KindTransientIOError covers queue, database, network, and artifact
	// store hiccups. Retried by the originating layer's backoff policy;
	// converted to a terminal error if the policy exhausts.
	KindTransientIOError

	// KindRemoteFailure is not an error at all from the system's point of
	// view: a monitor target returning an unexpected result, or a test
	// executor exiting non-zero, is the normal domain outcome.
	KindRemoteFailure

	// KindCapacityRejection means the admission controller is over its
	// running-capacity cap. Callers requeue with a delay; it never counts
	// against a task's attempt budget.
	KindCapacityRejection

	// KindFatal covers unrecoverable state corruption or a failed
	// terminal-state write. Logged with a stack trace; the entity is left
	// in an error status so operators can inspect it.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindUserError:
		return "user_error"
	case KindTransientIOError:
		return "transient_io_error"
	case KindRemoteFailure:
		return "remote_failure"
	case KindCapacityRejection:
		return "capacity_rejection"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// classified wraps an error with a Kind so callers can classify with As
// without retaining a reference to the concrete type.
type classified struct {
	error
	kind Kind
}

func (c *classified) Unwrap() error { return c.error }

// Classify tags err with kind. The result still satisfies errors.Is/As
// against the original error via Unwrap.
func Classify(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	return &classified{error: err, kind: kind}
}

// KindOf extracts the Kind most recently attached via Classify, or
// KindUnknown if err (or nothing in its chain) was classified.
func KindOf(err error) Kind {
	var c *classified
	if As(err, &c) {
		return c.kind
	}
	return KindUnknown
}

// UserError classifies err as a KindUserError.
func UserError(err error) error { return Classify(err, KindUserError) }

// TransientIO classifies err as a KindTransientIOError.
func TransientIO(err error) error { return Classify(err, KindTransientIOError) }

// CapacityRejection classifies err as a KindCapacityRejection.
func CapacityRejection(err error) error { return Classify(err, KindCapacityRejection) }

// Fatal classifies err as a KindFatal.
func Fatal(err error) error { return Classify(err, KindFatal) }

// IsUserError reports whether err was classified KindUserError.
func IsUserError(err error) bool { return KindOf(err) == KindUserError }

// IsTransientIO reports whether err was classified KindTransientIOError.
func IsTransientIO(err error) bool { return KindOf(err) == KindTransientIOError }

// IsCapacityRejection reports whether err was classified KindCapacityRejection.
func IsCapacityRejection(err error) bool { return KindOf(err) == KindCapacityRejection }

// IsFatal reports whether err was classified KindFatal.
func IsFatal(err error) bool { return KindOf(err) == KindFatal }
