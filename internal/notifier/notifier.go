// Package notifier implements the Notifier contract from spec §6:
// send(payload, provider) -> {ok, error}, delivering title/message/fields
// and a severity color through a transport per provider type. Delivery
// mechanics themselves are an out-of-scope external collaborator per
// spec §1 — this package supplies the concrete transports the engine
// dispatches through so AlertEngine has something to call.
package notifier

import (
	"context"
	"time"

	"github.com/supercheck/core/internal/repo"
)

// Severity classifies an alert payload (spec §4.10).
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// Color returns the hex color associated with a severity (spec §6).
func (s Severity) Color() string {
	switch s {
	case SeverityError:
		return "#ef4444"
	case SeverityWarning:
		return "#f59e0b"
	case SeveritySuccess:
		return "#22c55e"
	default:
		return "#3b82f6"
	}
}

// Field is one flat name/value pair rendered by a transport (spec §6).
type Field struct {
	Name  string
	Value string
	Short bool
}

// Payload is the uniform alert shape synthesized by AlertEngine (spec §4.10).
type Payload struct {
	Type       string
	Severity   Severity
	Title      string
	Message    string
	TargetName string
	TargetID   string
	Timestamp  time.Time
	Fields     []Field
	Metadata   map[string]interface{}
}

// Result is the per-provider send outcome.
type Result struct {
	OK    bool
	Error error
}

// Transport delivers a rendered Payload to one configured provider.
type Transport interface {
	Send(ctx context.Context, payload Payload, provider repo.NotificationProvider) error
}

// Notifier resolves a provider's type to its transport and invokes it.
type Notifier struct {
	transports map[repo.NotifierType]Transport
}

func New() *Notifier {
	return &Notifier{transports: make(map[repo.NotifierType]Transport)}
}

// Register installs a transport for a provider type, overwriting any
// previously registered transport for the same type.
func (n *Notifier) Register(t repo.NotifierType, transport Transport) {
	n.transports[t] = transport
}

// Send dispatches payload through the transport registered for
// provider.Type. Per spec §4.10, each call gets a 10s timeout, applied by
// the caller (AlertEngine) wrapping ctx.
func (n *Notifier) Send(ctx context.Context, payload Payload, provider repo.NotificationProvider) Result {
	transport, ok := n.transports[provider.Type]
	if !ok {
		return Result{OK: false, Error: unsupportedProviderError(provider.Type)}
	}
	if err := transport.Send(ctx, payload, provider); err != nil {
		return Result{OK: false, Error: err}
	}
	return Result{OK: true}
}
