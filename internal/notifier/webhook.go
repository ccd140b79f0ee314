package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"text/template"
	"time"

	"github.com/supercheck/core/internal/repo"
	"github.com/supercheck/core/internal/xerrors"
)

// webhookConfig is the decoded shape of a webhook provider's Config JSON.
type webhookConfig struct {
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	Headers         map[string]string `json:"headers"`
	PayloadTemplate string            `json:"payloadTemplate"`
	MaxPerHour      int               `json:"maxAlertsPerHour"`
	Burst           int               `json:"burstLimit"`
}

// WebhookTransport POSTs a rendered JSON payload to the configured URL,
// rate-limited per provider, grounded on the teacher pack's
// iLLeniumStudios-cronjob-guardian webhook channel.
type WebhookTransport struct {
	httpClient *http.Client
	limiter    *perProviderLimiter
}

func NewWebhookTransport() *WebhookTransport {
	return &WebhookTransport{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    newPerProviderLimiter(),
	}
}

var defaultWebhookTemplate = template.Must(template.New("webhook").Parse(`{
  "type": "{{ .Type }}",
  "severity": "{{ .Severity }}",
  "title": "{{ js .Title }}",
  "message": "{{ js .Message }}",
  "targetName": "{{ js .TargetName }}",
  "targetId": "{{ .TargetID }}",
  "timestamp": "{{ .Timestamp.Format "2006-01-02T15:04:05Z07:00" }}",
  "color": "{{ .Severity.Color }}"
}`))

func (w *WebhookTransport) Send(ctx context.Context, payload Payload, provider repo.NotificationProvider) error {
	var cfg webhookConfig
	if err := json.Unmarshal([]byte(provider.Config), &cfg); err != nil {
		return xerrors.Wrap(err, "invalid webhook provider config")
	}
	if cfg.URL == "" {
		return xerrors.New("webhook provider config missing url")
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}

	if !w.limiter.allow(provider.ID, cfg.MaxPerHour, cfg.Burst) {
		return xerrors.Newf("rate limit exceeded for webhook provider %s", provider.ID)
	}

	tmpl := defaultWebhookTemplate
	if cfg.PayloadTemplate != "" {
		parsed, err := template.New("webhook").Parse(cfg.PayloadTemplate)
		if err != nil {
			return xerrors.Wrap(err, "invalid webhook payload template")
		}
		tmpl = parsed
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload); err != nil {
		return xerrors.Wrap(err, "failed to render webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, &buf)
	if err != nil {
		return xerrors.Wrap(err, "failed to build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return xerrors.Wrap(err, "webhook request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return xerrors.Newf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
