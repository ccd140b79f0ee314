package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/supercheck/core/internal/repo"
	"github.com/supercheck/core/internal/xerrors"
)

type slackConfig struct {
	WebhookURL string `json:"webhookUrl"`
	Channel    string `json:"channel"`
	MaxPerHour int    `json:"maxAlertsPerHour"`
	Burst      int    `json:"burstLimit"`
}

type slackAttachmentField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string                 `json:"color"`
	Title  string                 `json:"title"`
	Text   string                 `json:"text"`
	Fields []slackAttachmentField `json:"fields"`
	Ts     int64                  `json:"ts"`
}

type slackMessage struct {
	Channel     string             `json:"channel,omitempty"`
	Attachments []slackAttachment  `json:"attachments"`
}

// SlackTransport posts a colored attachment to a Slack incoming webhook,
// grounded on the pack's iLLeniumStudios-cronjob-guardian slack channel.
type SlackTransport struct {
	httpClient *http.Client
	limiter    *perProviderLimiter
}

func NewSlackTransport() *SlackTransport {
	return &SlackTransport{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    newPerProviderLimiter(),
	}
}

func (s *SlackTransport) Send(ctx context.Context, payload Payload, provider repo.NotificationProvider) error {
	var cfg slackConfig
	if err := json.Unmarshal([]byte(provider.Config), &cfg); err != nil {
		return xerrors.Wrap(err, "invalid slack provider config")
	}
	if cfg.WebhookURL == "" {
		return xerrors.New("slack provider config missing webhookUrl")
	}

	if !s.limiter.allow(provider.ID, cfg.MaxPerHour, cfg.Burst) {
		return xerrors.Newf("rate limit exceeded for slack provider %s", provider.ID)
	}

	fields := make([]slackAttachmentField, 0, len(payload.Fields))
	for _, f := range payload.Fields {
		fields = append(fields, slackAttachmentField{Title: f.Name, Value: f.Value, Short: f.Short})
	}

	msg := slackMessage{
		Channel: cfg.Channel,
		Attachments: []slackAttachment{{
			Color:  payload.Severity.Color(),
			Title:  payload.Title,
			Text:   payload.Message,
			Fields: fields,
			Ts:     payload.Timestamp.Unix(),
		}},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return xerrors.Wrap(err, "failed to marshal slack payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return xerrors.Wrap(err, "failed to build slack request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return xerrors.Wrap(err, "slack request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return xerrors.Newf("slack returned status %d", resp.StatusCode)
	}
	return nil
}
