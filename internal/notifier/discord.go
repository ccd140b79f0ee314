package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/supercheck/core/internal/repo"
	"github.com/supercheck/core/internal/xerrors"
)

type discordConfig struct {
	WebhookURL string `json:"webhookUrl"`
	MaxPerHour int    `json:"maxAlertsPerHour"`
	Burst      int    `json:"burstLimit"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title  string              `json:"title"`
	Description string         `json:"description"`
	Color  int                 `json:"color"`
	Fields []discordEmbedField `json:"fields"`
}

type discordMessage struct {
	Embeds []discordEmbed `json:"embeds"`
}

// DiscordTransport posts an alert as a Discord webhook embed.
type DiscordTransport struct {
	httpClient *http.Client
	limiter    *perProviderLimiter
}

func NewDiscordTransport() *DiscordTransport {
	return &DiscordTransport{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    newPerProviderLimiter(),
	}
}

func (d *DiscordTransport) Send(ctx context.Context, payload Payload, provider repo.NotificationProvider) error {
	var cfg discordConfig
	if err := json.Unmarshal([]byte(provider.Config), &cfg); err != nil {
		return xerrors.Wrap(err, "invalid discord provider config")
	}
	if cfg.WebhookURL == "" {
		return xerrors.New("discord provider config missing webhookUrl")
	}

	if !d.limiter.allow(provider.ID, cfg.MaxPerHour, cfg.Burst) {
		return xerrors.Newf("rate limit exceeded for discord provider %s", provider.ID)
	}

	fields := make([]discordEmbedField, 0, len(payload.Fields))
	for _, f := range payload.Fields {
		fields = append(fields, discordEmbedField{Name: f.Name, Value: f.Value, Inline: f.Short})
	}

	colorInt, _ := strconv.ParseInt(payload.Severity.Color()[1:], 16, 32)
	msg := discordMessage{Embeds: []discordEmbed{{
		Title:       payload.Title,
		Description: payload.Message,
		Color:       int(colorInt),
		Fields:      fields,
	}}}

	body, err := json.Marshal(msg)
	if err != nil {
		return xerrors.Wrap(err, "failed to marshal discord payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return xerrors.Wrap(err, "failed to build discord request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return xerrors.Wrap(err, "discord request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return xerrors.Newf("discord returned status %d", resp.StatusCode)
	}
	return nil
}
