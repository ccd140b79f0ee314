package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/supercheck/core/internal/repo"
	"github.com/supercheck/core/internal/xerrors"
)

type telegramConfig struct {
	BotToken   string `json:"botToken"`
	ChatID     string `json:"chatId"`
	MaxPerHour int    `json:"maxAlertsPerHour"`
	Burst      int    `json:"burstLimit"`
}

// TelegramTransport posts an alert via the Telegram bot sendMessage API.
type TelegramTransport struct {
	httpClient *http.Client
	limiter    *perProviderLimiter
}

func NewTelegramTransport() *TelegramTransport {
	return &TelegramTransport{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    newPerProviderLimiter(),
	}
}

func (t *TelegramTransport) Send(ctx context.Context, payload Payload, provider repo.NotificationProvider) error {
	var cfg telegramConfig
	if err := json.Unmarshal([]byte(provider.Config), &cfg); err != nil {
		return xerrors.Wrap(err, "invalid telegram provider config")
	}
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return xerrors.New("telegram provider config missing botToken or chatId")
	}

	if !t.limiter.allow(provider.ID, cfg.MaxPerHour, cfg.Burst) {
		return xerrors.Newf("rate limit exceeded for telegram provider %s", provider.ID)
	}

	text := fmt.Sprintf("*%s*\n%s", payload.Title, payload.Message)
	for _, f := range payload.Fields {
		text += fmt.Sprintf("\n%s: %s", f.Name, f.Value)
	}

	body, _ := json.Marshal(map[string]string{
		"chat_id":    cfg.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	})

	apiURL := "https://api.telegram.org/bot" + url.PathEscape(cfg.BotToken) + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return xerrors.Wrap(err, "failed to build telegram request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return xerrors.Wrap(err, "telegram request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return xerrors.Newf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}
