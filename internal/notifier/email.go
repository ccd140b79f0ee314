package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/supercheck/core/internal/repo"
	"github.com/supercheck/core/internal/xerrors"
)

type emailConfig struct {
	Host     string   `json:"host"`
	Port     string   `json:"port"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

// EmailTransport sends an alert as a plaintext SMTP message, grounded on
// the pack's iLLeniumStudios-cronjob-guardian email channel.
type EmailTransport struct {
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailTransport() *EmailTransport {
	return &EmailTransport{sendMail: smtp.SendMail}
}

func (e *EmailTransport) Send(ctx context.Context, payload Payload, provider repo.NotificationProvider) error {
	var cfg emailConfig
	if err := json.Unmarshal([]byte(provider.Config), &cfg); err != nil {
		return xerrors.Wrap(err, "invalid email provider config")
	}
	if cfg.Host == "" || len(cfg.To) == 0 {
		return xerrors.New("email provider config missing host or recipients")
	}
	if cfg.Port == "" {
		cfg.Port = "587"
	}

	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(payload.Severity)), payload.Title)
	var body strings.Builder
	body.WriteString(payload.Message)
	body.WriteString("\n\n")
	for _, f := range payload.Fields {
		fmt.Fprintf(&body, "%s: %s\n", f.Name, f.Value)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		cfg.From, strings.Join(cfg.To, ", "), subject, body.String())

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	addr := cfg.Host + ":" + cfg.Port
	if err := e.sendMail(addr, auth, cfg.From, cfg.To, []byte(msg)); err != nil {
		return xerrors.Wrap(err, "failed to send email alert")
	}
	return nil
}
