package notifier

import "github.com/supercheck/core/internal/repo"

// NewDefault builds a Notifier with every built-in transport registered
// under its corresponding repo.NotifierType.
func NewDefault() *Notifier {
	n := New()
	n.Register(repo.NotifierWebhook, NewWebhookTransport())
	n.Register(repo.NotifierSlack, NewSlackTransport())
	n.Register(repo.NotifierEmail, NewEmailTransport())
	n.Register(repo.NotifierTelegram, NewTelegramTransport())
	n.Register(repo.NotifierDiscord, NewDiscordTransport())
	return n
}
