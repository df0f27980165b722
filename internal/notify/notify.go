// Package notify tells the support team about newly submitted requests.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/xelth-com/eckdesk/internal/models"
)

// Notifier announces new requests
type Notifier interface {
	RequestCreated(ctx context.Context, r *models.Request) error
}

// Nop drops every notification
type Nop struct{}

// RequestCreated does nothing
func (Nop) RequestCreated(context.Context, *models.Request) error { return nil }

// sender is the part of the bot API used here
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts new requests to the technicians' chat
type Telegram struct {
	bot     sender
	chatID  int64
	baseURL string
}

// NewTelegram connects to the Bot API with token
func NewTelegram(token string, chatID int64, baseURL string) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram API: %w", err)
	}
	api.Debug = false
	log.Printf("✅ Telegram notifier ready (@%s)", api.Self.UserName)

	return &Telegram{bot: api, chatID: chatID, baseURL: baseURL}, nil
}

// RequestCreated sends the request summary to the configured chat
func (t *Telegram) RequestCreated(ctx context.Context, r *models.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatRequest(r, t.baseURL))
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send for request %s: %w", r.ID, err)
	}
	return nil
}

// FormatRequest renders the plain-text announcement of a request
func FormatRequest(r *models.Request, baseURL string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🆕 New request: %s\n", r.Title)
	fmt.Fprintf(&b, "From: %s", r.Requester)
	if r.RequesterEmail != "" {
		fmt.Fprintf(&b, " <%s>", r.RequesterEmail)
	}
	b.WriteString("\n")
	if r.Site != "" {
		fmt.Fprintf(&b, "Site: %s\n", r.Site)
	}
	fmt.Fprintf(&b, "Priority: %s\n", priorityWord(r.Priority))
	if n := len(r.Attachments); n > 0 {
		fmt.Fprintf(&b, "Attachments: %d\n", n)
	}
	b.WriteString("\n")
	b.WriteString(r.Description)
	if baseURL != "" {
		fmt.Fprintf(&b, "\n\n%s/requests/%s", strings.TrimRight(baseURL, "/"), r.ID)
	}
	return b.String()
}

func priorityWord(p string) string {
	level := models.PriorityLevel(p)
	if level == "" {
		return "-"
	}
	return strings.ToUpper(level[:1]) + level[1:]
}
