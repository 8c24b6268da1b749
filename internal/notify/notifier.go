package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notifier delivers an in-app notification to a user. Implementations are
// fire-and-forget collaborators: callers log failures and never propagate
// them into the primary operation.
type Notifier interface {
	NotifyUser(ctx context.Context, recipientID, message, link string) error
}

// Mailer sends the acceptance email that shares contact details between a
// request owner and an accepted donor. Same failure-isolation rule as Notifier.
type Mailer interface {
	SendAcceptanceEmail(ctx context.Context, to, subject, body string) error
}

// RedisNotifier publishes notifications to a per-user redis channel consumed
// by the real-time delivery layer.
type RedisNotifier struct {
	Client *redis.Client
}

// NewRedisNotifier creates a new RedisNotifier.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{Client: client}
}

type notification struct {
	RecipientID string    `json:"recipientId"`
	Message     string    `json:"message"`
	Link        string    `json:"link"`
	SentAt      time.Time `json:"sentAt"`
}

// NotifyUser publishes a JSON payload to the recipient's channel.
func (n *RedisNotifier) NotifyUser(ctx context.Context, recipientID, message, link string) error {
	payload, err := json.Marshal(notification{
		RecipientID: recipientID,
		Message:     message,
		Link:        link,
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return n.Client.Publish(ctx, "notify:"+recipientID, payload).Err()
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	Addr string
	From string
}

// NewSMTPMailer creates a new SMTPMailer.
func NewSMTPMailer(addr, from string) *SMTPMailer {
	return &SMTPMailer{Addr: addr, From: from}
}

// SendAcceptanceEmail sends a single plain-text message.
func (m *SMTPMailer) SendAcceptanceEmail(_ context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.From, to, subject, body)
	return smtp.SendMail(m.Addr, nil, m.From, []string{to}, []byte(msg))
}
