package notify

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
)

var subjects = map[string]string{
	"assignment": "Projector assigned",
	"request":    "Reservation update",
	"document":   "Document update",
	"system":     "Projector reservations",
}

// MailgunSink e-mails the notification text to the recipient.
type MailgunSink struct {
	mg   mailgun.Mailgun
	from string
}

func NewMailgunSink(domain, apiKey, from string) *MailgunSink {
	if from == "" {
		from = fmt.Sprintf("Projector Reservations <no-reply@%s>", domain)
	}
	return &MailgunSink{mg: mailgun.NewMailgun(domain, apiKey), from: from}
}

func (s *MailgunSink) Name() string { return "mailgun" }

func (s *MailgunSink) Deliver(ctx context.Context, d Delivery) error {
	if d.RecipientEmail == "" {
		return nil
	}
	subject, ok := subjects[string(d.Notification.Kind)]
	if !ok {
		subject = subjects["system"]
	}
	m := s.mg.NewMessage(s.from, subject, d.Notification.Message, d.RecipientEmail)
	if _, _, err := s.mg.Send(ctx, m); err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	return nil
}
