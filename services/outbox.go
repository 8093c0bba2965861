package services

import (
	"context"
	"strings"

	"projector_reservation/db"
	"projector_reservation/errs"
	"projector_reservation/models"
)

// Outbox is the per-user notification log.
type Outbox struct {
	repo     *db.Repo
	gate     *Gate
	notifier Notifier
}

func NewOutbox(repo *db.Repo, gate *Gate, notifier Notifier) *Outbox {
	return &Outbox{repo: repo, gate: gate, notifier: orNop(notifier)}
}

type SendInput struct {
	RecipientID       string
	Kind              models.NotificationKind
	Message           string
	RelatedEntityID   *string
	RelatedEntityType string
}

func (o *Outbox) Send(ctx context.Context, s Subject, in SendInput) (*models.Notification, error) {
	if err := o.gate.Require(s, CapSendNotifications); err != nil {
		return nil, err
	}
	if in.RecipientID == "" {
		return nil, errs.Validation("recipient is required")
	}
	if in.Kind == "" {
		in.Kind = models.NotificationSystem
	}
	if !in.Kind.Valid() {
		return nil, errs.Validation("unknown notification kind %q", in.Kind)
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, errs.Validation("message is required")
	}

	recipient, err := o.repo.FindUserByID(ctx, in.RecipientID)
	if err != nil {
		return nil, err
	}
	note, err := o.repo.CreateNotification(ctx, db.NewNotification{
		RecipientID:       recipient.ID,
		SenderID:          &s.UserID,
		Kind:              in.Kind,
		Message:           strings.TrimSpace(in.Message),
		RelatedEntityID:   in.RelatedEntityID,
		RelatedEntityType: in.RelatedEntityType,
	})
	if err != nil {
		return nil, err
	}
	deliver(o.notifier, note, recipient)
	return note, nil
}

func (o *Outbox) ListUnread(ctx context.Context, s Subject) ([]models.Notification, error) {
	return o.repo.ListNotifications(ctx, s.UserID, true, 0)
}

func (o *Outbox) List(ctx context.Context, s Subject, unreadOnly bool, limit int) ([]models.Notification, error) {
	return o.repo.ListNotifications(ctx, s.UserID, unreadOnly, limit)
}

func (o *Outbox) CountUnread(ctx context.Context, s Subject) (int64, error) {
	return o.repo.CountUnreadNotifications(ctx, s.UserID)
}

// MarkRead fails with errs.ErrNotFound for ids that are unknown or belong to
// someone else.
func (o *Outbox) MarkRead(ctx context.Context, s Subject, id string) (*models.Notification, error) {
	if id == "" {
		return nil, errs.Validation("notification id is required")
	}
	return o.repo.MarkNotificationRead(ctx, id, s.UserID)
}

func (o *Outbox) MarkAllRead(ctx context.Context, s Subject) (int64, error) {
	return o.repo.MarkAllNotificationsRead(ctx, s.UserID)
}
