package db

import (
	"context"
	"time"

	"projector_reservation/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NewNotification struct {
	RecipientID       string
	SenderID          *string
	Kind              models.NotificationKind
	Message           string
	RelatedEntityID   *string
	RelatedEntityType string
}

func createNotification(tx *gorm.DB, in NewNotification) (*models.Notification, error) {
	n := &models.Notification{
		ID:                uuid.NewString(),
		RecipientID:       in.RecipientID,
		SenderID:          in.SenderID,
		Kind:              in.Kind,
		Message:           in.Message,
		RelatedEntityID:   in.RelatedEntityID,
		RelatedEntityType: in.RelatedEntityType,
		CreatedAt:         time.Now().UTC(),
	}
	if err := tx.Create(n).Error; err != nil {
		return nil, translate(err, "notification")
	}
	return n, nil
}

func (r *Repo) CreateNotification(ctx context.Context, in NewNotification) (*models.Notification, error) {
	if _, err := r.FindUserByID(ctx, in.RecipientID); err != nil {
		return nil, err
	}
	return createNotification(r.DB.WithContext(ctx), in)
}

func (r *Repo) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := r.DB.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Limit(limit)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var ns []models.Notification
	if err := q.Find(&ns).Error; err != nil {
		return nil, translate(err, "notifications")
	}
	return ns, nil
}

func (r *Repo) CountUnreadNotifications(ctx context.Context, recipientID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&n).Error
	return n, translate(err, "notifications")
}

// MarkNotificationRead only sees the recipient's own notifications; anything
// else is reported as not found.
func (r *Repo) MarkNotificationRead(ctx context.Context, id, recipientID string) (*models.Notification, error) {
	var n models.Notification
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&n, "id = ? AND recipient_id = ?", id, recipientID).Error; err != nil {
			return translate(err, "notification")
		}
		if n.Read {
			return nil
		}
		now := time.Now().UTC()
		if err := tx.Model(&models.Notification{}).
			Where("id = ?", n.ID).
			Updates(map[string]any{"is_read": true, "read_at": now}).Error; err != nil {
			return translate(err, "notification")
		}
		n.Read, n.ReadAt = true, &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *Repo) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]any{"is_read": true, "read_at": time.Now().UTC()})
	return res.RowsAffected, translate(res.Error, "notifications")
}
