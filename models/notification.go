package models

import "time"

type NotificationKind string

const (
	NotificationRequest    NotificationKind = "request"
	NotificationDocument   NotificationKind = "document"
	NotificationSystem     NotificationKind = "system"
	NotificationAssignment NotificationKind = "assignment"
)

func (k NotificationKind) Valid() bool {
	switch k {
	case NotificationRequest, NotificationDocument, NotificationSystem, NotificationAssignment:
		return true
	}
	return false
}

type Notification struct {
	ID                string           `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID       string           `gorm:"type:uuid;index;not null" json:"recipientId"`
	SenderID          *string          `gorm:"type:uuid" json:"senderId,omitempty"`
	Kind              NotificationKind `gorm:"size:20;not null" json:"kind"`
	Message           string           `gorm:"type:text;not null" json:"message"`
	Read              bool             `gorm:"column:is_read;index;not null;default:false" json:"read"`
	ReadAt            *time.Time       `json:"readAt,omitempty"`
	RelatedEntityID   *string          `gorm:"type:uuid" json:"relatedEntityId,omitempty"`
	RelatedEntityType string           `gorm:"size:40" json:"relatedEntityType,omitempty"`
	CreatedAt         time.Time        `gorm:"index" json:"createdAt"`
}

func (Notification) TableName() string { return "notifications" }
