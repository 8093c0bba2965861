package models

import "time"

const ReservationTable = "reservations"

type ReservationStatus string

const (
	ReservationPending  ReservationStatus = "pending"
	ReservationApproved ReservationStatus = "approved"
	ReservationRejected ReservationStatus = "rejected"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationApproved, ReservationRejected:
		return true
	}
	return false
}

// Reservation is a request for projector time. Grade, group and shift are a
// snapshot of the requester's profile at submission.
type Reservation struct {
	ID              string            `gorm:"type:uuid;primaryKey" json:"id"`
	RequesterID     string            `gorm:"type:uuid;index;not null" json:"requesterId"`
	ProjectorID     *string           `gorm:"type:uuid;index" json:"projectorId,omitempty"`
	StartTime       time.Time         `gorm:"index;not null" json:"startTime"`
	EndTime         time.Time         `gorm:"not null" json:"endTime"`
	Reason          string            `gorm:"type:text;not null" json:"reason"`
	ExternalEventID string            `gorm:"size:255" json:"externalEventId,omitempty"`
	Status          ReservationStatus `gorm:"size:20;index;not null;default:'pending'" json:"status"`

	Grade string `gorm:"size:16;not null" json:"grade"`
	Group string `gorm:"column:class_group;size:16;not null" json:"group"`
	Shift string `gorm:"size:16;not null" json:"shift"`

	DocumentRef  string     `gorm:"size:512" json:"documentRef,omitempty"`
	DecidedBy    *string    `gorm:"type:uuid" json:"decidedBy,omitempty"`
	DecidedAt    *time.Time `json:"decidedAt,omitempty"`
	DecisionNote string     `gorm:"size:255" json:"decisionNote,omitempty"`
	ReturnedAt   *time.Time `gorm:"index" json:"returnedAt,omitempty"`
	ReturnedBy   *string    `gorm:"type:uuid" json:"returnedBy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Requester *User      `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Projector *Projector `gorm:"foreignKey:ProjectorID" json:"projector,omitempty"`
}

func (Reservation) TableName() string { return ReservationTable }

// Active reports whether the reservation holds its projector.
func (r *Reservation) Active() bool {
	return r.Status == ReservationApproved && r.ReturnedAt == nil
}
