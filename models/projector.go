package models

import "time"

const ProjectorTable = "projectors"

type ProjectorStatus string

const (
	ProjectorInUse          ProjectorStatus = "in-use"
	ProjectorAwaitingPickup ProjectorStatus = "awaiting-pickup"
	ProjectorReturned       ProjectorStatus = "returned"
	ProjectorReserved       ProjectorStatus = "reserved"
)

func (s ProjectorStatus) Valid() bool {
	switch s {
	case ProjectorInUse, ProjectorAwaitingPickup, ProjectorReturned, ProjectorReserved:
		return true
	}
	return false
}

type Projector struct {
	ID       string          `gorm:"type:uuid;primaryKey" json:"id"`
	Code     string          `gorm:"size:40;uniqueIndex;not null" json:"code"`
	Status   ProjectorStatus `gorm:"size:20;index;not null;default:'returned'" json:"status"`
	Location string          `gorm:"size:200" json:"location"`
	Notes    string          `gorm:"type:text" json:"notes,omitempty"`

	Grade string `gorm:"size:16;not null" json:"grade"`
	Group string `gorm:"column:class_group;size:16;not null" json:"group"`
	Shift string `gorm:"size:16;not null" json:"shift"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Projector) TableName() string { return ProjectorTable }

// ProjectorLog is the audit trail of projector status changes.
type ProjectorLog struct {
	ID            string          `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectorID   string          `gorm:"type:uuid;index;not null" json:"projectorId"`
	ReservationID *string         `gorm:"type:uuid" json:"reservationId,omitempty"`
	ActorID       string          `gorm:"type:uuid;not null" json:"actorId"`
	FromStatus    ProjectorStatus `gorm:"size:20" json:"fromStatus"`
	ToStatus      ProjectorStatus `gorm:"size:20" json:"toStatus"`
	Reason        string          `gorm:"size:255" json:"reason,omitempty"`
	CreatedAt     time.Time       `gorm:"index" json:"createdAt"`
}

func (ProjectorLog) TableName() string { return "projector_logs" }
