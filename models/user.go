package models

import (
	"time"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

const (
	ShiftMorning   = "Matutino"
	ShiftAfternoon = "Vespertino"
)

func ValidShift(s string) bool { return s == ShiftMorning || s == ShiftAfternoon }

// User doubles as the WebAuthn user; its UUID bytes are the userHandle.
type User struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Email string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name  string `gorm:"size:255;not null" json:"name"`

	Grade       *string `gorm:"size:16" json:"grade,omitempty"`
	Group       *string `gorm:"column:class_group;size:16" json:"group,omitempty"`
	Shift       *string `gorm:"size:16" json:"shift,omitempty"`
	PictureURL  string  `gorm:"size:512" json:"pictureUrl,omitempty"`
	DocumentRef string  `gorm:"size:512" json:"documentRef,omitempty"`

	Roles []UserRole `gorm:"foreignKey:UserID" json:"roles"`

	LastLoginAt *time.Time `gorm:"index" json:"lastLoginAt,omitempty"`
	LastSeenAt  *time.Time `gorm:"index" json:"lastSeenAt,omitempty"`
	LoginCount  int64      `gorm:"not null;default:0" json:"loginCount"`
	LastLoginIP string     `gorm:"size:45" json:"-"`
	LastLoginUA string     `gorm:"size:255" json:"-"`

	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Credentials []Credential `json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) HasRole(r Role) bool {
	for _, ur := range u.Roles {
		if ur.Role == r {
			return true
		}
	}
	return false
}

func (u *User) RoleSet() []Role {
	out := make([]Role, 0, len(u.Roles))
	for _, ur := range u.Roles {
		out = append(out, ur.Role)
	}
	return out
}

// ProfileComplete reports whether grade, group and shift are all set.
func (u *User) ProfileComplete() bool {
	return u.Grade != nil && *u.Grade != "" &&
		u.Group != nil && *u.Group != "" &&
		u.Shift != nil && *u.Shift != ""
}

type UserRole struct {
	UserID    string    `gorm:"primaryKey;type:uuid" json:"-"`
	Role      Role      `gorm:"primaryKey;size:32" json:"role"`
	GrantedBy *string   `gorm:"type:uuid" json:"grantedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (UserRole) TableName() string { return "user_roles" }

// Credential stores one registered passkey. CredentialID, PublicKey and
// AAGUID are raw bytes (bytea on Postgres).
type Credential struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          string    `gorm:"type:uuid;index" json:"userId"`
	CredentialID    []byte    `gorm:"uniqueIndex" json:"credentialId"`
	PublicKey       []byte    `json:"publicKey"`
	AttestationType string    `gorm:"size:64" json:"attestationType"`
	AAGUID          []byte    `gorm:"type:bytea" json:"aaguid"`
	SignCount       uint32    `json:"signCount"`
	CloneWarning    bool      `json:"cloneWarning"`
	BackupEligible  bool      `json:"backupEligible"`
	BackupState     bool      `json:"backupState"`
	TransportsJSON  string    `gorm:"type:text" json:"transportsJson"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	LastUsedAt *time.Time `gorm:"index" json:"lastUsedAt,omitempty"`
}

func (Credential) TableName() string { return "credentials" }
