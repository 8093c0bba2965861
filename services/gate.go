package services

import (
	"projector_reservation/errs"
	"projector_reservation/models"
)

// Subject is the authenticated caller of a service operation.
type Subject struct {
	UserID string
	Email  string
	Roles  []models.Role
}

func SubjectFromUser(u *models.User) Subject {
	return Subject{UserID: u.ID, Email: u.Email, Roles: u.RoleSet()}
}

type Capability string

const (
	CapViewAllReservations Capability = "view-all-reservations"
	CapReviewReservations  Capability = "review-reservations"
	CapManageProjectors    Capability = "manage-projectors"
	CapViewUsers           Capability = "view-users"
	CapManageUsers         Capability = "manage-users"
	CapSendNotifications   Capability = "send-notifications"
)

var roleCapabilities = map[models.Role][]Capability{
	models.RoleAdmin: {
		CapViewAllReservations,
		CapReviewReservations,
		CapManageProjectors,
		CapViewUsers,
		CapManageUsers,
		CapSendNotifications,
	},
	models.RoleMember: nil,
}

// Gate decides capability checks from the subject's roles alone.
type Gate struct {
	grants map[models.Role]map[Capability]bool
}

func NewGate() *Gate {
	g := &Gate{grants: map[models.Role]map[Capability]bool{}}
	for role, caps := range roleCapabilities {
		set := map[Capability]bool{}
		for _, c := range caps {
			set[c] = true
		}
		g.grants[role] = set
	}
	return g
}

func (g *Gate) Allows(s Subject, c Capability) bool {
	for _, r := range s.Roles {
		if g.grants[r][c] {
			return true
		}
	}
	return false
}

// Require fails with errs.ErrForbidden when s lacks c.
func (g *Gate) Require(s Subject, c Capability) error {
	if g.Allows(s, c) {
		return nil
	}
	return errs.Forbidden("missing capability %s", c)
}

func (g *Gate) IsAdmin(s Subject) bool {
	for _, r := range s.Roles {
		if r == models.RoleAdmin {
			return true
		}
	}
	return false
}
