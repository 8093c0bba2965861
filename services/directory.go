package services

import (
	"context"
	"errors"
	"strings"

	"projector_reservation/db"
	"projector_reservation/errs"
	"projector_reservation/identity"
	"projector_reservation/log"
	"projector_reservation/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DirectoryConfig struct {
	AllowedDomains []string
	AdminEmails    []string
}

// Directory admits users by e-mail allowlist and keeps their profile and
// roles.
type Directory struct {
	repo        *db.Repo
	gate        *Gate
	domains     []string
	adminEmails map[string]bool
}

func NewDirectory(repo *db.Repo, gate *Gate, cfg DirectoryConfig) *Directory {
	d := &Directory{repo: repo, gate: gate, adminEmails: map[string]bool{}}
	for _, dom := range cfg.AllowedDomains {
		if dom = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(dom), "@")); dom != "" {
			d.domains = append(d.domains, dom)
		}
	}
	for _, e := range cfg.AdminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			d.adminEmails[e] = true
		}
	}
	return d
}

func (d *Directory) Allowed(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if d.adminEmails[email] {
		return true
	}
	for _, dom := range d.domains {
		if strings.HasSuffix(email, "@"+dom) {
			return true
		}
	}
	return false
}

type LoginMeta struct {
	IP        string
	UserAgent string
}

// SignIn finds or creates the user behind a verified identity. Configured
// admin addresses get the admin role on every sign-in.
func (d *Directory) SignIn(ctx context.Context, id *identity.Identity, meta LoginMeta) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return nil, errs.Validation("identity carries no email")
	}
	if !d.Allowed(email) {
		return nil, errs.ErrDomainNotAllowed
	}

	u, err := d.repo.FindUserByEmail(ctx, email)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		u, err = d.create(ctx, id, email)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if id.Name != "" && (id.Name != u.Name || id.Picture != u.PictureURL) {
			if err := d.repo.UpdateUserIdentity(ctx, u.ID, id.Name, id.Picture); err != nil {
				return nil, err
			}
		}
		if d.adminEmails[email] && !u.HasRole(models.RoleAdmin) {
			if err := d.repo.GrantRole(ctx, u.ID, models.RoleAdmin, nil); err != nil {
				return nil, err
			}
		}
	}

	if err := d.repo.TouchUserLogin(ctx, u.ID, meta.IP, meta.UserAgent); err != nil {
		log.Logger.Warn("recording login failed", zap.String("userID", u.ID), zap.Error(err))
	}
	return d.repo.FindUserByID(ctx, u.ID)
}

func (d *Directory) create(ctx context.Context, id *identity.Identity, email string) (*models.User, error) {
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = email
	}
	u := &models.User{
		ID:         uuid.NewString(),
		Email:      email,
		Name:       name,
		PictureURL: id.Picture,
	}
	roles := []models.Role{models.RoleMember}
	if d.adminEmails[email] {
		roles = append(roles, models.RoleAdmin)
	}
	err := d.repo.CreateUser(ctx, u, roles...)
	if errors.Is(err, errs.ErrConflict) {
		// Lost a race with a concurrent first sign-in.
		return d.repo.FindUserByEmail(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	log.Logger.Info("user created", zap.String("userID", u.ID), zap.String("email", email))
	return u, nil
}

func (d *Directory) CompleteProfile(ctx context.Context, s Subject, grade, group, shift string) (*models.User, error) {
	grade, group = strings.TrimSpace(grade), strings.ToUpper(strings.TrimSpace(group))
	if grade == "" || group == "" {
		return nil, errs.Validation("grade and group are required")
	}
	if !models.ValidShift(shift) {
		return nil, errs.Validation("shift must be %s or %s", models.ShiftMorning, models.ShiftAfternoon)
	}
	return d.repo.UpdateUserProfile(ctx, s.UserID, grade, group, shift)
}

// Get returns the subject's own record or, with view-users, anyone's.
func (d *Directory) Get(ctx context.Context, s Subject, id string) (*models.User, error) {
	if id != s.UserID {
		if err := d.gate.Require(s, CapViewUsers); err != nil {
			return nil, err
		}
	}
	return d.repo.FindUserByID(ctx, id)
}

func (d *Directory) List(ctx context.Context, s Subject, q string, page, size int) (db.ListUsersResult, error) {
	if err := d.gate.Require(s, CapViewUsers); err != nil {
		return db.ListUsersResult{}, err
	}
	return d.repo.ListUsers(ctx, q, page, size)
}

// SetAdmin grants or revokes the admin role. Nobody can revoke their own.
func (d *Directory) SetAdmin(ctx context.Context, s Subject, userID string, admin bool) (*models.User, error) {
	if err := d.gate.Require(s, CapManageUsers); err != nil {
		return nil, err
	}
	if userID == s.UserID && !admin {
		return nil, errs.ErrSelfDemotion
	}
	target, err := d.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if admin {
		err = d.repo.GrantRole(ctx, target.ID, models.RoleAdmin, &s.UserID)
	} else {
		err = d.repo.RevokeRole(ctx, target.ID, models.RoleAdmin)
	}
	if err != nil {
		return nil, err
	}
	log.Logger.Info("admin role changed",
		zap.String("targetID", target.ID),
		zap.Bool("admin", admin),
		zap.String("userID", s.UserID))
	return d.repo.FindUserByID(ctx, target.ID)
}

func (d *Directory) AttachDocument(ctx context.Context, s Subject, ref string) (*models.User, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, errs.Validation("document reference is required")
	}
	if err := d.repo.SetUserDocument(ctx, s.UserID, ref); err != nil {
		return nil, err
	}
	return d.repo.FindUserByID(ctx, s.UserID)
}

// BootstrapAdmins grants the admin role to configured addresses that already
// have an account. The rest receive it on their first sign-in.
func (d *Directory) BootstrapAdmins(ctx context.Context) (int, error) {
	granted := 0
	for email := range d.adminEmails {
		u, err := d.repo.FindUserByEmail(ctx, email)
		if errors.Is(err, errs.ErrNotFound) {
			log.Logger.Info("admin will be seeded on first sign-in", zap.String("email", email))
			continue
		}
		if err != nil {
			return granted, err
		}
		if u.HasRole(models.RoleAdmin) {
			continue
		}
		if err := d.repo.GrantRole(ctx, u.ID, models.RoleAdmin, nil); err != nil {
			return granted, err
		}
		granted++
		log.Logger.Info("admin role bootstrapped", zap.String("userID", u.ID), zap.String("email", email))
	}
	return granted, nil
}
