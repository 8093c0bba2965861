package controllers

import (
	"context"
	"net/http"
	"time"

	"projector_reservation/app"
	"projector_reservation/models"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// Srv gives every controller access to the assembled App.
type Srv struct {
	*app.App
}

func GetSrv(a *app.App) *Srv { return &Srv{App: a} }

// --- helpers ---

func (s *Srv) setAppCookie(w http.ResponseWriter, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.Config.SecureCookies(),
		MaxAge:   int(maxAge / time.Second),
	})
}

func (s *Srv) clearAppCookie(w http.ResponseWriter) {
	s.setAppCookie(w, "", -time.Second)
}

// issueSession stores a Redis session, signs a token naming it and sets the
// cookie. The token is returned for clients that prefer a bearer header.
func (s *Srv) issueSession(ctx context.Context, w http.ResponseWriter, userID, method string) (string, time.Time, error) {
	id := uuid.NewString()
	if _, err := s.AppSessions().Create(ctx, id, userID, method); err != nil {
		return "", time.Time{}, err
	}
	token, exp, err := s.Tokens().Sign(id, userID)
	if err != nil {
		_ = s.AppSessions().Delete(ctx, id)
		return "", time.Time{}, err
	}
	s.setAppCookie(w, token, time.Until(exp))
	return token, exp, nil
}

// WebAuthn: DB user -> waUser
type waUser struct {
	user  models.User
	creds []webauthn.Credential
}

func (u *waUser) WebAuthnID() []byte                         { id, _ := uuid.Parse(u.user.ID); return id[:] }
func (u *waUser) WebAuthnName() string                       { return u.user.Email }
func (u *waUser) WebAuthnDisplayName() string                { return u.user.Name }
func (u *waUser) WebAuthnIcon() string                       { return u.user.PictureURL }
func (u *waUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func toWaCred(c models.Credential) webauthn.Credential {
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.AAGUID,
			SignCount:    c.SignCount,
			CloneWarning: c.CloneWarning,
		},
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
	}
}

func (s *Srv) waUserFrom(ctx context.Context, u *models.User) (*waUser, error) {
	cs, err := s.Repo.LoadUserCredentials(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	ws := make([]webauthn.Credential, 0, len(cs))
	for _, c := range cs {
		ws = append(ws, toWaCred(c))
	}
	return &waUser{user: *u, creds: ws}, nil
}

func (s *Srv) loadWAUserByID(ctx context.Context, id string) (*waUser, error) {
	u, err := s.Repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.waUserFrom(ctx, u)
}

func (s *Srv) loadWAUserByEmail(ctx context.Context, email string) (*waUser, error) {
	u, err := s.Repo.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.waUserFrom(ctx, u)
}
