package controllers

import (
	"context"
	"net/http"
	"time"

	"projector_reservation/app"
	"projector_reservation/log"
	"projector_reservation/models"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Passkeys are added by a signed-in user and later used to sign in without
// Google. There is no passkey-first registration.

// ===== add credential (signed in) =====

func (s *Srv) BeginAddCredential(c *gin.Context) {
	sub, ok := mustSubject(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	wUser, err := s.loadWAUserByID(ctx, sub.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	exclude := make([]protocol.CredentialDescriptor, 0, len(wUser.creds))
	for _, cr := range wUser.creds {
		exclude = append(exclude, cr.Descriptor())
	}
	opts, sd, err := s.WA.BeginRegistration(
		wUser,
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			UserVerification: protocol.VerificationRequired,
		}),
		webauthn.WithExclusions(exclude),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := s.Ceremonies().SaveReg(ctx, sub.UserID, sd); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"opts": opts})
}

func (s *Srv) FinishAddCredential(c *gin.Context) {
	sub, ok := mustSubject(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	wUser, err := s.loadWAUserByID(ctx, sub.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	sd, err := s.Ceremonies().LoadReg(ctx, sub.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "session expired or invalid"})
		return
	}

	cred, err := s.WA.FinishRegistration(wUser, *sd, c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	if err := s.Repo.AddCredential(ctx, &models.Credential{
		UserID:          sub.UserID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		CloneWarning:    cred.Authenticator.CloneWarning,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
	}); err != nil {
		respondError(c, err)
		return
	}
	s.Ceremonies().DelReg(ctx, sub.UserID)
	log.Logger.Info("passkey added", zap.String("userID", sub.UserID))
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// ===== sign in =====

type loginBeginReq struct {
	Email        string `json:"email"`
	Discoverable bool   `json:"discoverable"`
}
type loginBeginResp struct {
	Options   *protocol.CredentialAssertion `json:"options"`
	SessionID string                        `json:"sessionId"`
}

func (s *Srv) BeginLogin(c *gin.Context) {
	var req loginBeginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	var (
		opts *protocol.CredentialAssertion
		sd   *webauthn.SessionData
		err  error
	)
	if req.Discoverable || req.Email == "" {
		opts, sd, err = s.WA.BeginDiscoverableLogin(webauthn.WithUserVerification(protocol.VerificationRequired))
	} else {
		wUser, err2 := s.loadWAUserByEmail(ctx, req.Email)
		if err2 != nil {
			respondError(c, err2)
			return
		}
		opts, sd, err = s.WA.BeginLogin(wUser, webauthn.WithUserVerification(protocol.VerificationRequired))
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	sid := uuid.NewString()
	if err := s.Ceremonies().SaveAuth(ctx, sid, sd); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginBeginResp{Options: opts, SessionID: sid})
}

// FinishLogin expects ?sessionId= and, for non-discoverable logins, ?email=.
func (s *Srv) FinishLogin(c *gin.Context) {
	sid := c.Query("sessionId")
	if sid == "" {
		c.JSON(http.StatusBadRequest, app.H{"error": "missing sessionId"})
		return
	}
	ip, ua := c.ClientIP(), c.Request.UserAgent()

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	sd, err := s.Ceremonies().LoadAuth(ctx, sid)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "session expired or invalid"})
		return
	}
	s.Ceremonies().DelAuth(ctx, sid)

	var (
		user *models.User
		cred *webauthn.Credential
	)
	if email := c.Query("email"); email != "" {
		wUser, err := s.loadWAUserByEmail(ctx, email)
		if err != nil {
			respondError(c, err)
			return
		}
		cred, err = s.WA.FinishLogin(wUser, *sd, c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, app.H{"error": err.Error()})
			return
		}
		user = &wUser.user
	} else {
		handler := func(rawID, _ []byte) (webauthn.User, error) {
			u, _, err := s.Repo.FindUserByCredentialID(ctx, rawID)
			if err != nil {
				return nil, protocol.ErrBadRequest.WithDetails("credential not found")
			}
			return s.waUserFrom(ctx, u)
		}
		waU, c2, err := s.WA.FinishPasskeyLogin(handler, *sd, c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, app.H{"error": err.Error()})
			return
		}
		user, cred = &waU.(*waUser).user, c2
	}
	if !s.Directory.Allowed(user.Email) {
		c.JSON(http.StatusForbidden, app.H{"error": "email domain not allowed"})
		return
	}
	s.recordCredentialUse(ctx, user.ID, cred)
	if err := s.Repo.TouchUserLogin(ctx, user.ID, ip, ua); err != nil {
		log.Logger.Warn("touch login", zap.String("userID", user.ID), zap.Error(err))
	}
	token, exp, err := s.issueSession(ctx, c.Writer, user.ID, "passkey")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true, "token": token, "expiresAt": exp, "user": user})
}

// recordCredentialUse stores the authenticator's sign counter and last use.
// Failures are logged; the login itself already succeeded.
func (s *Srv) recordCredentialUse(ctx context.Context, userID string, cred *webauthn.Credential) {
	if err := s.Repo.UpdateCredentialCounter(ctx, cred.ID, cred.Authenticator.SignCount, cred.Authenticator.CloneWarning); err != nil {
		log.Logger.Warn("update credential counter", zap.String("userID", userID), zap.Error(err))
	}
	if err := s.Repo.TouchCredentialUsed(ctx, cred.ID); err != nil {
		log.Logger.Warn("touch credential", zap.String("userID", userID), zap.Error(err))
	}
}
