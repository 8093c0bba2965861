package controllers

import (
	"context"
	"net/http"
	"time"

	"projector_reservation/app"
	"projector_reservation/log"
	"projector_reservation/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthController struct{ *Srv }

func NewAuthController(s *Srv) *AuthController { return &AuthController{Srv: s} }

// POST /auth/google {credential}
func (ac *AuthController) GoogleSignIn(c *gin.Context) {
	var in struct {
		Credential string `json:"credential" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	id, err := ac.Verifier.Verify(ctx, in.Credential)
	if err != nil {
		respondError(c, err)
		return
	}
	u, err := ac.Directory.SignIn(ctx, id, services.LoginMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()})
	if err != nil {
		log.Logger.Info("google sign-in refused", zap.String("email", id.Email), zap.Error(err))
		respondError(c, err)
		return
	}
	token, exp, err := ac.issueSession(ctx, c.Writer, u.ID, "google")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{
		"token":           token,
		"expiresAt":       exp,
		"user":            u,
		"profileComplete": u.ProfileComplete(),
	})
}

// POST /auth/logout
func (ac *AuthController) Logout(c *gin.Context) {
	if sid := app.CurrentSessionID(c); sid != "" {
		_ = ac.AppSessions().Delete(c.Request.Context(), sid)
	}
	ac.clearAppCookie(c.Writer)
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// POST /auth/logout-all ends every session of the caller.
func (ac *AuthController) LogoutAll(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	if err := ac.AppSessions().RevokeAllForUser(c.Request.Context(), s.UserID); err != nil {
		respondError(c, err)
		return
	}
	ac.clearAppCookie(c.Writer)
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /auth/whoami
func (ac *AuthController) WhoAmI(c *gin.Context) {
	u := app.CurrentUser(c)
	if u == nil {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	credCount, _ := ac.Repo.CountCredentials(c.Request.Context(), u.ID)
	c.JSON(http.StatusOK, app.H{
		"user":            u,
		"isAdmin":         ac.Gate.IsAdmin(services.SubjectFromUser(u)),
		"profileComplete": u.ProfileComplete(),
		"passkeys":        credCount,
	})
}
