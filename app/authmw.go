package app

import (
	"net/http"
	"strings"

	"projector_reservation/db"
	"projector_reservation/log"
	"projector_reservation/models"
	"projector_reservation/services"
	"projector_reservation/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	AppSessionCookie = "app_session"

	subjectKey = "subject"
	sessionKey = "sessionID"
	userKey    = "user"
)

// BearerToken returns the session token from the Authorization header or,
// failing that, the session cookie.
func BearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if ck, err := c.Request.Cookie(AppSessionCookie); err == nil {
		return ck.Value
	}
	return ""
}

// AuthRequired resolves token -> Redis session -> user and stores the
// resulting Subject on the context.
func AuthRequired(signer *session.TokenSigner, appSess *session.AppSessionStore, repo *db.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		claims, err := signer.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": err.Error()})
			return
		}
		as, err := appSess.Get(c.Request.Context(), claims.SessionID)
		if err != nil || as.UserID != claims.Subject {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
			return
		}

		u, err := repo.FindUserByID(c.Request.Context(), as.UserID)
		if err != nil {
			log.Logger.Info("session for missing user revoked", zap.String("userID", as.UserID))
			_ = appSess.Delete(c.Request.Context(), claims.SessionID)
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}

		c.Set(sessionKey, claims.SessionID)
		c.Set(userKey, u)
		c.Set(subjectKey, services.SubjectFromUser(u))
		c.Next()
	}
}

// RequireCapability rejects subjects the gate does not grant c.
func RequireCapability(gate *services.Gate, capability services.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := CurrentSubject(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		if !gate.Allows(s, capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func CurrentSubject(c *gin.Context) (services.Subject, bool) {
	v, ok := c.Get(subjectKey)
	if !ok {
		return services.Subject{}, false
	}
	s, ok := v.(services.Subject)
	return s, ok && s.UserID != ""
}

func CurrentUser(c *gin.Context) *models.User {
	v, _ := c.Get(userKey)
	u, _ := v.(*models.User)
	return u
}

func CurrentSessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}
