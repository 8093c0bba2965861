package controllers

import (
	"errors"
	"net/http"

	"projector_reservation/app"
	"projector_reservation/errs"
	"projector_reservation/log"
	"projector_reservation/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusFor(err error) int {
	switch errs.Kind(err) {
	case errs.ErrValidation:
		return http.StatusBadRequest
	case errs.ErrNotFound:
		return http.StatusNotFound
	case errs.ErrForbidden:
		return http.StatusForbidden
	case errs.ErrInvalidState, errs.ErrConflict:
		return http.StatusConflict
	case errs.ErrUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// respondError writes err as JSON. Unclassified errors are logged and hidden.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		fields := []zap.Field{zap.String("path", c.FullPath()), zap.Error(err)}
		if s, ok := app.CurrentSubject(c); ok {
			fields = append(fields, zap.String("userID", s.UserID))
		}
		log.Logger.Error("request failed", fields...)
		c.JSON(status, app.H{"error": "internal server error"})
		return
	}
	body := app.H{"error": err.Error()}
	var e *errs.Error
	if errors.As(err, &e) {
		body["code"] = e.Code
		body["error"] = e.Message
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
}

func mustSubject(c *gin.Context) (services.Subject, bool) {
	s, ok := app.CurrentSubject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
	}
	return s, ok
}
