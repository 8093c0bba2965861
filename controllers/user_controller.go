package controllers

import (
	"net/http"
	"strconv"

	"projector_reservation/app"
	"projector_reservation/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UserController struct{ *Srv }

func NewUserController(s *Srv) *UserController { return &UserController{Srv: s} }

// PUT /api/users/me/profile {grade, group, shift}
func (uc *UserController) CompleteProfile(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	var in struct {
		Grade string `json:"grade" binding:"required"`
		Group string `json:"group" binding:"required"`
		Shift string `json:"shift" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	u, err := uc.Directory.CompleteProfile(c.Request.Context(), s, in.Grade, in.Group, in.Shift)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

// POST /api/users/me/document (multipart "file")
func (uc *UserController) UploadDocument(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, uc.Storage.MaxBytes()+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "file is required"})
		return
	}
	stored, err := uc.Storage.SaveFile(fh, "users/"+s.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	previous := ""
	if u := app.CurrentUser(c); u != nil {
		previous = u.DocumentRef
	}
	u, err := uc.Directory.AttachDocument(c.Request.Context(), s, stored.Ref)
	if err != nil {
		_ = uc.Storage.Delete(stored.Ref)
		respondError(c, err)
		return
	}
	if previous != "" && previous != stored.Ref {
		if err := uc.Storage.Delete(previous); err != nil {
			log.Logger.Warn("remove replaced document", zap.String("userID", s.UserID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, app.H{"user": u, "document": stored})
}

// GET /api/users?q=alice&page=1&size=20
func (uc *UserController) ListUsers(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	res, err := uc.Directory.List(c.Request.Context(), s, c.Query("q"), page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{
		"total": res.Total,
		"users": res.Users,
	})
}

// GET /api/users/:id
func (uc *UserController) GetUser(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid uuid"})
		return
	}
	user, err := uc.Directory.Get(c.Request.Context(), s, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": user})
}

// PUT /api/users/:id/admin {admin}
func (uc *UserController) SetAdmin(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	var in struct {
		Admin *bool `json:"admin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	u, err := uc.Directory.SetAdmin(c.Request.Context(), s, c.Param("id"), *in.Admin)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

// DELETE /api/users/:id/sessions signs the user out everywhere.
func (uc *UserController) RevokeSessions(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if _, err := uc.Directory.Get(c.Request.Context(), s, id); err != nil {
		respondError(c, err)
		return
	}
	if err := uc.AppSessions().RevokeAllForUser(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	log.Logger.Info("sessions revoked", zap.String("targetID", id), zap.String("userID", s.UserID))
	c.JSON(http.StatusOK, app.H{"ok": true})
}
