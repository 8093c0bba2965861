package controllers

import (
	"net/http"
	"strconv"

	"projector_reservation/app"
	"projector_reservation/models"
	"projector_reservation/services"

	"github.com/gin-gonic/gin"
)

type NotificationController struct{ *Srv }

func NewNotificationController(s *Srv) *NotificationController {
	return &NotificationController{Srv: s}
}

// GET /api/notifications?unread=true&limit=
func (nc *NotificationController) List(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	unread, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	items, err := nc.Outbox.List(c.Request.Context(), s, unread, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"notifications": items})
}

// GET /api/notifications/unread-count
func (nc *NotificationController) UnreadCount(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	n, err := nc.Outbox.CountUnread(c.Request.Context(), s)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"count": n})
}

// POST /api/notifications
func (nc *NotificationController) Send(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	var in struct {
		RecipientID       string  `json:"recipientId" binding:"required"`
		Kind              string  `json:"kind"`
		Message           string  `json:"message" binding:"required"`
		RelatedEntityID   *string `json:"relatedEntityId"`
		RelatedEntityType string  `json:"relatedEntityType"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	note, err := nc.Outbox.Send(c.Request.Context(), s, services.SendInput{
		RecipientID:       in.RecipientID,
		Kind:              models.NotificationKind(in.Kind),
		Message:           in.Message,
		RelatedEntityID:   in.RelatedEntityID,
		RelatedEntityType: in.RelatedEntityType,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

// POST /api/notifications/:id/read
func (nc *NotificationController) MarkRead(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	note, err := nc.Outbox.MarkRead(c.Request.Context(), s, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

// POST /api/notifications/read-all
func (nc *NotificationController) MarkAllRead(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	n, err := nc.Outbox.MarkAllRead(c.Request.Context(), s)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"updated": n})
}
