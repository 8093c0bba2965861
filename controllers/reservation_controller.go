package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"projector_reservation/app"
	"projector_reservation/errs"
	"projector_reservation/models"
	"projector_reservation/services"

	"github.com/gin-gonic/gin"
)

type ReservationController struct{ *Srv }

func NewReservationController(s *Srv) *ReservationController {
	return &ReservationController{Srv: s}
}

type submitReq struct {
	StartTime       time.Time `json:"startTime" binding:"required"`
	EndTime         time.Time `json:"endTime" binding:"required"`
	Reason          string    `json:"reason" binding:"required"`
	Grade           string    `json:"grade"`
	Group           string    `json:"group"`
	Shift           string    `json:"shift"`
	ExternalEventID string    `json:"externalEventId"`
}

// POST /api/reservations
// Grade, group and shift fall back to the caller's profile.
func (rc *ReservationController) Submit(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	var in submitReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if u := app.CurrentUser(c); u != nil {
		fill(&in.Grade, u.Grade)
		fill(&in.Group, u.Group)
		fill(&in.Shift, u.Shift)
	}

	res, err := rc.Ledger.Submit(c.Request.Context(), s, services.SubmitInput{
		Start:           in.StartTime,
		End:             in.EndTime,
		Reason:          in.Reason,
		Grade:           in.Grade,
		Group:           in.Group,
		Shift:           in.Shift,
		ExternalEventID: in.ExternalEventID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func fill(dst *string, profile *string) {
	if strings.TrimSpace(*dst) == "" && profile != nil {
		*dst = *profile
	}
}

// GET /api/reservations?scope=all|mine&week=&from=&to=&status=
func (rc *ReservationController) List(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	f := services.ListFilter{Status: models.ReservationStatus(c.Query("status"))}
	var err error
	if f.Week, err = queryTime(c, "week"); err != nil {
		respondError(c, err)
		return
	}
	if f.From, err = queryTime(c, "from"); err != nil {
		respondError(c, err)
		return
	}
	if f.To, err = queryTime(c, "to"); err != nil {
		respondError(c, err)
		return
	}

	var out []models.Reservation
	switch scope := c.DefaultQuery("scope", "mine"); scope {
	case "all":
		out, err = rc.Ledger.ListAll(c.Request.Context(), s, f)
	case "mine":
		out, err = rc.Ledger.ListForRequester(c.Request.Context(), s, f)
	default:
		err = errs.Validation("unknown scope %q", scope)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"reservations": out})
}

// queryTime accepts RFC 3339 timestamps or plain dates.
func queryTime(c *gin.Context, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, errs.Validation("%s must be a date or RFC 3339 timestamp", name)
}

// GET /api/reservations/:id
func (rc *ReservationController) Get(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	res, err := rc.Ledger.Get(c.Request.Context(), s, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/reservations/:id/approve {projectorId}
func (rc *ReservationController) Approve(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	var in struct {
		ProjectorID string `json:"projectorId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	res, err := rc.Ledger.Approve(c.Request.Context(), s, c.Param("id"), in.ProjectorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/reservations/:id/reject {reason}
func (rc *ReservationController) Reject(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	var in struct {
		Reason string `json:"reason"`
	}
	// the body is optional
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	res, err := rc.Ledger.Reject(c.Request.Context(), s, c.Param("id"), in.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/reservations/:id/return
func (rc *ReservationController) Return(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	res, err := rc.Ledger.Return(c.Request.Context(), s, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/reservations/:id/document (multipart "file")
func (rc *ReservationController) AttachDocument(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, rc.Storage.MaxBytes()+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, errs.Validation("file is required"))
		return
	}
	id := c.Param("id")
	stored, err := rc.Storage.SaveFile(fh, "reservations/"+id)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := rc.Ledger.AttachDocument(c.Request.Context(), s, id, stored.Ref)
	if err != nil {
		_ = rc.Storage.Delete(stored.Ref)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"reservation": res, "document": stored})
}
