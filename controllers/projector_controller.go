package controllers

import (
	"net/http"
	"strconv"

	"projector_reservation/app"
	"projector_reservation/db"
	"projector_reservation/services"

	"github.com/gin-gonic/gin"
)

type ProjectorController struct{ *Srv }

func NewProjectorController(s *Srv) *ProjectorController { return &ProjectorController{Srv: s} }

// POST /api/projectors
func (pc *ProjectorController) Create(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	var in struct {
		Grade    string `json:"grade" binding:"required"`
		Group    string `json:"group" binding:"required"`
		Shift    string `json:"shift" binding:"required"`
		Location string `json:"location"`
		Notes    string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := pc.Registry.Create(c.Request.Context(), s, services.CreateProjectorInput{
		Grade:    in.Grade,
		Group:    in.Group,
		Shift:    in.Shift,
		Location: in.Location,
		Notes:    in.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GET /api/projectors?q=&status=&page=&size=
// Inventory with the current holder of each projector.
func (pc *ProjectorController) List(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	res, err := pc.Registry.List(c.Request.Context(), s, db.AdminProjectorsQuery{
		Q:      c.Query("q"),
		Status: c.Query("status"),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/projectors/available
func (pc *ProjectorController) ListAvailable(c *gin.Context) {
	items, err := pc.Registry.ListAvailable(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"projectors": items})
}

// PUT /api/projectors/:id
func (pc *ProjectorController) Update(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	var in struct {
		Location *string `json:"location"`
		Notes    *string `json:"notes"`
		Status   *string `json:"status"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := pc.Registry.Update(c.Request.Context(), s, c.Param("id"), services.ProjectorPatch{
		Location: in.Location,
		Notes:    in.Notes,
		Status:   in.Status,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DELETE /api/projectors/:id
func (pc *ProjectorController) Delete(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	if err := pc.Registry.Delete(c.Request.Context(), s, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /api/projectors/:id/history
func (pc *ProjectorController) History(c *gin.Context) {
	s, ok := mustSubject(c)
	if !ok {
		return
	}
	logs, err := pc.Registry.History(c.Request.Context(), s, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"history": logs})
}
