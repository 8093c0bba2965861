package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"projector_reservation/db"
	"projector_reservation/errs"
	"projector_reservation/log"
	"projector_reservation/models"

	"go.uber.org/zap"
)

const codeAttempts = 5

// Registry manages the projector inventory.
type Registry struct {
	repo *db.Repo
	gate *Gate
	now  func() time.Time
}

func NewRegistry(repo *db.Repo, gate *Gate) *Registry {
	return &Registry{repo: repo, gate: gate, now: time.Now}
}

// ProjectorCode formats PRY-<grade><group>-<last four digits of millis>.
func ProjectorCode(grade, group string, millis int64) string {
	digits := fmt.Sprintf("%04d", millis%10000)
	return fmt.Sprintf("PRY-%s%s-%s",
		strings.ToUpper(strings.TrimSpace(grade)),
		strings.ToUpper(strings.TrimSpace(group)),
		digits)
}

type CreateProjectorInput struct {
	Grade    string
	Group    string
	Shift    string
	Location string
	Notes    string
}

// Create adds a projector in storage. A colliding code is regenerated from
// the next millisecond, up to codeAttempts times.
func (r *Registry) Create(ctx context.Context, s Subject, in CreateProjectorInput) (*models.Projector, error) {
	if err := r.gate.Require(s, CapManageProjectors); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Grade) == "" || strings.TrimSpace(in.Group) == "" {
		return nil, errs.Validation("grade and group are required")
	}
	if !models.ValidShift(in.Shift) {
		return nil, errs.Validation("shift must be %s or %s", models.ShiftMorning, models.ShiftAfternoon)
	}

	millis := r.now().UnixMilli()
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code := ProjectorCode(in.Grade, in.Group, millis+int64(attempt))

		exists, err := r.repo.ProjectorCodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if exists {
			log.Logger.Debug("projector code taken", zap.String("code", code), zap.Int("attempt", attempt+1))
			continue
		}

		p := &models.Projector{
			Code:     code,
			Status:   models.ProjectorReturned,
			Location: strings.TrimSpace(in.Location),
			Notes:    strings.TrimSpace(in.Notes),
			Grade:    strings.TrimSpace(in.Grade),
			Group:    strings.ToUpper(strings.TrimSpace(in.Group)),
			Shift:    in.Shift,
		}
		err = r.repo.CreateProjector(ctx, p)
		if errors.Is(err, errs.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		log.Logger.Info("projector created", zap.String("projectorID", p.ID), zap.String("code", p.Code), zap.String("userID", s.UserID))
		return p, nil
	}
	return nil, errs.ErrProjectorCode
}

type ProjectorPatch struct {
	Location *string
	Notes    *string
	Status   *string
}

func (r *Registry) Update(ctx context.Context, s Subject, id string, patch ProjectorPatch) (*models.Projector, error) {
	if err := r.gate.Require(s, CapManageProjectors); err != nil {
		return nil, err
	}
	rp := db.ProjectorPatch{Location: patch.Location, Notes: patch.Notes}
	if patch.Status != nil {
		st := models.ProjectorStatus(*patch.Status)
		if !st.Valid() {
			return nil, errs.Validation("unknown projector status %q", *patch.Status)
		}
		rp.Status = &st
	}
	return r.repo.UpdateProjector(ctx, id, rp, s.UserID)
}

func (r *Registry) Delete(ctx context.Context, s Subject, id string) error {
	if err := r.gate.Require(s, CapManageProjectors); err != nil {
		return err
	}
	if err := r.repo.DeleteProjector(ctx, id); err != nil {
		return err
	}
	log.Logger.Info("projector deleted", zap.String("projectorID", id), zap.String("userID", s.UserID))
	return nil
}

// ListAvailable returns the projectors that can be assigned now.
func (r *Registry) ListAvailable(ctx context.Context) ([]models.Projector, error) {
	return r.repo.ListAvailableProjectors(ctx)
}

func (r *Registry) List(ctx context.Context, s Subject, q db.AdminProjectorsQuery) (*db.PagedAdminProjectors, error) {
	if err := r.gate.Require(s, CapManageProjectors); err != nil {
		return nil, err
	}
	if q.Status != "" && q.Status != "overdue" && !models.ProjectorStatus(q.Status).Valid() {
		return nil, errs.Validation("unknown projector status %q", q.Status)
	}
	return r.repo.ListProjectorsWithCurrentReservation(ctx, q, r.now().UTC())
}

func (r *Registry) History(ctx context.Context, s Subject, id string) ([]models.ProjectorLog, error) {
	if err := r.gate.Require(s, CapManageProjectors); err != nil {
		return nil, err
	}
	if _, err := r.repo.FindProjectorByID(ctx, id); err != nil {
		return nil, err
	}
	return r.repo.ListProjectorLogs(ctx, id)
}
