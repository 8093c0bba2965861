package db

import (
	"context"
	"strings"
	"time"

	"projector_reservation/errs"
	"projector_reservation/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (r *Repo) CreateProjector(ctx context.Context, p *models.Projector) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return translate(r.DB.WithContext(ctx).Create(p).Error, "projector code")
}

func (r *Repo) ProjectorCodeExists(ctx context.Context, code string) (bool, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.Projector{}).
		Where("code = ?", code).
		Count(&n).Error; err != nil {
		return false, translate(err, "projector")
	}
	return n > 0, nil
}

func (r *Repo) FindProjectorByID(ctx context.Context, id string) (*models.Projector, error) {
	var p models.Projector
	if err := r.DB.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err, "projector")
	}
	return &p, nil
}

// ListAvailableProjectors returns every projector that is not in use.
func (r *Repo) ListAvailableProjectors(ctx context.Context) ([]models.Projector, error) {
	var ps []models.Projector
	err := r.DB.WithContext(ctx).
		Where("status <> ?", models.ProjectorInUse).
		Order("code").
		Find(&ps).Error
	return ps, translate(err, "projectors")
}

type ProjectorPatch struct {
	Location *string
	Notes    *string
	Status   *models.ProjectorStatus
}

// UpdateProjector applies patch. Status changes are refused for projectors
// in use and never move a projector into use.
func (r *Repo) UpdateProjector(ctx context.Context, id string, patch ProjectorPatch, actorID string) (*models.Projector, error) {
	var p models.Projector
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&p, "id = ?", id).Error; err != nil {
			return translate(err, "projector")
		}

		upd := map[string]any{}
		if patch.Location != nil {
			upd["location"] = strings.TrimSpace(*patch.Location)
		}
		if patch.Notes != nil {
			upd["notes"] = strings.TrimSpace(*patch.Notes)
		}
		from := p.Status
		statusChanged := patch.Status != nil && *patch.Status != p.Status
		if statusChanged {
			if *patch.Status == models.ProjectorInUse {
				return errs.InvalidState("projectors go into use only through an approved reservation")
			}
			if p.Status == models.ProjectorInUse {
				return errs.InvalidState("projector %s is in use; return its reservation first", p.Code)
			}
			upd["status"] = *patch.Status
		}
		if len(upd) == 0 {
			return nil
		}

		res := tx.Model(&models.Projector{}).Where("id = ? AND status = ?", p.ID, from).Updates(upd)
		if res.Error != nil {
			return translate(res.Error, "projector")
		}
		if res.RowsAffected == 0 {
			return errs.Conflict("projector %s changed concurrently", p.Code)
		}

		if statusChanged {
			if err := writeProjectorLog(tx, p.ID, nil, actorID, from, *patch.Status, "manual update"); err != nil {
				return err
			}
		}
		return translate(tx.First(&p, "id = ?", p.ID).Error, "projector")
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) DeleteProjector(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Projector
		if err := lockForUpdate(tx).First(&p, "id = ?", id).Error; err != nil {
			return translate(err, "projector")
		}
		if p.Status == models.ProjectorInUse {
			return errs.InvalidState("projector %s is in use", p.Code)
		}
		return translate(tx.Delete(&models.Projector{}, "id = ?", id).Error, "projector")
	})
}

// AdminProjectorRow is one inventory row with its current holder, if any.
type AdminProjectorRow struct {
	models.Projector

	ReservationID *string    `json:"reservationId,omitempty"`
	HolderID      *string    `json:"holderId,omitempty"`
	HolderName    *string    `json:"holderName,omitempty"`
	HolderEmail   *string    `json:"holderEmail,omitempty"`
	StartTime     *time.Time `json:"startTime,omitempty"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	Overdue       bool       `json:"overdue"`
}

type AdminProjectorsQuery struct {
	Q      string // matches code or location
	Status string // "", or a projector status, or "overdue"
	Page   int
	Size   int
}

type PagedAdminProjectors struct {
	Total int64               `json:"total"`
	Items []AdminProjectorRow `json:"items"`
}

func (r *Repo) ListProjectorsWithCurrentReservation(ctx context.Context, q AdminProjectorsQuery, now time.Time) (*PagedAdminProjectors, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 20
	}
	offset := (q.Page - 1) * q.Size

	db := r.DB.WithContext(ctx)
	qry := db.Model(&models.Projector{})
	if s := strings.TrimSpace(q.Q); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		qry = qry.Where("LOWER(code) LIKE ? OR LOWER(location) LIKE ?", pat, pat)
	}
	switch q.Status {
	case "":
	case "overdue":
		overdue := db.Model(&models.Reservation{}).Select("projector_id").
			Where("status = ? AND returned_at IS NULL AND end_time < ?", models.ReservationApproved, now)
		qry = qry.Where("id IN (?)", overdue)
	default:
		qry = qry.Where("status = ?", q.Status)
	}

	var total int64
	if err := qry.Count(&total).Error; err != nil {
		return nil, translate(err, "projectors")
	}

	var ps []models.Projector
	if err := qry.Order("created_at DESC").Offset(offset).Limit(q.Size).Find(&ps).Error; err != nil {
		return nil, translate(err, "projectors")
	}

	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	active := map[string]models.Reservation{}
	if len(ids) > 0 {
		var rs []models.Reservation
		if err := db.Preload("Requester").
			Where("projector_id IN ? AND status = ? AND returned_at IS NULL", ids, models.ReservationApproved).
			Find(&rs).Error; err != nil {
			return nil, translate(err, "reservations")
		}
		for _, res := range rs {
			active[*res.ProjectorID] = res
		}
	}

	rows := make([]AdminProjectorRow, 0, len(ps))
	for _, p := range ps {
		row := AdminProjectorRow{Projector: p}
		if res, ok := active[p.ID]; ok {
			id, holder := res.ID, res.RequesterID
			start, end := res.StartTime, res.EndTime
			row.ReservationID = &id
			row.HolderID = &holder
			row.StartTime = &start
			row.EndTime = &end
			row.Overdue = end.Before(now)
			if res.Requester != nil {
				name, email := res.Requester.Name, res.Requester.Email
				row.HolderName = &name
				row.HolderEmail = &email
			}
		}
		rows = append(rows, row)
	}
	return &PagedAdminProjectors{Total: total, Items: rows}, nil
}

func (r *Repo) ListProjectorLogs(ctx context.Context, projectorID string) ([]models.ProjectorLog, error) {
	var logs []models.ProjectorLog
	err := r.DB.WithContext(ctx).
		Where("projector_id = ?", projectorID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, translate(err, "projector log")
}

func writeProjectorLog(tx *gorm.DB, projectorID string, reservationID *string, actorID string, from, to models.ProjectorStatus, reason string) error {
	entry := &models.ProjectorLog{
		ID:            uuid.NewString(),
		ProjectorID:   projectorID,
		ReservationID: reservationID,
		ActorID:       actorID,
		FromStatus:    from,
		ToStatus:      to,
		Reason:        reason,
	}
	return translate(tx.Create(entry).Error, "projector log")
}
