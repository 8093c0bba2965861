package db

import (
	"context"
	"fmt"
	"time"

	"projector_reservation/errs"
	"projector_reservation/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (r *Repo) CreateReservation(ctx context.Context, res *models.Reservation) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	res.Requester, res.Projector = nil, nil
	return translate(r.DB.WithContext(ctx).Create(res).Error, "reservation")
}

func (r *Repo) FindReservationByID(ctx context.Context, id string) (*models.Reservation, error) {
	return findReservation(r.DB.WithContext(ctx), id)
}

func findReservation(tx *gorm.DB, id string) (*models.Reservation, error) {
	var res models.Reservation
	if err := tx.Preload("Requester").Preload("Projector").
		First(&res, "id = ?", id).Error; err != nil {
		return nil, translate(err, "reservation")
	}
	return &res, nil
}

// ReservationFilter narrows a listing. Zero values mean no restriction.
// From/To select reservations starting in [From, To).
type ReservationFilter struct {
	RequesterID string
	Status      models.ReservationStatus
	From        *time.Time
	To          *time.Time
}

func (r *Repo) ListReservations(ctx context.Context, f ReservationFilter) ([]models.Reservation, error) {
	q := r.DB.WithContext(ctx).
		Preload("Requester").
		Preload("Projector").
		Order("start_time DESC")
	if f.RequesterID != "" {
		q = q.Where("requester_id = ?", f.RequesterID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("start_time >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("start_time < ?", f.To.UTC())
	}
	var rs []models.Reservation
	if err := q.Find(&rs).Error; err != nil {
		return nil, translate(err, "reservations")
	}
	return rs, nil
}

type AttachDocumentInput struct {
	ReservationID string
	Ref           string
	ActorID       string // must be the requester
}

// AttachReservationDocument stores the document reference and writes a
// document notification for every admin, in one transaction.
func (r *Repo) AttachReservationDocument(ctx context.Context, in AttachDocumentInput) (*models.Reservation, []models.Notification, []models.User, error) {
	var (
		out    *models.Reservation
		notes  []models.Notification
		admins []models.User
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var res models.Reservation
		if err := lockForUpdate(tx).First(&res, "id = ?", in.ReservationID).Error; err != nil {
			return translate(err, "reservation")
		}
		if res.RequesterID != in.ActorID {
			return errs.Forbidden("reservation belongs to another user")
		}

		upd := tx.Model(&models.Reservation{}).
			Where("id = ?", res.ID).
			Update("document_ref", in.Ref)
		if upd.Error != nil {
			return translate(upd.Error, "reservation")
		}

		var err error
		if admins, err = usersWithRole(tx, models.RoleAdmin); err != nil {
			return err
		}
		for i := range admins {
			n, err := createNotification(tx, NewNotification{
				RecipientID:       admins[i].ID,
				SenderID:          &in.ActorID,
				Kind:              models.NotificationDocument,
				Message:           fmt.Sprintf("A document was attached to reservation %s.", res.ID),
				RelatedEntityID:   &res.ID,
				RelatedEntityType: "reservation",
			})
			if err != nil {
				return err
			}
			notes = append(notes, *n)
		}

		out, err = findReservation(tx, res.ID)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return out, notes, admins, nil
}

type ApproveInput struct {
	ReservationID string
	ProjectorID   string
	ActorID       string
}

// ApproveReservation assigns a projector to a pending reservation. The status
// change, the projector going into use, its log entry and the requester's
// notification commit together or not at all.
func (r *Repo) ApproveReservation(ctx context.Context, in ApproveInput) (*models.Reservation, *models.Notification, error) {
	var (
		out  *models.Reservation
		note *models.Notification
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var res models.Reservation
		if err := lockForUpdate(tx).First(&res, "id = ?", in.ReservationID).Error; err != nil {
			return translate(err, "reservation")
		}
		if res.Status != models.ReservationPending {
			return errs.ErrReservationNotPending
		}

		var p models.Projector
		if err := lockForUpdate(tx).First(&p, "id = ?", in.ProjectorID).Error; err != nil {
			return translate(err, "projector")
		}
		if p.Status == models.ProjectorInUse {
			return errs.ErrProjectorInUse
		}
		var held int64
		if err := tx.Model(&models.Reservation{}).
			Where("projector_id = ? AND status = ? AND returned_at IS NULL", p.ID, models.ReservationApproved).
			Count(&held).Error; err != nil {
			return translate(err, "reservation")
		}
		if held > 0 {
			return errs.ErrProjectorInUse
		}

		now := time.Now().UTC()
		upd := tx.Model(&models.Reservation{}).
			Where("id = ? AND status = ?", res.ID, models.ReservationPending).
			Updates(map[string]any{
				"status":       models.ReservationApproved,
				"projector_id": p.ID,
				"decided_by":   in.ActorID,
				"decided_at":   now,
			})
		if upd.Error != nil {
			if isUniqueViolation(upd.Error) {
				return errs.ErrProjectorInUse
			}
			return translate(upd.Error, "reservation")
		}
		if upd.RowsAffected == 0 {
			return errs.ErrReservationNotPending
		}

		pu := tx.Model(&models.Projector{}).
			Where("id = ? AND status = ?", p.ID, p.Status).
			Update("status", models.ProjectorInUse)
		if pu.Error != nil {
			return translate(pu.Error, "projector")
		}
		if pu.RowsAffected == 0 {
			return errs.ErrProjectorInUse
		}

		if err := writeProjectorLog(tx, p.ID, &res.ID, in.ActorID, p.Status, models.ProjectorInUse, "reservation approved"); err != nil {
			return err
		}

		n, err := createNotification(tx, NewNotification{
			RecipientID:       res.RequesterID,
			SenderID:          &in.ActorID,
			Kind:              models.NotificationAssignment,
			Message:           fmt.Sprintf("Your reservation for %s was approved. Projector %s is assigned to you.", res.StartTime.Format("2006-01-02 15:04"), p.Code),
			RelatedEntityID:   &res.ID,
			RelatedEntityType: "reservation",
		})
		if err != nil {
			return err
		}
		note = n

		out, err = findReservation(tx, res.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return out, note, nil
}

type RejectInput struct {
	ReservationID string
	ActorID       string
	Reason        string
}

// RejectReservation closes a pending reservation without touching any
// projector.
func (r *Repo) RejectReservation(ctx context.Context, in RejectInput) (*models.Reservation, *models.Notification, error) {
	var (
		out  *models.Reservation
		note *models.Notification
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var res models.Reservation
		if err := lockForUpdate(tx).First(&res, "id = ?", in.ReservationID).Error; err != nil {
			return translate(err, "reservation")
		}
		if res.Status != models.ReservationPending {
			return errs.ErrReservationNotPending
		}

		upd := tx.Model(&models.Reservation{}).
			Where("id = ? AND status = ?", res.ID, models.ReservationPending).
			Updates(map[string]any{
				"status":        models.ReservationRejected,
				"decided_by":    in.ActorID,
				"decided_at":    time.Now().UTC(),
				"decision_note": in.Reason,
			})
		if upd.Error != nil {
			return translate(upd.Error, "reservation")
		}
		if upd.RowsAffected == 0 {
			return errs.ErrReservationNotPending
		}

		msg := fmt.Sprintf("Your reservation for %s was rejected.", res.StartTime.Format("2006-01-02 15:04"))
		if in.Reason != "" {
			msg = fmt.Sprintf("%s Reason: %s", msg, in.Reason)
		}
		n, err := createNotification(tx, NewNotification{
			RecipientID:       res.RequesterID,
			SenderID:          &in.ActorID,
			Kind:              models.NotificationRequest,
			Message:           msg,
			RelatedEntityID:   &res.ID,
			RelatedEntityType: "reservation",
		})
		if err != nil {
			return err
		}
		note = n

		out, err = findReservation(tx, res.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return out, note, nil
}

type ReturnInput struct {
	ReservationID string
	ActorID       string
}

// ReturnReservation ends an active reservation and puts its projector back
// into storage.
func (r *Repo) ReturnReservation(ctx context.Context, in ReturnInput) (*models.Reservation, *models.Notification, error) {
	var (
		out  *models.Reservation
		note *models.Notification
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var res models.Reservation
		if err := lockForUpdate(tx).First(&res, "id = ?", in.ReservationID).Error; err != nil {
			return translate(err, "reservation")
		}
		if !res.Active() || res.ProjectorID == nil {
			return errs.ErrReservationNotActive
		}

		var p models.Projector
		if err := lockForUpdate(tx).First(&p, "id = ?", *res.ProjectorID).Error; err != nil {
			return translate(err, "projector")
		}

		now := time.Now().UTC()
		upd := tx.Model(&models.Reservation{}).
			Where("id = ? AND status = ? AND returned_at IS NULL", res.ID, models.ReservationApproved).
			Updates(map[string]any{
				"returned_at": now,
				"returned_by": in.ActorID,
			})
		if upd.Error != nil {
			return translate(upd.Error, "reservation")
		}
		if upd.RowsAffected == 0 {
			return errs.ErrReservationNotActive
		}

		pu := tx.Model(&models.Projector{}).
			Where("id = ? AND status = ?", p.ID, models.ProjectorInUse).
			Update("status", models.ProjectorReturned)
		if pu.Error != nil {
			return translate(pu.Error, "projector")
		}
		if pu.RowsAffected == 0 {
			return errs.InvalidState("projector %s is not in use", p.Code)
		}

		if err := writeProjectorLog(tx, p.ID, &res.ID, in.ActorID, models.ProjectorInUse, models.ProjectorReturned, "reservation returned"); err != nil {
			return err
		}

		n, err := createNotification(tx, NewNotification{
			RecipientID:       res.RequesterID,
			SenderID:          &in.ActorID,
			Kind:              models.NotificationSystem,
			Message:           fmt.Sprintf("Projector %s was returned. Thank you.", p.Code),
			RelatedEntityID:   &res.ID,
			RelatedEntityType: "reservation",
		})
		if err != nil {
			return err
		}
		note = n

		out, err = findReservation(tx, res.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return out, note, nil
}
