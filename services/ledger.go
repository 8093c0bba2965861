package services

import (
	"context"
	"strings"
	"time"

	"projector_reservation/db"
	"projector_reservation/errs"
	"projector_reservation/log"
	"projector_reservation/metrics"
	"projector_reservation/models"

	"go.uber.org/zap"
)

// Ledger owns the reservation state machine:
// pending -> approved | rejected, and approved -> returned.
type Ledger struct {
	repo     *db.Repo
	gate     *Gate
	notifier Notifier
}

func NewLedger(repo *db.Repo, gate *Gate, notifier Notifier) *Ledger {
	return &Ledger{repo: repo, gate: gate, notifier: orNop(notifier)}
}

type SubmitInput struct {
	Start           time.Time
	End             time.Time
	Reason          string
	Grade           string
	Group           string
	Shift           string
	ExternalEventID string
}

func (in SubmitInput) validate() error {
	if in.Start.IsZero() || in.End.IsZero() {
		return errs.Validation("start and end are required")
	}
	if !in.Start.Before(in.End) {
		return errs.Validation("start must be before end")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return errs.Validation("reason is required")
	}
	if strings.TrimSpace(in.Grade) == "" || strings.TrimSpace(in.Group) == "" || strings.TrimSpace(in.Shift) == "" {
		return errs.Validation("grade, group and shift are required")
	}
	if !models.ValidShift(in.Shift) {
		return errs.Validation("shift must be %s or %s", models.ShiftMorning, models.ShiftAfternoon)
	}
	return nil
}

// Submit records a new pending reservation for the subject.
func (l *Ledger) Submit(ctx context.Context, s Subject, in SubmitInput) (*models.Reservation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	res := &models.Reservation{
		RequesterID:     s.UserID,
		StartTime:       in.Start.UTC(),
		EndTime:         in.End.UTC(),
		Reason:          strings.TrimSpace(in.Reason),
		ExternalEventID: strings.TrimSpace(in.ExternalEventID),
		Status:          models.ReservationPending,
		Grade:           strings.TrimSpace(in.Grade),
		Group:           strings.ToUpper(strings.TrimSpace(in.Group)),
		Shift:           in.Shift,
	}
	if err := l.repo.CreateReservation(ctx, res); err != nil {
		return nil, err
	}
	metrics.ReservationsSubmitted.Inc()
	log.Logger.Info("reservation submitted", zap.String("reservationID", res.ID), zap.String("userID", s.UserID))
	return l.repo.FindReservationByID(ctx, res.ID)
}

// ListFilter selects reservations by status and start time. Week, when set,
// overrides From/To with the Monday-to-Monday UTC week containing it.
type ListFilter struct {
	Status models.ReservationStatus
	From   *time.Time
	To     *time.Time
	Week   *time.Time
}

// WeekBounds returns [Monday 00:00, next Monday 00:00) in UTC around t.
func WeekBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

func (f ListFilter) toRepo() (db.ReservationFilter, error) {
	out := db.ReservationFilter{Status: f.Status, From: f.From, To: f.To}
	if f.Status != "" && !f.Status.Valid() {
		return out, errs.Validation("unknown status %q", f.Status)
	}
	if f.Week != nil {
		from, to := WeekBounds(*f.Week)
		out.From, out.To = &from, &to
	}
	if out.From != nil && out.To != nil && !out.From.Before(*out.To) {
		return out, errs.Validation("from must be before to")
	}
	return out, nil
}

func (l *Ledger) ListAll(ctx context.Context, s Subject, f ListFilter) ([]models.Reservation, error) {
	if err := l.gate.Require(s, CapViewAllReservations); err != nil {
		return nil, err
	}
	rf, err := f.toRepo()
	if err != nil {
		return nil, err
	}
	return l.repo.ListReservations(ctx, rf)
}

func (l *Ledger) ListForRequester(ctx context.Context, s Subject, f ListFilter) ([]models.Reservation, error) {
	rf, err := f.toRepo()
	if err != nil {
		return nil, err
	}
	rf.RequesterID = s.UserID
	return l.repo.ListReservations(ctx, rf)
}

// Get returns a reservation to its requester or to reviewers.
func (l *Ledger) Get(ctx context.Context, s Subject, id string) (*models.Reservation, error) {
	res, err := l.repo.FindReservationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RequesterID != s.UserID && !l.gate.Allows(s, CapViewAllReservations) {
		return nil, errs.Forbidden("reservation belongs to another user")
	}
	return res, nil
}

func (l *Ledger) Approve(ctx context.Context, s Subject, reservationID, projectorID string) (*models.Reservation, error) {
	if err := l.gate.Require(s, CapReviewReservations); err != nil {
		return nil, err
	}
	if reservationID == "" || projectorID == "" {
		return nil, errs.Validation("reservation and projector are required")
	}

	res, note, err := l.repo.ApproveReservation(ctx, db.ApproveInput{
		ReservationID: reservationID,
		ProjectorID:   projectorID,
		ActorID:       s.UserID,
	})
	metrics.ReservationDecisions.WithLabelValues("approve", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	log.Logger.Info("reservation approved",
		zap.String("reservationID", res.ID),
		zap.String("projectorID", projectorID),
		zap.String("userID", s.UserID))
	deliver(l.notifier, note, res.Requester)
	return res, nil
}

func (l *Ledger) Reject(ctx context.Context, s Subject, reservationID, reason string) (*models.Reservation, error) {
	if err := l.gate.Require(s, CapReviewReservations); err != nil {
		return nil, err
	}

	res, note, err := l.repo.RejectReservation(ctx, db.RejectInput{
		ReservationID: reservationID,
		ActorID:       s.UserID,
		Reason:        strings.TrimSpace(reason),
	})
	metrics.ReservationDecisions.WithLabelValues("reject", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	log.Logger.Info("reservation rejected", zap.String("reservationID", res.ID), zap.String("userID", s.UserID))
	deliver(l.notifier, note, res.Requester)
	return res, nil
}

// Return ends an active reservation and frees its projector.
func (l *Ledger) Return(ctx context.Context, s Subject, reservationID string) (*models.Reservation, error) {
	if err := l.gate.Require(s, CapReviewReservations); err != nil {
		return nil, err
	}

	res, note, err := l.repo.ReturnReservation(ctx, db.ReturnInput{
		ReservationID: reservationID,
		ActorID:       s.UserID,
	})
	if err != nil {
		return nil, err
	}
	metrics.ProjectorReturns.Inc()

	log.Logger.Info("projector returned", zap.String("reservationID", res.ID), zap.String("userID", s.UserID))
	deliver(l.notifier, note, res.Requester)
	return res, nil
}

// AttachDocument stores a document reference on the subject's own
// reservation and tells the reviewers about it. The reference and the
// notifications commit together.
func (l *Ledger) AttachDocument(ctx context.Context, s Subject, reservationID, ref string) (*models.Reservation, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, errs.Validation("document reference is required")
	}
	res, notes, admins, err := l.repo.AttachReservationDocument(ctx, db.AttachDocumentInput{
		ReservationID: reservationID,
		Ref:           ref,
		ActorID:       s.UserID,
	})
	if err != nil {
		return nil, err
	}
	for i := range notes {
		deliver(l.notifier, &notes[i], &admins[i])
	}
	log.Logger.Info("reservation document attached", zap.String("reservationID", res.ID), zap.String("userID", s.UserID))
	return res, nil
}
