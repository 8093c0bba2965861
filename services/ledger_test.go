package services

import (
	"sync"
	"time"

	"projector_reservation/errs"
	"projector_reservation/models"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Ledger", func() {
	var (
		f     *fixture
		admin Subject
		user  Subject
	)

	BeforeEach(func() {
		f = newFixture()
		admin = f.admin()
		user = f.signIn("ana@unach.mx")
	})

	Describe("Submit", func() {
		Specify("happy path", func() {
			res := f.submit(user)
			Expect(res.Status).To(Equal(models.ReservationPending))
			Expect(res.RequesterID).To(Equal(user.UserID))
			Expect(res.ProjectorID).To(BeNil())
			Expect(res.Grade).To(Equal("5"))
			Expect(res.Group).To(Equal("A"))
			Expect(res.Shift).To(Equal(models.ShiftMorning))
			Expect(res.StartTime).To(BeTemporally("==", classStart))
		})

		Specify("sad path - start not before end", func() {
			_, err := f.ledger.Submit(f.ctx, user, SubmitInput{
				Start: classStart, End: classStart, Reason: "x",
				Grade: "5", Group: "A", Shift: models.ShiftMorning,
			})
			Expect(err).To(MatchError(errs.ErrValidation))

			_, err = f.ledger.Submit(f.ctx, user, SubmitInput{
				Start: classStart, End: classStart.Add(-time.Hour), Reason: "x",
				Grade: "5", Group: "A", Shift: models.ShiftMorning,
			})
			Expect(err).To(MatchError(errs.ErrValidation))

			mine, err := f.ledger.ListForRequester(f.ctx, user, ListFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(mine).To(BeEmpty())
		})

		Specify("sad path - missing fields", func() {
			base := SubmitInput{Start: classStart, End: classStart.Add(time.Hour), Reason: "x", Grade: "5", Group: "A", Shift: models.ShiftMorning}

			noReason := base
			noReason.Reason = "   "
			_, err := f.ledger.Submit(f.ctx, user, noReason)
			Expect(err).To(MatchError(errs.ErrValidation))

			noGroup := base
			noGroup.Group = ""
			_, err = f.ledger.Submit(f.ctx, user, noGroup)
			Expect(err).To(MatchError(errs.ErrValidation))

			badShift := base
			badShift.Shift = "Nocturno"
			_, err = f.ledger.Submit(f.ctx, user, badShift)
			Expect(err).To(MatchError(errs.ErrValidation))
		})

		Specify("admins may request a projector too", func() {
			res := f.submit(admin)
			Expect(res.Status).To(Equal(models.ReservationPending))
			Expect(res.RequesterID).To(Equal(admin.UserID))
		})
	})

	Describe("Approve", func() {
		Specify("happy path", func() {
			p := f.projector(admin)
			r := f.submit(user)

			res, err := f.ledger.Approve(f.ctx, admin, r.ID, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(models.ReservationApproved))
			Expect(res.ProjectorID).NotTo(BeNil())
			Expect(*res.ProjectorID).To(Equal(p.ID))
			Expect(res.DecidedBy).NotTo(BeNil())
			Expect(f.projectorStatus(p.ID)).To(Equal(models.ProjectorInUse))

			notes := f.notificationsFor(user)
			Expect(notes).To(HaveLen(1))
			Expect(notes[0].Kind).To(Equal(models.NotificationAssignment))
			Expect(notes[0].Message).To(ContainSubstring(p.Code))

			delivered := f.notifier.All()
			Expect(delivered).To(HaveLen(1))
			Expect(delivered[0].RecipientEmail).To(Equal("ana@unach.mx"))
		})

		Specify("sad path - already decided", func() {
			p := f.projector(admin)
			r := f.submit(user)
			_, err := f.ledger.Approve(f.ctx, admin, r.ID, p.ID)
			Expect(err).NotTo(HaveOccurred())

			other := f.projector(admin)
			_, err = f.ledger.Approve(f.ctx, admin, r.ID, other.ID)
			Expect(err).To(MatchError(errs.ErrInvalidState))

			_, err = f.ledger.Reject(f.ctx, admin, r.ID, "")
			Expect(err).To(MatchError(errs.ErrInvalidState))
			Expect(f.projectorStatus(other.ID)).To(Equal(models.ProjectorReturned))
		})

		Specify("sad path - projector already in use", func() {
			p := f.projector(admin)
			r1 := f.submit(user)
			r2 := f.submit(user)

			_, err := f.ledger.Approve(f.ctx, admin, r1.ID, p.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = f.ledger.Approve(f.ctx, admin, r2.ID, p.ID)
			Expect(err).To(MatchError(errs.ErrConflict))

			still, err := f.ledger.Get(f.ctx, admin, r2.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(still.Status).To(Equal(models.ReservationPending))
			Expect(f.notificationsFor(user)).To(HaveLen(1))
		})

		Specify("sad path - unknown ids", func() {
			p := f.projector(admin)
			r := f.submit(user)

			_, err := f.ledger.Approve(f.ctx, admin, "00000000-0000-0000-0000-000000000000", p.ID)
			Expect(err).To(MatchError(errs.ErrNotFound))

			_, err = f.ledger.Approve(f.ctx, admin, r.ID, "00000000-0000-0000-0000-000000000000")
			Expect(err).To(MatchError(errs.ErrNotFound))

			still, err := f.ledger.Get(f.ctx, user, r.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(still.Status).To(Equal(models.ReservationPending))
		})

		Specify("concurrent approvals of one reservation", func() {
			p1 := f.projector(admin)
			p2 := f.projector(admin)
			r := f.submit(user)
			second := f.signIn("admin2@unach.mx")
			_, err := f.directory.SetAdmin(f.ctx, admin, second.UserID, true)
			Expect(err).NotTo(HaveOccurred())
			second.Roles = append(second.Roles, models.RoleAdmin)

			var wg sync.WaitGroup
			results := make([]error, 2)
			for i, job := range []struct {
				who Subject
				pid string
			}{{admin, p1.ID}, {second, p2.ID}} {
				wg.Add(1)
				go func(i int, who Subject, pid string) {
					defer GinkgoRecover()
					defer wg.Done()
					_, results[i] = f.ledger.Approve(f.ctx, who, r.ID, pid)
				}(i, job.who, job.pid)
			}
			wg.Wait()

			successes, invalid := 0, 0
			for _, err := range results {
				switch {
				case err == nil:
					successes++
				case errs.Kind(err) == errs.ErrInvalidState:
					invalid++
				}
			}
			Expect(successes).To(Equal(1))
			Expect(invalid).To(Equal(1))

			statuses := []models.ProjectorStatus{f.projectorStatus(p1.ID), f.projectorStatus(p2.ID)}
			Expect(statuses).To(ConsistOf(models.ProjectorInUse, models.ProjectorReturned))
			Expect(f.notificationsFor(user)).To(HaveLen(1))
		})
	})

	Describe("Reject", func() {
		Specify("happy path", func() {
			p := f.projector(admin)
			r := f.submit(user)

			res, err := f.ledger.Reject(f.ctx, admin, r.ID, "no projectors left")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Status).To(Equal(models.ReservationRejected))
			Expect(res.ProjectorID).To(BeNil())
			Expect(f.projectorStatus(p.ID)).To(Equal(models.ProjectorReturned))

			notes := f.notificationsFor(user)
			Expect(notes).To(HaveLen(1))
			Expect(notes[0].Kind).To(Equal(models.NotificationRequest))
			Expect(notes[0].Message).To(ContainSubstring("no projectors left"))

			_, err = f.ledger.Approve(f.ctx, admin, r.ID, p.ID)
			Expect(err).To(MatchError(errs.ErrInvalidState))
		})

		Specify("sad path - projector write fails, nothing is kept", func() {
			p := f.projector(admin)
			r := f.submit(user)
			f.failUpdatesOf(models.ProjectorTable)

			_, err := f.ledger.Approve(f.ctx, admin, r.ID, p.ID)
			Expect(err).To(HaveOccurred())

			still, err := f.ledger.Get(f.ctx, admin, r.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(still.Status).To(Equal(models.ReservationPending))
			Expect(still.ProjectorID).To(BeNil())
			Expect(still.DecidedBy).To(BeNil())
			Expect(f.projectorStatus(p.ID)).To(Equal(models.ProjectorReturned))
			Expect(f.notificationsFor(user)).To(BeEmpty())
			Expect(f.notifier.All()).To(BeEmpty())
		})
	})

	Describe("Return", func() {
		Specify("happy path", func() {
			p := f.projector(admin)
			r := f.submit(user)
			_, err := f.ledger.Approve(f.ctx, admin, r.ID, p.ID)
			Expect(err).NotTo(HaveOccurred())

			res, err := f.ledger.Return(f.ctx, admin, r.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ReturnedAt).NotTo(BeNil())
			Expect(res.Status).To(Equal(models.ReservationApproved))
			Expect(f.projectorStatus(p.ID)).To(Equal(models.ProjectorReturned))

			available, err := f.registry.ListAvailable(f.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(availableIDs(available)).To(ContainElement(p.ID))

			notes := f.notificationsFor(user)
			Expect(notes).To(HaveLen(2))
			Expect(notes[0].Kind).To(Equal(models.NotificationSystem))

			_, err = f.ledger.Return(f.ctx, admin, r.ID)
			Expect(err).To(MatchError(errs.ErrInvalidState))

			// the projector can be assigned again
			next := f.submit(user)
			_, err = f.ledger.Approve(f.ctx, admin, next.ID, p.ID)
			Expect(err).NotTo(HaveOccurred())
		})

		Specify("sad path - pending reservation", func() {
			r := f.submit(user)
			_, err := f.ledger.Return(f.ctx, admin, r.ID)
			Expect(err).To(MatchError(errs.ErrInvalidState))
		})

		Specify("sad path - projector write fails, nothing is kept", func() {
			p := f.projector(admin)
			r := f.submit(user)
			_, err := f.ledger.Approve(f.ctx, admin, r.ID, p.ID)
			Expect(err).NotTo(HaveOccurred())
			f.failUpdatesOf(models.ProjectorTable)

			_, err = f.ledger.Return(f.ctx, admin, r.ID)
			Expect(err).To(HaveOccurred())

			still, err := f.ledger.Get(f.ctx, admin, r.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(still.ReturnedAt).To(BeNil())
			Expect(f.projectorStatus(p.ID)).To(Equal(models.ProjectorInUse))
			Expect(f.notificationsFor(user)).To(HaveLen(1))
			Expect(f.notifier.All()).To(HaveLen(1))
		})
	})

	Describe("Authorization", func() {
		Specify("members cannot use gated operations", func() {
			p := f.projector(admin)
			r := f.submit(user)

			_, err := f.ledger.Approve(f.ctx, user, r.ID, p.ID)
			Expect(err).To(MatchError(errs.ErrForbidden))
			_, err = f.ledger.Reject(f.ctx, user, r.ID, "")
			Expect(err).To(MatchError(errs.ErrForbidden))
			_, err = f.ledger.Return(f.ctx, user, r.ID)
			Expect(err).To(MatchError(errs.ErrForbidden))
			_, err = f.ledger.ListAll(f.ctx, user, ListFilter{})
			Expect(err).To(MatchError(errs.ErrForbidden))
			_, err = f.registry.Create(f.ctx, user, CreateProjectorInput{Grade: "1", Group: "B", Shift: models.ShiftMorning})
			Expect(err).To(MatchError(errs.ErrForbidden))
			Expect(f.registry.Delete(f.ctx, user, p.ID)).To(MatchError(errs.ErrForbidden))

			still, err := f.ledger.Get(f.ctx, user, r.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(still.Status).To(Equal(models.ReservationPending))
			Expect(f.projectorStatus(p.ID)).To(Equal(models.ProjectorReturned))
			available, err := f.registry.ListAvailable(f.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(available).To(HaveLen(1))
			Expect(f.notificationsFor(user)).To(BeEmpty())
		})

		Specify("reservations of other users are hidden from members", func() {
			r := f.submit(user)
			other := f.signIn("luis@unach.mx")

			_, err := f.ledger.Get(f.ctx, other, r.ID)
			Expect(err).To(MatchError(errs.ErrForbidden))

			_, err = f.ledger.Get(f.ctx, admin, r.ID)
			Expect(err).NotTo(HaveOccurred())

			mine, err := f.ledger.ListForRequester(f.ctx, other, ListFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(mine).To(BeEmpty())
		})
	})

	Describe("Listing", func() {
		Specify("week and status filters", func() {
			f.submit(user)
			_, err := f.ledger.Submit(f.ctx, user, SubmitInput{
				Start: classStart.AddDate(0, 0, 7), End: classStart.AddDate(0, 0, 7).Add(time.Hour),
				Reason: "Next week", Grade: "5", Group: "A", Shift: models.ShiftMorning,
			})
			Expect(err).NotTo(HaveOccurred())

			week := time.Date(2024, 10, 3, 15, 0, 0, 0, time.UTC)
			all, err := f.ledger.ListAll(f.ctx, admin, ListFilter{Week: &week})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].Reason).To(Equal("Class X"))
			Expect(all[0].Requester).NotTo(BeNil())
			Expect(all[0].Requester.Email).To(Equal("ana@unach.mx"))

			pending, err := f.ledger.ListForRequester(f.ctx, user, ListFilter{Status: models.ReservationPending})
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(2))

			_, err = f.ledger.ListForRequester(f.ctx, user, ListFilter{Status: "archived"})
			Expect(err).To(MatchError(errs.ErrValidation))
		})

		Specify("week bounds run Monday to Monday", func() {
			from, to := WeekBounds(time.Date(2024, 10, 6, 23, 0, 0, 0, time.UTC))
			Expect(from).To(Equal(time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)))
			Expect(to).To(Equal(time.Date(2024, 10, 7, 0, 0, 0, 0, time.UTC)))

			from, _ = WeekBounds(time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC))
			Expect(from).To(Equal(time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC)))
		})
	})

	Describe("AttachDocument", func() {
		Specify("owner attaches, reviewers are told", func() {
			r := f.submit(user)

			res, err := f.ledger.AttachDocument(f.ctx, user, r.ID, "/uploads/reservations/doc.pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.DocumentRef).To(Equal("/uploads/reservations/doc.pdf"))

			notes := f.notificationsFor(admin)
			Expect(notes).To(HaveLen(1))
			Expect(notes[0].Kind).To(Equal(models.NotificationDocument))
		})

		Specify("sad path - not the owner", func() {
			r := f.submit(user)
			_, err := f.ledger.AttachDocument(f.ctx, admin, r.ID, "/uploads/x.pdf")
			Expect(err).To(MatchError(errs.ErrForbidden))
		})

		Specify("sad path - notification write fails, ref is not kept", func() {
			r := f.submit(user)
			f.failCreatesOf("notifications")

			_, err := f.ledger.AttachDocument(f.ctx, user, r.ID, "/uploads/reservations/doc.pdf")
			Expect(err).To(HaveOccurred())

			still, err := f.ledger.Get(f.ctx, user, r.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(still.DocumentRef).To(BeEmpty())
			Expect(f.notificationsFor(admin)).To(BeEmpty())
			Expect(f.notifier.All()).To(BeEmpty())
		})
	})
})
