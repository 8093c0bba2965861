package services

import (
	"time"

	"projector_reservation/db"
	"projector_reservation/errs"
	"projector_reservation/models"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry", func() {
	var (
		f     *fixture
		admin Subject
		user  Subject
	)

	BeforeEach(func() {
		f = newFixture()
		admin = f.admin()
		user = f.signIn("ana@unach.mx")
		f.registry.now = func() time.Time { return time.UnixMilli(1727900003456) }
	})

	Describe("Create", func() {
		Specify("happy path", func() {
			p, err := f.registry.Create(f.ctx, admin, CreateProjectorInput{Grade: "5", Group: "a", Shift: models.ShiftAfternoon, Location: " Room 12 "})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Code).To(Equal("PRY-5A-3456"))
			Expect(p.Status).To(Equal(models.ProjectorReturned))
			Expect(p.Location).To(Equal("Room 12"))

			available, err := f.registry.ListAvailable(f.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(availableIDs(available)).To(ContainElement(p.ID))
		})

		Specify("code collision retries with the next millisecond", func() {
			Expect(f.repo.CreateProjector(f.ctx, &models.Projector{Code: "PRY-5A-3456", Status: models.ProjectorReturned, Grade: "5", Group: "A", Shift: models.ShiftMorning})).To(Succeed())

			p, err := f.registry.Create(f.ctx, admin, CreateProjectorInput{Grade: "5", Group: "A", Shift: models.ShiftMorning})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Code).To(Equal("PRY-5A-3457"))
		})

		Specify("sad path - every attempt collides", func() {
			for i := 0; i < codeAttempts; i++ {
				_, err := f.registry.Create(f.ctx, admin, CreateProjectorInput{Grade: "5", Group: "A", Shift: models.ShiftMorning})
				Expect(err).NotTo(HaveOccurred())
			}
			_, err := f.registry.Create(f.ctx, admin, CreateProjectorInput{Grade: "5", Group: "A", Shift: models.ShiftMorning})
			Expect(err).To(MatchError(errs.ErrConflict))
		})

		Specify("sad path - invalid input", func() {
			_, err := f.registry.Create(f.ctx, admin, CreateProjectorInput{Grade: "", Group: "A", Shift: models.ShiftMorning})
			Expect(err).To(MatchError(errs.ErrValidation))
			_, err = f.registry.Create(f.ctx, admin, CreateProjectorInput{Grade: "5", Group: "A", Shift: "Nocturno"})
			Expect(err).To(MatchError(errs.ErrValidation))
		})
	})

	Specify("ProjectorCode pads short suffixes", func() {
		Expect(ProjectorCode("3", "b", 1700000000042)).To(Equal("PRY-3B-0042"))
	})

	Describe("Update", func() {
		Specify("status changes are logged", func() {
			p := f.projector(admin)
			st := string(models.ProjectorAwaitingPickup)
			notes := "lamp flickers"

			up, err := f.registry.Update(f.ctx, admin, p.ID, ProjectorPatch{Status: &st, Notes: &notes})
			Expect(err).NotTo(HaveOccurred())
			Expect(up.Status).To(Equal(models.ProjectorAwaitingPickup))
			Expect(up.Notes).To(Equal("lamp flickers"))

			logs, err := f.registry.History(f.ctx, admin, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(logs).To(HaveLen(1))
			Expect(logs[0].FromStatus).To(Equal(models.ProjectorReturned))
			Expect(logs[0].ToStatus).To(Equal(models.ProjectorAwaitingPickup))
		})

		Specify("sad path - in-use is set only by approval", func() {
			p := f.projector(admin)
			st := string(models.ProjectorInUse)
			_, err := f.registry.Update(f.ctx, admin, p.ID, ProjectorPatch{Status: &st})
			Expect(err).To(MatchError(errs.ErrInvalidState))

			bogus := "lost"
			_, err = f.registry.Update(f.ctx, admin, p.ID, ProjectorPatch{Status: &bogus})
			Expect(err).To(MatchError(errs.ErrValidation))
		})

		Specify("sad path - projector in use", func() {
			p := f.projector(admin)
			r := f.submit(user)
			_, err := f.ledger.Approve(f.ctx, admin, r.ID, p.ID)
			Expect(err).NotTo(HaveOccurred())

			st := string(models.ProjectorReturned)
			_, err = f.registry.Update(f.ctx, admin, p.ID, ProjectorPatch{Status: &st})
			Expect(err).To(MatchError(errs.ErrInvalidState))
			Expect(f.projectorStatus(p.ID)).To(Equal(models.ProjectorInUse))

			loc := "Room 3"
			up, err := f.registry.Update(f.ctx, admin, p.ID, ProjectorPatch{Location: &loc})
			Expect(err).NotTo(HaveOccurred())
			Expect(up.Location).To(Equal("Room 3"))

			Expect(f.registry.Delete(f.ctx, admin, p.ID)).To(MatchError(errs.ErrInvalidState))
		})
	})

	Describe("Delete", func() {
		Specify("happy path", func() {
			p := f.projector(admin)
			Expect(f.registry.Delete(f.ctx, admin, p.ID)).To(Succeed())
			_, err := f.repo.FindProjectorByID(f.ctx, p.ID)
			Expect(err).To(MatchError(errs.ErrNotFound))
			Expect(f.registry.Delete(f.ctx, admin, p.ID)).To(MatchError(errs.ErrNotFound))
		})
	})

	Describe("Inventory", func() {
		Specify("rows carry the current holder", func() {
			p := f.projector(admin)
			free := f.projector(admin)
			r := f.submit(user)
			_, err := f.ledger.Approve(f.ctx, admin, r.ID, p.ID)
			Expect(err).NotTo(HaveOccurred())

			page, err := f.registry.List(f.ctx, admin, db.AdminProjectorsQuery{})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(int64(2)))

			byID := map[string]db.AdminProjectorRow{}
			for _, row := range page.Items {
				byID[row.ID] = row
			}
			Expect(byID[p.ID].HolderEmail).NotTo(BeNil())
			Expect(*byID[p.ID].HolderEmail).To(Equal("ana@unach.mx"))
			Expect(byID[p.ID].Overdue).To(BeTrue())
			Expect(byID[free.ID].ReservationID).To(BeNil())

			inUse, err := f.registry.List(f.ctx, admin, db.AdminProjectorsQuery{Status: string(models.ProjectorInUse)})
			Expect(err).NotTo(HaveOccurred())
			Expect(inUse.Items).To(HaveLen(1))
			Expect(inUse.Items[0].ID).To(Equal(p.ID))

			history, err := f.registry.History(f.ctx, admin, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(1))
			Expect(history[0].ReservationID).NotTo(BeNil())

			_, err = f.registry.List(f.ctx, user, db.AdminProjectorsQuery{})
			Expect(err).To(MatchError(errs.ErrForbidden))
		})
	})
})
