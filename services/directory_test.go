package services

import (
	"projector_reservation/errs"
	"projector_reservation/identity"
	"projector_reservation/models"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Directory", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	Describe("SignIn", func() {
		Specify("school addresses become members", func() {
			u, err := f.directory.SignIn(f.ctx, &identity.Identity{Email: "Ana@UNACH.mx", Name: "Ana", Picture: "p.png"}, LoginMeta{IP: "10.0.0.1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Email).To(Equal("ana@unach.mx"))
			Expect(u.HasRole(models.RoleMember)).To(BeTrue())
			Expect(u.HasRole(models.RoleAdmin)).To(BeFalse())
			Expect(u.LoginCount).To(Equal(int64(1)))
			Expect(u.ProfileComplete()).To(BeFalse())

			again, err := f.directory.SignIn(f.ctx, &identity.Identity{Email: "ana@unach.mx", Name: "Ana María"}, LoginMeta{})
			Expect(err).NotTo(HaveOccurred())
			Expect(again.ID).To(Equal(u.ID))
			Expect(again.Name).To(Equal("Ana María"))
			Expect(again.LoginCount).To(Equal(int64(2)))
		})

		Specify("configured admin addresses get the admin role", func() {
			admin := f.admin()
			Expect(f.gate.IsAdmin(admin)).To(BeTrue())
		})

		Specify("sad path - foreign domain", func() {
			_, err := f.directory.SignIn(f.ctx, &identity.Identity{Email: "eve@gmail.com"}, LoginMeta{})
			Expect(err).To(MatchError(errs.ErrForbidden))

			_, err = f.directory.SignIn(f.ctx, &identity.Identity{Email: "eve@notunach.mx"}, LoginMeta{})
			Expect(err).To(MatchError(errs.ErrForbidden))
		})
	})

	Describe("CompleteProfile", func() {
		Specify("happy path", func() {
			s := f.signIn("ana@unach.mx")
			u, err := f.directory.CompleteProfile(f.ctx, s, "5", "a", models.ShiftMorning)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.ProfileComplete()).To(BeTrue())
			Expect(*u.Group).To(Equal("A"))
		})

		Specify("sad path - bad shift", func() {
			s := f.signIn("ana@unach.mx")
			_, err := f.directory.CompleteProfile(f.ctx, s, "5", "A", "Nocturno")
			Expect(err).To(MatchError(errs.ErrValidation))
		})
	})

	Describe("SetAdmin", func() {
		Specify("admins promote and demote others", func() {
			admin := f.admin()
			ana := f.signIn("ana@unach.mx")

			u, err := f.directory.SetAdmin(f.ctx, admin, ana.UserID, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.HasRole(models.RoleAdmin)).To(BeTrue())

			u, err = f.directory.SetAdmin(f.ctx, admin, ana.UserID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.HasRole(models.RoleAdmin)).To(BeFalse())
		})

		Specify("sad path - self demotion and members", func() {
			admin := f.admin()
			ana := f.signIn("ana@unach.mx")

			_, err := f.directory.SetAdmin(f.ctx, admin, admin.UserID, false)
			Expect(err).To(MatchError(errs.ErrValidation))

			_, err = f.directory.SetAdmin(f.ctx, ana, ana.UserID, true)
			Expect(err).To(MatchError(errs.ErrForbidden))
		})
	})

	Describe("Get and List", func() {
		Specify("members see only themselves", func() {
			admin := f.admin()
			ana := f.signIn("ana@unach.mx")

			_, err := f.directory.Get(f.ctx, ana, ana.UserID)
			Expect(err).NotTo(HaveOccurred())
			_, err = f.directory.Get(f.ctx, ana, admin.UserID)
			Expect(err).To(MatchError(errs.ErrForbidden))
			_, err = f.directory.List(f.ctx, ana, "", 1, 20)
			Expect(err).To(MatchError(errs.ErrForbidden))

			res, err := f.directory.List(f.ctx, admin, "ana", 1, 20)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Total).To(Equal(int64(1)))
			Expect(res.Users[0].Email).To(Equal("ana@unach.mx"))
		})
	})

	Describe("BootstrapAdmins", func() {
		Specify("existing accounts are promoted", func() {
			dir := NewDirectory(f.repo, f.gate, DirectoryConfig{
				AllowedDomains: []string{"unach.mx"},
				AdminEmails:    []string{"ana@unach.mx", "nobody@unach.mx"},
			})
			ana := f.signIn("ana@unach.mx")
			Expect(f.gate.IsAdmin(ana)).To(BeFalse())

			n, err := dir.BootstrapAdmins(f.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))

			u, err := f.repo.FindUserByID(f.ctx, ana.UserID)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.HasRole(models.RoleAdmin)).To(BeTrue())
		})
	})

	Describe("AttachDocument", func() {
		Specify("stores the reference on the caller", func() {
			ana := f.signIn("ana@unach.mx")
			u, err := f.directory.AttachDocument(f.ctx, ana, "/uploads/users/id.pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(u.DocumentRef).To(Equal("/uploads/users/id.pdf"))
		})
	})
})

var _ = Describe("Gate", func() {
	It("grants every capability to admins and none to members", func() {
		g := NewGate()
		admin := Subject{UserID: "a", Roles: []models.Role{models.RoleMember, models.RoleAdmin}}
		member := Subject{UserID: "m", Roles: []models.Role{models.RoleMember}}

		for _, c := range []Capability{CapViewAllReservations, CapReviewReservations, CapManageProjectors, CapViewUsers, CapManageUsers, CapSendNotifications} {
			Expect(g.Require(admin, c)).To(Succeed())
			Expect(g.Require(member, c)).To(MatchError(errs.ErrForbidden))
		}
		Expect(g.IsAdmin(admin)).To(BeTrue())
		Expect(g.IsAdmin(member)).To(BeFalse())
		Expect(g.IsAdmin(Subject{})).To(BeFalse())
	})
})
