package services

import (
	"projector_reservation/errs"
	"projector_reservation/models"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Outbox", func() {
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

	send := func(msg string) *models.Notification {
		n, err := f.outbox.Send(f.ctx, admin, SendInput{RecipientID: user.UserID, Kind: models.NotificationSystem, Message: msg})
		Expect(err).NotTo(HaveOccurred())
		return n
	}

	Specify("send, list and count", func() {
		send("first")
		send("second")

		unread, err := f.outbox.ListUnread(f.ctx, user)
		Expect(err).NotTo(HaveOccurred())
		Expect(unread).To(HaveLen(2))

		count, err := f.outbox.CountUnread(f.ctx, user)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(int64(2)))

		Expect(f.notifier.All()).To(HaveLen(2))
	})

	Specify("sad path - send is gated and validated", func() {
		_, err := f.outbox.Send(f.ctx, user, SendInput{RecipientID: admin.UserID, Message: "hi"})
		Expect(err).To(MatchError(errs.ErrForbidden))

		_, err = f.outbox.Send(f.ctx, admin, SendInput{RecipientID: user.UserID, Message: " "})
		Expect(err).To(MatchError(errs.ErrValidation))

		_, err = f.outbox.Send(f.ctx, admin, SendInput{RecipientID: user.UserID, Kind: "gossip", Message: "x"})
		Expect(err).To(MatchError(errs.ErrValidation))

		_, err = f.outbox.Send(f.ctx, admin, SendInput{RecipientID: "00000000-0000-0000-0000-000000000000", Message: "x"})
		Expect(err).To(MatchError(errs.ErrNotFound))
	})

	Specify("mark read", func() {
		n := send("hello")

		read, err := f.outbox.MarkRead(f.ctx, user, n.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(read.Read).To(BeTrue())
		Expect(read.ReadAt).NotTo(BeNil())

		_, err = f.outbox.MarkRead(f.ctx, user, n.ID)
		Expect(err).NotTo(HaveOccurred())

		unread, err := f.outbox.ListUnread(f.ctx, user)
		Expect(err).NotTo(HaveOccurred())
		Expect(unread).To(BeEmpty())
	})

	Specify("sad path - mark read of unknown or foreign ids", func() {
		n := send("hello")

		_, err := f.outbox.MarkRead(f.ctx, admin, n.ID)
		Expect(err).To(MatchError(errs.ErrNotFound))

		_, err = f.outbox.MarkRead(f.ctx, user, "00000000-0000-0000-0000-000000000000")
		Expect(err).To(MatchError(errs.ErrNotFound))

		count, err := f.outbox.CountUnread(f.ctx, user)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(int64(1)))
	})

	Specify("mark all read", func() {
		send("a")
		send("b")
		send("c")

		changed, err := f.outbox.MarkAllRead(f.ctx, user)
		Expect(err).NotTo(HaveOccurred())
		Expect(changed).To(Equal(int64(3)))

		count, err := f.outbox.CountUnread(f.ctx, user)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(BeZero())

		all, err := f.outbox.List(f.ctx, user, false, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(3))
	})
})
