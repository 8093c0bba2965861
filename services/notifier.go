package services

import (
	"projector_reservation/models"
	"projector_reservation/notify"
)

// Notifier receives committed notifications for out-of-band delivery.
type Notifier interface {
	Enqueue(d notify.Delivery) bool
}

type nopNotifier struct{}

func (nopNotifier) Enqueue(notify.Delivery) bool { return false }

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func deliver(n Notifier, note *models.Notification, to *models.User) {
	if note == nil {
		return
	}
	d := notify.Delivery{Notification: *note}
	if to != nil {
		d.RecipientEmail = to.Email
		d.RecipientName = to.Name
	}
	n.Enqueue(d)
}
