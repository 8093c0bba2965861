package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "projector_reservation"

var (
	ReservationsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservations_submitted_total",
		Help:      "Reservations submitted.",
	})

	ReservationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservation_decisions_total",
		Help:      "Approve and reject attempts by outcome.",
	}, []string{"decision", "outcome"})

	ProjectorReturns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "projector_returns_total",
		Help:      "Projectors returned to storage.",
	})

	NotificationDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_deliveries_total",
		Help:      "Notification deliveries per sink and result.",
	}, []string{"sink", "result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})
)

// Outcome labels a service call result for the decision counters.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func Handler() http.Handler { return promhttp.Handler() }
