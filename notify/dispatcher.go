package notify

import (
	"context"
	"sync"
	"time"

	"projector_reservation/log"
	"projector_reservation/metrics"
	"projector_reservation/models"

	"go.uber.org/zap"
)

// Delivery is one committed notification plus what sinks need to reach the
// recipient.
type Delivery struct {
	Notification   models.Notification `json:"notification"`
	RecipientEmail string              `json:"recipientEmail"`
	RecipientName  string              `json:"recipientName"`
}

type Sink interface {
	Name() string
	Deliver(ctx context.Context, d Delivery) error
}

// Dispatcher hands deliveries to its sinks from a fixed pool of workers.
// Enqueue never blocks; a full queue drops the delivery.
type Dispatcher struct {
	queue   chan Delivery
	sinks   []Sink
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sinks []Sink, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	d := &Dispatcher{
		queue:   make(chan Delivery, queueSize),
		sinks:   sinks,
		timeout: 10 * time.Second,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for del := range d.queue {
		for _, s := range d.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			err := s.Deliver(ctx, del)
			cancel()
			if err != nil {
				metrics.NotificationDeliveries.WithLabelValues(s.Name(), "error").Inc()
				log.Logger.Warn("notification delivery failed",
					zap.Int("worker", id),
					zap.String("sink", s.Name()),
					zap.String("notificationID", del.Notification.ID),
					zap.Error(err))
				continue
			}
			metrics.NotificationDeliveries.WithLabelValues(s.Name(), "ok").Inc()
		}
	}
}

// Enqueue reports whether the delivery was queued.
func (d *Dispatcher) Enqueue(del Delivery) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.queue <- del:
		return true
	default:
		metrics.NotificationDeliveries.WithLabelValues("queue", "dropped").Inc()
		log.Logger.Warn("notification queue full, delivery dropped",
			zap.String("notificationID", del.Notification.ID))
		return false
	}
}

// Shutdown stops accepting deliveries and waits for queued ones to drain or
// ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
