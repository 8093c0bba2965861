package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"projector_reservation/models"

	. "github.com/onsi/gomega"
)

type fakeSink struct {
	mu    sync.Mutex
	got   []Delivery
	fail  bool
	block chan struct{}
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) Deliver(_ context.Context, d Delivery) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, d)
	if s.fail {
		return errors.New("boom")
	}
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func delivery(id string) Delivery {
	return Delivery{
		Notification:   models.Notification{ID: id, Kind: models.NotificationAssignment, Message: "hi"},
		RecipientEmail: "ana@unach.mx",
	}
}

func TestDispatcherDeliversToEverySink(t *testing.T) {
	g := NewWithT(t)
	a, b := &fakeSink{}, &fakeSink{fail: true}
	d := NewDispatcher([]Sink{a, b}, 2, 10)

	for _, id := range []string{"1", "2", "3"} {
		g.Expect(d.Enqueue(delivery(id))).To(BeTrue())
	}
	g.Expect(d.Shutdown(context.Background())).To(Succeed())

	g.Expect(a.count()).To(Equal(3))
	g.Expect(b.count()).To(Equal(3))
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	g := NewWithT(t)
	sink := &fakeSink{block: make(chan struct{})}
	d := NewDispatcher([]Sink{sink}, 1, 1)

	// one delivery held by the worker, one in the queue
	g.Expect(d.Enqueue(delivery("1"))).To(BeTrue())
	g.Eventually(func() bool { return d.Enqueue(delivery("2")) }, time.Second, 5*time.Millisecond).Should(BeTrue())
	g.Expect(d.Enqueue(delivery("3"))).To(BeFalse())

	close(sink.block)
	g.Expect(d.Shutdown(context.Background())).To(Succeed())
	g.Expect(sink.count()).To(Equal(2))
}

func TestDispatcherRejectsAfterShutdown(t *testing.T) {
	g := NewWithT(t)
	d := NewDispatcher(nil, 1, 1)
	g.Expect(d.Shutdown(context.Background())).To(Succeed())
	g.Expect(d.Enqueue(delivery("1"))).To(BeFalse())
	g.Expect(d.Shutdown(context.Background())).To(Succeed())
}

func TestDispatcherShutdownHonoursContext(t *testing.T) {
	g := NewWithT(t)
	sink := &fakeSink{block: make(chan struct{})}
	d := NewDispatcher([]Sink{sink}, 1, 1)
	g.Expect(d.Enqueue(delivery("1"))).To(BeTrue())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	g.Expect(d.Shutdown(ctx)).To(MatchError(context.DeadlineExceeded))
	close(sink.block)
}
