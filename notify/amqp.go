package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"projector_reservation/log"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// AMQPSink publishes every delivery as JSON on a fanout exchange.
type AMQPSink struct {
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
}

// DialAMQP connects with exponential backoff and declares the exchange.
func DialAMQP(url, exchange string) (*AMQPSink, error) {
	log.Logger.Info("connecting to rabbitmq")

	var (
		conn *amqp.Connection
		err  error
	)
	wait := time.Second
	for i := 0; i < 6; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		if i == 5 {
			return nil, fmt.Errorf("dial rabbitmq: %w", err)
		}
		log.Logger.Warn("rabbitmq not ready, retrying", zap.Duration("wait", wait), zap.Error(err))
		time.Sleep(wait)
		wait *= 2
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		exchange,
		"fanout",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	log.Logger.Info("connected to rabbitmq", zap.String("exchange", exchange))
	return &AMQPSink{exchange: exchange, conn: conn}, nil
}

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) Deliver(_ context.Context, d Delivery) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ch, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	return ch.Publish(s.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    d.Notification.ID,
		Type:         string(d.Notification.Kind),
		Body:         body,
	})
}

func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
