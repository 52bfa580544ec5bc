package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	FlightCreated    = "flight.created"
	FlightCancelled  = "flight.cancelled"
	FlightCompleted  = "flight.completed"
	BookingConfirmed = "booking.confirmed"
	BookingCancelled = "booking.cancelled"
)

type Event struct {
	Type          string    `json:"type"`
	FlightID      string    `json:"flight_id"`
	BookingID     string    `json:"booking_id,omitempty"`
	PassengerID   string    `json:"passenger_id,omitempty"`
	CompanyID     string    `json:"company_id,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Producer struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewProducer returns an asynchronous producer: Publish only enqueues, and
// delivery failures surface through the completion log.
func NewProducer(brokers []string, topic string, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Producer{log: log}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   p.delivered,
	}
	return p
}

// Publish enqueues event keyed by flight id so per-flight ordering holds.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	msg, err := buildMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s event: %w", event.Type, err)
	}
	return nil
}

func (p *Producer) delivered(messages []kafka.Message, err error) {
	for _, msg := range messages {
		fields := []zap.Field{zap.String("type", eventType(msg)), zap.String("flight_id", string(msg.Key))}
		if err != nil {
			p.log.Warn("event delivery failed", append(fields, zap.Error(err))...)
			continue
		}
		p.log.Debug("event published", fields...)
	}
}

func eventType(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == "event-type" {
			return string(h.Value)
		}
	}
	return ""
}

// Close flushes queued events.
func (p *Producer) Close() error {
	return p.writer.Close()
}

func buildMessage(event Event) (kafka.Message, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return kafka.Message{
		Key:   []byte(event.FlightID),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}, nil
}

// Nop discards events; used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
