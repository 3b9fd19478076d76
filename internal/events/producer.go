// Package events publishes booking and payment lifecycle events to Kafka.
// Publishing is best-effort: the workflow never fails because the broker
// is down.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/cab-booking/internal/models"
)

const (
	KindBookingCreated   = "booking.created"
	KindBookingCancelled = "booking.cancelled"
	KindPaymentSettled   = "payment.settled"
)

// Producer writes lifecycle events. A nil *Producer is a valid no-op, so
// callers don't need to branch on whether Kafka is configured.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &Producer{writer: w}
}

func (p *Producer) publish(key string, v any) error {
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(v)
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b})
}

func (p *Producer) BookingCreated(b models.Booking) error {
	return p.publish(b.ID, models.BookingEvent{
		Kind: KindBookingCreated, BookingID: b.ID, RiderID: b.RiderID,
		CabID: b.CabID, CabType: b.CabType, Status: b.Status, Fare: b.Fare, At: time.Now().UTC(),
	})
}

func (p *Producer) BookingCancelled(b models.Booking) error {
	return p.publish(b.ID, models.BookingEvent{
		Kind: KindBookingCancelled, BookingID: b.ID, RiderID: b.RiderID,
		CabID: b.CabID, CabType: b.CabType, Status: b.Status, Fare: b.Fare, At: time.Now().UTC(),
	})
}

func (p *Producer) PaymentSettled(pay models.Payment) error {
	return p.publish(pay.BookingID, models.PaymentEvent{
		Kind: KindPaymentSettled, PaymentID: pay.ID, BookingID: pay.BookingID,
		RiderID: pay.RiderID, Method: pay.Method, Status: pay.Status,
		Amount: pay.Amount, At: time.Now().UTC(),
	})
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
