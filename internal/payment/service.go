// Package payment records and settles payments for bookings. One payment
// is assumed per booking, but only the read path is idempotent: a
// Completed payment short-circuits, nothing prevents two racing requests
// from each inserting a Pending record.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/cab-booking/internal/apperr"
	"github.com/example/cab-booking/internal/dispatch"
	"github.com/example/cab-booking/internal/events"
	"github.com/example/cab-booking/internal/models"
	"github.com/example/cab-booking/internal/observability"
	"github.com/example/cab-booking/internal/storage"
)

// PayRequest carries the method-specific detail fields; only the ones for
// the chosen method are read.
type PayRequest struct {
	BookingID  string               `json:"booking_id" validate:"required"`
	Method     models.PaymentMethod `json:"method" validate:"required"`
	Amount     float64              `json:"amount"`
	CardNumber string               `json:"card_number"`
	UpiID      string               `json:"upi_id"`
	WalletType string               `json:"wallet_type"`
}

type Service struct {
	Payments storage.PaymentStore
	Bookings storage.BookingStore
	Users    storage.UserStore
	Settler  Settler
	Events   *events.Producer
	Notifier dispatch.Notifier
	Logger   *slog.Logger
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Pay settles a booking. Cash completes immediately with no transaction id;
// other methods go through the Settler. Success confirms the booking; a
// declined settlement leaves it Pending and the rider must submit a fresh
// payment, not retry this record.
func (s *Service) Pay(ctx context.Context, riderID string, req PayRequest) (models.Payment, error) {
	if !models.ValidPaymentMethod(req.Method) {
		return models.Payment{}, &apperr.ValidationError{Field: "method", Msg: "unknown payment method"}
	}

	b, err := s.ownedBooking(ctx, riderID, req.BookingID)
	if err != nil {
		return models.Payment{}, err
	}

	// Idempotent read, not idempotent creation: a racing request that has
	// not completed yet is not excluded here.
	if existing, err := s.Payments.ByBooking(ctx, req.BookingID); err == nil &&
		existing.Status == models.PaymentCompleted {
		s.resolveSnapshots(ctx, &existing)
		return existing, nil
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return models.Payment{}, fmt.Errorf("check existing payment: %w", err)
	}

	rider, err := s.Users.GetByID(ctx, riderID)
	if err != nil {
		return models.Payment{}, fmt.Errorf("load rider: %w", err)
	}

	amount := req.Amount
	if amount == 0 {
		amount = b.Fare
	}

	bookingSnap := b
	riderSnap := rider
	p := models.Payment{
		ID:        uuid.NewString(),
		BookingID: b.ID,
		Booking:   &bookingSnap,
		RiderID:   rider.ID,
		Rider:     &riderSnap,
		Amount:    amount,
		Method:    req.Method,
		Status:    models.PaymentPending,
		CreatedAt: time.Now().UTC(),
		Details:   maskDetails(req),
	}
	if err := s.Payments.Insert(ctx, p); err != nil {
		return models.Payment{}, fmt.Errorf("persist payment: %w", err)
	}

	success := false
	if p.Method == models.MethodCash {
		p.Status = models.PaymentCompleted
		p.TransactionID = ""
		success = true
	} else {
		out, err := s.Settler.Settle(ctx, p)
		if err != nil {
			s.logger().Error("settler error", "payment_id", p.ID, "error", err)
		}
		if err == nil && out.Success {
			p.Status = models.PaymentCompleted
			p.TransactionID = out.TransactionID
			success = true
		} else {
			p.Status = models.PaymentFailed
		}
	}
	if err := s.Payments.Replace(ctx, p); err != nil {
		return models.Payment{}, fmt.Errorf("persist settlement: %w", err)
	}

	observability.PaymentsSettledTotal.WithLabelValues(string(p.Method), string(p.Status)).Inc()
	if err := s.Events.PaymentSettled(p); err != nil {
		s.logger().Warn("payment event publish failed", "payment_id", p.ID, "error", err)
	}

	if !success {
		// Booking stays Pending; no retry is scheduled and the cab is not
		// released.
		s.logger().Info("payment declined", "payment_id", p.ID, "booking_id", b.ID, "method", p.Method)
		return p, &apperr.SettlementError{PaymentID: p.ID}
	}

	b.Status = models.BookingConfirmed
	if err := s.Bookings.Replace(ctx, b); err != nil {
		return models.Payment{}, fmt.Errorf("confirm booking: %w", err)
	}
	if s.Notifier != nil {
		_ = s.Notifier.Notify(b.RiderID, dispatch.BookingUpdate{BookingID: b.ID, Status: b.Status})
	}
	s.logger().Info("payment completed", "payment_id", p.ID, "booking_id", b.ID,
		"method", p.Method, "transaction_id", p.TransactionID)
	return p, nil
}

// Get returns a payment owned by the rider.
func (s *Service) Get(ctx context.Context, riderID, paymentID string) (models.Payment, error) {
	p, err := s.Payments.GetByID(ctx, paymentID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Payment{}, &apperr.NotFoundError{Resource: "payment", ID: paymentID}
	}
	if err != nil {
		return models.Payment{}, fmt.Errorf("load payment: %w", err)
	}
	if p.RiderID != riderID {
		return models.Payment{}, &apperr.NotFoundError{Resource: "payment", ID: paymentID}
	}
	s.resolveSnapshots(ctx, &p)
	return p, nil
}

// ListByRider returns the rider's payments, newest first.
func (s *Service) ListByRider(ctx context.Context, riderID string) ([]models.Payment, error) {
	ps, err := s.Payments.ByRider(ctx, riderID)
	if err != nil {
		return nil, err
	}
	for i := range ps {
		s.resolveSnapshots(ctx, &ps[i])
	}
	return ps, nil
}

// Recent returns the n most recent payments across all riders.
func (s *Service) Recent(ctx context.Context, n int) ([]models.Payment, error) {
	return s.Payments.Recent(ctx, n)
}

func (s *Service) ownedBooking(ctx context.Context, riderID, bookingID string) (models.Booking, error) {
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Booking{}, &apperr.NotFoundError{Resource: "booking", ID: bookingID}
	}
	if err != nil {
		return models.Booking{}, fmt.Errorf("load booking: %w", err)
	}
	if b.RiderID != riderID {
		return models.Booking{}, &apperr.NotFoundError{Resource: "booking", ID: bookingID}
	}
	return b, nil
}

func (s *Service) resolveSnapshots(ctx context.Context, p *models.Payment) {
	if p.Booking == nil && p.BookingID != "" {
		if b, err := s.Bookings.GetByID(ctx, p.BookingID); err == nil {
			p.Booking = &b
		}
	}
	if p.Rider == nil && p.RiderID != "" {
		if u, err := s.Users.GetByID(ctx, p.RiderID); err == nil {
			p.Rider = &u
		}
	}
}

// maskDetails builds the stored summary: card methods keep only the last
// four characters, UPI and wallet identifiers are stored verbatim, cash a
// fixed literal, anything else "Unknown".
func maskDetails(req PayRequest) string {
	switch req.Method {
	case models.MethodCreditCard, models.MethodDebitCard:
		n := req.CardNumber
		if len(n) > 4 {
			n = n[len(n)-4:]
		}
		return "Card: " + n
	case models.MethodUPI:
		return "UPI: " + req.UpiID
	case models.MethodWallet:
		return "Wallet: " + req.WalletType
	case models.MethodCash:
		return "Cash Payment"
	default:
		return "Unknown"
	}
}
