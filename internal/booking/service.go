// Package booking orchestrates the ride request workflow: allocate a cab,
// price the ride, persist the ledger entry. The steps are individual writes
// with no transaction spanning them; the atomic claim mode in fleet hardens
// the allocation step, nothing else.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/cab-booking/internal/apperr"
	"github.com/example/cab-booking/internal/dispatch"
	"github.com/example/cab-booking/internal/events"
	"github.com/example/cab-booking/internal/fare"
	"github.com/example/cab-booking/internal/fleet"
	"github.com/example/cab-booking/internal/models"
	"github.com/example/cab-booking/internal/observability"
	"github.com/example/cab-booking/internal/storage"
)

// CreateRequest is the validated shape of a ride request. Coordinates are
// free text and are never parsed; the distance generator ignores them.
type CreateRequest struct {
	PickupLocation  string         `json:"pickup_location" validate:"required"`
	DropoffLocation string         `json:"dropoff_location" validate:"required"`
	PickupLat       string         `json:"pickup_lat"`
	PickupLon       string         `json:"pickup_lon"`
	DropoffLat      string         `json:"dropoff_lat"`
	DropoffLon      string         `json:"dropoff_lon"`
	CabType         models.CabType `json:"cab_type" validate:"required"`
}

type Service struct {
	Bookings storage.BookingStore
	Users    storage.UserStore
	Fleet    *fleet.Registry
	Distance *fare.Estimator
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

// Create runs the booking workflow for an authenticated rider. Each step is
// its own write. If a step after allocation fails, the cab stays allocated;
// there is no compensating release.
func (s *Service) Create(ctx context.Context, riderID string, req CreateRequest) (models.Booking, error) {
	if strings.TrimSpace(req.PickupLocation) == "" {
		return models.Booking{}, &apperr.ValidationError{Field: "pickup_location", Msg: "required"}
	}
	if strings.TrimSpace(req.DropoffLocation) == "" {
		return models.Booking{}, &apperr.ValidationError{Field: "dropoff_location", Msg: "required"}
	}
	if !models.ValidCabType(req.CabType) {
		return models.Booking{}, &apperr.ValidationError{Field: "cab_type", Msg: "unknown cab type"}
	}

	rider, err := s.Users.GetByID(ctx, riderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Booking{}, apperr.ErrUnauthenticated
		}
		return models.Booking{}, fmt.Errorf("load rider: %w", err)
	}

	cab, err := s.Fleet.FindOrCreateAvailable(ctx, req.CabType)
	if err != nil {
		return models.Booking{}, err
	}

	distance := s.Distance.Distance()
	price := fare.Estimate(distance, req.CabType)

	cabSnap := cab
	riderSnap := rider
	b := models.Booking{
		ID:              uuid.NewString(),
		PickupLocation:  req.PickupLocation,
		DropoffLocation: req.DropoffLocation,
		PickupLat:       req.PickupLat,
		PickupLon:       req.PickupLon,
		DropoffLat:      req.DropoffLat,
		DropoffLon:      req.DropoffLon,
		CabID:           cab.ID,
		Cab:             &cabSnap,
		CabType:         req.CabType,
		Distance:        distance,
		Fare:            price,
		Status:          models.BookingPending,
		CreatedAt:       time.Now().UTC(),
		RiderID:         rider.ID,
		Rider:           &riderSnap,
	}

	if err := s.Bookings.Insert(ctx, b); err != nil {
		return models.Booking{}, fmt.Errorf("persist booking: %w", err)
	}

	// Redundant when the registry already claimed atomically; required in
	// faithful mode where allocation was only a read.
	if err := s.Fleet.SetAvailability(ctx, cab.ID, false); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return models.Booking{}, fmt.Errorf("mark cab unavailable: %w", err)
	}

	observability.BookingsCreatedTotal.Inc()
	if err := s.Events.BookingCreated(b); err != nil {
		s.logger().Warn("booking event publish failed", "booking_id", b.ID, "error", err)
	}
	if s.Notifier != nil {
		_ = s.Notifier.Notify(b.RiderID, dispatch.BookingUpdate{BookingID: b.ID, Status: b.Status})
	}
	s.logger().Info("booking created", "booking_id", b.ID, "rider_id", b.RiderID,
		"cab_id", b.CabID, "cab_type", b.CabType, "fare", fare.Format(b.Fare))
	return b, nil
}

// Cancel transitions a Pending or Confirmed booking to Cancelled and
// releases its cab best-effort. For any other status it is a silent no-op
// returning the booking unchanged; already-Cancelled bookings do not error.
func (s *Service) Cancel(ctx context.Context, riderID, bookingID string) (models.Booking, error) {
	b, err := s.getOwned(ctx, riderID, bookingID)
	if err != nil {
		return models.Booking{}, err
	}

	if b.Status != models.BookingPending && b.Status != models.BookingConfirmed {
		return b, nil
	}

	b.Status = models.BookingCancelled
	if b.CabID != "" {
		if err := s.Fleet.SetAvailability(ctx, b.CabID, true); err != nil {
			// Release is best-effort; an unknown cab must not block the
			// cancellation itself.
			s.logger().Warn("cab release failed", "booking_id", b.ID, "cab_id", b.CabID, "error", err)
		}
	}
	if err := s.Bookings.Replace(ctx, b); err != nil {
		return models.Booking{}, fmt.Errorf("persist cancellation: %w", err)
	}

	observability.BookingsCancelledTotal.Inc()
	if err := s.Events.BookingCancelled(b); err != nil {
		s.logger().Warn("booking event publish failed", "booking_id", b.ID, "error", err)
	}
	if s.Notifier != nil {
		_ = s.Notifier.Notify(b.RiderID, dispatch.BookingUpdate{BookingID: b.ID, Status: b.Status})
	}
	s.logger().Info("booking cancelled", "booking_id", b.ID, "cab_id", b.CabID)
	return b, nil
}

// Get returns a booking owned by the rider, with embedded snapshots
// re-resolved when a stored record predates them.
func (s *Service) Get(ctx context.Context, riderID, bookingID string) (models.Booking, error) {
	b, err := s.getOwned(ctx, riderID, bookingID)
	if err != nil {
		return models.Booking{}, err
	}
	s.resolveSnapshots(ctx, &b)
	return b, nil
}

// ListByRider returns the rider's bookings, newest first.
func (s *Service) ListByRider(ctx context.Context, riderID string) ([]models.Booking, error) {
	bs, err := s.Bookings.ByRider(ctx, riderID)
	if err != nil {
		return nil, err
	}
	for i := range bs {
		s.resolveSnapshots(ctx, &bs[i])
	}
	return bs, nil
}

// Recent returns the n most recent bookings across all riders.
func (s *Service) Recent(ctx context.Context, n int) ([]models.Booking, error) {
	return s.Bookings.Recent(ctx, n)
}

// ByStatus lists bookings in one lifecycle state, newest first.
func (s *Service) ByStatus(ctx context.Context, st models.BookingStatus) ([]models.Booking, error) {
	return s.Bookings.ByStatus(ctx, st)
}

func (s *Service) getOwned(ctx context.Context, riderID, bookingID string) (models.Booking, error) {
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Booking{}, &apperr.NotFoundError{Resource: "booking", ID: bookingID}
	}
	if err != nil {
		return models.Booking{}, fmt.Errorf("load booking: %w", err)
	}
	// Ownership mismatch surfaces as not-found, not forbidden.
	if b.RiderID != riderID {
		return models.Booking{}, &apperr.NotFoundError{Resource: "booking", ID: bookingID}
	}
	return b, nil
}

// resolveSnapshots lazily backfills embedded copies when the stored record
// lacks them. Snapshots are taken-at-write-time values; this does not
// refresh a present snapshot.
func (s *Service) resolveSnapshots(ctx context.Context, b *models.Booking) {
	if b.Cab == nil && b.CabID != "" {
		if c, err := s.Fleet.Cabs.GetByID(ctx, b.CabID); err == nil {
			b.Cab = &c
		}
	}
	if b.Rider == nil && b.RiderID != "" {
		if u, err := s.Users.GetByID(ctx, b.RiderID); err == nil {
			b.Rider = &u
		}
	}
}
