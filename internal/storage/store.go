// Package storage holds the per-entity store contracts and their memory,
// Postgres and Mongo implementations. Stores serialize individual writes
// but give no multi-document atomicity; the one richer primitive is
// CabStore.Claim, a conditional flip used by the hardened allocator.
package storage

import (
	"context"
	"errors"

	"github.com/example/cab-booking/internal/models"
)

// ErrNotFound is returned for unknown ids across all stores.
var ErrNotFound = errors.New("not found")

type UserStore interface {
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Insert(ctx context.Context, u models.User) error
	Replace(ctx context.Context, u models.User) error
	Delete(ctx context.Context, id string) error
}

type CabStore interface {
	GetByID(ctx context.Context, id string) (models.Cab, error)
	List(ctx context.Context) ([]models.Cab, error)
	Insert(ctx context.Context, c models.Cab) error
	Replace(ctx context.Context, c models.Cab) error
	Delete(ctx context.Context, id string) error

	// FirstAvailable returns an available cab of the given type in storage
	// order. It does not reserve the cab; pairing it with SetAvailability
	// is a read-check-then-act sequence.
	FirstAvailable(ctx context.Context, t models.CabType) (models.Cab, error)
	// Claim flips the first available cab of the given type to unavailable
	// and returns it, in one conditional update. ErrNotFound when the type
	// is exhausted.
	Claim(ctx context.Context, t models.CabType) (models.Cab, error)
	SetAvailability(ctx context.Context, id string, available bool) error
	Count(ctx context.Context) (int, error)
}

type BookingStore interface {
	GetByID(ctx context.Context, id string) (models.Booking, error)
	List(ctx context.Context) ([]models.Booking, error)
	Insert(ctx context.Context, b models.Booking) error
	Replace(ctx context.Context, b models.Booking) error
	Delete(ctx context.Context, id string) error

	ByRider(ctx context.Context, riderID string) ([]models.Booking, error)
	ByStatus(ctx context.Context, s models.BookingStatus) ([]models.Booking, error)
	Recent(ctx context.Context, n int) ([]models.Booking, error)
}

type PaymentStore interface {
	GetByID(ctx context.Context, id string) (models.Payment, error)
	List(ctx context.Context) ([]models.Payment, error)
	Insert(ctx context.Context, p models.Payment) error
	Replace(ctx context.Context, p models.Payment) error
	Delete(ctx context.Context, id string) error

	// ByBooking returns the first payment recorded for a booking.
	ByBooking(ctx context.Context, bookingID string) (models.Payment, error)
	ByRider(ctx context.Context, riderID string) ([]models.Payment, error)
	Recent(ctx context.Context, n int) ([]models.Payment, error)
}

// Stores bundles the four entity stores a process works against.
type Stores struct {
	Users    UserStore
	Cabs     CabStore
	Bookings BookingStore
	Payments PaymentStore
}
