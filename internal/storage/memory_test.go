package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/cab-booking/internal/models"
)

func TestMemoryUsersRoundTrip(t *testing.T) {
	s := NewMemoryStores().Users
	ctx := context.Background()

	u := models.User{ID: "u1", FirstName: "Asha", Email: "asha@example.com"}
	if err := s.Insert(ctx, u); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetByEmail(ctx, "asha@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "u1" {
		t.Fatalf("got %q", got.ID)
	}

	if _, err := s.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := s.Replace(ctx, models.User{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("replace missing: %v", err)
	}
}

func TestMemoryCabsClaimFlips(t *testing.T) {
	s := NewMemoryStores().Cabs
	ctx := context.Background()

	if err := s.Insert(ctx, models.Cab{ID: "c1", Type: models.CabMini, IsAvailable: true}); err != nil {
		t.Fatal(err)
	}

	c, err := s.Claim(ctx, models.CabMini)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != "c1" || c.IsAvailable {
		t.Fatalf("claimed %+v", c)
	}
	// already claimed
	if _, err := s.Claim(ctx, models.CabMini); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second claim: %v", err)
	}

	stored, err := s.GetByID(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.IsAvailable {
		t.Fatal("claim did not persist the flip")
	}
}

func TestMemoryCabsFirstAvailableDoesNotFlip(t *testing.T) {
	s := NewMemoryStores().Cabs
	ctx := context.Background()

	if err := s.Insert(ctx, models.Cab{ID: "c1", Type: models.CabSUV, IsAvailable: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FirstAvailable(ctx, models.CabSUV); err != nil {
		t.Fatal(err)
	}
	stored, _ := s.GetByID(ctx, "c1")
	if !stored.IsAvailable {
		t.Fatal("FirstAvailable mutated availability")
	}
	if _, err := s.FirstAvailable(ctx, models.CabLuxury); !errors.Is(err, ErrNotFound) {
		t.Fatalf("wrong type: %v", err)
	}
}

func TestMemoryBookingsQueries(t *testing.T) {
	s := NewMemoryStores().Bookings
	ctx := context.Background()

	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	seed := []models.Booking{
		{ID: "b1", RiderID: "r1", Status: models.BookingPending, CreatedAt: base},
		{ID: "b2", RiderID: "r1", Status: models.BookingConfirmed, CreatedAt: base.Add(time.Minute)},
		{ID: "b3", RiderID: "r2", Status: models.BookingPending, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, b := range seed {
		if err := s.Insert(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	byRider, err := s.ByRider(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byRider) != 2 || byRider[0].ID != "b2" || byRider[1].ID != "b1" {
		t.Fatalf("ByRider order: %+v", byRider)
	}

	pending, err := s.ByStatus(ctx, models.BookingPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].ID != "b3" {
		t.Fatalf("ByStatus: %+v", pending)
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].ID != "b3" || recent[1].ID != "b2" {
		t.Fatalf("Recent: %+v", recent)
	}
}

func TestMemoryPaymentsByBooking(t *testing.T) {
	s := NewMemoryStores().Payments
	ctx := context.Background()

	p := models.Payment{ID: "p1", BookingID: "b1", RiderID: "r1", Status: models.PaymentCompleted}
	if err := s.Insert(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := s.ByBooking(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "p1" {
		t.Fatalf("got %q", got.ID)
	}
	if _, err := s.ByBooking(ctx, "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
