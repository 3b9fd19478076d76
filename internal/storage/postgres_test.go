package storage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/example/cab-booking/internal/models"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
		db.Close()
	})
	return db, mock
}

func TestPGUsersGetByEmail(t *testing.T) {
	db, mock := newMock(t)
	s := &pgUsers{db: db}

	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, first_name, last_name, email, password_hash, registered_at FROM users WHERE email=$1`)).
		WithArgs("asha@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "email", "password_hash", "registered_at"}).
			AddRow("u1", "Asha", "Verma", "asha@example.com", "$2a$10$hash", at))

	u, err := s.GetByEmail(context.Background(), "asha@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != "u1" || u.FirstName != "Asha" || !u.RegisteredAt.Equal(at) {
		t.Fatalf("got %+v", u)
	}
}

func TestPGUsersGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	s := &pgUsers{db: db}

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id=\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := s.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPGCabsClaim(t *testing.T) {
	db, mock := newMock(t)
	s := &pgCabs{db: db}

	mock.ExpectQuery(`UPDATE cabs SET is_available=false`).
		WithArgs(models.CabSedan).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "is_available"}).
			AddRow("c7", "Sedan", false))

	c, err := s.Claim(context.Background(), models.CabSedan)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != "c7" || c.IsAvailable {
		t.Fatalf("got %+v", c)
	}
}

func TestPGCabsClaimExhausted(t *testing.T) {
	db, mock := newMock(t)
	s := &pgCabs{db: db}

	mock.ExpectQuery(`UPDATE cabs SET is_available=false`).
		WithArgs(models.CabLuxury).
		WillReturnError(sql.ErrNoRows)

	if _, err := s.Claim(context.Background(), models.CabLuxury); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPGCabsSetAvailabilityUnknown(t *testing.T) {
	db, mock := newMock(t)
	s := &pgCabs{db: db}

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE cabs SET is_available=$1 WHERE id=$2`)).
		WithArgs(true, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.SetAvailability(context.Background(), "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPGBookingsRoundTripSnapshots(t *testing.T) {
	db, mock := newMock(t)
	s := &pgBookings{db: db}
	ctx := context.Background()

	at := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	b := models.Booking{
		ID:              "b1",
		PickupLocation:  "MG Road",
		DropoffLocation: "Airport",
		CabID:           "c1",
		Cab:             &models.Cab{ID: "c1", Type: models.CabMini},
		CabType:         models.CabMini,
		Distance:        12.5,
		Fare:            175,
		Status:          models.BookingPending,
		CreatedAt:       at,
		RiderID:         "r1",
		Rider:           &models.User{ID: "r1", FirstName: "Asha"},
	}

	mock.ExpectExec(`INSERT INTO bookings`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := s.Insert(ctx, b); err != nil {
		t.Fatal(err)
	}

	cols := []string{"id", "pickup_location", "dropoff_location", "pickup_lat", "pickup_lon",
		"dropoff_lat", "dropoff_lon", "cab_id", "cab_snapshot", "cab_type", "distance_km",
		"fare", "status", "created_at", "rider_id", "rider_snapshot"}
	mock.ExpectQuery(`SELECT .+ FROM bookings WHERE id=\$1`).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"b1", "MG Road", "Airport", "", "", "", "", "c1",
			[]byte(`{"id":"c1","type":"Mini","is_available":false}`),
			"Mini", 12.5, 175.0, "Pending", at, "r1",
			[]byte(`{"id":"r1","first_name":"Asha"}`)))

	got, err := s.GetByID(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Cab == nil || got.Cab.ID != "c1" {
		t.Fatalf("cab snapshot: %+v", got.Cab)
	}
	if got.Rider == nil || got.Rider.FirstName != "Asha" {
		t.Fatalf("rider snapshot: %+v", got.Rider)
	}
	if got.Status != models.BookingPending || got.Fare != 175 {
		t.Fatalf("got %+v", got)
	}
}

func TestPGPaymentsInsertNullTransaction(t *testing.T) {
	db, mock := newMock(t)
	s := &pgPayments{db: db}

	p := models.Payment{
		ID:        "p1",
		BookingID: "b1",
		RiderID:   "r1",
		Amount:    175,
		Method:    models.MethodCash,
		Status:    models.PaymentCompleted,
		CreatedAt: time.Now().UTC(),
		Details:   "Cash Payment",
	}
	mock.ExpectExec(`INSERT INTO payments`).
		WithArgs(p.ID, p.BookingID, nil, p.RiderID, nil, p.Amount, p.Method, p.Status,
			p.CreatedAt, sql.NullString{}, p.Details).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.Insert(context.Background(), p); err != nil {
		t.Fatal(err)
	}
}
