package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/cab-booking/internal/models"
)

// NewPostgresStores opens a Postgres-backed set of stores. Embedded cab and
// rider snapshots are persisted as JSON columns so the read path returns
// bookings and payments already populated, like the document backend does.
func NewPostgresStores(dsn string) (*Stores, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Stores{
		Users:    &pgUsers{db: db},
		Cabs:     &pgCabs{db: db},
		Bookings: &pgBookings{db: db},
		Payments: &pgPayments{db: db},
	}, nil
}

type pgUsers struct{ db *sql.DB }

const userCols = `id, first_name, last_name, email, password_hash, registered_at`

func scanUser(row *sql.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (s *pgUsers) GetByID(ctx context.Context, id string) (models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

func (s *pgUsers) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email))
}

func (s *pgUsers) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY registered_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.RegisteredAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *pgUsers) Insert(ctx context.Context, u models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, first_name, last_name, email, password_hash, registered_at) VALUES($1,$2,$3,$4,$5,$6)`,
		u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.RegisteredAt)
	return err
}

func (s *pgUsers) Replace(ctx context.Context, u models.User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET first_name=$1, last_name=$2, email=$3, password_hash=$4 WHERE id=$5`,
		u.FirstName, u.LastName, u.Email, u.PasswordHash, u.ID)
	return oneRowAffected(res, err)
}

func (s *pgUsers) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	return oneRowAffected(res, err)
}

type pgCabs struct{ db *sql.DB }

func (s *pgCabs) GetByID(ctx context.Context, id string) (models.Cab, error) {
	var c models.Cab
	err := s.db.QueryRowContext(ctx, `SELECT id, type, is_available FROM cabs WHERE id=$1`, id).
		Scan(&c.ID, &c.Type, &c.IsAvailable)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Cab{}, ErrNotFound
	}
	return c, err
}

func (s *pgCabs) List(ctx context.Context) ([]models.Cab, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, is_available FROM cabs ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Cab
	for rows.Next() {
		var c models.Cab
		if err := rows.Scan(&c.ID, &c.Type, &c.IsAvailable); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *pgCabs) Insert(ctx context.Context, c models.Cab) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO cabs(id, type, is_available, created_at) VALUES($1,$2,$3,now())`,
		c.ID, c.Type, c.IsAvailable)
	return err
}

func (s *pgCabs) Replace(ctx context.Context, c models.Cab) error {
	res, err := s.db.ExecContext(ctx, `UPDATE cabs SET type=$1, is_available=$2 WHERE id=$3`, c.Type, c.IsAvailable, c.ID)
	return oneRowAffected(res, err)
}

func (s *pgCabs) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cabs WHERE id=$1`, id)
	return oneRowAffected(res, err)
}

func (s *pgCabs) FirstAvailable(ctx context.Context, t models.CabType) (models.Cab, error) {
	var c models.Cab
	err := s.db.QueryRowContext(ctx,
		`SELECT id, type, is_available FROM cabs WHERE type=$1 AND is_available ORDER BY created_at LIMIT 1`, t).
		Scan(&c.ID, &c.Type, &c.IsAvailable)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Cab{}, ErrNotFound
	}
	return c, err
}

// Claim flips one available row and returns it in a single statement, so
// two concurrent claims can never observe the same cab.
func (s *pgCabs) Claim(ctx context.Context, t models.CabType) (models.Cab, error) {
	var c models.Cab
	err := s.db.QueryRowContext(ctx,
		`UPDATE cabs SET is_available=false
		 WHERE id=(SELECT id FROM cabs WHERE type=$1 AND is_available ORDER BY created_at LIMIT 1 FOR UPDATE SKIP LOCKED)
		 RETURNING id, type, is_available`, t).
		Scan(&c.ID, &c.Type, &c.IsAvailable)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Cab{}, ErrNotFound
	}
	return c, err
}

func (s *pgCabs) SetAvailability(ctx context.Context, id string, available bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE cabs SET is_available=$1 WHERE id=$2`, available, id)
	return oneRowAffected(res, err)
}

func (s *pgCabs) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM cabs`).Scan(&n)
	return n, err
}

type pgBookings struct{ db *sql.DB }

const bookingCols = `id, pickup_location, dropoff_location, pickup_lat, pickup_lon, dropoff_lat, dropoff_lon,
	cab_id, cab_snapshot, cab_type, distance_km, fare, status, created_at, rider_id, rider_snapshot`

func (s *pgBookings) scan(scanner interface{ Scan(...any) error }) (models.Booking, error) {
	var (
		b         models.Booking
		cabJSON   []byte
		riderJSON []byte
	)
	err := scanner.Scan(&b.ID, &b.PickupLocation, &b.DropoffLocation, &b.PickupLat, &b.PickupLon,
		&b.DropoffLat, &b.DropoffLon, &b.CabID, &cabJSON, &b.CabType, &b.Distance, &b.Fare,
		&b.Status, &b.CreatedAt, &b.RiderID, &riderJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Booking{}, ErrNotFound
	}
	if err != nil {
		return models.Booking{}, err
	}
	if len(cabJSON) > 0 {
		var c models.Cab
		if err := json.Unmarshal(cabJSON, &c); err == nil {
			b.Cab = &c
		}
	}
	if len(riderJSON) > 0 {
		var u models.User
		if err := json.Unmarshal(riderJSON, &u); err == nil {
			b.Rider = &u
		}
	}
	return b, nil
}

func (s *pgBookings) GetByID(ctx context.Context, id string) (models.Booking, error) {
	return s.scan(s.db.QueryRowContext(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id=$1`, id))
}

func (s *pgBookings) query(ctx context.Context, q string, args ...any) ([]models.Booking, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Booking
	for rows.Next() {
		b, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *pgBookings) List(ctx context.Context) ([]models.Booking, error) {
	return s.query(ctx, `SELECT `+bookingCols+` FROM bookings ORDER BY created_at DESC`)
}

func (s *pgBookings) Insert(ctx context.Context, b models.Booking) error {
	cabJSON, riderJSON, err := bookingSnapshots(b)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bookings(`+bookingCols+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		b.ID, b.PickupLocation, b.DropoffLocation, b.PickupLat, b.PickupLon, b.DropoffLat, b.DropoffLon,
		b.CabID, cabJSON, b.CabType, b.Distance, b.Fare, b.Status, b.CreatedAt, b.RiderID, riderJSON)
	return err
}

func (s *pgBookings) Replace(ctx context.Context, b models.Booking) error {
	cabJSON, riderJSON, err := bookingSnapshots(b)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET cab_id=$1, cab_snapshot=$2, status=$3, rider_snapshot=$4 WHERE id=$5`,
		b.CabID, cabJSON, b.Status, riderJSON, b.ID)
	return oneRowAffected(res, err)
}

func (s *pgBookings) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookings WHERE id=$1`, id)
	return oneRowAffected(res, err)
}

func (s *pgBookings) ByRider(ctx context.Context, riderID string) ([]models.Booking, error) {
	return s.query(ctx, `SELECT `+bookingCols+` FROM bookings WHERE rider_id=$1 ORDER BY created_at DESC`, riderID)
}

func (s *pgBookings) ByStatus(ctx context.Context, st models.BookingStatus) ([]models.Booking, error) {
	return s.query(ctx, `SELECT `+bookingCols+` FROM bookings WHERE status=$1 ORDER BY created_at DESC`, st)
}

func (s *pgBookings) Recent(ctx context.Context, n int) ([]models.Booking, error) {
	return s.query(ctx, `SELECT `+bookingCols+` FROM bookings ORDER BY created_at DESC LIMIT $1`, n)
}

func bookingSnapshots(b models.Booking) ([]byte, []byte, error) {
	var cabJSON, riderJSON []byte
	var err error
	if b.Cab != nil {
		if cabJSON, err = json.Marshal(b.Cab); err != nil {
			return nil, nil, fmt.Errorf("marshal cab snapshot: %w", err)
		}
	}
	if b.Rider != nil {
		if riderJSON, err = json.Marshal(b.Rider); err != nil {
			return nil, nil, fmt.Errorf("marshal rider snapshot: %w", err)
		}
	}
	return cabJSON, riderJSON, nil
}

type pgPayments struct{ db *sql.DB }

const paymentCols = `id, booking_id, booking_snapshot, rider_id, rider_snapshot, amount, method, status, created_at, transaction_id, details`

func (s *pgPayments) scan(scanner interface{ Scan(...any) error }) (models.Payment, error) {
	var (
		p           models.Payment
		bookingJSON []byte
		riderJSON   []byte
		txn         sql.NullString
	)
	err := scanner.Scan(&p.ID, &p.BookingID, &bookingJSON, &p.RiderID, &riderJSON,
		&p.Amount, &p.Method, &p.Status, &p.CreatedAt, &txn, &p.Details)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Payment{}, ErrNotFound
	}
	if err != nil {
		return models.Payment{}, err
	}
	p.TransactionID = txn.String
	if len(bookingJSON) > 0 {
		var b models.Booking
		if err := json.Unmarshal(bookingJSON, &b); err == nil {
			p.Booking = &b
		}
	}
	if len(riderJSON) > 0 {
		var u models.User
		if err := json.Unmarshal(riderJSON, &u); err == nil {
			p.Rider = &u
		}
	}
	return p, nil
}

func (s *pgPayments) GetByID(ctx context.Context, id string) (models.Payment, error) {
	return s.scan(s.db.QueryRowContext(ctx, `SELECT `+paymentCols+` FROM payments WHERE id=$1`, id))
}

func (s *pgPayments) query(ctx context.Context, q string, args ...any) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Payment
	for rows.Next() {
		p, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *pgPayments) List(ctx context.Context) ([]models.Payment, error) {
	return s.query(ctx, `SELECT `+paymentCols+` FROM payments ORDER BY created_at DESC`)
}

func (s *pgPayments) Insert(ctx context.Context, p models.Payment) error {
	bookingJSON, riderJSON, err := paymentSnapshots(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO payments(`+paymentCols+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.BookingID, bookingJSON, p.RiderID, riderJSON, p.Amount, p.Method, p.Status,
		p.CreatedAt, nullable(p.TransactionID), p.Details)
	return err
}

func (s *pgPayments) Replace(ctx context.Context, p models.Payment) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status=$1, transaction_id=$2, details=$3 WHERE id=$4`,
		p.Status, nullable(p.TransactionID), p.Details, p.ID)
	return oneRowAffected(res, err)
}

func (s *pgPayments) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM payments WHERE id=$1`, id)
	return oneRowAffected(res, err)
}

func (s *pgPayments) ByBooking(ctx context.Context, bookingID string) (models.Payment, error) {
	return s.scan(s.db.QueryRowContext(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE booking_id=$1 ORDER BY created_at LIMIT 1`, bookingID))
}

func (s *pgPayments) ByRider(ctx context.Context, riderID string) ([]models.Payment, error) {
	return s.query(ctx, `SELECT `+paymentCols+` FROM payments WHERE rider_id=$1 ORDER BY created_at DESC`, riderID)
}

func (s *pgPayments) Recent(ctx context.Context, n int) ([]models.Payment, error) {
	return s.query(ctx, `SELECT `+paymentCols+` FROM payments ORDER BY created_at DESC LIMIT $1`, n)
}

func paymentSnapshots(p models.Payment) ([]byte, []byte, error) {
	var bookingJSON, riderJSON []byte
	var err error
	if p.Booking != nil {
		if bookingJSON, err = json.Marshal(p.Booking); err != nil {
			return nil, nil, fmt.Errorf("marshal booking snapshot: %w", err)
		}
	}
	if p.Rider != nil {
		if riderJSON, err = json.Marshal(p.Rider); err != nil {
			return nil, nil, fmt.Errorf("marshal rider snapshot: %w", err)
		}
	}
	return bookingJSON, riderJSON, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func oneRowAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
