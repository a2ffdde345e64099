// README: Booking store backed by PostgreSQL.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"cabnex/internal/types"
)

const uniqueViolation = "23505"

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const bookingColumns = `
    id::text, booking_code, user_id, car_category, service_type, trip_type,
    package_type, package_id, exact_location, start_place_id, start_address, destinations,
    pickup_at, return_at, distance_km, total_amount, received_amount, currency,
    status, status_version, assigned_vendor,
    created_at, updated_at, started_at, completed_at, cancelled_at`

// bookingKey parses the primary key so lookups compare uuid to uuid.
func bookingKey(id types.ID) (uuid.UUID, error) {
	key, err := uuid.Parse(string(id))
	if err != nil {
		return uuid.Nil, ErrNotFound
	}
	return key, nil
}

// Create inserts a pending booking; the database assigns the booking code.
func (s *Store) Create(ctx context.Context, b *Booking) error {
	key, err := uuid.Parse(string(b.ID))
	if err != nil {
		return fmt.Errorf("booking id: %w", err)
	}
	return s.db.QueryRow(ctx, `
        INSERT INTO bookings (
            id, user_id, car_category, service_type, trip_type,
            package_type, package_id, exact_location, start_place_id, start_address,
            destinations, pickup_at, return_at, distance_km, total_amount,
            received_amount, currency, status, status_version, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8, $9, $10,
            $11, $12, $13, $14, $15,
            $16, $17, $18, $19, $20, $21
        )
        RETURNING booking_code`,
		key,
		string(b.UserID),
		b.CarCategory,
		b.ServiceType,
		string(b.TripType),
		b.PackageType,
		b.PackageID,
		b.ExactLocation,
		b.StartLocation.PlaceID,
		b.StartLocation.Address,
		nonNil(b.Destinations),
		b.PickupTime,
		b.ReturnTime,
		b.DistanceKm,
		b.TotalAmount.Amount,
		b.ReceivedAmount.Amount,
		b.TotalAmount.Currency,
		string(b.Status),
		b.StatusVersion,
		b.CreatedAt,
		b.UpdatedAt,
	).Scan(&b.Code)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Booking, error) {
	key, err := bookingKey(id)
	if err != nil {
		return nil, err
	}
	b, err := scanBooking(s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) ListByUser(ctx context.Context, userID types.ID) ([]Booking, error) {
	return s.list(ctx, `WHERE user_id = $1`, string(userID))
}

func (s *Store) ListByVendor(ctx context.Context, vendorID types.ID) ([]Booking, error) {
	return s.list(ctx, `WHERE assigned_vendor = $1`, string(vendorID))
}

func (s *Store) list(ctx context.Context, where string, arg any) ([]Booking, error) {
	rows, err := s.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings `+where+` ORDER BY created_at DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// UpdateStatus moves a booking from one status to another if nobody changed
// it since version was read, recording vendorID when given. It reports
// false on a lost race.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, vendorID *types.ID) (bool, error) {
	key, err := bookingKey(id)
	if err != nil {
		return false, nil
	}
	var vendor *string
	if vendorID != nil {
		v := string(*vendorID)
		vendor = &v
	}
	tag, err := s.db.Exec(ctx, `
        UPDATE bookings
        SET status = $1,
            status_version = status_version + 1,
            assigned_vendor = COALESCE($2, assigned_vendor),
            updated_at = NOW(),
            started_at = CASE WHEN $1 = 'inProgress' THEN NOW() ELSE started_at END,
            completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
            cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
        WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to),
		vendor,
		key,
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RecordPayment stores the capture and confirms the booking in one
// transaction. A replayed payment id is reported as a conflict.
func (s *Store) RecordPayment(ctx context.Context, p Payment, from Status, version int) (bool, error) {
	key, err := bookingKey(p.BookingID)
	if err != nil {
		return false, nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
        UPDATE bookings
        SET status = $1,
            status_version = status_version + 1,
            received_amount = $2,
            updated_at = NOW()
        WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(StatusConfirmed),
		p.Amount.Amount,
		key,
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO booking_payments (booking_id, order_id, payment_id, signature, amount, currency)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		key,
		p.OrderID,
		p.PaymentID,
		p.Signature,
		p.Amount.Amount,
		p.Amount.Currency,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var vendor sql.NullString
	var returnAt, startedAt, completedAt, cancelledAt sql.NullTime
	err := row.Scan(
		&b.ID, &b.Code, &b.UserID, &b.CarCategory, &b.ServiceType, &b.TripType,
		&b.PackageType, &b.PackageID, &b.ExactLocation, &b.StartLocation.PlaceID, &b.StartLocation.Address, &b.Destinations,
		&b.PickupTime, &returnAt, &b.DistanceKm, &b.TotalAmount.Amount, &b.ReceivedAmount.Amount, &b.TotalAmount.Currency,
		&b.Status, &b.StatusVersion, &vendor,
		&b.CreatedAt, &b.UpdatedAt, &startedAt, &completedAt, &cancelledAt,
	)
	if err != nil {
		return nil, err
	}
	if vendor.Valid {
		v := types.ID(vendor.String)
		b.AssignedVendor = &v
	}
	b.ReceivedAmount.Currency = b.TotalAmount.Currency
	b.ReturnTime = toTimePtr(returnAt)
	b.StartedAt = toTimePtr(startedAt)
	b.CompletedAt = toTimePtr(completedAt)
	b.CancelledAt = toTimePtr(cancelledAt)
	return &b, nil
}

func nonNil(v []Location) []Location {
	if v == nil {
		return []Location{}
	}
	return v
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
