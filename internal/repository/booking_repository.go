package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/xbinlabs/mining-rental/internal/model"
)

// BookingRepo provides methods to work with bookings. State transitions run
// inside caller-supplied transactions so the booking row, the machine
// counters and the system message commit or roll back together.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo constructs a BookingRepo with the given DB handle.
func NewBookingRepo(db *sql.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

// Begin opens a transaction on the underlying handle.
func (r *BookingRepo) Begin(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

const bookingColumns = `b.id, b.user_id, b.machine_id, b.rental_duration, b.quantity,
	b.total_price, b.status, b.payment_address, b.transaction_hash,
	b.user_notes, b.admin_notes, b.payment_sent_at, b.approved_at, b.rejected_at,
	b.approved_by_id, b.created_at, b.updated_at`

func scanBooking(row interface{ Scan(...interface{}) error }) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID, &b.UserID, &b.MachineID, &b.RentalDuration, &b.Quantity,
		&b.TotalPrice, &b.Status, &b.PaymentAddress, &b.TransactionHash,
		&b.UserNotes, &b.AdminNotes, &b.PaymentSentAt, &b.ApprovedAt, &b.RejectedAt,
		&b.ApprovedByID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateTx inserts a new pending booking inside tx.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	const q = `INSERT INTO bookings
		(id, user_id, machine_id, rental_duration, quantity, total_price, status, user_notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		b.ID, b.UserID, b.MachineID, b.RentalDuration, b.Quantity, b.TotalPrice, b.Status, b.UserNotes)
	return err
}

// GetByID loads a booking with its machine summary.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = ? LIMIT 1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// GetForUpdateTx loads and write-locks a booking row inside tx.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = ? FOR UPDATE`
	b, err := scanBooking(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// ListByUser returns all bookings belonging to a user, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings b
		WHERE b.user_id = ? ORDER BY b.created_at DESC`
	return r.list(ctx, q, userID)
}

// ListAll returns a page of bookings, optionally filtered by status.
func (r *BookingRepo) ListAll(ctx context.Context, status string, limit, offset int) ([]model.Booking, error) {
	if status != "" {
		const q = `SELECT ` + bookingColumns + ` FROM bookings b
			WHERE b.status = ? ORDER BY b.created_at DESC LIMIT ? OFFSET ?`
		return r.list(ctx, q, status, limit, offset)
	}
	const q = `SELECT ` + bookingColumns + ` FROM bookings b
		ORDER BY b.created_at DESC LIMIT ? OFFSET ?`
	return r.list(ctx, q, limit, offset)
}

func (r *BookingRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

// Count returns booking totals, optionally filtered by status.
func (r *BookingRepo) Count(ctx context.Context, status string) (int, error) {
	var n int
	if status != "" {
		err := r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bookings WHERE status = ?`, status).Scan(&n)
		return n, err
	}
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&n)
	return n, err
}

// CountByStatus returns a map of status -> number of bookings.
func (r *BookingRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// SumRevenue totals the price of approved bookings.
func (r *BookingRepo) SumRevenue(ctx context.Context) (float64, error) {
	var total sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		`SELECT SUM(total_price) FROM bookings WHERE status = ?`,
		model.BookingApproved).Scan(&total)
	return total.Float64, err
}

// SetPaymentAddressTx moves a pending booking to awaiting_payment inside tx.
func (r *BookingRepo) SetPaymentAddressTx(ctx context.Context, tx *sql.Tx, id, address string) error {
	const q = `UPDATE bookings SET status = ?, payment_address = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`
	return execOne(ctx, tx, q, model.BookingAwaitingPayment, address, id)
}

// SetPaymentSentTx records the user's payment claim inside tx.
func (r *BookingRepo) SetPaymentSentTx(ctx context.Context, tx *sql.Tx, id string, txHash *string, at time.Time) error {
	const q = `UPDATE bookings SET status = ?, transaction_hash = ?, payment_sent_at = ?,
		updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return execOne(ctx, tx, q, model.BookingPaymentSent, txHash, at, id)
}

// SetApprovedTx finalizes a booking inside tx.
func (r *BookingRepo) SetApprovedTx(ctx context.Context, tx *sql.Tx, id, adminID string, notes *string, at time.Time) error {
	const q = `UPDATE bookings SET status = ?, approved_by_id = ?, admin_notes = ?, approved_at = ?,
		updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return execOne(ctx, tx, q, model.BookingApproved, adminID, notes, at, id)
}

// SetRejectedTx marks a booking rejected inside tx, recording which admin
// made the call.
func (r *BookingRepo) SetRejectedTx(ctx context.Context, tx *sql.Tx, id, adminID string, reason *string, at time.Time) error {
	const q = `UPDATE bookings SET status = ?, approved_by_id = ?, admin_notes = ?, rejected_at = ?,
		updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return execOne(ctx, tx, q, model.BookingRejected, adminID, reason, at, id)
}

// SetCancelledTx marks a booking cancelled inside tx.
func (r *BookingRepo) SetCancelledTx(ctx context.Context, tx *sql.Tx, id string) error {
	const q = `UPDATE bookings SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return execOne(ctx, tx, q, model.BookingCancelled, id)
}

func execOne(ctx context.Context, tx *sql.Tx, q string, args ...interface{}) error {
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBookingNotFound
	}
	return nil
}
