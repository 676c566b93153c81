package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/xbinlabs/mining-rental/internal/model"
)

// MessageRepo provides methods to work with the per-booking message threads.
type MessageRepo struct {
	db *sql.DB
}

// NewMessageRepo constructs a MessageRepo with the given DB handle.
func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, booking_id, sender_id, content, message_type,
	is_read, is_from_admin, created_at`

// Create inserts a message on the pool handle.
func (r *MessageRepo) Create(ctx context.Context, m *model.Message) error {
	return r.create(ctx, r.db, m)
}

// CreateTx inserts a message inside tx so system messages land atomically
// with the booking transition that produced them.
func (r *MessageRepo) CreateTx(ctx context.Context, tx *sql.Tx, m *model.Message) error {
	return r.create(ctx, tx, m)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *MessageRepo) create(ctx context.Context, ex execer, m *model.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	const q = `INSERT INTO booking_messages
		(id, booking_id, sender_id, content, message_type, is_read, is_from_admin)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := ex.ExecContext(ctx, q,
		m.ID, m.BookingID, m.SenderID, m.Content, m.MessageType, m.IsRead, m.IsFromAdmin)
	return err
}

// ListByBooking returns a booking's thread in chronological order.
func (r *MessageRepo) ListByBooking(ctx context.Context, bookingID string) ([]model.Message, error) {
	const q = `SELECT ` + messageColumns + ` FROM booking_messages
		WHERE booking_id = ? ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(
			&m.ID, &m.BookingID, &m.SenderID, &m.Content, &m.MessageType,
			&m.IsRead, &m.IsFromAdmin, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// MarkRead flags one side of a thread as read. fromAdmin selects which
// side: users clear admin messages, admins clear user messages.
func (r *MessageRepo) MarkRead(ctx context.Context, bookingID string, fromAdmin bool) error {
	const q = `UPDATE booking_messages SET is_read = 1
		WHERE booking_id = ? AND is_from_admin = ? AND is_read = 0`
	_, err := r.db.ExecContext(ctx, q, bookingID, fromAdmin)
	return err
}

// UnreadCountForUser counts unread admin messages across the user's bookings.
func (r *MessageRepo) UnreadCountForUser(ctx context.Context, userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM booking_messages m
		JOIN bookings b ON b.id = m.booking_id
		WHERE b.user_id = ? AND m.is_from_admin = 1 AND m.is_read = 0`
	var n int
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&n)
	return n, err
}

// UnreadCountForAdmin counts unread user messages across all bookings.
func (r *MessageRepo) UnreadCountForAdmin(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM booking_messages
		WHERE is_from_admin = 0 AND is_read = 0`
	var n int
	err := r.db.QueryRowContext(ctx, q).Scan(&n)
	return n, err
}
