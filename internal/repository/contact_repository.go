package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/xbinlabs/mining-rental/internal/model"
)

// ContactRepo provides methods to work with contact-form submissions.
type ContactRepo struct {
	db *sql.DB
}

// NewContactRepo constructs a ContactRepo with the given DB handle.
func NewContactRepo(db *sql.DB) *ContactRepo {
	return &ContactRepo{db: db}
}

const contactColumns = `id, name, email, subject, message, status,
	ip_address, user_agent, created_at, updated_at`

// Create stores a submission with status "new".
func (r *ContactRepo) Create(ctx context.Context, c *model.ContactSubmission) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	const q = `INSERT INTO contact_submissions
		(id, name, email, subject, message, status, ip_address, user_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.Name, c.Email, c.Subject, c.Message, c.Status, c.IPAddress, c.UserAgent)
	return err
}

// GetByID fetches one submission.
func (r *ContactRepo) GetByID(ctx context.Context, id string) (*model.ContactSubmission, error) {
	const q = `SELECT ` + contactColumns + ` FROM contact_submissions WHERE id = ? LIMIT 1`
	var c model.ContactSubmission
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&c.ID, &c.Name, &c.Email, &c.Subject, &c.Message, &c.Status,
		&c.IPAddress, &c.UserAgent, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns a page of submissions, optionally filtered by status.
func (r *ContactRepo) List(ctx context.Context, status string, limit, offset int) ([]model.ContactSubmission, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status != "" {
		const q = `SELECT ` + contactColumns + ` FROM contact_submissions
			WHERE status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
		rows, err = r.db.QueryContext(ctx, q, status, limit, offset)
	} else {
		const q = `SELECT ` + contactColumns + ` FROM contact_submissions
			ORDER BY created_at DESC LIMIT ? OFFSET ?`
		rows, err = r.db.QueryContext(ctx, q, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.ContactSubmission
	for rows.Next() {
		var c model.ContactSubmission
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Email, &c.Subject, &c.Message, &c.Status,
			&c.IPAddress, &c.UserAgent, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// SetStatus moves a submission through the triage flow.
func (r *ContactRepo) SetStatus(ctx context.Context, id, status string) error {
	const q = `UPDATE contact_submissions SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrContactNotFound
	}
	return nil
}

// Delete removes a submission permanently.
func (r *ContactRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contact_submissions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrContactNotFound
	}
	return nil
}

// CountNew returns the number of untriaged submissions.
func (r *ContactRepo) CountNew(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contact_submissions WHERE status = ?`,
		model.ContactNew).Scan(&n)
	return n, err
}
