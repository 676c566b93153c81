package repository // repository defines data access for the MySQL schema

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xbinlabs/mining-rental/internal/model"
)

// UserRepo provides methods to work with users in the database.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo constructs a UserRepo with the given DB handle.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, password_hash, full_name, role, is_active,
	email_verified, email_verification_token, email_verification_expires,
	password_reset_token, password_reset_expires, last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.IsActive,
		&u.EmailVerified, &u.EmailVerificationToken, &u.EmailVerificationExpires,
		&u.PasswordResetToken, &u.PasswordResetExpires, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts the user. The email is stored lowercased; duplicate emails
// map to ErrEmailExists. The caller supplies a prehashed password.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	const q = `INSERT INTO users
		(id, email, password_hash, full_name, role, is_active, email_verified,
		 email_verification_token, email_verification_expires)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		u.ID, u.Email, u.PasswordHash, u.FullName, u.Role, u.IsActive, u.EmailVerified,
		u.EmailVerificationToken, u.EmailVerificationExpires)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = ? LIMIT 1`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = ? LIMIT 1`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// GetByResetToken fetches a user holding an unexpired password-reset token.
func (r *UserRepo) GetByResetToken(ctx context.Context, token string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
		WHERE password_reset_token = ? AND password_reset_expires > ? LIMIT 1`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, token, time.Now().UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// GetByVerificationToken fetches a user holding an unexpired email-verification token.
func (r *UserRepo) GetByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
		WHERE email_verification_token = ? AND email_verification_expires > ? LIMIT 1`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, token, time.Now().UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// List returns a page of users ordered by creation time, newest first.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
		ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}
	return result, rows.Err()
}

// Count returns the total number of users.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// UpdateProfile changes the user's display name.
func (r *UserRepo) UpdateProfile(ctx context.Context, id, fullName string) error {
	const q = `UPDATE users SET full_name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, fullName, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePassword replaces the password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	const q = `UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, hash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetResetToken stores a password-reset token with its expiry.
func (r *UserRepo) SetResetToken(ctx context.Context, id, token string, expires time.Time) error {
	const q = `UPDATE users SET password_reset_token = ?, password_reset_expires = ?,
		updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, token, expires, id)
	return err
}

// ClearResetToken resets the password hash and wipes the reset token in one
// statement so a used token cannot be replayed.
func (r *UserRepo) ClearResetToken(ctx context.Context, id, newHash string) error {
	const q = `UPDATE users SET password_hash = ?, password_reset_token = NULL,
		password_reset_expires = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, newHash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetVerificationToken stores a fresh email-verification token.
func (r *UserRepo) SetVerificationToken(ctx context.Context, id, token string, expires time.Time) error {
	const q = `UPDATE users SET email_verification_token = ?, email_verification_expires = ?,
		updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, token, expires, id)
	return err
}

// MarkEmailVerified flags the email as verified and wipes the token.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, id string) error {
	const q = `UPDATE users SET email_verified = 1, email_verification_token = NULL,
		email_verification_expires = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// TouchLastLogin records a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id string) error {
	const q = `UPDATE users SET last_login_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, time.Now().UTC(), id)
	return err
}

// SetActive toggles the account on or off.
func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) error {
	const q = `UPDATE users SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, active, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetRole changes the user's role.
func (r *UserRepo) SetRole(ctx context.Context, id, role string) error {
	const q = `UPDATE users SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, role, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}
