package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/xbinlabs/mining-rental/internal/model"
)

// WalletRepo provides methods to work with per-user crypto wallets. Wallets
// are created lazily: the first read for a user seeds one row per supported
// currency.
type WalletRepo struct {
	db *sql.DB
}

// NewWalletRepo constructs a WalletRepo with the given DB handle.
func NewWalletRepo(db *sql.DB) *WalletRepo {
	return &WalletRepo{db: db}
}

const walletColumns = `id, user_id, crypto_type, balance, pending_balance,
	wallet_address, is_active, created_at, updated_at`

// EnsureWallets creates any missing wallet rows for the user, one per
// supported currency. Existing rows are left alone.
func (r *WalletRepo) EnsureWallets(ctx context.Context, userID string) error {
	existing, err := r.listTypes(ctx, userID)
	if err != nil {
		return err
	}
	var missing []string
	for _, ct := range model.CryptoTypes {
		if _, ok := existing[ct]; !ok {
			missing = append(missing, ct)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	query := `INSERT INTO wallets (id, user_id, crypto_type) VALUES `
	args := make([]interface{}, 0, len(missing)*3)
	for i, ct := range missing {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, uuid.NewString(), userID, ct)
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	// A concurrent EnsureWallets may have inserted the same rows first.
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return nil
	}
	return err
}

func (r *WalletRepo) listTypes(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT crypto_type FROM wallets WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var ct string
		if err := rows.Scan(&ct); err != nil {
			return nil, err
		}
		out[ct] = struct{}{}
	}
	return out, rows.Err()
}

// ListByUser returns every wallet row for the user ordered by currency.
func (r *WalletRepo) ListByUser(ctx context.Context, userID string) ([]model.Wallet, error) {
	const q = `SELECT ` + walletColumns + ` FROM wallets
		WHERE user_id = ? ORDER BY crypto_type`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Wallet
	for rows.Next() {
		var w model.Wallet
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.CryptoType, &w.Balance, &w.PendingBalance,
			&w.WalletAddress, &w.IsActive, &w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// Get fetches one wallet by user and currency.
func (r *WalletRepo) Get(ctx context.Context, userID, cryptoType string) (*model.Wallet, error) {
	const q = `SELECT ` + walletColumns + ` FROM wallets
		WHERE user_id = ? AND crypto_type = ? LIMIT 1`
	var w model.Wallet
	err := r.db.QueryRowContext(ctx, q, userID, cryptoType).Scan(
		&w.ID, &w.UserID, &w.CryptoType, &w.Balance, &w.PendingBalance,
		&w.WalletAddress, &w.IsActive, &w.CreatedAt, &w.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// UpdateAddress stores the user's payout address for one currency.
func (r *WalletRepo) UpdateAddress(ctx context.Context, userID, cryptoType, address string) error {
	const q = `UPDATE wallets SET wallet_address = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND crypto_type = ?`
	res, err := r.db.ExecContext(ctx, q, address, userID, cryptoType)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// AddBalance credits a wallet.
func (r *WalletRepo) AddBalance(ctx context.Context, userID, cryptoType string, amount float64) error {
	const q = `UPDATE wallets SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND crypto_type = ?`
	res, err := r.db.ExecContext(ctx, q, amount, userID, cryptoType)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// SubtractBalance debits a wallet. The guard in the WHERE clause refuses to
// drive the balance negative; a short row count maps to ErrConflict when the
// wallet exists but lacks funds.
func (r *WalletRepo) SubtractBalance(ctx context.Context, userID, cryptoType string, amount float64) error {
	const q = `UPDATE wallets SET balance = balance - ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND crypto_type = ? AND balance >= ?`
	res, err := r.db.ExecContext(ctx, q, amount, userID, cryptoType, amount)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, gerr := r.Get(ctx, userID, cryptoType); gerr != nil {
			return gerr
		}
		return ErrConflict
	}
	return nil
}
