package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/xbinlabs/mining-rental/internal/model"
)

// LegalRepo provides methods to work with legal documents. Each document
// type (terms, privacy, ...) has exactly one row; saving an existing type
// overwrites it and bumps the version.
type LegalRepo struct {
	db *sql.DB
}

// NewLegalRepo constructs a LegalRepo with the given DB handle.
func NewLegalRepo(db *sql.DB) *LegalRepo {
	return &LegalRepo{db: db}
}

const legalColumns = `id, doc_type, title, content, version, created_at, updated_at`

// GetByType fetches the current document for a type.
func (r *LegalRepo) GetByType(ctx context.Context, docType string) (*model.LegalDocument, error) {
	const q = `SELECT ` + legalColumns + ` FROM legal_documents WHERE doc_type = ? LIMIT 1`
	var d model.LegalDocument
	err := r.db.QueryRowContext(ctx, q, docType).Scan(
		&d.ID, &d.Type, &d.Title, &d.Content, &d.Version, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLegalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// List returns all documents ordered by type.
func (r *LegalRepo) List(ctx context.Context) ([]model.LegalDocument, error) {
	const q = `SELECT ` + legalColumns + ` FROM legal_documents ORDER BY doc_type`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.LegalDocument
	for rows.Next() {
		var d model.LegalDocument
		if err := rows.Scan(
			&d.ID, &d.Type, &d.Title, &d.Content, &d.Version, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// Upsert creates the document for a type or replaces its content,
// incrementing the version on replace.
func (r *LegalRepo) Upsert(ctx context.Context, docType, title, content string) (*model.LegalDocument, error) {
	const q = `INSERT INTO legal_documents (id, doc_type, title, content, version)
		VALUES (?, ?, ?, ?, 1)
		ON DUPLICATE KEY UPDATE
			title = VALUES(title), content = VALUES(content),
			version = version + 1, updated_at = CURRENT_TIMESTAMP`
	if _, err := r.db.ExecContext(ctx, q, uuid.NewString(), docType, title, content); err != nil {
		return nil, err
	}
	return r.GetByType(ctx, docType)
}

// Delete removes a document type entirely.
func (r *LegalRepo) Delete(ctx context.Context, docType string) error {
	const q = `DELETE FROM legal_documents WHERE doc_type = ?`
	res, err := r.db.ExecContext(ctx, q, docType)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrLegalNotFound
	}
	return nil
}
