// Package refreshrecords provides the PostgreSQL-backed repository for
// refresh-credential handles. Raw tokens are never stored; rows are keyed by
// the SHA-256 fingerprint of the token.
package refreshrecords

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lockboxhq/lockbox/internal/common"
	"github.com/lockboxhq/lockbox/internal/dbx"
	"github.com/lockboxhq/lockbox/internal/server/models"
)

// PostgresRepository implements refresh-record storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a record expiring at now+validity.
func (r *PostgresRepository) Create(ctx context.Context, accountID, tokenFingerprint string, validity time.Duration) error {
	query := `
		INSERT INTO refresh_records (account_id, token_fingerprint, expires_at)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, accountID, tokenFingerprint, time.Now().Add(validity)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindActiveByFingerprint returns the non-revoked, unexpired record for the
// fingerprint, or common.ErrNotFound.
func (r *PostgresRepository) FindActiveByFingerprint(ctx context.Context, tokenFingerprint string) (*models.RefreshRecord, error) {
	query := `
		SELECT id, account_id, token_fingerprint, revoked, expires_at, created_at
		FROM refresh_records
		WHERE token_fingerprint = $1 AND NOT revoked AND expires_at > now()
	`
	record := &models.RefreshRecord{}
	err := r.db.QueryRowContext(ctx, query, tokenFingerprint).
		Scan(&record.ID, &record.AccountID, &record.TokenFingerprint,
			&record.Revoked, &record.ExpiresAt, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return record, nil
}

// RevokeByFingerprint marks the record revoked. The NOT revoked predicate
// makes it a compare-and-set: of two concurrent revocations of the same
// token exactly one reports a row. Revoking an absent or already revoked
// record is not an error, it revokes nothing.
func (r *PostgresRepository) RevokeByFingerprint(ctx context.Context, tokenFingerprint string) (int64, error) {
	query := `UPDATE refresh_records SET revoked = true WHERE token_fingerprint = $1 AND NOT revoked`
	res, err := r.db.ExecContext(ctx, query, tokenFingerprint)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// RevokeAllForAccount revokes every active record of the account and returns
// the number of records revoked.
func (r *PostgresRepository) RevokeAllForAccount(ctx context.Context, accountID string) (int64, error) {
	query := `UPDATE refresh_records SET revoked = true WHERE account_id = $1 AND NOT revoked`
	res, err := r.db.ExecContext(ctx, query, accountID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
