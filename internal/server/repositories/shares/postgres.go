// Package shares provides the PostgreSQL-backed repository for one-time share
// capabilities. Consumption is a single conditional UPDATE so two concurrent
// accesses can never push view_count past max_views.
package shares

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lockboxhq/lockbox/internal/common"
	"github.com/lockboxhq/lockbox/internal/dbx"
	"github.com/lockboxhq/lockbox/internal/server/models"
)

// PostgresRepository implements share-capability storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const shareColumns = `id, entry_id, account_id, token_fingerprint, max_views, view_count,
	expires_at, accessed_at, accessor_address, include_secret, include_notes, created_at`

func (r *PostgresRepository) Create(ctx context.Context, share *models.ShareCapability) (*models.ShareCapability, error) {
	query := `
		INSERT INTO share_capabilities
			(entry_id, account_id, token_fingerprint, max_views, expires_at, include_secret, include_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		share.EntryID, share.AccountID, share.TokenFingerprint,
		share.MaxViews, share.ExpiresAt, share.IncludeSecret, share.IncludeNotes).
		Scan(&share.ID, &share.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return share, nil
}

func (r *PostgresRepository) Consume(ctx context.Context, tokenFingerprint string, accessorAddress *string) (*models.ShareCapability, error) {
	query := `
		UPDATE share_capabilities
		SET view_count = view_count + 1,
		    accessed_at = now(),
		    accessor_address = COALESCE($2, accessor_address)
		WHERE token_fingerprint = $1
		  AND expires_at > now()
		  AND view_count < max_views
		RETURNING ` + shareColumns
	share := &models.ShareCapability{}
	err := r.db.QueryRowContext(ctx, query, tokenFingerprint, accessorAddress).
		Scan(&share.ID, &share.EntryID, &share.AccountID, &share.TokenFingerprint,
			&share.MaxViews, &share.ViewCount, &share.ExpiresAt,
			&share.AccessedAt, &share.AccessorAddress,
			&share.IncludeSecret, &share.IncludeNotes, &share.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return share, nil
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.ShareCapability, error) {
	query := `SELECT ` + shareColumns + ` FROM share_capabilities WHERE account_id = $1 ORDER BY created_at DESC, id`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.ShareCapability
	for rows.Next() {
		share := &models.ShareCapability{}
		if err := rows.Scan(&share.ID, &share.EntryID, &share.AccountID, &share.TokenFingerprint,
			&share.MaxViews, &share.ViewCount, &share.ExpiresAt,
			&share.AccessedAt, &share.AccessorAddress,
			&share.IncludeSecret, &share.IncludeNotes, &share.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, share)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, accountID, id string) error {
	query := `DELETE FROM share_capabilities WHERE id = $1 AND account_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, accountID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
