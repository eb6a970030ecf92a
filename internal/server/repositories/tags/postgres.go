// Package tags provides the PostgreSQL-backed repository for per-account
// labels. Uniqueness on (account_id, name) makes creation idempotent.
package tags

import (
	"context"
	"fmt"
	"strings"

	"github.com/lockboxhq/lockbox/internal/common"
	"github.com/lockboxhq/lockbox/internal/dbx"
	"github.com/lockboxhq/lockbox/internal/server/models"
)

// PostgresRepository implements tag storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, accountID, name string) (*models.Tag, error) {
	// The no-op DO UPDATE makes RETURNING yield the existing row on conflict.
	query := `
		INSERT INTO tags (account_id, name)
		VALUES ($1, $2)
		ON CONFLICT (account_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, account_id, name, created_at
	`
	tag := &models.Tag{}
	err := r.db.QueryRowContext(ctx, query, accountID, name).
		Scan(&tag.ID, &tag.AccountID, &tag.Name, &tag.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tag, nil
}

func (r *PostgresRepository) List(ctx context.Context, accountID string) ([]*models.Tag, error) {
	query := `SELECT id, account_id, name, created_at FROM tags WHERE account_id = $1 ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Tag
	for rows.Next() {
		tag := &models.Tag{}
		if err := rows.Scan(&tag.ID, &tag.AccountID, &tag.Name, &tag.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, accountID, id string) error {
	query := `DELETE FROM tags WHERE id = $1 AND account_id = $2`
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

func (r *PostgresRepository) CountOwned(ctx context.Context, accountID string, tagIDs []string) (int, error) {
	if len(tagIDs) == 0 {
		return 0, nil
	}
	args := []any{accountID}
	parts := make([]string, len(tagIDs))
	for i, id := range tagIDs {
		args = append(args, id)
		parts[i] = fmt.Sprintf("$%d", i+2)
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM tags WHERE account_id = $1 AND id IN (%s)`,
		strings.Join(parts, ", "))
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
