// Package collections provides the PostgreSQL-backed repository for
// per-account entry folders.
package collections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lockboxhq/lockbox/internal/common"
	"github.com/lockboxhq/lockbox/internal/dbx"
	"github.com/lockboxhq/lockbox/internal/server/models"
)

// PostgresRepository implements collection storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, collection *models.Collection) (*models.Collection, error) {
	query := `
		INSERT INTO collections (account_id, name, description, icon, color)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		collection.AccountID, collection.Name, collection.Description, collection.Icon, collection.Color).
		Scan(&collection.ID, &collection.CreatedAt, &collection.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return collection, nil
}

func (r *PostgresRepository) List(ctx context.Context, accountID string) ([]*models.Collection, error) {
	query := `
		SELECT id, account_id, name, description, icon, color, created_at, updated_at
		FROM collections
		WHERE account_id = $1
		ORDER BY name, id
	`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Collection
	for rows.Next() {
		item := &models.Collection{}
		if err := rows.Scan(&item.ID, &item.AccountID, &item.Name, &item.Description,
			&item.Icon, &item.Color, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, accountID, id string) (*models.Collection, error) {
	query := `
		SELECT id, account_id, name, description, icon, color, created_at, updated_at
		FROM collections
		WHERE id = $1 AND account_id = $2
	`
	item := &models.Collection{}
	err := r.db.QueryRowContext(ctx, query, id, accountID).
		Scan(&item.ID, &item.AccountID, &item.Name, &item.Description,
			&item.Icon, &item.Color, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) Update(ctx context.Context, collection *models.Collection) error {
	query := `
		UPDATE collections SET name = $3, description = $4, icon = $5, color = $6, updated_at = now()
		WHERE id = $1 AND account_id = $2
	`
	res, err := r.db.ExecContext(ctx, query,
		collection.ID, collection.AccountID,
		collection.Name, collection.Description, collection.Icon, collection.Color)
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

// Delete removes the collection row. Callers must detach child entries in the
// same transaction first (entries.ClearCollection).
func (r *PostgresRepository) Delete(ctx context.Context, accountID, id string) error {
	query := `DELETE FROM collections WHERE id = $1 AND account_id = $2`
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
