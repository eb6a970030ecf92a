// Package accounts provides the PostgreSQL-backed repository for identity
// rows: accounts and their OAuth provider links.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lockboxhq/lockbox/internal/common"
	"github.com/lockboxhq/lockbox/internal/dbx"
	"github.com/lockboxhq/lockbox/internal/server/models"
)

// PostgresRepository implements account storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (email, credential_hash, display_name, wrapped_key)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		account.Email, account.CredentialHash, account.DisplayName, account.WrappedKey).
		Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return account, nil
}

const accountColumns = `id, email, credential_hash, display_name, wrapped_key, created_at, updated_at`

func (r *PostgresRepository) scanAccount(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(&account.ID, &account.Email, &account.CredentialHash,
		&account.DisplayName, &account.WrappedKey, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return account, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.scanAccount(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) SetWrappedKey(ctx context.Context, accountID string, wrappedKey []byte) error {
	query := `UPDATE accounts SET wrapped_key = $2, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, accountID, wrappedKey)
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

func (r *PostgresRepository) FindLink(ctx context.Context, provider, providerAccountID string) (*models.OAuthLink, error) {
	query := `
		SELECT id, account_id, provider, provider_account_id, access_token, refresh_token, created_at
		FROM oauth_links
		WHERE provider = $1 AND provider_account_id = $2
	`
	link := &models.OAuthLink{}
	err := r.db.QueryRowContext(ctx, query, provider, providerAccountID).
		Scan(&link.ID, &link.AccountID, &link.Provider, &link.ProviderAccountID,
			&link.AccessToken, &link.RefreshToken, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return link, nil
}

func (r *PostgresRepository) CreateLink(ctx context.Context, link *models.OAuthLink) (*models.OAuthLink, error) {
	query := `
		INSERT INTO oauth_links (account_id, provider, provider_account_id, access_token, refresh_token)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		link.AccountID, link.Provider, link.ProviderAccountID, link.AccessToken, link.RefreshToken).
		Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return link, nil
}
