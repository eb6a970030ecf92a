// Package entries provides the PostgreSQL-backed repository for encrypted
// vault entries. Every query predicates on account_id; ownership is enforced
// in SQL, never as a post-fetch check.
package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lockboxhq/lockbox/internal/common"
	"github.com/lockboxhq/lockbox/internal/dbx"
	"github.com/lockboxhq/lockbox/internal/server/models"
)

// PostgresRepository implements entry storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, entry *models.VaultEntry) (*models.VaultEntry, error) {
	query := `
		INSERT INTO vault_entries
			(account_id, title, username, site, notes,
			 secret_ciphertext, secret_iv, secret_auth_tag,
			 collection_id, is_favorite, is_pinned, strength)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		entry.AccountID, entry.Title, entry.Username, entry.Site, entry.Notes,
		entry.SecretCiphertext, entry.SecretIV, entry.SecretAuthTag,
		entry.CollectionID, entry.IsFavorite, entry.IsPinned, entry.Strength).
		Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

const metaColumns = `id, account_id, title, username, site, notes,
	collection_id, is_favorite, is_pinned, strength, last_used_at, created_at, updated_at`

const fullColumns = `id, account_id, title, username, site, notes,
	secret_ciphertext, secret_iv, secret_auth_tag,
	collection_id, is_favorite, is_pinned, strength, last_used_at, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralises ILIKE metacharacters so user input matches as a
// literal substring.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// placeholders renders "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func (r *PostgresRepository) List(ctx context.Context, accountID string, filter models.EntryFilter) ([]*models.VaultEntry, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + metaColumns + ` FROM vault_entries WHERE account_id = $1`)
	args := []any{accountID}

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Query != "" {
		p := next("%" + escapeLike(filter.Query) + "%")
		fmt.Fprintf(&sb, ` AND (title ILIKE %[1]s OR username ILIKE %[1]s OR site ILIKE %[1]s OR notes ILIKE %[1]s)`, p)
	}
	if filter.CollectionID != nil {
		fmt.Fprintf(&sb, ` AND collection_id = %s`, next(*filter.CollectionID))
	}
	if filter.IsFavorite != nil {
		fmt.Fprintf(&sb, ` AND is_favorite = %s`, next(*filter.IsFavorite))
	}
	if filter.IsPinned != nil {
		fmt.Fprintf(&sb, ` AND is_pinned = %s`, next(*filter.IsPinned))
	}
	if filter.StrengthMin != nil {
		fmt.Fprintf(&sb, ` AND strength >= %s`, next(*filter.StrengthMin))
	}
	if filter.StrengthMax != nil {
		fmt.Fprintf(&sb, ` AND strength <= %s`, next(*filter.StrengthMax))
	}
	if len(filter.TagIDs) > 0 {
		start := len(args) + 1
		for _, id := range filter.TagIDs {
			args = append(args, id)
		}
		fmt.Fprintf(&sb,
			` AND EXISTS (SELECT 1 FROM vault_entry_tags vet WHERE vet.entry_id = vault_entries.id AND vet.tag_id IN (%s))`,
			placeholders(start, len(filter.TagIDs)))
	}

	// Pinned first, then favourites, newest change first; ties break by id.
	sb.WriteString(` ORDER BY is_pinned DESC, is_favorite DESC, updated_at DESC, id`)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.VaultEntry
	for rows.Next() {
		item := &models.VaultEntry{}
		if err := rows.Scan(&item.ID, &item.AccountID, &item.Title, &item.Username,
			&item.Site, &item.Notes, &item.CollectionID, &item.IsFavorite, &item.IsPinned,
			&item.Strength, &item.LastUsedAt, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) ListAll(ctx context.Context, accountID string) ([]*models.VaultEntry, error) {
	query := `SELECT ` + fullColumns + ` FROM vault_entries WHERE account_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.VaultEntry
	for rows.Next() {
		item := &models.VaultEntry{}
		if err := scanFull(rows, item); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFull(row rowScanner, item *models.VaultEntry) error {
	return row.Scan(&item.ID, &item.AccountID, &item.Title, &item.Username,
		&item.Site, &item.Notes,
		&item.SecretCiphertext, &item.SecretIV, &item.SecretAuthTag,
		&item.CollectionID, &item.IsFavorite, &item.IsPinned,
		&item.Strength, &item.LastUsedAt, &item.CreatedAt, &item.UpdatedAt)
}

func (r *PostgresRepository) Get(ctx context.Context, accountID, id string) (*models.VaultEntry, error) {
	query := `SELECT ` + fullColumns + ` FROM vault_entries WHERE id = $1 AND account_id = $2`
	item := &models.VaultEntry{}
	if err := scanFull(r.db.QueryRowContext(ctx, query, id, accountID), item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.VaultEntry, error) {
	query := `SELECT ` + fullColumns + ` FROM vault_entries WHERE id = $1`
	item := &models.VaultEntry{}
	if err := scanFull(r.db.QueryRowContext(ctx, query, id), item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return item, nil
}

// Update rewrites all mutable fields, including the ciphertext triple, in one
// statement. The service layer loads, patches, then calls Update.
func (r *PostgresRepository) Update(ctx context.Context, entry *models.VaultEntry) error {
	query := `
		UPDATE vault_entries SET
			title = $3, username = $4, site = $5, notes = $6,
			secret_ciphertext = $7, secret_iv = $8, secret_auth_tag = $9,
			collection_id = $10, is_favorite = $11, is_pinned = $12, strength = $13,
			updated_at = now()
		WHERE id = $1 AND account_id = $2
	`
	res, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.AccountID,
		entry.Title, entry.Username, entry.Site, entry.Notes,
		entry.SecretCiphertext, entry.SecretIV, entry.SecretAuthTag,
		entry.CollectionID, entry.IsFavorite, entry.IsPinned, entry.Strength)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireOneRow(res)
}

func (r *PostgresRepository) TouchLastUsed(ctx context.Context, accountID, id string) error {
	query := `UPDATE vault_entries SET last_used_at = now() WHERE id = $1 AND account_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, accountID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireOneRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, accountID, id string) error {
	query := `DELETE FROM vault_entries WHERE id = $1 AND account_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, accountID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireOneRow(res)
}

func (r *PostgresRepository) BulkDelete(ctx context.Context, accountID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := []any{accountID}
	for _, id := range ids {
		args = append(args, id)
	}
	query := fmt.Sprintf(`DELETE FROM vault_entries WHERE account_id = $1 AND id IN (%s)`,
		placeholders(2, len(ids)))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ToggleFavorite(ctx context.Context, accountID, id string) (bool, error) {
	return r.toggle(ctx, accountID, id, "is_favorite")
}

func (r *PostgresRepository) TogglePinned(ctx context.Context, accountID, id string) (bool, error) {
	return r.toggle(ctx, accountID, id, "is_pinned")
}

func (r *PostgresRepository) toggle(ctx context.Context, accountID, id, column string) (bool, error) {
	query := fmt.Sprintf(
		`UPDATE vault_entries SET %[1]s = NOT %[1]s, updated_at = now()
		 WHERE id = $1 AND account_id = $2
		 RETURNING %[1]s`, column)
	var value bool
	if err := r.db.QueryRowContext(ctx, query, id, accountID).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, common.ErrNotFound
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return value, nil
}

// ReplaceTags swaps the entry's tag set. Both the entry and every tag must
// belong to the account; foreign rows are silently excluded by the join.
func (r *PostgresRepository) ReplaceTags(ctx context.Context, accountID, entryID string, tagIDs []string) error {
	del := `
		DELETE FROM vault_entry_tags
		WHERE entry_id IN (SELECT id FROM vault_entries WHERE id = $1 AND account_id = $2)
	`
	if _, err := r.db.ExecContext(ctx, del, entryID, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if len(tagIDs) == 0 {
		return nil
	}
	args := []any{entryID, accountID}
	for _, id := range tagIDs {
		args = append(args, id)
	}
	ins := fmt.Sprintf(`
		INSERT INTO vault_entry_tags (entry_id, tag_id)
		SELECT e.id, t.id
		FROM vault_entries e
		JOIN tags t ON t.account_id = e.account_id
		WHERE e.id = $1 AND e.account_id = $2 AND t.id IN (%s)
		ON CONFLICT DO NOTHING
	`, placeholders(3, len(tagIDs)))
	if _, err := r.db.ExecContext(ctx, ins, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) TagsForEntries(ctx context.Context, accountID string, entryIDs []string) (map[string][]string, error) {
	result := make(map[string][]string)
	if len(entryIDs) == 0 {
		return result, nil
	}
	args := []any{accountID}
	for _, id := range entryIDs {
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		SELECT vet.entry_id, vet.tag_id
		FROM vault_entry_tags vet
		JOIN vault_entries e ON e.id = vet.entry_id
		WHERE e.account_id = $1 AND vet.entry_id IN (%s)
	`, placeholders(2, len(entryIDs)))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entryID, tagID string
		if err := rows.Scan(&entryID, &tagID); err != nil {
			return nil, err
		}
		result[entryID] = append(result[entryID], tagID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MoveToCollection re-parents entries. A nil collectionID moves them to
// uncategorised. Returns the number of entries actually moved.
func (r *PostgresRepository) MoveToCollection(ctx context.Context, accountID string, entryIDs []string, collectionID *string) (int64, error) {
	if len(entryIDs) == 0 {
		return 0, nil
	}
	args := []any{accountID, collectionID}
	for _, id := range entryIDs {
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		UPDATE vault_entries SET collection_id = $2, updated_at = now()
		WHERE account_id = $1 AND id IN (%s)
	`, placeholders(3, len(entryIDs)))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

// ClearCollection detaches all entries from a collection before it is deleted.
func (r *PostgresRepository) ClearCollection(ctx context.Context, accountID, collectionID string) error {
	query := `UPDATE vault_entries SET collection_id = NULL WHERE account_id = $1 AND collection_id = $2`
	if _, err := r.db.ExecContext(ctx, query, accountID, collectionID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
