// Package audit provides the PostgreSQL-backed repository for the append-only
// action log.
package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/lockboxhq/lockbox/internal/dbx"
	"github.com/lockboxhq/lockbox/internal/server/models"
)

// PostgresRepository implements audit storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, record *models.AuditRecord) error {
	query := `
		INSERT INTO audit_records (account_id, action, entry_id, entry_title, network_address, user_agent, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var details any
	if len(record.Details) > 0 {
		details = record.Details
	}
	if _, err := r.db.ExecContext(ctx, query,
		record.AccountID, record.Action, record.EntryID, record.EntryTitle,
		record.NetworkAddress, record.UserAgent, details); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, accountID string, filter models.AuditFilter) ([]*models.AuditRecord, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, account_id, action, entry_id, entry_title, network_address, user_agent, details, created_at
		FROM audit_records
		WHERE account_id = $1`)
	args := []any{accountID}

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Action != "" {
		fmt.Fprintf(&sb, ` AND action = %s`, next(filter.Action))
	}
	if filter.From != nil {
		fmt.Fprintf(&sb, ` AND created_at >= %s`, next(*filter.From))
	}
	if filter.To != nil {
		fmt.Fprintf(&sb, ` AND created_at <= %s`, next(*filter.To))
	}

	sb.WriteString(` ORDER BY created_at DESC, id DESC`)

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	fmt.Fprintf(&sb, ` LIMIT %s`, next(limit))
	if filter.Offset > 0 {
		fmt.Fprintf(&sb, ` OFFSET %s`, next(filter.Offset))
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.AuditRecord
	for rows.Next() {
		record := &models.AuditRecord{}
		if err := rows.Scan(&record.ID, &record.AccountID, &record.Action,
			&record.EntryID, &record.EntryTitle, &record.NetworkAddress,
			&record.UserAgent, &record.Details, &record.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Summary(ctx context.Context, accountID string, days int) ([]*models.AuditSummaryRow, error) {
	if days <= 0 {
		days = 30
	}
	query := `
		SELECT action, COUNT(*)
		FROM audit_records
		WHERE account_id = $1 AND created_at > now() - make_interval(days => $2)
		GROUP BY action
		ORDER BY action
	`
	rows, err := r.db.QueryContext(ctx, query, accountID, days)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.AuditSummaryRow
	for rows.Next() {
		row := &models.AuditSummaryRow{}
		if err := rows.Scan(&row.Action, &row.Count); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
