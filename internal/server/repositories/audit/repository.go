package audit

import (
	"context"

	"github.com/lockboxhq/lockbox/internal/server/models"
)

// Repository is append-and-read only. No update or delete exists by design of
// the table contract; do not add one.
type Repository interface {
	Append(ctx context.Context, record *models.AuditRecord) error
	List(ctx context.Context, accountID string, filter models.AuditFilter) ([]*models.AuditRecord, error)
	Summary(ctx context.Context, accountID string, days int) ([]*models.AuditSummaryRow, error)
}
