package tags

import (
	"context"

	"github.com/lockboxhq/lockbox/internal/server/models"
)

type Repository interface {
	// Upsert creates the tag or returns the existing row for (accountID, name).
	// Concurrent upserts of the same pair collapse to a single row.
	Upsert(ctx context.Context, accountID, name string) (*models.Tag, error)
	List(ctx context.Context, accountID string) ([]*models.Tag, error)
	Delete(ctx context.Context, accountID, id string) error
	// CountOwned returns how many of the given tag ids belong to the account.
	CountOwned(ctx context.Context, accountID string, tagIDs []string) (int, error)
}
