package shares

import (
	"context"

	"github.com/lockboxhq/lockbox/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, share *models.ShareCapability) (*models.ShareCapability, error)
	// Consume atomically increments the view count of a live capability and
	// returns the updated row. An exhausted, expired or unknown fingerprint
	// yields common.ErrNotFound; the three cases are indistinguishable.
	Consume(ctx context.Context, tokenFingerprint string, accessorAddress *string) (*models.ShareCapability, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.ShareCapability, error)
	Revoke(ctx context.Context, accountID, id string) error
}
