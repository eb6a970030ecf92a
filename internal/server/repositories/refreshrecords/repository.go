package refreshrecords

import (
	"context"
	"time"

	"github.com/lockboxhq/lockbox/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, accountID, tokenFingerprint string, validity time.Duration) error
	FindActiveByFingerprint(ctx context.Context, tokenFingerprint string) (*models.RefreshRecord, error)
	// RevokeByFingerprint revokes the record iff it is not already revoked
	// and returns the number of rows revoked (0 or 1).
	RevokeByFingerprint(ctx context.Context, tokenFingerprint string) (int64, error)
	RevokeAllForAccount(ctx context.Context, accountID string) (int64, error)
}
