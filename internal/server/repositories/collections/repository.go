package collections

import (
	"context"

	"github.com/lockboxhq/lockbox/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, collection *models.Collection) (*models.Collection, error)
	List(ctx context.Context, accountID string) ([]*models.Collection, error)
	Get(ctx context.Context, accountID, id string) (*models.Collection, error)
	Update(ctx context.Context, collection *models.Collection) error
	Delete(ctx context.Context, accountID, id string) error
}
