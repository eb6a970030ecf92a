package accounts

import (
	"context"

	"github.com/lockboxhq/lockbox/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	SetWrappedKey(ctx context.Context, accountID string, wrappedKey []byte) error
	FindLink(ctx context.Context, provider, providerAccountID string) (*models.OAuthLink, error)
	CreateLink(ctx context.Context, link *models.OAuthLink) (*models.OAuthLink, error)
}
