// Package httpapi is the HTTP surface of the vault server: a gin router,
// auth/rate-limit/CORS middleware, and handlers that translate JSON requests
// into service calls and service errors into status codes.
package httpapi

import (
	"context"

	"github.com/lockboxhq/lockbox/internal/logging"
	"github.com/lockboxhq/lockbox/internal/server/auth"
	"github.com/lockboxhq/lockbox/internal/server/config"
	"github.com/lockboxhq/lockbox/internal/server/models"
	"github.com/lockboxhq/lockbox/internal/server/oauth"
	"github.com/lockboxhq/lockbox/internal/server/services"
)

// The handler layer consumes the service layer through interfaces so tests
// can substitute fakes without a database.

type AuthService interface {
	Register(ctx context.Context, email, password, displayName string, meta services.ClientMeta) (*models.Account, *services.TokenPair, error)
	Login(ctx context.Context, email, password string, meta services.ClientMeta) (*models.Account, *services.TokenPair, error)
	Refresh(ctx context.Context, rawRefreshToken string) (*models.Account, *services.TokenPair, error)
	Logout(ctx context.Context, rawRefreshToken string, meta services.ClientMeta) error
	LogoutAll(ctx context.Context, accountID string, meta services.ClientMeta) (int64, error)
	Me(ctx context.Context, accountID string) (*models.Account, error)
	VerifyAccessToken(tokenString string) (*auth.Claims, error)
	FindOrLinkOAuth(ctx context.Context, profile services.OAuthProfile, meta services.ClientMeta) (*models.Account, *services.TokenPair, error)
}

type VaultService interface {
	Create(ctx context.Context, accountID string, input services.EntryInput, meta services.ClientMeta) (*models.VaultEntry, error)
	List(ctx context.Context, accountID string, filter models.EntryFilter) ([]*models.VaultEntry, error)
	Get(ctx context.Context, accountID, id string, meta services.ClientMeta) (*services.DecryptedEntry, error)
	Update(ctx context.Context, accountID, id string, patch services.EntryPatch, meta services.ClientMeta) (*models.VaultEntry, error)
	Delete(ctx context.Context, accountID, id string, meta services.ClientMeta) error
	BulkDelete(ctx context.Context, accountID string, ids []string, meta services.ClientMeta) (int64, error)
	ToggleFavorite(ctx context.Context, accountID, id string) (bool, error)
	TogglePinned(ctx context.Context, accountID, id string) (bool, error)
	Health(ctx context.Context, accountID string) (*services.HealthReport, error)
	Export(ctx context.Context, accountID string, meta services.ClientMeta) ([]services.ExportedEntry, error)
	Import(ctx context.Context, accountID string, imported []services.ExportedEntry, meta services.ClientMeta) (int, error)
}

type OrgService interface {
	CreateCollection(ctx context.Context, accountID string, input services.CollectionInput) (*models.Collection, error)
	ListCollections(ctx context.Context, accountID string) ([]*models.Collection, error)
	UpdateCollection(ctx context.Context, accountID, id string, input services.CollectionInput) (*models.Collection, error)
	DeleteCollection(ctx context.Context, accountID, id string) error
	MoveEntries(ctx context.Context, accountID string, entryIDs []string, collectionID *string) (int64, error)
	UpsertTag(ctx context.Context, accountID, name string) (*models.Tag, error)
	ListTags(ctx context.Context, accountID string) ([]*models.Tag, error)
	DeleteTag(ctx context.Context, accountID, id string) error
	SetEntryTags(ctx context.Context, accountID, entryID string, tagIDs []string) error
}

type ShareService interface {
	Create(ctx context.Context, accountID, entryID string, input services.ShareInput, meta services.ClientMeta) (*services.CreatedShare, error)
	Access(ctx context.Context, token string, meta services.ClientMeta) (*services.SharedView, error)
	List(ctx context.Context, accountID string) ([]*models.ShareCapability, error)
	Revoke(ctx context.Context, accountID, id string) error
}

type AuditService interface {
	List(ctx context.Context, accountID string, filter models.AuditFilter) ([]*models.AuditRecord, error)
	Summary(ctx context.Context, accountID string, days int) ([]*models.AuditSummaryRow, error)
}

type SnapshotService interface {
	Enabled() bool
	Create(ctx context.Context, accountID string, meta services.ClientMeta) (*services.Snapshot, error)
}

// Deps bundles everything the router needs.
type Deps struct {
	Config    *config.Config
	Logger    logging.Logger
	Auth      AuthService
	Vault     VaultService
	Org       OrgService
	Share     ShareService
	Audit     AuditService
	Snapshot  SnapshotService
	Providers *oauth.Registry
}
