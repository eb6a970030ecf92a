package entries

import (
	"context"

	"github.com/lockboxhq/lockbox/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, entry *models.VaultEntry) (*models.VaultEntry, error)
	// List returns metadata only: the ciphertext triple is not selected.
	List(ctx context.Context, accountID string, filter models.EntryFilter) ([]*models.VaultEntry, error)
	// ListAll returns every entry of the account including ciphertext, for
	// health analysis and export.
	ListAll(ctx context.Context, accountID string) ([]*models.VaultEntry, error)
	Get(ctx context.Context, accountID, id string) (*models.VaultEntry, error)
	// GetByID bypasses account scoping. Only the share-access path may call
	// it, after the capability row has authorized the entry id.
	GetByID(ctx context.Context, id string) (*models.VaultEntry, error)
	Update(ctx context.Context, entry *models.VaultEntry) error
	TouchLastUsed(ctx context.Context, accountID, id string) error
	Delete(ctx context.Context, accountID, id string) error
	BulkDelete(ctx context.Context, accountID string, ids []string) (int64, error)
	ToggleFavorite(ctx context.Context, accountID, id string) (bool, error)
	TogglePinned(ctx context.Context, accountID, id string) (bool, error)
	ReplaceTags(ctx context.Context, accountID, entryID string, tagIDs []string) error
	TagsForEntries(ctx context.Context, accountID string, entryIDs []string) (map[string][]string, error)
	MoveToCollection(ctx context.Context, accountID string, entryIDs []string, collectionID *string) (int64, error)
	ClearCollection(ctx context.Context, accountID, collectionID string) error
}
