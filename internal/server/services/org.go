package services

import (
	"context"
	"database/sql"

	"github.com/lockboxhq/lockbox/internal/common"
	"github.com/lockboxhq/lockbox/internal/dbx"
	"github.com/lockboxhq/lockbox/internal/server/models"
	"github.com/lockboxhq/lockbox/internal/server/repositories/repomanager"
)

// CollectionInput is the create/update payload for a collection.
type CollectionInput struct {
	Name        string
	Description *string
	Icon        *string
	Color       *string
}

// OrgService manages collections and tags, the organizational layer on top of
// vault entries.
type OrgService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewOrgService(db *sql.DB, m repomanager.RepositoryManager) *OrgService {
	return &OrgService{db: db, repomanager: m}
}

func (s *OrgService) CreateCollection(ctx context.Context, accountID string, input CollectionInput) (*models.Collection, error) {
	if input.Name == "" {
		return nil, common.NewValidationError("name", "is required")
	}
	return s.repomanager.Collections(s.db).Create(ctx, &models.Collection{
		AccountID:   accountID,
		Name:        input.Name,
		Description: input.Description,
		Icon:        input.Icon,
		Color:       input.Color,
	})
}

func (s *OrgService) ListCollections(ctx context.Context, accountID string) ([]*models.Collection, error) {
	return s.repomanager.Collections(s.db).List(ctx, accountID)
}

func (s *OrgService) UpdateCollection(ctx context.Context, accountID, id string, input CollectionInput) (*models.Collection, error) {
	if input.Name == "" {
		return nil, common.NewValidationError("name", "is required")
	}
	collection, err := s.repomanager.Collections(s.db).Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	collection.Name = input.Name
	collection.Description = input.Description
	collection.Icon = input.Icon
	collection.Color = input.Color
	if err := s.repomanager.Collections(s.db).Update(ctx, collection); err != nil {
		return nil, err
	}
	return collection, nil
}

// DeleteCollection removes the collection and re-parents its entries to
// uncategorised, atomically.
func (s *OrgService) DeleteCollection(ctx context.Context, accountID, id string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Entries(tx).ClearCollection(ctx, accountID, id); err != nil {
			return err
		}
		return s.repomanager.Collections(tx).Delete(ctx, accountID, id)
	})
}

// MoveEntries re-parents the caller's entries among ids into the collection,
// or to uncategorised when collectionID is nil. Returns how many moved.
func (s *OrgService) MoveEntries(ctx context.Context, accountID string, entryIDs []string, collectionID *string) (int64, error) {
	if collectionID != nil {
		if _, err := s.repomanager.Collections(s.db).Get(ctx, accountID, *collectionID); err != nil {
			return 0, err
		}
	}
	return s.repomanager.Entries(s.db).MoveToCollection(ctx, accountID, entryIDs, collectionID)
}

// UpsertTag creates the tag or returns the existing one with that name.
func (s *OrgService) UpsertTag(ctx context.Context, accountID, name string) (*models.Tag, error) {
	if name == "" {
		return nil, common.NewValidationError("name", "is required")
	}
	return s.repomanager.Tags(s.db).Upsert(ctx, accountID, name)
}

func (s *OrgService) ListTags(ctx context.Context, accountID string) ([]*models.Tag, error) {
	return s.repomanager.Tags(s.db).List(ctx, accountID)
}

// DeleteTag removes the tag; join rows cascade, entries stay.
func (s *OrgService) DeleteTag(ctx context.Context, accountID, id string) error {
	return s.repomanager.Tags(s.db).Delete(ctx, accountID, id)
}

// SetEntryTags replaces the tag set of an entry with the given tag ids. Every
// id must name a tag the caller owns.
func (s *OrgService) SetEntryTags(ctx context.Context, accountID, entryID string, tagIDs []string) error {
	if _, err := s.repomanager.Entries(s.db).Get(ctx, accountID, entryID); err != nil {
		return err
	}
	owned, err := s.repomanager.Tags(s.db).CountOwned(ctx, accountID, tagIDs)
	if err != nil {
		return err
	}
	if owned != len(tagIDs) {
		return common.NewValidationError("tagIds", "unknown tag")
	}
	return s.repomanager.Entries(s.db).ReplaceTags(ctx, accountID, entryID, tagIDs)
}
