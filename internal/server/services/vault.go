package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lockboxhq/lockbox/internal/common"
	"github.com/lockboxhq/lockbox/internal/cryptox"
	"github.com/lockboxhq/lockbox/internal/dbx"
	"github.com/lockboxhq/lockbox/internal/server/config"
	"github.com/lockboxhq/lockbox/internal/server/models"
	"github.com/lockboxhq/lockbox/internal/server/repositories/repomanager"
	"github.com/lockboxhq/lockbox/internal/strength"
)

// EntryInput is the validated create/import payload.
type EntryInput struct {
	Title        string
	Username     string
	Secret       string
	Site         *string
	Notes        *string
	CollectionID *string
	Tags         []string // tag names, upserted idempotently
	IsFavorite   bool
	IsPinned     bool
}

// EntryPatch is a partial update. Nil fields are unchanged. An empty
// CollectionID moves the entry to uncategorised.
type EntryPatch struct {
	Title        *string
	Username     *string
	Secret       *string
	Site         *string
	Notes        *string
	CollectionID *string
	IsFavorite   *bool
	IsPinned     *bool
	Tags         *[]string
}

// DecryptedEntry pairs an entry with its recovered plaintext secret.
type DecryptedEntry struct {
	Entry  *models.VaultEntry
	Secret string
}

// HealthReport classifies every owned secret. An entry may appear in several
// buckets (weak and old, for instance). Reused counts each member of a
// duplicate set.
type HealthReport struct {
	Total    int `json:"total"`
	Strong   int `json:"strong"`
	Medium   int `json:"medium"`
	Weak     int `json:"weak"`
	NoSecret int `json:"noSecret"`
	Old      int `json:"old"`
	Reused   int `json:"reused"`
}

// ExportedEntry is the decrypted interchange shape for export and import.
type ExportedEntry struct {
	Title      string     `json:"title"`
	Username   string     `json:"username,omitempty"`
	Password   string     `json:"password"`
	Site       *string    `json:"site,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	IsFavorite bool       `json:"isFavorite,omitempty"`
	IsPinned   bool       `json:"isPinned,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
}

// entryAgeThreshold is the age past which health analysis flags an entry old.
const entryAgeThreshold = 90 * 24 * time.Hour

// VaultService implements the encrypted-record engine. The per-account key is
// unwrapped from the stored blob for the duration of one call and wiped after.
type VaultService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       *AuditService
	masterKey   []byte
}

func NewVaultService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, cfg *config.Config) *VaultService {
	return &VaultService{db: db, repomanager: m, audit: audit, masterKey: cfg.MasterKey}
}

// userKey loads the account and unwraps its per-user key. The caller must
// wipe the returned key before returning.
func (s *VaultService) userKey(ctx context.Context, accountID string) ([]byte, error) {
	account, err := s.repomanager.Accounts(s.db).FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(account.WrappedKey) == 0 {
		return nil, common.ErrCrypto
	}
	return cryptox.Unwrap(account.WrappedKey, s.masterKey)
}

// Create encrypts and stores a new entry, upserting and assigning its tags in
// the same transaction.
func (s *VaultService) Create(ctx context.Context, accountID string, input EntryInput, meta ClientMeta) (*models.VaultEntry, error) {
	if input.Title == "" {
		return nil, common.NewValidationError("title", "is required")
	}
	if input.CollectionID != nil {
		if _, err := s.repomanager.Collections(s.db).Get(ctx, accountID, *input.CollectionID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, common.NewValidationError("collectionId", "unknown collection")
			}
			return nil, err
		}
	}

	key, err := s.userKey(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	ciphertext, nonce, tag, err := cryptox.EncryptField([]byte(input.Secret), key)
	if err != nil {
		return nil, err
	}

	entry := &models.VaultEntry{
		AccountID:        accountID,
		Title:            input.Title,
		Username:         input.Username,
		Site:             input.Site,
		Notes:            input.Notes,
		SecretCiphertext: ciphertext,
		SecretIV:         nonce,
		SecretAuthTag:    tag,
		CollectionID:     input.CollectionID,
		IsFavorite:       input.IsFavorite,
		IsPinned:         input.IsPinned,
		Strength:         strength.Score(input.Secret),
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Entries(tx).Create(ctx, entry)
		if err != nil {
			return err
		}
		entry = created
		return s.assignTagNames(ctx, tx, accountID, entry, input.Tags)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, accountID, models.AuditCreate, meta, WithEntry(entry.ID, entry.Title))
	return entry, nil
}

// assignTagNames upserts tags by name and replaces the entry's tag set.
func (s *VaultService) assignTagNames(ctx context.Context, tx dbx.DBTX, accountID string, entry *models.VaultEntry, names []string) error {
	if names == nil {
		return nil
	}
	tagRepo := s.repomanager.Tags(tx)
	tagIDs := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		tag, err := tagRepo.Upsert(ctx, accountID, name)
		if err != nil {
			return err
		}
		tagIDs = append(tagIDs, tag.ID)
	}
	if err := s.repomanager.Entries(tx).ReplaceTags(ctx, accountID, entry.ID, tagIDs); err != nil {
		return err
	}
	entry.TagIDs = tagIDs
	return nil
}

// List returns entry metadata (no secrets), pinned first, then favourites,
// then most recently updated.
func (s *VaultService) List(ctx context.Context, accountID string, filter models.EntryFilter) ([]*models.VaultEntry, error) {
	repo := s.repomanager.Entries(s.db)
	result, err := repo.List(ctx, accountID, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(result))
	for i, entry := range result {
		ids[i] = entry.ID
	}
	tagsByEntry, err := repo.TagsForEntries(ctx, accountID, ids)
	if err != nil {
		return nil, err
	}
	for _, entry := range result {
		entry.TagIDs = tagsByEntry[entry.ID]
	}
	return result, nil
}

// Get decrypts one entry, marks it used and writes a reveal audit.
func (s *VaultService) Get(ctx context.Context, accountID, id string, meta ClientMeta) (*DecryptedEntry, error) {
	repo := s.repomanager.Entries(s.db)
	entry, err := repo.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	key, err := s.userKey(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	plaintext, err := cryptox.DecryptField(entry.SecretCiphertext, entry.SecretIV, entry.SecretAuthTag, key)
	if err != nil {
		return nil, err
	}

	if err := repo.TouchLastUsed(ctx, accountID, id); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, accountID, models.AuditReveal, meta, WithEntry(entry.ID, entry.Title))
	return &DecryptedEntry{Entry: entry, Secret: string(plaintext)}, nil
}

// Update applies a partial patch. A changed secret is re-encrypted with a
// fresh nonce, all three ciphertext components rewritten together and the
// strength recomputed.
func (s *VaultService) Update(ctx context.Context, accountID, id string, patch EntryPatch, meta ClientMeta) (*models.VaultEntry, error) {
	entry, err := s.repomanager.Entries(s.db).Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		if *patch.Title == "" {
			return nil, common.NewValidationError("title", "is required")
		}
		entry.Title = *patch.Title
	}
	if patch.Username != nil {
		entry.Username = *patch.Username
	}
	if patch.Site != nil {
		entry.Site = nilIfEmpty(*patch.Site)
	}
	if patch.Notes != nil {
		entry.Notes = nilIfEmpty(*patch.Notes)
	}
	if patch.CollectionID != nil {
		if *patch.CollectionID == "" {
			entry.CollectionID = nil
		} else {
			if _, err := s.repomanager.Collections(s.db).Get(ctx, accountID, *patch.CollectionID); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return nil, common.NewValidationError("collectionId", "unknown collection")
				}
				return nil, err
			}
			entry.CollectionID = patch.CollectionID
		}
	}
	if patch.IsFavorite != nil {
		entry.IsFavorite = *patch.IsFavorite
	}
	if patch.IsPinned != nil {
		entry.IsPinned = *patch.IsPinned
	}

	if patch.Secret != nil {
		key, err := s.userKey(ctx, accountID)
		if err != nil {
			return nil, err
		}
		ciphertext, nonce, tag, encErr := cryptox.EncryptField([]byte(*patch.Secret), key)
		common.WipeByteArray(key)
		if encErr != nil {
			return nil, encErr
		}
		entry.SecretCiphertext = ciphertext
		entry.SecretIV = nonce
		entry.SecretAuthTag = tag
		entry.Strength = strength.Score(*patch.Secret)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Entries(tx).Update(ctx, entry); err != nil {
			return err
		}
		if patch.Tags != nil {
			return s.assignTagNames(ctx, tx, accountID, entry, *patch.Tags)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, accountID, models.AuditUpdate, meta, WithEntry(entry.ID, entry.Title))
	return entry, nil
}

// Delete removes one entry; join rows cascade.
func (s *VaultService) Delete(ctx context.Context, accountID, id string, meta ClientMeta) error {
	entry, err := s.repomanager.Entries(s.db).Get(ctx, accountID, id)
	if err != nil {
		return err
	}
	if err := s.repomanager.Entries(s.db).Delete(ctx, accountID, id); err != nil {
		return err
	}
	s.audit.Record(ctx, accountID, models.AuditDelete, meta, WithEntry(entry.ID, entry.Title))
	return nil
}

// BulkDelete removes the caller's entries among ids and returns the count
// actually deleted.
func (s *VaultService) BulkDelete(ctx context.Context, accountID string, ids []string, meta ClientMeta) (int64, error) {
	n, err := s.repomanager.Entries(s.db).BulkDelete(ctx, accountID, ids)
	if err != nil {
		return 0, err
	}
	s.audit.Record(ctx, accountID, models.AuditDelete, meta, WithDetails(map[string]int64{"count": n}))
	return n, nil
}

// ToggleFavorite flips the favourite flag and returns the new value.
func (s *VaultService) ToggleFavorite(ctx context.Context, accountID, id string) (bool, error) {
	return s.repomanager.Entries(s.db).ToggleFavorite(ctx, accountID, id)
}

// TogglePinned flips the pinned flag and returns the new value.
func (s *VaultService) TogglePinned(ctx context.Context, accountID, id string) (bool, error) {
	return s.repomanager.Entries(s.db).TogglePinned(ctx, accountID, id)
}

// Health decrypts every owned secret once and classifies the vault. A record
// that fails decryption counts as noSecret and never fails the analysis.
func (s *VaultService) Health(ctx context.Context, accountID string) (*HealthReport, error) {
	entries, err := s.repomanager.Entries(s.db).ListAll(ctx, accountID)
	if err != nil {
		return nil, err
	}

	key, err := s.userKey(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	report := &HealthReport{Total: len(entries)}
	now := time.Now()
	seen := make(map[string]int)

	for _, entry := range entries {
		plaintext, err := cryptox.DecryptField(entry.SecretCiphertext, entry.SecretIV, entry.SecretAuthTag, key)
		if err != nil || len(plaintext) == 0 {
			report.NoSecret++
		} else {
			switch score := strength.Score(string(plaintext)); {
			case score >= 4:
				report.Strong++
			case score >= 2:
				report.Medium++
			default:
				report.Weak++
			}
			seen[string(plaintext)]++
		}
		if now.Sub(entry.CreatedAt) > entryAgeThreshold {
			report.Old++
		}
	}

	// Every member of a duplicate set counts once.
	for _, n := range seen {
		if n > 1 {
			report.Reused += n
		}
	}
	return report, nil
}

// Export returns all owned entries with decrypted secrets and writes an
// export audit. Undecryptable records are exported with an empty password.
func (s *VaultService) Export(ctx context.Context, accountID string, meta ClientMeta) ([]ExportedEntry, error) {
	entries, err := s.repomanager.Entries(s.db).ListAll(ctx, accountID)
	if err != nil {
		return nil, err
	}

	key, err := s.userKey(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	result := make([]ExportedEntry, 0, len(entries))
	for _, entry := range entries {
		exported := ExportedEntry{
			Title:      entry.Title,
			Username:   entry.Username,
			Site:       entry.Site,
			Notes:      entry.Notes,
			IsFavorite: entry.IsFavorite,
			IsPinned:   entry.IsPinned,
		}
		createdAt := entry.CreatedAt
		exported.CreatedAt = &createdAt
		if plaintext, err := cryptox.DecryptField(entry.SecretCiphertext, entry.SecretIV, entry.SecretAuthTag, key); err == nil {
			exported.Password = string(plaintext)
		}
		result = append(result, exported)
	}

	s.audit.Record(ctx, accountID, models.AuditExport, meta, WithDetails(map[string]int{"count": len(result)}))
	return result, nil
}

// Import inserts entries best-effort: each one that fails validation or
// encryption is skipped, as is any row whose (title, username) pair the
// account already holds, so re-importing the same export changes nothing.
// Returns the number inserted and writes a single import audit with the
// final count.
func (s *VaultService) Import(ctx context.Context, accountID string, imported []ExportedEntry, meta ClientMeta) (int, error) {
	key, err := s.userKey(ctx, accountID)
	if err != nil {
		return 0, err
	}
	defer common.WipeByteArray(key)

	repo := s.repomanager.Entries(s.db)
	existing, err := repo.List(ctx, accountID, models.EntryFilter{})
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[e.Title+"\x00"+e.Username] = true
	}

	count := 0
	for _, item := range imported {
		if item.Title == "" {
			continue
		}
		dupKey := item.Title + "\x00" + item.Username
		if seen[dupKey] {
			continue
		}
		ciphertext, nonce, tag, err := cryptox.EncryptField([]byte(item.Password), key)
		if err != nil {
			continue
		}
		entry := &models.VaultEntry{
			AccountID:        accountID,
			Title:            item.Title,
			Username:         item.Username,
			Site:             item.Site,
			Notes:            item.Notes,
			SecretCiphertext: ciphertext,
			SecretIV:         nonce,
			SecretAuthTag:    tag,
			IsFavorite:       item.IsFavorite,
			IsPinned:         item.IsPinned,
			Strength:         strength.Score(item.Password),
		}
		if _, err := repo.Create(ctx, entry); err != nil {
			continue
		}
		seen[dupKey] = true
		count++
	}

	s.audit.Record(ctx, accountID, models.AuditImport, meta, WithDetails(map[string]int{"count": count}))
	return count, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
