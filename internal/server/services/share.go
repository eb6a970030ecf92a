package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lockboxhq/lockbox/internal/common"
	"github.com/lockboxhq/lockbox/internal/cryptox"
	"github.com/lockboxhq/lockbox/internal/server/config"
	"github.com/lockboxhq/lockbox/internal/server/models"
	"github.com/lockboxhq/lockbox/internal/server/repositories/repomanager"
)

// shareTokenSize is the entropy, in bytes, of a share token.
const shareTokenSize = 32

// ShareInput configures a new capability. Zero values take the defaults:
// one view, 24 hours, secret included, notes excluded.
type ShareInput struct {
	MaxViews       int
	ExpiresInHours int
	IncludeSecret  *bool
	IncludeNotes   *bool
}

// CreatedShare carries the raw token. It exists only in this response; the
// server keeps the fingerprint.
type CreatedShare struct {
	Share *models.ShareCapability
	Token string
}

// SharedView is the selective disclosure returned to an anonymous accessor.
type SharedView struct {
	Title         string  `json:"title"`
	Username      string  `json:"username,omitempty"`
	Site          *string `json:"site,omitempty"`
	Secret        *string `json:"password,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	ViewsLeft     int     `json:"viewsLeft"`
	ExpiresAt     string  `json:"expiresAt"`
	IncludeSecret bool    `json:"-"`
}

// ShareService issues and redeems one-time share capabilities.
type ShareService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       *AuditService
	masterKey   []byte
}

func NewShareService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, cfg *config.Config) *ShareService {
	return &ShareService{db: db, repomanager: m, audit: audit, masterKey: cfg.MasterKey}
}

// Create issues a capability for an entry the caller owns and returns the raw
// token exactly once.
func (s *ShareService) Create(ctx context.Context, accountID, entryID string, input ShareInput, meta ClientMeta) (*CreatedShare, error) {
	entry, err := s.repomanager.Entries(s.db).Get(ctx, accountID, entryID)
	if err != nil {
		return nil, err
	}

	maxViews := input.MaxViews
	if maxViews <= 0 {
		maxViews = 1
	}
	hours := input.ExpiresInHours
	if hours <= 0 {
		hours = 24
	}
	includeSecret := true
	if input.IncludeSecret != nil {
		includeSecret = *input.IncludeSecret
	}
	includeNotes := false
	if input.IncludeNotes != nil {
		includeNotes = *input.IncludeNotes
	}

	token, err := common.MakeRandURLToken(shareTokenSize)
	if err != nil {
		return nil, fmt.Errorf("%w: generating share token", common.ErrInternal)
	}
	share := &models.ShareCapability{
		EntryID:          entryID,
		AccountID:        accountID,
		TokenFingerprint: cryptox.Fingerprint(token),
		MaxViews:         maxViews,
		ExpiresAt:        time.Now().Add(time.Duration(hours) * time.Hour),
		IncludeSecret:    includeSecret,
		IncludeNotes:     includeNotes,
	}
	share, err = s.repomanager.Shares(s.db).Create(ctx, share)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, accountID, models.AuditShare, meta, WithEntry(entry.ID, entry.Title),
		WithDetails(map[string]any{"maxViews": maxViews, "expiresInHours": hours}))
	return &CreatedShare{Share: share, Token: token}, nil
}

// Access redeems a token anonymously. Unknown, expired, exhausted and revoked
// tokens are indistinguishable: all yield common.ErrNotFound. A successful
// access is audited against the issuing account.
func (s *ShareService) Access(ctx context.Context, token string, meta ClientMeta) (*SharedView, error) {
	var accessor *string
	if meta.Address != "" {
		accessor = &meta.Address
	}
	share, err := s.repomanager.Shares(s.db).Consume(ctx, cryptox.Fingerprint(token), accessor)
	if err != nil {
		return nil, common.ErrNotFound
	}

	// The capability row authorizes this unscoped lookup.
	entry, err := s.repomanager.Entries(s.db).GetByID(ctx, share.EntryID)
	if err != nil {
		return nil, common.ErrNotFound
	}

	view := &SharedView{
		Title:     entry.Title,
		Username:  entry.Username,
		Site:      entry.Site,
		ViewsLeft: share.MaxViews - share.ViewCount,
		ExpiresAt: share.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if share.IncludeNotes {
		view.Notes = entry.Notes
	}
	if share.IncludeSecret {
		secret, err := s.decryptForIssuer(ctx, share.AccountID, entry)
		if err != nil {
			return nil, common.ErrNotFound
		}
		view.Secret = &secret
	}

	s.audit.Record(ctx, share.AccountID, models.AuditShareAccess, meta, WithEntry(entry.ID, entry.Title))
	return view, nil
}

func (s *ShareService) decryptForIssuer(ctx context.Context, accountID string, entry *models.VaultEntry) (string, error) {
	account, err := s.repomanager.Accounts(s.db).FindByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if len(account.WrappedKey) == 0 {
		return "", common.ErrCrypto
	}
	key, err := cryptox.Unwrap(account.WrappedKey, s.masterKey)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(key)

	plaintext, err := cryptox.DecryptField(entry.SecretCiphertext, entry.SecretIV, entry.SecretAuthTag, key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// List returns the caller's capabilities, newest first. Raw tokens are never
// recoverable.
func (s *ShareService) List(ctx context.Context, accountID string) ([]*models.ShareCapability, error) {
	return s.repomanager.Shares(s.db).ListByAccount(ctx, accountID)
}

// Revoke deletes a capability the caller owns. An unknown id yields
// common.ErrNotFound.
func (s *ShareService) Revoke(ctx context.Context, accountID, id string) error {
	return s.repomanager.Shares(s.db).Revoke(ctx, accountID, id)
}
