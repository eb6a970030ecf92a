package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/lockboxhq/lockbox/internal/common"
	"github.com/lockboxhq/lockbox/internal/cryptox"
	"github.com/lockboxhq/lockbox/internal/dbx"
	"github.com/lockboxhq/lockbox/internal/logging"
	"github.com/lockboxhq/lockbox/internal/server/config"
	"github.com/lockboxhq/lockbox/internal/server/models"
	accountsrepo "github.com/lockboxhq/lockbox/internal/server/repositories/accounts"
	auditrepo "github.com/lockboxhq/lockbox/internal/server/repositories/audit"
	collectionsrepo "github.com/lockboxhq/lockbox/internal/server/repositories/collections"
	entriesrepo "github.com/lockboxhq/lockbox/internal/server/repositories/entries"
	refreshrepo "github.com/lockboxhq/lockbox/internal/server/repositories/refreshrecords"
	sharesrepo "github.com/lockboxhq/lockbox/internal/server/repositories/shares"
	tagsrepo "github.com/lockboxhq/lockbox/internal/server/repositories/tags"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

var testMasterKey = func() []byte {
	k := make([]byte, cryptox.KeySize)
	for i := range k {
		k[i] = byte(i + 1)
	}
	return k
}()

func testConfig() *config.Config {
	return &config.Config{
		MasterKey:       testMasterKey,
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 2 * time.Hour,
		BcryptCost:      4, // bcrypt.MinCost, keeps tests fast
	}
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// wrappedTestKey returns a fresh per-user key wrapped under testMasterKey.
func wrappedTestKey(t *testing.T) []byte {
	t.Helper()
	userKey, err := cryptox.GenerateUserKey()
	if err != nil {
		t.Fatalf("GenerateUserKey: %v", err)
	}
	wrapped, err := cryptox.Wrap(userKey, testMasterKey)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	return wrapped
}

// encryptWithWrapped encrypts a secret under the key inside wrapped.
func encryptWithWrapped(t *testing.T, wrapped []byte, secret string) (ciphertext, nonce, tag []byte) {
	t.Helper()
	key, err := cryptox.Unwrap(wrapped, testMasterKey)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	ciphertext, nonce, tag, err = cryptox.EncryptField([]byte(secret), key)
	if err != nil {
		t.Fatalf("EncryptField: %v", err)
	}
	return ciphertext, nonce, tag
}

// --- in-memory fakes ---

type fakeAccountsRepo struct {
	seq      int
	accounts map[string]*models.Account
	links    map[string]*models.OAuthLink

	createErr error
	findErr   error

	setWrappedKeyCalls int
}

func newFakeAccountsRepo() *fakeAccountsRepo {
	return &fakeAccountsRepo{
		accounts: map[string]*models.Account{},
		links:    map[string]*models.OAuthLink{},
	}
}

func (f *fakeAccountsRepo) add(a *models.Account) *models.Account {
	if a.ID == "" {
		f.seq++
		a.ID = fmt.Sprintf("acc-%d", f.seq)
	}
	f.accounts[a.ID] = a
	return a
}

func (f *fakeAccountsRepo) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if a.Email != nil {
		for _, existing := range f.accounts {
			if existing.Email != nil && *existing.Email == *a.Email {
				return nil, common.ErrConflict
			}
		}
	}
	return f.add(a), nil
}

func (f *fakeAccountsRepo) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if a, ok := f.accounts[id]; ok {
		return a, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeAccountsRepo) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, a := range f.accounts {
		if a.Email != nil && *a.Email == email {
			return a, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeAccountsRepo) SetWrappedKey(ctx context.Context, accountID string, wrappedKey []byte) error {
	a, ok := f.accounts[accountID]
	if !ok {
		return common.ErrNotFound
	}
	f.setWrappedKeyCalls++
	a.WrappedKey = wrappedKey
	return nil
}

func (f *fakeAccountsRepo) FindLink(ctx context.Context, provider, providerAccountID string) (*models.OAuthLink, error) {
	if l, ok := f.links[provider+"|"+providerAccountID]; ok {
		return l, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeAccountsRepo) CreateLink(ctx context.Context, link *models.OAuthLink) (*models.OAuthLink, error) {
	key := link.Provider + "|" + link.ProviderAccountID
	if _, ok := f.links[key]; ok {
		return nil, common.ErrConflict
	}
	f.links[key] = link
	return link, nil
}

type fakeRefreshRepo struct {
	records map[string]*models.RefreshRecord // by fingerprint

	createErr error
	// afterFind runs once a lookup succeeds, letting tests interleave a
	// competing revocation between the lookup and the rotation.
	afterFind func()
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{records: map[string]*models.RefreshRecord{}}
}

func (f *fakeRefreshRepo) Create(ctx context.Context, accountID, fingerprint string, validity time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.records[fingerprint] = &models.RefreshRecord{
		AccountID:        accountID,
		TokenFingerprint: fingerprint,
		ExpiresAt:        time.Now().Add(validity),
	}
	return nil
}

func (f *fakeRefreshRepo) FindActiveByFingerprint(ctx context.Context, fingerprint string) (*models.RefreshRecord, error) {
	r, ok := f.records[fingerprint]
	if !ok || r.Revoked || time.Now().After(r.ExpiresAt) {
		return nil, common.ErrNotFound
	}
	if f.afterFind != nil {
		f.afterFind()
	}
	return r, nil
}

func (f *fakeRefreshRepo) RevokeByFingerprint(ctx context.Context, fingerprint string) (int64, error) {
	if r, ok := f.records[fingerprint]; ok && !r.Revoked {
		r.Revoked = true
		return 1, nil
	}
	return 0, nil
}

func (f *fakeRefreshRepo) RevokeAllForAccount(ctx context.Context, accountID string) (int64, error) {
	var n int64
	for _, r := range f.records {
		if r.AccountID == accountID && !r.Revoked {
			r.Revoked = true
			n++
		}
	}
	return n, nil
}

type fakeEntriesRepo struct {
	seq     int
	entries map[string]*models.VaultEntry
	tags    map[string][]string // entryID -> tagIDs

	createErr error
	updateErr error
}

func newFakeEntriesRepo() *fakeEntriesRepo {
	return &fakeEntriesRepo{
		entries: map[string]*models.VaultEntry{},
		tags:    map[string][]string{},
	}
}

func (f *fakeEntriesRepo) add(e *models.VaultEntry) *models.VaultEntry {
	if e.ID == "" {
		f.seq++
		e.ID = fmt.Sprintf("entry-%d", f.seq)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	f.entries[e.ID] = e
	return e
}

func (f *fakeEntriesRepo) Create(ctx context.Context, e *models.VaultEntry) (*models.VaultEntry, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.add(e), nil
}

func (f *fakeEntriesRepo) List(ctx context.Context, accountID string, filter models.EntryFilter) ([]*models.VaultEntry, error) {
	var out []*models.VaultEntry
	for _, e := range f.entries {
		if e.AccountID != accountID {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(e.Title), strings.ToLower(filter.Query)) {
			continue
		}
		if filter.IsFavorite != nil && e.IsFavorite != *filter.IsFavorite {
			continue
		}
		// The real query selects metadata only.
		meta := *e
		meta.SecretCiphertext, meta.SecretIV, meta.SecretAuthTag = nil, nil, nil
		out = append(out, &meta)
	}
	return out, nil
}

func (f *fakeEntriesRepo) ListAll(ctx context.Context, accountID string) ([]*models.VaultEntry, error) {
	var out []*models.VaultEntry
	for _, e := range f.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntriesRepo) Get(ctx context.Context, accountID, id string) (*models.VaultEntry, error) {
	e, ok := f.entries[id]
	if !ok || e.AccountID != accountID {
		return nil, common.ErrNotFound
	}
	return e, nil
}

func (f *fakeEntriesRepo) GetByID(ctx context.Context, id string) (*models.VaultEntry, error) {
	if e, ok := f.entries[id]; ok {
		return e, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeEntriesRepo) Update(ctx context.Context, e *models.VaultEntry) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	existing, ok := f.entries[e.ID]
	if !ok || existing.AccountID != e.AccountID {
		return common.ErrNotFound
	}
	f.entries[e.ID] = e
	return nil
}

func (f *fakeEntriesRepo) TouchLastUsed(ctx context.Context, accountID, id string) error {
	e, ok := f.entries[id]
	if !ok || e.AccountID != accountID {
		return common.ErrNotFound
	}
	now := time.Now()
	e.LastUsedAt = &now
	return nil
}

func (f *fakeEntriesRepo) Delete(ctx context.Context, accountID, id string) error {
	e, ok := f.entries[id]
	if !ok || e.AccountID != accountID {
		return common.ErrNotFound
	}
	delete(f.entries, id)
	delete(f.tags, id)
	return nil
}

func (f *fakeEntriesRepo) BulkDelete(ctx context.Context, accountID string, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if e, ok := f.entries[id]; ok && e.AccountID == accountID {
			delete(f.entries, id)
			delete(f.tags, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeEntriesRepo) ToggleFavorite(ctx context.Context, accountID, id string) (bool, error) {
	e, ok := f.entries[id]
	if !ok || e.AccountID != accountID {
		return false, common.ErrNotFound
	}
	e.IsFavorite = !e.IsFavorite
	return e.IsFavorite, nil
}

func (f *fakeEntriesRepo) TogglePinned(ctx context.Context, accountID, id string) (bool, error) {
	e, ok := f.entries[id]
	if !ok || e.AccountID != accountID {
		return false, common.ErrNotFound
	}
	e.IsPinned = !e.IsPinned
	return e.IsPinned, nil
}

func (f *fakeEntriesRepo) ReplaceTags(ctx context.Context, accountID, entryID string, tagIDs []string) error {
	e, ok := f.entries[entryID]
	if !ok || e.AccountID != accountID {
		return common.ErrNotFound
	}
	f.tags[entryID] = tagIDs
	return nil
}

func (f *fakeEntriesRepo) TagsForEntries(ctx context.Context, accountID string, entryIDs []string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, id := range entryIDs {
		if tags, ok := f.tags[id]; ok {
			out[id] = tags
		}
	}
	return out, nil
}

func (f *fakeEntriesRepo) MoveToCollection(ctx context.Context, accountID string, entryIDs []string, collectionID *string) (int64, error) {
	var n int64
	for _, id := range entryIDs {
		if e, ok := f.entries[id]; ok && e.AccountID == accountID {
			e.CollectionID = collectionID
			n++
		}
	}
	return n, nil
}

func (f *fakeEntriesRepo) ClearCollection(ctx context.Context, accountID, collectionID string) error {
	for _, e := range f.entries {
		if e.AccountID == accountID && e.CollectionID != nil && *e.CollectionID == collectionID {
			e.CollectionID = nil
		}
	}
	return nil
}

type fakeCollectionsRepo struct {
	seq         int
	collections map[string]*models.Collection
}

func newFakeCollectionsRepo() *fakeCollectionsRepo {
	return &fakeCollectionsRepo{collections: map[string]*models.Collection{}}
}

func (f *fakeCollectionsRepo) Create(ctx context.Context, c *models.Collection) (*models.Collection, error) {
	f.seq++
	c.ID = fmt.Sprintf("col-%d", f.seq)
	f.collections[c.ID] = c
	return c, nil
}

func (f *fakeCollectionsRepo) List(ctx context.Context, accountID string) ([]*models.Collection, error) {
	var out []*models.Collection
	for _, c := range f.collections {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCollectionsRepo) Get(ctx context.Context, accountID, id string) (*models.Collection, error) {
	c, ok := f.collections[id]
	if !ok || c.AccountID != accountID {
		return nil, common.ErrNotFound
	}
	return c, nil
}

func (f *fakeCollectionsRepo) Update(ctx context.Context, c *models.Collection) error {
	existing, ok := f.collections[c.ID]
	if !ok || existing.AccountID != c.AccountID {
		return common.ErrNotFound
	}
	f.collections[c.ID] = c
	return nil
}

func (f *fakeCollectionsRepo) Delete(ctx context.Context, accountID, id string) error {
	c, ok := f.collections[id]
	if !ok || c.AccountID != accountID {
		return common.ErrNotFound
	}
	delete(f.collections, id)
	return nil
}

type fakeTagsRepo struct {
	seq  int
	tags map[string]*models.Tag // by id
}

func newFakeTagsRepo() *fakeTagsRepo {
	return &fakeTagsRepo{tags: map[string]*models.Tag{}}
}

func (f *fakeTagsRepo) Upsert(ctx context.Context, accountID, name string) (*models.Tag, error) {
	for _, tag := range f.tags {
		if tag.AccountID == accountID && tag.Name == name {
			return tag, nil
		}
	}
	f.seq++
	tag := &models.Tag{ID: fmt.Sprintf("tag-%d", f.seq), AccountID: accountID, Name: name}
	f.tags[tag.ID] = tag
	return tag, nil
}

func (f *fakeTagsRepo) List(ctx context.Context, accountID string) ([]*models.Tag, error) {
	var out []*models.Tag
	for _, tag := range f.tags {
		if tag.AccountID == accountID {
			out = append(out, tag)
		}
	}
	return out, nil
}

func (f *fakeTagsRepo) Delete(ctx context.Context, accountID, id string) error {
	tag, ok := f.tags[id]
	if !ok || tag.AccountID != accountID {
		return common.ErrNotFound
	}
	delete(f.tags, id)
	return nil
}

func (f *fakeTagsRepo) CountOwned(ctx context.Context, accountID string, tagIDs []string) (int, error) {
	n := 0
	for _, id := range tagIDs {
		if tag, ok := f.tags[id]; ok && tag.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

type fakeSharesRepo struct {
	seq    int
	shares map[string]*models.ShareCapability // by id
}

func newFakeSharesRepo() *fakeSharesRepo {
	return &fakeSharesRepo{shares: map[string]*models.ShareCapability{}}
}

func (f *fakeSharesRepo) Create(ctx context.Context, s *models.ShareCapability) (*models.ShareCapability, error) {
	f.seq++
	s.ID = fmt.Sprintf("share-%d", f.seq)
	s.CreatedAt = time.Now()
	f.shares[s.ID] = s
	return s, nil
}

func (f *fakeSharesRepo) Consume(ctx context.Context, fingerprint string, accessor *string) (*models.ShareCapability, error) {
	for _, s := range f.shares {
		if s.TokenFingerprint != fingerprint {
			continue
		}
		if s.ViewCount >= s.MaxViews || time.Now().After(s.ExpiresAt) {
			return nil, common.ErrNotFound
		}
		s.ViewCount++
		now := time.Now()
		s.AccessedAt = &now
		if s.AccessorAddress == nil {
			s.AccessorAddress = accessor
		}
		return s, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeSharesRepo) ListByAccount(ctx context.Context, accountID string) ([]*models.ShareCapability, error) {
	var out []*models.ShareCapability
	for _, s := range f.shares {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSharesRepo) Revoke(ctx context.Context, accountID, id string) error {
	s, ok := f.shares[id]
	if !ok || s.AccountID != accountID {
		return common.ErrNotFound
	}
	delete(f.shares, id)
	return nil
}

type fakeAuditRepo struct {
	records   []*models.AuditRecord
	appendErr error
}

func (f *fakeAuditRepo) Append(ctx context.Context, r *models.AuditRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, r)
	return nil
}

func (f *fakeAuditRepo) List(ctx context.Context, accountID string, filter models.AuditFilter) ([]*models.AuditRecord, error) {
	var out []*models.AuditRecord
	for _, r := range f.records {
		if r.AccountID != accountID {
			continue
		}
		if filter.Action != "" && r.Action != filter.Action {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeAuditRepo) Summary(ctx context.Context, accountID string, days int) ([]*models.AuditSummaryRow, error) {
	counts := map[string]int64{}
	for _, r := range f.records {
		if r.AccountID == accountID {
			counts[r.Action]++
		}
	}
	var out []*models.AuditSummaryRow
	for action, n := range counts {
		out = append(out, &models.AuditSummaryRow{Action: action, Count: n})
	}
	return out, nil
}

// actions returns the recorded action names in append order.
func (f *fakeAuditRepo) actions() []string {
	out := make([]string, len(f.records))
	for i, r := range f.records {
		out[i] = r.Action
	}
	return out
}

type fakeRepoManager struct {
	accounts    *fakeAccountsRepo
	refresh     *fakeRefreshRepo
	entries     *fakeEntriesRepo
	collections *fakeCollectionsRepo
	tags        *fakeTagsRepo
	shares      *fakeSharesRepo
	audit       *fakeAuditRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		accounts:    newFakeAccountsRepo(),
		refresh:     newFakeRefreshRepo(),
		entries:     newFakeEntriesRepo(),
		collections: newFakeCollectionsRepo(),
		tags:        newFakeTagsRepo(),
		shares:      newFakeSharesRepo(),
		audit:       &fakeAuditRepo{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error          { return nil }
func (m *fakeRepoManager) Accounts(dbx.DBTX) accountsrepo.Repository             { return m.accounts }
func (m *fakeRepoManager) RefreshRecords(dbx.DBTX) refreshrepo.Repository        { return m.refresh }
func (m *fakeRepoManager) Entries(dbx.DBTX) entriesrepo.Repository               { return m.entries }
func (m *fakeRepoManager) Collections(dbx.DBTX) collectionsrepo.Repository       { return m.collections }
func (m *fakeRepoManager) Tags(dbx.DBTX) tagsrepo.Repository                     { return m.tags }
func (m *fakeRepoManager) Shares(dbx.DBTX) sharesrepo.Repository                 { return m.shares }
func (m *fakeRepoManager) Audit(dbx.DBTX) auditrepo.Repository                   { return m.audit }

// seedAccount adds an account with a wrapped key and returns it.
func seedAccount(t *testing.T, rm *fakeRepoManager, email string) *models.Account {
	t.Helper()
	account := &models.Account{WrappedKey: wrappedTestKey(t)}
	if email != "" {
		account.Email = &email
	}
	return rm.accounts.add(account)
}

// seedEntry adds an entry whose secret is encrypted under the account's key.
func seedEntry(t *testing.T, rm *fakeRepoManager, account *models.Account, title, secret string) *models.VaultEntry {
	t.Helper()
	ciphertext, nonce, tag := encryptWithWrapped(t, account.WrappedKey, secret)
	return rm.entries.add(&models.VaultEntry{
		AccountID:        account.ID,
		Title:            title,
		SecretCiphertext: ciphertext,
		SecretIV:         nonce,
		SecretAuthTag:    tag,
	})
}

func newAuditForTest(db *sql.DB, rm *fakeRepoManager) *AuditService {
	return NewAuditService(db, rm, discardLogger())
}
