package repomanager

import (
	"context"
	"database/sql"

	"github.com/lockboxhq/lockbox/internal/dbx"
	"github.com/lockboxhq/lockbox/internal/server/repositories/accounts"
	"github.com/lockboxhq/lockbox/internal/server/repositories/audit"
	"github.com/lockboxhq/lockbox/internal/server/repositories/collections"
	"github.com/lockboxhq/lockbox/internal/server/repositories/entries"
	"github.com/lockboxhq/lockbox/internal/server/repositories/refreshrecords"
	"github.com/lockboxhq/lockbox/internal/server/repositories/shares"
	"github.com/lockboxhq/lockbox/internal/server/repositories/tags"
)

// RepositoryManager vends repositories bound to either the pooled *sql.DB or
// an open transaction, so services can compose multi-repository transactions
// through dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	RefreshRecords(db dbx.DBTX) refreshrecords.Repository
	Entries(db dbx.DBTX) entries.Repository
	Collections(db dbx.DBTX) collections.Repository
	Tags(db dbx.DBTX) tags.Repository
	Shares(db dbx.DBTX) shares.Repository
	Audit(db dbx.DBTX) audit.Repository
}
