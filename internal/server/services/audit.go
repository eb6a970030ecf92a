// Package services contains the server-side business logic: authentication,
// vault operations, organization, sharing, audit and export snapshots.
// Services own the *sql.DB pool plus a RepositoryManager and compose
// multi-repository writes through dbx.WithTx.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lockboxhq/lockbox/internal/logging"
	"github.com/lockboxhq/lockbox/internal/server/models"
	"github.com/lockboxhq/lockbox/internal/server/repositories/repomanager"
)

// ClientMeta carries the request attribution recorded on audit rows.
type ClientMeta struct {
	Address   string
	UserAgent string
}

// AuditService appends to and reads the append-only action log.
type AuditService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewAuditService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *AuditService {
	return &AuditService{db: db, repomanager: m, logger: l.With("module", "audit")}
}

const auditWriteTimeout = 5 * time.Second

// Record appends an audit row. It never fails the principal operation: errors
// are logged and swallowed. The write survives caller cancellation so an
// aborted request still leaves its trace.
func (s *AuditService) Record(ctx context.Context, accountID, action string, meta ClientMeta, opts ...RecordOption) {
	record := &models.AuditRecord{
		AccountID: accountID,
		Action:    action,
	}
	if meta.Address != "" {
		record.NetworkAddress = &meta.Address
	}
	if meta.UserAgent != "" {
		record.UserAgent = &meta.UserAgent
	}
	for _, opt := range opts {
		opt(record)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	repo := s.repomanager.Audit(s.db)
	if err := repo.Append(writeCtx, record); err != nil {
		s.logger.Error(ctx, "audit write failed", "action", action, "error", err)
	}
}

// RecordOption attaches optional fields to an audit row.
type RecordOption func(*models.AuditRecord)

// WithEntry attributes the action to a vault entry.
func WithEntry(entryID, entryTitle string) RecordOption {
	return func(r *models.AuditRecord) {
		r.EntryID = &entryID
		r.EntryTitle = &entryTitle
	}
}

// WithDetails attaches an opaque structured blob. Marshal failures drop the
// details, never the record.
func WithDetails(v any) RecordOption {
	return func(r *models.AuditRecord) {
		if b, err := json.Marshal(v); err == nil {
			r.Details = b
		}
	}
}

// List returns audit rows for the account, newest first.
func (s *AuditService) List(ctx context.Context, accountID string, filter models.AuditFilter) ([]*models.AuditRecord, error) {
	return s.repomanager.Audit(s.db).List(ctx, accountID, filter)
}

// Summary groups the account's actions over the trailing day window.
func (s *AuditService) Summary(ctx context.Context, accountID string, days int) ([]*models.AuditSummaryRow, error) {
	return s.repomanager.Audit(s.db).Summary(ctx, accountID, days)
}
