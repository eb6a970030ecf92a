package models

import "time"

// Audit actions. The set is closed; new actions require a migration of
// consumers, not of the table.
const (
	AuditLogin       = "login"
	AuditLogout      = "logout"
	AuditReveal      = "reveal"
	AuditCopy        = "copy"
	AuditCreate      = "create"
	AuditUpdate      = "update"
	AuditDelete      = "delete"
	AuditExport      = "export"
	AuditImport      = "import"
	AuditShare       = "share"
	AuditShareAccess = "share_access"
)

// AuditRecord is append-only: no code path updates or deletes rows. Ordering
// is by CreatedAt then ID.
type AuditRecord struct {
	ID             string
	AccountID      string
	Action         string
	EntryID        *string
	EntryTitle     *string
	NetworkAddress *string
	UserAgent      *string
	Details        []byte // opaque JSON blob
	CreatedAt      time.Time
}

// AuditFilter narrows audit queries.
type AuditFilter struct {
	Action string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// AuditSummaryRow is one group of the per-action count aggregation.
type AuditSummaryRow struct {
	Action string
	Count  int64
}
