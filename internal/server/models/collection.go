package models

import "time"

// Collection is a folder owned by an account. Deleting one re-parents its
// entries to NULL instead of deleting them.
type Collection struct {
	ID          string
	AccountID   string
	Name        string
	Description *string
	Icon        *string
	Color       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Tag is a per-account label, unique on (AccountID, Name), attached to entries
// via the vault_entry_tags join table.
type Tag struct {
	ID        string
	AccountID string
	Name      string
	CreatedAt time.Time
}
