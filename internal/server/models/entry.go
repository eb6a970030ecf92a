package models

import "time"

// VaultEntry is one encrypted credential record. SecretCiphertext, SecretIV
// and SecretAuthTag form an authenticated triple and are always rewritten
// together; Strength is recomputed from the new plaintext on every secret
// change.
type VaultEntry struct {
	ID        string
	AccountID string
	Title     string
	Username  string
	Site      *string
	Notes     *string

	SecretCiphertext []byte
	SecretIV         []byte
	SecretAuthTag    []byte

	CollectionID *string
	IsFavorite   bool
	IsPinned     bool
	Strength     int
	LastUsedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// TagIDs is populated by list/get queries from the join table.
	TagIDs []string
}

// EntryFilter narrows list queries. Zero values mean "no constraint".
type EntryFilter struct {
	Query        string
	CollectionID *string
	TagIDs       []string
	IsFavorite   *bool
	IsPinned     *bool
	StrengthMin  *int
	StrengthMax  *int
}
