package models

import "time"

// ShareCapability grants bounded anonymous read access to a single entry.
// The raw token is returned exactly once at creation; only its fingerprint is
// stored. A capability is consumable iff now < ExpiresAt and ViewCount <
// MaxViews; consumption increments ViewCount atomically.
type ShareCapability struct {
	ID               string
	EntryID          string
	AccountID        string
	TokenFingerprint string
	MaxViews         int
	ViewCount        int
	ExpiresAt        time.Time
	AccessedAt       *time.Time
	AccessorAddress  *string
	IncludeSecret    bool
	IncludeNotes     bool
	CreatedAt        time.Time
}
