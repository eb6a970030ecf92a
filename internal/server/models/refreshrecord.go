package models

import "time"

// RefreshRecord is the server-side handle for a long-lived refresh credential.
// Only the SHA-256 fingerprint of the raw token is stored; the raw token lives
// in the client's HTTP-only cookie.
type RefreshRecord struct {
	ID               string
	AccountID        string
	TokenFingerprint string
	Revoked          bool
	ExpiresAt        time.Time
	CreatedAt        time.Time
}
