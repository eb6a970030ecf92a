// Package models defines the persistence entities of the vault server.
// Nullable columns are pointers; nil means SQL NULL.
package models

import "time"

// Account is the identity principal. An account carries a CredentialHash, at
// least one OAuthLink, or both. Vault operations require WrappedKey to be set;
// it is materialised lazily on the first sign-in that needs it.
type Account struct {
	ID             string
	Email          *string
	CredentialHash *string
	DisplayName    *string
	// WrappedKey is the per-account key encrypted under the server master key
	// (nonce || tag || ciphertext, 60 bytes). Never stored unwrapped.
	WrappedKey []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OAuthLink ties (provider, providerAccountID) to an Account. The pair is
// unique; one account may hold links to several providers.
type OAuthLink struct {
	ID                string
	AccountID         string
	Provider          string
	ProviderAccountID string
	AccessToken       *string
	RefreshToken      *string
	CreatedAt         time.Time
}
