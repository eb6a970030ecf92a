// Package oauth implements the OAuth2 identity providers the server can
// delegate sign-in to. All flows use the authorization code grant with PKCE
// (S256); identity fields are taken from verified tokens or the provider API,
// never from client-supplied values.
package oauth

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/lockboxhq/lockbox/internal/common"
)

// Identity is the normalized identity a provider hands back after a
// successful exchange. Optional fields are empty when the provider did not
// supply them.
type Identity struct {
	Provider     string
	Subject      string // provider-specific stable account id
	Email        string
	DisplayName  string
	AccessToken  string
	RefreshToken string
}

// Provider is one configured OAuth2 identity provider.
type Provider interface {
	// Name returns the identifier used in URLs and stored on oauth_links rows.
	Name() string

	// AuthCodeURL returns the provider consent URL with state and the PKCE
	// code_challenge embedded.
	AuthCodeURL(state, codeChallenge string) string

	// Exchange trades an authorization code for a verified Identity. The
	// codeVerifier must match the challenge passed to AuthCodeURL.
	Exchange(ctx context.Context, code, codeVerifier string) (*Identity, error)
}

// NewState returns an unguessable state parameter for one authorization
// round-trip.
func NewState() (string, error) {
	return common.MakeRandURLToken(16)
}

// NewVerifier returns a PKCE code verifier; derive its challenge with
// ChallengeS256.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}

// ChallengeS256 derives the S256 code challenge for a verifier.
func ChallengeS256(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}
