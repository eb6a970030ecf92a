// Package auth mints and verifies the short-lived bearer credentials carried
// in the Authorization header. Tokens are HS256-signed claims holding the
// account id and optional email; verification distinguishes expiry (the caller
// should refresh) from any other failure (the caller should re-authenticate).
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lockboxhq/lockbox/internal/common"
)

// Claims extends the registered claims with the authenticated account.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"accountId"`
	Email     string `json:"email,omitempty"`
}

// GenerateToken mints a signed bearer credential valid for validity from now.
func GenerateToken(accountID, email string, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		AccountID: accountID,
		Email:     email,
	})
	return token.SignedString(secretKey)
}

// ParseToken verifies signature and lifetime and returns the claims.
// Expired tokens yield common.ErrTokenExpired; anything else malformed,
// unsigned or tampered yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !token.Valid || claims.AccountID == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
