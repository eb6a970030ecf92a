package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/lockboxhq/lockbox/internal/common"
	"github.com/lockboxhq/lockbox/internal/cryptox"
	"github.com/lockboxhq/lockbox/internal/dbx"
	"github.com/lockboxhq/lockbox/internal/server/auth"
	"github.com/lockboxhq/lockbox/internal/server/config"
	"github.com/lockboxhq/lockbox/internal/server/models"
	"github.com/lockboxhq/lockbox/internal/server/repositories/accounts"
	"github.com/lockboxhq/lockbox/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived bearer credential and the raw long-lived
// refresh credential. The refresh token's fingerprint is stored server-side;
// the raw value exists only in this pair and in the client's cookie.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// OAuthProfile is the provider-side identity handed to FindOrLinkOAuth.
type OAuthProfile struct {
	Provider          string
	ProviderAccountID string
	Email             *string
	DisplayName       *string
	AccessToken       *string
	RefreshToken      *string
}

// AuthService handles registration, login, OAuth account linking, token
// issuance and revocation.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       *AuditService

	masterKey  []byte
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	bcryptCost int

	// dummyHash keeps login constant-work when the account does not exist.
	dummyHash []byte
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, cfg *config.Config) (*AuthService, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("lockbox-dummy-credential"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt init: %w", err)
	}
	return &AuthService{
		db:          db,
		repomanager: m,
		audit:       audit,
		masterKey:   cfg.MasterKey,
		jwtSecret:   []byte(cfg.JWTSecret),
		accessTTL:   cfg.AccessTokenTTL,
		refreshTTL:  cfg.RefreshTokenTTL,
		bcryptCost:  cfg.BcryptCost,
		dummyHash:   dummy,
	}, nil
}

// Register creates an account with a fresh wrapped per-user key and issues a
// token pair. Taken emails yield common.ErrConflict; policy violations a
// ValidationError.
func (s *AuthService) Register(ctx context.Context, email, password, displayName string, meta ClientMeta) (*models.Account, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateRegistration(email, password); err != nil {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hashing credential: %w", err)
	}

	userKey, err := cryptox.GenerateUserKey()
	if err != nil {
		return nil, nil, err
	}
	defer common.WipeByteArray(userKey)
	wrapped, err := cryptox.Wrap(userKey, s.masterKey)
	if err != nil {
		return nil, nil, err
	}

	credentialHash := string(hash)
	account := &models.Account{
		Email:          &email,
		CredentialHash: &credentialHash,
		WrappedKey:     wrapped,
	}
	if displayName != "" {
		account.DisplayName = &displayName
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Accounts(tx).Create(ctx, account)
		if err != nil {
			return err
		}
		account = created
		pair, err = s.issueTokens(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.audit.Record(ctx, account.ID, models.AuditLogin, meta, WithDetails(map[string]string{"method": "register"}))
	return account, pair, nil
}

// Login verifies credentials and issues a token pair. Unknown email and wrong
// password are indistinguishable to the caller, and both cost one bcrypt
// comparison.
func (s *AuthService) Login(ctx context.Context, email, password string, meta ClientMeta) (*models.Account, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.repomanager.Accounts(s.db).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, nil, common.ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if account.CredentialHash == nil {
		// OAuth-only account; burn the same work before rejecting.
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, nil, common.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(*account.CredentialHash), []byte(password)) != nil {
		return nil, nil, common.ErrInvalidCredentials
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.ensureWrappedKey(ctx, s.repomanager.Accounts(tx), account); err != nil {
			return err
		}
		pair, err = s.issueTokens(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.audit.Record(ctx, account.ID, models.AuditLogin, meta, WithDetails(map[string]string{"method": "password"}))
	return account, pair, nil
}

// Refresh rotates a refresh credential: the presented record is revoked and a
// new one stored in the same transaction, alongside a fresh bearer token.
// Revoked, expired and unknown tokens all yield common.ErrUnauthenticated.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (*models.Account, *TokenPair, error) {
	fingerprint := cryptox.Fingerprint(rawRefreshToken)

	record, err := s.repomanager.RefreshRecords(s.db).FindActiveByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, common.ErrUnauthenticated
		}
		return nil, nil, err
	}

	account, err := s.repomanager.Accounts(s.db).FindByID(ctx, record.AccountID)
	if err != nil {
		return nil, nil, err
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repomanager.RefreshRecords(tx).RevokeByFingerprint(ctx, fingerprint)
		if err != nil {
			return err
		}
		if n == 0 {
			// A concurrent refresh of the same token won the revocation.
			return common.ErrUnauthenticated
		}
		pair, err = s.issueTokens(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return account, pair, nil
}

// Logout revokes the presented refresh credential. Idempotent: an unknown or
// already revoked token succeeds silently.
func (s *AuthService) Logout(ctx context.Context, rawRefreshToken string, meta ClientMeta) error {
	if rawRefreshToken == "" {
		return nil
	}
	fingerprint := cryptox.Fingerprint(rawRefreshToken)

	// Best-effort attribution for the audit row.
	record, err := s.repomanager.RefreshRecords(s.db).FindActiveByFingerprint(ctx, fingerprint)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}

	if _, err := s.repomanager.RefreshRecords(s.db).RevokeByFingerprint(ctx, fingerprint); err != nil {
		return err
	}
	if record != nil {
		s.audit.Record(ctx, record.AccountID, models.AuditLogout, meta)
	}
	return nil
}

// LogoutAll revokes every active refresh credential of the account.
func (s *AuthService) LogoutAll(ctx context.Context, accountID string, meta ClientMeta) (int64, error) {
	n, err := s.repomanager.RefreshRecords(s.db).RevokeAllForAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	s.audit.Record(ctx, accountID, models.AuditLogout, meta, WithDetails(map[string]int64{"revoked": n}))
	return n, nil
}

// Me loads the caller's account.
func (s *AuthService) Me(ctx context.Context, accountID string) (*models.Account, error) {
	return s.repomanager.Accounts(s.db).FindByID(ctx, accountID)
}

// VerifyAccessToken checks a bearer credential and returns its claims.
func (s *AuthService) VerifyAccessToken(tokenString string) (*auth.Claims, error) {
	return auth.ParseToken(tokenString, s.jwtSecret)
}

// FindOrLinkOAuth resolves a provider identity to an account atomically:
// an existing link wins; otherwise an account matching the profile email is
// linked; otherwise a new account is created. The wrapped per-user key is
// always materialised before returning.
func (s *AuthService) FindOrLinkOAuth(ctx context.Context, profile OAuthProfile, meta ClientMeta) (*models.Account, *TokenPair, error) {
	var account *models.Account
	var pair *TokenPair

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		link, err := repo.FindLink(ctx, profile.Provider, profile.ProviderAccountID)
		switch {
		case err == nil:
			account, err = repo.FindByID(ctx, link.AccountID)
			if err != nil {
				return err
			}
		case errors.Is(err, common.ErrNotFound):
			account, err = s.oauthAccountForProfile(ctx, repo, profile)
			if err != nil {
				return err
			}
			_, err = repo.CreateLink(ctx, &models.OAuthLink{
				AccountID:         account.ID,
				Provider:          profile.Provider,
				ProviderAccountID: profile.ProviderAccountID,
				AccessToken:       profile.AccessToken,
				RefreshToken:      profile.RefreshToken,
			})
			if err != nil {
				return err
			}
		default:
			return err
		}

		if err := s.ensureWrappedKey(ctx, repo, account); err != nil {
			return err
		}
		pair, err = s.issueTokens(ctx, tx, account)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.audit.Record(ctx, account.ID, models.AuditLogin, meta, WithDetails(map[string]string{"method": profile.Provider}))
	return account, pair, nil
}

// oauthAccountForProfile finds the account to link (by profile email) or
// creates a fresh one without a credential hash.
func (s *AuthService) oauthAccountForProfile(ctx context.Context, repo accounts.Repository, profile OAuthProfile) (*models.Account, error) {
	if profile.Email != nil && *profile.Email != "" {
		email := strings.ToLower(*profile.Email)
		account, err := repo.FindByEmail(ctx, email)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	}

	account := &models.Account{DisplayName: profile.DisplayName}
	if profile.Email != nil && *profile.Email != "" {
		email := strings.ToLower(*profile.Email)
		account.Email = &email
	}
	return repo.Create(ctx, account)
}

// --- helpers ---

func (s *AuthService) issueTokens(ctx context.Context, tx dbx.DBTX, account *models.Account) (*TokenPair, error) {
	email := ""
	if account.Email != nil {
		email = *account.Email
	}
	access, err := auth.GenerateToken(account.ID, email, s.jwtSecret, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: signing access token", common.ErrInternal)
	}

	refresh, err := common.MakeRandURLToken(32)
	if err != nil {
		return nil, fmt.Errorf("%w: generating refresh token", common.ErrInternal)
	}

	if err := s.repomanager.RefreshRecords(tx).Create(ctx, account.ID, cryptox.Fingerprint(refresh), s.refreshTTL); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ensureWrappedKey lazily materialises the account's wrapped per-user key.
func (s *AuthService) ensureWrappedKey(ctx context.Context, repo accounts.Repository, account *models.Account) error {
	if len(account.WrappedKey) > 0 {
		return nil
	}
	userKey, err := cryptox.GenerateUserKey()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(userKey)
	wrapped, err := cryptox.Wrap(userKey, s.masterKey)
	if err != nil {
		return err
	}
	if err := repo.SetWrappedKey(ctx, account.ID, wrapped); err != nil {
		return err
	}
	account.WrappedKey = wrapped
	return nil
}

func validateRegistration(email, password string) error {
	var verr *common.ValidationError

	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		verr = appendInvalid(verr, "email", "must be a valid email address")
	}
	if msg := passwordPolicyViolation(password); msg != "" {
		verr = appendInvalid(verr, "password", msg)
	}
	if verr != nil {
		return verr
	}
	return nil
}

// passwordPolicyViolation returns an empty string when password satisfies the
// policy: at least 8 characters with an upper, a lower and a digit.
func passwordPolicyViolation(password string) string {
	if len(password) < 8 {
		return "must be at least 8 characters"
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return "must contain an uppercase letter, a lowercase letter and a digit"
	}
	return ""
}

func appendInvalid(verr *common.ValidationError, field, message string) *common.ValidationError {
	if verr == nil {
		return common.NewValidationError(field, message)
	}
	return verr.Invalid(field, message)
}
