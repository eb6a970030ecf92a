// Package config loads server configuration from the environment, with an
// optional .env overlay for development. Misconfiguration that makes the
// server unsafe to start (missing database URL, absent or non-32-byte master
// key) is a fatal error the entrypoint maps to exit code 1.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/lockboxhq/lockbox/internal/cryptox"
)

// ErrFatal marks configuration problems the server must not start with.
var ErrFatal = errors.New("fatal configuration error")

// OAuthProviderConfig holds one provider's client credentials.
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// Enabled reports whether the provider is fully configured.
func (c OAuthProviderConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.CallbackURL != ""
}

// Config holds runtime settings for the Lockbox server.
type Config struct {
	Port        string
	Environment string // "development" or "production"

	DatabaseURL string

	// MasterKey is the decoded 32-byte key that wraps per-account keys.
	// Read once at startup, held in memory, never logged.
	MasterKey []byte

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	FrontendOrigin string

	Google OAuthProviderConfig
	GitHub OAuthProviderConfig

	// S3-compatible storage for encrypted export snapshots.
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
}

// IsProduction reports whether the server runs with production hardening
// (Secure cookies, gin release mode).
func (c *Config) IsProduction() bool { return c.Environment == "production" }

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvMinutes(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	minutes, err := strconv.Atoi(v)
	if err != nil || minutes <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer of minutes", ErrFatal, key)
	}
	return time.Duration(minutes) * time.Minute, nil
}

// Load builds a Config from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getenv("PORT", "8080"),
		Environment:    getenv("APP_ENV", "development"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		FrontendOrigin: getenv("FRONTEND_ORIGIN", "http://localhost:5173"),
		Google: OAuthProviderConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			CallbackURL:  os.Getenv("GOOGLE_CALLBACK_URL"),
		},
		GitHub: OAuthProviderConfig{
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			CallbackURL:  os.Getenv("GITHUB_CALLBACK_URL"),
		},
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3Bucket:       getenv("S3_BUCKET", "lockbox-exports"),
		S3Region:       getenv("S3_REGION", "us-east-1"),
		S3BaseEndpoint: os.Getenv("S3_BASE_ENDPOINT"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL is required", ErrFatal)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET is required", ErrFatal)
	}

	rawKey := os.Getenv("MASTER_KEY")
	if rawKey == "" {
		return nil, fmt.Errorf("%w: MASTER_KEY is required", ErrFatal)
	}
	key, err := base64.StdEncoding.DecodeString(rawKey)
	if err != nil {
		return nil, fmt.Errorf("%w: MASTER_KEY is not valid base64", ErrFatal)
	}
	if len(key) != cryptox.KeySize {
		return nil, fmt.Errorf("%w: MASTER_KEY must decode to %d bytes, got %d", ErrFatal, cryptox.KeySize, len(key))
	}
	cfg.MasterKey = key

	if cfg.AccessTokenTTL, err = getenvMinutes("ACCESS_TOKEN_TTL_MINUTES", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = getenvMinutes("REFRESH_TOKEN_TTL_MINUTES", 7*24*time.Hour); err != nil {
		return nil, err
	}

	cfg.BcryptCost = 12
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil || cost < 10 || cost > 31 {
			return nil, fmt.Errorf("%w: BCRYPT_COST must be an integer in [10, 31]", ErrFatal)
		}
		cfg.BcryptCost = cost
	}

	return cfg, nil
}
