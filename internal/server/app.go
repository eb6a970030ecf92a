// Package server assembles and runs the vault server: it opens the database,
// applies migrations, wires the service layer to the HTTP router and handles
// graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lockboxhq/lockbox/internal/logging"
	"github.com/lockboxhq/lockbox/internal/server/config"
	"github.com/lockboxhq/lockbox/internal/server/httpapi"
	"github.com/lockboxhq/lockbox/internal/server/oauth"
	"github.com/lockboxhq/lockbox/internal/server/repositories/repomanager"
	"github.com/lockboxhq/lockbox/internal/server/services"
)

// ErrMigration marks a failed schema migration. The entrypoint maps it to a
// distinct exit code so orchestration can tell "bad schema" from "bad config".
var ErrMigration = errors.New("migration error")

const (
	dbPingTimeout     = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	router http.Handler
}

// NewApp opens the database, applies migrations and wires every service into
// the HTTP router. The returned App owns the database handle.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	manager := repomanager.NewPostgresRepositoryManager()
	if err := manager.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrMigration, err)
	}

	audit := services.NewAuditService(db, manager, logger)
	auth, err := services.NewAuthService(db, manager, audit, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("auth service: %w", err)
	}
	vault := services.NewVaultService(db, manager, audit, cfg)
	org := services.NewOrgService(db, manager)
	share := services.NewShareService(db, manager, audit, cfg)
	snapshot := services.NewSnapshotService(vault, cfg)

	providers := oauth.NewRegistry()
	if cfg.Google.Enabled() {
		google, err := oauth.NewGoogleProvider(ctx, cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL)
		if err != nil {
			// OIDC discovery needs the network; a login option is not worth
			// refusing to serve the vault over.
			logger.Error(ctx, "google oauth disabled", "error", err.Error())
		} else {
			providers.Add(google)
		}
	}
	if cfg.GitHub.Enabled() {
		providers.Add(oauth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL))
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Config:    cfg,
		Logger:    logger,
		Auth:      auth,
		Vault:     vault,
		Org:       org,
		Share:     share,
		Audit:     audit,
		Snapshot:  snapshot,
		Providers: providers,
	})

	return &App{config: cfg, logger: logger, db: db, router: router}, nil
}

// Run serves HTTP until the context is cancelled or SIGINT/SIGTERM arrives,
// then drains in-flight requests and closes the database.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              ":" + app.config.Port,
		Handler:           app.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "server listening", "addr", server.Addr, "env", app.config.Environment)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		app.db.Close()
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "shutdown incomplete", "error", err.Error())
	}

	if err := app.db.Close(); err != nil {
		return fmt.Errorf("db close: %w", err)
	}
	return nil
}
