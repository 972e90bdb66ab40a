package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tabsync/oidcd/internal/oidc/engine"
	"github.com/tabsync/oidcd/internal/oidc/grant"
	httpapi "github.com/tabsync/oidcd/internal/oidc/http"
	"github.com/tabsync/oidcd/internal/oidc/store"
	"github.com/tabsync/oidcd/internal/oidc/store/drivers/sqlite"
	"github.com/tabsync/oidcd/internal/oidc/token"
	"github.com/tabsync/oidcd/pkg/jwtx"
	"github.com/tabsync/oidcd/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

var (
	supportedResponseTypes = []string{"code", "id_token", "id_token token"}
	supportedGrantTypes    = []string{
		grant.TypeAuthorizationCode,
		grant.TypeRefreshToken,
		grant.TypePreAuthorizedCode,
		"implicit",
	}
)

// Application encapsulates the OIDC service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	keyManager *jwtx.KeyManager
	sealer     *token.Sealer
	challenges *grant.ChallengeRegistry
	engine     *engine.Engine
	grants     []grant.Grant

	housekeeper *Housekeeper

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "oidcd",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keyManager, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		RSABits:   cfg.RSABits,
		NumKeys:   cfg.NumKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	if err := app.initSealer(); err != nil {
		return nil, err
	}

	// The registry is shared: the engine validates the methods it can
	// verify, the grants verify with it.
	app.challenges = grant.NewChallengeRegistry()

	if err := app.initEngine(); err != nil {
		return nil, err
	}

	app.initGrants()
	app.initHTTP()

	app.housekeeper = NewHousekeeper(app.db, app.logger, cfg.HousekeepingInterval)

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeper.Start()

	app.logger.Info("oidc service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down oidc service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeper.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("oidc service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initSealer loads or creates the sealing key material. The material is
// persisted so sealed codes and refresh tokens survive restarts.
func (app *Application) initSealer() error {
	material, err := os.ReadFile(app.cfg.SealKeyFile)
	if os.IsNotExist(err) {
		material = make([]byte, 32)
		if _, err := rand.Read(material); err != nil {
			return fmt.Errorf("failed to generate sealing key material: %w", err)
		}
		if err := os.WriteFile(app.cfg.SealKeyFile, material, 0o600); err != nil {
			return fmt.Errorf("failed to persist sealing key material: %w", err)
		}
		app.logger.Info("generated new sealing key", "path", app.cfg.SealKeyFile)
	} else if err != nil {
		return fmt.Errorf("failed to read sealing key material: %w", err)
	}

	sealer, err := token.NewSealer(material)
	if err != nil {
		return err
	}
	app.sealer = sealer
	return nil
}

// initEngine assembles the request rule lists. Ordering is verified here;
// a failure aborts startup.
func (app *Application) initEngine() error {
	eng, err := engine.New(engine.Config{
		Issuer:                 app.cfg.Issuer,
		Verifier:               app.keyManager.Verifier,
		Store:                  app.db,
		DefaultScope:           app.cfg.DefaultScope,
		SupportedResponseTypes: supportedResponseTypes,
		CodeChallengeMethods:   app.challenges.Methods(),
	})
	if err != nil {
		return err
	}
	app.engine = eng
	return nil
}

// initGrants wires the grant implementations to their shared dependencies.
func (app *Application) initGrants() {
	deps := &grant.Deps{
		Store:           app.db,
		Keys:            app.keyManager,
		Sealer:          app.sealer,
		Issuer:          app.cfg.Issuer,
		CodeTTL:         app.cfg.CodeTTL,
		AccessTokenTTL:  app.cfg.AccessTokenTTL,
		RefreshTokenTTL: app.cfg.RefreshTokenTTL,
		Challenges:      app.challenges,
	}
	deps.IDTokens = &grant.IDTokenIssuer{
		Issuer:    app.cfg.Issuer,
		Keys:      app.keyManager,
		Users:     app.db.Users(),
		TTL:       app.cfg.IDTokenTTL,
		CookieACR: app.cfg.CookieACR,
	}

	app.grants = []grant.Grant{
		grant.NewAuthCodeGrant(deps),
		grant.NewImplicitGrant(deps),
		grant.NewRefreshTokenGrant(deps),
		grant.NewPreAuthCodeGrant(deps),
	}
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		app.cfg.Issuer,
		BuildVersion,
		app.db,
		app.sealer,
		app.logger,
	)

	router.Engine = app.engine
	router.Grants = app.grants
	router.Sessions = &httpapi.CookieSessionResolver{Sealer: app.sealer}
	router.Algorithm = app.cfg.Algorithm
	router.SupportedResponseTypes = supportedResponseTypes
	router.SupportedGrantTypes = supportedGrantTypes
	router.SupportedScopes = app.loadScopes()
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// loadScopes reads the scope registry for the discovery document.
func (app *Application) loadScopes() []string {
	scopes, err := app.db.Scopes().List(context.Background())
	if err != nil {
		app.logger.Warn("could not list scopes for discovery", "error", err)
		return nil
	}
	identifiers := make([]string, 0, len(scopes))
	for _, s := range scopes {
		identifiers = append(identifiers, s.Identifier)
	}
	return identifiers
}
