package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"storefront/internal/backend"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/domain"
	"storefront/internal/httpserver"
	"storefront/internal/migrate"
	"storefront/internal/repository/localstore"
	"storefront/internal/service/oauth"
	"storefront/internal/storefront"
)

func main() {
	logger := log.New(os.Stdout, "[storefront] ", log.LstdFlags|log.LUTC|log.Lshortfile)
	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	storage, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open storage: %v", err)
	}
	defer closeStorage()

	api, err := backend.New(cfg.BackendURL, cfg.BackendTimeout, logger)
	if err != nil {
		logger.Fatalf("backend client: %v", err)
	}
	registry := storefront.NewRegistry(storage, api, storefront.Options{
		CODFee: domain.Money(cfg.CODFee),
		Logger: logger,
	})
	go registry.Run(ctx, cfg.ShellIdle/2, cfg.ShellIdle)

	cookies, err := httpserver.NewCookieStore(cfg.CookieSecret, cfg.CookieSecure)
	if err != nil {
		logger.Fatalf("cookie store: %v", err)
	}

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Registry: registry,
		Storage:  storage,
		Cookies:  cookies,
		OAuth: oauth.New(cfg.OAuthRedirectBase, map[string]oauth.ClientConfig{
			oauth.ProviderGoogle: {ClientID: cfg.GoogleClientID, ClientSecret: cfg.GoogleClientSecret},
			oauth.ProviderGitHub: {ClientID: cfg.GitHubClientID, ClientSecret: cfg.GitHubClientSecret},
		}),
		ImageHost:      cfg.FileURLHost,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s (backend %s, storage %s)", cfg.HTTPAddr, api.BaseURL(), cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}

// openStorage connects the configured session storage. The Postgres schema
// is migrated on start.
func openStorage(ctx context.Context, cfg config.Config, logger *log.Logger) (localstore.Repository, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageRedis:
		client, err := localstore.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return localstore.NewRedis(client, cfg.SessionTTL), func() { client.Close() }, nil
	case config.StorageMemory:
		logger.Printf("using in-memory storage; sessions will not survive a restart")
		return localstore.NewMemory(), func() {}, nil
	default:
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			return nil, nil, err
		}
		version, err := migrate.Apply(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Printf("local storage schema at version %d", version)
		return localstore.NewPostgres(pool, logger), pool.Close, nil
	}
}
