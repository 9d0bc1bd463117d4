// Command dashboard serves the RapidRecall dashboard.
//
// @title        RapidRecall Dashboard API
// @version      1.0
// @description  Session, page and recall action endpoints of the RapidRecall dashboard.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rapidrecall/dashboard/internal/api"
	"github.com/rapidrecall/dashboard/internal/api/handler"
	"github.com/rapidrecall/dashboard/internal/api/middleware"
	"github.com/rapidrecall/dashboard/internal/core/service"
	"github.com/rapidrecall/dashboard/internal/infrastructure/authapi"
	"github.com/rapidrecall/dashboard/internal/infrastructure/config"
	mongodb "github.com/rapidrecall/dashboard/internal/infrastructure/db/mongo"
	redisdb "github.com/rapidrecall/dashboard/internal/infrastructure/db/redis"
	"github.com/rapidrecall/dashboard/internal/infrastructure/identity"
	"github.com/rapidrecall/dashboard/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log := logger.Init(logger.Options{})
		log.Fatal().Err(err).Msg("dashboard stopped with an error")
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "dashboard",
	})

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	mclient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  "rapidrecall-dashboard",
	})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mclient.Disconnect(dctx)
	}()

	sessionStore := redisdb.NewSessionStore(rdb, cfg.SessionTTL)
	loginStates := redisdb.NewLoginStateStore(rdb)
	uploads := mongodb.NewUploadRepository(db)
	if err := uploads.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("could not create upload history indexes")
	}

	provider, err := identity.New(ctx, identity.Config{
		Issuer:       cfg.OIDC.Issuer,
		ClientID:     cfg.OIDC.ClientID,
		ClientSecret: cfg.OIDC.ClientSecret,
		RedirectURL:  cfg.OIDC.RedirectURL,
	}, sessionStore, logger.Component("identity"))
	if err != nil {
		return err
	}

	authz := authapi.New(cfg.AuthAPIURL)
	registry := service.NewRegistry(sessionStore, authz, provider, cfg.ReconcileInterval, cfg.SessionTTL, logger.Component("session"))
	defer registry.Shutdown()

	recalls := service.NewRecallService(authz, cfg.Classifications, logger.Component("recalls"))
	users := service.NewUserService(authz, logger.Component("users"))
	documents := service.NewDocumentService(authz, uploads, cfg.UploadMaxBytes, logger.Component("documents"))

	cookie := middleware.CookieOptions{Secure: cfg.CookieSecure}
	e := api.NewRouter(api.Dependencies{
		Sessions:  registry,
		Cookie:    cookie,
		Log:       logger.Component("http"),
		Auth:      handler.NewAuthHandler(provider, loginStates, registry, cookie, cfg.SessionTTL, logger.Component("auth")),
		Pages:     handler.NewPageHandler(recalls, users, documents, logger.Component("pages")),
		Recalls:   handler.NewRecallHandler(recalls),
		Users:     handler.NewUserHandler(users),
		Documents: handler.NewDocumentHandler(documents),
		Session:   handler.NewSessionHandler(cfg.Classifications),
		Readiness: handler.NewReadinessHandler(redisdb.NewPinger(rdb), mongodb.NewPinger(mclient)),

		UploadMaxBytes: cfg.UploadMaxBytes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("dashboard started")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("dashboard stopped cleanly")
	return nil
}
