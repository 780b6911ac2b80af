package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/OfomiMatthew/tech-buddy/internal/app"
	"github.com/OfomiMatthew/tech-buddy/internal/auth"
	"github.com/OfomiMatthew/tech-buddy/internal/cache"
	"github.com/OfomiMatthew/tech-buddy/internal/config"
	"github.com/OfomiMatthew/tech-buddy/internal/db"
	"github.com/OfomiMatthew/tech-buddy/internal/events"
	"github.com/OfomiMatthew/tech-buddy/internal/logger"
	"github.com/OfomiMatthew/tech-buddy/internal/server"
	"github.com/OfomiMatthew/tech-buddy/internal/service/account"
	"github.com/OfomiMatthew/tech-buddy/internal/service/ai"
	"github.com/OfomiMatthew/tech-buddy/internal/service/explore"
	"github.com/OfomiMatthew/tech-buddy/internal/service/match"
	"github.com/OfomiMatthew/tech-buddy/internal/service/messaging"
	"github.com/OfomiMatthew/tech-buddy/internal/signaling"
	"github.com/OfomiMatthew/tech-buddy/internal/storage"
)

func main() {
	cfg := config.Load()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L() // slog.Logger pointer

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.App.ENV,
		}); err != nil {
			log.Error("sentry init failed", "err", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}
	if err := db.SeedReferenceData(database); err != nil {
		log.Error("failed to seed reference data", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}
	defer redisCache.Close()

	// Events: NATS when configured, in-process otherwise
	var bus events.Bus = events.NewLocal()
	if cfg.NATS.URL != "" {
		nc, err := events.NewNATS(cfg.NATS.URL, cfg.NATS.Subject, log)
		if err != nil {
			log.Error("failed to connect to nats", "err", err)
			return
		}
		bus = nc
	}
	defer bus.Close()

	store, err := newStore(cfg)
	if err != nil {
		log.Error("failed to init storage", "err", err)
		return
	}

	appCtx := app.New(database, redisCache, log,
		app.WithConfig(cfg),
		app.WithEvents(bus),
		app.WithStorage(store),
	)

	tokens := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	registry := signaling.NewRegistry()
	relay := signaling.NewRelay(registry, log.With("component", "signaling"))
	unsubscribe, err := relay.Subscribe(bus)
	if err != nil {
		log.Error("failed to subscribe relay", "err", err)
		return
	}
	defer unsubscribe()

	engine := match.NewEngine(appCtx)
	engine.SetPresence(registry)

	if cfg.AI.APIKey == "" {
		log.Warn("GROQ_API_KEY not set, AI features will use fallbacks")
	}
	aiSvc := ai.NewService(appCtx, ai.NewGroqClient(cfg))

	chat := messaging.NewService(appCtx)
	chat.SetModerator(aiSvc)

	accounts := account.NewService(appCtx, tokens)
	accounts.SetPresence(registry)

	resolve := func(ctx context.Context, userID uint64) (signaling.Identity, error) {
		u, err := engine.GetUser(ctx, userID)
		if err != nil {
			return signaling.Identity{}, err
		}
		id := signaling.Identity{ID: u.ID, Username: u.Username}
		if u.Profile != nil {
			id.Photo = u.Profile.ProfilePhoto
		}
		return id, nil
	}

	handler := server.NewRouter(cfg, log, server.HTTPDeps{
		Auth:    tokens.Middleware,
		Uploads: store.Handler(),
		Socket:  signaling.NewHandler(relay, tokens, resolve, cfg.HTTP.AllowedOrigins, log.With("component", "ws")),
		Health: func(ctx context.Context) error {
			sqlDB, err := database.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.PingContext(ctx); err != nil {
				return err
			}
			return redisCache.Ping(ctx)
		},
	},
		account.NewHandler(accounts),
		match.NewHandler(engine),
		messaging.NewHandler(chat, registry.Online),
		ai.NewHandler(aiSvc),
	)
	httpServer := server.NewHTTPServer(cfg, handler)

	grpcServer := server.NewGRPCServer(log, explore.NewRegistrar(appCtx, engine))

	if cfg.App.ENV == "development" {
		var users int64
		if err := database.Model(&db.User{}).Count(&users).Error; err == nil && users == 0 {
			if err := db.SeedTestData(database); err != nil {
				log.Error("failed to seed", "err", err)
			}
		}
	}

	go func() {
		log.Info("starting HTTP server", "addr", httpServer.Addr)
		if err := server.StartHTTPServer(httpServer); err != nil {
			log.Error("http server failed", "err", err)
			os.Exit(1)
		}
	}()
	go func() {
		log.Info("starting gRPC server", "addr", cfg.GRPC.Host+":"+cfg.GRPC.Port)
		if err := server.StartGRPCServer(cfg, grpcServer); err != nil {
			log.Error("grpc server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("http shutdown error", "err", err)
	}
	grpcServer.GracefulStop()

	if sqlDB, err := database.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error("database close error", "err", err)
		}
	}
	log.Info("server stopped")
}

func newStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Backend == "s3" {
		s3Store, err := storage.NewS3Store(context.Background(),
			cfg.Storage.S3Region, cfg.Storage.S3Bucket, cfg.Storage.S3Prefix,
			cfg.Storage.PublicBaseURL, cfg.Storage.MaxUploadSize)
		if err != nil {
			return nil, err
		}
		return s3Store, nil
	}
	return storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL, cfg.Storage.MaxUploadSize), nil
}
