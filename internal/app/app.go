// Package app builds the process-lifetime collaborators once at startup and
// hands them to the HTTP server and the CLI commands.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/denosaur/dinosaurs/internal/api"
	"github.com/denosaur/dinosaurs/internal/config"
	"github.com/denosaur/dinosaurs/internal/database"
	"github.com/denosaur/dinosaurs/internal/dinosaur/store"
	"github.com/denosaur/dinosaurs/internal/identity"
	"github.com/denosaur/dinosaurs/internal/server"
	"github.com/denosaur/dinosaurs/internal/static"
	"github.com/denosaur/dinosaurs/internal/storage"
	"github.com/denosaur/dinosaurs/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// App is the explicitly constructed application context.
type App struct {
	Config   *config.Config
	Identity *identity.Client
	Store    store.Store
	Static   static.Source
	Redis    *redis.Client

	closers []func(context.Context) error
}

// New wires every collaborator described by cfg. It does not sign in; callers
// run EnsureAuth before serving.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	logger.Debugf("firebase project=%s authDomain=%s storageBucket=%q messagingSenderId=%q appId=%q",
		cfg.Firebase.ProjectID, cfg.Firebase.AuthDomain, cfg.Firebase.StorageBucket,
		cfg.Firebase.MessagingSenderID, cfg.Firebase.AppID)

	a.Identity = identity.NewClient(identityConfig(ctx, cfg))

	s, err := a.newStore(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Store = store.Instrument(s)

	src, err := newStaticSource(cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Static = src

	a.connectRedis(ctx)
	return a, nil
}

func identityConfig(ctx context.Context, cfg *config.Config) identity.Config {
	ic := identity.Config{APIKey: cfg.Firebase.APIKey}
	if cfg.Emulator.Enabled {
		ic.EmulatorHost = cfg.Emulator.AuthHost
		// the auth emulator issues unsigned tokens
		ic.Verifier = identity.NewInsecureVerifier()
		logger.Infof("using auth emulator at %s", config.EmulatorURL(cfg.Emulator.AuthHost))
		return ic
	}
	ver, err := identity.NewOIDCVerifier(ctx, identity.IssuerFor(cfg.Firebase.ProjectID), cfg.Firebase.ProjectID)
	if err != nil {
		logger.Warnf("failed to initialize OIDC verifier, ID tokens will not be verified: %v", err)
		return ic
	}
	ic.Verifier = ver
	return ic
}

func (a *App) newStore(ctx context.Context) (store.Store, error) {
	cfg := a.Config
	switch cfg.Store.Backend {
	case config.BackendMemory:
		logger.Warnf("using in-memory store; records are lost on exit")
		return store.NewMemoryStore(), nil
	case config.BackendMongo:
		client, err := database.Connect(ctx, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Disconnect)
		s, err := store.NewMongoStore(ctx, database.Collection(client, cfg.MongoDB, cfg.Store.Collection))
		if err != nil {
			return nil, fmt.Errorf("mongo store: %w", err)
		}
		logger.Infof("using MongoDB store database=%s collection=%s", cfg.MongoDB.Database, cfg.Store.Collection)
		return s, nil
	default:
		fc := store.FirestoreConfig{ProjectID: cfg.Firebase.ProjectID, Collection: cfg.Store.Collection}
		if cfg.Emulator.Enabled {
			fc.EmulatorHost = cfg.Emulator.FirestoreHost
			logger.Infof("using Firestore emulator at %s", cfg.Emulator.FirestoreHost)
		}
		return store.NewFirestoreStore(fc, a.Identity), nil
	}
}

func newStaticSource(cfg *config.Config) (static.Source, error) {
	if cfg.Static.Source == config.StaticMinIO {
		b, err := storage.NewBucket(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		logger.Infof("serving static files from bucket %s/%s", cfg.MinIO.Bucket, cfg.MinIO.Prefix)
		return b, nil
	}
	return static.NewDirSource(cfg.Server.PublicDir), nil
}

// connectRedis creates the optional Redis client. A failed ping leaves Redis
// unused and the limiter falls back to memory.
func (a *App) connectRedis(ctx context.Context) {
	cfg := a.Config.Redis
	if cfg.Host == "" {
		return
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Host + ":" + cfg.Port, Password: cfg.Password, DB: cfg.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Host, cfg.Port, err)
		_ = client.Close()
		return
	}
	logger.Infof("Connected to Redis for rate limiting: %s:%s", cfg.Host, cfg.Port)
	a.Redis = client
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
}

// Server builds the HTTP entry point over the app's collaborators.
func (a *App) Server() *server.Server {
	return server.New(server.Options{
		Router:       api.NewRouter(a.Store),
		Static:       static.New(a.Static),
		Session:      a.Identity,
		StoreBackend: a.Config.Store.Backend,
		Redis:        a.Redis,
		RateLimit:    a.Config.RateLimit,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	})
}

// Close releases database and cache connections in reverse order.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warnf("close: %v", err)
		}
	}
	a.closers = nil
}
