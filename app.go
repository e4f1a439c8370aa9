// Package relatorapido wires the Relato Rápido core: accounts, the feed
// and notification fan-out over a configured document store. There is no
// server or CLI in this module; hosts embed App and drive it directly.
package relatorapido

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/italosonotos/RelatoRapido/internal/accounts"
	"github.com/italosonotos/RelatoRapido/internal/feed"
	"github.com/italosonotos/RelatoRapido/internal/notifications"
	"github.com/italosonotos/RelatoRapido/internal/store"
	"github.com/italosonotos/RelatoRapido/pkg/config"
	"github.com/italosonotos/RelatoRapido/pkg/firebase"
)

// App is the assembled application core.
type App struct {
	Config        *config.Config
	Store         store.Store
	Session       *accounts.Session
	Feed          *feed.Service
	Notifications *notifications.Service

	log     *zap.Logger
	closers []func() error
}

// Open builds an App from configuration. A nil cfg loads from the
// environment; a nil logger gets a production zap logger.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Load()
	}
	if log == nil {
		var err error
		log, err = zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	app := &App{Config: cfg, log: log}

	var provider accounts.IdentityProvider
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		fbApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			return nil, err
		}
		app.Store = store.NewFirestoreStore(fbApp.Firestore)
		provider = accounts.NewFirebaseProvider(fbApp.AuthClient)
		app.closers = append(app.closers, fbApp.Close)

	case config.BackendMongo:
		client, err := config.InitMongo(cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		mongoStore := store.NewMongoStore(client, cfg.MongoDatabase)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			config.CloseMongo(client)
			return nil, err
		}
		app.Store = mongoStore
		app.closers = append(app.closers, func() error {
			config.CloseMongo(client)
			return nil
		})
		// Identity still lives in Firebase Auth when credentials are
		// configured; the local provider covers offline development.
		if fbApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath); err == nil {
			provider = accounts.NewFirebaseProvider(fbApp.AuthClient)
			app.closers = append(app.closers, fbApp.Close)
		} else {
			log.Warn("firebase unavailable, using local identity provider", zap.Error(err))
			provider = accounts.NewLocalProvider()
		}

	case config.BackendMemory:
		memoryStore := store.NewMemoryStore()
		memoryStore.Unique("users", "username")
		app.Store = memoryStore
		provider = accounts.NewLocalProvider()

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	app.Notifications = notifications.NewService(app.Store, log.Named("notifications"))
	app.Feed = feed.NewService(app.Store, app.Notifications, log.Named("feed"))
	app.Session = accounts.NewSession(provider, app.Store, log.Named("accounts"))
	return app, nil
}

// NewProjection creates a notification read model bound to this App's
// service. Callers own Start/Stop.
func (a *App) NewProjection() *notifications.Projection {
	return notifications.NewProjection(a.Notifications)
}

// Close releases store clients.
func (a *App) Close() error {
	var firstErr error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
