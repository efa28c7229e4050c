package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/cashlia/cashlia-core/internal/auth"
	"github.com/cashlia/cashlia-core/internal/books"
	"github.com/cashlia/cashlia-core/internal/business"
	"github.com/cashlia/cashlia-core/internal/categories"
	"github.com/cashlia/cashlia-core/internal/entries"
	"github.com/cashlia/cashlia-core/internal/invites"
	"github.com/cashlia/cashlia-core/internal/parties"
	"github.com/cashlia/cashlia-core/internal/remote"
	"github.com/cashlia/cashlia-core/internal/remote/docstore"
	"github.com/cashlia/cashlia-core/internal/remote/drive"
	"github.com/cashlia/cashlia-core/internal/selection"
	syncengine "github.com/cashlia/cashlia-core/internal/sync"
	"github.com/cashlia/cashlia-core/pkg/config"
	"github.com/cashlia/cashlia-core/pkg/enums"
	"github.com/cashlia/cashlia-core/pkg/logger"
	"github.com/cashlia/cashlia-core/pkg/prefs"
	"github.com/cashlia/cashlia-core/pkg/security"
	"github.com/cashlia/cashlia-core/pkg/store"
)

// app bundles the data layer the mobile shell embeds. The daemon below only
// drives the sync engine; everything else is wired so the shell can call it.
type app struct {
	Auth       auth.Service
	Selection  selection.Selector
	Businesses business.Service
	Books      books.Service
	Parties    parties.Service
	Categories categories.Service
	Entries    entries.Service
	Invites    invites.Service
	Sync       *syncengine.Engine
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "cashlia"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cashlia",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	st, err := store.Open(cfg.Store)
	if err != nil {
		logg.Error(context.Background(), "failed to open local store", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logg.Error(context.Background(), "error closing local store", err)
		}
	}()

	if err := st.Migrate(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to migrate local store", err)
		os.Exit(1)
	}

	p, err := prefs.NewFilePrefs(cfg.Prefs.Path)
	if err != nil {
		logg.Error(context.Background(), "failed to open preferences", err)
		os.Exit(1)
	}

	cipher, err := security.NewCipher(p)
	if err != nil {
		logg.Error(context.Background(), "failed to initialize encryption", err)
		os.Exit(1)
	}

	adapters := []remote.Adapter{drive.New(cfg.Drive, p, cipher, logg)}
	if cfg.Redis.Configured() {
		docAdapter, err := docstore.New(cfg.Redis, cipher, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap document store backend", err)
			os.Exit(1)
		}
		defer docAdapter.Close()
		adapters = append(adapters, docAdapter)
	}

	a := wire(cfg, st, p, cipher, adapters, logg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "cashlia data layer started")

	runSyncLoop(ctx, a.Sync, cfg.Sync.Interval, logg)

	a.Sync.Stop()
	logg.Info(ctx, "shutting down gracefully")
}

func wire(cfg *config.Config, st store.Store, p prefs.Prefs, cipher *security.Cipher, adapters []remote.Adapter, logg *logger.Logger) *app {
	selector := selection.NewSelector(st, p, logg)
	authService := auth.NewService(st, p, selector, cfg.Password, logg)
	businessService := business.NewService(st, authService, selector, logg)

	return &app{
		Auth:       authService,
		Selection:  selector,
		Businesses: businessService,
		Books:      books.NewService(st, authService, selector, logg),
		Parties:    parties.NewService(st, selector, logg),
		Categories: categories.NewService(st, selector, logg),
		Entries:    entries.NewService(st, authService, selector, logg),
		Invites:    invites.NewService(st, p, authService, businessService, cfg.Sync.InviteTTL, logg),
		Sync:       syncengine.NewEngine(st, p, logg, adapters...),
	}
}

// runSyncLoop pushes pending records and pulls remote changes on a fixed
// interval until the context ends. It keeps running with sync disabled and
// picks the backend up once one is configured.
func runSyncLoop(ctx context.Context, engine *syncengine.Engine, interval time.Duration, logg *logger.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	subscribed := false
	for {
		method, err := engine.Method(ctx)
		if err != nil {
			logg.Error(ctx, "failed to read sync method", err)
		}
		if method != enums.SyncMethodNone {
			if !subscribed {
				if err := engine.StartSubscriptions(ctx); err != nil {
					logg.Error(ctx, "failed to start sync subscriptions", err)
				} else {
					subscribed = true
				}
			}
			if _, err := engine.SyncAll(ctx); err != nil {
				logg.Error(ctx, "sync push failed", err)
			}
			if _, err := engine.PullUpdates(ctx); err != nil {
				logg.Error(ctx, "sync pull failed", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
