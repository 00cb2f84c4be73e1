// Package server builds the application from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/coreapi/internal/api"
	"github.com/JakeFAU/coreapi/internal/assets"
	gcsassets "github.com/JakeFAU/coreapi/internal/assets/gcs"
	localassets "github.com/JakeFAU/coreapi/internal/assets/local"
	"github.com/JakeFAU/coreapi/internal/clock/system"
	"github.com/JakeFAU/coreapi/internal/config"
	"github.com/JakeFAU/coreapi/internal/core"
	"github.com/JakeFAU/coreapi/internal/database"
	"github.com/JakeFAU/coreapi/internal/database/mongo"
	"github.com/JakeFAU/coreapi/internal/database/postgres"
	"github.com/JakeFAU/coreapi/internal/hash/bcrypt"
	"github.com/JakeFAU/coreapi/internal/id/uuid"
	"github.com/JakeFAU/coreapi/internal/logging"
	"github.com/JakeFAU/coreapi/internal/policy/ratelimit"
	"github.com/JakeFAU/coreapi/internal/routing"
	"github.com/JakeFAU/coreapi/internal/telemetry"
	"github.com/JakeFAU/coreapi/internal/users"
)

// App contains the application's dependencies.
type App struct {
	cfg            *config.Config
	logger         *zap.Logger
	restoreLogger  func()
	accessor       *database.Accessor
	storage        *storage.Client
	table          *routing.Table
	users          *users.Store
	apiServer      *api.Server
	tracerShutdown func(context.Context) error
}

// Build creates the application's dependencies. Any failure aborts start-up
// and releases whatever was already acquired.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	return build(ctx, cfg, logger)
}

func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (app *App, err error) {
	app = &App{
		cfg:           cfg,
		logger:        logger,
		restoreLogger: logging.Install(logger),
	}
	defer func() {
		if err != nil {
			if cerr := app.Close(context.Background()); cerr != nil {
				logger.Warn("cleanup after failed build", zap.Error(cerr))
			}
			app = nil
		}
	}()

	tp, err := telemetry.InitTracerProvider(ctx, logging.ServiceName)
	if err != nil {
		return app, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracerShutdown = tp.Shutdown

	app.logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("database_provider", cfg.Database.Provider),
		zap.String("assets_backend", cfg.Assets.Backend),
	)

	provider, err := setupDatabase(app)
	if err != nil {
		return app, err
	}
	app.accessor = database.NewAccessor(provider, logger.Named("database"))
	if cfg.Database.ConnectOnStart {
		if err = app.accessor.CheckHealth(ctx); err != nil {
			return app, fmt.Errorf("initial database connection failed: %w", err)
		}
		app.logger.Debug("initial database check passed", zap.String("provider", provider.Name()))
	}

	loader, err := setupAssets(ctx, app)
	if err != nil {
		return app, err
	}

	app.users = users.NewStore(app.accessor, bcrypt.New(cfg.Auth.Pepper, cfg.Auth.BcryptCost), system.New())

	app.table, err = routing.NewTable(core.Rules())
	if err != nil {
		return app, fmt.Errorf("routing table init failed: %w", err)
	}
	for i, r := range app.table.Rules() {
		app.logger.Debug("route rule",
			zap.Int("priority", i),
			zap.Strings("methods", r.Methods),
			zap.String("pattern", r.Pattern),
			zap.String("target", r.Target),
		)
	}

	controller := core.NewController(app.table, app.users, loader, logger.Named("core"))
	handlers := controller.Handlers()
	authLimiter := ratelimit.New(ratelimit.Config{
		Name:  "authenticate",
		RPS:   cfg.Auth.RateLimitRPS,
		Burst: cfg.Auth.RateLimitBurst,
	})
	handlers[core.TargetAuthenticate] = authLimiter.Middleware(handlers[core.TargetAuthenticate])

	dispatch, err := api.NewDispatcher(app.table, handlers, logger.Named("dispatch"))
	if err != nil {
		return app, fmt.Errorf("dispatcher init failed: %w", err)
	}

	app.apiServer = api.NewServer(
		dispatch,
		app.accessor,
		uuid.New(),
		logger.Named("api"),
		cfg.RequestTimeout(),
	)
	return app, nil
}

func setupDatabase(app *App) (database.Provider, error) {
	dbCfg := app.cfg.Database
	switch dbCfg.Provider {
	case config.ProviderMongo:
		p, err := mongo.NewProvider(mongo.Config{
			URI:            dbCfg.Connection,
			Database:       dbCfg.Name,
			ConnectTimeout: app.cfg.ConnectTimeout(),
		}, app.logger.Named("mongo"))
		if err != nil {
			return nil, fmt.Errorf("mongo provider init failed: %w", err)
		}
		app.logger.Info("using mongo database provider", zap.String("database", p.Database()))
		return p, nil
	case config.ProviderPostgres:
		p, err := postgres.NewProvider(postgres.Config{
			DSN:            dbCfg.Connection,
			MaxConns:       dbCfg.MaxConns,
			ConnectTimeout: app.cfg.ConnectTimeout(),
		}, app.logger.Named("postgres"))
		if err != nil {
			return nil, fmt.Errorf("postgres provider init failed: %w", err)
		}
		app.logger.Info("using postgres database provider")
		return p, nil
	default:
		return nil, fmt.Errorf("unknown database provider: %s", dbCfg.Provider)
	}
}

func setupAssets(ctx context.Context, app *App) (assets.Loader, error) {
	switch app.cfg.Assets.Backend {
	case config.AssetsGCS:
		app.logger.Info("using GCS assets backend")
		var err error
		app.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		loader, err := gcsassets.New(app.storage, gcsassets.Config{
			Bucket: app.cfg.Assets.Bucket,
			Prefix: app.cfg.Assets.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs assets init failed: %w", err)
		}
		app.logger.Debug("GCS assets backend",
			zap.String("bucket", app.cfg.Assets.Bucket),
			zap.String("prefix", app.cfg.Assets.Prefix),
		)
		return loader, nil
	case config.AssetsLocal:
		loader, err := localassets.New(localassets.Config{BaseDir: app.cfg.Assets.Dir})
		if err != nil {
			return nil, fmt.Errorf("local assets init failed: %w", err)
		}
		app.logger.Info("using local assets backend", zap.String("path", loader.BaseDir()))
		if loader.Missing() {
			app.logger.Warn("assets directory does not exist; assets will not be found until it is created",
				zap.String("path", loader.BaseDir()))
		}
		return loader, nil
	default:
		return nil, fmt.Errorf("unknown assets backend: %s", app.cfg.Assets.Backend)
	}
}

// Handler returns the HTTP handler serving the application.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Table returns the compiled routing table.
func (a *App) Table() *routing.Table {
	return a.table
}

// Users returns the account store.
func (a *App) Users() *users.Store {
	return a.users
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run serves HTTP until ctx is canceled or SIGINT/SIGTERM arrives, then shuts down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// Close releases the database connection, storage client and telemetry.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.accessor != nil {
		if err := a.accessor.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
	if a.restoreLogger != nil {
		a.restoreLogger()
	}
	return errors.Join(errs...)
}
