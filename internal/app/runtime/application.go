package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	app "github.com/travelties/service_layer/internal/app"
	"github.com/travelties/service_layer/internal/app/httpapi"
	"github.com/travelties/service_layer/internal/app/services/gallery"
	"github.com/travelties/service_layer/internal/app/services/payments"
	"github.com/travelties/service_layer/internal/app/storage/postgres"
	"github.com/travelties/service_layer/internal/auth"
	"github.com/travelties/service_layer/internal/cache"
	"github.com/travelties/service_layer/internal/config"
	"github.com/travelties/service_layer/internal/middleware"
	"github.com/travelties/service_layer/internal/objectstore"
	"github.com/travelties/service_layer/internal/platform/migrations"
	"github.com/travelties/service_layer/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	db         *sql.DB
	redis      *redis.Client
}

// NewApplication loads configuration from the environment and builds the
// service.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewApplicationFromConfig(ctx, cfg)
}

// NewApplicationFromConfig builds the service from cfg.
func NewApplicationFromConfig(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := NewLogger(cfg.Logging)
	a := &Application{cfg: cfg, log: log}

	opts := app.Options{
		CacheTTL: cfg.Redis.TTL,
		Gallery: gallery.Options{
			UploadExpiry:   cfg.S3.UploadExpiry,
			DownloadExpiry: cfg.S3.DownloadExpiry,
		},
		Payments: payments.Options{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
		},
		Jobs: cfg.Jobs,
	}

	if !cfg.Database.UseMemoryStore() {
		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db = db
		if cfg.Database.MigrateOnStart {
			if err := migrations.Apply(ctx, db); err != nil {
				a.closeResources()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			log.Info("database migrations applied")
		}
		opts.Store = postgres.New(db)
	} else {
		log.Warn("DATABASE_URL not set; using in-memory store")
	}

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts.Cache = cache.NewRedis(a.redis, "travelties:")
	}

	if cfg.S3.GalleryEnabled() {
		store, err := objectstore.NewS3(ctx, objectstore.Options{
			Bucket:   cfg.S3.Bucket,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
		})
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("configure object store: %w", err)
		}
		opts.Objects = store
	} else {
		log.Info("S3_BUCKET not set; photo uploads disabled")
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log.Named("ratelimit"))
		opts.Limiter = limiter
	}

	application, err := app.New(opts, log)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	a.app = application

	handlerOpts := httpapi.Options{
		Verifier:     buildVerifier(cfg.Firebase, log),
		AppDeepLink:  cfg.Firebase.AppDeepLink,
		CORSOrigins:  cfg.CORS.Origins(),
		Limiter:      limiter,
		AuditLogPath: cfg.Server.AuditLogPath,
		Log:          log.Named("http"),
	}
	if cfg.Firebase.APIKey != "" {
		handlerOpts.EmailVerifier = auth.NewEmailVerifier(cfg.Firebase.IdentityURL, cfg.Firebase.APIKey, nil, log.Named("identity"))
	}
	handler, err := httpapi.NewHandler(application, handlerOpts)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("build http handler: %w", err)
	}

	a.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}
	return a, nil
}

// NewLogger builds the root logger from cfg.
func NewLogger(cfg config.LoggingConfig) *logger.Logger {
	return logger.New(logger.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		FilePrefix: cfg.FilePrefix,
	})
}

// buildVerifier picks token verification. Insecure mode accepts
// "Bearer dev:<uid>" and is meant for local development only.
func buildVerifier(cfg config.FirebaseConfig, log *logger.Logger) auth.Verifier {
	if cfg.AuthMode == "insecure" {
		log.Warn("AUTH_MODE=insecure; accepting dev tokens")
		return auth.InsecureVerifier{}
	}
	return auth.NewFirebaseVerifier(auth.FirebaseOptions{
		ProjectID: cfg.ProjectID,
		CertsURL:  cfg.CertsURL,
	}, log.Named("auth"))
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts background services and the HTTP server, and blocks until ctx
// is cancelled or the server fails. It shuts everything down before
// returning.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown(context.Background())
	})
	return g.Wait()
}

// Shutdown drains HTTP connections, stops background services and closes
// the database and cache connections.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop services: %w", err))
	}
	a.closeResources()
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *Application) closeResources() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
		a.db = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
		a.redis = nil
	}
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("database driver not configured")
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenDatabase opens and pings the configured database, for tooling such as
// the migrate command.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.UseMemoryStore() {
		return nil, errors.New("DATABASE_URL is not set")
	}
	return openDatabase(ctx, cfg)
}
