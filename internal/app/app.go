// Package app wires configuration into a running doctrack instance: store,
// rate limiter, sinks and the HTTP router.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/doctrack/doctrack/handlers"
	"github.com/doctrack/doctrack/internal/clock"
	"github.com/doctrack/doctrack/internal/config"
	"github.com/doctrack/doctrack/internal/database"
	"github.com/doctrack/doctrack/internal/database/migrations"
	dochandler "github.com/doctrack/doctrack/internal/document/handler"
	"github.com/doctrack/doctrack/internal/document/repository"
	"github.com/doctrack/doctrack/internal/document/service"
	"github.com/doctrack/doctrack/internal/ratelimit"
	"github.com/doctrack/doctrack/internal/reminder"
	remhandler "github.com/doctrack/doctrack/internal/reminder/handler"
	"github.com/doctrack/doctrack/internal/reminder/outbox"
	"github.com/doctrack/doctrack/internal/reminder/sink"
	"github.com/doctrack/doctrack/pkg/logger"
	"github.com/doctrack/doctrack/pkg/metrics"
	"github.com/doctrack/doctrack/pkg/middleware"
)

var registerMetrics sync.Once

type App struct {
	cfg   *config.Config
	clock clock.Clock

	repo       repository.Repository
	docs       *service.DocumentService
	limiter    ratelimit.Limiter
	redis      *redis.Client
	mongo      *outbox.Mongo
	outbox     outbox.Writer
	email      *sink.Email
	dispatcher *reminder.Dispatcher
}

// New opens the configured store (running migrations), the optional Redis and
// MongoDB backends, and builds the services. Optional backends that cannot be
// reached are logged and skipped; the store is mandatory.
func New(ctx context.Context, cfg *config.Config, clk clock.Clock) (*App, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	repo, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, clock: clk, repo: repo}
	a.docs = service.New(repo, clk)

	a.limiter = ratelimit.NewMemory(clk)
	if cfg.RateLimit.UseRedis {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis %s unreachable, using in-process rate limiting: %v", cfg.Redis.Addr(), err)
			_ = client.Close()
		} else {
			a.redis = client
			a.limiter = ratelimit.NewRedis(client, "doctrack:rl:", clk)
			logger.Infof("rate limiting backed by redis %s", cfg.Redis.Addr())
		}
	}

	file, err := outbox.NewFile(cfg.Reminder.OutboxPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.outbox = file
	if cfg.MongoDB.URI != "" {
		m, err := connectMongoOutbox(ctx, cfg.MongoDB)
		if err != nil {
			logger.Warnf("reminder outbox stays file-only: %v", err)
		} else {
			a.mongo = m
			a.outbox = outbox.Multi{file, m}
		}
	}

	a.email = sink.NewEmail(sink.SMTPConfig{
		Host:         cfg.SMTP.Host,
		Port:         cfg.SMTP.Port,
		Username:     cfg.SMTP.Username,
		Password:     cfg.SMTP.Password,
		From:         cfg.SMTP.From,
		TLS:          cfg.SMTP.TLS,
		Disabled:     cfg.SMTP.Disabled,
		Timeout:      cfg.SMTP.Timeout,
		MaxPerSecond: cfg.SMTP.MaxPerSecond,
	}, a.outbox)
	a.dispatcher = a.newDispatcher(a.limiter)

	logger.Infof("store=%s smtp=%v limiter=%s outbox=%s", cfg.Database.Driver, a.email.Transport(), a.limiter.Backend(), a.outbox.Location())
	return a, nil
}

// OpenDB opens the configured database without touching its schema.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, migrations.Dialect, error) {
	if cfg.Driver == config.DriverPostgres {
		db, err := database.OpenPostgres(ctx, cfg.DSN, 10*time.Second)
		return db, migrations.Postgres, err
	}
	db, err := database.OpenSQLite(cfg.Path)
	return db, migrations.SQLite, err
}

// OpenStore opens the configured database and brings its schema up to date.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (*repository.SQLStore, error) {
	db, dialect, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db, dialect); err != nil {
		db.Close()
		return nil, err
	}
	if dialect == migrations.Postgres {
		return repository.NewSQLStore(db, repository.DialectPostgres), nil
	}
	return repository.NewSQLStore(db, repository.DialectSQLite), nil
}

// connectMongoOutbox retries with backoff to tolerate startup races.
func connectMongoOutbox(ctx context.Context, cfg config.MongoDBConfig) (*outbox.Mongo, error) {
	const maxAttempts = 3
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		m, err := outbox.OpenMongo(ctx, cfg.URI, cfg.Database, cfg.Timeout)
		if err == nil {
			return m, nil
		}
		lastErr = err
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, lastErr
}

func (a *App) scope(name string, limit int) ratelimit.Scope {
	return ratelimit.Scope{Name: name, Limit: limit, Window: a.cfg.RateLimit.Window}
}

func (a *App) newDispatcher(limiter ratelimit.Limiter) *reminder.Dispatcher {
	return reminder.NewDispatcher(a.docs, limiter, a.email, sink.NewWebhook(a.outbox), reminder.Config{
		DefaultEmail:      a.cfg.Reminder.Email,
		DefaultWebhookURL: a.cfg.Reminder.WebhookURL,
		Scope:             a.scope(ratelimit.ScopeReminders, a.cfg.RateLimit.Reminders),
	})
}

// TrustedDispatcher shares the sinks of Dispatcher but skips admission. It
// backs the command-line trigger.
func (a *App) TrustedDispatcher() *reminder.Dispatcher { return a.newDispatcher(nil) }

func (a *App) Documents() *service.DocumentService { return a.docs }

// Router builds the gin engine with every route mounted.
func (a *App) Router() *gin.Engine {
	if a.cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.CORS(a.cfg.Server.CORSOrigin), gin.Logger(), gin.Recovery())

	checks := map[string]handlers.ReadinessCheck{"store": a.repo.Ping}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	handlers.RegisterHealth(r, checks)
	handlers.RegisterSwagger(r)

	dochandler.RegisterDocumentRoutes(r, a.docs,
		middleware.Limit(a.limiter, a.scope(ratelimit.ScopeDocuments, a.cfg.RateLimit.Documents)))
	remhandler.RegisterReminderRoutes(r, a.dispatcher)

	registerMetrics.Do(func() { metrics.RegisterCollectors(prometheus.DefaultRegisterer) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.cfg.Server.Addr(),
		Handler:      a.Router(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("doctrack listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases the store and optional backends.
func (a *App) Close() error {
	var errs []error
	if a.mongo != nil {
		errs = append(errs, a.mongo.Close(context.Background()))
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.repo != nil {
		errs = append(errs, a.repo.Close())
	}
	return errors.Join(errs...)
}
