// Package bootstrap builds the analysis service from configuration. It is
// shared by the HTTP server and the command line tool.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bryanwahyu/nutrisnap/internal/application"
	"github.com/bryanwahyu/nutrisnap/internal/application/meal"
	"github.com/bryanwahyu/nutrisnap/internal/config"
	domain "github.com/bryanwahyu/nutrisnap/internal/domain/meal"
	aiopenai "github.com/bryanwahyu/nutrisnap/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/nutrisnap/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/nutrisnap/internal/infra/db/postgres"
	sqlitep "github.com/bryanwahyu/nutrisnap/internal/infra/db/sqlite"
	"github.com/bryanwahyu/nutrisnap/internal/infra/history"
	"github.com/bryanwahyu/nutrisnap/internal/infra/imaging"
	minioStore "github.com/bryanwahyu/nutrisnap/internal/infra/storage"
	"github.com/bryanwahyu/nutrisnap/internal/middleware"
)

// App is a wired analysis service plus the resources behind it.
type App struct {
	Service *meal.Service
	Checks  map[string]middleware.HealthChecker

	closers []func() error
}

// Close releases database handles.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

type sqlHistory interface {
	domain.HistoryStore
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
}

// New wires the service. recorder may be nil.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, recorder meal.Recorder) (*App, error) {
	app := &App{Checks: map[string]middleware.HealthChecker{}}

	store, err := app.openHistory(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	client := aiopenai.NewClient(aiopenai.Config{
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		Referer:     cfg.AI.Referer,
		Title:       cfg.AI.Title,
	})
	if !client.HasCredential() {
		logger.Warn("no model credential configured; analyses will be refused", "env", "OPENROUTER_API_KEY")
	}

	svc := &meal.Service{
		Normalizer: imaging.NewNormalizer(),
		Analyzer:   client,
		Store:      store,
		Clock:      application.SystemClock{},
		Metrics:    recorder,
		Logger:     logger,
	}

	if cfg.Minio.Enabled {
		archive, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("minio init: %w", err)
		}
		svc.Archive = archive
		app.Checks["archive"] = middleware.PingChecker{Target: archive}
	}

	app.Service = svc
	logger.Info("analysis service ready",
		"model", client.Model(),
		"history", cfg.History.Driver,
		"archive", cfg.Minio.Enabled,
	)
	return app, nil
}

func (a *App) openHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.HistoryStore, error) {
	var (
		db   *sql.DB
		repo sqlHistory
		err  error
	)
	switch cfg.History.Driver {
	case config.DriverFile:
		store := history.NewFileStore(cfg.History.Path, history.WithLogger(logger))
		a.Checks["history"] = middleware.CheckFunc(func(context.Context) error {
			_, err := os.Stat(filepath.Dir(store.Path()))
			return err
		})
		return store, nil
	case config.DriverSQLite:
		db, err = sqlitep.Open(ctx, cfg.History.Path)
		if err == nil {
			repo = sqlitep.NewHistoryRepository(db, time.Now)
		}
	case config.DriverMySQL:
		db, err = mysqlp.Connect(ctx, cfg.HistoryDSN())
		if err == nil {
			repo = mysqlp.NewHistoryRepository(db, time.Now)
		}
	case config.DriverPostgres:
		db, err = postgresp.Connect(ctx, cfg.HistoryDSN())
		if err == nil {
			repo = postgresp.NewHistoryRepository(db, time.Now)
		}
	default:
		return nil, fmt.Errorf("unknown history driver %q", cfg.History.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", cfg.History.Driver, err)
	}
	a.closers = append(a.closers, db.Close)

	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("%s schema: %w", cfg.History.Driver, err)
	}
	a.Checks["history"] = middleware.PingChecker{Target: repo}
	return repo, nil
}
