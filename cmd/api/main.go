package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/bryanwahyu/nutrisnap/internal/application/session"
	"github.com/bryanwahyu/nutrisnap/internal/bootstrap"
	"github.com/bryanwahyu/nutrisnap/internal/config"
	"github.com/bryanwahyu/nutrisnap/internal/infra/httpserver"
	"github.com/bryanwahyu/nutrisnap/internal/logging"
	"github.com/bryanwahyu/nutrisnap/internal/middleware"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("config load error", "path", path, "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := middleware.NewMetrics()
	app, err := bootstrap.New(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	sessions := session.NewRegistry(app.Service, nil)
	idle := time.Duration(cfg.Server.SessionIdleMinutes) * time.Minute
	if idle > 0 {
		sessions.StartSweeper(ctx, time.Minute, idle, logger)
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Burst, cfg.Server.RateLimit.PerSecond)
	go limiter.Run(ctx)

	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(app.Service, sessions, httpserver.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		APIKeys:     cfg.Server.APIKeys,
		Limiter:     limiter,
		Metrics:     metrics,
		Checks:      app.Checks,
		Logger:      logger,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// the model call alone may take the full AI timeout
		WriteTimeout: time.Duration(cfg.AI.TimeoutSeconds)*time.Second + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
