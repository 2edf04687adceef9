package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stockpulse/stockpulse/internal/app"
	"github.com/stockpulse/stockpulse/internal/dashboard"
	dashboardhttp "github.com/stockpulse/stockpulse/internal/dashboard/http"
	"github.com/stockpulse/stockpulse/internal/observability"
	"github.com/stockpulse/stockpulse/internal/platform/cache"
	"github.com/stockpulse/stockpulse/internal/view"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.ValidateDashboard(); err != nil {
		slog.Default().Error("validate config", slog.Any("error", err))
		os.Exit(1)
	}
	policy, err := cfg.ZeroBasePolicy()
	if err != nil {
		slog.Default().Error("zero base policy", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, snapshot cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	client := dashboard.NewClient(cfg.APIURL, cfg.FetchTimeout)
	sessions := dashboard.NewStore(ctx, client, policy, logger, metrics, cfg.SessionTTL)

	handler := dashboardhttp.NewHandler(logger, sessions, templates, dashboard.NewCache(redisClient, cfg.SnapshotTTL), metrics)
	handler.WithLoadWait(cfg.LoadWait)
	handler.WithSecureCookie(cfg.IsProduction())
	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          metrics,
		DashboardHandler: handler,
	})

	server := &http.Server{
		Addr:         cfg.DashboardConfig.Addr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting dashboard server",
			slog.String("addr", server.Addr),
			slog.String("api", cfg.APIURL),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
