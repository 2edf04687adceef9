package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stockpulse/stockpulse/internal/app"
	"github.com/stockpulse/stockpulse/internal/observability"
	"github.com/stockpulse/stockpulse/internal/platform/db"
	"github.com/stockpulse/stockpulse/internal/stocks"
	stockhttp "github.com/stockpulse/stockpulse/internal/stocks/http"
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
	if err := cfg.ValidateAPI(); err != nil {
		slog.Default().Error("validate config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	repo, closeDB, err := openRepository(ctx, logger, cfg.DBConfig)
	if err != nil {
		logger.Error("open database", slog.String("driver", cfg.Driver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeDB()

	service := stocks.NewService(repo, cfg.QueryTimeout, metrics)
	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		Metrics:      metrics,
		StockHandler: stockhttp.NewHandler(logger, service),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("driver", cfg.Driver))
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
		closeDB()
		os.Exit(1)
	}
}

// openRepository opens the configured driver's pool and returns a repository
// over it together with the matching close function. An unreachable database
// is only logged: each request then fails into the query error response.
func openRepository(ctx context.Context, logger *slog.Logger, cfg app.DBConfig) (stocks.Repository, func(), error) {
	opts := db.Options{
		Host:         cfg.Host,
		Port:         cfg.PortOrDefault(),
		User:         cfg.User,
		Password:     cfg.Password,
		Name:         cfg.Name,
		MaxOpenConns: cfg.MaxOpenConns,
	}

	var (
		repo    stocks.Repository
		closeFn func()
		ping    func(context.Context) error
	)
	switch cfg.Driver {
	case "postgres":
		pool, err := db.NewPostgres(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		pgRepo, err := stocks.NewPGRepository(pool, cfg.Table)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		repo, closeFn, ping = pgRepo, pool.Close, pool.Ping
	case "mysql":
		pool, err := db.NewMySQL(opts)
		if err != nil {
			return nil, nil, err
		}
		sqlRepo, err := stocks.NewSQLRepository(pool, cfg.Table)
		if err != nil {
			_ = pool.Close()
			return nil, nil, err
		}
		repo, closeFn, ping = sqlRepo, func() { _ = pool.Close() }, pool.PingContext
	default:
		return nil, nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	if err := db.Ping(ctx, ping); err != nil {
		logger.Warn("database unreachable, serving query errors until it recovers",
			slog.String("driver", cfg.Driver),
			slog.String("host", opts.Host),
			slog.Any("error", err))
	}
	return repo, closeFn, nil
}
