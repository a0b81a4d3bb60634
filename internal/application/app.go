// Package application wires the configured store, dispatcher and service
// together for the server and the ledgerctl tool.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/importledger/internal/config"
	"github.com/JonMunkholm/importledger/internal/core"
	"github.com/JonMunkholm/importledger/internal/database"
	"github.com/JonMunkholm/importledger/internal/memstore"
	"github.com/jackc/pgx/v5/pgxpool"
)

// App is a running ledger backend.
type App struct {
	Service *core.Service
	// Pool is nil with the memory driver.
	Pool *pgxpool.Pool
}

// Options adjusts Open for callers that are not the server.
type Options struct {
	// SkipMigrate leaves the schema alone even when auto-migrate is on.
	SkipMigrate bool
}

// Open connects the configured store and builds the service.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	svcOpts := core.Options{
		DefaultPageSize: cfg.Imports.DefaultPageSize,
		MaxPageSize:     cfg.Imports.MaxPageSize,
		MaxStreams:      cfg.Progress.MaxStreams,
		StreamWait:      cfg.Progress.MaxWait,
	}

	if !cfg.UsesPostgres() {
		slog.Warn("using in-memory store; data is lost on exit")
		svc, err := core.NewService(memstore.New(), core.LogDispatcher{}, svcOpts)
		if err != nil {
			return nil, err
		}
		return &App{Service: svc}, nil
	}

	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate && !opts.SkipMigrate {
		applied, err := database.Migrate(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		slog.Info("migrations applied", "count", applied)
	}

	dispatcher := database.NewNotifyDispatcher(pool, cfg.Imports.DispatchChannel)
	svc, err := core.NewService(database.New(pool), dispatcher, svcOpts)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &App{Service: svc, Pool: pool}, nil
}

// Connect opens the configured PostgreSQL pool.
func Connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := database.Connect(ctx, cfg.Database.URL, database.PoolConfig{
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
