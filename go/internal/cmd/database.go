package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/mockdrive/go/internal/assessment/repository"
	"github.com/mcdev12/mockdrive/go/internal/config"
	"github.com/mcdev12/mockdrive/go/internal/kvstore"
)

// Databases holds every store the server talks to.
type Databases struct {
	Postgres *repository.Postgres
	SQL      *sql.DB
	Timers   kvstore.Store
	closers  []func() error
}

func (d *Databases) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}
}

func setupDatabases(ctx context.Context, cfg *config.Config) (*Databases, error) {
	dbs := &Databases{}

	dsn := cfg.Database.DSN()
	pg, err := repository.NewPostgres(ctx, repository.PostgresConfig{DSN: dsn, MaxConns: cfg.Database.MaxConns})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	dbs.Postgres = pg
	dbs.closers = append(dbs.closers, func() error { pg.Close(); return nil })

	if err := pg.Migrate(ctx); err != nil {
		dbs.Close()
		return nil, err
	}

	// The violation log and outbox share a database/sql handle with the relay.
	database, err := sql.Open("postgres", dsn)
	if err != nil {
		dbs.Close()
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := database.PingContext(ctx); err != nil {
		database.Close()
		dbs.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	dbs.SQL = database
	dbs.closers = append(dbs.closers, database.Close)

	log.Info().
		Str("user", cfg.Database.User).
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("connected to database")

	timers, closeTimers, err := setupTimerStore(ctx, cfg)
	if err != nil {
		dbs.Close()
		return nil, err
	}
	dbs.Timers = timers
	dbs.closers = append(dbs.closers, closeTimers)
	return dbs, nil
}

// setupTimerStore prefers Redis so any node can resume a session's timers,
// and falls back to an embedded Badger store.
func setupTimerStore(ctx context.Context, cfg *config.Config) (kvstore.Store, func() error, error) {
	if cfg.Redis.Addr != "" {
		r, err := kvstore.NewRedis(ctx, kvstore.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Redis.TTL,
		}, log.Logger)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	}

	if cfg.BadgerPath == "" {
		return nil, nil, errors.New("a durable timer store is required: set REDIS_ADDR or BADGER_PATH")
	}
	b, err := kvstore.OpenBadger(cfg.BadgerPath)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("path", cfg.BadgerPath).Msg("using embedded badger timer store")
	return b, b.Close, nil
}
