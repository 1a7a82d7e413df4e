package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// ApplicationName shows up in pg_stat_activity unless the URL sets one.
	ApplicationName string
}

// connConfig pins every session to UTC so timestamptz values come back in the
// same zone the event store writes them in.
func connConfig(databaseURL, applicationName string) (*pgx.ConnConfig, error) {
	cfg, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = map[string]string{}
	}
	cfg.RuntimeParams["timezone"] = "UTC"
	if _, ok := cfg.RuntimeParams["application_name"]; !ok && applicationName != "" {
		cfg.RuntimeParams["application_name"] = applicationName
	}
	return cfg, nil
}

func applyPool(sqlDB *sql.DB, pool PoolConfig) {
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}
}

// Open connects through pgx and verifies the connection before returning.
func Open(ctx context.Context, databaseURL string, pool PoolConfig) (*bun.DB, error) {
	cfg, err := connConfig(databaseURL, pool.ApplicationName)
	if err != nil {
		return nil, err
	}
	sqlDB := stdlib.OpenDB(*cfg)
	applyPool(sqlDB, pool)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return bun.NewDB(sqlDB, pgdialect.New()), nil
}

// Ping is the database health check.
func Ping(ctx context.Context, db *bun.DB) error {
	if db == nil {
		return sql.ErrConnDone
	}
	return db.PingContext(ctx)
}

func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
