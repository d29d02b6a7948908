// Package database opens the optional Postgres pool backing the request log
// and applies its schema migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	DefaultMaxOpenConns    = 10
	DefaultMaxIdleConns    = 2
	DefaultConnMaxLifetime = 5 * time.Minute
	DefaultConnMaxIdleTime = 1 * time.Minute
	DefaultPingTimeout     = 5 * time.Second
)

// PoolConfig sizes the request-log pool. Zero fields use the defaults.
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		c.MaxIdleConns = c.MaxOpenConns
	}
	return c
}

// DB is the request-log pool. It remembers its URL so migrations can run on
// a connection of their own.
type DB struct {
	*sql.DB
	url string
}

// Open creates a pool sized by pool and verifies connectivity.
func Open(ctx context.Context, databaseURL string, pool PoolConfig) (*DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pool = pool.withDefaults()
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)
	db.SetConnMaxIdleTime(DefaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		closeDB(db, "after ping failure")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("database pool ready: max_open=%d max_idle=%d", pool.MaxOpenConns, pool.MaxIdleConns)
	return &DB{DB: db, url: databaseURL}, nil
}

// Health pings the database, bounding the call when ctx has no deadline.
func (db *DB) Health(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPingTimeout)
		defer cancel()
	}

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

func closeDB(db *sql.DB, when string) {
	if err := db.Close(); err != nil {
		log.Printf("failed to close database %s: %v", when, err)
	}
}
