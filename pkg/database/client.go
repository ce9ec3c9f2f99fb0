// Package database wraps a Postgres connection pool with embedded schema
// migrations and a transaction helper, and implements one repository per
// entity in the data model.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Client wraps a pooled *sql.DB.
type Client struct {
	db     *sql.DB
	logger *log.Logger
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithLogger overrides the default stderr logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient opens a Postgres connection pool against databaseURL and
// verifies connectivity with a bounded ping.
func NewClient(databaseURL string, opts ...ClientOption) (*Client, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	c := &Client{db: db, logger: log.New(log.Writer(), "[database] ", log.LstdFlags)}
	for _, opt := range opts {
		opt(c)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	return c, nil
}

// Health pings the pool; used by the /ready endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// DB exposes the underlying *sql.DB for repositories in this package.
func (c *Client) DB() *sql.DB { return c.db }

// MigrateUp applies every embedded migration not yet recorded, in lexical
// filename order, tracked by a schema_migrations table.
func (c *Client) MigrateUp(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (filename TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL)`); err != nil {
		return fmt.Errorf("database: create schema_migrations: %w", err)
	}

	applied, err := c.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	names, err := c.migrationFilenames()
	if err != nil {
		return err
	}

	for _, name := range names {
		if applied[name] {
			continue
		}
		if err := c.applyMigration(ctx, name); err != nil {
			return fmt.Errorf("database: apply migration %s: %w", name, err)
		}
		c.logger.Printf("applied migration %s", name)
	}
	return nil
}

// MigrationStatus reports the head (last applied, lexically) migration
// filename, or "" if none have been applied.
func (c *Client) MigrationStatus(ctx context.Context) (string, error) {
	applied, err := c.appliedMigrations(ctx)
	if err != nil {
		return "", err
	}
	if len(applied) == 0 {
		return "", nil
	}
	names := make([]string, 0, len(applied))
	for name := range applied {
		names = append(names, name)
	}
	sort.Strings(names)
	return names[len(names)-1], nil
}

func (c *Client) migrationFilenames() ([]string, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("database: read embedded migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (c *Client) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("database: query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func (c *Client) applyMigration(ctx context.Context, name string) error {
	sqlBytes, err := migrationsFS.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename, applied_at) VALUES ($1, now())`, name); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Tx wraps a *sql.Tx so repositories share one signature whether they run
// standalone or inside a caller-managed transaction.
type Tx struct {
	tx *sql.Tx
}

// BeginTx starts a transaction.
func (c *Client) BeginTx(ctx context.Context) (*Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("database: begin tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback rolls back the transaction. Safe to call after Commit (returns
// sql.ErrTxDone, which callers ignore via defer).
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// Raw exposes the underlying *sql.Tx for repository calls.
func (t *Tx) Raw() *sql.Tx { return t.tx }
