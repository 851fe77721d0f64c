// Package store is the portal's SQL persistence. Production runs on
// Postgres; local development and tests run on SQLite. Queries are written
// once with $n placeholders and rebound for SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/openhouse/portalcache/config"
)

type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database described by c and checks the connection.
func Open(c config.DB) (*Store, error) {
	driver := c.Driver
	if driver == "" {
		driver = "postgres"
	}

	db, err := sql.Open(driver, c.ConnString())
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	s, err := New(db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database. driver is "postgres" or "sqlite".
func New(db *sql.DB, driver string) (*Store, error) {
	switch driver {
	case "postgres":
		// PostgreSQL max is 100, leave room for migrations and staff.
		db.SetMaxOpenConns(90)
	case "sqlite":
		// Every connection to an in-memory database is a new database.
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

/*
rebind rewrites $n placeholders for SQLite.

SQLite gets plain ? placeholders, and the arguments are repeated and
reordered to match the order placeholders appear in. Postgres queries are
returned untouched.
*/
func (s *Store) rebind(query string, args []any) (string, []any) {
	if s.driver != "sqlite" {
		return query, args
	}

	var (
		b   strings.Builder
		out = make([]any, 0, len(args))
	)
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			b.WriteByte(query[i])
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		n, err := strconv.Atoi(query[i+1 : j])
		if err != nil || n < 1 || n > len(args) {
			b.WriteByte(query[i])
			continue
		}
		b.WriteByte('?')
		out = append(out, args[n-1])
		i = j - 1
	}
	return b.String(), out
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	query, args = s.rebind(query, args)
	return q.ExecContext(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	query, args = s.rebind(query, args)
	return q.QueryContext(ctx, query, args...)
}

func (s *Store) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	query, args = s.rebind(query, args)
	return q.QueryRowContext(ctx, query, args...)
}

// inTx runs fn in a transaction, committing when it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not start a transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		glog.Errorf("commit failed: %v", err)
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}
