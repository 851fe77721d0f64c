package store

import (
	"context"
	"fmt"
	"strings"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS units (
		id              TEXT PRIMARY KEY,
		unit_uid        TEXT NOT NULL UNIQUE,
		tenant_id       TEXT NOT NULL,
		development_id  TEXT NOT NULL,
		house_type_code TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id              TEXT PRIMARY KEY,
		development_id  TEXT NOT NULL,
		title           TEXT NOT NULL,
		file_url        TEXT NOT NULL,
		mime_type       TEXT NOT NULL DEFAULT '',
		created_at      {{timestamp}} NOT NULL,
		metadata        {{json}},
		house_type_code TEXT,
		is_important    BOOLEAN NOT NULL DEFAULT FALSE,
		important_rank  INTEGER,
		must_read       BOOLEAN NOT NULL DEFAULT FALSE,
		is_superseded   BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS documents_development_idx
		ON documents (development_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS qr_tokens (
		id             TEXT PRIMARY KEY,
		unit_id        TEXT NOT NULL,
		tenant_id      TEXT NOT NULL,
		development_id TEXT NOT NULL,
		token_hash     TEXT NOT NULL UNIQUE,
		expires_at     {{timestamp}} NOT NULL,
		created_at     {{timestamp}} NOT NULL,
		revoked_at     {{timestamp}}
	)`,
	`CREATE TABLE IF NOT EXISTS diagnostic_completions (
		id           TEXT PRIMARY KEY,
		flow_id      TEXT NOT NULL,
		unit_uid     TEXT NOT NULL DEFAULT '',
		outcome      TEXT NOT NULL,
		steps        {{json}},
		completed_at {{timestamp}} NOT NULL
	)`,
}

// Migrate creates any missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	types := strings.NewReplacer(
		"{{timestamp}}", "TIMESTAMPTZ",
		"{{json}}", "JSONB",
	)
	if s.driver == "sqlite" {
		types = strings.NewReplacer(
			"{{timestamp}}", "TIMESTAMP",
			"{{json}}", "TEXT",
		)
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, types.Replace(stmt)); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return nil
}
