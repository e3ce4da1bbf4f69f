package store

import "context"

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS sources (
		id BIGSERIAL PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		"interface" TEXT NOT NULL,
		origin TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		media_url TEXT NOT NULL DEFAULT '',
		headline TEXT NOT NULL DEFAULT '',
		"text" TEXT NOT NULL,
		"language" TEXT NOT NULL DEFAULT 'en',
		pinned BOOLEAN NOT NULL DEFAULT FALSE,
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		"timestamp" TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sources_timestamp_idx ON sources ("timestamp")`,
	`CREATE TABLE IF NOT EXISTS translations (
		id BIGSERIAL PRIMARY KEY,
		source_id BIGINT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
		"language" TEXT NOT NULL,
		"text" TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS locations (
		id BIGSERIAL PRIMARY KEY,
		source_id BIGINT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
		name TEXT NOT NULL DEFAULT '',
		point TEXT,
		polygon TEXT,
		origin TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS locations_name_idx ON locations (name)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS source_tags (
		source_id BIGINT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
		tag_id BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (source_id, tag_id)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL UNIQUE,
		"interface" TEXT NOT NULL,
		origin TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		media_url TEXT NOT NULL DEFAULT '',
		headline TEXT NOT NULL DEFAULT '',
		"text" TEXT NOT NULL,
		"language" TEXT NOT NULL DEFAULT 'en',
		pinned BOOLEAN NOT NULL DEFAULT 0,
		deleted BOOLEAN NOT NULL DEFAULT 0,
		"timestamp" TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sources_timestamp_idx ON sources ("timestamp")`,
	`CREATE TABLE IF NOT EXISTS translations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
		"language" TEXT NOT NULL,
		"text" TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS locations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
		name TEXT NOT NULL DEFAULT '',
		point TEXT,
		polygon TEXT,
		origin TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS locations_name_idx ON locations (name)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS source_tags (
		source_id INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
		tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (source_id, tag_id)
	)`,
}

func (s *sqlStore) migrate(ctx context.Context) error {
	stmts := postgresSchema
	if s.driver == "sqlite" {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
