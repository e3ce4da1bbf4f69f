// Package store persists sources and their child records. One SQL
// implementation serves two drivers: pgx for Postgres in production and
// modernc sqlite for tests and single-binary setups.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/UkraineNow-Intel/autoSA-backend/common/config"
	"github.com/UkraineNow-Intel/autoSA-backend/common/models"

	pgxzerolog "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/tracelog"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a source id does not exist.
	ErrNotFound = errors.New("source not found")
	// ErrDuplicateExternalID is returned when a direct create collides
	// with an existing external id.
	ErrDuplicateExternalID = errors.New("external_id already exists")
)

// SourceFilter narrows and paginates a source listing. Nil pointer fields
// are not applied.
type SourceFilter struct {
	Interface models.Interface
	Language  models.Language
	Origin    string
	Tag       string
	Search    string
	Pinned    *bool
	Deleted   *bool
	Since     *time.Time
	Until     *time.Time
	Page      int
	PerPage   int
}

// Store is the persistence boundary consumed by the refresh pipeline and
// the HTTP handlers.
type Store interface {
	// UpsertSources bulk-upserts one chunk keyed on external_id under the
	// given conflict policy, then replaces child locations for every row
	// that carries a non-empty location set. Returns the row id for each
	// input item in input order.
	UpsertSources(ctx context.Context, items []models.NormalizedItem, policy models.ConflictPolicy) ([]int64, error)

	CreateSource(ctx context.Context, src *models.Source) error
	GetSource(ctx context.Context, id int64) (models.Source, error)
	ListSources(ctx context.Context, filter SourceFilter) ([]models.Source, int64, error)
	UpdateSource(ctx context.Context, src *models.Source) error
	DeleteSource(ctx context.Context, id int64) error
	CountSources(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open connects per the configured driver and applies the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = openPostgres(cfg)
	case "sqlite":
		db, err = openSqlite(cfg.SqlitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &sqlStore{db: db, driver: cfg.Driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	log.Info().Str("driver", cfg.Driver).Msg("Database ready")
	return s, nil
}

// OpenSqliteMemory opens a throwaway in-memory store. Used by tests and
// available for local experiments.
func OpenSqliteMemory(ctx context.Context) (Store, error) {
	return Open(ctx, config.DatabaseConfig{Driver: "sqlite", SqlitePath: ":memory:"})
}

func openPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	connCfg, err := pgx.ParseConfig(cfg.ConnStr())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	connCfg.Tracer = &tracelog.TraceLog{
		Logger:   pgxzerolog.NewLogger(log.Logger),
		LogLevel: tracelog.LogLevelWarn,
	}

	db := stdlib.OpenDB(*connCfg)
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return sqlx.NewDb(db, "pgx"), nil
}

func openSqlite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// table-lock errors under the in-memory DSN.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	return db, nil
}
