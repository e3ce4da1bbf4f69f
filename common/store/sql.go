package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/UkraineNow-Intel/autoSA-backend/common/geometry"
	"github.com/UkraineNow-Intel/autoSA-backend/common/models"
)

type sqlStore struct {
	db     *sqlx.DB
	driver string
}

const sourceColumns = `id, external_id, "interface", origin, url, media_url, headline, "text", "language", pinned, deleted, "timestamp", created_at, updated_at`

const sourceUpsertUpdate = `
	INSERT INTO sources (external_id, "interface", origin, url, media_url, headline, "text", "language", pinned, deleted, "timestamp", created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (external_id) DO UPDATE SET
		"interface" = excluded."interface",
		origin = excluded.origin,
		url = excluded.url,
		media_url = excluded.media_url,
		headline = excluded.headline,
		"text" = excluded."text",
		"language" = excluded."language",
		pinned = excluded.pinned,
		deleted = excluded.deleted,
		"timestamp" = excluded."timestamp",
		updated_at = excluded.updated_at
	RETURNING id`

const sourceUpsertIgnore = `
	INSERT INTO sources (external_id, "interface", origin, url, media_url, headline, "text", "language", pinned, deleted, "timestamp", created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (external_id) DO NOTHING
	RETURNING id`

// UpsertSources commits one chunk in a single transaction. Child location
// rows are never updated in place: every row carrying locations has its
// prior set deleted and the new set inserted.
func (s *sqlStore) UpsertSources(ctx context.Context, items []models.NormalizedItem, policy models.ConflictPolicy) ([]int64, error) {
	if len(items) == 0 {
		return nil, nil
	}

	log.Info().Int("records", len(items)).Str("policy", string(policy)).Msg("Inserting records")

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	ids := make([]int64, len(items))
	for i, item := range items {
		id, err := upsertSourceRow(ctx, tx, item, policy, now)
		if err != nil {
			return nil, fmt.Errorf("upserting source %q: %w", item.ExternalID, err)
		}
		ids[i] = id
	}

	type owned struct {
		sourceID  int64
		locations []models.Location
	}
	var owners []owned
	for i, item := range items {
		if len(item.Locations) > 0 {
			owners = append(owners, owned{sourceID: ids[i], locations: item.Locations})
		}
	}

	if len(owners) > 0 {
		ownerIDs := lo.Map(owners, func(o owned, _ int) int64 { return o.sourceID })
		query, args, err := sqlx.In(`DELETE FROM locations WHERE source_id IN (?)`, ownerIDs)
		if err != nil {
			return nil, fmt.Errorf("building location delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("deleting stale locations: %w", err)
		}

		total := 0
		for _, o := range owners {
			if err := insertLocations(ctx, tx, o.sourceID, o.locations); err != nil {
				return nil, err
			}
			total += len(o.locations)
		}
		log.Info().Int("records", total).Msg("Inserting location records")
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing chunk: %w", err)
	}
	return ids, nil
}

func upsertSourceRow(ctx context.Context, tx *sqlx.Tx, item models.NormalizedItem, policy models.ConflictPolicy, now time.Time) (int64, error) {
	query := sourceUpsertUpdate
	if policy == models.ConflictIgnore {
		query = sourceUpsertIgnore
	}

	var id int64
	err := tx.QueryRowxContext(ctx, query,
		item.ExternalID,
		item.Interface,
		item.Origin,
		item.URL,
		item.MediaURL,
		item.Headline,
		item.Text,
		item.Language,
		false,
		false,
		item.Timestamp.UTC(),
		now,
		now,
	).Scan(&id)

	// DO NOTHING returns no row when the insert was skipped; the existing
	// row id still has to land in the result mapping.
	if errors.Is(err, sql.ErrNoRows) && policy == models.ConflictIgnore {
		err = tx.GetContext(ctx, &id, `SELECT id FROM sources WHERE external_id = $1`, item.ExternalID)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func insertLocations(ctx context.Context, tx *sqlx.Tx, sourceID int64, locations []models.Location) error {
	for _, loc := range locations {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO locations (source_id, name, point, polygon, origin) VALUES ($1, $2, $3, $4, $5)`,
			sourceID, loc.Name, wktPoint(loc.Point), wktPolygon(loc.Polygon), loc.Origin,
		)
		if err != nil {
			return fmt.Errorf("inserting location %q: %w", loc.Name, err)
		}
	}
	return nil
}

func wktPoint(p *geometry.Point) interface{} {
	if p == nil {
		return nil
	}
	return p.WKT()
}

func wktPolygon(p *geometry.Polygon) interface{} {
	if p == nil {
		return nil
	}
	return p.WKT()
}

// CreateSource inserts a source through the same external_id uniqueness
// check as the refresh pipeline. A colliding external_id is an error here,
// not a silent overwrite.
func (s *sqlStore) CreateSource(ctx context.Context, src *models.Source) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var id int64
	err = tx.QueryRowxContext(ctx, sourceUpsertIgnore,
		src.ExternalID,
		src.Interface,
		src.Origin,
		src.URL,
		src.MediaURL,
		src.Headline,
		src.Text,
		src.Language,
		src.Pinned,
		src.Deleted,
		src.Timestamp.UTC(),
		now,
		now,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDuplicateExternalID
	}
	if err != nil {
		return fmt.Errorf("inserting source: %w", err)
	}

	if err := replaceChildren(ctx, tx, id, src); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing source: %w", err)
	}

	src.ID = id
	src.CreatedAt = now
	src.UpdatedAt = now
	return nil
}

// UpdateSource overwrites the row and replaces all child collections:
// translations, locations, and tags are full sets, never merged.
func (s *sqlStore) UpdateSource(ctx context.Context, src *models.Source) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE sources SET
			external_id = $1, "interface" = $2, origin = $3, url = $4,
			media_url = $5, headline = $6, "text" = $7, "language" = $8,
			pinned = $9, deleted = $10, "timestamp" = $11, updated_at = $12
		WHERE id = $13`,
		src.ExternalID, src.Interface, src.Origin, src.URL,
		src.MediaURL, src.Headline, src.Text, src.Language,
		src.Pinned, src.Deleted, src.Timestamp.UTC(), now, src.ID,
	)
	if err != nil {
		return fmt.Errorf("updating source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if err := replaceChildren(ctx, tx, src.ID, src); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing source update: %w", err)
	}
	src.UpdatedAt = now
	return nil
}

func replaceChildren(ctx context.Context, tx *sqlx.Tx, sourceID int64, src *models.Source) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM translations WHERE source_id = $1`, sourceID); err != nil {
		return fmt.Errorf("deleting stale translations: %w", err)
	}
	for _, tr := range src.Translations {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO translations (source_id, "language", "text") VALUES ($1, $2, $3)`,
			sourceID, tr.Language, tr.Text,
		)
		if err != nil {
			return fmt.Errorf("inserting translation: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE source_id = $1`, sourceID); err != nil {
		return fmt.Errorf("deleting stale locations: %w", err)
	}
	if err := insertLocations(ctx, tx, sourceID, src.Locations); err != nil {
		return err
	}

	return replaceTags(ctx, tx, sourceID, src.Tags)
}

func replaceTags(ctx context.Context, tx *sqlx.Tx, sourceID int64, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM source_tags WHERE source_id = $1`, sourceID); err != nil {
		return fmt.Errorf("deleting stale tags: %w", err)
	}
	for _, name := range lo.Uniq(tags) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tags (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name,
		); err != nil {
			return fmt.Errorf("upserting tag %q: %w", name, err)
		}
		var tagID int64
		if err := tx.GetContext(ctx, &tagID, `SELECT id FROM tags WHERE name = $1`, name); err != nil {
			return fmt.Errorf("resolving tag %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO source_tags (source_id, tag_id) VALUES ($1, $2)`, sourceID, tagID,
		); err != nil {
			return fmt.Errorf("linking tag %q: %w", name, err)
		}
	}
	return nil
}

func (s *sqlStore) GetSource(ctx context.Context, id int64) (models.Source, error) {
	var src models.Source
	err := s.db.GetContext(ctx, &src,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Source{}, ErrNotFound
	}
	if err != nil {
		return models.Source{}, fmt.Errorf("loading source: %w", err)
	}
	if err := s.loadChildren(ctx, &src); err != nil {
		return models.Source{}, err
	}
	return src, nil
}

func (s *sqlStore) loadChildren(ctx context.Context, src *models.Source) error {
	src.Tags = []string{}
	err := s.db.SelectContext(ctx, &src.Tags, `
		SELECT t.name FROM tags t
		JOIN source_tags st ON st.tag_id = t.id
		WHERE st.source_id = $1
		ORDER BY t.name`, src.ID)
	if err != nil {
		return fmt.Errorf("loading tags: %w", err)
	}

	src.Translations = []models.Translation{}
	err = s.db.SelectContext(ctx, &src.Translations, `
		SELECT id, source_id, "language", "text" FROM translations
		WHERE source_id = $1 ORDER BY id`, src.ID)
	if err != nil {
		return fmt.Errorf("loading translations: %w", err)
	}

	locations, err := s.loadLocations(ctx, src.ID)
	if err != nil {
		return err
	}
	src.Locations = locations
	return nil
}

func (s *sqlStore) loadLocations(ctx context.Context, sourceID int64) ([]models.Location, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, name, point, polygon, origin FROM locations
		WHERE source_id = $1 ORDER BY id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("loading locations: %w", err)
	}
	defer rows.Close()

	locations := []models.Location{}
	for rows.Next() {
		var (
			loc            models.Location
			point, polygon sql.NullString
		)
		if err := rows.Scan(&loc.ID, &loc.SourceID, &loc.Name, &point, &polygon, &loc.Origin); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		if point.Valid {
			if loc.Point, err = geometry.ParsePointWKT(point.String); err != nil {
				return nil, fmt.Errorf("parsing location point: %w", err)
			}
		}
		if polygon.Valid {
			if loc.Polygon, err = geometry.ParsePolygonWKT(polygon.String); err != nil {
				return nil, fmt.Errorf("parsing location polygon: %w", err)
			}
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

func (s *sqlStore) ListSources(ctx context.Context, filter SourceFilter) ([]models.Source, int64, error) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(cond string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.Interface != "" {
		add(`"interface" = $%d`, filter.Interface)
	}
	if filter.Language != "" {
		add(`"language" = $%d`, filter.Language)
	}
	if filter.Origin != "" {
		add(`origin = $%d`, filter.Origin)
	}
	if filter.Search != "" {
		add(`"text" LIKE $%d`, "%"+filter.Search+"%")
	}
	if filter.Pinned != nil {
		add(`pinned = $%d`, *filter.Pinned)
	}
	if filter.Deleted != nil {
		add(`deleted = $%d`, *filter.Deleted)
	}
	if filter.Since != nil {
		add(`"timestamp" >= $%d`, filter.Since.UTC())
	}
	if filter.Until != nil {
		add(`"timestamp" <= $%d`, filter.Until.UTC())
	}
	if filter.Tag != "" {
		add(`id IN (SELECT st.source_id FROM source_tags st JOIN tags t ON t.id = st.tag_id WHERE t.name = $%d)`, filter.Tag)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM sources`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("counting sources: %w", err)
	}

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	if perPage > 500 {
		perPage = 500
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(
		`SELECT `+sourceColumns+` FROM sources%s ORDER BY "timestamp" DESC, id DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args),
	)

	sources := []models.Source{}
	if err := s.db.SelectContext(ctx, &sources, query, args...); err != nil {
		return nil, 0, fmt.Errorf("listing sources: %w", err)
	}
	for i := range sources {
		if err := s.loadChildren(ctx, &sources[i]); err != nil {
			return nil, 0, err
		}
	}
	return sources, total, nil
}

// DeleteSource removes the row and, through cascades, its children. Soft
// delete is an update of the deleted flag, not this.
func (s *sqlStore) DeleteSource(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) CountSources(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM sources`)
	return total, err
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
