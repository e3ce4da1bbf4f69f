package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkraineNow-Intel/autoSA-backend/common/geometry"
	"github.com/UkraineNow-Intel/autoSA-backend/common/models"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := OpenSqliteMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testItem(n int) models.NormalizedItem {
	return models.NormalizedItem{
		ExternalID: fmt.Sprintf("twitter:%d", n),
		Interface:  models.InterfaceTwitter,
		Origin:     "spravdi",
		URL:        fmt.Sprintf("https://twitter.com/spravdi/status/%d", n),
		Headline:   "",
		Text:       fmt.Sprintf("report %d", n),
		Language:   models.LanguageEN,
		Timestamp:  time.Date(2022, 4, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Minute),
	}
}

func TestUpsertIgnoreIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	items := []models.NormalizedItem{testItem(1), testItem(2)}
	ids, err := s.UpsertSources(ctx, items, models.ConflictIgnore)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	// Re-run with changed text. Existing rows must win.
	items[0].Text = "edited later"
	again, err := s.UpsertSources(ctx, items, models.ConflictIgnore)
	require.NoError(t, err)
	assert.Equal(t, ids, again)

	total, err := s.CountSources(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	src, err := s.GetSource(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "report 1", src.Text)
}

func TestUpsertUpdateOverwritesRow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	item := testItem(1)
	ids, err := s.UpsertSources(ctx, []models.NormalizedItem{item}, models.ConflictUpdate)
	require.NoError(t, err)

	first, err := s.GetSource(ctx, ids[0])
	require.NoError(t, err)

	item.Text = "corrected report"
	item.Language = models.LanguageUK
	again, err := s.UpsertSources(ctx, []models.NormalizedItem{item}, models.ConflictUpdate)
	require.NoError(t, err)
	assert.Equal(t, ids, again)

	src, err := s.GetSource(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "corrected report", src.Text)
	assert.Equal(t, models.LanguageUK, src.Language)
	assert.True(t, src.CreatedAt.Equal(first.CreatedAt), "created_at must survive overwrites")
}

func TestUpsertReplacesLocations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	poly, err := geometry.PolygonFromBBox([]float64{30.2, 50.2, 30.8, 50.6})
	require.NoError(t, err)

	item := testItem(1)
	item.Locations = []models.Location{{
		Name:    "Kyiv oblast",
		Polygon: poly,
		Origin:  models.LocationOriginGeotag,
	}}
	ids, err := s.UpsertSources(ctx, []models.NormalizedItem{item}, models.ConflictUpdate)
	require.NoError(t, err)

	item.Locations = []models.Location{{
		Name:   "Kyiv",
		Point:  geometry.NewPoint(30.52, 50.45),
		Origin: models.LocationOriginGeotag,
	}}
	_, err = s.UpsertSources(ctx, []models.NormalizedItem{item}, models.ConflictUpdate)
	require.NoError(t, err)

	src, err := s.GetSource(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, src.Locations, 1)
	assert.Equal(t, "Kyiv", src.Locations[0].Name)
	require.NotNil(t, src.Locations[0].Point)
	assert.Nil(t, src.Locations[0].Polygon)
	assert.InDelta(t, 30.52, src.Locations[0].Point.Point[0], 1e-9)
	assert.InDelta(t, 50.45, src.Locations[0].Point.Point[1], 1e-9)
}

func TestUpsertIgnoreStillReplacesLocations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	item := testItem(1)
	item.Locations = []models.Location{{
		Name:   "Odesa",
		Point:  geometry.NewPoint(30.73, 46.48),
		Origin: models.LocationOriginText,
	}}
	ids, err := s.UpsertSources(ctx, []models.NormalizedItem{item}, models.ConflictIgnore)
	require.NoError(t, err)

	item.Locations = []models.Location{{
		Name:   "Odesa",
		Point:  geometry.NewPoint(30.73, 46.48),
		Origin: models.LocationOriginText,
	}}
	_, err = s.UpsertSources(ctx, []models.NormalizedItem{item}, models.ConflictIgnore)
	require.NoError(t, err)

	src, err := s.GetSource(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, src.Locations, 1, "re-runs must not accumulate location rows")
}

func TestUpsertLeavesLocationsWhenItemCarriesNone(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	item := testItem(1)
	item.Locations = []models.Location{{
		Name:   "Kharkiv",
		Point:  geometry.NewPoint(36.23, 49.99),
		Origin: models.LocationOriginGeotag,
	}}
	ids, err := s.UpsertSources(ctx, []models.NormalizedItem{item}, models.ConflictUpdate)
	require.NoError(t, err)

	item.Locations = nil
	_, err = s.UpsertSources(ctx, []models.NormalizedItem{item}, models.ConflictUpdate)
	require.NoError(t, err)

	src, err := s.GetSource(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, src.Locations, 1, "an item without locations must not clear existing ones")
}

func TestUpsertReturnsIDsInInputOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.UpsertSources(ctx, []models.NormalizedItem{testItem(5)}, models.ConflictIgnore)
	require.NoError(t, err)

	items := []models.NormalizedItem{testItem(9), testItem(5), testItem(7)}
	ids, err := s.UpsertSources(ctx, items, models.ConflictIgnore)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	for i, id := range ids {
		src, err := s.GetSource(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, items[i].ExternalID, src.ExternalID)
	}
}

func TestCreateGetDeleteSource(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	src := &models.Source{
		ExternalID: "operator:1",
		Interface:  models.InterfaceAPI,
		Origin:     "operator",
		Text:       "manual report",
		Language:   models.LanguageEN,
		Timestamp:  time.Now().UTC(),
		Tags:       []string{"shelling", "verified"},
		Translations: []models.Translation{
			{Language: models.LanguageUK, Text: "ручне повідомлення"},
		},
		Locations: []models.Location{
			{Name: "Mariupol", Point: geometry.NewPoint(37.54, 47.09), Origin: models.LocationOriginOperator},
		},
	}
	require.NoError(t, s.CreateSource(ctx, src))
	require.NotZero(t, src.ID)

	got, err := s.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"shelling", "verified"}, got.Tags)
	require.Len(t, got.Translations, 1)
	assert.Equal(t, models.LanguageUK, got.Translations[0].Language)
	require.Len(t, got.Locations, 1)
	assert.Equal(t, "Mariupol", got.Locations[0].Name)

	dup := &models.Source{
		ExternalID: "operator:1",
		Interface:  models.InterfaceAPI,
		Text:       "duplicate",
		Language:   models.LanguageEN,
		Timestamp:  time.Now().UTC(),
	}
	assert.ErrorIs(t, s.CreateSource(ctx, dup), ErrDuplicateExternalID)

	require.NoError(t, s.DeleteSource(ctx, src.ID))
	_, err = s.GetSource(ctx, src.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteSource(ctx, src.ID), ErrNotFound)
}

func TestUpdateSourceReplacesChildren(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	src := &models.Source{
		ExternalID:   "operator:2",
		Interface:    models.InterfaceAPI,
		Text:         "draft",
		Language:     models.LanguageEN,
		Timestamp:    time.Now().UTC(),
		Tags:         []string{"draft"},
		Translations: []models.Translation{{Language: models.LanguageRU, Text: "черновик"}},
	}
	require.NoError(t, s.CreateSource(ctx, src))

	src.Text = "final"
	src.Pinned = true
	src.Tags = []string{"verified"}
	src.Translations = nil
	require.NoError(t, s.UpdateSource(ctx, src))

	got, err := s.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Text)
	assert.True(t, got.Pinned)
	assert.Equal(t, []string{"verified"}, got.Tags)
	assert.Empty(t, got.Translations)

	missing := &models.Source{ID: 99999, ExternalID: "x", Interface: models.InterfaceAPI, Language: models.LanguageEN, Timestamp: time.Now().UTC()}
	assert.ErrorIs(t, s.UpdateSource(ctx, missing), ErrNotFound)
}

func TestListSourcesFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2022, 4, 1, 0, 0, 0, 0, time.UTC)
	items := []models.NormalizedItem{
		{ExternalID: "twitter:1", Interface: models.InterfaceTwitter, Origin: "spravdi", Text: "missile strike near the port", Language: models.LanguageEN, Timestamp: base.Add(1 * time.Hour)},
		{ExternalID: "telegram:truexanewsua:2", Interface: models.InterfaceTelegram, Origin: "truexanewsua", Text: "обстріл", Language: models.LanguageUK, Timestamp: base.Add(2 * time.Hour)},
		{ExternalID: "website|2022-04-01T03:00:00Z|curfew", Interface: models.InterfaceWebsite, Origin: "odesa-site", Text: "curfew announced", Language: models.LanguageEN, Timestamp: base.Add(3 * time.Hour)},
	}
	_, err := s.UpsertSources(ctx, items, models.ConflictUpdate)
	require.NoError(t, err)

	all, total, err := s.ListSources(ctx, SourceFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, all, 3)
	// Newest first.
	assert.Equal(t, "website|2022-04-01T03:00:00Z|curfew", all[0].ExternalID)

	byInterface, total, err := s.ListSources(ctx, SourceFilter{Interface: models.InterfaceTwitter})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, byInterface, 1)
	assert.Equal(t, "spravdi", byInterface[0].Origin)

	byLang, _, err := s.ListSources(ctx, SourceFilter{Language: models.LanguageUK})
	require.NoError(t, err)
	require.Len(t, byLang, 1)

	bySearch, _, err := s.ListSources(ctx, SourceFilter{Search: "curfew"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)

	since := base.Add(90 * time.Minute)
	byWindow, _, err := s.ListSources(ctx, SourceFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, byWindow, 2)

	paged, total, err := s.ListSources(ctx, SourceFilter{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, paged, 1)
}

func TestListSourcesByTag(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tagged := &models.Source{
		ExternalID: "operator:3",
		Interface:  models.InterfaceAPI,
		Text:       "tagged",
		Language:   models.LanguageEN,
		Timestamp:  time.Now().UTC(),
		Tags:       []string{"explosion"},
	}
	require.NoError(t, s.CreateSource(ctx, tagged))
	plain := &models.Source{
		ExternalID: "operator:4",
		Interface:  models.InterfaceAPI,
		Text:       "plain",
		Language:   models.LanguageEN,
		Timestamp:  time.Now().UTC(),
	}
	require.NoError(t, s.CreateSource(ctx, plain))

	got, total, err := s.ListSources(ctx, SourceFilter{Tag: "explosion"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, "operator:3", got[0].ExternalID)
}
