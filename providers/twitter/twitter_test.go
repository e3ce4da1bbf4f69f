package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkraineNow-Intel/autoSA-backend/common/config"
	"github.com/UkraineNow-Intel/autoSA-backend/common/models"
	"github.com/UkraineNow-Intel/autoSA-backend/providers"
)

func TestBuildQueriesPacksUnderLimit(t *testing.T) {
	queries := BuildQueries([]string{"a", "b", "c"}, maxQueryLen)
	require.Len(t, queries, 1)
	assert.Equal(t, "from:a OR from:b OR from:c", queries[0])
}

func TestBuildQueriesWraps(t *testing.T) {
	var accounts []string
	for i := 0; i < 40; i++ {
		accounts = append(accounts, fmt.Sprintf("account_number_%02d", i))
	}
	queries := BuildQueries(accounts, 100)
	require.Greater(t, len(queries), 1)

	total := 0
	for _, q := range queries {
		assert.LessOrEqual(t, len(q), 100)
		assert.False(t, strings.HasPrefix(q, " OR "))
		assert.False(t, strings.HasSuffix(q, " OR "))
		total += strings.Count(q, "from:")
	}
	assert.Equal(t, len(accounts), total, "every account lands in exactly one query")
}

func TestBuildQueriesSkipsEmptyAccounts(t *testing.T) {
	queries := BuildQueries([]string{"", "spravdi", ""}, maxQueryLen)
	require.Len(t, queries, 1)
	assert.Equal(t, "from:spravdi", queries[0])
}

func sampleTweet() Tweet {
	return Tweet{
		ID:        "1510000000000000001",
		Text:      "Explosions reported",
		Lang:      "en",
		AuthorID:  "u1",
		CreatedAt: time.Date(2022, 4, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestNormalizeTweetBasics(t *testing.T) {
	inc := Includes{Users: []User{{ID: "u1", Username: "spravdi"}}}

	item, ok := normalizeTweet(sampleTweet(), inc)
	require.True(t, ok)
	assert.Equal(t, "1510000000000000001", item.ExternalID)
	assert.Equal(t, models.InterfaceTwitter, item.Interface)
	assert.Equal(t, "spravdi", item.Origin)
	assert.Equal(t, "https://twitter.com/spravdi/status/1510000000000000001", item.URL)
	assert.Equal(t, models.LanguageEN, item.Language)
	assert.Empty(t, item.Locations)
}

func TestNormalizeTweetLanguageFallback(t *testing.T) {
	tw := sampleTweet()
	tw.Lang = "pl"
	item, ok := normalizeTweet(tw, Includes{})
	require.True(t, ok)
	assert.Equal(t, models.LanguageEN, item.Language)

	tw.Lang = "uk"
	item, _ = normalizeTweet(tw, Includes{})
	assert.Equal(t, models.LanguageUK, item.Language)
}

func TestNormalizeTweetDropsIncomplete(t *testing.T) {
	tw := sampleTweet()
	tw.Text = ""
	_, ok := normalizeTweet(tw, Includes{})
	assert.False(t, ok)

	tw = sampleTweet()
	tw.CreatedAt = time.Time{}
	_, ok = normalizeTweet(tw, Includes{})
	assert.False(t, ok)
}

func TestNormalizeTweetMediaURL(t *testing.T) {
	tw := sampleTweet()
	tw.Attachments.MediaKeys = []string{"m1"}
	inc := Includes{Media: []Media{
		{MediaKey: "m1", Type: "video", PreviewImageURL: "https://pbs.example/preview.jpg"},
		{MediaKey: "m2", Type: "photo", URL: "https://pbs.example/other.jpg"},
	}}

	item, ok := normalizeTweet(tw, inc)
	require.True(t, ok)
	assert.Equal(t, "https://pbs.example/preview.jpg", item.MediaURL, "preview stands in when no direct url exists")
}

func TestTweetLocationPointPassthrough(t *testing.T) {
	tw := sampleTweet()
	tw.Geo.Coordinates = &GeoPoint{Type: "Point", Coordinates: []float64{30.52, 50.45}}

	item, ok := normalizeTweet(tw, Includes{})
	require.True(t, ok)
	require.Len(t, item.Locations, 1)
	require.NotNil(t, item.Locations[0].Point)
	assert.Nil(t, item.Locations[0].Polygon)
	assert.InDelta(t, 30.52, item.Locations[0].Point.Point[0], 1e-9)
}

func TestTweetLocationBBoxRectangle(t *testing.T) {
	tw := sampleTweet()
	tw.Geo.PlaceID = "p1"
	inc := Includes{Places: []Place{{ID: "p1", FullName: "Kyiv, Ukraine"}}}
	inc.Places[0].Geo.BBox = []float64{30.2, 50.2, 30.8, 50.6}

	item, ok := normalizeTweet(tw, inc)
	require.True(t, ok)
	require.Len(t, item.Locations, 1)

	loc := item.Locations[0]
	assert.Equal(t, "Kyiv, Ukraine", loc.Name)
	require.NotNil(t, loc.Polygon, "a bbox becomes a rectangle")
	require.NotNil(t, loc.Point, "plus its centroid")
	assert.InDelta(t, 30.5, loc.Point.Point[0], 1e-9)
	assert.InDelta(t, 50.4, loc.Point.Point[1], 1e-9)
}

func TestTweetLocationPolygonCentroid(t *testing.T) {
	tw := sampleTweet()
	tw.Geo.PlaceID = "p1"
	inc := Includes{Places: []Place{{ID: "p1", FullName: "Odesa"}}}
	inc.Places[0].Geo.Geometry = &GeoGeometry{
		Type:        "Polygon",
		Coordinates: json.RawMessage(`[[[30,46],[31,46],[31,47],[30,47],[30,46]]]`),
	}

	item, ok := normalizeTweet(tw, inc)
	require.True(t, ok)
	require.Len(t, item.Locations, 1)
	require.NotNil(t, item.Locations[0].Polygon)
	require.NotNil(t, item.Locations[0].Point)
	assert.InDelta(t, 30.5, item.Locations[0].Point.Point[0], 1e-9)
	assert.InDelta(t, 46.5, item.Locations[0].Point.Point[1], 1e-9)
}

func TestFetchPaginates(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/tweets/search/recent", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "100", r.URL.Query().Get("max_results"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("next_token") == "" {
			fmt.Fprint(w, `{
				"data": [{"id":"1","text":"first","lang":"en","author_id":"u1","created_at":"2022-04-01T08:00:00Z"}],
				"includes": {"users":[{"id":"u1","username":"spravdi"}]},
				"meta": {"result_count":1,"next_token":"page2"}
			}`)
			return
		}
		require.Equal(t, "page2", r.URL.Query().Get("next_token"))
		fmt.Fprint(w, `{
			"data": [
				{"id":"2","text":"second","lang":"uk","author_id":"u1","created_at":"2022-04-01T09:00:00Z"},
				{"id":"3","text":"","lang":"en","author_id":"u1","created_at":"2022-04-01T09:30:00Z"}
			],
			"includes": {"users":[{"id":"u1","username":"spravdi"}]},
			"meta": {"result_count":2}
		}`)
	}))
	defer server.Close()

	p, err := New(config.TwitterConfig{BearerToken: "test-token", BaseURL: server.URL}, []string{"spravdi"}, 5*time.Second)
	require.NoError(t, err)

	var got []models.NormalizedItem
	dropped, err := p.Fetch(context.Background(), providers.TimeWindow{}, func(item models.NormalizedItem) error {
		got = append(got, item)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, dropped, "the empty-text tweet is dropped")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ExternalID)
	assert.Equal(t, "2", got[1].ExternalID)
}

func TestNewRequiresBearerToken(t *testing.T) {
	_, err := New(config.TwitterConfig{}, nil, time.Second)
	assert.Error(t, err)
}
