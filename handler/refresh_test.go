package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkraineNow-Intel/autoSA-backend/common/config"
	"github.com/UkraineNow-Intel/autoSA-backend/common/models"
	"github.com/UkraineNow-Intel/autoSA-backend/common/store"
	"github.com/UkraineNow-Intel/autoSA-backend/providers"
	"github.com/UkraineNow-Intel/autoSA-backend/refresh"
)

type stubProvider struct {
	key      string
	items    []models.NormalizedItem
	fetchErr error
}

func (s *stubProvider) Key() string { return s.key }

func (s *stubProvider) Fetch(_ context.Context, _ providers.TimeWindow, emit providers.EmitFunc) (int, error) {
	for _, item := range s.items {
		if err := emit(item); err != nil {
			return 0, err
		}
	}
	return 0, s.fetchErr
}

func newRefreshServer(t *testing.T, provs ...providers.Provider) *httptest.Server {
	t.Helper()
	s, err := store.OpenSqliteMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	runner := refresh.NewRunner(s, provs, config.RefreshConfig{
		LookbackHours: 24,
		OldestDays:    7,
		BatchSize:     500,
	})
	server := httptest.NewServer(NewRefreshHandler(runner, nil).Router())
	t.Cleanup(server.Close)
	return server
}

func TestRefreshEndpointReturnsReport(t *testing.T) {
	good := &stubProvider{key: "twitter", items: []models.NormalizedItem{{
		ExternalID: "1",
		Interface:  models.InterfaceTwitter,
		Text:       "report",
		Language:   models.LanguageEN,
		Timestamp:  time.Now().UTC(),
	}}}
	bad := &stubProvider{key: "telegram", fetchErr: errors.New("auth failed")}

	server := newRefreshServer(t, good, bad)
	resp, err := http.Get(server.URL + "/?overwrite=true")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode, "failures are data, not transport errors")

	var report refresh.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.True(t, report.Meta.Overwrite)
	require.Contains(t, report.Sites, "twitter")
	require.Contains(t, report.Sites, "telegram")
	assert.Equal(t, 1, report.Sites["twitter"].Processed)
	assert.Equal(t, 1, report.Sites["telegram"].Errors.Total)
}

func TestRefreshEndpointRejectsBadOverwrite(t *testing.T) {
	server := newRefreshServer(t)
	resp, err := http.Get(server.URL + "/?overwrite=maybe")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestParseTimeParam(t *testing.T) {
	ts := parseTimeParam("2022-04-01T10:00:00Z")
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(2022, 4, 1, 10, 0, 0, 0, time.UTC), *ts)

	ts = parseTimeParam("2022-04-01")
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(2022, 4, 1, 0, 0, 0, 0, time.UTC), *ts)

	ts = parseTimeParam("24 hours ago")
	require.NotNil(t, ts)
	assert.WithinDuration(t, time.Now().UTC().Add(-24*time.Hour), *ts, time.Minute)

	assert.Nil(t, parseTimeParam(""))
	assert.Nil(t, parseTimeParam("gibberish value"))
}
