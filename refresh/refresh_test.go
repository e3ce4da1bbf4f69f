package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkraineNow-Intel/autoSA-backend/common/config"
	"github.com/UkraineNow-Intel/autoSA-backend/common/models"
	"github.com/UkraineNow-Intel/autoSA-backend/common/store"
	"github.com/UkraineNow-Intel/autoSA-backend/providers"
)

type fakeProvider struct {
	key      string
	items    []models.NormalizedItem
	dropped  int
	fetchErr error // returned after emitting items
}

func (f *fakeProvider) Key() string { return f.key }

func (f *fakeProvider) Fetch(_ context.Context, _ providers.TimeWindow, emit providers.EmitFunc) (int, error) {
	for _, item := range f.items {
		if err := emit(item); err != nil {
			return f.dropped, err
		}
	}
	return f.dropped, f.fetchErr
}

type scriptedUpserter struct {
	calls     int
	failCalls map[int]error
	chunks    [][]models.NormalizedItem
}

func (u *scriptedUpserter) UpsertSources(_ context.Context, chunk []models.NormalizedItem, _ models.ConflictPolicy) ([]int64, error) {
	u.calls++
	if err, ok := u.failCalls[u.calls]; ok {
		return nil, err
	}
	u.chunks = append(u.chunks, chunk)
	ids := make([]int64, len(chunk))
	return ids, nil
}

func testRunner(u Upserter, provs ...providers.Provider) *Runner {
	r := NewRunner(u, provs, config.RefreshConfig{
		LookbackHours: 24,
		OldestDays:    7,
		BatchSize:     2,
	})
	r.now = func() time.Time { return time.Date(2022, 4, 10, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestRunChunkFailureIsolation(t *testing.T) {
	u := &scriptedUpserter{failCalls: map[int]error{2: errors.New("deadlock detected")}}
	p := &fakeProvider{key: "twitter", items: items(5)}

	report := testRunner(u, p).Run(context.Background(), Options{})

	site := report.Sites["twitter"]
	assert.Equal(t, DetailCompleted, site.Detail)
	assert.Equal(t, 3, site.Processed, "chunks around the failing one still commit")
	assert.Equal(t, 1, site.Errors.Total, "errors count failing chunks, not failing items")
	require.Len(t, site.Errors.Exceptions, 1)
	assert.Equal(t, ClassUpsertError, site.Errors.Exceptions[0].Class)
	assert.Contains(t, site.Errors.Exceptions[0].Message, "deadlock")
}

func TestRunProviderIsolation(t *testing.T) {
	u := &scriptedUpserter{}
	good1 := &fakeProvider{key: "site-a", items: items(3)}
	bad := &fakeProvider{key: "telegram", fetchErr: errors.New("auth key invalid")}
	good2 := &fakeProvider{key: "twitter", items: items(2)}

	report := testRunner(u, good1, bad, good2).Run(context.Background(), Options{})

	require.Len(t, report.Sites, 3, "every provider key is present")
	assert.Equal(t, 3, report.Sites["site-a"].Processed)
	assert.Equal(t, 2, report.Sites["twitter"].Processed)

	failed := report.Sites["telegram"]
	assert.Zero(t, failed.Processed)
	assert.Equal(t, 1, failed.Errors.Total)
	assert.Equal(t, ClassProviderError, failed.Errors.Exceptions[0].Class)
}

func TestRunFetchErrorDiscardsPartialChunk(t *testing.T) {
	u := &scriptedUpserter{}
	p := &fakeProvider{key: "twitter", items: items(1), fetchErr: errors.New("rate limited")}

	report := testRunner(u, p).Run(context.Background(), Options{})

	assert.Zero(t, u.calls, "a partial buffer is not flushed after a fetch failure")
	assert.Zero(t, report.Sites["twitter"].Processed)
	assert.Equal(t, 1, report.Sites["twitter"].Errors.Total)
}

func TestRunRecordsDropped(t *testing.T) {
	u := &scriptedUpserter{}
	p := &fakeProvider{key: "twitter", items: items(2), dropped: 4}

	report := testRunner(u, p).Run(context.Background(), Options{})
	assert.Equal(t, 4, report.Sites["twitter"].Dropped)
}

func TestResolveWindowDefaults(t *testing.T) {
	r := testRunner(&scriptedUpserter{})
	now := r.now()

	win := r.resolveWindow(Options{})
	require.NotNil(t, win.Start)
	assert.Equal(t, now.Add(-24*time.Hour), *win.Start)
	assert.Nil(t, win.End)
}

func TestResolveWindowDropsTooOldStart(t *testing.T) {
	r := testRunner(&scriptedUpserter{})
	now := r.now()

	tooOld := now.Add(-8 * 24 * time.Hour)
	win := r.resolveWindow(Options{StartTime: &tooOld})
	assert.Nil(t, win.Start, "a start beyond the oldest bound falls back to the provider default")

	recent := now.Add(-2 * time.Hour)
	end := now.Add(-time.Hour)
	win = r.resolveWindow(Options{StartTime: &recent, EndTime: &end})
	require.NotNil(t, win.Start)
	assert.Equal(t, recent, *win.Start)
	require.NotNil(t, win.End)
	assert.Equal(t, end, *win.End)
}

func TestRunOverwriteMapsToPolicy(t *testing.T) {
	ctx := context.Background()
	s, err := store.OpenSqliteMemory(ctx)
	require.NoError(t, err)
	defer s.Close()

	item := models.NormalizedItem{
		ExternalID: "aaa",
		Interface:  models.InterfaceTwitter,
		Text:       "blah",
		Language:   models.LanguageEN,
		Timestamp:  time.Date(2022, 4, 10, 10, 0, 0, 0, time.UTC),
	}
	p := &fakeProvider{key: "twitter", items: []models.NormalizedItem{item}}
	r := testRunner(s, p)

	r.Run(ctx, Options{Overwrite: false})

	p.items[0].Text = "blah blah"
	r.Run(ctx, Options{Overwrite: false})

	total, err := s.CountSources(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	got, _, err := s.ListSources(ctx, store.SourceFilter{})
	require.NoError(t, err)
	assert.Equal(t, "blah", got[0].Text, "overwrite=false keeps the first insertion")

	r.Run(ctx, Options{Overwrite: true})
	got, _, err = s.ListSources(ctx, store.SourceFilter{})
	require.NoError(t, err)
	assert.Equal(t, "blah blah", got[0].Text, "overwrite=true overwrites the row")
}

func TestReportJSONShape(t *testing.T) {
	u := &scriptedUpserter{}
	p := &fakeProvider{key: "twitter", items: items(1)}

	report := testRunner(u, p).Run(context.Background(), Options{})
	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "meta")
	assert.Contains(t, decoded, "sites")

	var sites map[string]struct {
		Detail string `json:"detail"`
		Errors struct {
			Total      int               `json:"total"`
			Exceptions []json.RawMessage `json:"exceptions"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(decoded["sites"], &sites))
	assert.Equal(t, "Refresh completed", sites["twitter"].Detail)
	assert.NotNil(t, sites["twitter"].Errors.Exceptions, "exceptions renders as an empty list, not null")
}
