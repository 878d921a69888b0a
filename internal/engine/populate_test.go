package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcfeed/bcfeed/internal/core"
	"github.com/bcfeed/bcfeed/internal/release"
	"github.com/bcfeed/bcfeed/internal/store"
)

// fakeFetcher returns canned id lists per Search call, in order, and serves
// message bodies from a map. Mirrors the in-memory transport pattern used for
// exercising cache logic without a network.
type fakeFetcher struct {
	idLists   [][]string
	msgs      map[string]Message
	authErr   error
	authCalls int
	searches  []core.DateRange
}

func (f *fakeFetcher) Authenticate(ctx context.Context) error {
	f.authCalls++
	return f.authErr
}

func (f *fakeFetcher) Search(ctx context.Context, start, end time.Time) ([]string, error) {
	f.searches = append(f.searches, core.DateRange{Start: start, End: end})
	if len(f.idLists) == 0 {
		return nil, nil
	}
	ids := f.idLists[0]
	f.idLists = f.idLists[1:]
	return ids, nil
}

func (f *fakeFetcher) FetchBatch(ctx context.Context, ids []string, batchSize int, progress func(string)) ([]Message, error) {
	msgs := make([]Message, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, f.msgs[id])
	}
	return msgs, nil
}

// parseStub treats the message HTML as the release URL.
func parseStub(html, subject string, received time.Time) (release.Release, bool) {
	if html == "" {
		return release.Release{}, false
	}
	return release.Release{URL: html, Date: core.FormatDate(received)}, true
}

func TestPopulateInvalidRange(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.PopulateReleaseCache(context.Background(), &fakeFetcher{}, parseStub,
		day(t, "2024-03-05"), day(t, "2024-03-01"), PopulateOptions{})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestPopulateFullyCachedSkipsExternalCalls(t *testing.T) {
	e, _ := newTestEngine(t)

	require.NoError(t, e.PersistEmptyDateRange(day(t, "2024-03-01"), day(t, "2024-03-03"), true))

	f := &fakeFetcher{authErr: assert.AnError}
	count, err := e.PopulateReleaseCache(context.Background(), f, parseStub,
		day(t, "2024-03-01"), day(t, "2024-03-03"), PopulateOptions{})

	require.NoError(t, err, "no missing windows means no authentication")
	assert.Zero(t, count)
	assert.Zero(t, f.authCalls)
	assert.Empty(t, f.searches)
}

func TestPopulateAuthFailureIsFatal(t *testing.T) {
	e, st := newTestEngine(t)

	f := &fakeFetcher{authErr: assert.AnError}
	_, err := e.PopulateReleaseCache(context.Background(), f, parseStub,
		day(t, "2024-03-01"), day(t, "2024-03-03"), PopulateOptions{})

	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, f.searches, "no window is queried after an auth failure")
	assert.Empty(t, st.LoadScrapedDates())
}

func TestPopulateEmptyWindowEndToEnd(t *testing.T) {
	e, _ := newTestEngine(t)

	f := &fakeFetcher{}
	count, err := e.PopulateReleaseCache(context.Background(), f, parseStub,
		day(t, "2024-03-01"), day(t, "2024-03-03"), PopulateOptions{})
	require.NoError(t, err)
	assert.Zero(t, count)
	require.Len(t, f.searches, 1)

	// The range is now fully resolved-empty: nothing cached, nothing missing.
	cached, missing := e.CachedReleasesForRange(day(t, "2024-03-01"), day(t, "2024-03-03"))
	assert.Empty(t, cached)
	assert.Empty(t, missing)

	// A second run for the same range makes no external calls.
	_, err = e.PopulateReleaseCache(context.Background(), f, parseStub,
		day(t, "2024-03-01"), day(t, "2024-03-03"), PopulateOptions{})
	require.NoError(t, err)
	assert.Len(t, f.searches, 1)
}

func TestPopulateFetchesAndPersists(t *testing.T) {
	e, st := newTestEngine(t)

	f := &fakeFetcher{
		idLists: [][]string{{"m1", "m2", "m3"}},
		msgs: map[string]Message{
			"m1": {HTML: "https://a.bandcamp.com/album/x", Subject: "New release from A", Date: day(t, "2024-03-01")},
			"m2": {HTML: "https://b.bandcamp.com/track/y", Subject: "New release from B", Date: day(t, "2024-03-02")},
			"m3": {HTML: "", Subject: "unrelated"},
		},
	}

	count, err := e.PopulateReleaseCache(context.Background(), f, parseStub,
		day(t, "2024-03-01"), day(t, "2024-03-03"), PopulateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, f.authCalls)

	cache := st.LoadReleaseCache()
	require.Len(t, cache["2024-03-01"], 1)
	require.Len(t, cache["2024-03-02"], 1)
	assert.Equal(t, "https://a.bandcamp.com/album/x", cache["2024-03-01"][0].URL)

	// The whole window is scraped, including the day that parsed nothing.
	scraped := st.LoadScrapedDates()
	for _, d := range []string{"2024-03-01", "2024-03-02", "2024-03-03"} {
		assert.True(t, scraped.Has(day(t, d)), d)
	}
}

func TestPopulateMaxResultsExceeded(t *testing.T) {
	e, st := newTestEngine(t)

	// Split the range into two windows by resolving the middle day, so the
	// first window commits before the second one blows the limit.
	require.NoError(t, e.MarkDatesScraped([]time.Time{day(t, "2024-03-03")}, true))

	f := &fakeFetcher{idLists: [][]string{nil, {"m1", "m2", "m3"}}}

	_, err := e.PopulateReleaseCache(context.Background(), f, parseStub,
		day(t, "2024-03-01"), day(t, "2024-03-05"), PopulateOptions{MaxResults: 2})

	var maxErr *MaxResultsExceededError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 2, maxErr.MaxResults)
	assert.Equal(t, 3, maxErr.Found)

	// First window (zero results) stays committed; the failing window gains
	// no scraped entries.
	empty := st.LoadEmptyDates()
	assert.True(t, empty.Has(day(t, "2024-03-01")))
	assert.True(t, empty.Has(day(t, "2024-03-02")))
	scraped := st.LoadScrapedDates()
	assert.False(t, scraped.Has(day(t, "2024-03-04")))
	assert.False(t, scraped.Has(day(t, "2024-03-05")))
}

func TestPopulateCacheOnly(t *testing.T) {
	e, st := newTestEngine(t)

	require.NoError(t, st.SaveReleaseCache(store.ReleaseCache{
		"2024-03-01": {{URL: "a", Date: "2024-03-01"}},
	}))

	f := &fakeFetcher{authErr: assert.AnError}
	count, err := e.PopulateReleaseCache(context.Background(), f, parseStub,
		day(t, "2024-03-01"), day(t, "2024-03-03"), PopulateOptions{CacheOnly: true})

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Zero(t, f.authCalls)
}

func TestPopulateCrossWindowDedupeKeepsLatest(t *testing.T) {
	e, st := newTestEngine(t)

	// Cached copy of the URL dated earlier than the freshly fetched one.
	require.NoError(t, st.SaveReleaseCache(store.ReleaseCache{
		"2024-03-01": {{URL: "https://a.bandcamp.com/album/x", Date: "2024-03-01", Title: "old"}},
	}))
	require.NoError(t, e.MarkDatesScraped([]time.Time{day(t, "2024-03-01")}, true))

	f := &fakeFetcher{
		idLists: [][]string{{"m1"}},
		msgs: map[string]Message{
			"m1": {HTML: "https://a.bandcamp.com/album/x", Subject: "New release from A", Date: day(t, "2024-03-02")},
		},
	}

	count, err := e.PopulateReleaseCache(context.Background(), f, parseStub,
		day(t, "2024-03-01"), day(t, "2024-03-02"), PopulateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// dedupeByDate(keep=last) picked the later-dated copy, so it landed in
	// the 03-02 bucket. The 03-01 bucket keeps its original entry untouched.
	cache := st.LoadReleaseCache()
	require.Len(t, cache["2024-03-02"], 1)
	assert.Equal(t, "2024-03-02", cache["2024-03-02"][0].Date)
}

func TestPopulateLogsProgress(t *testing.T) {
	e, _ := newTestEngine(t)

	var lines []string
	_, err := e.PopulateReleaseCache(context.Background(), &fakeFetcher{}, parseStub,
		day(t, "2024-03-01"), day(t, "2024-03-01"), PopulateOptions{Log: func(msg string) { lines = append(lines, msg) }})
	require.NoError(t, err)
	assert.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "date ranges will be downloaded")
}
