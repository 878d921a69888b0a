package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcfeed/bcfeed/internal/core"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s := NewFileStore(t.TempDir())
	// Pin the clock so "today" is deterministic.
	s.now = func() time.Time { return time.Date(2024, 6, 15, 13, 30, 0, 0, time.UTC) }
	return s
}

func TestReleaseCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)

	id := int64(12345)
	cache := ReleaseCache{
		"2024-01-16": {
			{
				URL:       "https://label.bandcamp.com/album/first",
				Date:      "2024-01-16",
				Artist:    "Some Artist",
				Title:     "First",
				PageName:  "Label",
				IsTrack:   false,
				ReleaseID: &id,
			},
			{
				URL:     "https://label.bandcamp.com/track/second",
				Date:    "2024-01-16",
				IsTrack: true,
			},
		},
		"2024-01-17": {{Date: "2024-01-17", Title: "no url"}},
	}

	require.NoError(t, s.SaveReleaseCache(cache))
	assert.Equal(t, cache, s.LoadReleaseCache())
}

func TestLoadToleratesMissingAndMalformed(t *testing.T) {
	s := newTestStore(t)

	assert.Empty(t, s.LoadReleaseCache())
	assert.Empty(t, s.LoadEmptyDates())

	require.NoError(t, os.MkdirAll(s.root, 0o755))
	require.NoError(t, os.WriteFile(s.Path(core.ReleaseCacheFile), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(s.Path(core.ScrapeStatusFile), []byte(`"wrong shape"`), 0o644))

	assert.Empty(t, s.LoadReleaseCache())
	assert.Empty(t, s.LoadScrapedDates())
}

func TestDateSetsPersistSortedISO(t *testing.T) {
	s := newTestStore(t)

	set := NewDateSet(
		time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, s.SaveEmptyDates(set))

	data, err := os.ReadFile(s.Path(core.EmptyDatesFile))
	require.NoError(t, err)
	var raw []string
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []string{"2024-02-01", "2024-02-02", "2024-02-03"}, raw)

	assert.Equal(t, set, s.LoadEmptyDates())
}

func TestScrapedDatesNeverIncludeToday(t *testing.T) {
	s := newTestStore(t)
	today := core.DateOnly(s.now())
	yesterday := today.AddDate(0, 0, -1)

	require.NoError(t, s.SaveScrapedDates(NewDateSet(yesterday, today)))

	reloaded := s.LoadScrapedDates()
	assert.True(t, reloaded.Has(yesterday))
	assert.False(t, reloaded.Has(today), "today must be stripped at the storage boundary")
}

func TestAtomicWriteFallsBackWhenTempVanishes(t *testing.T) {
	// A temp file removed out from under the rename must not fail the save;
	// the payload still lands via the direct write.
	s := newTestStore(t)
	s.rename = func(oldpath, newpath string) error {
		require.NoError(t, os.Remove(oldpath))
		return &os.PathError{Op: "rename", Path: oldpath, Err: os.ErrNotExist}
	}

	require.NoError(t, s.SaveEmptyDates(NewDateSet(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))))

	data, err := os.ReadFile(s.Path(core.EmptyDatesFile))
	require.NoError(t, err)
	var raw []string
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []string{"2024-02-01"}, raw)
	assert.NoFileExists(t, filepath.Join(s.root, core.EmptyDatesFile+".tmp"))
}

func TestAtomicWritePropagatesOtherRenameErrors(t *testing.T) {
	s := newTestStore(t)
	s.rename = func(oldpath, newpath string) error {
		return &os.PathError{Op: "rename", Path: oldpath, Err: os.ErrPermission}
	}

	err := s.SaveEmptyDates(NewDateSet())
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(s.root, core.EmptyDatesFile))
}

func TestStringSetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	items := map[string]struct{}{
		"https://a.bandcamp.com/album/x": {},
		"https://b.bandcamp.com/track/y": {},
	}
	require.NoError(t, s.SaveStringSet(core.ViewedStateFile, items))
	assert.Equal(t, items, s.LoadStringSet(core.ViewedStateFile))
}

func TestEmbedCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)

	id := int64(777)
	isTrack := true
	cache := map[string]EmbedMeta{
		"https://a.bandcamp.com/track/y": {
			ReleaseID:   &id,
			IsTrack:     &isTrack,
			EmbedURL:    "https://bandcamp.com/EmbeddedPlayer/track=777/",
			Description: "liner notes",
		},
	}
	require.NoError(t, s.SaveEmbedCache(cache))
	assert.Equal(t, cache, s.LoadEmbedCache())
}

func TestRemoveDocuments(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveEmptyDates(NewDateSet()))

	removed, err := s.RemoveDocuments(core.EmptyDatesFile, core.ReleaseCacheFile)
	require.NoError(t, err)
	assert.Equal(t, []string{core.EmptyDatesFile}, removed)
}
