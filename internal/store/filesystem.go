package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bcfeed/bcfeed/internal/core"
)

// FileStore persists the bcfeed documents as JSON files under one directory.
type FileStore struct {
	root      string
	writeLock sync.Mutex
	now       func() time.Time
	rename    func(oldpath, newpath string) error
}

// NewFileStore creates a file-backed store rooted at dir. An empty dir uses
// the default data directory.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = core.DataDir()
	}
	return &FileStore{root: dir, now: time.Now, rename: os.Rename}
}

// Path returns the on-disk location of a named document.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.root, name)
}

// readJSON decodes the named document into v. Missing or malformed files
// leave v untouched and report false; the store never propagates read errors.
func (s *FileStore) readJSON(name string, v interface{}) bool {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// writeJSON writes v to the named document atomically: marshal, write a
// temporary sibling, rename over the destination. If the temp file vanished
// before the rename (external interference), fall back to a direct write.
func (s *FileStore) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return err
	}

	path := s.Path(name)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	if err := s.rename(tmpPath, path); err != nil {
		if os.IsNotExist(err) {
			return os.WriteFile(path, data, 0o644)
		}
		return err
	}
	return nil
}

// LoadReleaseCache reads the date-bucketed release cache.
func (s *FileStore) LoadReleaseCache() ReleaseCache {
	cache := make(ReleaseCache)
	s.readJSON(core.ReleaseCacheFile, &cache)
	return cache
}

// SaveReleaseCache writes the date-bucketed release cache.
func (s *FileStore) SaveReleaseCache(cache ReleaseCache) error {
	if cache == nil {
		cache = make(ReleaseCache)
	}
	return s.writeJSON(core.ReleaseCacheFile, cache)
}

func (s *FileStore) loadDateSet(name string) DateSet {
	var raw []string
	s.readJSON(name, &raw)
	set := make(DateSet, len(raw))
	for _, item := range raw {
		if day := core.ParseDateOrZero(item); !day.IsZero() {
			set.Add(day)
		}
	}
	return set
}

// saveDateSet persists a date set as a sorted list of ISO strings for
// determinism and diffability.
func (s *FileStore) saveDateSet(name string, dates DateSet, dropToday bool) error {
	today := core.DateOnly(s.now())
	payload := make([]string, 0, len(dates))
	for _, day := range dates.Sorted() {
		if dropToday && day.Equal(today) {
			continue
		}
		payload = append(payload, core.FormatDate(day))
	}
	return s.writeJSON(name, payload)
}

// LoadEmptyDates reads the confirmed-empty date set.
func (s *FileStore) LoadEmptyDates() DateSet {
	return s.loadDateSet(core.EmptyDatesFile)
}

// SaveEmptyDates writes the confirmed-empty date set.
func (s *FileStore) SaveEmptyDates(dates DateSet) error {
	return s.saveDateSet(core.EmptyDatesFile, dates, false)
}

// LoadScrapedDates reads the scraped date set.
func (s *FileStore) LoadScrapedDates() DateSet {
	return s.loadDateSet(core.ScrapeStatusFile)
}

// SaveScrapedDates writes the scraped date set. Today is always stripped
// before writing, whatever the caller passed in.
func (s *FileStore) SaveScrapedDates(dates DateSet) error {
	return s.saveDateSet(core.ScrapeStatusFile, dates, true)
}

// LoadStringSet reads a named set-of-strings document (viewed/starred state).
func (s *FileStore) LoadStringSet(name string) map[string]struct{} {
	var raw []string
	s.readJSON(name, &raw)
	set := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		set[item] = struct{}{}
	}
	return set
}

// SaveStringSet writes a named set-of-strings document, sorted.
func (s *FileStore) SaveStringSet(name string, items map[string]struct{}) error {
	payload := make([]string, 0, len(items))
	for item := range items {
		payload = append(payload, item)
	}
	sort.Strings(payload)
	return s.writeJSON(name, payload)
}

// LoadEmbedCache reads the per-URL embed metadata cache.
func (s *FileStore) LoadEmbedCache() map[string]EmbedMeta {
	cache := make(map[string]EmbedMeta)
	s.readJSON(core.EmbedCacheFile, &cache)
	return cache
}

// SaveEmbedCache writes the per-URL embed metadata cache.
func (s *FileStore) SaveEmbedCache(cache map[string]EmbedMeta) error {
	return s.writeJSON(core.EmbedCacheFile, cache)
}

// RemoveDocuments deletes the named documents, returning those actually
// removed. Missing files are skipped silently.
func (s *FileStore) RemoveDocuments(names ...string) ([]string, error) {
	var removed []string
	for _, name := range names {
		err := os.Remove(s.Path(name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, err
		}
		removed = append(removed, name)
	}
	return removed, nil
}
