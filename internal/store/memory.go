package store

import (
	"sync"
	"time"

	"github.com/bcfeed/bcfeed/internal/core"
)

// MemoryStore is an in-memory Store for testing the cache engine without a
// filesystem. Values are copied on read and write to prevent aliasing.
type MemoryStore struct {
	mu      sync.RWMutex
	cache   ReleaseCache
	empty   DateSet
	scraped DateSet
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache:   make(ReleaseCache),
		empty:   make(DateSet),
		scraped: make(DateSet),
		now:     time.Now,
	}
}

func copyCache(cache ReleaseCache) ReleaseCache {
	out := make(ReleaseCache, len(cache))
	for day, bucket := range cache {
		out[day] = append(out[day][:0:0], bucket...)
	}
	return out
}

func copyDateSet(set DateSet) DateSet {
	out := make(DateSet, len(set))
	for day := range set {
		out[day] = struct{}{}
	}
	return out
}

// LoadReleaseCache returns a copy of the stored release cache.
func (s *MemoryStore) LoadReleaseCache() ReleaseCache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyCache(s.cache)
}

// SaveReleaseCache stores a copy of the release cache.
func (s *MemoryStore) SaveReleaseCache(cache ReleaseCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = copyCache(cache)
	return nil
}

// LoadEmptyDates returns a copy of the empty-date set.
func (s *MemoryStore) LoadEmptyDates() DateSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyDateSet(s.empty)
}

// SaveEmptyDates stores a copy of the empty-date set.
func (s *MemoryStore) SaveEmptyDates(dates DateSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.empty = copyDateSet(dates)
	return nil
}

// LoadScrapedDates returns a copy of the scraped-date set.
func (s *MemoryStore) LoadScrapedDates() DateSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyDateSet(s.scraped)
}

// SaveScrapedDates stores a copy of the scraped-date set. Today is stripped
// before storing, matching FileStore's write-time behavior.
func (s *MemoryStore) SaveScrapedDates(dates DateSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := copyDateSet(dates)
	out.Remove(core.DateOnly(s.now()))
	s.scraped = out
	return nil
}

// SeedScrapedDates stages scraped state directly, bypassing the write-time
// today stripping, so tests can place any date in the set.
func (s *MemoryStore) SeedScrapedDates(days ...time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, day := range days {
		s.scraped.Add(day)
	}
}
