// Package store provides durable storage for the release cache and its
// bookkeeping date sets.
//
// # Overview
//
// The cache engine's state lives in three JSON documents under the bcfeed
// data directory:
//
//   - release_cache.json — {"YYYY-MM-DD": [release, ...], ...}
//   - no_results_dates.json — sorted ["YYYY-MM-DD", ...] of confirmed-empty days
//   - scrape_status.json — sorted ["YYYY-MM-DD", ...] of scraped days
//
// The store is a cache, not a source of truth, so reads favor availability:
// a missing or malformed document is treated as empty and never surfaces an
// error. Writes are individually atomic (temp file + rename) but the
// multi-document update sequence is not transactional; a crash between writes
// costs at worst a re-scrape.
//
// Today's date is stripped from the scraped set at write time: today's
// mailbox contents can still change intraday, so today is never authoritative.
package store

import (
	"sort"
	"time"

	"github.com/bcfeed/bcfeed/internal/core"
	"github.com/bcfeed/bcfeed/internal/release"
)

// ReleaseCache maps ISO date strings to that day's release bucket.
type ReleaseCache map[string][]release.Release

// DateSet is a set of calendar dates (midnight UTC).
type DateSet map[time.Time]struct{}

// NewDateSet builds a set from the given days, truncating to date-only.
func NewDateSet(days ...time.Time) DateSet {
	s := make(DateSet, len(days))
	for _, d := range days {
		s.Add(d)
	}
	return s
}

// Add inserts a day into the set.
func (s DateSet) Add(day time.Time) {
	s[core.DateOnly(day)] = struct{}{}
}

// Remove deletes a day from the set.
func (s DateSet) Remove(day time.Time) {
	delete(s, core.DateOnly(day))
}

// Has reports whether the set contains the day.
func (s DateSet) Has(day time.Time) bool {
	_, ok := s[core.DateOnly(day)]
	return ok
}

// Sorted returns the set's days ascending.
func (s DateSet) Sorted() []time.Time {
	days := make([]time.Time, 0, len(s))
	for d := range s {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// EmbedMeta is per-URL Bandcamp embed metadata persisted by the enrichment
// proxy, merged onto releases when the dashboard loads them.
type EmbedMeta struct {
	ReleaseID   *int64 `json:"release_id,omitempty"`
	IsTrack     *bool  `json:"is_track,omitempty"`
	EmbedURL    string `json:"embed_url,omitempty"`
	Description string `json:"description,omitempty"`
}

// Store is the persistence contract the cache engine depends on. Load methods
// never fail: a missing or corrupt document reads as empty.
type Store interface {
	LoadReleaseCache() ReleaseCache
	SaveReleaseCache(cache ReleaseCache) error

	LoadEmptyDates() DateSet
	SaveEmptyDates(dates DateSet) error

	LoadScrapedDates() DateSet
	SaveScrapedDates(dates DateSet) error
}
