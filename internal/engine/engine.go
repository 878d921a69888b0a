// Package engine implements the release cache engine: given a requested date
// range it works out which days are already resolved, drives the external
// fetch collaborator only for the missing ones, and merges results back into
// the persistent store without duplication.
//
// # Resolution model
//
// A date is "resolved" when the engine's own knowledge of it is authoritative:
// either its cache bucket has data, or a query confirmed it empty. Two
// persisted sets back this up. The Scraped-Date Set holds every date with an
// authoritative outcome; the Empty-Date Set is the subset that yielded zero
// results. Keeping "empty" separate from "has data" lets an absent cache
// bucket mean two different things. Two invariants hold throughout:
//
//   - empty implies scraped
//   - a date that gains real data leaves the Empty-Date Set
//
// Today is never resolved, whatever the store says, because today's mailbox
// contents can still change intraday.
package engine

import (
	"sort"
	"time"

	"github.com/bcfeed/bcfeed/internal/core"
	"github.com/bcfeed/bcfeed/internal/release"
	"github.com/bcfeed/bcfeed/internal/store"
)

// Engine orchestrates reads and merges over the persistent store.
type Engine struct {
	store store.Store
	now   func() time.Time
}

// New creates an engine over the given store.
func New(st store.Store) *Engine {
	return &Engine{store: st, now: time.Now}
}

func (e *Engine) today() time.Time {
	return core.DateOnly(e.now())
}

// resolutionState owns the scraped/empty bookkeeping so the dual-set
// invariants are enforced in one place instead of at every call site.
type resolutionState struct {
	scraped store.DateSet
	empty   store.DateSet
	today   time.Time
}

func (e *Engine) loadResolution() *resolutionState {
	return &resolutionState{
		scraped: e.store.LoadScrapedDates(),
		empty:   e.store.LoadEmptyDates(),
		today:   e.today(),
	}
}

// isResolved reports whether the engine's knowledge of day is authoritative.
func (r *resolutionState) isResolved(day time.Time) bool {
	day = core.DateOnly(day)
	if day.Equal(r.today) {
		return false
	}
	return r.scraped.Has(day) || r.empty.Has(day)
}

// markEmpty records an authoritative zero-result outcome for day.
func (r *resolutionState) markEmpty(day time.Time) {
	r.empty.Add(day)
	r.scraped.Add(day)
}

// markHasData records that day's bucket now holds real data.
func (r *resolutionState) markHasData(day time.Time) {
	r.scraped.Add(day)
	r.empty.Remove(day)
}

func (e *Engine) saveResolution(r *resolutionState) error {
	if err := e.store.SaveEmptyDates(r.empty); err != nil {
		return err
	}
	return e.store.SaveScrapedDates(r.scraped)
}

// CachedReleasesForRange returns the cached releases for the inclusive date
// range plus the individual dates still needing a scrape. Callers must ensure
// start <= end; range construction sites validate that. For each day: a
// non-empty bucket contributes its releases; an unresolved day lands in
// missing; a resolved-but-empty day contributes neither. Pure read.
func (e *Engine) CachedReleasesForRange(start, end time.Time) ([]release.Release, []time.Time) {
	cache := e.store.LoadReleaseCache()
	res := e.loadResolution()

	var cached []release.Release
	var missing []time.Time
	for _, day := range core.DaysInRange(start, end) {
		bucket := cache[core.FormatDate(day)]
		if len(bucket) > 0 {
			cached = append(cached, bucket...)
		} else if !res.isResolved(day) {
			missing = append(missing, day)
		}
	}
	return release.DedupeByURL(cached), missing
}

// PersistReleaseMetadata merges releases into the cache, bucketing each by
// its own date field. Within a bucket existing entries win URL conflicts.
// Every date that receives a release is marked scraped and cleared from the
// empty set. Releases dated today are dropped when excludeToday is set, since
// today's data is inherently incomplete.
func (e *Engine) PersistReleaseMetadata(releases []release.Release, excludeToday bool) error {
	cache := e.store.LoadReleaseCache()
	res := e.loadResolution()

	for _, rel := range releases {
		day := core.ParseDateOrZero(rel.Date)
		if day.IsZero() {
			continue
		}
		if excludeToday && day.Equal(res.today) {
			continue
		}
		key := core.FormatDate(day)
		cache[key] = release.DedupeByURL(append(cache[key], rel))
		res.markHasData(day)
	}

	if err := e.store.SaveReleaseCache(cache); err != nil {
		return err
	}
	return e.saveResolution(res)
}

// PersistEmptyDateRange records a zero-result query window so it is never
// re-queried: every date in the inclusive range is marked empty and scraped.
func (e *Engine) PersistEmptyDateRange(start, end time.Time, excludeToday bool) error {
	res := e.loadResolution()
	for _, day := range core.DaysInRange(start, end) {
		if excludeToday && day.Equal(res.today) {
			continue
		}
		res.markEmpty(day)
	}
	return e.saveResolution(res)
}

// MarkDateRangeScraped marks every date in the inclusive range as scraped.
func (e *Engine) MarkDateRangeScraped(start, end time.Time, excludeToday bool) error {
	return e.MarkDatesScraped(core.DaysInRange(start, end), excludeToday)
}

// MarkDatesScraped adds the given dates to the scraped set. Idempotent.
func (e *Engine) MarkDatesScraped(dates []time.Time, excludeToday bool) error {
	scraped := e.store.LoadScrapedDates()
	today := e.today()
	for _, day := range dates {
		if excludeToday && core.DateOnly(day).Equal(today) {
			continue
		}
		scraped.Add(day)
	}
	return e.store.SaveScrapedDates(scraped)
}

// MarkDatesNotScraped removes dates from the scraped set. Used for
// invalidation and testing, not by the normal populate flow.
func (e *Engine) MarkDatesNotScraped(dates []time.Time) error {
	scraped := e.store.LoadScrapedDates()
	for _, day := range dates {
		scraped.Remove(day)
	}
	return e.store.SaveScrapedDates(scraped)
}

// ScrapeStatusForRange reports, for UI display, whether each date in the
// inclusive range is in the scraped set. Today is always false. This is not
// the missing-date computation: it ignores the empty set on purpose.
func (e *Engine) ScrapeStatusForRange(start, end time.Time) map[string]bool {
	scraped := e.store.LoadScrapedDates()
	today := e.today()
	status := make(map[string]bool)
	for _, day := range core.DaysInRange(start, end) {
		status[core.FormatDate(day)] = scraped.Has(day) && !day.Equal(today)
	}
	return status
}

// FullReleaseCache returns every cached release, flattened ascending by date
// bucket and deduplicated by URL.
func (e *Engine) FullReleaseCache() []release.Release {
	cache := e.store.LoadReleaseCache()
	keys := make([]string, 0, len(cache))
	for key := range cache {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var all []release.Release
	for _, key := range keys {
		all = append(all, cache[key]...)
	}
	return release.DedupeByURL(all)
}
