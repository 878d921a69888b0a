package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/bcfeed/bcfeed/internal/core"
	"github.com/bcfeed/bcfeed/internal/release"
)

// PopulateOptions tune one populate run.
type PopulateOptions struct {
	// MaxResults aborts the run when a single query window matches more
	// message ids than this. Zero means core.MaxResultsHard.
	MaxResults int
	// BatchSize is the message-body download batch size. Zero means
	// core.DefaultBatchSize.
	BatchSize int
	// CacheOnly skips all external fetches and reports cached data only.
	CacheOnly bool
	// Log receives human-readable progress lines (SSE-friendly). Optional.
	Log func(msg string)
}

// PopulateReleaseCache fills the cache for the inclusive date range.
//
// Already-resolved days are served from the store; the remaining days are
// collapsed into minimal contiguous query windows and fetched sequentially.
// Windows are strictly ordered: a window's persistence completes before the
// next one's query starts, so scraped-state marking never races cache reads.
//
// A zero-result window is persisted as an empty date range. A window whose id
// list exceeds MaxResults aborts the run with *MaxResultsExceededError before
// any of its message bodies are fetched — the id list is the cheap call, the
// body fetch the expensive one. Earlier windows' persistence stays committed
// on any abort; there is no rollback.
//
// Returns the number of unique releases (cached + newly fetched) persisted.
func (e *Engine) PopulateReleaseCache(ctx context.Context, fetcher Fetcher, parse ParseFunc, start, end time.Time, opts PopulateOptions) (int, error) {
	log := opts.Log
	if log == nil {
		log = func(string) {}
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = core.MaxResultsHard
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = core.DefaultBatchSize
	}

	start, end = core.DateOnly(start), core.DateOnly(end)
	if start.After(end) {
		return 0, ErrInvalidRange
	}

	cached, missing := e.CachedReleasesForRange(start, end)
	windows := core.CollapseDateRanges(missing)
	releases := cached

	switch {
	case opts.CacheOnly:
		log(fmt.Sprintf("Cache-only mode enabled; skipping Gmail fetches. Cached releases available: %d.", len(releases)))
		windows = nil
	case len(windows) > 0:
		log("The following date ranges will be downloaded from Gmail:")
		for _, w := range windows {
			log(fmt.Sprintf("  %s to %s", core.FormatDate(w.Start), core.FormatDate(w.End)))
		}
	default:
		log("This date range has already been scraped; no Gmail download needed.")
	}

	if len(windows) > 0 {
		if err := fetcher.Authenticate(ctx); err != nil {
			log(fmt.Sprintf("ERROR: %v", err))
			return 0, err
		}

		for _, w := range windows {
			log("")
			log(fmt.Sprintf("Querying Gmail for %s to %s...", core.FormatSlashDate(w.Start), core.FormatSlashDate(w.End)))

			ids, err := fetcher.Search(ctx, w.Start, w.End)
			if err != nil {
				log(fmt.Sprintf("ERROR: %v", err))
				return 0, err
			}
			if len(ids) > maxResults {
				err := &MaxResultsExceededError{MaxResults: maxResults, Found: len(ids)}
				log(fmt.Sprintf("ERROR: %v", err))
				return 0, err
			}
			if len(ids) == 0 {
				log(fmt.Sprintf("No messages found for %s to %s", core.FormatSlashDate(w.Start), core.FormatSlashDate(w.End)))
				if err := e.PersistEmptyDateRange(w.Start, w.End, true); err != nil {
					return 0, err
				}
				continue
			}

			log(fmt.Sprintf("Found %d messages for %s to %s", len(ids), core.FormatSlashDate(w.Start), core.FormatSlashDate(w.End)))
			msgs, err := fetcher.FetchBatch(ctx, ids, batchSize, log)
			if err != nil {
				log(fmt.Sprintf("ERROR: %v", err))
				return 0, err
			}

			fresh := buildReleaseList(msgs, parse, log)
			log(fmt.Sprintf("Parsed %d releases from Gmail for %s to %s.", len(fresh), core.FormatSlashDate(w.Start), core.FormatSlashDate(w.End)))
			releases = append(releases, fresh...)

			// The whole queried span counts as scraped even before the final
			// persistence step, so it is never re-fetched.
			if err := e.MarkDateRangeScraped(w.Start, w.End, true); err != nil {
				return 0, err
			}
		}
	}

	// Reconcile URL conflicts across cached and freshly fetched windows by
	// most recent release date. Intentionally asymmetric with the per-window
	// first-wins dedupe above.
	deduped, err := release.DedupeByDate(releases, release.KeepLast)
	if err != nil {
		return 0, err
	}

	log("")
	if opts.CacheOnly {
		log(fmt.Sprintf("Loaded %d unique releases from cache.", len(deduped)))
	} else {
		log(fmt.Sprintf("Loaded %d unique releases including cache.", len(deduped)))
	}

	if err := e.PersistReleaseMetadata(deduped, true); err != nil {
		return 0, err
	}
	return len(deduped), nil
}

// buildReleaseList parses fetched messages into a URL-deduped release list.
func buildReleaseList(msgs []Message, parse ParseFunc, log func(string)) []release.Release {
	log("Parsing messages...")
	var unsifted []release.Release
	for _, msg := range msgs {
		if rel, ok := parse(msg.HTML, msg.Subject, msg.Date); ok {
			unsifted = append(unsifted, rel)
		}
	}
	log("Checking for releases with identical URLs...")
	return release.DedupeByURL(unsifted)
}
