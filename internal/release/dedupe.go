package release

import (
	"fmt"
	"time"

	"github.com/bcfeed/bcfeed/internal/core"
)

// Keep policies for DedupeByDate.
const (
	KeepFirst = "first"
	KeepLast  = "last"
)

// DedupeByURL deduplicates releases by URL, preserving first-seen order.
// The first occurrence of a URL wins; records without a URL always pass
// through and are never deduplicated against each other.
func DedupeByURL(items []Release) []Release {
	seen := make(map[string]struct{}, len(items))
	deduped := make([]Release, 0, len(items))
	for _, item := range items {
		if item.URL != "" {
			if _, ok := seen[item.URL]; ok {
				continue
			}
			seen[item.URL] = struct{}{}
		}
		deduped = append(deduped, item)
	}
	return deduped
}

// DedupeByDate deduplicates by URL, resolving conflicts by each record's own
// date: KeepLast keeps the max date, KeepFirst the min. Ties replace, so a
// later-seen duplicate wins ties under KeepLast. Records without a URL bypass
// the comparison entirely and are appended after the kept entries.
// An unparseable date on any URL-carrying record is an error.
func DedupeByDate(items []Release, keep string) ([]Release, error) {
	if keep != KeepFirst && keep != KeepLast {
		return nil, fmt.Errorf("keep must be %q or %q", KeepFirst, KeepLast)
	}

	type dated struct {
		date time.Time
		item Release
	}

	kept := make(map[string]dated, len(items))
	var order []string
	var withoutURL []Release

	for _, item := range items {
		if item.URL == "" {
			withoutURL = append(withoutURL, item)
			continue
		}
		date, err := core.ParseDate(item.Date)
		if err != nil {
			return nil, err
		}
		existing, ok := kept[item.URL]
		if !ok {
			kept[item.URL] = dated{date: date, item: item}
			order = append(order, item.URL)
			continue
		}
		var replace bool
		if keep == KeepLast {
			replace = !date.Before(existing.date)
		} else {
			replace = !date.After(existing.date)
		}
		if replace {
			kept[item.URL] = dated{date: date, item: item}
		}
	}

	deduped := make([]Release, 0, len(kept)+len(withoutURL))
	for _, url := range order {
		deduped = append(deduped, kept[url].item)
	}
	return append(deduped, withoutURL...), nil
}
