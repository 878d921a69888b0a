package engine

import (
	"context"
	"time"

	"github.com/bcfeed/bcfeed/internal/release"
)

// Message is one fetched notification email, reduced to what the release
// parser needs.
type Message struct {
	HTML    string
	Subject string
	Date    time.Time
}

// Fetcher is the authenticated search provider the populate pipeline drives.
// Search must handle result pagination transparently and return the message
// ids matching the notification query for the inclusive date window.
type Fetcher interface {
	Authenticate(ctx context.Context) error
	Search(ctx context.Context, start, end time.Time) ([]string, error)
	FetchBatch(ctx context.Context, ids []string, batchSize int, progress func(msg string)) ([]Message, error)
}

// ParseFunc turns one email into a release record. ok is false for
// non-matching or malformed emails.
type ParseFunc func(html, subject string, received time.Time) (rel release.Release, ok bool)
