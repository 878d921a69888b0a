package gmail

import (
	"context"
	"time"

	"github.com/bcfeed/bcfeed/internal/core"
	"github.com/bcfeed/bcfeed/internal/engine"
)

// Mock is an in-memory Fetcher for tests. Messages seeded with a date are
// matched to search windows by that date; Authenticate and Search can be
// forced to fail.
type Mock struct {
	AuthFailure   error
	SearchFailure error

	messages map[string]engine.Message
	byDay    map[string][]string
	order    []string

	AuthCalls   int
	SearchCalls int
	FetchCalls  int
}

// NewMock creates an empty mock fetcher.
func NewMock() *Mock {
	return &Mock{
		messages: make(map[string]engine.Message),
		byDay:    make(map[string][]string),
	}
}

// Seed registers a message under the given id.
func (m *Mock) Seed(id string, msg engine.Message) {
	if _, exists := m.messages[id]; !exists {
		m.order = append(m.order, id)
		day := core.FormatDate(msg.Date)
		m.byDay[day] = append(m.byDay[day], id)
	}
	m.messages[id] = msg
}

// Authenticate fails with AuthFailure when set.
func (m *Mock) Authenticate(ctx context.Context) error {
	m.AuthCalls++
	return m.AuthFailure
}

// Search returns the ids of seeded messages dated within the window.
func (m *Mock) Search(ctx context.Context, start, end time.Time) ([]string, error) {
	m.SearchCalls++
	if m.SearchFailure != nil {
		return nil, m.SearchFailure
	}
	var ids []string
	for _, day := range core.DaysInRange(start, end) {
		ids = append(ids, m.byDay[core.FormatDate(day)]...)
	}
	return ids, nil
}

// FetchBatch returns the seeded messages for the given ids.
func (m *Mock) FetchBatch(ctx context.Context, ids []string, batchSize int, progress func(string)) ([]engine.Message, error) {
	m.FetchCalls++
	msgs := make([]engine.Message, 0, len(ids))
	for _, id := range ids {
		if msg, ok := m.messages[id]; ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}
