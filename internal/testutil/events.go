package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/model"
)

// MemoryEventStore is an in-memory EventReader/EventWriter with the same
// filtering semantics as the SQLite store.
type MemoryEventStore struct {
	// Err, when set, is returned by every call to simulate an unavailable store.
	Err     error
	events  []model.HistoricalEvent
	queries []model.EventQuery
	mu      sync.Mutex
}

// NewMemoryEventStore creates a store seeded with events.
func NewMemoryEventStore(events ...model.HistoricalEvent) *MemoryEventStore {
	return &MemoryEventStore{events: append([]model.HistoricalEvent(nil), events...)}
}

// FindEvents implements service.EventReader.
func (m *MemoryEventStore) FindEvents(_ context.Context, q model.EventQuery) ([]model.HistoricalEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries = append(m.queries, q)
	if m.Err != nil {
		return nil, m.Err
	}

	var out []model.HistoricalEvent
	needle := strings.ToLower(q.SubjectContains)
	for _, e := range m.events {
		if q.UserID != "" && e.UserID != q.UserID {
			continue
		}
		if q.Category != "" && e.Category != q.Category {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(e.SubjectKey), needle) &&
			!strings.Contains(strings.ToLower(e.RawText), needle) {
			continue
		}
		if q.AmountCents != nil && (e.AmountCents == nil || *e.AmountCents != *q.AmountCents) {
			continue
		}
		if !q.From.IsZero() && e.OccurredAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && e.OccurredAt.After(q.To) {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if q.NewestFirst {
			a, b = b, a
		}
		if a.OccurredAt.Equal(b.OccurredAt) {
			return a.ID < b.ID
		}
		return a.OccurredAt.Before(b.OccurredAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// SaveEvent implements service.EventWriter.
func (m *MemoryEventStore) SaveEvent(_ context.Context, event *model.HistoricalEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	for _, e := range m.events {
		if event.Checksum != "" && e.Checksum == event.Checksum {
			return common.ErrDuplicateEntry
		}
	}
	m.events = append(m.events, *event)
	return nil
}

// Queries returns every query the store received, in order.
func (m *MemoryEventStore) Queries() []model.EventQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.EventQuery(nil), m.queries...)
}

// Len returns the number of stored events.
func (m *MemoryEventStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
