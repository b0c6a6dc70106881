package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"trendpulse/pkg/trends"
)

// MemoryStore keeps trends and markers in process. It follows the same
// upsert and ordering rules as PostgresStore and backs local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	byKey   map[trends.Key]int64
	rows    map[int64]trends.TrendRecord
	markers []ProcessedMarker
	done    map[int64]struct{}
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byKey: make(map[trends.Key]int64),
		rows:  make(map[int64]trends.TrendRecord),
		done:  make(map[int64]struct{}),
		now:   time.Now,
	}
}

func (m *MemoryStore) Upsert(ctx context.Context, rec trends.TrendRecord) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec = cloneRecord(rec)
	if id, ok := m.byKey[rec.Key()]; ok {
		existing := m.rows[id]
		existing.SearchVolume = rec.SearchVolume
		existing.EndedAt = rec.EndedAt
		existing.Breakdown = rec.Breakdown
		existing.SourceLink = rec.SourceLink
		m.rows[id] = existing
		return id, nil
	}

	m.nextID++
	rec.ID = m.nextID
	m.byKey[rec.Key()] = rec.ID
	m.rows[rec.ID] = rec
	return rec.ID, nil
}

func (m *MemoryStore) SelectUnprocessed(ctx context.Context, categories []string, limit int) ([]trends.TrendRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		want[c] = struct{}{}
	}

	m.mu.RLock()
	out := make([]trends.TrendRecord, 0, len(m.rows))
	for id, rec := range m.rows {
		if _, processed := m.done[id]; processed {
			continue
		}
		if _, ok := want[rec.Category]; len(want) > 0 && !ok {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return recentFirst(out[i], out[j]) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) RecordProcessed(ctx context.Context, marker ProcessedMarker) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if marker.RecordedAt.IsZero() {
		marker.RecordedAt = m.now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers = append(m.markers, marker)
	m.done[marker.TrendID] = struct{}{}
	return nil
}

// Get returns the stored record for id.
func (m *MemoryStore) Get(id int64) (trends.TrendRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.rows[id]
	return cloneRecord(rec), ok
}

// Markers returns a copy of every marker written so far.
func (m *MemoryStore) Markers() []ProcessedMarker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ProcessedMarker(nil), m.markers...)
}

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryStore) Close() {}

// recentFirst orders like "ended_at DESC NULLS FIRST, started_at DESC, id".
func recentFirst(a, b trends.TrendRecord) bool {
	switch {
	case a.EndedAt == nil && b.EndedAt != nil:
		return true
	case a.EndedAt != nil && b.EndedAt == nil:
		return false
	case a.EndedAt != nil && !a.EndedAt.Equal(*b.EndedAt):
		return a.EndedAt.After(*b.EndedAt)
	}
	if !a.StartedAt.Equal(b.StartedAt) {
		return a.StartedAt.After(b.StartedAt)
	}
	return a.ID < b.ID
}

func cloneRecord(rec trends.TrendRecord) trends.TrendRecord {
	if rec.Breakdown != nil {
		rec.Breakdown = append([]string(nil), rec.Breakdown...)
	}
	if rec.EndedAt != nil {
		t := *rec.EndedAt
		rec.EndedAt = &t
	}
	if rec.SourceLink != nil {
		s := *rec.SourceLink
		rec.SourceLink = &s
	}
	return rec
}
