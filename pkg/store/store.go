// Package store persists trend records and processing markers.
package store

import (
	"context"
	"time"

	"trendpulse/pkg/logger"
	"trendpulse/pkg/trends"
)

// ProcessedMarker records that a trend was attempted. Any row for a
// trend id removes it from SelectUnprocessed results.
type ProcessedMarker struct {
	TrendID       int64     `json:"trend_id"`
	Topic         string    `json:"topic"`
	TopicCategory string    `json:"topic_category"`
	SummaryText   string    `json:"summary_text"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Store is the persistence contract used by the pipeline.
type Store interface {
	// Upsert inserts rec or refreshes volume, end time, breakdown and link
	// of the existing (name, category) row. started_at is never overwritten.
	Upsert(ctx context.Context, rec trends.TrendRecord) (int64, error)
	// SelectUnprocessed returns up to limit trends without a marker, most
	// recently ended first (ongoing trends lead), then most recently started.
	// An empty category list selects every category.
	SelectUnprocessed(ctx context.Context, categories []string, limit int) ([]trends.TrendRecord, error)
	// RecordProcessed appends a marker.
	RecordProcessed(ctx context.Context, marker ProcessedMarker) error
	Ping(ctx context.Context) error
	Close()
}

// BatchResult summarises an UpsertAll call.
type BatchResult struct {
	Upserted int
	Failed   int
	Stored   []trends.TrendRecord
	Errors   []error
}

// UpsertAll upserts every record independently. A failed record is logged
// and skipped; the rest of the batch continues. Stored holds the successful
// records with their ids set.
func UpsertAll(ctx context.Context, s Store, records []trends.TrendRecord) BatchResult {
	log := logger.GetLogger().WithField("component", "trend_store")
	result := BatchResult{Stored: make([]trends.TrendRecord, 0, len(records))}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			result.Failed += len(records) - result.Upserted - result.Failed
			result.Errors = append(result.Errors, err)
			break
		}
		id, err := s.Upsert(ctx, rec)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err)
			log.WithError(err).WithFields(map[string]interface{}{
				"trend":    rec.Name,
				"category": rec.Category,
			}).Warn("Failed to upsert trend, continuing")
			continue
		}
		rec.ID = id
		result.Upserted++
		result.Stored = append(result.Stored, rec)
	}

	log.WithFields(map[string]interface{}{
		"upserted": result.Upserted,
		"failed":   result.Failed,
	}).Info("Trend batch stored")
	return result
}
