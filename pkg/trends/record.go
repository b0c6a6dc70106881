// Package trends turns scraped tabular exports into typed trend records.
package trends

import "time"

// Column names of the trends export.
const (
	ColumnName      = "Trends"
	ColumnVolume    = "Search volume"
	ColumnStarted   = "Started"
	ColumnEnded     = "Ended"
	ColumnBreakdown = "Trend breakdown"
	ColumnLink      = "Explore link"
)

// RequiredColumns must be present for full-row normalization.
var RequiredColumns = []string{ColumnName, ColumnStarted}

// RawExportRow is one untyped row of the export, keyed by header.
type RawExportRow map[string]string

// TrendRecord is a normalized trend. Identity is (Name, Category).
type TrendRecord struct {
	ID           int64      `json:"id,omitempty"`
	Name         string     `json:"name"`
	Category     string     `json:"category"`
	SearchVolume int64      `json:"search_volume"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Breakdown    []string   `json:"breakdown"`
	SourceLink   *string    `json:"source_link,omitempty"`
}

// Key returns the identity of the record.
func (r TrendRecord) Key() Key {
	return Key{Name: r.Name, Category: r.Category}
}

// Keywords returns the name followed by the breakdown terms, without
// case-insensitive duplicates.
func (r TrendRecord) Keywords() []string {
	seen := make(map[string]struct{}, len(r.Breakdown)+1)
	out := make([]string, 0, len(r.Breakdown)+1)
	for _, kw := range append([]string{r.Name}, r.Breakdown...) {
		folded := foldKey(kw)
		if folded == "" {
			continue
		}
		if _, ok := seen[folded]; ok {
			continue
		}
		seen[folded] = struct{}{}
		out = append(out, kw)
	}
	return out
}

type Key struct {
	Name     string
	Category string
}
