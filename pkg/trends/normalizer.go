package trends

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"trendpulse/pkg/logger"
)

var (
	ErrMissingColumns = errors.New("required columns missing")
	ErrEmptyDate      = errors.New("empty date")
)

// DefaultCategory is used when the caller does not name one.
const DefaultCategory = "all"

var utcOffsetPattern = regexp.MustCompile(`\s*(?:UTC|GMT)([+-])(\d{1,2})(?::?(\d{2}))?$`)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"January 2, 2006 3:04:05 PM -0700",
	"January 2, 2006 3:04 PM -0700",
	"January 2, 2006 3:04:05 PM",
	"January 2, 2006",
}

// Options control normalization.
type Options struct {
	// Category is stamped on every record. Empty means DefaultCategory.
	Category string
	// Limit caps the number of records. Zero means no cap.
	Limit int
	// Now supplies started_at for name-only fallback rows.
	Now func() time.Time
}

// Report summarises one normalization pass.
type Report struct {
	Rows     int  `json:"rows"`
	Records  int  `json:"records"`
	Dropped  int  `json:"dropped"`
	Fallback bool `json:"fallback"`
}

type Normalizer struct {
	log *logger.Logger
}

func NewNormalizer() *Normalizer {
	return &Normalizer{log: logger.GetLogger().WithField("component", "normalizer")}
}

// Normalize maps table rows to records, most recently started first.
// Without the required columns the first column is read as bare names.
func (n *Normalizer) Normalize(table *Table, opts Options) ([]TrendRecord, Report) {
	if opts.Category == "" {
		opts.Category = DefaultCategory
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	report := Report{Rows: len(table.Rows)}

	if !table.HasColumns(RequiredColumns) {
		report.Fallback = true
		n.log.WithFields(map[string]interface{}{
			"header":   table.Header,
			"required": RequiredColumns,
		}).Warn("Export is missing required columns, using first column as names")
		records := n.fallback(table, opts)
		report.Records = len(records)
		report.Dropped = report.Rows - len(records)
		return records, report
	}

	records := make([]TrendRecord, 0, len(table.Rows))
	for i, row := range table.Rows {
		rec, err := n.normalizeRow(row, opts.Category)
		if err != nil {
			report.Dropped++
			n.log.WithError(err).WithFields(map[string]interface{}{
				"row":   i + 1,
				"trend": row[ColumnName],
			}).Warn("Dropping export row")
			continue
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}
	report.Records = len(records)
	return records, report
}

func (n *Normalizer) normalizeRow(row RawExportRow, category string) (TrendRecord, error) {
	name := normalizeName(row[ColumnName])
	if name == "" {
		return TrendRecord{}, errors.New("empty trend name")
	}
	started, err := ParseDate(row[ColumnStarted])
	if err != nil {
		return TrendRecord{}, fmt.Errorf("started: %w", err)
	}

	rec := TrendRecord{
		Name:         name,
		Category:     category,
		SearchVolume: ParseVolume(row[ColumnVolume]),
		StartedAt:    started,
		Breakdown:    SplitBreakdown(row[ColumnBreakdown]),
	}
	if raw := strings.TrimSpace(row[ColumnEnded]); raw != "" {
		if ended, err := ParseDate(raw); err == nil {
			rec.EndedAt = &ended
		} else {
			n.log.WithField("trend", name).WithError(err).Debug("Ignoring unparsable end time")
		}
	}
	if link := strings.TrimSpace(row[ColumnLink]); link != "" {
		rec.SourceLink = &link
	}
	return rec, nil
}

func (n *Normalizer) fallback(table *Table, opts Options) []TrendRecord {
	if len(table.Header) == 0 {
		return nil
	}
	first := table.Header[0]
	now := opts.Now().UTC()

	var records []TrendRecord
	for _, row := range table.Rows {
		if opts.Limit > 0 && len(records) >= opts.Limit {
			break
		}
		name := normalizeName(row[first])
		if name == "" {
			continue
		}
		records = append(records, TrendRecord{
			Name:      name,
			Category:  opts.Category,
			StartedAt: now,
			Breakdown: []string{},
		})
	}
	return records
}

// ParseVolume reads the leading run of digits, ignoring thousands separators.
// "12,345 searches" is 12345, "500K+" is 500, anything without a leading
// digit is 0.
func ParseVolume(raw string) int64 {
	raw = strings.TrimSpace(raw)
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
			continue
		}
		if r == ',' && digits.Len() > 0 {
			continue
		}
		break
	}
	if digits.Len() == 0 {
		return 0
	}
	v, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// SplitBreakdown splits a comma-joined list, trimming terms and dropping empties.
func SplitBreakdown(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseDate accepts the export's date formats ("March 1, 2024 at 2:30:00 PM
// UTC-5", ISO dates) and falls back to dateparse for anything else.
// Times without a zone are read as UTC.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrEmptyDate
	}
	s = strings.Replace(s, " at ", " ", 1)
	s = utcOffsetPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := utcOffsetPattern.FindStringSubmatch(m)
		hours, _ := strconv.Atoi(parts[2])
		minutes := 0
		if parts[3] != "" {
			minutes, _ = strconv.Atoi(parts[3])
		}
		return fmt.Sprintf(" %s%02d%02d", parts[1], hours, minutes)
	})

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t.UTC(), nil
}

func normalizeName(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}

func foldKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
