package trends

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Table is a parsed export: header order plus rows keyed by header.
type Table struct {
	Header []string
	Rows   []RawExportRow
}

// HasColumns reports whether every name in cols is a header.
func (t *Table) HasColumns(cols []string) bool {
	present := make(map[string]struct{}, len(t.Header))
	for _, h := range t.Header {
		present[h] = struct{}{}
	}
	for _, c := range cols {
		if _, ok := present[c]; !ok {
			return false
		}
	}
	return true
}

// ReadTable parses a comma-delimited export with a header row.
// Rows shorter than the header get empty values for missing cells.
func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	table := &Table{Header: header}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		row := make(RawExportRow, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			} else {
				row[h] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// ReadFile opens and parses an export file.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	return ReadTable(f)
}
