package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MimeTypeCSV is the content type handed to the Downloader.
const MimeTypeCSV = "text/csv"

// ErrEmptyInput is returned when there are no detail records to export.
// Callers disable the export affordance instead of producing a bare header.
var ErrEmptyInput = errors.New("no records to export")

// SummaryRow is one (label, value) line of the report's summary block.
// A row with an empty label and value acts as a visual separator and is
// passed through verbatim.
type SummaryRow struct {
	Label string
	Value string
}

// Separator is the blank summary row used between summary sections.
var Separator = SummaryRow{}

// Columns renders detail records into header and row cells.
type Columns[T any] interface {
	// Headers returns the detail-table header cells.
	Headers() []string
	// Row renders one record; it must return exactly len(Headers()) cells.
	Row(rec T) []string
}

// Document is an ordered row/cell matrix. Every row has the same cell
// count as the header row; shorter rows are padded at build time.
type Document struct {
	rows [][]string
}

// Rows returns a copy of the document's rows.
func (d Document) Rows() [][]string {
	out := make([][]string, len(d.rows))
	for i, row := range d.rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// Encode renders the document as RFC 4180 CSV: cells containing the
// delimiter or a quote are wrapped in quotes with internal quotes doubled.
// Cells are never truncated.
func (d Document) Encode() (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.WriteAll(d.rows); err != nil {
		return "", fmt.Errorf("encoding csv: %w", err)
	}
	return sb.String(), nil
}

// Build assembles the two-section report document: the summary block as
// two-column (label, value) lines, then the detail header and one row per
// record. All rows are padded to the header width so the document is
// rectangular.
func Build[T any](summary []SummaryRow, records []T, columns Columns[T]) (Document, error) {
	if len(records) == 0 {
		return Document{}, ErrEmptyInput
	}
	if columns == nil {
		return Document{}, fmt.Errorf("column extractor is required")
	}

	headers := columns.Headers()
	if len(headers) == 0 {
		return Document{}, fmt.Errorf("column extractor returned no headers")
	}
	width := len(headers)
	if width < 2 {
		width = 2
	}

	rows := make([][]string, 0, len(summary)+1+len(records))
	for _, s := range summary {
		rows = append(rows, pad([]string{s.Label, s.Value}, width))
	}
	rows = append(rows, pad(headers, width))

	for i, rec := range records {
		row := columns.Row(rec)
		if len(row) != len(headers) {
			return Document{}, fmt.Errorf("detail row %d has %d cells, want %d", i, len(row), len(headers))
		}
		rows = append(rows, pad(row, width))
	}

	return Document{rows: rows}, nil
}

// Filename builds the suggested report filename:
// report_{domain}_{range}_{timestamp-no-separators}.csv, timestamp in UTC.
func Filename(domain, rangeSymbol string, now time.Time) string {
	return fmt.Sprintf("report_%s_%s_%s.csv", domain, rangeSymbol, now.UTC().Format("20060102T150405"))
}

func pad(cells []string, width int) []string {
	out := make([]string, width)
	copy(out, cells)
	return out
}
