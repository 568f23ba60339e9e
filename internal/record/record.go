package record

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Record is a transient, read-only view of one backend entity (a space, a
// reservation, a transaction, a user, a report). The backend owns the
// entity; the core only reads the two facets it cares about — a dimension
// key and a numeric measure — plus an optional timestamp.
type Record map[string]any

// String returns the field as a string. Missing fields and non-string
// values yield "", which the aggregator groups under its sentinel key.
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	return ""
}

// Number returns the field as a decimal. JSON numbers arrive as float64 or
// json.Number depending on the decoder; numeric strings are tolerated
// because some backends serialize money as strings. Anything else is zero.
func (r Record) Number(field string) decimal.Decimal {
	v, ok := r[field]
	if !ok {
		return decimal.Zero
	}
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n)
	case int64:
		return decimal.NewFromInt(n)
	case int:
		return decimal.NewFromInt(int64(n))
	case json.Number:
		if d, err := decimal.NewFromString(n.String()); err == nil {
			return d
		}
	case string:
		if d, err := decimal.NewFromString(n); err == nil {
			return d
		}
	case decimal.Decimal:
		return n
	}
	return decimal.Zero
}

// Time returns the field parsed as an RFC 3339 timestamp. Missing or
// unparsable values yield the zero time.
func (r Record) Time(field string) time.Time {
	v, ok := r[field]
	if !ok {
		return time.Time{}
	}
	switch ts := v.(type) {
	case time.Time:
		return ts
	case string:
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Cell renders the field for CSV output: strings verbatim, numbers and
// booleans via their canonical text form, missing fields as "".
func (r Record) Cell(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch c := v.(type) {
	case string:
		return c
	case float64:
		return decimal.NewFromFloat(c).String()
	case json.Number:
		return c.String()
	case bool:
		if c {
			return "true"
		}
		return "false"
	}
	return fmt.Sprintf("%v", v)
}
