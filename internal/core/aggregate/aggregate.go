package aggregate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Supported sort measures for ranking buckets.
const (
	SortBySum     = "sum"
	SortByAverage = "average"
	SortByCount   = "count"
)

// UnknownKey is the sentinel bucket for records whose dimension value is
// empty or missing. Every input record lands in exactly one bucket, so
// such records are grouped here rather than dropped.
const UnknownKey = "unknown"

// ErrInvalidInput marks aggregation option/input validation failures.
var ErrInvalidInput = errors.New("invalid aggregation input")

// sortMeasures is the registry of rankable measures. To add a new measure:
// add an entry here — ranking and validation pick it up without a switch.
var sortMeasures = map[string]func(Bucket) decimal.Decimal{
	SortBySum:     func(b Bucket) decimal.Decimal { return b.Sum },
	SortByAverage: func(b Bucket) decimal.Decimal { return b.Average },
	SortByCount:   func(b Bucket) decimal.Decimal { return decimal.NewFromInt(b.Count) },
}

// ValidSortMeasure reports whether measure is a registered sort measure.
func ValidSortMeasure(measure string) bool {
	_, ok := sortMeasures[measure]
	return ok
}

// Bucket is one dimension value's aggregated result.
// Sum and Average carry full precision; rounding happens only at
// presentation time via DisplayAverage, never before ranking.
type Bucket struct {
	Key     string          `json:"key"`
	Count   int64           `json:"count"`
	Sum     decimal.Decimal `json:"sum"`
	Average decimal.Decimal `json:"average"`
}

// DisplayAverage is the presentation-time rounding of Average to the
// nearest unit. The stored Average stays full precision.
func (b Bucket) DisplayAverage() decimal.Decimal {
	return b.Average.Round(0)
}

// Options control ranking of the grouped buckets.
type Options struct {
	// TopN caps the ranked list after sorting. Zero means no cap.
	TopN int
	// SortBy is the ranking measure; empty defaults to SortBySum.
	SortBy string
}

func (o Options) normalized() (Options, error) {
	if o.TopN < 0 {
		return o, fmt.Errorf("%w: top_n must be >= 0, got %d", ErrInvalidInput, o.TopN)
	}
	if o.SortBy == "" {
		o.SortBy = SortBySum
	}
	if !ValidSortMeasure(o.SortBy) {
		return o, fmt.Errorf("%w: unknown sort measure %q", ErrInvalidInput, o.SortBy)
	}
	return o, nil
}

// Aggregate groups records by their dimension value and folds each group's
// measure into count/sum/average, then ranks the buckets descending by the
// chosen sort measure. The sort is stable: equal values keep first-seen
// order. Truncation to TopN happens strictly after sorting.
//
// A fresh slice is returned on every call; buckets are never mutated in
// place. Empty input yields an empty list, not an error. Negative measures
// pass through unclamped.
func Aggregate[T any](
	records []T,
	dimensionOf func(T) string,
	measureOf func(T) decimal.Decimal,
	opts Options,
) ([]Bucket, error) {
	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	if dimensionOf == nil || measureOf == nil {
		return nil, fmt.Errorf("%w: dimension and measure extractors are required", ErrInvalidInput)
	}

	byKey := make(map[string]int, len(records))
	buckets := make([]Bucket, 0, len(records))

	for _, rec := range records {
		key := dimensionOf(rec)
		if key == "" {
			key = UnknownKey
		}
		idx, seen := byKey[key]
		if !seen {
			idx = len(buckets)
			byKey[key] = idx
			buckets = append(buckets, Bucket{Key: key})
		}
		buckets[idx].Count++
		buckets[idx].Sum = buckets[idx].Sum.Add(measureOf(rec))
	}

	for i := range buckets {
		buckets[i].Average = buckets[i].Sum.Div(decimal.NewFromInt(buckets[i].Count))
	}

	measure := sortMeasures[opts.SortBy]
	sort.SliceStable(buckets, func(i, j int) bool {
		return measure(buckets[i]).GreaterThan(measure(buckets[j]))
	})

	if opts.TopN > 0 && len(buckets) > opts.TopN {
		buckets = buckets[:opts.TopN]
	}
	return buckets, nil
}

// TotalCount sums the per-bucket counts. For an untruncated aggregate this
// equals the number of input records.
func TotalCount(buckets []Bucket) int64 {
	var total int64
	for _, b := range buckets {
		total += b.Count
	}
	return total
}

// TotalSum adds the per-bucket sums.
func TotalSum(buckets []Bucket) decimal.Decimal {
	total := decimal.Zero
	for _, b := range buckets {
		total = total.Add(b.Sum)
	}
	return total
}
