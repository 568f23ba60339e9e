package series

import (
	"time"

	"github.com/plazalab/plaza-insights/internal/core/timerange"
	"github.com/shopspring/decimal"
)

// Value names emitted by the exact path.
const (
	ValueCount = "count"
	ValueSum   = "sum"
)

// Point is one chart-ready bucket of a synthesized series.
// Estimated marks values produced by the fallback allocation rather than
// real per-record bucketing, so the chart layer can render them as such.
type Point struct {
	Label     string                     `json:"label"`
	Values    map[string]decimal.Decimal `json:"values"`
	Estimated bool                       `json:"estimated,omitempty"`
}

// Exact buckets records into the scheme by truncating each record's
// timestamp to the scheme granularity. The output always has exactly
// scheme.Len() points in scheme order; buckets with no records carry zero
// values, they are never omitted. Records outside the scheme's range are
// ignored.
func Exact[T any](
	records []T,
	timestampOf func(T) time.Time,
	measureOf func(T) decimal.Decimal,
	scheme timerange.BucketScheme,
) []Point {
	points := emptyPoints(scheme, false, ValueCount, ValueSum)

	for _, rec := range records {
		idx, ok := scheme.IndexOf(timestampOf(rec))
		if !ok {
			continue
		}
		points[idx].Values[ValueCount] = points[idx].Values[ValueCount].Add(decimal.NewFromInt(1))
		points[idx].Values[ValueSum] = points[idx].Values[ValueSum].Add(measureOf(rec))
	}
	return points
}

// Estimate distributes a single aggregate total evenly across the scheme's
// buckets when no per-record timestamps exist. The allocation is
// deterministic: every bucket gets total/n rounded to two places and the
// final bucket absorbs the remainder, so the series sums back to the total
// exactly. Every point is flagged Estimated.
func Estimate(total decimal.Decimal, valueName string, scheme timerange.BucketScheme) []Point {
	points := emptyPoints(scheme, true, valueName)
	n := scheme.Len()
	if n == 0 {
		return points
	}

	share := total.Div(decimal.NewFromInt(int64(n))).Round(2)
	allocated := decimal.Zero
	for i := range points {
		v := share
		if i == n-1 {
			v = total.Sub(allocated)
		}
		points[i].Values[valueName] = v
		allocated = allocated.Add(v)
	}
	return points
}

func emptyPoints(scheme timerange.BucketScheme, estimated bool, valueNames ...string) []Point {
	labels := scheme.Labels()
	points := make([]Point, len(labels))
	for i, label := range labels {
		values := make(map[string]decimal.Decimal, len(valueNames))
		for _, name := range valueNames {
			values[name] = decimal.Zero
		}
		points[i] = Point{Label: label, Values: values, Estimated: estimated}
	}
	return points
}
