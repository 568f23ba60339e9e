package timerange

import (
	"fmt"
	"time"
)

// Supported range symbols. These are the periods the dashboard range
// selector offers; resolution is always relative to an injected "now".
const (
	RangeDay   = "day"
	RangeWeek  = "week"
	RangeMonth = "month"
)

// Range is a concrete half-open instant interval [From, To).
type Range struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the interval.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// ValidSymbol reports whether symbol is a supported range symbol.
func ValidSymbol(symbol string) bool {
	switch symbol {
	case RangeDay, RangeWeek, RangeMonth:
		return true
	}
	return false
}

// Resolve turns a symbolic period into a concrete [From, To) interval
// anchored at now. Pure: no clock access, no I/O.
func Resolve(symbol string, now time.Time) (Range, error) {
	switch symbol {
	case RangeDay:
		return Range{From: now.Add(-24 * time.Hour), To: now}, nil
	case RangeWeek:
		return Range{From: now.Add(-7 * 24 * time.Hour), To: now}, nil
	case RangeMonth:
		return Range{From: now.Add(-30 * 24 * time.Hour), To: now}, nil
	}
	return Range{}, fmt.Errorf("unknown range symbol %q", symbol)
}

// BucketScheme is the fixed, ordered label sequence for a resolved range,
// plus the assignment of instants to label positions. The label sequence is
// frozen at construction and never re-ordered.
type BucketScheme struct {
	symbol string
	rng    Range
	bucket time.Duration
	labels []string
}

// SchemeFor derives the bucket scheme dictated by a range symbol:
// day → 24 hourly buckets, week → 7 daily buckets labelled by weekday,
// month → 7-day buckets labelled "Week N".
func SchemeFor(symbol string, now time.Time) (BucketScheme, error) {
	rng, err := Resolve(symbol, now)
	if err != nil {
		return BucketScheme{}, err
	}

	switch symbol {
	case RangeDay:
		labels := make([]string, 24)
		for i := range labels {
			labels[i] = fmt.Sprintf("%02d:00", rng.From.Add(time.Duration(i)*time.Hour).Hour())
		}
		return BucketScheme{symbol: symbol, rng: rng, bucket: time.Hour, labels: labels}, nil
	case RangeWeek:
		labels := make([]string, 7)
		for i := range labels {
			labels[i] = rng.From.Add(time.Duration(i) * 24 * time.Hour).Format("Mon")
		}
		return BucketScheme{symbol: symbol, rng: rng, bucket: 24 * time.Hour, labels: labels}, nil
	case RangeMonth:
		// 30 rolling days split into 7-day buckets; the last bucket is
		// partially covered by the range.
		n := 5
		labels := make([]string, n)
		for i := range labels {
			labels[i] = fmt.Sprintf("Week %d", i+1)
		}
		return BucketScheme{symbol: symbol, rng: rng, bucket: 7 * 24 * time.Hour, labels: labels}, nil
	}
	return BucketScheme{}, fmt.Errorf("unknown range symbol %q", symbol)
}

// Symbol returns the range symbol the scheme was derived from.
func (s BucketScheme) Symbol() string { return s.symbol }

// Range returns the resolved interval the scheme covers.
func (s BucketScheme) Range() Range { return s.rng }

// Len returns the fixed number of buckets.
func (s BucketScheme) Len() int { return len(s.labels) }

// Labels returns a copy of the ordered label sequence.
func (s BucketScheme) Labels() []string {
	out := make([]string, len(s.labels))
	copy(out, s.labels)
	return out
}

// IndexOf assigns an instant to its bucket position. Instants outside
// [From, To) belong to no bucket.
func (s BucketScheme) IndexOf(t time.Time) (int, bool) {
	if len(s.labels) == 0 || !s.rng.Contains(t) {
		return 0, false
	}
	idx := int(t.Sub(s.rng.From) / s.bucket)
	if idx < 0 || idx >= len(s.labels) {
		return 0, false
	}
	return idx, true
}
