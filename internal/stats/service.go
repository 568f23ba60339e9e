package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/plazalab/plaza-insights/internal/core/aggregate"
	"github.com/plazalab/plaza-insights/internal/core/export"
	"github.com/plazalab/plaza-insights/internal/core/series"
	"github.com/plazalab/plaza-insights/internal/core/timerange"
	"github.com/plazalab/plaza-insights/internal/fetch"
	"github.com/plazalab/plaza-insights/internal/record"
	"github.com/plazalab/plaza-insights/internal/report"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidQuery marks request validation errors that should return HTTP 400.
	ErrInvalidQuery = errors.New("invalid stats query")

	// ErrSuperseded marks a request whose fetch was overtaken by a newer
	// one for the same domain and whose consumer has no current state yet.
	ErrSuperseded = errors.New("request superseded")
)

// RecordSource fetches a domain's raw entity list from the backend.
type RecordSource interface {
	GetRecords(ctx context.Context, path string) ([]record.Record, error)
}

// Service implements the aggregation/reporting read path: fetch raw
// records under the epoch discipline, aggregate, synthesize series, and
// export CSV reports.
type Service struct {
	source     RecordSource
	defs       report.Repository
	downloader export.Downloader
	nowFn      func() time.Time

	fetchersMu sync.Mutex
	fetchers   map[string]*fetch.Fetcher[[]record.Record]

	cacheMu sync.RWMutex
	cache   map[string]*DomainStatsResponse
}

// NewService creates the stats service.
func NewService(source RecordSource, defs report.Repository, downloader export.Downloader) *Service {
	return &Service{
		source:     source,
		defs:       defs,
		downloader: downloader,
		fetchers:   make(map[string]*fetch.Fetcher[[]record.Record]),
		cache:      make(map[string]*DomainStatsResponse),
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// DomainStats computes ranked aggregates and a chart series for one
// domain. Each domain is one logical consumer: a newer concurrent call
// supersedes this one's fetch, and only the current epoch's result is
// written to the cached, consumer-visible state.
func (s *Service) DomainStats(ctx context.Context, domain, rangeSymbol string) (*DomainStatsResponse, error) {
	def, scheme, err := s.resolve(domain, rangeSymbol)
	if err != nil {
		return nil, err
	}

	records, applied, err := s.fetcherFor(domain).Fetch(ctx, func(ctx context.Context) ([]record.Record, error) {
		return s.source.GetRecords(ctx, def.Endpoint)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s records: %w", domain, err)
	}
	if !applied {
		// Superseded: no state write. Serve whatever the current epoch
		// last produced.
		s.cacheMu.RLock()
		cached := s.cache[domain]
		s.cacheMu.RUnlock()
		if cached != nil {
			return cached, nil
		}
		return nil, ErrSuperseded
	}

	resp, err := s.compute(def, scheme, rangeSymbol, filterToRange(records, def, scheme.Range()))
	if err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	s.cache[domain] = resp
	s.cacheMu.Unlock()
	return resp, nil
}

// Overview fetches every configured domain concurrently and reduces each
// to headline count/sum totals.
func (s *Service) Overview(ctx context.Context, rangeSymbol string) (*OverviewResponse, error) {
	if !timerange.ValidSymbol(rangeSymbol) {
		return nil, fmt.Errorf("%w: unknown range %q", ErrInvalidQuery, rangeSymbol)
	}
	now := s.nowFn()
	rng, err := timerange.Resolve(rangeSymbol, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	defs := s.defs.List()
	entries := make([]OverviewEntry, len(defs))

	g, gctx := errgroup.WithContext(ctx)
	for i, def := range defs {
		g.Go(func() error {
			records, err := s.source.GetRecords(gctx, def.Endpoint)
			if err != nil {
				return fmt.Errorf("fetching %s records: %w", def.Name, err)
			}
			records = filterToRange(records, &def, rng)

			entry := OverviewEntry{Domain: def.Name, Count: int64(len(records))}
			sum := decimal.Zero
			for _, rec := range records {
				sum = sum.Add(rec.Number(def.Measure))
			}
			entry.Sum = sum
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &OverviewResponse{
		Range:       rangeSymbol,
		From:        rng.From,
		To:          rng.To,
		Domains:     entries,
		GeneratedAt: now,
	}, nil
}

// ExportReport builds the two-section CSV for a domain and hands it to
// the Downloader. Returns the suggested filename.
func (s *Service) ExportReport(ctx context.Context, domain, rangeSymbol string) (*ExportResponse, error) {
	def, scheme, err := s.resolve(domain, rangeSymbol)
	if err != nil {
		return nil, err
	}

	records, err := s.source.GetRecords(ctx, def.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetching %s records: %w", domain, err)
	}
	records = filterToRange(records, def, scheme.Range())

	stats, err := s.compute(def, scheme, rangeSymbol, records)
	if err != nil {
		return nil, err
	}

	summary := []export.SummaryRow{
		{Label: "Report", Value: domain},
		{Label: "Range", Value: rangeSymbol},
		{Label: "Generated at", Value: stats.GeneratedAt.Format(time.RFC3339)},
		export.Separator,
		{Label: "Total records", Value: fmt.Sprintf("%d", stats.TotalCount)},
		{Label: "Total " + def.Measure, Value: stats.TotalSum.String()},
	}
	if stats.TotalCount > 0 {
		avg := stats.TotalSum.Div(decimal.NewFromInt(stats.TotalCount))
		summary = append(summary, export.SummaryRow{Label: "Average " + def.Measure, Value: avg.Round(2).String()})
	}
	summary = append(summary, export.Separator)
	summary = append(summary, export.SummaryRow{Label: "Top " + def.Dimension + " by " + def.Options().SortBy})
	for _, b := range stats.Buckets {
		summary = append(summary, export.SummaryRow{Label: b.Key, Value: b.Sum.String()})
	}
	summary = append(summary, export.Separator)

	doc, err := export.Build(summary, records, def.RecordColumns())
	if err != nil {
		return nil, err
	}
	content, err := doc.Encode()
	if err != nil {
		return nil, err
	}

	filename := export.Filename(domain, rangeSymbol, stats.GeneratedAt)
	if err := s.downloader.Download(content, filename, export.MimeTypeCSV); err != nil {
		return nil, fmt.Errorf("delivering report: %w", err)
	}

	slog.Info("Report exported", "domain", domain, "range", rangeSymbol, "filename", filename, "records", len(records))
	return &ExportResponse{
		Domain:   domain,
		Range:    rangeSymbol,
		Filename: filename,
		Rows:     len(doc.Rows()),
	}, nil
}

func (s *Service) resolve(domain, rangeSymbol string) (*report.Definition, timerange.BucketScheme, error) {
	def, err := s.defs.Get(domain)
	if err != nil {
		return nil, timerange.BucketScheme{}, err
	}
	if !timerange.ValidSymbol(rangeSymbol) {
		return nil, timerange.BucketScheme{}, fmt.Errorf("%w: unknown range %q", ErrInvalidQuery, rangeSymbol)
	}
	scheme, err := timerange.SchemeFor(rangeSymbol, s.nowFn())
	if err != nil {
		return nil, timerange.BucketScheme{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return def, scheme, nil
}

// compute turns already range-filtered records into the response shape.
// Definitions without a timestamp field cannot bucket records exactly, so
// their series falls back to the flagged estimation path.
func (s *Service) compute(def *report.Definition, scheme timerange.BucketScheme, rangeSymbol string, records []record.Record) (*DomainStatsResponse, error) {
	dimensionOf := func(r record.Record) string { return r.String(def.Dimension) }
	measureOf := func(r record.Record) decimal.Decimal { return r.Number(def.Measure) }

	buckets, err := aggregate.Aggregate(records, dimensionOf, measureOf, def.Options())
	if err != nil {
		return nil, err
	}

	totalSum := decimal.Zero
	for _, rec := range records {
		totalSum = totalSum.Add(rec.Number(def.Measure))
	}

	var points []series.Point
	estimated := def.Timestamp == ""
	if estimated {
		points = series.Estimate(totalSum, series.ValueSum, scheme)
	} else {
		points = series.Exact(records, func(r record.Record) time.Time { return r.Time(def.Timestamp) }, measureOf, scheme)
	}

	return &DomainStatsResponse{
		Domain:          def.Name,
		Range:           rangeSymbol,
		From:            scheme.Range().From,
		To:              scheme.Range().To,
		TotalCount:      int64(len(records)),
		TotalSum:        totalSum,
		Buckets:         buckets,
		Series:          points,
		SeriesEstimated: estimated,
		GeneratedAt:     s.nowFn(),
	}, nil
}

func (s *Service) fetcherFor(domain string) *fetch.Fetcher[[]record.Record] {
	s.fetchersMu.Lock()
	defer s.fetchersMu.Unlock()
	f, ok := s.fetchers[domain]
	if !ok {
		f = fetch.NewFetcher[[]record.Record]()
		s.fetchers[domain] = f
	}
	return f
}

// filterToRange keeps records whose timestamp falls inside the range.
// Definitions without a timestamp field cannot be filtered and pass
// through unchanged.
func filterToRange(records []record.Record, def *report.Definition, rng timerange.Range) []record.Record {
	if def.Timestamp == "" {
		return records
	}
	out := make([]record.Record, 0, len(records))
	for _, rec := range records {
		if rng.Contains(rec.Time(def.Timestamp)) {
			out = append(out, rec)
		}
	}
	return out
}
