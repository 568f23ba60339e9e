package stats

import (
	"context"
	"encoding/csv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/plazalab/plaza-insights/internal/core/export"
	"github.com/plazalab/plaza-insights/internal/record"
	"github.com/plazalab/plaza-insights/internal/report"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type sourceFunc func(ctx context.Context, path string) ([]record.Record, error)

func (f sourceFunc) GetRecords(ctx context.Context, path string) ([]record.Record, error) {
	return f(ctx, path)
}

type stubRepo struct {
	defs map[string]report.Definition
}

func (r *stubRepo) Get(name string) (*report.Definition, error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, report.ErrNotFound
	}
	return &def, nil
}

func (r *stubRepo) List() []report.Definition {
	var out []report.Definition
	for _, name := range []string{"plazas", "users"} {
		if def, ok := r.defs[name]; ok {
			out = append(out, def)
		}
	}
	return out
}

type memDownloader struct {
	mu       sync.Mutex
	content  string
	filename string
	mimeType string
}

func (d *memDownloader) Download(content, filename, mimeType string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.content, d.filename, d.mimeType = content, filename, mimeType
	return nil
}

func testRepo() *stubRepo {
	return &stubRepo{defs: map[string]report.Definition{
		"plazas": {
			Name:      "plazas",
			Endpoint:  "/api/plazas",
			Dimension: "city",
			Measure:   "price",
			Timestamp: "created_at",
			Columns: []report.Column{
				{Header: "ID", Field: "id"},
				{Header: "City", Field: "city"},
				{Header: "Price", Field: "price"},
			},
		},
		"users": {
			Name:      "users",
			Endpoint:  "/api/users",
			Dimension: "role",
			Measure:   "logins",
			Columns: []report.Column{
				{Header: "ID", Field: "id"},
				{Header: "Role", Field: "role"},
			},
		},
	}}
}

func plazaRecords() []record.Record {
	inRange := testNow.Add(-2 * 24 * time.Hour).Format(time.RFC3339)
	return []record.Record{
		{"id": "p-1", "city": "Madrid", "price": 10.0, "created_at": inRange},
		{"id": "p-2", "city": "Madrid", "price": 20.0, "created_at": inRange},
		{"id": "p-3", "city": "Lisboa", "price": 5.0, "created_at": inRange},
		{"id": "p-4", "city": "Lisboa", "price": 99.0, "created_at": testNow.Add(-40 * 24 * time.Hour).Format(time.RFC3339)},
	}
}

func newTestService(src RecordSource) (*Service, *memDownloader) {
	dl := &memDownloader{}
	s := NewService(src, testRepo(), dl)
	s.nowFn = func() time.Time { return testNow }
	return s, dl
}

func TestDomainStats_AggregatesAndExactSeries(t *testing.T) {
	src := sourceFunc(func(ctx context.Context, path string) ([]record.Record, error) {
		require.Equal(t, "/api/plazas", path)
		return plazaRecords(), nil
	})
	s, _ := newTestService(src)

	resp, err := s.DomainStats(context.Background(), "plazas", "week")
	require.NoError(t, err)

	require.Equal(t, int64(3), resp.TotalCount, "records outside the range are excluded")
	require.True(t, resp.TotalSum.Equal(decimal.NewFromInt(35)))

	require.Len(t, resp.Buckets, 2)
	require.Equal(t, "Madrid", resp.Buckets[0].Key)
	require.True(t, resp.Buckets[0].Sum.Equal(decimal.NewFromInt(30)))

	require.Len(t, resp.Series, 7)
	require.False(t, resp.SeriesEstimated)
	// All three in-range records share one day bucket.
	total := decimal.Zero
	for _, p := range resp.Series {
		total = total.Add(p.Values["sum"])
	}
	require.True(t, total.Equal(decimal.NewFromInt(35)))
}

func TestDomainStats_EstimatedSeriesWithoutTimestamps(t *testing.T) {
	src := sourceFunc(func(ctx context.Context, path string) ([]record.Record, error) {
		return []record.Record{
			{"id": "u-1", "role": "driver", "logins": 6.0},
			{"id": "u-2", "role": "owner", "logins": 4.0},
		}, nil
	})
	s, _ := newTestService(src)

	resp, err := s.DomainStats(context.Background(), "users", "day")
	require.NoError(t, err)

	require.True(t, resp.SeriesEstimated)
	require.Len(t, resp.Series, 24)
	total := decimal.Zero
	for _, p := range resp.Series {
		require.True(t, p.Estimated)
		total = total.Add(p.Values["sum"])
	}
	require.True(t, total.Equal(decimal.NewFromInt(10)))
}

func TestDomainStats_UnknownDomainAndRange(t *testing.T) {
	s, _ := newTestService(sourceFunc(func(ctx context.Context, path string) ([]record.Record, error) {
		return nil, nil
	}))

	_, err := s.DomainStats(context.Background(), "vehicles", "week")
	require.ErrorIs(t, err, report.ErrNotFound)

	_, err = s.DomainStats(context.Background(), "plazas", "decade")
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestDomainStats_StaleFetchNeverOverwritesCache(t *testing.T) {
	firstStarted := make(chan struct{})
	release := make(chan struct{})
	var calls int32

	src := sourceFunc(func(ctx context.Context, path string) ([]record.Record, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(firstStarted)
			<-release
			return []record.Record{{"id": "p-old", "city": "Old", "price": 1000.0,
				"created_at": testNow.Add(-time.Hour).Format(time.RFC3339)}}, nil
		}
		return plazaRecords(), nil
	})
	s, _ := newTestService(src)

	var wg sync.WaitGroup
	var firstResp *DomainStatsResponse
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstResp, firstErr = s.DomainStats(context.Background(), "plazas", "week")
	}()

	<-firstStarted
	second, err := s.DomainStats(context.Background(), "plazas", "week")
	require.NoError(t, err)
	require.True(t, second.TotalSum.Equal(decimal.NewFromInt(35)))

	close(release)
	wg.Wait()

	// The superseded call observes the current state, not its own stale fetch.
	require.NoError(t, firstErr)
	require.NotNil(t, firstResp)
	require.True(t, firstResp.TotalSum.Equal(decimal.NewFromInt(35)))

	// And the cache still holds the second fetch's result.
	third, err := s.DomainStats(context.Background(), "plazas", "week")
	require.NoError(t, err)
	require.True(t, third.TotalSum.Equal(decimal.NewFromInt(35)))
}

func TestOverview(t *testing.T) {
	src := sourceFunc(func(ctx context.Context, path string) ([]record.Record, error) {
		switch path {
		case "/api/plazas":
			return plazaRecords(), nil
		case "/api/users":
			return []record.Record{{"id": "u-1", "role": "driver", "logins": 3.0}}, nil
		}
		return nil, nil
	})
	s, _ := newTestService(src)

	resp, err := s.Overview(context.Background(), "week")
	require.NoError(t, err)
	require.Len(t, resp.Domains, 2)

	require.Equal(t, "plazas", resp.Domains[0].Domain)
	require.Equal(t, int64(3), resp.Domains[0].Count)
	require.True(t, resp.Domains[0].Sum.Equal(decimal.NewFromInt(35)))

	require.Equal(t, "users", resp.Domains[1].Domain)
	require.Equal(t, int64(1), resp.Domains[1].Count)
}

func TestExportReport(t *testing.T) {
	src := sourceFunc(func(ctx context.Context, path string) ([]record.Record, error) {
		return plazaRecords(), nil
	})
	s, dl := newTestService(src)

	resp, err := s.ExportReport(context.Background(), "plazas", "week")
	require.NoError(t, err)
	require.Equal(t, "report_plazas_week_20260314T120000.csv", resp.Filename)
	require.Equal(t, resp.Filename, dl.filename)
	require.Equal(t, export.MimeTypeCSV, dl.mimeType)

	rows, err := csv.NewReader(strings.NewReader(dl.content)).ReadAll()
	require.NoError(t, err)
	require.Equal(t, resp.Rows, len(rows))

	require.Equal(t, "Report", rows[0][0])
	require.Equal(t, "plazas", rows[0][1])

	var headerIdx int
	for i, row := range rows {
		if row[0] == "ID" {
			headerIdx = i
			break
		}
	}
	require.Equal(t, []string{"ID", "City", "Price"}, rows[headerIdx])
	require.Len(t, rows[headerIdx:], 4, "header plus the three in-range detail records")
}

func TestExportReport_EmptyInput(t *testing.T) {
	src := sourceFunc(func(ctx context.Context, path string) ([]record.Record, error) {
		return nil, nil
	})
	s, _ := newTestService(src)

	_, err := s.ExportReport(context.Background(), "plazas", "week")
	require.ErrorIs(t, err, export.ErrEmptyInput)
}
