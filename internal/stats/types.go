package stats

import (
	"time"

	"github.com/plazalab/plaza-insights/internal/core/aggregate"
	"github.com/plazalab/plaza-insights/internal/core/series"
	"github.com/shopspring/decimal"
)

// DomainStatsResponse is the chart-ready statistics payload for one
// domain over one resolved range.
type DomainStatsResponse struct {
	Domain          string             `json:"domain"`
	Range           string             `json:"range"`
	From            time.Time          `json:"from"`
	To              time.Time          `json:"to"`
	TotalCount      int64              `json:"total_count"`
	TotalSum        decimal.Decimal    `json:"total_sum"`
	Buckets         []aggregate.Bucket `json:"buckets"`
	Series          []series.Point     `json:"series"`
	SeriesEstimated bool               `json:"series_estimated"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

// OverviewEntry is one domain's headline numbers in the overview.
type OverviewEntry struct {
	Domain string          `json:"domain"`
	Count  int64           `json:"count"`
	Sum    decimal.Decimal `json:"sum"`
}

// OverviewResponse holds per-domain totals for the metric cards.
type OverviewResponse struct {
	Range       string          `json:"range"`
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	Domains     []OverviewEntry `json:"domains"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// ExportResponse reports where a generated CSV landed.
type ExportResponse struct {
	Domain   string `json:"domain"`
	Range    string `json:"range"`
	Filename string `json:"filename"`
	Rows     int    `json:"rows"`
}
