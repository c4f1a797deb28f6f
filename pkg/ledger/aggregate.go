package ledger

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// TimeRange selects both the dashboard window and the time series granularity.
type TimeRange string

// Supported dashboard ranges.
const (
	RangeAll     TimeRange = "all"
	RangeYear    TimeRange = "year"
	RangeQuarter TimeRange = "quarter"
	RangeMonth   TimeRange = "month"
)

// NoDataBucket is emitted as the only time series entry of an empty collection.
const NoDataBucket = "No Data"

// epoch is the lower bound of RangeAll.
var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// ParseTimeRange maps user input to a TimeRange, defaulting to RangeAll.
func ParseTimeRange(s string) TimeRange {
	switch TimeRange(strings.ToLower(strings.TrimSpace(s))) {
	case RangeYear:
		return RangeYear
	case RangeQuarter:
		return RangeQuarter
	case RangeMonth:
		return RangeMonth
	}
	return RangeAll
}

// RangeStart returns the first instant included by r relative to now.
// The quarter window starts on the first day of the month three months back.
func RangeStart(r TimeRange, now time.Time) time.Time {
	now = now.UTC()
	switch r {
	case RangeMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	case RangeQuarter:
		return time.Date(now.Year(), now.Month()-3, 1, 0, 0, 0, 0, time.UTC)
	case RangeYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return epoch
	}
}

// WithinRange returns the receipts dated on or after the start of r.
// Receipts without a parseable date fall outside every range.
func WithinRange(receipts []api.Receipt, r TimeRange, now time.Time) []api.Receipt {
	start := RangeStart(r, now)
	out := make([]api.Receipt, 0, len(receipts))
	for _, rc := range receipts {
		if !rc.Date.IsZero() && !rc.Date.Before(start) {
			out = append(out, rc)
		}
	}
	return out
}

// Summarize aggregates receipts with yearly time series buckets.
func Summarize(receipts []api.Receipt) api.AggregateStats {
	return SummarizeRange(receipts, RangeAll)
}

// SummarizeRange aggregates receipts. The range only selects the time series
// granularity: yearly for RangeAll, monthly for RangeYear, daily otherwise.
func SummarizeRange(receipts []api.Receipt, r TimeRange) api.AggregateStats {
	stats := api.AggregateStats{
		TotalCount:         len(receipts),
		TotalVerifiedValue: decimal.Zero,
		TotalValue:         decimal.Zero,
	}

	categories := newBucketSet()
	trend := newBucketSet()

	for _, rc := range receipts {
		switch rc.Status {
		case api.StatusVerified:
			stats.CountsByStatus.Verified++
			stats.TotalVerifiedValue = stats.TotalVerifiedValue.Add(rc.Total)
		case api.StatusPending:
			stats.CountsByStatus.Pending++
		case api.StatusFailed:
			stats.CountsByStatus.Failed++
		}
		stats.TotalValue = stats.TotalValue.Add(rc.Total)

		category := rc.Category
		if category == "" {
			category = api.DefaultCategory
		}
		categories.add(category, rc.Total)

		if !rc.Date.IsZero() {
			trend.add(trendKey(rc.Date, r), rc.Total)
		}
	}

	stats.CategoryTotals = categories.buckets()
	slices.SortStableFunc(stats.CategoryTotals, func(a, b api.Bucket) int {
		return b.Value.Cmp(a.Value)
	})

	stats.TimeSeries = trend.buckets()
	if r == RangeYear {
		slices.SortStableFunc(stats.TimeSeries, func(a, b api.Bucket) int {
			return monthIndex(a.Name) - monthIndex(b.Name)
		})
	} else {
		slices.SortStableFunc(stats.TimeSeries, func(a, b api.Bucket) int {
			return NaturalCompare(a.Name, b.Name)
		})
	}
	if len(stats.TimeSeries) == 0 {
		stats.TimeSeries = []api.Bucket{{Name: NoDataBucket, Value: decimal.Zero}}
	}

	stats.ComplianceRate = ComplianceRate(stats.CountsByStatus.Verified, stats.TotalCount)
	return stats
}

// ComplianceRate returns verified/total as a percentage rounded to one
// decimal place, or 0 when total is 0.
func ComplianceRate(verified, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(verified)/float64(total)*1000) / 10
}

// Categories lists the category filter options: "All" followed by every
// distinct category in first-seen order.
func Categories(receipts []api.Receipt) []string {
	out := []string{api.AllCategories}
	seen := make(map[string]bool)
	for _, r := range receipts {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	return out
}

// Dashboard is the range-restricted view rendered on the overview page.
type Dashboard struct {
	Range  TimeRange          `json:"range"`
	Stats  api.AggregateStats `json:"stats"`
	Recent []api.Receipt      `json:"recent"`
}

// recentLimit is how many receipts the dashboard lists.
const recentLimit = 5

// BuildDashboard restricts receipts to r and aggregates them.
func BuildDashboard(receipts []api.Receipt, r TimeRange, now time.Time) Dashboard {
	inRange := WithinRange(receipts, r, now)
	recent := Sort(inRange, DefaultSort)
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	return Dashboard{
		Range:  r,
		Stats:  SummarizeRange(inRange, r),
		Recent: recent,
	}
}

func trendKey(t time.Time, r TimeRange) string {
	t = t.UTC()
	switch r {
	case RangeAll:
		return fmt.Sprintf("%d", t.Year())
	case RangeYear:
		return shortMonth(t.Month())
	default:
		return fmt.Sprintf("%d %s", t.Day(), shortMonth(t.Month()))
	}
}

func shortMonth(m time.Month) string {
	return m.String()[:3]
}

func monthIndex(name string) int {
	for m := time.January; m <= time.December; m++ {
		if shortMonth(m) == name {
			return int(m)
		}
	}
	return 13
}

// bucketSet accumulates totals per name, remembering first-seen order.
type bucketSet struct {
	order  []string
	totals map[string]decimal.Decimal
}

func newBucketSet() *bucketSet {
	return &bucketSet{totals: make(map[string]decimal.Decimal)}
}

func (s *bucketSet) add(name string, v decimal.Decimal) {
	cur, ok := s.totals[name]
	if !ok {
		s.order = append(s.order, name)
		cur = decimal.Zero
	}
	s.totals[name] = cur.Add(v)
}

func (s *bucketSet) buckets() []api.Bucket {
	out := make([]api.Bucket, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, api.Bucket{Name: name, Value: s.totals[name]})
	}
	return out
}
