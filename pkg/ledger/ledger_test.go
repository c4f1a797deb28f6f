package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func receipt(id, vendor string, total int64, status api.Status, category, date string) api.Receipt {
	r := api.Receipt{
		ID:       id,
		Vendor:   vendor,
		Total:    decimal.NewFromInt(total),
		Status:   status,
		Category: category,
	}
	if date != "" {
		r.Date = day(date)
	}
	return r
}

func ids(rs []api.Receipt) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func scenarioFeed() []api.Receipt {
	return []api.Receipt{
		receipt("a1", "Acme", 1000, api.StatusVerified, "Travel", "2025-01-10"),
		receipt("b2", "Beta", 500, api.StatusPending, "Travel", "2025-02-01"),
	}
}

func fixture() []api.Receipt {
	return []api.Receipt{
		receipt("r1", "Garuda Indonesia", 300, api.StatusVerified, "Travel", "2025-01-05"),
		receipt("r2", "Kopi Kenangan", 50, api.StatusPending, "Meals", "2025-01-20"),
		receipt("r3", "Tokopedia", 300, api.StatusFailed, "Office Supplies", "2025-02-11"),
		receipt("r4", "GitHub", 120, api.StatusVerified, "Software", "2025-03-01"),
		receipt("r5", "Grab", 75, api.StatusPending, "Travel", "2024-12-31"),
	}
}

func TestScenario(t *testing.T) {
	feed := scenarioFeed()

	stats := Summarize(feed)
	assert.Equal(t, 2, stats.TotalCount)
	assert.True(t, decimal.NewFromInt(1000).Equal(stats.TotalVerifiedValue))
	assert.Equal(t, api.StatusCounts{Verified: 1, Pending: 1}, stats.CountsByStatus)
	require.Len(t, stats.CategoryTotals, 1)
	assert.Equal(t, "Travel", stats.CategoryTotals[0].Name)
	assert.True(t, decimal.NewFromInt(1500).Equal(stats.CategoryTotals[0].Value))

	assert.Equal(t, []string{"a1"}, ids(Filter(feed, api.FilterCriteria{Status: "verified"})))
	assert.Equal(t, []string{"a1", "b2"}, ids(Sort(feed, api.ParseSortSpec("amount-desc"))))
}

func TestMatches_Status(t *testing.T) {
	for _, r := range fixture() {
		assert.True(t, Matches(r, api.FilterCriteria{Status: "all"}))
		assert.True(t, Matches(r, api.FilterCriteria{Status: "All"}))
		assert.True(t, Matches(r, api.FilterCriteria{}))
	}

	tests := []struct {
		status string
		want   []string
	}{
		{status: "verified", want: []string{"r1", "r4"}},
		{status: "PENDING", want: []string{"r2", "r5"}},
		{status: "Failed", want: []string{"r3"}},
		{status: "rejected", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(fixture(), api.FilterCriteria{Status: tt.status})))
		})
	}
}

func TestMatches_Category(t *testing.T) {
	assert.Equal(t, []string{"r1", "r5"}, ids(Filter(fixture(), api.FilterCriteria{Category: "Travel"})))
	assert.Len(t, Filter(fixture(), api.FilterCriteria{Category: "All"}), 5)
	assert.Empty(t, Filter(fixture(), api.FilterCriteria{Category: "travel"}), "category match is case-sensitive")
}

func TestMatches_CategorySet(t *testing.T) {
	got := Filter(fixture(), api.FilterCriteria{Categories: []string{"Meals", "Software"}})
	assert.Equal(t, []string{"r2", "r4"}, ids(got))

	got = Filter(fixture(), api.FilterCriteria{Categories: []string{"Office"}})
	assert.Equal(t, []string{"r3"}, ids(got), "set entries match as substrings")
}

func TestMatches_Search(t *testing.T) {
	tests := []struct {
		name   string
		search string
		want   []string
	}{
		{name: "vendor substring", search: "kopi", want: []string{"r2"}},
		{name: "vendor case-insensitive", search: "GITHUB", want: []string{"r4"}},
		{name: "id substring", search: "R3", want: []string{"r3"}},
		{name: "either field", search: "r", want: []string{"r1", "r2", "r3", "r4", "r5"}},
		{name: "no match", search: "zzz", want: []string{}},
		{name: "blank", search: "  ", want: []string{"r1", "r2", "r3", "r4", "r5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(fixture(), api.FilterCriteria{Search: tt.search})))
		})
	}
}

func TestMatches_SearchExcludesEvenWhenOtherAxesMatch(t *testing.T) {
	c := api.FilterCriteria{Status: "verified", Category: "Travel", Search: "lion"}
	assert.Empty(t, Filter(fixture(), c))
}

func TestMatches_DateRange(t *testing.T) {
	r := receipt("x", "V", 1, api.StatusPending, "Travel", "")
	r.Date = time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC)

	c := api.FilterCriteria{DateStart: ptr(day("2025-01-01")), DateEnd: ptr(day("2025-01-31"))}
	assert.True(t, Matches(r, c), "end bound covers the whole day")

	r.Date = day("2025-02-01")
	assert.False(t, Matches(r, c))

	r.Date = day("2025-01-01")
	assert.True(t, Matches(r, c), "start bound is inclusive")

	got := Filter(fixture(), api.FilterCriteria{DateStart: ptr(day("2025-01-01"))})
	assert.Equal(t, []string{"r1", "r2", "r3", "r4"}, ids(got))

	got = Filter(fixture(), api.FilterCriteria{DateEnd: ptr(day("2025-01-05"))})
	assert.Equal(t, []string{"r1", "r5"}, ids(got))
}

func TestMatches_UndatedReceiptFailsBoundedRange(t *testing.T) {
	r := receipt("x", "V", 1, api.StatusPending, "Travel", "")
	assert.True(t, Matches(r, api.FilterCriteria{}))
	assert.False(t, Matches(r, api.FilterCriteria{DateStart: ptr(day("2000-01-01"))}))
}

func TestFilter_DoesNotMutate(t *testing.T) {
	in := fixture()
	_ = Filter(in, api.FilterCriteria{Status: "verified"})
	assert.Equal(t, fixture(), in)
}

func TestSort(t *testing.T) {
	in := fixture()

	desc := Sort(in, api.ParseSortSpec("date-desc"))
	asc := Sort(in, api.ParseSortSpec("date-asc"))
	assert.Equal(t, []string{"r4", "r3", "r2", "r1", "r5"}, ids(desc))
	for i := range desc {
		assert.Equal(t, desc[i].ID, asc[len(asc)-1-i].ID)
	}

	assert.Equal(t, []string{"r1", "r3", "r4", "r5", "r2"}, ids(Sort(in, api.ParseSortSpec("amount-desc"))),
		"equal amounts keep input order")
	assert.Equal(t, []string{"r2", "r5", "r4", "r1", "r3"}, ids(Sort(in, api.ParseSortSpec("amount-asc"))))

	assert.Equal(t, ids(in), ids(Sort(in, api.ParseSortSpec("vendor-desc"))))
	assert.Equal(t, ids(in), ids(Sort(in, api.ParseSortSpec("date-sideways"))))
	assert.Equal(t, fixture(), in, "input must not be reordered")
}

func TestSummarize_VerifiedOnlyTotal(t *testing.T) {
	rs := fixture()
	before := Summarize(rs).TotalVerifiedValue
	assert.True(t, decimal.NewFromInt(420).Equal(before))

	rs[1].Total = decimal.NewFromInt(99999)
	assert.True(t, before.Equal(Summarize(rs).TotalVerifiedValue))
}

func TestSummarize_CategoryTotalsStatusBlind(t *testing.T) {
	stats := Summarize(fixture())

	want := []api.Bucket{
		{Name: "Travel", Value: decimal.NewFromInt(375)},
		{Name: "Office Supplies", Value: decimal.NewFromInt(300)},
		{Name: "Software", Value: decimal.NewFromInt(120)},
		{Name: "Meals", Value: decimal.NewFromInt(50)},
	}
	require.Len(t, stats.CategoryTotals, len(want))
	for i := range want {
		assert.Equal(t, want[i].Name, stats.CategoryTotals[i].Name)
		assert.True(t, want[i].Value.Equal(stats.CategoryTotals[i].Value), "%s: %s", want[i].Name, stats.CategoryTotals[i].Value)
	}
	assert.True(t, decimal.NewFromInt(845).Equal(stats.TotalValue))
}

func TestSummarize_UnknownStatus(t *testing.T) {
	rs := append(fixture(), receipt("r6", "Odd", 10, api.Status("rejected"), "Meals", "2025-01-01"))
	stats := Summarize(rs)

	assert.Equal(t, 6, stats.TotalCount)
	assert.Equal(t, api.StatusCounts{Verified: 2, Pending: 2, Failed: 1}, stats.CountsByStatus)
	assert.Equal(t, 33.3, stats.ComplianceRate)
}

func TestSummarize_NoDataPlaceholder(t *testing.T) {
	for _, r := range []TimeRange{RangeAll, RangeYear, RangeQuarter, RangeMonth} {
		stats := SummarizeRange(nil, r)
		require.Len(t, stats.TimeSeries, 1)
		assert.Equal(t, NoDataBucket, stats.TimeSeries[0].Name)
		assert.True(t, stats.TimeSeries[0].Value.IsZero())
		assert.Zero(t, stats.ComplianceRate)
		assert.Zero(t, stats.TotalCount)
	}
}

func TestSummarize_TimeSeries(t *testing.T) {
	rs := []api.Receipt{
		receipt("1", "a", 10, api.StatusVerified, "X", "2025-11-24"),
		receipt("2", "b", 20, api.StatusPending, "X", "2019-03-02"),
		receipt("3", "c", 30, api.StatusFailed, "X", "2025-02-10"),
		receipt("4", "d", 40, api.StatusVerified, "X", "2025-11-01"),
		receipt("5", "e", 5, api.StatusVerified, "X", "2025-11-24"),
	}

	names := func(bs []api.Bucket) []string {
		out := make([]string, 0, len(bs))
		for _, b := range bs {
			out = append(out, b.Name)
		}
		return out
	}

	all := SummarizeRange(rs, RangeAll)
	assert.Equal(t, []string{"2019", "2025"}, names(all.TimeSeries))
	assert.True(t, decimal.NewFromInt(85).Equal(all.TimeSeries[1].Value))

	year := SummarizeRange(rs, RangeYear)
	assert.Equal(t, []string{"Feb", "Mar", "Nov"}, names(year.TimeSeries))

	month := SummarizeRange(rs, RangeMonth)
	assert.Equal(t, []string{"1 Nov", "2 Mar", "10 Feb", "24 Nov"}, names(month.TimeSeries))
	assert.True(t, decimal.NewFromInt(15).Equal(month.TimeSeries[3].Value))
}

func TestComplianceRate(t *testing.T) {
	assert.Equal(t, 0.0, ComplianceRate(0, 0))
	assert.Equal(t, 50.0, ComplianceRate(1, 2))
	assert.Equal(t, 66.7, ComplianceRate(2, 3))
	assert.Equal(t, 100.0, ComplianceRate(4, 4))
}

func TestRangeStart(t *testing.T) {
	now := time.Date(2025, 2, 14, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, day("2025-02-01"), RangeStart(RangeMonth, now))
	assert.Equal(t, day("2024-11-01"), RangeStart(RangeQuarter, now))
	assert.Equal(t, day("2025-01-01"), RangeStart(RangeYear, now))
	assert.Equal(t, day("1970-01-01"), RangeStart(RangeAll, now))
}

func TestWithinRangeAndDashboard(t *testing.T) {
	now := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)
	undated := receipt("u", "Nowhen", 1, api.StatusVerified, "Meals", "")
	rs := append(fixture(), undated)

	assert.Equal(t, []string{"r3", "r4"}, ids(WithinRange(rs, RangeMonth, now)))
	assert.Equal(t, []string{"r1", "r2", "r3", "r4"}, ids(WithinRange(rs, RangeYear, now)))
	assert.Len(t, WithinRange(rs, RangeAll, now), 5, "undated receipts fall outside every range")

	d := BuildDashboard(rs, RangeYear, now)
	assert.Equal(t, 4, d.Stats.TotalCount)
	assert.Equal(t, []string{"r4", "r3", "r2", "r1"}, ids(d.Recent))
	assert.Equal(t, 50.0, d.Stats.ComplianceRate)
}

func TestCategories(t *testing.T) {
	assert.Equal(t, []string{"All", "Travel", "Meals", "Office Supplies", "Software"}, Categories(fixture()))
	assert.Equal(t, []string{"All"}, Categories(nil))
}

func TestParseTimeRange(t *testing.T) {
	assert.Equal(t, RangeYear, ParseTimeRange("YEAR"))
	assert.Equal(t, RangeQuarter, ParseTimeRange("quarter"))
	assert.Equal(t, RangeMonth, ParseTimeRange(" month "))
	assert.Equal(t, RangeAll, ParseTimeRange(""))
	assert.Equal(t, RangeAll, ParseTimeRange("decade"))
}

func TestNaturalCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{a: "2 Jan", b: "10 Jan", want: -1},
		{a: "10 Jan", b: "2 Jan", want: 1},
		{a: "2019", b: "2025", want: -1},
		{a: "1 Nov", b: "1 Mar", want: 1},
		{a: "abc", b: "ABD", want: -1},
		{a: "Jan", b: "jan", want: 0},
		{a: "x", b: "x1", want: -1},
		{a: "", b: "", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, NaturalCompare(tt.a, tt.b))
		})
	}
}
