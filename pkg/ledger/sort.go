package ledger

import (
	"slices"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// DefaultSort orders the ledger newest first.
var DefaultSort = api.SortSpec{Field: api.SortByDate, Direction: api.Descending}

// Sort returns a stably sorted copy of receipts. An unrecognized spec returns
// the copy in input order.
func Sort(receipts []api.Receipt, spec api.SortSpec) []api.Receipt {
	out := slices.Clone(receipts)

	var cmp func(a, b api.Receipt) int
	switch spec.Field {
	case api.SortByDate:
		cmp = func(a, b api.Receipt) int { return a.Date.Compare(b.Date) }
	case api.SortByAmount:
		cmp = func(a, b api.Receipt) int { return a.Total.Cmp(b.Total) }
	default:
		return out
	}

	switch spec.Direction {
	case api.Ascending:
		slices.SortStableFunc(out, cmp)
	case api.Descending:
		slices.SortStableFunc(out, func(a, b api.Receipt) int { return cmp(b, a) })
	}
	return out
}
