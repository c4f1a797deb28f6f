// Package ledger derives filtered, sorted and aggregated views of receipts.
// Every function is pure: inputs are never mutated and results are rebuilt
// from scratch on each call.
package ledger

import (
	"strings"
	"time"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// Matches reports whether r satisfies every criterion in c. Criteria that are
// absent never exclude a receipt.
func Matches(r api.Receipt, c api.FilterCriteria) bool {
	return matchStatus(r, c.Status) &&
		matchCategory(r, c.Category) &&
		matchCategorySet(r, c.Categories) &&
		matchSearch(r, c.Search) &&
		matchDate(r, c.DateStart, c.DateEnd)
}

// Filter returns the receipts matching c, preserving input order.
func Filter(receipts []api.Receipt, c api.FilterCriteria) []api.Receipt {
	out := make([]api.Receipt, 0, len(receipts))
	for _, r := range receipts {
		if Matches(r, c) {
			out = append(out, r)
		}
	}
	return out
}

func matchStatus(r api.Receipt, status string) bool {
	status = strings.TrimSpace(status)
	if status == "" || strings.EqualFold(status, api.AllStatuses) {
		return true
	}
	return strings.EqualFold(string(r.Status), status)
}

func matchCategory(r api.Receipt, category string) bool {
	if category == "" || category == api.AllCategories {
		return true
	}
	return r.Category == category
}

func matchCategorySet(r api.Receipt, categories []string) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if strings.Contains(r.Category, c) {
			return true
		}
	}
	return false
}

func matchSearch(r api.Receipt, search string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Vendor), search) ||
		strings.Contains(strings.ToLower(r.ID), search)
}

func matchDate(r api.Receipt, start, end *time.Time) bool {
	if start == nil && end == nil {
		return true
	}
	if r.Date.IsZero() {
		return false
	}
	if start != nil && r.Date.Before(StartOfDay(*start)) {
		return false
	}
	if end != nil && r.Date.After(EndOfDay(*end)) {
		return false
	}
	return true
}

// StartOfDay truncates t to midnight UTC of its calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last millisecond of t's calendar day in UTC.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
}
