package report

import (
	"fmt"

	"github.com/ArionMiles/ledgerview/pkg/api"
	"github.com/ArionMiles/ledgerview/pkg/ledger"
)

// DefaultLabel prefixes generated filenames.
const DefaultLabel = "AuditReport"

// ReplayCriteria returns the part of a snapshot's criteria that is re-applied
// on replay: the date range and the category set. Status, single category and
// search are not replayed.
func ReplayCriteria(c api.FilterCriteria) api.FilterCriteria {
	return api.FilterCriteria{
		Categories: c.Categories,
		DateStart:  c.DateStart,
		DateEnd:    c.DateEnd,
	}
}

// Replay re-applies a snapshot's criteria to the current feed. The result may
// differ from the snapshot's ItemCount when the feed has changed.
func Replay(snapshot api.ReportSnapshot, current []api.Receipt) []api.Receipt {
	return ledger.Filter(current, ReplayCriteria(snapshot.Filter))
}

// Filename composes the name of a freshly generated report file.
func Filename(label string, count, seq int, ext string) string {
	if label == "" {
		label = DefaultLabel
	}
	return fmt.Sprintf("%s_%dItems_%d.%s", label, count, seq, ext)
}

// CopyFilename composes the name of a re-downloaded report file: the
// original filename with _Copy before the extension.
func CopyFilename(label string, count, seq int, ext string) string {
	if label == "" {
		label = DefaultLabel
	}
	return fmt.Sprintf("%s_%dItems_%d_Copy.%s", label, count, seq, ext)
}
