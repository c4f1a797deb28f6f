// Package api defines the core types and interfaces shared across ledgerview.
package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors surfaced by the engine. Callers match them with errors.Is.
var (
	// ErrFeedUnavailable is returned when the remote receipt feed cannot be read.
	ErrFeedUnavailable = errors.New("receipt feed unavailable")
	// ErrNotFound is returned when the feed has no receipt with the requested id.
	ErrNotFound = errors.New("receipt not found")
	// ErrNoMatchingData is returned when a report is requested for an empty result set.
	ErrNoMatchingData = errors.New("no receipts match the selected criteria")
	// ErrReplayEmpty is returned when a stored report cannot be regenerated from the current feed.
	ErrReplayEmpty = errors.New("cannot regenerate report: no receipts match the saved criteria")
	// ErrSnapshotNotFound is returned when a history entry does not exist.
	ErrSnapshotNotFound = errors.New("report snapshot not found")
	// ErrClearNotConfirmed is returned when history clearing was not explicitly confirmed.
	ErrClearNotConfirmed = errors.New("clearing report history requires confirmation")
	// ErrUnknownFormat is returned for export formats that are not registered.
	ErrUnknownFormat = errors.New("unknown export format")
)

// Status is the lifecycle state of a receipt as reported by the feed.
type Status string

// Known receipt statuses. Anything else is kept verbatim (lowercased) and
// treated as unrecognized by the aggregator.
const (
	StatusVerified Status = "verified"
	StatusPending  Status = "pending"
	StatusFailed   Status = "failed"
)

// Known reports whether s is one of verified, pending or failed.
func (s Status) Known() bool {
	switch s {
	case StatusVerified, StatusPending, StatusFailed:
		return true
	}
	return false
}

// DefaultCategory is assigned to receipts the feed sends without a category.
const DefaultCategory = "Uncategorized"

// Blockchain holds the notarization proof of a receipt.
type Blockchain struct {
	TxHash      string `json:"txHash"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
}

// Receipt is a normalized record from the receipt feed.
type Receipt struct {
	ID         string          `json:"id"`
	Vendor     string          `json:"vendor"`
	Date       time.Time       `json:"date"`
	Total      decimal.Decimal `json:"total"`
	Category   string          `json:"category"`
	Status     Status          `json:"status"`
	IPFSURL    string          `json:"ipfsUrl,omitempty"`
	Blockchain *Blockchain     `json:"blockchain,omitempty"`
}

// Notarized reports whether the receipt carries an on-chain transaction hash.
func (r Receipt) Notarized() bool {
	return r.Blockchain != nil && r.Blockchain.TxHash != ""
}

// HasOriginal reports whether the original document is reachable on IPFS.
func (r Receipt) HasOriginal() bool {
	return r.IPFSURL != ""
}

// Sentinel values of the single-select filters.
const (
	AllStatuses   = "all"
	AllCategories = "All"
)

// FilterCriteria narrows a receipt collection. A zero value matches everything.
type FilterCriteria struct {
	// Status is matched case-insensitively. Empty or "all" disables the axis.
	Status string `json:"status,omitempty"`
	// Category is matched exactly. Empty or "All" disables the axis.
	Category string `json:"category,omitempty"`
	// Categories is the multi-select set used by report generation. A receipt
	// passes when its category contains any entry.
	Categories []string `json:"categories,omitempty"`
	// Search is a case-insensitive substring of vendor or id.
	Search string `json:"search,omitempty"`
	// DateStart and DateEnd bound the receipt date inclusively, by calendar day.
	DateStart *time.Time `json:"dateStart,omitempty"`
	DateEnd   *time.Time `json:"dateEnd,omitempty"`
}

// SortField selects the key of a SortSpec.
type SortField string

// SortDirection selects the ordering of a SortSpec.
type SortDirection string

// Sort keys and directions.
const (
	SortByDate   SortField     = "date"
	SortByAmount SortField     = "amount"
	Ascending    SortDirection = "asc"
	Descending   SortDirection = "desc"
)

// SortSpec describes how to order receipts.
type SortSpec struct {
	Field     SortField     `json:"field"`
	Direction SortDirection `json:"direction"`
}

// String returns the token form, e.g. "date-desc".
func (s SortSpec) String() string {
	return string(s.Field) + "-" + string(s.Direction)
}

// ParseSortSpec parses tokens such as "amount-asc". Unrecognized tokens are
// returned as-is and sort as a no-op.
func ParseSortSpec(token string) SortSpec {
	field, dir, _ := strings.Cut(strings.ToLower(strings.TrimSpace(token)), "-")
	return SortSpec{Field: SortField(field), Direction: SortDirection(dir)}
}

// Format identifies an export file type.
type Format string

// Supported export formats.
const (
	FormatPDF   Format = "PDF"
	FormatExcel Format = "EXCEL"
	FormatCSV   Format = "CSV"
	FormatJSON  Format = "JSON"
)

// ParseFormat normalizes a user supplied format name.
func ParseFormat(s string) Format {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PDF":
		return FormatPDF
	case "EXCEL", "XLSX":
		return FormatExcel
	case "CSV":
		return FormatCSV
	case "JSON":
		return FormatJSON
	}
	return Format(strings.ToUpper(strings.TrimSpace(s)))
}

// ReportSnapshot records the parameters of a generated report. Snapshots are
// immutable once created.
type ReportSnapshot struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	CreatedAt time.Time      `json:"createdAt"`
	Format    Format         `json:"format"`
	ItemCount int            `json:"itemCount"`
	Sequence  int            `json:"sequence"`
	Filter    FilterCriteria `json:"filters"`
}

// Feed is a read-only source of receipts.
type Feed interface {
	FetchAll(ctx context.Context) ([]Receipt, error)
	FetchOne(ctx context.Context, id string) (Receipt, error)
}

// HistoryStore persists report snapshots in insertion order.
type HistoryStore interface {
	// Load returns every snapshot, oldest first.
	Load(ctx context.Context) ([]ReportSnapshot, error)
	Append(ctx context.Context, snapshot ReportSnapshot) error
	Clear(ctx context.Context) error
}

// SequenceStore persists the report sequence counter. Current returns 1 when
// nothing has been stored yet.
type SequenceStore interface {
	Current(ctx context.Context) (int, error)
	// Advance atomically increments the counter and returns the new value.
	Advance(ctx context.Context) (int, error)
	// Release hands back an unused number: the counter is rewound to seq
	// only while it still equals seq+1. It reports whether it rewound.
	Release(ctx context.Context, seq int) (bool, error)
}

// Store combines both persisted values. Every history backend implements it.
type Store interface {
	HistoryStore
	SequenceStore
	Close() error
}

// StatusCounts holds the number of receipts per recognized status.
type StatusCounts struct {
	Verified int `json:"verified"`
	Pending  int `json:"pending"`
	Failed   int `json:"failed"`
}

// Bucket is a named monetary total used by category and trend groupings.
type Bucket struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// AggregateStats summarizes a receipt collection.
type AggregateStats struct {
	TotalCount int `json:"totalCount"`
	// CountsByStatus excludes unrecognized statuses, so the buckets may sum
	// to less than TotalCount.
	CountsByStatus     StatusCounts    `json:"countsByStatus"`
	TotalVerifiedValue decimal.Decimal `json:"totalVerifiedValue"`
	// TotalValue sums every receipt regardless of status.
	TotalValue     decimal.Decimal `json:"totalValue"`
	CategoryTotals []Bucket        `json:"categoryTotals"`
	TimeSeries     []Bucket        `json:"timeSeries"`
	// ComplianceRate is the verified share in percent, rounded to one decimal.
	ComplianceRate float64 `json:"complianceRate"`
}
