// Package export serializes receipt collections into downloadable report files.
// Every encoder renders the same row projection, so the column set and order
// never differ between formats.
package export

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// Header is the column set shared by every format.
var Header = []string{"Date", "Vendor", "Category", "Amount", "Status", "Tx Hash"}

// TxPendingLabel stands in for the hash of a receipt that is not notarized yet.
const TxPendingLabel = "Pending"

// txHashPrefix is how many characters of a transaction hash are shown.
const txHashPrefix = 8

// DateLayout is the human date format used in reports.
const DateLayout = "2 Jan 2006"

var currencyPrinter = message.NewPrinter(language.Indonesian)

// Row is one receipt rendered for a report.
type Row struct {
	Date     string `json:"date"`
	Vendor   string `json:"vendor"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Status   string `json:"status"`
	TxHash   string `json:"txHash"`
}

// Values returns the row cells in Header order.
func (r Row) Values() []string {
	return []string{r.Date, r.Vendor, r.Category, r.Amount, r.Status, r.TxHash}
}

// Project renders receipts as report rows, preserving order.
func Project(receipts []api.Receipt) []Row {
	rows := make([]Row, 0, len(receipts))
	for _, r := range receipts {
		rows = append(rows, Row{
			Date:     FormatDate(r.Date),
			Vendor:   r.Vendor,
			Category: r.Category,
			Amount:   FormatAmount(r.Total),
			Status:   string(r.Status),
			TxHash:   TxHashLabel(r),
		})
	}
	return rows
}

// FormatDate renders a receipt date, or "-" when the date is unknown.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(DateLayout)
}

// FormatAmount renders an amount in Indonesian Rupiah without decimals,
// e.g. "Rp 1.500.000".
func FormatAmount(d decimal.Decimal) string {
	n := d.Round(0).BigInt()
	if n.IsInt64() {
		return currencyPrinter.Sprintf("Rp %v", number.Decimal(n.Int64()))
	}
	return "Rp " + groupThousands(n.String())
}

// groupThousands inserts "." every three digits of an integer string.
func groupThousands(digits string) string {
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	return sign + b.String()
}

// TxHashLabel shortens the transaction hash or returns TxPendingLabel.
func TxHashLabel(r api.Receipt) string {
	if !r.Notarized() {
		return TxPendingLabel
	}
	hash := r.Blockchain.TxHash
	if len(hash) > txHashPrefix {
		hash = hash[:txHashPrefix]
	}
	return hash + "..."
}

// Document is everything an encoder needs to render one report.
type Document struct {
	Title       string
	Filename    string
	GeneratedAt time.Time
	Rows        []Row
	// Chart is an optional PNG rendered into formats that support images.
	Chart []byte
}

// DefaultTitle heads every generated report.
const DefaultTitle = "Blockchain Audit Report"

// NewDocument projects receipts into a Document.
func NewDocument(filename string, receipts []api.Receipt, generatedAt time.Time) Document {
	return Document{
		Title:       DefaultTitle,
		Filename:    filename,
		GeneratedAt: generatedAt,
		Rows:        Project(receipts),
	}
}
