package feed

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// UnknownVendor replaces an empty vendor name.
const UnknownVendor = "Unknown Vendor"

// dateLayouts are tried in order when parsing the feed's date field.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
}

// RawReceipt is a receipt exactly as the feed sends it. Numeric fields may
// arrive as JSON numbers or strings, and any field may be missing or null.
type RawReceipt struct {
	ID         json.RawMessage `json:"id"`
	Vendor     *string         `json:"vendor"`
	Date       *string         `json:"date"`
	Total      json.RawMessage `json:"total"`
	Category   *string         `json:"category"`
	Status     *string         `json:"status"`
	IPFSURL    *string         `json:"ipfsUrl"`
	Blockchain *struct {
		TxHash      *string `json:"txHash"`
		ExplorerURL *string `json:"explorerUrl"`
	} `json:"blockchain"`
}

// Normalize converts a raw feed record into a Receipt with every default
// applied. It never fails: malformed fields fall back to their defaults.
func Normalize(raw RawReceipt) api.Receipt {
	r := api.Receipt{
		ID:       scalarString(raw.ID),
		Vendor:   strings.TrimSpace(deref(raw.Vendor)),
		Date:     ParseDate(deref(raw.Date)),
		Total:    coerceAmount(raw.Total),
		Category: strings.TrimSpace(deref(raw.Category)),
		Status:   api.Status(strings.ToLower(strings.TrimSpace(deref(raw.Status)))),
		IPFSURL:  strings.TrimSpace(deref(raw.IPFSURL)),
	}

	if r.Vendor == "" {
		r.Vendor = UnknownVendor
	}
	if r.Category == "" {
		r.Category = api.DefaultCategory
	}
	if r.Status == "" {
		r.Status = api.StatusPending
	}

	if raw.Blockchain != nil {
		if hash := strings.TrimSpace(deref(raw.Blockchain.TxHash)); hash != "" {
			r.Blockchain = &api.Blockchain{
				TxHash:      hash,
				ExplorerURL: deref(raw.Blockchain.ExplorerURL),
			}
		}
	}

	return r
}

// ParseDate parses the date formats the feed is known to emit and returns
// the instant in UTC. Unparseable input yields the zero time.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// coerceAmount accepts a JSON number or numeric string. Missing, invalid and
// negative amounts become zero.
func coerceAmount(raw json.RawMessage) decimal.Decimal {
	s := scalarString(raw)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// scalarString renders a JSON string or number as plain text.
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	if _, err := strconv.ParseFloat(string(raw), 64); err != nil {
		return ""
	}
	return string(raw)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
