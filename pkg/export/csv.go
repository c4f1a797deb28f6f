package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// CSV encodes reports as comma separated values with a header row.
type CSV struct{}

// NewCSV creates a CSV encoder.
func NewCSV() *CSV { return &CSV{} }

func (*CSV) Format() api.Format { return api.FormatCSV }
func (*CSV) Extension() string { return "csv" }
func (*CSV) ContentType() string { return "text/csv" }

// Encode writes the header followed by one record per row.
func (*CSV) Encode(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range doc.Rows {
		if err := w.Write(r.Values()); err != nil {
			return nil, fmt.Errorf("writing csv record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}
