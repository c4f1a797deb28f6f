package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// JSON encodes reports as an indented JSON document.
type JSON struct{}

// NewJSON creates a JSON encoder.
func NewJSON() *JSON { return &JSON{} }

func (*JSON) Format() api.Format { return api.FormatJSON }
func (*JSON) Extension() string { return "json" }
func (*JSON) ContentType() string { return "application/json" }

type jsonReport struct {
	Title       string    `json:"title"`
	Filename    string    `json:"filename"`
	GeneratedAt time.Time `json:"generatedAt"`
	Columns     []string  `json:"columns"`
	Count       int       `json:"count"`
	Rows        []Row     `json:"rows"`
}

// Encode marshals the document rows with their metadata.
func (*JSON) Encode(doc Document) ([]byte, error) {
	rows := doc.Rows
	if rows == nil {
		rows = []Row{}
	}

	data, err := json.MarshalIndent(jsonReport{
		Title:       doc.Title,
		Filename:    doc.Filename,
		GeneratedAt: doc.GeneratedAt,
		Columns:     Header,
		Count:       len(rows),
		Rows:        rows,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling json report: %w", err)
	}
	return data, nil
}
