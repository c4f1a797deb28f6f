package export

import (
	"bytes"
	"fmt"
	"time"

	"codeberg.org/go-pdf/fpdf"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// columnWidths are the table column widths in millimetres, in Header order.
var columnWidths = []float64{26, 48, 34, 30, 20, 24}

const (
	pdfRowHeight   = 7
	pdfChartHeight = 60
	pdfChartName   = "trend"
)

// PDF encodes reports as an A4 document with a title block and a grid table.
type PDF struct {
	compress bool
}

// NewPDF creates a PDF encoder with stream compression enabled.
func NewPDF() *PDF { return &PDF{compress: true} }

// NewUncompressedPDF creates a PDF encoder whose content streams stay readable.
func NewUncompressedPDF() *PDF { return &PDF{} }

func (*PDF) Format() api.Format { return api.FormatPDF }
func (*PDF) Extension() string { return "pdf" }
func (*PDF) ContentType() string { return "application/pdf" }

// Encode renders the title block, the optional chart and the row table.
func (p *PDF) Encode(doc Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(p.compress)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("ledgerview", true)
	if !doc.GeneratedAt.IsZero() {
		pdf.SetCreationDate(doc.GeneratedAt)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(doc.Title))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 5, tr("Generated via BlockReceipt • "+doc.GeneratedAt.Format(time.DateTime)))
	pdf.Ln(5)
	pdf.Cell(0, 5, tr("Filename: "+doc.Filename))
	pdf.Ln(8)

	if len(doc.Chart) > 0 {
		left, _, right, _ := pdf.GetMargins()
		pageW, _ := pdf.GetPageSize()
		opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		pdf.RegisterImageOptionsReader(pdfChartName, opts, bytes.NewReader(doc.Chart))
		pdf.ImageOptions(pdfChartName, left, pdf.GetY(), pageW-left-right, pdfChartHeight, false, opts, 0, "")
		pdf.Ln(pdfChartHeight + 4)
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(6, 182, 212)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range Header {
		pdf.CellFormat(columnWidths[i], pdfRowHeight, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(0, 0, 0)
	for _, r := range doc.Rows {
		for i, v := range r.Values() {
			align := "L"
			if i == 3 {
				align = "R"
			}
			pdf.CellFormat(columnWidths[i], pdfRowHeight, tr(v), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering pdf: %w", err)
	}
	return buf.Bytes(), nil
}
