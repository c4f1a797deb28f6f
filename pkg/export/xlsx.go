package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ArionMiles/ledgerview/pkg/api"
)

// SheetName is the worksheet that holds report rows.
const SheetName = "Data"

// XLSX encodes reports as an Excel workbook with a single worksheet.
type XLSX struct{}

// NewXLSX creates an Excel encoder.
func NewXLSX() *XLSX { return &XLSX{} }

func (*XLSX) Format() api.Format { return api.FormatExcel }
func (*XLSX) Extension() string { return "xlsx" }
func (*XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Encode writes the header row followed by one row per report row.
func (*XLSX) Encode(doc Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("naming worksheet: %w", err)
	}

	if err := writeXLSXRow(f, 1, Header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	for i, r := range doc.Rows {
		if err := writeXLSXRow(f, i+2, r.Values()); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(Header), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, style); err != nil {
		return nil, fmt.Errorf("styling header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeXLSXRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(SheetName, cell, &cells)
}
