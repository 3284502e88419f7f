package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"medbill/internal/domain"
)

const sheetName = "Line Items"

// columns defines the XLSX header row.
var columns = []string{
	"Page No",
	"Page Type",
	"Item Name",
	"Amount",
	"Rate",
	"Quantity",
}

// WriteXLSX renders extraction data as a single-sheet Excel workbook and
// writes it to w. One row per line item; Rate and Quantity cells stay
// empty when the item never carried them.
func WriteXLSX(w io.Writer, data *domain.ExtractionData) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("xlsx new sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("xlsx delete default sheet: %w", err)
	}

	for col, name := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("xlsx header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
	}

	row := 2
	for _, page := range data.PagewiseLineItems {
		for _, item := range page.BillItems {
			values := []any{
				page.PageNo,
				string(page.PageType),
				item.ItemName,
				item.ItemAmount,
				nilable(item.ItemRate),
				nilable(item.ItemQuantity),
			}
			for col, v := range values {
				if v == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(col+1, row)
				if err != nil {
					return fmt.Errorf("xlsx cell: %w", err)
				}
				if err := f.SetCellValue(sheetName, cell, v); err != nil {
					return fmt.Errorf("xlsx row %d: %w", row, err)
				}
			}
			row++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func nilable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
