package filter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// utf8BOM lets spreadsheet applications detect UTF-8 (Hebrew text).
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVContentType and XLSXContentType are the response types for the two formats.
const (
	CSVContentType  = "text/csv; charset=utf-8"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// FileName returns the download name for an export taken on day (YYYY-MM-DD).
func FileName(day, ext string) string {
	return fmt.Sprintf("reports_%s.%s", day, ext)
}

// WriteCSV writes a UTF-8 BOM, the header row, then one line per row.
func WriteCSV(w io.Writer, headers []string, rows []ExportRow) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(headers))
	for _, row := range rows {
		for i, v := range row.Values() {
			if i >= len(record) {
				break
			}
			record[i] = cellString(v)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteXLSX writes the same table as WriteCSV as a single-sheet workbook.
func WriteXLSX(w io.Writer, headers []string, rows []ExportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell: %w", err)
		}
	}

	for r, row := range rows {
		for c, v := range row.Values() {
			if c >= len(headers) {
				break
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
