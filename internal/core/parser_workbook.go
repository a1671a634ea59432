package core

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Built-in number format ids that render a serial number as a date or time.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	45: true, 46: true, 47: true,
}

// parseWorkbook decodes the first sheet of an .xlsx file. Cell values keep
// their native type; empty cells under a header become nil.
func parseWorkbook(data []byte) ([]*Record, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, malformed("open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, malformed("workbook has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, malformed("read sheet %q: %v", sheet, err)
	}

	wb := &workbookCells{file: f, sheet: sheet, dateStyles: make(map[int]bool)}

	var header []string
	var records []*Record

	for r, row := range rows {
		if isBlankCells(row) {
			continue
		}
		if header == nil {
			header = normalizeHeader(row)
			continue
		}
		if len(row) > len(header) {
			header = extendHeader(header, len(row))
		}

		rec := NewRecord(len(header))
		for c, name := range header {
			var raw string
			if c < len(row) {
				raw = row[c]
			}
			v, err := wb.value(c, r, raw)
			if err != nil {
				return nil, malformed("row %d: %v", r+1, err)
			}
			rec.Set(name, v)
		}
		records = append(records, rec)
	}

	return records, nil
}

// workbookCells resolves typed cell values for one sheet, caching which
// style ids carry a date format.
type workbookCells struct {
	file       *excelize.File
	sheet      string
	dateStyles map[int]bool
}

// value converts the raw text of the cell at zero-based (col, row).
func (w *workbookCells) value(col, row int, raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}

	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return nil, err
	}

	typ, err := w.file.GetCellType(w.sheet, axis)
	if err != nil {
		return nil, err
	}

	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		return raw, nil
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		num, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw, nil
		}
		if w.isDate(axis) {
			t, err := excelize.ExcelDateToTime(num, false)
			if err != nil {
				return num, nil
			}
			return t, nil
		}
		return num, nil
	default:
		return raw, nil
	}
}

// isDate reports whether the cell's number format displays a date.
func (w *workbookCells) isDate(axis string) bool {
	styleID, err := w.file.GetCellStyle(w.sheet, axis)
	if err != nil || styleID == 0 {
		return false
	}
	if isDate, ok := w.dateStyles[styleID]; ok {
		return isDate
	}

	isDate := false
	if style, err := w.file.GetStyle(styleID); err == nil && style != nil {
		isDate = builtinDateFormats[style.NumFmt]
		if !isDate && style.CustomNumFmt != nil {
			isDate = isDateFormatCode(*style.CustomNumFmt)
		}
	}
	w.dateStyles[styleID] = isDate
	return isDate
}

// isDateFormatCode reports whether a custom number format code contains date
// tokens outside quoted literals and bracketed sections.
func isDateFormatCode(code string) bool {
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		case r == 'y' || r == 'd':
			return true
		}
	}
	return false
}

// parseLegacyWorkbook decodes the first sheet of a BIFF .xls file. The decoder
// renders every cell as text, so values are strings or nil.
func parseLegacyWorkbook(data []byte) (records []*Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, malformed("decode xls: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, malformed("open xls: %v", err)
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, malformed("workbook has no sheets")
	}

	var header []string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheetRow(sheet, i)
		if row == nil {
			continue
		}

		cells := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		cells = trimTrailingEmpty(cells)
		if isBlankCells(cells) {
			continue
		}

		if header == nil {
			header = normalizeHeader(cells)
			continue
		}
		if len(cells) > len(header) {
			header = extendHeader(header, len(cells))
		}

		rec := NewRecord(len(header))
		for c, name := range header {
			if c < len(cells) && cells[c] != "" {
				rec.Set(name, cells[c])
			} else {
				rec.Set(name, nil)
			}
		}
		records = append(records, rec)
	}

	return records, nil
}

// sheetRow returns row i, or nil when the sheet has no record of it. The
// decoder dereferences a nil row for indexes it never saw.
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// extendHeader appends generated names so a row wider than the header keeps
// its trailing cells.
func extendHeader(header []string, width int) []string {
	cells := make([]string, width)
	copy(cells, header)
	return normalizeHeader(cells)
}

func isBlankCells(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimTrailingEmpty(cells []string) []string {
	n := len(cells)
	for n > 0 && cells[n-1] == "" {
		n--
	}
	return cells[:n]
}
