// Package tabular reads and writes simple header-plus-rows spreadsheets in
// xlsx and csv form.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Format identifies a spreadsheet encoding
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// ParseFormat maps a user-supplied format name, defaulting to xlsx.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "xlsx", "excel":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// ErrEmpty is returned when a document has no header row.
var ErrEmpty = errors.New("document has no header row")

// ErrLegacyExcel is returned for binary .xls workbooks, which are not read.
var ErrLegacyExcel = errors.New("unsupported format .xls: save as .xlsx")

var (
	zipMagic = []byte("PK\x03\x04")
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// Table is a decoded spreadsheet: one header row and the data rows under it.
// Data rows may be shorter than the header when trailing cells are empty.
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of the first header matching any of names
// (case-insensitive, surrounding whitespace ignored), or -1.
func (t *Table) Index(names ...string) int {
	for i, h := range t.Header {
		h = strings.TrimSpace(h)
		for _, name := range names {
			if strings.EqualFold(h, name) {
				return i
			}
		}
	}
	return -1
}

// Cell returns the trimmed value at column idx of row, or "" when absent.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// DetectFormat picks a format from the filename extension, falling back to
// sniffing the content.
func DetectFormat(filename string, head []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".csv", ".txt":
		return FormatCSV
	}
	if bytes.HasPrefix(head, zipMagic) {
		return FormatXLSX
	}
	return FormatCSV
}

// Decode reads a whole document. Any parse failure is returned as an error;
// the caller decides how to classify it.
func Decode(r io.Reader, filename string) (*Table, error) {
	if strings.EqualFold(filepath.Ext(filename), ".xls") {
		return nil, ErrLegacyExcel
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	switch DetectFormat(filename, data) {
	case FormatXLSX:
		return decodeXLSX(data)
	default:
		return decodeCSV(data)
	}
}

func decodeXLSX(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return newTable(rows)
}

func decodeCSV(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return nil, errors.New("csv is not valid UTF-8 text")
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return newTable(rows)
}

func newTable(rows [][]string) (*Table, error) {
	// Skip leading blank rows
	for len(rows) > 0 && isBlank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, ErrEmpty
	}

	table := &Table{Header: rows[0]}
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Encode writes header and rows to w in format. Cell values may be strings
// or numbers; numbers stay numeric in xlsx output.
func Encode(w io.Writer, format Format, header []string, rows [][]any) error {
	if format == FormatCSV {
		return encodeCSV(w, header, rows)
	}
	return encodeXLSX(w, header, rows)
}

func encodeCSV(w io.Writer, header []string, rows [][]any) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = fmt.Sprint(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func encodeXLSX(w io.Writer, header []string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	headerCells := make([]any, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerCells); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
