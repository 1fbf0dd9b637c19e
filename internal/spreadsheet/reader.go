// Package spreadsheet reads and writes the column-oriented files the
// interchange engine deals with: CSV for uploads, downloads and templates,
// xlsx for uploads and the two-sheet result report.
package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Exts lists the supported spreadsheet file extensions.
var Exts = []string{".csv", ".xlsx"}

// Table is a parsed spreadsheet: one header row plus data rows of raw
// string cells. Blank cells are empty strings, never null.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Supported reports whether the filename carries a readable extension.
func Supported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range Exts {
		if ext == e {
			return true
		}
	}
	return false
}

// Read parses the spreadsheet at path, dispatching on file extension.
func Read(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening spreadsheet: %w", err)
	}
	defer f.Close()

	return ReadReader(f, filepath.Ext(path))
}

// ReadReader parses spreadsheet content from r. ext selects the format
// (".csv" or ".xlsx").
func ReadReader(r io.Reader, ext string) (*Table, error) {
	switch strings.ToLower(ext) {
	case ".csv":
		return readCSV(r)
	case ".xlsx":
		return readXLSX(r)
	default:
		return nil, fmt.Errorf("unsupported spreadsheet format %q", ext)
	}
}

func readCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = false

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}

	table := &Table{Headers: records[0]}
	for _, rec := range records[1:] {
		table.Rows = append(table.Rows, padRow(rec, len(table.Headers)))
	}
	return table, nil
}

func readXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Table{}, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}

	table := &Table{Headers: rows[0]}
	for _, row := range rows[1:] {
		table.Rows = append(table.Rows, padRow(row, len(table.Headers)))
	}
	return table, nil
}

// padRow aligns a short row to the header width so that blank trailing
// cells read as empty strings.
func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row[:width]
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}
