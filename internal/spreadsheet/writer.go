package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"
)

// UnionHeaders accumulates the union of keys across rows in first-seen
// order, so rows with differing optional/list-length shapes still align
// into one table.
func UnionHeaders(rows []map[string]string, preferred []string) []string {
	seen := make(map[string]bool)
	var headers []string

	for _, key := range preferred {
		for _, row := range rows {
			if _, ok := row[key]; ok {
				if !seen[key] {
					seen[key] = true
					headers = append(headers, key)
				}
				break
			}
		}
	}
	for _, row := range rows {
		for _, key := range sortedRowKeys(row) {
			if !seen[key] {
				seen[key] = true
				headers = append(headers, key)
			}
		}
	}
	return headers
}

// WriteCSV writes a table of flat rows to path, creating parent
// directories as needed.
func WriteCSV(path string, headers []string, rows []map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv: %w", err)
	}
	defer f.Close()

	return WriteCSVTo(f, headers, rows)
}

// WriteCSVTo streams a table of flat rows to w.
func WriteCSVTo(out io.Writer, headers []string, rows []map[string]string) error {
	w := csv.NewWriter(out)
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	record := make([]string, len(headers))
	for _, row := range rows {
		for i, h := range headers {
			record[i] = row[h]
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// Report sheet names.
const (
	SheetSuccessful = "Successful"
	SheetFailed     = "Failed"
)

// WriteReport writes the two-sheet xlsx upload report: one sheet of
// flattened successful records, one of failed attempts with their error
// maps.
func WriteReport(path string, successes, failures []map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeSheet(f, SheetSuccessful, successes); err != nil {
		return err
	}
	if err := writeSheet(f, SheetFailed, failures); err != nil {
		return err
	}
	// The implicit default sheet is replaced by the report sheets.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows []map[string]string) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("creating sheet %s: %w", sheet, err)
	}

	headers := UnionHeaders(rows, nil)
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("writing header %s: %w", h, err)
		}
	}

	for i, row := range rows {
		for col, h := range headers {
			value, ok := row[h]
			if !ok {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("writing cell %s: %w", cell, err)
			}
		}
	}
	return nil
}

func sortedRowKeys(row map[string]string) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	// Deterministic order for keys outside the preferred set.
	sort.Strings(keys)
	return keys
}
