package engine

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/clubops/querycsv/internal/spreadsheet"
)

// Download serializes a collection of records, flattens each one and writes
// the accumulated table to a CSV file at path. Columns are the union of all
// flat keys encountered, so records with differing optional or list-length
// shapes still align into one table.
func (e *Engine) Download(ctx context.Context, records []Record, path string) error {
	headers, rows := e.table(records)
	if err := spreadsheet.WriteCSV(path, headers, rows); err != nil {
		return fmt.Errorf("writing download: %w", err)
	}

	zap.S().Named("engine").Infof("downloaded %d %s records to %s", len(rows), e.schema.Name, path)
	return nil
}

// DownloadTo streams the flattened records as CSV, used by the export
// endpoint.
func (e *Engine) DownloadTo(ctx context.Context, records []Record, w io.Writer) error {
	headers, rows := e.table(records)
	if err := spreadsheet.WriteCSVTo(w, headers, rows); err != nil {
		return fmt.Errorf("writing download: %w", err)
	}

	zap.S().Named("engine").Infof("downloaded %d %s records", len(rows), e.schema.Name)
	return nil
}

func (e *Engine) table(records []Record) ([]string, []map[string]string) {
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, e.conv.Flatten(e.store.ToStructured(rec)))
	}
	return spreadsheet.UnionHeaders(rows, e.fields.ReadableKeys()), rows
}

// TemplateFields selects which field set an upload template lists.
type TemplateFields string

const (
	TemplateAll      TemplateFields = "all"
	TemplateRequired TemplateFields = "required"
	TemplateWritable TemplateFields = "writable"
)

// Template returns the header row for an upload template CSV.
func (e *Engine) Template(which TemplateFields) []string {
	switch which {
	case TemplateRequired:
		return e.fields.RequiredKeys()
	case TemplateWritable:
		return e.fields.WritableKeys()
	default:
		return e.fields.ReadableKeys()
	}
}

// WriteTemplate writes a header-only CSV for the selected field set.
func (e *Engine) WriteTemplate(path string, which TemplateFields) error {
	return spreadsheet.WriteCSV(path, e.Template(which), nil)
}
