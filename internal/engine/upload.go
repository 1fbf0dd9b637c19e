package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/clubops/querycsv/internal/flatten"
	"github.com/clubops/querycsv/internal/mapping"
	"github.com/clubops/querycsv/internal/schema"
	"github.com/clubops/querycsv/internal/spreadsheet"
)

// column is one spreadsheet column bound to a flat field for the duration
// of an upload pass.
type column struct {
	index int
	key   string
	field *schema.FlatField
}

// Upload runs the import pipeline over a parsed spreadsheet: resolve
// headers, normalize cells, unflatten each row into a structured candidate,
// validate it and create-or-update against the record store. Rows are
// processed in source order and each row's outcome is independent.
func (e *Engine) Upload(ctx context.Context, table *spreadsheet.Table, mappings []mapping.FieldMapping) (*Result, error) {
	logger := zap.S().Named("engine")

	mappings = e.resolver.AutoMap(table.Headers, mappings)
	headers := e.resolver.Resolve(table.Headers, mappings)

	// Unmapped and unknown columns are dropped here, not reported:
	// spreadsheets frequently carry extra descriptive columns.
	columns := make([]column, 0, len(headers))
	for i, header := range headers {
		field, ok := e.fields.Resolve(header)
		if !ok {
			continue
		}
		columns = append(columns, column{index: i, key: header, field: field})
	}

	result := &Result{}
	for _, row := range table.Rows {
		flat := e.normalizeRow(columns, row)
		if len(flat) == 0 {
			continue
		}
		e.importRow(ctx, flat, result)
	}

	logger.Infof("upload for schema %s finished: %d succeeded, %d failed",
		e.schema.Name, len(result.Successes), len(result.Failures))
	return result, nil
}

// normalizeRow converts raw cells to the flat row shape: list-item cells
// split into trimmed non-empty segments, blank cells dropped so optional
// fields are not coerced to empty strings downstream.
func (e *Engine) normalizeRow(columns []column, row []string) flatten.Flat {
	flat := flatten.Flat{}
	for _, col := range columns {
		if col.index >= len(row) {
			continue
		}
		value := row[col.index]

		if col.field.IsListItem() || col.field.Many {
			segments := flatten.SplitList(value)
			if len(segments) == 0 {
				continue
			}
			flat[col.key] = segments
			continue
		}

		if value == "" {
			continue
		}
		flat[col.key] = value
	}
	return flat
}

func (e *Engine) importRow(ctx context.Context, flat flatten.Flat, result *Result) {
	candidate, err := e.conv.Unflatten(flat)
	if err != nil {
		result.Failures = append(result.Failures, FailedRow{
			Data:   rawRow(flat),
			Errors: RowError{"row": err.Error()},
		})
		return
	}

	if errs := e.validate(candidate); len(errs) > 0 {
		result.Failures = append(result.Failures, FailedRow{
			Data:   e.conv.Flatten(candidate),
			Errors: errs,
		})
		return
	}

	existing, err := e.findExisting(ctx, candidate)
	if err != nil {
		result.Failures = append(result.Failures, FailedRow{
			Data:   e.conv.Flatten(candidate),
			Errors: RowError{"detail": err.Error()},
		})
		return
	}

	data := e.writableData(candidate)

	var rec Record
	if existing != nil {
		rec, err = e.store.Update(ctx, existing, data)
	} else {
		rec, err = e.store.Create(ctx, data)
	}
	if err != nil {
		result.Failures = append(result.Failures, FailedRow{
			Data:   e.conv.Flatten(candidate),
			Errors: RowError{"detail": err.Error()},
		})
		return
	}

	result.Successes = append(result.Successes, e.store.ToStructured(rec))
}

// findExisting searches the store for a record matching any unique-field
// value present in the candidate. When the candidate carries no usable
// unique value the import always creates.
func (e *Engine) findExisting(ctx context.Context, candidate flatten.Structured) (Record, error) {
	var filters []FieldFilter
	for _, name := range e.fields.UniqueFields() {
		value, ok := candidate[name]
		if !ok || value == nil {
			continue
		}
		s := strings.TrimSpace(valueString(value))
		if s == "" {
			continue
		}
		filters = append(filters, FieldFilter{Field: name, Value: s})
	}
	if len(filters) == 0 {
		return nil, nil
	}
	return e.store.FindMatching(ctx, filters)
}

// writableData strips read-only top-level fields from the candidate before
// it is handed to the store. Read-only unique fields still participated in
// matching above.
func (e *Engine) writableData(candidate flatten.Structured) flatten.Structured {
	data := flatten.Structured{}
	for name, value := range candidate {
		f, ok := e.schema.Field(name)
		if !ok || f.ReadOnly {
			continue
		}
		data[name] = value
	}
	return data
}

func rawRow(flat flatten.Flat) map[string]string {
	out := make(map[string]string, len(flat))
	for k, v := range flat {
		out[k] = valueString(v)
	}
	return out
}
