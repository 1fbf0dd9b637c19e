// Package engine implements the spreadsheet interchange pipelines: bulk
// upload of rows into a record store with create-or-update semantics and
// per-row failure isolation, and bulk download of records to CSV.
//
// The engine knows nothing about what the record store is; collaborators
// supply a schema description and an implementation of RecordStore.
package engine

import (
	"context"
	"fmt"

	"github.com/clubops/querycsv/internal/flatten"
	"github.com/clubops/querycsv/internal/mapping"
	"github.com/clubops/querycsv/internal/schema"
)

// Record is an opaque handle to one stored record.
type Record any

// FieldFilter is one branch of the OR-disjunction used to locate an
// existing record by a unique-field value.
type FieldFilter struct {
	Field string
	Value string
}

// RecordStore is the persistence contract the engine requires from
// collaborators.
type RecordStore interface {
	// FindMatching returns the first record matching any of the filters,
	// or nil when none matches.
	FindMatching(ctx context.Context, filters []FieldFilter) (Record, error)
	Create(ctx context.Context, data flatten.Structured) (Record, error)
	Update(ctx context.Context, existing Record, data flatten.Structured) (Record, error)
	ToStructured(rec Record) flatten.Structured
}

// RecordLister is the optional listing side of a record store, consumed by
// the download pipeline's callers.
type RecordLister interface {
	List(ctx context.Context) ([]Record, error)
}

// RowError maps field names to validation or persistence error messages
// for one failed row.
type RowError map[string]string

// FailedRow is one row that could not be imported: the flattened attempted
// data plus the per-field errors.
type FailedRow struct {
	Data   map[string]string `json:"data"`
	Errors RowError          `json:"errors"`
}

// Result collects the per-row outcomes of one upload. A row failure never
// aborts the batch; partial success is the expected common case.
type Result struct {
	Successes []flatten.Structured
	Failures  []FailedRow
}

// Engine runs the interchange pipelines for one schema against one record
// store.
type Engine struct {
	schema   *schema.Schema
	fields   *schema.FlatFields
	conv     *flatten.Converter
	resolver *mapping.Resolver
	store    RecordStore
}

func New(s *schema.Schema, store RecordStore) (*Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	fields := schema.Classify(s)
	return &Engine{
		schema:   s,
		fields:   fields,
		conv:     flatten.NewConverter(fields),
		resolver: mapping.NewResolver(fields),
		store:    store,
	}, nil
}

// Schema returns the schema the engine was built for.
func (e *Engine) Schema() *schema.Schema {
	return e.schema
}

// FlatFields exposes the classified fields, used by the header review flow.
func (e *Engine) FlatFields() *schema.FlatFields {
	return e.fields
}

// Converter exposes the flattening converter.
func (e *Engine) Converter() *flatten.Converter {
	return e.conv
}
