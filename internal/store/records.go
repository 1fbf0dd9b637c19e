package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clubops/querycsv/internal/engine"
	"github.com/clubops/querycsv/internal/flatten"
	"github.com/clubops/querycsv/internal/store/model"
)

// CollectionStore adapts the document store to the engine's persistence
// contract for one collection. Unique-field values are mirrored into
// document_fields rows on every write so FindMatching stays an indexed
// query.
type CollectionStore struct {
	docs         Document
	collection   string
	uniqueFields []string
}

// Make sure we conform to the engine contracts
var (
	_ engine.RecordStore  = (*CollectionStore)(nil)
	_ engine.RecordLister = (*CollectionStore)(nil)
)

func NewCollectionStore(docs Document, collection string, uniqueFields []string) *CollectionStore {
	return &CollectionStore{
		docs:         docs,
		collection:   collection,
		uniqueFields: uniqueFields,
	}
}

func (s *CollectionStore) FindMatching(ctx context.Context, filters []engine.FieldFilter) (engine.Record, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	fieldFilters := make([]FieldFilter, 0, len(filters))
	for _, f := range filters {
		fieldFilters = append(fieldFilters, FieldFilter{Name: f.Field, Value: f.Value})
	}
	doc, err := s.docs.FindMatching(ctx, s.collection, fieldFilters)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

func (s *CollectionStore) Create(ctx context.Context, data flatten.Structured) (engine.Record, error) {
	doc := &model.Document{
		ID:         uuid.New(),
		Collection: s.collection,
		Data:       model.MakeJSONField(map[string]any(data)),
	}
	doc, err := s.docs.Create(ctx, doc, s.indexFields(data))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *CollectionStore) Update(ctx context.Context, existing engine.Record, data flatten.Structured) (engine.Record, error) {
	doc, ok := existing.(*model.Document)
	if !ok {
		return nil, fmt.Errorf("unexpected record type %T", existing)
	}

	// Full replace of writable fields, preserving payload keys the upload
	// did not touch.
	merged := map[string]any{}
	for k, v := range doc.Structured() {
		merged[k] = v
	}
	for k, v := range data {
		merged[k] = v
	}
	doc.Data = model.MakeJSONField(merged)

	doc, err := s.docs.Update(ctx, doc, s.indexFields(merged))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *CollectionStore) ToStructured(rec engine.Record) flatten.Structured {
	doc, ok := rec.(*model.Document)
	if !ok {
		return flatten.Structured{}
	}
	out := flatten.Structured{}
	for k, v := range doc.Structured() {
		out[k] = v
	}
	if _, ok := out["id"]; !ok {
		out["id"] = doc.ID.String()
	}
	return out
}

func (s *CollectionStore) List(ctx context.Context) ([]engine.Record, error) {
	docs, err := s.docs.List(ctx, s.collection)
	if err != nil {
		return nil, err
	}
	records := make([]engine.Record, 0, len(docs))
	for i := range docs {
		records = append(records, &docs[i])
	}
	return records, nil
}

func (s *CollectionStore) indexFields(data map[string]any) []model.DocumentField {
	var fields []model.DocumentField
	for _, name := range s.uniqueFields {
		v, ok := data[name]
		if !ok || v == nil {
			continue
		}
		val := strings.TrimSpace(fmt.Sprintf("%v", v))
		if val == "" {
			continue
		}
		fields = append(fields, model.DocumentField{
			Collection: s.collection,
			Name:       name,
			Value:      val,
		})
	}
	return fields
}
