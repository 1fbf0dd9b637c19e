package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clubops/querycsv/internal/store/model"
)

// FieldFilter matches documents whose indexed field carries the given value.
type FieldFilter struct {
	Name  string
	Value string
}

type Document interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Document, error)
	List(ctx context.Context, collection string) ([]model.Document, error)
	FindMatching(ctx context.Context, collection string, filters []FieldFilter) (*model.Document, error)
	Create(ctx context.Context, doc *model.Document, fields []model.DocumentField) (*model.Document, error)
	Update(ctx context.Context, doc *model.Document, fields []model.DocumentField) (*model.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type DocumentStore struct {
	db *gorm.DB
}

// Make sure we conform to Document interface
var _ Document = (*DocumentStore)(nil)

func NewDocumentStore(db *gorm.DB) Document {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	result := s.db.WithContext(ctx).First(&doc, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying document: %w", result.Error)
	}
	return &doc, nil
}

func (s *DocumentStore) List(ctx context.Context, collection string) ([]model.Document, error) {
	var docs []model.Document
	result := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("created_at").
		Find(&docs)
	if result.Error != nil {
		return nil, result.Error
	}
	return docs, nil
}

// FindMatching returns the oldest document of the collection matching any of
// the filters. Filters are combined with OR so that a row matching on any
// indexed field resolves to the same document.
func (s *DocumentStore) FindMatching(ctx context.Context, collection string, filters []FieldFilter) (*model.Document, error) {
	if len(filters) == 0 {
		return nil, ErrRecordNotFound
	}

	cond := s.db.Where("name = ? AND value = ?", filters[0].Name, filters[0].Value)
	for _, f := range filters[1:] {
		cond = cond.Or("name = ? AND value = ?", f.Name, f.Value)
	}
	sub := s.db.Model(&model.DocumentField{}).
		Select("document_id").
		Where("collection = ?", collection).
		Where(cond)

	var doc model.Document
	result := s.db.WithContext(ctx).
		Where("id IN (?)", sub).
		Order("created_at").
		First(&doc)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying matching document: %w", result.Error)
	}
	return &doc, nil
}

func (s *DocumentStore) Create(ctx context.Context, doc *model.Document, fields []model.DocumentField) (*model.Document, error) {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result := tx.Create(doc); result.Error != nil {
			return result.Error
		}
		return createFields(tx, doc, fields)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating document: %w", err)
	}
	return doc, nil
}

// Update replaces the payload and rebuilds the indexed field rows.
func (s *DocumentStore) Update(ctx context.Context, doc *model.Document, fields []model.DocumentField) (*model.Document, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(doc).Updates(map[string]any{"data": doc.Data})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		if result := tx.Where("document_id = ?", doc.ID).Delete(&model.DocumentField{}); result.Error != nil {
			return result.Error
		}
		return createFields(tx, doc, fields)
	})
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("updating document: %w", err)
	}
	return doc, nil
}

func (s *DocumentStore) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result := tx.Where("document_id = ?", id).Delete(&model.DocumentField{}); result.Error != nil {
			return result.Error
		}
		result := tx.Delete(&model.Document{}, "id = ?", id)
		return result.Error
	})
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

func createFields(tx *gorm.DB, doc *model.Document, fields []model.DocumentField) error {
	if len(fields) == 0 {
		return nil
	}
	for i := range fields {
		fields[i].ID = 0
		fields[i].DocumentID = doc.ID
		fields[i].Collection = doc.Collection
	}
	return tx.Create(&fields).Error
}
