package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Document is one record of a registered collection, stored as a JSON
// payload. Unique-field values are mirrored into DocumentField rows for
// lookup.
type Document struct {
	ID         uuid.UUID `gorm:"primaryKey;"`
	Collection string    `gorm:"not null;index:documents_collection_idx"`
	Data       *JSONField[map[string]any] `gorm:"type:jsonb;not null"`

	Fields []DocumentField `gorm:"foreignKey:DocumentID;references:ID;constraint:OnDelete:CASCADE;"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Document) TableName() string {
	return "documents"
}

func (d Document) String() string {
	val, _ := json.Marshal(d)
	return string(val)
}

// Structured returns the stored payload, never nil.
func (d *Document) Structured() map[string]any {
	if d.Data == nil {
		return map[string]any{}
	}
	return d.Data.Data
}

// DocumentField is one indexed unique-field value of a document.
type DocumentField struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	DocumentID uuid.UUID `gorm:"not null;index:document_fields_document_idx"`
	Collection string    `gorm:"not null;index:document_fields_lookup_idx"`
	Name       string    `gorm:"not null;index:document_fields_lookup_idx"`
	Value      string    `gorm:"not null;index:document_fields_lookup_idx"`
}

func (DocumentField) TableName() string {
	return "document_fields"
}
