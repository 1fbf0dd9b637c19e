package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/clubops/querycsv/internal/mapping"
)

// UploadStatus is the lifecycle state of an upload job.
type UploadStatus string

const (
	UploadStatusPending    UploadStatus = "pending"
	UploadStatusProcessing UploadStatus = "processing"
	UploadStatusFailed     UploadStatus = "failed"
	UploadStatusSuccess    UploadStatus = "success"
)

// UploadJob is the durable representation of one bulk upload. Jobs are
// never deleted automatically; they are retained as an audit record.
type UploadJob struct {
	ID        uuid.UUID `gorm:"primaryKey;"`
	SchemaRef string    `gorm:"not null;index:upload_jobs_schema_ref_idx"`

	// File is the path of the uploaded spreadsheet under the data dir.
	File   string       `gorm:"not null"`
	Status UploadStatus `gorm:"not null;default:pending;index:upload_jobs_status_idx"`

	FieldMappings *JSONField[[]mapping.FieldMapping] `gorm:"type:jsonb"`
	NotifyAddress string
	Report        string
	Error         *string

	SuccessCount int `gorm:"not null;default:0"`
	FailureCount int `gorm:"not null;default:0"`

	// Attempts counts how many times a worker picked the job up; the
	// reaper uses it to cap requeues of jobs stranded in processing.
	Attempts int `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (UploadJob) TableName() string {
	return "upload_jobs"
}

func (j UploadJob) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}

// Mappings returns the custom field mappings, never nil.
func (j *UploadJob) Mappings() []mapping.FieldMapping {
	if j.FieldMappings == nil {
		return nil
	}
	return j.FieldMappings.Data
}
