package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clubops/querycsv/internal/store/model"
)

type Job interface {
	Create(ctx context.Context, job *model.UploadJob) (*model.UploadJob, error)
	Get(ctx context.Context, id uuid.UUID) (*model.UploadJob, error)
	Update(ctx context.Context, job *model.UploadJob) (*model.UploadJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.UploadStatus, jobErr *string) error
	List(ctx context.Context) ([]model.UploadJob, error)
	ListStale(ctx context.Context, olderThan time.Time) ([]model.UploadJob, error)
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job *model.UploadJob) (*model.UploadJob, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = model.UploadStatusPending
	}
	if result := s.db.WithContext(ctx).Create(job); result.Error != nil {
		return nil, fmt.Errorf("creating upload job: %w", result.Error)
	}
	return job, nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*model.UploadJob, error) {
	var job model.UploadJob
	result := s.db.WithContext(ctx).First(&job, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying upload job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) Update(ctx context.Context, job *model.UploadJob) (*model.UploadJob, error) {
	result := s.db.WithContext(ctx).Model(job).Clauses(clause.Returning{}).Updates(job)
	if result.Error != nil {
		return nil, fmt.Errorf("updating upload job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	return job, nil
}

func (s *JobStore) UpdateStatus(ctx context.Context, id uuid.UUID, status model.UploadStatus, jobErr *string) error {
	updates := map[string]any{"status": status}
	if jobErr != nil {
		updates["error"] = *jobErr
	}
	result := s.db.WithContext(ctx).Model(&model.UploadJob{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("updating upload job status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *JobStore) List(ctx context.Context) ([]model.UploadJob, error) {
	var jobs []model.UploadJob
	result := s.db.WithContext(ctx).Order("created_at").Find(&jobs)
	if result.Error != nil {
		return nil, result.Error
	}
	return jobs, nil
}

// ListStale returns jobs stranded in processing whose last update is older
// than the given time, candidates for requeue by the reaper.
func (s *JobStore) ListStale(ctx context.Context, olderThan time.Time) ([]model.UploadJob, error) {
	var jobs []model.UploadJob
	result := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.UploadStatusProcessing, olderThan).
		Order("updated_at").
		Find(&jobs)
	if result.Error != nil {
		return nil, result.Error
	}
	return jobs, nil
}
