package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clubops/querycsv/internal/jobs"
	"github.com/clubops/querycsv/internal/mapping"
	"github.com/clubops/querycsv/internal/registry"
	"github.com/clubops/querycsv/internal/spreadsheet"
	"github.com/clubops/querycsv/internal/store"
	"github.com/clubops/querycsv/internal/store/model"
)

// UploadService owns the upload job lifecycle: accepting the spreadsheet,
// the header review round-trip and handing the job to the queue.
type UploadService struct {
	store    store.Store
	registry *registry.Registry
	queue    jobs.Queue
	dataDir  string
	validate *validator.Validate
}

func NewUploadService(s store.Store, r *registry.Registry, q jobs.Queue, dataDir string) *UploadService {
	return &UploadService{
		store:    s,
		registry: r,
		queue:    q,
		dataDir:  dataDir,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// UploadForm is the validated input of CreateUpload.
type UploadForm struct {
	Collection    string
	Filename      string
	Content       io.Reader
	NotifyAddress string
	Mappings      []mapping.FieldMapping

	// Process enqueues the job immediately, skipping the header review
	// round-trip.
	Process bool
}

func (s *UploadService) CreateUpload(ctx context.Context, form UploadForm) (*model.UploadJob, error) {
	if _, err := s.registry.Get(form.Collection); err != nil {
		return nil, NewErrCollectionNotFound(form.Collection)
	}
	if !spreadsheet.Supported(form.Filename) {
		return nil, NewErrUnsupportedFormat(form.Filename)
	}
	if form.NotifyAddress != "" {
		if err := s.validate.Var(form.NotifyAddress, "email"); err != nil {
			return nil, NewErrInvalidNotifyAddress(form.NotifyAddress)
		}
	}
	if err := checkMappings(form.Mappings); err != nil {
		return nil, err
	}

	id := uuid.New()
	path, err := s.saveFile(id, form.Filename, form.Content)
	if err != nil {
		return nil, err
	}

	job := &model.UploadJob{
		ID:            id,
		SchemaRef:     form.Collection,
		File:          path,
		Status:        model.UploadStatusPending,
		FieldMappings: model.MakeJSONField(form.Mappings),
		NotifyAddress: form.NotifyAddress,
	}
	job, err = s.store.Job().Create(ctx, job)
	if err != nil {
		return nil, err
	}

	zap.S().Named("service").Infof("created upload job %s for collection %s", job.ID, job.SchemaRef)

	if form.Process {
		return s.Process(ctx, job.ID)
	}
	return job, nil
}

func (s *UploadService) GetJob(ctx context.Context, id uuid.UUID) (*model.UploadJob, error) {
	job, err := s.store.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrUploadJobNotFound(id)
		}
		return nil, err
	}
	return job, nil
}

func (s *UploadService) ListJobs(ctx context.Context) ([]model.UploadJob, error) {
	return s.store.Job().List(ctx)
}

// HeaderStatus is the review state of one spreadsheet column.
type HeaderStatus struct {
	Column   string `json:"column"`
	MappedTo string `json:"mappedTo,omitempty"`
	Known    bool   `json:"known"`
}

// HeaderReview is what the review UI needs to offer mapping choices: the
// per-column resolution under the job's current mappings plus the field
// keys still available.
type HeaderReview struct {
	Headers []HeaderStatus `json:"headers"`
	Fields  []string       `json:"fields"`
	Actions []string       `json:"actions"`
}

// ReviewHeaders re-resolves the stored spreadsheet's header row under the
// job's current mappings.
func (s *UploadService) ReviewHeaders(ctx context.Context, id uuid.UUID) (*HeaderReview, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	entry, err := s.registry.Get(job.SchemaRef)
	if err != nil {
		return nil, NewErrCollectionNotFound(job.SchemaRef)
	}

	table, err := spreadsheet.Read(job.File)
	if err != nil {
		return nil, fmt.Errorf("reading upload file: %w", err)
	}

	fields := entry.Engine.FlatFields()
	resolver := mapping.NewResolver(fields)
	mappings := resolver.AutoMap(table.Headers, job.Mappings())
	resolved := resolver.Resolve(table.Headers, mappings)

	review := &HeaderReview{
		Fields:  fields.WritableKeys(),
		Actions: mapping.Actions,
	}
	for i, h := range table.Headers {
		status := HeaderStatus{Column: h}
		if _, ok := fields.Resolve(resolved[i]); ok {
			status.MappedTo = resolved[i]
			status.Known = true
		}
		review.Headers = append(review.Headers, status)
	}
	return review, nil
}

// AddMappings appends reviewer-chosen column mappings to a pending job.
// Column names are checked against the stored file's header row so stale
// mappings surface at attach time instead of silently doing nothing during
// processing.
func (s *UploadService) AddMappings(ctx context.Context, id uuid.UUID, mappings []mapping.FieldMapping) (*model.UploadJob, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != model.UploadStatusPending {
		return nil, NewErrJobNotPending(job.ID, string(job.Status))
	}
	if err := checkMappings(mappings); err != nil {
		return nil, err
	}

	table, err := spreadsheet.Read(job.File)
	if err != nil {
		return nil, fmt.Errorf("reading upload file: %w", err)
	}
	headers := make(map[string]bool, len(table.Headers))
	for _, h := range table.Headers {
		headers[h] = true
	}
	for _, m := range mappings {
		if !headers[m.ColumnName] {
			return nil, NewErrInvalidMappings(fmt.Sprintf("column %q not present in the uploaded file", m.ColumnName))
		}
	}

	merged := append(job.Mappings(), mappings...)
	job.FieldMappings = model.MakeJSONField(merged)
	return s.store.Job().Update(ctx, job)
}

// Process hands a pending job to the queue.
func (s *UploadService) Process(ctx context.Context, id uuid.UUID) (*model.UploadJob, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != model.UploadStatusPending {
		return nil, NewErrJobNotPending(job.ID, string(job.Status))
	}

	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("enqueueing upload job %s: %w", job.ID, err)
	}
	zap.S().Named("service").Infof("enqueued upload job %s", job.ID)
	return job, nil
}

// Report opens the job's result report for streaming to the caller.
func (s *UploadService) Report(ctx context.Context, id uuid.UUID) (io.ReadCloser, string, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if job.Report == "" {
		return nil, "", NewErrReportNotReady(job.ID)
	}
	f, err := os.Open(job.Report)
	if err != nil {
		return nil, "", fmt.Errorf("opening report: %w", err)
	}
	return f, filepath.Base(job.Report), nil
}

func (s *UploadService) saveFile(id uuid.UUID, filename string, content io.Reader) (string, error) {
	dir := filepath.Join(s.dataDir, "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(dir, fmt.Sprintf("%s%s", id, ext))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return "", fmt.Errorf("storing upload file: %w", err)
	}
	return path, nil
}

func checkMappings(mappings []mapping.FieldMapping) error {
	for _, m := range mappings {
		if strings.TrimSpace(m.ColumnName) == "" {
			return NewErrInvalidMappings("columnName must not be empty")
		}
		if strings.TrimSpace(m.FieldName) == "" {
			return NewErrInvalidMappings(fmt.Sprintf("mapping for column %q has no field", m.ColumnName))
		}
	}
	return nil
}
