// Package jobs runs upload jobs: a queue-agnostic processor plus the river
// queue, an in-process fallback queue and the stale-job reaper.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clubops/querycsv/internal/engine"
	"github.com/clubops/querycsv/internal/notify"
	"github.com/clubops/querycsv/internal/registry"
	"github.com/clubops/querycsv/internal/spreadsheet"
	"github.com/clubops/querycsv/internal/store"
	"github.com/clubops/querycsv/internal/store/model"
	"github.com/clubops/querycsv/pkg/metrics"
)

// Processor executes one upload job end to end. It is shared by every queue
// implementation; the queue only decides when and where Process runs.
type Processor struct {
	store    store.Store
	registry *registry.Registry
	notifier notify.Notifier
	dataDir  string
	log      *zap.SugaredLogger
}

func NewProcessor(s store.Store, r *registry.Registry, n notify.Notifier, dataDir string) *Processor {
	return &Processor{
		store:    s,
		registry: r,
		notifier: n,
		dataDir:  dataDir,
		log:      zap.S().Named("jobs"),
	}
}

// Process picks the job up, runs the upload pipeline and records the
// terminal status. Row-level failures are part of a successful run; only
// errors that prevent processing the file at all fail the job.
func (p *Processor) Process(ctx context.Context, jobID uuid.UUID) error {
	job, err := p.store.Job().Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			p.log.Warnf("upload job %s no longer exists, dropping", jobID)
			return nil
		}
		return err
	}

	switch job.Status {
	case model.UploadStatusPending, model.UploadStatusProcessing:
	default:
		p.log.Infof("upload job %s already %s, skipping", job.ID, job.Status)
		return nil
	}

	job.Attempts++
	job.Status = model.UploadStatusProcessing
	if job, err = p.store.Job().Update(ctx, job); err != nil {
		return fmt.Errorf("claiming upload job %s: %w", jobID, err)
	}

	entry, err := p.registry.Get(job.SchemaRef)
	if err != nil {
		return p.fail(ctx, job, err)
	}

	table, err := spreadsheet.Read(job.File)
	if err != nil {
		return p.fail(ctx, job, fmt.Errorf("reading upload file: %w", err))
	}

	result, err := entry.Engine.Upload(ctx, table, job.Mappings())
	if err != nil {
		return p.fail(ctx, job, err)
	}

	job.SuccessCount = len(result.Successes)
	job.FailureCount = len(result.Failures)
	job.Status = model.UploadStatusSuccess

	// A report that cannot be written does not undo an otherwise
	// completed import.
	if path, err := p.writeReport(entry, job, result); err != nil {
		p.log.Errorf("writing report for upload job %s: %v", job.ID, err)
	} else {
		job.Report = path
	}

	if _, err := p.store.Job().Update(ctx, job); err != nil {
		return fmt.Errorf("completing upload job %s: %w", job.ID, err)
	}

	metrics.AddUploadRows(job.SchemaRef, metrics.RowResultSuccess, job.SuccessCount)
	metrics.AddUploadRows(job.SchemaRef, metrics.RowResultFailed, job.FailureCount)
	metrics.IncreaseUploadJobsTotalMetric(job.SchemaRef, string(job.Status))

	if err := p.notifier.UploadComplete(ctx, job); err != nil {
		p.log.Warnf("notifying for upload job %s: %v", job.ID, err)
	}
	return nil
}

// fail records a terminal failure. The error is stored on the job rather
// than returned so the queue does not retry what the reaper already caps.
func (p *Processor) fail(ctx context.Context, job *model.UploadJob, cause error) error {
	p.log.Errorf("upload job %s failed: %v", job.ID, cause)

	msg := cause.Error()
	job.Status = model.UploadStatusFailed
	job.Error = &msg
	if _, err := p.store.Job().Update(ctx, job); err != nil {
		return fmt.Errorf("recording failure of upload job %s: %w", job.ID, err)
	}

	metrics.IncreaseUploadJobsTotalMetric(job.SchemaRef, string(job.Status))

	if err := p.notifier.UploadComplete(ctx, job); err != nil {
		p.log.Warnf("notifying for upload job %s: %v", job.ID, err)
	}
	return nil
}

func (p *Processor) writeReport(entry *registry.Entry, job *model.UploadJob, result *engine.Result) (string, error) {
	conv := entry.Engine.Converter()

	successes := make([]map[string]string, 0, len(result.Successes))
	for _, rec := range result.Successes {
		successes = append(successes, conv.Flatten(rec))
	}

	failures := make([]map[string]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		row := make(map[string]string, len(f.Data)+1)
		for k, v := range f.Data {
			row[k] = v
		}
		if encoded, err := json.Marshal(f.Errors); err == nil {
			row["errors"] = string(encoded)
		}
		failures = append(failures, row)
	}

	name := fmt.Sprintf("%s_%s_%s.xlsx", job.SchemaRef, job.ID, time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(p.dataDir, "reports", name)
	if err := spreadsheet.WriteReport(path, successes, failures); err != nil {
		return "", err
	}
	return path, nil
}
