package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/clubops/querycsv/internal/config"
	"github.com/clubops/querycsv/internal/store"
	"github.com/clubops/querycsv/internal/store/model"
	"github.com/clubops/querycsv/pkg/metrics"
)

// Reaper requeues jobs stranded in processing after a worker crash. A job
// holds its lease by having been updated recently; once the lease is older
// than the configured window the reaper either requeues it or, past the
// attempt cap, fails it for good.
type Reaper struct {
	store       store.Store
	queue       Queue
	lease       time.Duration
	interval    time.Duration
	maxAttempts int
	log         *zap.SugaredLogger
}

func NewReaper(s store.Store, q Queue, cfg *config.Config) (*Reaper, error) {
	lease, err := time.ParseDuration(cfg.Jobs.StaleLease)
	if err != nil {
		return nil, fmt.Errorf("parsing stale lease: %w", err)
	}
	interval, err := time.ParseDuration(cfg.Jobs.ReapInterval)
	if err != nil {
		return nil, fmt.Errorf("parsing reap interval: %w", err)
	}
	return &Reaper{
		store:       s,
		queue:       q,
		lease:       lease,
		interval:    interval,
		maxAttempts: cfg.Jobs.MaxAttempts,
		log:         zap.S().Named("reaper"),
	}, nil
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := jitterbug.New(r.interval, &jitterbug.Norm{Stdev: 30 * time.Millisecond, Mean: 0})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reap(ctx)
		}
	}
}

// Reap runs one sweep over stale processing jobs.
func (r *Reaper) Reap(ctx context.Context) {
	stale, err := r.store.Job().ListStale(ctx, time.Now().Add(-r.lease))
	if err != nil {
		r.log.Errorf("listing stale upload jobs: %v", err)
		return
	}

	for i := range stale {
		job := &stale[i]
		if job.Attempts >= r.maxAttempts {
			msg := fmt.Sprintf("abandoned after %d attempts", job.Attempts)
			if err := r.store.Job().UpdateStatus(ctx, job.ID, model.UploadStatusFailed, &msg); err != nil {
				r.log.Errorf("failing stale upload job %s: %v", job.ID, err)
				continue
			}
			metrics.IncreaseUploadJobsTotalMetric(job.SchemaRef, string(model.UploadStatusFailed))
			r.log.Warnf("upload job %s abandoned after %d attempts", job.ID, job.Attempts)
			continue
		}

		if err := r.store.Job().UpdateStatus(ctx, job.ID, model.UploadStatusPending, nil); err != nil {
			r.log.Errorf("requeueing stale upload job %s: %v", job.ID, err)
			continue
		}
		if err := r.queue.Enqueue(ctx, job.ID); err != nil {
			r.log.Errorf("enqueueing stale upload job %s: %v", job.ID, err)
			continue
		}
		r.log.Infof("requeued stale upload job %s (attempt %d)", job.ID, job.Attempts)
	}
}
