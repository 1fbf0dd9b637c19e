package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

const (
	DefaultQueue = "uploads"
	JobKind      = "csv_upload"
	JobTimeout   = 10 * time.Minute

	// River-level retries are disabled; the reaper owns requeueing so
	// the attempt cap lives in one place.
	MaxJobRetries = 1
)

type UploadArgs struct {
	JobID uuid.UUID `json:"job_id"`
}

func (UploadArgs) Kind() string {
	return JobKind
}

func (UploadArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       DefaultQueue,
		MaxAttempts: MaxJobRetries,
	}
}

type UploadWorker struct {
	river.WorkerDefaults[UploadArgs]
	processor *Processor
}

func NewUploadWorker(p *Processor) *UploadWorker {
	return &UploadWorker{processor: p}
}

func (w *UploadWorker) Timeout(job *river.Job[UploadArgs]) time.Duration {
	return JobTimeout
}

func (w *UploadWorker) Work(ctx context.Context, job *river.Job[UploadArgs]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return w.processor.Process(ctx, job.Args.JobID)
}

type Client struct {
	*river.Client[pgx.Tx]
}

// Make sure we conform to Queue interface
var _ Queue = (*Client)(nil)

func NewClient(ctx context.Context, pool *pgxpool.Pool, p *Processor, maxWorkers int) (*Client, error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewUploadWorker(p))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			DefaultQueue: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, err
	}

	return &Client{Client: riverClient}, nil
}

func (c *Client) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	_, err := c.Insert(ctx, UploadArgs{JobID: jobID}, nil)
	return err
}

func (c *Client) Close(ctx context.Context) error {
	return c.Stop(ctx)
}
