package jobs

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Queue hands upload jobs to the processor. The river queue backs postgres
// deployments; the in-process queue backs sqlite and tests.
type Queue interface {
	Enqueue(ctx context.Context, jobID uuid.UUID) error
	Close(ctx context.Context) error
}

// InProcessQueue runs each job on its own goroutine inside the API
// process. No durability beyond the upload_jobs table itself; the reaper
// requeues anything lost to a restart.
type InProcessQueue struct {
	processor *Processor
	wg        sync.WaitGroup
	log       *zap.SugaredLogger
}

// Make sure we conform to Queue interface
var _ Queue = (*InProcessQueue)(nil)

func NewInProcessQueue(p *Processor) *InProcessQueue {
	return &InProcessQueue{
		processor: p,
		log:       zap.S().Named("jobs"),
	}
}

func (q *InProcessQueue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		runCtx, cancel := context.WithTimeout(context.Background(), JobTimeout)
		defer cancel()

		if err := q.processor.Process(runCtx, jobID); err != nil {
			q.log.Errorf("processing upload job %s: %v", jobID, err)
		}
	}()
	return nil
}

// Close waits for in-flight jobs or the context, whichever is first.
func (q *InProcessQueue) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
