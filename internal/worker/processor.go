package worker

import (
	"context"

	"github.com/cuongbtq/hotel-scout/internal/domain"
)

// processJob runs one job under the job timeout. The job context survives
// shutdown of the consumer and ends only on timeout or Abort.
func (w *Worker) processJob(msg *jobMessage) (domain.Status, error) {
	ctx := w.abortCtx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	return w.processor.Process(ctx, msg.jobID)
}
