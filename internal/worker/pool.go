package worker

import (
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/hotel-scout/internal/domain"
)

// Delivery outcomes, also used as metric labels
const (
	outcomeAcked    = "acked"
	outcomeRequeued = "requeued"
	outcomeRejected = "rejected"
	outcomeInvalid  = "invalid"
	outcomeShutdown = "shutdown"
)

// spawnWorkerPool starts the pool goroutines on g
func (w *Worker) spawnWorkerPool(g *errgroup.Group) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
	)

	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			w.workerLoop(i)
			return nil
		})
	}
}

// workerLoop processes jobs until the dispatcher closes jobsChan
func (w *Worker) workerLoop(workerNum int) {
	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	logger := w.logger.With(slog.String("worker_name", workerName))
	logger.Debug("Worker goroutine started")

	for msg := range w.jobsChan {
		jobLogger := logger.With(
			slog.String("job_id", msg.jobID.String()),
			slog.Uint64("delivery_tag", msg.delivery.DeliveryTag),
		)
		jobLogger.Info("Worker received job")

		status, err := w.processJob(msg)
		if err != nil {
			requeue := shouldRequeueJob(err, msg.delivery.Redelivered)
			jobLogger.Error("Job processing failed",
				slog.Any("error", err),
				slog.Bool("requeue", requeue),
			)
			if requeue {
				w.settle(msg.delivery, outcomeRequeued, true)
			} else {
				w.settle(msg.delivery, outcomeRejected, false)
			}
			continue
		}

		jobLogger.Info("Job settled", slog.String("status", status.String()))
		w.settle(msg.delivery, outcomeAcked, false)
	}

	logger.Debug("Worker goroutine stopping - jobsChan closed")
}

// settle acks or nacks the delivery according to outcome
func (w *Worker) settle(d amqp.Delivery, outcome string, requeue bool) {
	var err error
	if outcome == outcomeAcked {
		err = d.Ack(false)
	} else {
		err = d.Nack(false, requeue)
	}
	if err != nil {
		w.logger.Error("Failed to settle delivery",
			slog.Uint64("delivery_tag", d.DeliveryTag),
			slog.String("outcome", outcome),
			slog.Any("error", err),
		)
		return
	}
	if w.metrics != nil {
		w.metrics.DeliveriesTotal.WithLabelValues(outcome).Inc()
	}
}

// shouldRequeueJob requeues transient failures once. A redelivered message
// that fails again is dropped so a broken job cannot loop forever.
func shouldRequeueJob(err error, redelivered bool) bool {
	if errors.Is(err, domain.ErrJobNotFound) {
		return false
	}

	var retryableErr *domain.RetryableError
	if errors.As(err, &retryableErr) {
		return !redelivered
	}

	return false
}
