package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/cuongbtq/hotel-scout/internal/metrics"
)

// Broker is the part of the queue client the worker consumes from
type Broker interface {
	Consume(consumerTag string, prefetch int) (<-chan amqp.Delivery, error)
	Cancel(consumerTag string) error
}

// Processor drives one job to a terminal status
type Processor interface {
	Process(ctx context.Context, jobID uuid.UUID) (domain.Status, error)
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Broker        Broker
	Processor     Processor
	Metrics       *metrics.Metrics
	WorkerID      string
	Concurrency   int
	PrefetchCount int
	JobTimeout    time.Duration
}

// Worker consumes job messages and runs them on a fixed-size pool
type Worker struct {
	logger        *slog.Logger
	broker        Broker
	processor     Processor
	metrics       *metrics.Metrics
	workerID      string
	concurrency   int
	prefetchCount int
	jobTimeout    time.Duration

	jobsChan chan *jobMessage

	// abort cancels in-flight jobs once the graceful window is over
	abortOnce sync.Once
	abortCtx  context.Context
	abort     context.CancelFunc
}

// jobMessage is a validated delivery on its way to the pool
type jobMessage struct {
	jobID    uuid.UUID
	delivery amqp.Delivery
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) (*Worker, error) {
	if cfg.Broker == nil {
		return nil, errors.New("worker: broker is required")
	}
	if cfg.Processor == nil {
		return nil, errors.New("worker: processor is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("worker: logger is required")
	}

	concurrency := max(cfg.Concurrency, 1)
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = "worker-" + uuid.NewString()[:8]
	}

	abortCtx, abort := context.WithCancel(context.Background())

	return &Worker{
		logger:        cfg.Logger.With(slog.String("worker_id", workerID)),
		broker:        cfg.Broker,
		processor:     cfg.Processor,
		metrics:       cfg.Metrics,
		workerID:      workerID,
		concurrency:   concurrency,
		prefetchCount: prefetch,
		jobTimeout:    cfg.JobTimeout,
		jobsChan:      make(chan *jobMessage),
		abortCtx:      abortCtx,
		abort:         abort,
	}, nil
}

// Start consumes until ctx is canceled, then stops taking deliveries and
// waits for in-flight jobs to finish. In-flight jobs are not bound to ctx;
// call Abort to cancel them.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Int("prefetch_count", w.prefetchCount),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.broker.Consume(w.workerID, w.prefetchCount)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(w.jobsChan)
		w.startMessageDispatcher(gctx, deliveries)
		if err := w.broker.Cancel(w.workerID); err != nil {
			w.logger.Warn("Failed to cancel consumer", slog.Any("error", err))
		}
		return nil
	})

	w.spawnWorkerPool(g)

	err = g.Wait()
	w.logger.Info("Worker stopped")
	return err
}

// Abort cancels the jobs still running. Their orchestrator records the cancellation.
func (w *Worker) Abort() {
	w.abortOnce.Do(func() {
		w.logger.Warn("Aborting in-flight jobs")
		w.abort()
	})
}
