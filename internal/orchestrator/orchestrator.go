// Package orchestrator drives a job through both sources: Source A creates
// the listings, Source B is reconciled onto them, and every step is published
// as a job status.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/hotel-scout/internal/cache"
	"github.com/cuongbtq/hotel-scout/internal/connector"
	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/cuongbtq/hotel-scout/internal/metrics"
	"github.com/cuongbtq/hotel-scout/internal/normalize"
	"github.com/cuongbtq/hotel-scout/internal/reconcile"
	"github.com/cuongbtq/hotel-scout/internal/store"
	"github.com/google/uuid"
)

const (
	defaultConnectorTimeout   = 10 * time.Minute
	defaultStatusWriteTimeout = 10 * time.Second
)

// Options wires the orchestrator. Cache and Metrics are optional.
type Options struct {
	Store      store.Store
	SourceA    connector.Connector
	SourceB    connector.Connector
	Normalizer *normalize.Normalizer
	Engine     *reconcile.Engine
	Workspace  *Workspace
	Cache      cache.StatusWriter
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	// ConnectorTimeout bounds each connector invocation
	ConnectorTimeout time.Duration
	// StatusWriteTimeout bounds the failure write, which runs detached from
	// the job's cancellation
	StatusWriteTimeout time.Duration
}

// Orchestrator runs jobs. It is safe for concurrent use by several workers as
// long as each job is processed by one of them at a time.
type Orchestrator struct {
	store      store.Store
	sourceA    connector.Connector
	sourceB    connector.Connector
	normalizer *normalize.Normalizer
	engine     *reconcile.Engine
	workspace  *Workspace
	cache      cache.StatusWriter
	metrics    *metrics.Metrics
	logger     *slog.Logger

	connectorTimeout   time.Duration
	statusWriteTimeout time.Duration
}

// New validates opts and builds an Orchestrator
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Store == nil:
		return nil, errors.New("orchestrator: store is required")
	case opts.SourceA == nil || opts.SourceB == nil:
		return nil, errors.New("orchestrator: both connectors are required")
	case opts.Normalizer == nil:
		return nil, errors.New("orchestrator: normalizer is required")
	case opts.Engine == nil:
		return nil, errors.New("orchestrator: reconciliation engine is required")
	case opts.Workspace == nil:
		return nil, errors.New("orchestrator: workspace is required")
	case opts.Logger == nil:
		return nil, errors.New("orchestrator: logger is required")
	}

	o := &Orchestrator{
		store:              opts.Store,
		sourceA:            opts.SourceA,
		sourceB:            opts.SourceB,
		normalizer:         opts.Normalizer,
		engine:             opts.Engine,
		workspace:          opts.Workspace,
		cache:              opts.Cache,
		metrics:            opts.Metrics,
		logger:             opts.Logger,
		connectorTimeout:   opts.ConnectorTimeout,
		statusWriteTimeout: opts.StatusWriteTimeout,
	}
	if o.cache == nil {
		o.cache = cache.Nop{}
	}
	if o.connectorTimeout <= 0 {
		o.connectorTimeout = defaultConnectorTimeout
	}
	if o.statusWriteTimeout <= 0 {
		o.statusWriteTimeout = defaultStatusWriteTimeout
	}
	return o, nil
}

// stageError is a connector failure attributed to one stage
type stageError struct {
	kind domain.StatusKind
	err  error
}

func (e *stageError) Error() string {
	return e.err.Error()
}

func (e *stageError) Unwrap() error {
	return e.err
}

// run tracks the status of one job while it is being processed
type run struct {
	job     *domain.Job
	current domain.StatusKind
	logger  *slog.Logger
}

// Process claims a pending job and drives it to a terminal status, which it
// returns. Jobs that are no longer pending are skipped and reported with
// their current status. An error is returned only when the job could not be
// claimed; it is a *domain.RetryableError when retrying may help.
func (o *Orchestrator) Process(ctx context.Context, jobID uuid.UUID) (domain.Status, error) {
	logger := o.logger.With(slog.String("job_id", jobID.String()))

	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return domain.Status{}, err
		}
		return domain.Status{}, domain.NewRetryableError(fmt.Errorf("failed to load job: %w", err))
	}

	if job.Status.Kind != domain.StatusPending {
		logger.Warn("Skipping job that is not pending",
			slog.String("status", job.Status.String()),
		)
		return job.Status, nil
	}

	claimed := domain.NewStatus(domain.StatusRunningSourceA)
	if err := o.store.UpdateJobStatus(ctx, jobID, domain.StatusPending, claimed); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			logger.Warn("Job already claimed")
			current, getErr := o.store.GetJob(ctx, jobID)
			if getErr != nil {
				return domain.Status{}, domain.NewRetryableError(getErr)
			}
			return current.Status, nil
		}
		return domain.Status{}, domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}
	o.mirror(ctx, logger, jobID, claimed)

	r := &run{job: job, current: domain.StatusRunningSourceA, logger: logger}
	logger.Info("Job claimed", slog.String("location", job.Location))

	if o.metrics != nil {
		o.metrics.JobsInFlight.Inc()
		defer o.metrics.JobsInFlight.Dec()
	}
	defer func() {
		if err := o.workspace.Cleanup(jobID); err != nil {
			logger.Error("Failed to remove job artifacts", slog.Any("error", err))
		}
	}()

	final := o.execute(ctx, r)
	if final.IsFailure() {
		o.fail(ctx, r, final)
	}

	if o.metrics != nil {
		o.metrics.JobsTotal.WithLabelValues(string(final.Kind)).Inc()
	}
	logger.Info("Job finished", slog.String("status", final.String()))
	return final, nil
}

// execute runs both stages and returns the terminal status to record. A
// failure status is returned unwritten; Process persists it.
func (o *Orchestrator) execute(ctx context.Context, r *run) domain.Status {
	if err := ctx.Err(); err != nil {
		return failureStatus(err)
	}
	if err := o.sourceAStage(ctx, r); err != nil {
		return failureStatus(err)
	}
	if err := o.advance(ctx, r, domain.StatusSourceACompleted); err != nil {
		return failureStatus(err)
	}

	if err := ctx.Err(); err != nil {
		return failureStatus(err)
	}

	if err := o.advance(ctx, r, domain.StatusRunningSourceB); err != nil {
		return failureStatus(err)
	}
	if err := o.sourceBStage(ctx, r); err != nil {
		return failureStatus(err)
	}
	if err := o.advance(ctx, r, domain.StatusSourceBCompleted); err != nil {
		return failureStatus(err)
	}
	if err := o.advance(ctx, r, domain.StatusCompleted); err != nil {
		return failureStatus(err)
	}
	return domain.NewStatus(domain.StatusCompleted)
}

func failureStatus(err error) domain.Status {
	var se *stageError
	if errors.As(err, &se) {
		return domain.Failure(se.kind, se.Error())
	}
	return domain.Failure(domain.StatusFailed, err.Error())
}

// sourceAStage fetches Source A and persists one listing per usable record
func (o *Orchestrator) sourceAStage(ctx context.Context, r *run) error {
	raws, err := o.fetch(ctx, r, o.sourceA, domain.StatusSourceAFailed)
	if err != nil {
		return err
	}

	records := o.normalizer.NormalizeBatch(domain.SourceA, raws, r.logger)
	o.countSkipped(domain.SourceA, len(raws)-len(records))

	now := time.Now().UTC()
	listings := make([]domain.Listing, 0, len(records))
	for _, rec := range records {
		listings = append(listings, normalize.NewListing(r.job.ID, rec, now))
	}

	if err := o.store.AppendListings(ctx, listings); err != nil {
		return fmt.Errorf("failed to persist listings: %w", err)
	}

	if o.metrics != nil {
		o.metrics.ListingsCreated.Add(float64(len(listings)))
	}
	r.logger.Info("Listings created", slog.Int("count", len(listings)))
	return nil
}

// sourceBStage fetches Source B and merges matching records onto the job's listings
func (o *Orchestrator) sourceBStage(ctx context.Context, r *run) error {
	raws, err := o.fetch(ctx, r, o.sourceB, domain.StatusSourceBFailed)
	if err != nil {
		return err
	}

	records := o.normalizer.NormalizeBatch(domain.SourceB, raws, r.logger)
	o.countSkipped(domain.SourceB, len(raws)-len(records))

	listings, _, err := o.store.ListListings(ctx, r.job.ID, store.Page{})
	if err != nil {
		return fmt.Errorf("failed to load listings: %w", err)
	}

	result := o.engine.Reconcile(listings, records)

	now := time.Now().UTC()
	for _, m := range result.Matches {
		patch := m.Patch()
		patch.UpdatedAt = now
		if err := o.store.UpdateListing(ctx, m.ListingID, patch); err != nil {
			return fmt.Errorf("failed to merge %q: %w", m.Record.Title, err)
		}
	}

	for _, rec := range result.Dropped {
		r.logger.Debug("No listing matched record", slog.String("title", rec.Title))
	}
	if o.metrics != nil {
		o.metrics.MatchesTotal.Add(float64(len(result.Matches)))
		o.metrics.DroppedTotal.Add(float64(len(result.Dropped)))
	}
	r.logger.Info("Reconciliation finished",
		slog.Int("matched", len(result.Matches)),
		slog.Int("dropped", len(result.Dropped)),
		slog.String("policy", string(o.engine.Policy())),
	)
	return nil
}

// fetch invokes one connector under the connector timeout. Connector
// failures become stage errors of failKind.
func (o *Orchestrator) fetch(ctx context.Context, r *run, c connector.Connector, failKind domain.StatusKind) ([]connector.RawRecord, error) {
	source := c.Source()
	q := o.connectorQuery(r.job, source)

	callCtx, cancel := context.WithTimeout(ctx, o.connectorTimeout)
	defer cancel()

	start := time.Now()
	raws, err := c.Fetch(callCtx, q)
	elapsed := time.Since(start)

	result := "ok"
	if err != nil {
		result = "failed"
	}
	if o.metrics != nil {
		o.metrics.StageDuration.WithLabelValues(string(source), result).Observe(elapsed.Seconds())
	}

	if err != nil {
		r.logger.Error("Connector failed",
			slog.String("source", string(source)),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err),
		)
		// the job itself was cancelled or timed out, not the source
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if isConnectorFailure(err) {
			return nil, &stageError{kind: failKind, err: err}
		}
		return nil, fmt.Errorf("%s connector: %w", source, err)
	}

	r.logger.Info("Connector returned",
		slog.String("source", string(source)),
		slog.Int("records", len(raws)),
		slog.Duration("elapsed", elapsed),
	)
	return raws, nil
}

func isConnectorFailure(err error) bool {
	var ce *connector.Error
	return errors.As(err, &ce) ||
		errors.Is(err, connector.ErrLaunch) ||
		errors.Is(err, connector.ErrOutput) ||
		errors.Is(err, connector.ErrTimeout)
}

func (o *Orchestrator) connectorQuery(job *domain.Job, source domain.Source) connector.Query {
	q := job.Query()
	return connector.Query{
		JobID:      job.ID,
		Location:   q.Location,
		CheckIn:    q.CheckIn,
		CheckOut:   q.CheckOut,
		PriceMin:   q.PriceMin,
		PriceMax:   q.PriceMax,
		Stars:      q.Stars,
		Adults:     connector.DefaultAdults,
		Rooms:      connector.DefaultRooms,
		OutputPath: o.workspace.Path(source, job.ID),
	}
}

// advance records the next non-failure status
func (o *Orchestrator) advance(ctx context.Context, r *run, next domain.StatusKind) error {
	status := domain.NewStatus(next)
	if err := o.store.UpdateJobStatus(ctx, r.job.ID, r.current, status); err != nil {
		return fmt.Errorf("failed to set status %s: %w", next, err)
	}
	r.current = next
	o.mirror(ctx, r.logger, r.job.ID, status)
	r.logger.Info("Job status updated", slog.String("status", string(next)))
	return nil
}

// fail records a failure status. The write is detached from ctx so a cancelled
// job still reports why it stopped; a failed write is logged and dropped.
func (o *Orchestrator) fail(ctx context.Context, r *run, status domain.Status) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.statusWriteTimeout)
	defer cancel()

	if err := o.store.UpdateJobStatus(writeCtx, r.job.ID, r.current, status); err != nil {
		r.logger.Error("Failed to record job failure",
			slog.String("status", status.String()),
			slog.Any("error", err),
		)
		return
	}
	r.current = status.Kind
	o.mirror(writeCtx, r.logger, r.job.ID, status)
}

// mirror copies a status into the cache; the store stays authoritative
func (o *Orchestrator) mirror(ctx context.Context, logger *slog.Logger, jobID uuid.UUID, status domain.Status) {
	if err := o.cache.SetJobStatus(ctx, jobID, status); err != nil {
		logger.Warn("Failed to cache job status",
			slog.String("status", status.String()),
			slog.Any("error", err),
		)
	}
}

func (o *Orchestrator) countSkipped(source domain.Source, n int) {
	if o.metrics != nil && n > 0 {
		o.metrics.RecordsSkipped.WithLabelValues(string(source)).Add(float64(n))
	}
}
