package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/hotel-scout/internal/api/dto"
	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/cuongbtq/hotel-scout/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateJob handles POST /api/v1/jobs
// Stores a pending job, enqueues it and returns without waiting for the crawl
func (h *JobHandler) CreateJob(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}

	var req dto.CreateJobRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("Invalid request body", slog.Any("error", err))
			errorResponse(c, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	in, err := queryInput(req)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	now := h.now().UTC()
	query, err := h.defaults.Resolve(in, now)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	job := domain.NewJob(owner, query, now)
	logger := h.logger.With(slog.String("job_id", job.ID.String()))

	if err := h.store.CreateJob(ctx, job); err != nil {
		h.storeError(c, "create job", err)
		return
	}

	// seeded before publishing so a fast worker's status is never replaced by pending
	if err := h.cache.SeedJobStatus(ctx, job.ID, job.OwnerID, job.Status); err != nil {
		logger.Warn("Failed to cache job status", slog.Any("error", err))
	}

	if err := h.publisher.PublishJob(ctx, job.ID); err != nil {
		logger.Error("Failed to enqueue job", slog.Any("error", err))
		h.markUnqueued(ctx, logger, job)
		errorResponse(c, http.StatusServiceUnavailable, "Failed to enqueue job")
		return
	}

	logger.Info("Job created",
		slog.String("location", job.Location),
		slog.String("check_in", job.CheckIn.Format(dto.DateLayout)),
	)

	c.JSON(http.StatusAccepted, dto.NewJobDTO(job))
}

// markUnqueued fails a job whose message never reached the queue so it does
// not sit in pending forever
func (h *JobHandler) markUnqueued(ctx context.Context, logger *slog.Logger, job *domain.Job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	status := domain.Failure(domain.StatusFailed, "enqueue failed")
	if err := h.store.UpdateJobStatus(ctx, job.ID, domain.StatusPending, status); err != nil {
		logger.Error("Failed to mark unqueued job as failed", slog.Any("error", err))
		return
	}
	if err := h.cache.SetJobStatus(ctx, job.ID, status); err != nil {
		logger.Warn("Failed to cache job status", slog.Any("error", err))
	}
}

func queryInput(req dto.CreateJobRequest) (domain.QueryInput, error) {
	in := domain.QueryInput{
		Location: req.Location,
		PriceMin: req.PriceMin,
		PriceMax: req.PriceMax,
		Stars:    req.Stars,
	}

	var err error
	if in.CheckIn, err = parseDate("check_in", req.CheckIn); err != nil {
		return domain.QueryInput{}, err
	}
	if in.CheckOut, err = parseDate("check_out", req.CheckOut); err != nil {
		return domain.QueryInput{}, err
	}
	return in, nil
}

func parseDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dto.DateLayout, *raw)
	if err != nil {
		return nil, errors.New(field + " must be a date in YYYY-MM-DD format")
	}
	return &t, nil
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	jobID, ok := parseUUIDParam(c, "job_id")
	if !ok {
		return
	}

	job, ok := h.ownedJob(c, "get job", owner, jobID)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// GetJobStatus handles GET /api/v1/jobs/:job_id/status
// Answers from the status cache when possible and falls back to the store
func (h *JobHandler) GetJobStatus(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	jobID, ok := parseUUIDParam(c, "job_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	entry, hit, err := h.cache.GetJobStatus(ctx, jobID)
	if err != nil {
		h.logger.Warn("Status cache lookup failed",
			slog.String("job_id", jobID.String()),
			slog.Any("error", err),
		)
	}
	if hit {
		if entry.OwnerID != owner {
			errorResponse(c, http.StatusNotFound, "job not found")
			return
		}
		c.JSON(http.StatusOK, dto.NewJobStatusDTO(jobID.String(), entry.Status))
		return
	}

	job, ok := h.ownedJob(c, "get job status", owner, jobID)
	if !ok {
		return
	}

	// the worker may have written a newer status since the store read
	if err := h.cache.SeedJobStatus(ctx, jobID, job.OwnerID, job.Status); err != nil {
		h.logger.Warn("Failed to cache job status", slog.Any("error", err))
	}

	c.JSON(http.StatusOK, dto.NewJobStatusDTO(jobID.String(), job.Status))
}

// ListJobs handles GET /api/v1/jobs
// Lists the caller's jobs newest first with an optional status filter
func (h *JobHandler) ListJobs(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.Any("error", err))
		errorResponse(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid cursor")
		return
	}

	filter := store.JobFilter{
		OwnerID:  owner,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}
	if req.Status != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "Invalid status filter")
			return
		}
		filter.Status = status.Kind
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.storeError(c, "list jobs", err)
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	resp := dto.ListJobsResponse{Jobs: make([]dto.JobDTO, len(jobs))}
	for i := range jobs {
		resp.Jobs[i] = dto.NewJobDTO(&jobs[i])
	}

	if hasMore {
		last := jobs[len(jobs)-1]
		resp.NextCursor = EncodeJobCursor(store.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.ID,
		})
	}

	c.JSON(http.StatusOK, resp)
}
