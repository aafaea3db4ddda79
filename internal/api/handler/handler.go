package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/hotel-scout/internal/cache"
	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/cuongbtq/hotel-scout/internal/store"
)

// UserIDHeader carries the caller's owner id
const UserIDHeader = "X-User-ID"

// JobPublisher hands a created job to the workers
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID uuid.UUID) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Store     store.Store
	Publisher JobPublisher
	Cache     cache.StatusCache
	Defaults  domain.QueryDefaults
	// Now defaults to time.Now
	Now func() time.Time
}

// JobHandler handles job, listing and bookmark requests
type JobHandler struct {
	logger    *slog.Logger
	store     store.Store
	publisher JobPublisher
	cache     cache.StatusCache
	defaults  domain.QueryDefaults
	now       func() time.Time
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	h := &JobHandler{
		logger:    deps.Logger,
		store:     deps.Store,
		publisher: deps.Publisher,
		cache:     deps.Cache,
		defaults:  deps.Defaults,
		now:       deps.Now,
	}
	if h.cache == nil {
		h.cache = cache.Nop{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

func errorResponse(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}

// storeError maps store sentinels to HTTP responses
func (h *JobHandler) storeError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		errorResponse(c, http.StatusNotFound, "job not found")
	case errors.Is(err, domain.ErrListingNotFound):
		errorResponse(c, http.StatusNotFound, "listing not found")
	case errors.Is(err, domain.ErrBookmarkNotFound):
		errorResponse(c, http.StatusNotFound, "bookmark not found")
	case errors.Is(err, domain.ErrDuplicateBookmark):
		errorResponse(c, http.StatusConflict, "listing already bookmarked")
	default:
		h.logger.Error("Store operation failed",
			slog.String("op", op),
			slog.Any("error", err),
		)
		_ = c.Error(err)
		errorResponse(c, http.StatusInternalServerError, "Failed to "+op)
	}
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// jobOf loads a job owned by owner. Jobs of other owners are reported as
// domain.ErrJobNotFound.
func (h *JobHandler) jobOf(ctx context.Context, owner string, jobID uuid.UUID) (*domain.Job, error) {
	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != owner {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

// ownedJob is jobOf that writes the error response
func (h *JobHandler) ownedJob(c *gin.Context, op, owner string, jobID uuid.UUID) (*domain.Job, bool) {
	job, err := h.jobOf(c.Request.Context(), owner, jobID)
	if err != nil {
		h.storeError(c, op, err)
		return nil, false
	}
	return job, true
}

func requireOwner(c *gin.Context) (string, bool) {
	owner := c.GetHeader(UserIDHeader)
	if owner == "" {
		errorResponse(c, http.StatusUnauthorized, UserIDHeader+" header is required")
		return "", false
	}
	return owner, true
}
