// Package store persists jobs, their listings and owner bookmarks.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/google/uuid"
)

// Store is the data access interface shared by the API and the worker.
// Implementations must be safe for concurrent use.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error)
	// UpdateJobStatus moves the job to next only if its current kind is
	// expected. It returns domain.ErrStatusConflict when the job moved on and
	// domain.ErrInvalidTransition when next would go backwards.
	UpdateJobStatus(ctx context.Context, id uuid.UUID, expected domain.StatusKind, next domain.Status) error

	// AppendListings inserts all listings in one transaction
	AppendListings(ctx context.Context, listings []domain.Listing) error
	// ListListings returns a page of the job's listings in creation order and the total count
	ListListings(ctx context.Context, jobID uuid.UUID, page Page) ([]domain.Listing, int, error)
	GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	UpdateListing(ctx context.Context, id uuid.UUID, patch domain.ListingPatch) error

	CreateBookmark(ctx context.Context, bookmark *domain.Bookmark) error
	ListBookmarks(ctx context.Context, ownerID string) ([]domain.Bookmark, error)
	DeleteBookmark(ctx context.Context, ownerID string, listingID uuid.UUID) error
}

// JobFilter narrows ListJobs. Results are ordered newest first and PageSize+1
// rows are returned so the caller can tell whether another page exists.
type JobFilter struct {
	OwnerID  string
	Status   domain.StatusKind
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is the keyset position of the last job on the previous page
type JobCursor struct {
	CreatedAt time.Time
	JobID     uuid.UUID
}

// Page selects a window of listings. A zero Limit means no limit.
type Page struct {
	Skip  int
	Limit int
}

func checkTransition(expected domain.StatusKind, next domain.Status) error {
	if !domain.NewStatus(expected).CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, expected, next.Kind)
	}
	return nil
}
