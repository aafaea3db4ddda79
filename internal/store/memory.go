package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/google/uuid"
)

// Memory is an in-process Store used by tests and single-binary demos.
// Records are copied on the way in and out.
type Memory struct {
	mu        sync.RWMutex
	jobs      map[uuid.UUID]domain.Job
	listings  map[uuid.UUID][]domain.Listing // by job, in insertion order
	owners    map[uuid.UUID]uuid.UUID        // listing id -> job id
	bookmarks []domain.Bookmark
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		jobs:     make(map[uuid.UUID]domain.Job),
		listings: make(map[uuid.UUID][]domain.Listing),
		owners:   make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) CreateJob(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobs[job.ID] = *job
	return nil
}

func (m *Memory) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &job, nil
}

func (m *Memory) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := []domain.Job{}
	for _, job := range m.jobs {
		if filter.OwnerID != "" && job.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && job.Status.Kind != filter.Status {
			continue
		}
		if c := filter.Cursor; c != nil && !before(job, c) {
			continue
		}
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return before(jobs[j], &JobCursor{CreatedAt: jobs[i].CreatedAt, JobID: jobs[i].ID})
	})

	if limit := filter.PageSize + 1; len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// before reports whether job sorts after the cursor in newest-first order
func before(job domain.Job, c *JobCursor) bool {
	if !job.CreatedAt.Equal(c.CreatedAt) {
		return job.CreatedAt.Before(c.CreatedAt)
	}
	return job.ID.String() < c.JobID.String()
}

func (m *Memory) UpdateJobStatus(ctx context.Context, id uuid.UUID, expected domain.StatusKind, next domain.Status) error {
	if err := checkTransition(expected, next); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if job.Status.Kind != expected {
		return domain.ErrStatusConflict
	}

	job.Status = next
	job.UpdatedAt = time.Now().UTC()
	m.jobs[id] = job
	return nil
}

func (m *Memory) AppendListings(ctx context.Context, listings []domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate the whole batch first so a failure writes nothing
	for _, l := range listings {
		if _, ok := m.jobs[l.JobID]; !ok {
			return domain.ErrJobNotFound
		}
	}

	for _, l := range listings {
		m.listings[l.JobID] = append(m.listings[l.JobID], l)
		m.owners[l.ID] = l.JobID
	}
	return nil
}

func (m *Memory) ListListings(ctx context.Context, jobID uuid.UUID, page Page) ([]domain.Listing, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.listings[jobID]
	total := len(all)

	start := min(max(page.Skip, 0), total)
	end := total
	if page.Limit > 0 {
		end = min(start+page.Limit, total)
	}

	out := make([]domain.Listing, end-start)
	copy(out, all[start:end])
	return out, total, nil
}

func (m *Memory) GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, l := range m.listings[m.owners[id]] {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, domain.ErrListingNotFound
}

func (m *Memory) UpdateListing(ctx context.Context, id uuid.UUID, patch domain.ListingPatch) error {
	if patch.UpdatedAt.IsZero() {
		patch.UpdatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	jobID, ok := m.owners[id]
	if !ok {
		return domain.ErrListingNotFound
	}
	for i := range m.listings[jobID] {
		if m.listings[jobID][i].ID == id {
			patch.Apply(&m.listings[jobID][i])
			return nil
		}
	}
	return domain.ErrListingNotFound
}

func (m *Memory) CreateBookmark(ctx context.Context, bookmark *domain.Bookmark) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.owners[bookmark.ListingID]; !ok {
		return domain.ErrListingNotFound
	}
	for _, b := range m.bookmarks {
		if b.OwnerID == bookmark.OwnerID && b.ListingID == bookmark.ListingID {
			return domain.ErrDuplicateBookmark
		}
	}

	m.bookmarks = append(m.bookmarks, *bookmark)
	return nil
}

func (m *Memory) ListBookmarks(ctx context.Context, ownerID string) ([]domain.Bookmark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []domain.Bookmark{}
	for i := len(m.bookmarks) - 1; i >= 0; i-- {
		if m.bookmarks[i].OwnerID == ownerID {
			out = append(out, m.bookmarks[i])
		}
	}
	return out, nil
}

func (m *Memory) DeleteBookmark(ctx context.Context, ownerID string, listingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, b := range m.bookmarks {
		if b.OwnerID == ownerID && b.ListingID == listingID {
			m.bookmarks = append(m.bookmarks[:i], m.bookmarks[i+1:]...)
			return nil
		}
	}
	return domain.ErrBookmarkNotFound
}
