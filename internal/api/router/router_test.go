package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/hotel-scout/internal/api/dto"
	"github.com/cuongbtq/hotel-scout/internal/api/handler"
	"github.com/cuongbtq/hotel-scout/internal/api/router"
	"github.com/cuongbtq/hotel-scout/internal/cache"
	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/cuongbtq/hotel-scout/internal/metrics"
	"github.com/cuongbtq/hotel-scout/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []uuid.UUID
	err       error
	// onPublish runs before the job is recorded, like a worker picking it up
	onPublish func(jobID uuid.UUID)
}

func (p *fakePublisher) PublishJob(ctx context.Context, jobID uuid.UUID) error {
	if p.onPublish != nil {
		p.onPublish(jobID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, jobID)
	return nil
}

// mapCache keeps status and owner as separate fields, like the Redis hash
type mapCache struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]domain.Status
	owners   map[uuid.UUID]string
	getErr   error
}

func newMapCache() *mapCache {
	return &mapCache{
		statuses: map[uuid.UUID]domain.Status{},
		owners:   map[uuid.UUID]string{},
	}
}

func (c *mapCache) SetJobStatus(ctx context.Context, jobID uuid.UUID, status domain.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[jobID] = status
	return nil
}

func (c *mapCache) SeedJobStatus(ctx context.Context, jobID uuid.UUID, ownerID string, status domain.Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.statuses[jobID]; !ok {
		c.statuses[jobID] = status
	}
	c.owners[jobID] = ownerID
	return nil
}

func (c *mapCache) GetJobStatus(ctx context.Context, jobID uuid.UUID) (cache.Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return cache.Entry{}, false, c.getErr
	}
	s, ok := c.statuses[jobID]
	owner := c.owners[jobID]
	if !ok || owner == "" {
		return cache.Entry{}, false, nil
	}
	return cache.Entry{OwnerID: owner, Status: s}, true, nil
}

func (c *mapCache) status(jobID uuid.UUID) domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statuses[jobID]
}

// hookedStore runs afterGetJob once GetJob has read the job
type hookedStore struct {
	store.Store
	afterGetJob func(jobID uuid.UUID)
}

func (s *hookedStore) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := s.Store.GetJob(ctx, id)
	if err == nil && s.afterGetJob != nil {
		s.afterGetJob(id)
	}
	return job, err
}

type fixture struct {
	engine    *gin.Engine
	store     *store.Memory
	hooked    *hookedStore
	publisher *fakePublisher
	cache     *mapCache
	metrics   *metrics.Metrics
	healthErr error
}

func ownerHeader(owner string) map[string]string {
	return map[string]string{handler.UserIDHeader: owner}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     store.NewMemory(),
		publisher: &fakePublisher{},
		cache:     newMapCache(),
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	f.hooked = &hookedStore{Store: f.store}

	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	now := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	deps := &handler.Dependencies{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:     f.hooked,
		Publisher: f.publisher,
		Cache:     f.cache,
		Defaults: domain.QueryDefaults{
			Location:   "Dhaka",
			PriceMin:   1500,
			PriceMax:   25500,
			Stars:      3,
			StayNights: 1,
		},
		Now: now,
	}

	f.engine = router.SetupRouter(deps, router.Options{
		ServiceName: "hotel-scout-api",
		Metrics:     f.metrics,
		HealthCheck: func(ctx context.Context) error { return f.healthErr },
	})
	return f
}

func (f *fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) createJob(t *testing.T, owner, body string) dto.JobDTO {
	t.Helper()
	rec := f.do(http.MethodPost, "/api/v1/jobs", body, ownerHeader(owner))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var job dto.JobDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	return job
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"hotel-scout-api"}`, rec.Body.String())

	f.healthErr = errors.New("connection refused")
	rec = f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestCreateJob_AppliesDefaults(t *testing.T) {
	f := newFixture(t)

	job := f.createJob(t, "user-1", "")

	assert.Equal(t, "pending", job.Status)
	assert.Equal(t, "user-1", job.UserID)
	assert.Equal(t, "Dhaka", job.Location)
	assert.Equal(t, 1500.0, job.PriceMin)
	assert.Equal(t, 25500.0, job.PriceMax)
	assert.Equal(t, 3.0, job.Stars)
	assert.Equal(t, "2026-03-11", job.CheckIn)
	assert.Equal(t, "2026-03-12", job.CheckOut)

	id := uuid.MustParse(job.JobID)
	assert.Equal(t, []uuid.UUID{id}, f.publisher.published)
	assert.Equal(t, domain.NewStatus(domain.StatusPending), f.cache.status(id))
	assert.Equal(t, "user-1", f.cache.owners[id])

	stored, err := f.store.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status.Kind)
}

func TestCreateJob_ExplicitQuery(t *testing.T) {
	f := newFixture(t)

	job := f.createJob(t, "user-1", `{
		"location": "Chittagong",
		"price_min": 2000,
		"price_max": 9000,
		"stars": 4,
		"check_in": "2026-04-01",
		"check_out": "2026-04-04"
	}`)

	assert.Equal(t, "Chittagong", job.Location)
	assert.Equal(t, 2000.0, job.PriceMin)
	assert.Equal(t, 9000.0, job.PriceMax)
	assert.Equal(t, 4.0, job.Stars)
	assert.Equal(t, "2026-04-01", job.CheckIn)
	assert.Equal(t, "2026-04-04", job.CheckOut)
}

func TestCreateJob_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "malformed json", body: `{"location":`, wantMsg: "Invalid request body"},
		{name: "inverted price range", body: `{"price_min": 9000, "price_max": 100}`, wantMsg: "price_min"},
		{name: "stars out of range", body: `{"stars": 7}`, wantMsg: "stars"},
		{name: "bad date", body: `{"check_in": "01/04/2026"}`, wantMsg: "check_in must be a date"},
		{name: "check out before check in", body: `{"check_in": "2026-04-05", "check_out": "2026-04-01"}`, wantMsg: "check_out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			rec := f.do(http.MethodPost, "/api/v1/jobs", tt.body, ownerHeader("user-1"))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantMsg)
			assert.Empty(t, f.publisher.published)
		})
	}
}

func TestCreateJob_RequiresOwner(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/jobs", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.publisher.published)
	jobs, err := f.store.ListJobs(context.Background(), store.JobFilter{PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestCreateJob_WorkerStatusSurvivesCreate(t *testing.T) {
	f := newFixture(t)
	claimed := domain.NewStatus(domain.StatusRunningSourceA)
	// the worker claims the job before PublishJob returns
	f.publisher.onPublish = func(jobID uuid.UUID) {
		require.NoError(t, f.store.UpdateJobStatus(context.Background(), jobID, domain.StatusPending, claimed))
		require.NoError(t, f.cache.SetJobStatus(context.Background(), jobID, claimed))
	}

	job := f.createJob(t, "user-1", "")
	id := uuid.MustParse(job.JobID)

	assert.Equal(t, claimed, f.cache.status(id))

	rec := f.do(http.MethodGet, "/api/v1/jobs/"+job.JobID+"/status", "", ownerHeader("user-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running_source_a", decode[dto.JobStatusDTO](t, rec).Status)
}

func TestCreateJob_PublishFailureFailsJob(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("channel closed")

	rec := f.do(http.MethodPost, "/api/v1/jobs", "", ownerHeader("user-1"))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	jobs, err := f.store.ListJobs(context.Background(), store.JobFilter{OwnerID: "user-1", PageSize: 10})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "failed:enqueue failed", jobs[0].Status.String())
	assert.Equal(t, "failed:enqueue failed", f.cache.status(jobs[0].ID).String())
}

func TestGetJob(t *testing.T) {
	f := newFixture(t)
	created := f.createJob(t, "user-1", "")
	owner := ownerHeader("user-1")

	rec := f.do(http.MethodGet, "/api/v1/jobs/"+created.JobID, "", owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decode[dto.JobDTO](t, rec))

	rec = f.do(http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), "", owner)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/jobs/not-a-uuid", "", owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "job_id must be a valid UUID")
}

func TestGetJobStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createJob(t, "user-1", "")
	id := uuid.MustParse(created.JobID)
	path := "/api/v1/jobs/" + created.JobID + "/status"
	owner := ownerHeader("user-1")

	t.Run("cache hit", func(t *testing.T) {
		f.cache.statuses[id] = domain.Failure(domain.StatusSourceAFailed, "timeout after 10m0s")

		rec := f.do(http.MethodGet, path, "", owner)
		require.Equal(t, http.StatusOK, rec.Code)

		got := decode[dto.JobStatusDTO](t, rec)
		assert.Equal(t, "source_a_failed:timeout after 10m0s", got.Status)
		assert.Equal(t, "source_a_failed", got.Kind)
		assert.Equal(t, "timeout after 10m0s", got.Detail)
		assert.True(t, got.Terminal)
	})

	t.Run("cache miss falls back to store and backfills", func(t *testing.T) {
		delete(f.cache.statuses, id)
		require.NoError(t, f.store.UpdateJobStatus(ctx, id, domain.StatusPending, domain.NewStatus(domain.StatusRunningSourceA)))

		rec := f.do(http.MethodGet, path, "", owner)
		require.Equal(t, http.StatusOK, rec.Code)

		got := decode[dto.JobStatusDTO](t, rec)
		assert.Equal(t, "running_source_a", got.Status)
		assert.False(t, got.Terminal)
		assert.Equal(t, domain.NewStatus(domain.StatusRunningSourceA), f.cache.status(id))
	})

	t.Run("backfill keeps a newer worker status", func(t *testing.T) {
		delete(f.cache.statuses, id)
		require.NoError(t, f.store.UpdateJobStatus(ctx, id, domain.StatusRunningSourceA, domain.NewStatus(domain.StatusSourceACompleted)))
		completed := domain.NewStatus(domain.StatusCompleted)
		// the worker finishes between the store read and the backfill
		f.hooked.afterGetJob = func(jobID uuid.UUID) {
			require.NoError(t, f.cache.SetJobStatus(ctx, jobID, completed))
		}
		defer func() { f.hooked.afterGetJob = nil }()

		rec := f.do(http.MethodGet, path, "", owner)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "source_a_completed", decode[dto.JobStatusDTO](t, rec).Status)
		assert.Equal(t, completed, f.cache.status(id))
	})

	t.Run("cache error falls back to store", func(t *testing.T) {
		f.cache.getErr = errors.New("redis down")
		defer func() { f.cache.getErr = nil }()

		rec := f.do(http.MethodGet, path, "", owner)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "source_a_completed", decode[dto.JobStatusDTO](t, rec).Status)
	})

	t.Run("unknown job", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/v1/jobs/"+uuid.NewString()+"/status", "", owner)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListJobs_Pagination(t *testing.T) {
	f := newFixture(t)

	var ids []string
	for range 5 {
		ids = append(ids, f.createJob(t, "user-1", "").JobID)
	}
	f.createJob(t, "user-2", "")

	var seen []string
	cursor := ""
	for page := 0; page < 5; page++ {
		// user_id is not a filter; the header decides
		path := "/api/v1/jobs?user_id=user-2&page_size=2"
		if cursor != "" {
			path += "&cursor=" + cursor
		}
		rec := f.do(http.MethodGet, path, "", ownerHeader("user-1"))
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[dto.ListJobsResponse](t, rec)
		for _, j := range resp.Jobs {
			seen = append(seen, j.JobID)
		}
		cursor = resp.NextCursor
		if cursor == "" {
			break
		}
	}

	// newest first
	want := []string{ids[4], ids[3], ids[2], ids[1], ids[0]}
	assert.Equal(t, want, seen)
}

func TestListJobs_StatusFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.createJob(t, "user-1", "")
	f.createJob(t, "user-1", "")
	other := f.createJob(t, "user-2", "")
	failed := domain.Failure(domain.StatusFailed, "x")
	require.NoError(t, f.store.UpdateJobStatus(ctx, uuid.MustParse(a.JobID), domain.StatusPending, failed))
	require.NoError(t, f.store.UpdateJobStatus(ctx, uuid.MustParse(other.JobID), domain.StatusPending, failed))
	owner := ownerHeader("user-1")

	rec := f.do(http.MethodGet, "/api/v1/jobs?status=failed", "", owner)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dto.ListJobsResponse](t, rec)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, a.JobID, resp.Jobs[0].JobID)
	assert.Empty(t, resp.NextCursor)

	rec = f.do(http.MethodGet, "/api/v1/jobs?status=sleeping", "", owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/jobs?cursor=garbage!", "", owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func seedListings(t *testing.T, f *fixture, jobID uuid.UUID, titles ...string) []domain.Listing {
	t.Helper()
	now := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)
	listings := make([]domain.Listing, len(titles))
	for i, title := range titles {
		listings[i] = domain.Listing{
			ID:        uuid.New(),
			JobID:     jobID,
			Title:     title,
			PriceA:    float64(1000 * (i + 1)),
			URLA:      "https://booking.example/" + title,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	require.NoError(t, f.store.AppendListings(context.Background(), listings))
	return listings
}

func TestListListings(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, "user-1", "")
	jobID := uuid.MustParse(job.JobID)
	seeded := seedListings(t, f, jobID, "Alpha", "Bravo", "Charlie")
	owner := ownerHeader("user-1")

	rec := f.do(http.MethodGet, "/api/v1/jobs/"+job.JobID+"/listings", "", owner)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dto.ListListingsResponse](t, rec)
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, 50, resp.Limit)
	require.Len(t, resp.Listings, 3)
	assert.Equal(t, "Alpha", resp.Listings[0].Title)
	assert.Nil(t, resp.Listings[0].PriceB)

	rec = f.do(http.MethodGet, "/api/v1/jobs/"+job.JobID+"/listings?skip=1&limit=1", "", owner)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[dto.ListListingsResponse](t, rec)
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Listings, 1)
	assert.Equal(t, seeded[1].ID, resp.Listings[0].ID)

	rec = f.do(http.MethodGet, "/api/v1/jobs/"+job.JobID+"/listings?skip=-1", "", owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/jobs/"+uuid.NewString()+"/listings", "", owner)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListListings_EmptyJob(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, "user-1", "")

	rec := f.do(http.MethodGet, "/api/v1/jobs/"+job.JobID+"/listings", "", ownerHeader("user-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"listings":[]`)
}

func TestBookmarks(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, "user-1", "")
	listing := seedListings(t, f, uuid.MustParse(job.JobID), "Alpha")[0]
	path := "/api/v1/listings/" + listing.ID.String() + "/bookmark"
	owner := ownerHeader("user-1")

	rec := f.do(http.MethodPost, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, path, "", owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bm := decode[domain.Bookmark](t, rec)
	assert.Equal(t, listing.ID, bm.ListingID)
	assert.Equal(t, "user-1", bm.OwnerID)

	rec = f.do(http.MethodPost, path, "", owner)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodPost, "/api/v1/listings/"+uuid.NewString()+"/bookmark", "", owner)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/bookmarks", "", owner)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[dto.ListBookmarksResponse](t, rec)
	require.Len(t, list.Bookmarks, 1)
	assert.Equal(t, bm.ID, list.Bookmarks[0].ID)

	rec = f.do(http.MethodGet, "/api/v1/bookmarks", "", ownerHeader("user-2"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bookmarks":[]}`, rec.Body.String())

	rec = f.do(http.MethodDelete, path, "", owner)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodDelete, path, "", owner)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOwnerScoping(t *testing.T) {
	f := newFixture(t)
	job := f.createJob(t, "user-1", "")
	listing := seedListings(t, f, uuid.MustParse(job.JobID), "Alpha")[0]

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"get job", http.MethodGet, "/api/v1/jobs/" + job.JobID},
		{"get job status", http.MethodGet, "/api/v1/jobs/" + job.JobID + "/status"},
		{"list listings", http.MethodGet, "/api/v1/jobs/" + job.JobID + "/listings"},
		{"bookmark listing of another owner", http.MethodPost, "/api/v1/listings/" + listing.ID.String() + "/bookmark"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			rec = f.do(tt.method, tt.path, "", ownerHeader("user-2"))
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.NotContains(t, rec.Body.String(), "Alpha")
		})
	}

	t.Run("status on cache miss", func(t *testing.T) {
		delete(f.cache.statuses, uuid.MustParse(job.JobID))

		rec := f.do(http.MethodGet, "/api/v1/jobs/"+job.JobID+"/status", "", ownerHeader("user-2"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list jobs needs an owner", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/v1/jobs", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = f.do(http.MethodGet, "/api/v1/jobs", "", ownerHeader("user-2"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode[dto.ListJobsResponse](t, rec).Jobs)
	})

	rec := f.do(http.MethodGet, "/api/v1/bookmarks", "", ownerHeader("user-2"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bookmarks":[]}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)

	f.do(http.MethodGet, "/health", "", nil)
	f.do(http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), "", ownerHeader("user-1"))
	f.do(http.MethodGet, "/nowhere", "", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/jobs/:job_id", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	rec := f.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hotel_scout_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodOptions, "/api/v1/jobs", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-User-ID")
}

func TestSetupOpsRouter(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	m.JobsTotal.WithLabelValues("completed").Inc()
	var healthErr error
	r := router.SetupOpsRouter(router.Options{
		ServiceName: "hotel-scout-worker",
		Metrics:     m,
		MetricsPath: "/metrics",
		HealthCheck: func(ctx context.Context) error { return healthErr },
	})

	tests := []struct {
		name     string
		path     string
		fail     error
		wantCode int
		wantBody string
	}{
		{name: "healthy", path: "/health", wantCode: http.StatusOK, wantBody: `"status":"healthy"`},
		{name: "store down", path: "/health", fail: errors.New("connection refused"), wantCode: http.StatusServiceUnavailable, wantBody: "connection refused"},
		{name: "metrics", path: "/metrics", wantCode: http.StatusOK, wantBody: "hotel_scout_jobs_total"},
		{name: "no api routes", path: "/api/v1/jobs", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			healthErr = tt.fail
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}
