package dto

import (
	"time"

	"github.com/cuongbtq/hotel-scout/internal/domain"
)

// DateLayout is the wire format of check-in and check-out dates
const DateLayout = "2006-01-02"

// CreateJobRequest is the body of POST /api/v1/jobs. Every field is optional.
type CreateJobRequest struct {
	Location *string  `json:"location"`
	PriceMin *float64 `json:"price_min"`
	PriceMax *float64 `json:"price_max"`
	Stars    *float64 `json:"stars"`
	CheckIn  *string  `json:"check_in"`
	CheckOut *string  `json:"check_out"`
}

type ListJobsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID     string  `json:"job_id"`
	UserID    string  `json:"user_id"`
	Location  string  `json:"location"`
	PriceMin  float64 `json:"price_min"`
	PriceMax  float64 `json:"price_max"`
	Stars     float64 `json:"stars"`
	CheckIn   string  `json:"check_in"`
	CheckOut  string  `json:"check_out"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// JobStatusDTO splits the status into its discriminator and detail
type JobStatusDTO struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Kind     string `json:"kind"`
	Detail   string `json:"detail,omitempty"`
	Terminal bool   `json:"terminal"`
}

type ListListingsRequest struct {
	Skip  int `form:"skip"`
	Limit int `form:"limit"`
}

type ListListingsResponse struct {
	Listings []domain.Listing `json:"listings"`
	Count    int              `json:"count"`
	Skip     int              `json:"skip"`
	Limit    int              `json:"limit"`
}

type ListBookmarksResponse struct {
	Bookmarks []domain.Bookmark `json:"bookmarks"`
}

// NewJobDTO renders a job for the API
func NewJobDTO(job *domain.Job) JobDTO {
	return JobDTO{
		JobID:     job.ID.String(),
		UserID:    job.OwnerID,
		Location:  job.Location,
		PriceMin:  job.PriceMin,
		PriceMax:  job.PriceMax,
		Stars:     job.Stars,
		CheckIn:   job.CheckIn.Format(DateLayout),
		CheckOut:  job.CheckOut.Format(DateLayout),
		Status:    job.Status.String(),
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// NewJobStatusDTO renders a status for the status endpoint
func NewJobStatusDTO(jobID string, status domain.Status) JobStatusDTO {
	return JobStatusDTO{
		JobID:    jobID,
		Status:   status.String(),
		Kind:     string(status.Kind),
		Detail:   status.Detail,
		Terminal: status.IsTerminal(),
	}
}
