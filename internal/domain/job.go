package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Job is one user-submitted search across both sources and its lifecycle record
type Job struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Location  string    `db:"location" json:"location"`
	PriceMin  float64   `db:"price_min" json:"price_min"`
	PriceMax  float64   `db:"price_max" json:"price_max"`
	Stars     float64   `db:"stars" json:"stars"`
	CheckIn   time.Time `db:"check_in" json:"check_in"`
	CheckOut  time.Time `db:"check_out" json:"check_out"`
	Status    Status    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Query returns the search parameters the job was created with
func (j *Job) Query() Query {
	return Query{
		Location: j.Location,
		PriceMin: j.PriceMin,
		PriceMax: j.PriceMax,
		Stars:    j.Stars,
		CheckIn:  j.CheckIn,
		CheckOut: j.CheckOut,
	}
}

// NewJob builds a pending job for the owner from a resolved query
func NewJob(ownerID string, q Query, now time.Time) *Job {
	return &Job{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Location:  q.Location,
		PriceMin:  q.PriceMin,
		PriceMax:  q.PriceMax,
		Stars:     q.Stars,
		CheckIn:   q.CheckIn,
		CheckOut:  q.CheckOut,
		Status:    NewStatus(StatusPending),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Query holds the logical search parameters shared by both sources
type Query struct {
	Location string
	PriceMin float64
	PriceMax float64
	Stars    float64
	CheckIn  time.Time
	CheckOut time.Time
}

// QueryInput is a query as submitted by a client; nil fields take defaults
type QueryInput struct {
	Location *string
	PriceMin *float64
	PriceMax *float64
	Stars    *float64
	CheckIn  *time.Time
	CheckOut *time.Time
}

// QueryDefaults fills in unspecified query parameters
type QueryDefaults struct {
	Location   string
	PriceMin   float64
	PriceMax   float64
	Stars      float64
	StayNights int
}

// Resolve applies defaults to in and validates the result. Check-in defaults
// to the day after now.
func (d QueryDefaults) Resolve(in QueryInput, now time.Time) (Query, error) {
	nights := d.StayNights
	if nights <= 0 {
		nights = 1
	}

	q := Query{
		Location: d.Location,
		PriceMin: d.PriceMin,
		PriceMax: d.PriceMax,
		Stars:    d.Stars,
	}

	if in.Location != nil && strings.TrimSpace(*in.Location) != "" {
		q.Location = strings.TrimSpace(*in.Location)
	}
	if in.PriceMin != nil {
		q.PriceMin = *in.PriceMin
	}
	if in.PriceMax != nil {
		q.PriceMax = *in.PriceMax
	}
	if in.Stars != nil {
		q.Stars = *in.Stars
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	q.CheckIn = today.AddDate(0, 0, 1)
	if in.CheckIn != nil {
		q.CheckIn = truncateDay(*in.CheckIn)
	}
	q.CheckOut = q.CheckIn.AddDate(0, 0, nights)
	if in.CheckOut != nil {
		q.CheckOut = truncateDay(*in.CheckOut)
	}

	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// Validate checks the query ranges
func (q Query) Validate() error {
	if q.Location == "" {
		return fmt.Errorf("%w: location is required", ErrInvalidQuery)
	}
	if q.PriceMin < 0 || q.PriceMax < 0 {
		return fmt.Errorf("%w: prices must not be negative", ErrInvalidQuery)
	}
	if q.PriceMin > q.PriceMax {
		return fmt.Errorf("%w: price_min %.0f is greater than price_max %.0f", ErrInvalidQuery, q.PriceMin, q.PriceMax)
	}
	if q.Stars < 0 || q.Stars > MaxStars {
		return fmt.Errorf("%w: stars must be between 0 and %d", ErrInvalidQuery, MaxStars)
	}
	if !q.CheckOut.After(q.CheckIn) {
		return fmt.Errorf("%w: check_out must be after check_in", ErrInvalidQuery)
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Scan implements sql.Scanner for the status column
func (s *Status) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	case nil:
		return fmt.Errorf("%w: NULL", ErrUnknownStatus)
	default:
		return fmt.Errorf("cannot scan %T into Status", src)
	}
}

// Value implements driver.Valuer for the status column
func (s Status) Value() (driver.Value, error) {
	return s.String(), nil
}
