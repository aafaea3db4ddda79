package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func testDefaults() QueryDefaults {
	return QueryDefaults{
		Location:   "Dhaka",
		PriceMin:   1500,
		PriceMax:   25500,
		Stars:      3,
		StayNights: 1,
	}
}

func TestQueryDefaults_Resolve(t *testing.T) {
	now := time.Date(2026, 3, 10, 21, 45, 0, 0, time.UTC)
	tomorrow := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	t.Run("empty input takes every default", func(t *testing.T) {
		q, err := testDefaults().Resolve(QueryInput{}, now)
		require.NoError(t, err)

		assert.Equal(t, "Dhaka", q.Location)
		assert.InDelta(t, 1500.0, q.PriceMin, 1e-9)
		assert.InDelta(t, 25500.0, q.PriceMax, 1e-9)
		assert.InDelta(t, 3.0, q.Stars, 1e-9)
		assert.Equal(t, tomorrow, q.CheckIn)
		assert.Equal(t, tomorrow.AddDate(0, 0, 1), q.CheckOut)
	})

	t.Run("explicit fields win", func(t *testing.T) {
		in := QueryInput{
			Location: ptr("  Chittagong "),
			PriceMin: ptr(0.0),
			PriceMax: ptr(9000.0),
			Stars:    ptr(5.0),
			CheckIn:  ptr(time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)),
			CheckOut: ptr(time.Date(2026, 4, 4, 0, 0, 0, 0, time.UTC)),
		}
		q, err := testDefaults().Resolve(in, now)
		require.NoError(t, err)

		assert.Equal(t, "Chittagong", q.Location)
		assert.InDelta(t, 0.0, q.PriceMin, 1e-9)
		assert.InDelta(t, 9000.0, q.PriceMax, 1e-9)
		assert.InDelta(t, 5.0, q.Stars, 1e-9)
		assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), q.CheckIn)
		assert.Equal(t, time.Date(2026, 4, 4, 0, 0, 0, 0, time.UTC), q.CheckOut)
	})

	t.Run("blank location keeps default", func(t *testing.T) {
		q, err := testDefaults().Resolve(QueryInput{Location: ptr("   ")}, now)
		require.NoError(t, err)
		assert.Equal(t, "Dhaka", q.Location)
	})

	t.Run("check-out follows explicit check-in", func(t *testing.T) {
		d := testDefaults()
		d.StayNights = 2
		q, err := d.Resolve(QueryInput{CheckIn: ptr(time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC))}, now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 5, 22, 0, 0, 0, 0, time.UTC), q.CheckOut)
	})

	t.Run("zero stay nights means one night", func(t *testing.T) {
		d := testDefaults()
		d.StayNights = 0
		q, err := d.Resolve(QueryInput{}, now)
		require.NoError(t, err)
		assert.Equal(t, tomorrow.AddDate(0, 0, 1), q.CheckOut)
	})
}

func TestQueryDefaults_ResolveRejects(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		in        QueryInput
		errString string
	}{
		{
			name:      "negative price",
			in:        QueryInput{PriceMin: ptr(-1.0)},
			errString: "must not be negative",
		},
		{
			name:      "inverted price range",
			in:        QueryInput{PriceMin: ptr(30000.0)},
			errString: "greater than price_max",
		},
		{
			name:      "stars above five",
			in:        QueryInput{Stars: ptr(6.0)},
			errString: "stars must be between 0 and 5",
		},
		{
			name: "check-out before check-in",
			in: QueryInput{
				CheckIn:  ptr(time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC)),
				CheckOut: ptr(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)),
			},
			errString: "check_out must be after check_in",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testDefaults().Resolve(tt.in, now)
			require.ErrorIs(t, err, ErrInvalidQuery)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}

	t.Run("missing location without default", func(t *testing.T) {
		d := testDefaults()
		d.Location = ""
		_, err := d.Resolve(QueryInput{}, now)
		require.ErrorIs(t, err, ErrInvalidQuery)
	})
}

func TestNewJob(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	q, err := testDefaults().Resolve(QueryInput{}, now)
	require.NoError(t, err)

	job := NewJob("user-1", q, now)

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, "user-1", job.OwnerID)
	assert.Equal(t, NewStatus(StatusPending), job.Status)
	assert.Equal(t, now, job.CreatedAt)
	assert.Equal(t, now, job.UpdatedAt)
	assert.Equal(t, q, job.Query())
}

func TestListingPatch_Apply(t *testing.T) {
	url := "https://example.test/b"
	price := 12200.0
	updated := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)

	l := Listing{Title: "Hotel Sarina", PriceA: 9000, URLA: "https://example.test/a"}
	ListingPatch{PriceB: &price, URLB: &url, UpdatedAt: updated}.Apply(&l)

	assert.Equal(t, "Hotel Sarina", l.Title)
	assert.InDelta(t, 9000.0, l.PriceA, 1e-9)
	assert.Equal(t, "https://example.test/a", l.URLA)
	require.NotNil(t, l.PriceB)
	assert.InDelta(t, 12200.0, *l.PriceB, 1e-9)
	assert.Equal(t, &url, l.URLB)
	assert.Equal(t, updated, l.UpdatedAt)
}

func TestRetryableError(t *testing.T) {
	cause := ErrJobNotFound
	err := NewRetryableError(cause)

	var retryable *RetryableError
	require.ErrorAs(t, err, &retryable)
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.Equal(t, "retryable error: job not found", err.Error())
}
