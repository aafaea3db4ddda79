package reconcile

import (
	"testing"
	"time"

	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/cuongbtq/hotel-scout/internal/normalize"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listings(titles ...string) []domain.Listing {
	now := time.Now()
	out := make([]domain.Listing, len(titles))
	for i, title := range titles {
		out[i] = domain.Listing{ID: uuid.New(), Title: title, PriceA: 1000, CreatedAt: now, UpdatedAt: now}
	}
	return out
}

func record(title string, price float64) normalize.Record {
	return normalize.Record{Title: title, Price: &price, URL: "https://b/" + title}
}

func newEngine(t *testing.T, policy Policy) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultThreshold, policy)
	require.NoError(t, err)
	return e
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine(0.8, "")
	require.NoError(t, err)
	assert.Equal(t, PolicyExclusive, e.Policy())

	_, err = NewEngine(0, PolicyExclusive)
	assert.Error(t, err)
	_, err = NewEngine(1.2, PolicyExclusive)
	assert.Error(t, err)
	_, err = NewEngine(0.8, Policy("fuzzy"))
	assert.Error(t, err)
}

func TestReconcile_MergeAndDrop(t *testing.T) {
	left := listings("Hotel Lake View", "Grand Palace")
	right := []normalize.Record{
		record("Hotel Lakeview", 2440),
		record("City Business Inn", 1220),
	}

	res := newEngine(t, PolicyExclusive).Reconcile(left, right)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, left[0].ID, res.Matches[0].ListingID)
	assert.InDelta(t, 0.9655, res.Matches[0].Score, 1e-3)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, "City Business Inn", res.Dropped[0].Title)
}

func TestReconcile_ThresholdIsInclusive(t *testing.T) {
	left := listings("Hotel Sarina Dhaka")
	res := newEngine(t, PolicyExclusive).Reconcile(left, []normalize.Record{record("Hotel Sarina", 100)})

	require.Len(t, res.Matches, 1)
	assert.InDelta(t, 0.8, res.Matches[0].Score, 1e-12)
}

func TestReconcile_PicksBestCandidate(t *testing.T) {
	left := listings("Hotel Lake View Plaza", "Hotel Lake View")
	res := newEngine(t, PolicyExclusive).Reconcile(left, []normalize.Record{record("Hotel Lake View", 100)})

	require.Len(t, res.Matches, 1)
	assert.Equal(t, left[1].ID, res.Matches[0].ListingID)
	assert.Equal(t, 1.0, res.Matches[0].Score)
}

func TestReconcile_TieKeepsEarliestListing(t *testing.T) {
	left := listings("Grand Palace", "Grand Palace")
	res := newEngine(t, PolicyGreedy).Reconcile(left, []normalize.Record{record("Grand Palace", 100)})

	require.Len(t, res.Matches, 1)
	assert.Equal(t, left[0].ID, res.Matches[0].ListingID)
}

func TestReconcile_ExclusiveClaimsListing(t *testing.T) {
	left := listings("Hotel Lake View")
	right := []normalize.Record{
		record("Hotel Lakeview", 100),
		record("Hotel Lake View", 200),
	}

	res := newEngine(t, PolicyExclusive).Reconcile(left, right)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, "Hotel Lakeview", res.Matches[0].Record.Title)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, "Hotel Lake View", res.Dropped[0].Title)
}

func TestReconcile_ExclusiveFallsBackToNextCandidate(t *testing.T) {
	left := listings("Hotel Lake View", "Hotel Lakeview")
	right := []normalize.Record{
		record("Hotel Lake View", 100),
		record("Hotel Lake View", 200),
	}

	res := newEngine(t, PolicyExclusive).Reconcile(left, right)

	require.Len(t, res.Matches, 2)
	assert.Equal(t, left[0].ID, res.Matches[0].ListingID)
	assert.Equal(t, left[1].ID, res.Matches[1].ListingID)
}

func TestReconcile_GreedyAllowsDoubleMatch(t *testing.T) {
	left := listings("Hotel Lake View")
	right := []normalize.Record{
		record("Hotel Lakeview", 100),
		record("Hotel Lake View", 200),
	}

	res := newEngine(t, PolicyGreedy).Reconcile(left, right)

	require.Len(t, res.Matches, 2)
	assert.Equal(t, left[0].ID, res.Matches[0].ListingID)
	assert.Equal(t, left[0].ID, res.Matches[1].ListingID)
	assert.Empty(t, res.Dropped)
}

func TestReconcile_Idempotent(t *testing.T) {
	left := listings("Hotel Lake View", "Grand Palace")
	right := []normalize.Record{record("Grand Palace", 4880), record("Hotel Lakeview", 2440)}
	e := newEngine(t, PolicyExclusive)

	first := e.Reconcile(left, right)
	second := e.Reconcile(left, right)

	assert.Equal(t, first, second)
	assert.Len(t, left, 2)
}

func TestReconcile_EmptyInputs(t *testing.T) {
	e := newEngine(t, PolicyExclusive)

	res := e.Reconcile(nil, []normalize.Record{record("Grand Palace", 1)})
	assert.Empty(t, res.Matches)
	assert.Len(t, res.Dropped, 1)

	res = e.Reconcile(listings("Grand Palace"), nil)
	assert.Empty(t, res.Matches)
	assert.Empty(t, res.Dropped)
}

func TestMatch_Patch(t *testing.T) {
	m := Match{Record: record("Grand Palace", 4880)}
	p := m.Patch()

	require.NotNil(t, p.PriceB)
	assert.Equal(t, 4880.0, *p.PriceB)
	require.NotNil(t, p.URLB)
	assert.Equal(t, "https://b/Grand Palace", *p.URLB)

	m = Match{Record: normalize.Record{Title: "No URL"}}
	p = m.Patch()
	assert.Nil(t, p.PriceB)
	assert.Nil(t, p.URLB)
}
