package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxStars is the upper bound of a star rating
const MaxStars = 5

// Source identifies one of the two listing providers
type Source string

const (
	// SourceA is the anchor source; every listing starts from one of its records
	SourceA Source = "booking"
	// SourceB is reconciled onto listings created from SourceA
	SourceB Source = "agoda"
)

// Listing is the canonical hotel record for a job, anchored on a Source A record
type Listing struct {
	ID        uuid.UUID `db:"id" json:"id"`
	JobID     uuid.UUID `db:"job_id" json:"job_id"`
	Title     string    `db:"title" json:"title"`
	PriceA    float64   `db:"price_source_a" json:"price_source_a"`
	URLA      string    `db:"url_source_a" json:"url_source_a"`
	PriceB    *float64  `db:"price_source_b" json:"price_source_b"`
	URLB      *string   `db:"url_source_b" json:"url_source_b"`
	Stars     *float64  `db:"stars" json:"stars"`
	ImageURL  *string   `db:"image_url" json:"image_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ListingPatch carries the Source B fields reconciliation may overwrite
type ListingPatch struct {
	PriceB    *float64
	URLB      *string
	UpdatedAt time.Time
}

// Apply writes the patch onto l; Source A fields are never touched
func (p ListingPatch) Apply(l *Listing) {
	l.PriceB = p.PriceB
	l.URLB = p.URLB
	l.UpdatedAt = p.UpdatedAt
}

// Bookmark marks a listing for an owner
type Bookmark struct {
	ID           uuid.UUID `db:"id" json:"id"`
	OwnerID      string    `db:"owner_id" json:"owner_id"`
	ListingID    uuid.UUID `db:"listing_id" json:"listing_id"`
	BookmarkedAt time.Time `db:"bookmarked_at" json:"bookmarked_at"`
}

// NewBookmark marks listingID for ownerID at now
func NewBookmark(ownerID string, listingID uuid.UUID, now time.Time) *Bookmark {
	return &Bookmark{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		ListingID:    listingID,
		BookmarkedAt: now,
	}
}
