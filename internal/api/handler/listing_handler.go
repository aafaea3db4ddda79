package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/hotel-scout/internal/api/dto"
	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/cuongbtq/hotel-scout/internal/store"
)

const (
	defaultListingLimit = 50
	maxListingLimit     = 500
)

// ListListings handles GET /api/v1/jobs/:job_id/listings
func (h *JobHandler) ListListings(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	jobID, ok := parseUUIDParam(c, "job_id")
	if !ok {
		return
	}

	var req dto.ListListingsRequest
	if err := c.ShouldBindQuery(&req); err != nil || req.Skip < 0 || req.Limit < 0 {
		errorResponse(c, http.StatusBadRequest, "skip and limit must be non-negative integers")
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultListingLimit
	}
	if req.Limit > maxListingLimit {
		req.Limit = maxListingLimit
	}

	ctx := c.Request.Context()
	if _, ok := h.ownedJob(c, "list listings", owner, jobID); !ok {
		return
	}

	listings, count, err := h.store.ListListings(ctx, jobID, store.Page{Skip: req.Skip, Limit: req.Limit})
	if err != nil {
		h.storeError(c, "list listings", err)
		return
	}
	if listings == nil {
		listings = []domain.Listing{}
	}

	c.JSON(http.StatusOK, dto.ListListingsResponse{
		Listings: listings,
		Count:    count,
		Skip:     req.Skip,
		Limit:    req.Limit,
	})
}

// CreateBookmark handles POST /api/v1/listings/:listing_id/bookmark
func (h *JobHandler) CreateBookmark(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	listingID, ok := parseUUIDParam(c, "listing_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	listing, err := h.store.GetListing(ctx, listingID)
	if err != nil {
		h.storeError(c, "create bookmark", err)
		return
	}
	// a listing is visible only through its job
	if _, err := h.jobOf(ctx, owner, listing.JobID); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			err = domain.ErrListingNotFound
		}
		h.storeError(c, "create bookmark", err)
		return
	}

	bookmark := domain.NewBookmark(owner, listingID, h.now().UTC())
	if err := h.store.CreateBookmark(ctx, bookmark); err != nil {
		h.storeError(c, "create bookmark", err)
		return
	}

	h.logger.Info("Listing bookmarked",
		slog.String("owner_id", owner),
		slog.String("listing_id", listingID.String()),
	)
	c.JSON(http.StatusCreated, bookmark)
}

// ListBookmarks handles GET /api/v1/bookmarks
func (h *JobHandler) ListBookmarks(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}

	bookmarks, err := h.store.ListBookmarks(c.Request.Context(), owner)
	if err != nil {
		h.storeError(c, "list bookmarks", err)
		return
	}
	if bookmarks == nil {
		bookmarks = []domain.Bookmark{}
	}

	c.JSON(http.StatusOK, dto.ListBookmarksResponse{Bookmarks: bookmarks})
}

// DeleteBookmark handles DELETE /api/v1/listings/:listing_id/bookmark
func (h *JobHandler) DeleteBookmark(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}
	listingID, ok := parseUUIDParam(c, "listing_id")
	if !ok {
		return
	}

	if err := h.store.DeleteBookmark(c.Request.Context(), owner, listingID); err != nil {
		h.storeError(c, "delete bookmark", err)
		return
	}

	c.Status(http.StatusNoContent)
}
