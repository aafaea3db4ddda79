package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

const jobColumns = `id, owner_id, location, price_min, price_max, stars,
	check_in, check_out, status, created_at, updated_at`

const listingColumns = `id, job_id, title, price_source_a, url_source_a,
	price_source_b, url_source_b, stars, image_url, created_at, updated_at`

// Postgres is the Store backed by PostgreSQL through sqlx
type Postgres struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgres creates a Postgres store on an open connection pool
func NewPostgres(db *sqlx.DB, logger *slog.Logger) *Postgres {
	return &Postgres{
		db:     db,
		logger: logger,
	}
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Postgres) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			id, owner_id, location, price_min, price_max, stars,
			check_in, check_out, status, created_at, updated_at
		) VALUES (
			:id, :owner_id, :location, :price_min, :price_max, :stars,
			:check_in, :check_out, :status, :created_at, :updated_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (s *Postgres) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	err := s.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

func (s *Postgres) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.OwnerID != "" {
		query += fmt.Sprintf(" AND owner_id = $%d", argIdx)
		args = append(args, filter.OwnerID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND split_part(status, ':', 1) = $%d", argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"

	// One extra row tells the caller whether there is a next page
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	jobs := []domain.Job{}
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

func (s *Postgres) UpdateJobStatus(ctx context.Context, id uuid.UUID, expected domain.StatusKind, next domain.Status) error {
	if err := checkTransition(expected, next); err != nil {
		return err
	}

	query := `
		UPDATE jobs
		SET status = $1,
		    updated_at = NOW()
		WHERE id = $2
		  AND split_part(status, ':', 1) = $3
	`

	result, err := s.db.ExecContext(ctx, query, next.String(), id, string(expected))
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Tell a missing job apart from one that moved on
		if _, err := s.GetJob(ctx, id); err != nil {
			return err
		}
		s.logger.Warn("Job status update lost the race",
			slog.String("job_id", id.String()),
			slog.String("expected", string(expected)),
			slog.String("next", next.String()),
		)
		return domain.ErrStatusConflict
	}

	return nil
}

func (s *Postgres) AppendListings(ctx context.Context, listings []domain.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO listings (
			id, job_id, title, price_source_a, url_source_a,
			price_source_b, url_source_b, stars, image_url, created_at, updated_at
		) VALUES (
			:id, :job_id, :title, :price_source_a, :url_source_a,
			:price_source_b, :url_source_b, :stars, :image_url, :created_at, :updated_at
		)
	`

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare listing insert: %w", err)
	}
	defer stmt.Close()

	// Inserted one by one so seq keeps the connector order
	for i := range listings {
		if _, err := stmt.ExecContext(ctx, &listings[i]); err != nil {
			if isPQCode(err, pqForeignKeyViolation) {
				return domain.ErrJobNotFound
			}
			return fmt.Errorf("failed to insert listing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit listings: %w", err)
	}
	return nil
}

func (s *Postgres) ListListings(ctx context.Context, jobID uuid.UUID, page Page) ([]domain.Listing, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM listings WHERE job_id = $1`, jobID); err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	query := `SELECT ` + listingColumns + ` FROM listings WHERE job_id = $1 ORDER BY created_at, seq OFFSET $2`
	args := []interface{}{jobID, page.Skip}
	if page.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, page.Limit)
	}

	listings := []domain.Listing{}
	if err := s.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list listings: %w", err)
	}

	return listings, total, nil
}

func (s *Postgres) GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	var listing domain.Listing
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	err := s.db.GetContext(ctx, &listing, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	return &listing, nil
}

func (s *Postgres) UpdateListing(ctx context.Context, id uuid.UUID, patch domain.ListingPatch) error {
	if patch.UpdatedAt.IsZero() {
		patch.UpdatedAt = time.Now().UTC()
	}

	query := `
		UPDATE listings
		SET price_source_b = $1,
		    url_source_b = $2,
		    updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query, patch.PriceB, patch.URLB, patch.UpdatedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (s *Postgres) CreateBookmark(ctx context.Context, bookmark *domain.Bookmark) error {
	query := `
		INSERT INTO bookmarks (id, owner_id, listing_id, bookmarked_at)
		VALUES (:id, :owner_id, :listing_id, :bookmarked_at)
	`

	_, err := s.db.NamedExecContext(ctx, query, bookmark)
	switch {
	case err == nil:
		return nil
	case isPQCode(err, pqUniqueViolation):
		return domain.ErrDuplicateBookmark
	case isPQCode(err, pqForeignKeyViolation):
		return domain.ErrListingNotFound
	default:
		return fmt.Errorf("failed to create bookmark: %w", err)
	}
}

func (s *Postgres) ListBookmarks(ctx context.Context, ownerID string) ([]domain.Bookmark, error) {
	query := `
		SELECT id, owner_id, listing_id, bookmarked_at
		FROM bookmarks
		WHERE owner_id = $1
		ORDER BY bookmarked_at DESC, id DESC
	`

	bookmarks := []domain.Bookmark{}
	if err := s.db.SelectContext(ctx, &bookmarks, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	return bookmarks, nil
}

func (s *Postgres) DeleteBookmark(ctx context.Context, ownerID string, listingID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE owner_id = $1 AND listing_id = $2`, ownerID, listingID)
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrBookmarkNotFound
	}
	return nil
}

func isPQCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
