// Package cache mirrors job statuses into Redis so status polling does not
// hit the database. The store remains the source of truth.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/hotel-scout/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Hash fields of a job status entry
const (
	fieldStatus = "status"
	fieldOwner  = "owner"
)

// StatusWriter publishes status transitions. Writers must call it in
// lifecycle order for a given job.
type StatusWriter interface {
	SetJobStatus(ctx context.Context, jobID uuid.UUID, status domain.Status) error
}

// Entry is a cached job status together with the job's owner
type Entry struct {
	OwnerID string
	Status  domain.Status
}

// StatusCache stores the latest known status per job.
// Implementations must be safe for concurrent use.
type StatusCache interface {
	StatusWriter
	// SeedJobStatus records the owner and stores status only when no status
	// is cached yet, so it never replaces a status written by the worker
	SeedJobStatus(ctx context.Context, jobID uuid.UUID, ownerID string, status domain.Status) error
	// GetJobStatus reports ok=false on a miss. An entry without an owner is a miss.
	GetJobStatus(ctx context.Context, jobID uuid.UUID) (Entry, bool, error)
}

// JobStatusKey is the Redis key holding a job's status
func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s:status", jobID)
}

// RedisCache implements StatusCache using go-redis/v9. Each job is a hash
// with a status and an owner field.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a RedisCache from a Redis URL. Entries expire after ttl.
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opts), ttl: ttl}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) SetJobStatus(ctx context.Context, jobID uuid.UUID, status domain.Status) error {
	key := JobStatusKey(jobID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldStatus, status.String())
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	return err
}

func (c *RedisCache) SeedJobStatus(ctx context.Context, jobID uuid.UUID, ownerID string, status domain.Status) error {
	key := JobStatusKey(jobID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldStatus, status.String())
		pipe.HSet(ctx, key, fieldOwner, ownerID)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	return err
}

func (c *RedisCache) GetJobStatus(ctx context.Context, jobID uuid.UUID) (Entry, bool, error) {
	vals, err := c.client.HMGet(ctx, JobStatusKey(jobID), fieldStatus, fieldOwner).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	raw, _ := vals[0].(string)
	owner, _ := vals[1].(string)
	if raw == "" || owner == "" {
		return Entry{}, false, nil
	}

	status, err := domain.ParseStatus(raw)
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{OwnerID: owner, Status: status}, true, nil
}

// Nop is a StatusCache that stores nothing and always misses
type Nop struct{}

func (Nop) SetJobStatus(context.Context, uuid.UUID, domain.Status) error {
	return nil
}

func (Nop) SeedJobStatus(context.Context, uuid.UUID, string, domain.Status) error {
	return nil
}

func (Nop) GetJobStatus(context.Context, uuid.UUID) (Entry, bool, error) {
	return Entry{}, false, nil
}
