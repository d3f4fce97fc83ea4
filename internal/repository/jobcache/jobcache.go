// Package jobcache stores the terminal state of image-generation jobs in
// Redis. Once a terminal record exists, polls for that job never reach
// the upstream provider again.
package jobcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"polychat/internal/imagejob"
)

// Cache is the Redis-backed terminal-state store.
type Cache struct {
	rdb *redis.Client
}

// New creates a Cache over the given Redis client.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// GetTerminal returns the cached terminal record for a job, or found=false
// when the job has not yet been observed terminal.
func (c *Cache) GetTerminal(ctx context.Context, jobID string) (imagejob.Job, bool, error) {
	raw, err := c.rdb.Get(ctx, jobKey(jobID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return imagejob.Job{}, false, nil
		}
		return imagejob.Job{}, false, fmt.Errorf("get job %s: %w", jobID, err)
	}

	var job imagejob.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return imagejob.Job{}, false, fmt.Errorf("unmarshal job %s: %w", jobID, err)
	}
	return job, true, nil
}

// PutTerminal records a job's terminal state. SetNX makes the first
// writer win: a concurrent poll observing the same terminal state cannot
// overwrite an already-recorded result. Terminal records do not expire.
func (c *Cache) PutTerminal(ctx context.Context, job imagejob.Job) error {
	if !job.Terminal() {
		return fmt.Errorf("job %s is not terminal (status %s)", job.JobID, job.Status)
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.JobID, err)
	}
	if err := c.rdb.SetNX(ctx, jobKey(job.JobID), raw, 0).Err(); err != nil {
		return fmt.Errorf("store job %s: %w", job.JobID, err)
	}
	return nil
}

func jobKey(jobID string) string {
	return fmt.Sprintf("imagejob_%s", jobID)
}
