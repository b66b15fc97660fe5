// Package cache holds redis-backed lookaside stores. Nothing here is a
// source of truth; the database decides, the cache only saves round trips.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"melodex/core/ingest"

	"github.com/redis/go-redis/v9"
)

// ReportCache keeps the most recent ingestion report per (user, tag) so
// the API layer can answer "what did the last sync do" without a rerun.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache creates a ReportCache with the given TTL.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

func reportKey(userID int64, tag string) string {
	return fmt.Sprintf("ingest:report:%d:%s", userID, tag)
}

// Store saves the report, replacing any previous one for the same key.
func (c *ReportCache) Store(ctx context.Context, userID int64, tag string, report *ingest.JobReport) error {
	if c.client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal job report: %w", err)
	}

	if err := c.client.Set(ctx, reportKey(userID, tag), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store job report: %w", err)
	}
	return nil
}

// Latest returns the most recent report for (user, tag), or (nil, nil)
// when none is cached.
func (c *ReportCache) Latest(ctx context.Context, userID int64, tag string) (*ingest.JobReport, error) {
	if c.client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	data, err := c.client.Get(ctx, reportKey(userID, tag)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read job report: %w", err)
	}

	var report ingest.JobReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job report: %w", err)
	}
	return &report, nil
}
