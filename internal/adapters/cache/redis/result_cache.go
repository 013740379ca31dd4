package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
)

// ResultCache stores final results of closed elections. Results of a closed
// election never change, so entries only expire to bound memory.
type ResultCache struct {
	client *goredis.Client
	ttl    time.Duration
}

var _ ports.ResultCache = (*ResultCache)(nil)

var newClient = goredis.NewClient

func NewResultCache(ctx context.Context, url string, ttl time.Duration) (*ResultCache, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	c := newClient(opts)

	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return &ResultCache{client: c, ttl: ttl}, nil
}

func resultKey(electionID uuid.UUID) string {
	return fmt.Sprintf("election:%s:result", electionID)
}

func (c *ResultCache) Get(ctx context.Context, electionID uuid.UUID) (*domain.ElectionResult, bool, error) {
	raw, err := c.client.Get(ctx, resultKey(electionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("error getting result from redis: %w", err)
	}

	var result domain.ElectionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("error decoding cached result: %w", err)
	}
	return &result, true, nil
}

func (c *ResultCache) Set(ctx context.Context, result *domain.ElectionResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	if err := c.client.Set(ctx, resultKey(result.ElectionID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("error storing result in redis: %w", err)
	}
	return nil
}

func (c *ResultCache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("error closing redis client: %w", err)
	}
	return nil
}
