package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fleveque/tongue-service/internal/model"
)

// ErrCacheMiss is returned by ResultCache.Get when no record is stored.
var ErrCacheMiss = errors.New("cache miss")

// CachedResult is what the cache keeps per photo hash.
type CachedResult struct {
	AnalysisID string               `json:"analysisId"`
	Record     model.AnalysisRecord `json:"record"`
}

// ResultCache remembers the record produced for a photo so an identical
// upload skips the provider.
type ResultCache interface {
	Get(ctx context.Context, photoHash string) (*CachedResult, error)
	Set(ctx context.Context, photoHash string, result CachedResult) error
	Ping(ctx context.Context) error
	Close() error
}

// CacheKey returns the redis key for a photo hash.
func CacheKey(photoHash string) string {
	return "tongue:analysis:" + photoHash
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to the redis server at url ("redis://host:6379/0").
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (ResultCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &redisCache{client: client, ttl: ttl}, nil
}

func (c *redisCache) Get(ctx context.Context, photoHash string) (*CachedResult, error) {
	data, err := c.client.Get(ctx, CacheKey(photoHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached result: %w", err)
	}

	var result CachedResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding cached result: %w", err)
	}
	return &result, nil
}

func (c *redisCache) Set(ctx context.Context, photoHash string, result CachedResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding cached result: %w", err)
	}
	if err := c.client.Set(ctx, CacheKey(photoHash), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing cached result: %w", err)
	}
	return nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

// NopCache never stores anything. Used when caching is disabled.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*CachedResult, error) { return nil, ErrCacheMiss }
func (NopCache) Set(context.Context, string, CachedResult) error     { return nil }
func (NopCache) Ping(context.Context) error                          { return nil }
func (NopCache) Close() error                                        { return nil }
