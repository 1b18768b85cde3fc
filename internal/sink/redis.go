package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashendes/commerce-console/internal/apperr"
	"github.com/ashendes/commerce-console/internal/models"
	"github.com/redis/go-redis/v9"
)

// Redis keys holding the latest records
const (
	KeyHealth            = "console:health"
	KeyCatalog           = "console:catalog"
	KeyCatalogError      = "console:catalog:error"
	KeySubmissionLast    = "console:checkout:last"
	KeySubmissionHistory = "console:checkout:history"
)

// SubmissionHistoryLen bounds the checkout history list
const SubmissionHistoryLen = 50

// redisWriter is the subset of redis.Cmdable the sink needs
type redisWriter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// RedisSink caches the latest records so other processes can render them
type RedisSink struct {
	rdb redisWriter
	ttl time.Duration
}

// NewRedisClient connects to addr
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// NewRedisSink creates a RedisSink whose keys expire after ttl
func NewRedisSink(rdb redisWriter, ttl time.Duration) *RedisSink {
	return &RedisSink{rdb: rdb, ttl: ttl}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) ShowHealth(ctx context.Context, snapshot models.HealthSnapshot) error {
	return s.set(ctx, KeyHealth, snapshot)
}

func (s *RedisSink) ShowCatalog(ctx context.Context, catalog models.Catalog) error {
	return s.set(ctx, KeyCatalog, catalog)
}

func (s *RedisSink) ShowCatalogError(ctx context.Context, err error) error {
	return s.set(ctx, KeyCatalogError, CatalogErrorRecord{Error: err.Error(), Kind: apperr.Kind(err)})
}

func (s *RedisSink) ShowSubmission(ctx context.Context, result models.SubmissionResult) error {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeySubmissionLast, err)
	}
	if err := s.rdb.Set(ctx, KeySubmissionLast, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", KeySubmissionLast, err)
	}
	if err := s.rdb.LPush(ctx, KeySubmissionHistory, b).Err(); err != nil {
		return fmt.Errorf("redis lpush %s: %w", KeySubmissionHistory, err)
	}
	return s.rdb.LTrim(ctx, KeySubmissionHistory, 0, SubmissionHistoryLen-1).Err()
}

func (s *RedisSink) set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
