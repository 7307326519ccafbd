package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/encoding/json"
	"ticketboard.com/internal/ticket/domain"
	"ticketboard.com/pkg/metrics"
)

// SnapshotCache 快照缓存，key 由 SnapshotProvider 决定
type SnapshotCache interface {
	Get(ctx context.Context, key string) ([]domain.Ticket, bool, error)
	Set(ctx context.Context, key string, tickets []domain.Ticket, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type redisCache struct {
	client *redis.Client
}

func NewRedisCache(c *redis.Client) SnapshotCache {
	return &redisCache{client: c}
}

func (r *redisCache) Get(ctx context.Context, key string) ([]domain.Ticket, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheOps.WithLabelValues("get", "miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.CacheOps.WithLabelValues("get", "error").Inc()
		return nil, false, err
	}

	var tickets []domain.Ticket
	if err := json.Unmarshal(b, &tickets); err != nil {
		// 缓存脏了就删掉，避免持续命中错误
		_ = r.client.Del(ctx, key).Err()
		metrics.CacheOps.WithLabelValues("get", "error").Inc()
		return nil, false, err
	}
	metrics.CacheOps.WithLabelValues("get", "hit").Inc()
	return tickets, true, nil
}

func (r *redisCache) Set(ctx context.Context, key string, tickets []domain.Ticket, ttl time.Duration) error {
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	b, err := json.Marshal(tickets)
	if err != nil {
		return err
	}
	err = r.client.Set(ctx, key, b, withJitter(ttl, 300*time.Millisecond)).Err()
	metrics.CacheOps.WithLabelValues("set", result(err)).Inc()
	return err
}

func (r *redisCache) Del(ctx context.Context, key string) error {
	err := r.client.Del(ctx, key).Err()
	metrics.CacheOps.WithLabelValues("del", result(err)).Inc()
	return err
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// withJitter 加入随机时间，避免大量 key 同时过期
func withJitter(ttl time.Duration, jitter time.Duration) time.Duration {
	if ttl <= 0 || jitter <= 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Int63n(int64(jitter)))
}

type nopCache struct{}

// NopCache 不开 redis 时用
func NopCache() SnapshotCache { return nopCache{} }

func (nopCache) Get(context.Context, string) ([]domain.Ticket, bool, error) { return nil, false, nil }

func (nopCache) Set(context.Context, string, []domain.Ticket, time.Duration) error { return nil }

func (nopCache) Del(context.Context, string) error { return nil }
