package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
)

const (
	redisDeadlineSet = "registry:reevaluate:deadlines"
	redisPollWindow  = time.Second
)

// Redis is a scheduler shared by multiple instances: deadlines live in a
// sorted set scored by unix time, and each Run loop claims due members with
// ZREM so only one instance reevaluates a given key.
type Redis struct {
	client   *redis.Client
	interval time.Duration
	logger   *slog.Logger
}

// RedisOption configures a Redis scheduler.
type RedisOption func(*Redis)

// WithRedisLogger sets the logger used by the run loop.
func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) { r.logger = logger }
}

// WithPollInterval overrides how often the run loop checks for due entries.
func WithPollInterval(d time.Duration) RedisOption {
	return func(r *Redis) { r.interval = d }
}

// NewRedis builds a scheduler over the given client.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client:   client,
		interval: redisPollWindow,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) ScheduleNotBefore(ctx context.Context, key models.Key, at time.Time) error {
	// ZADD LT keeps the earliest deadline when the key is already present.
	err := r.client.ZAddLT(ctx, redisDeadlineSet, redis.Z{
		Score:  float64(at.Unix()),
		Member: encodeMember(key),
	}).Err()
	if err != nil {
		return fmt.Errorf("schedule %s: %w", key, err)
	}
	return nil
}

// Run polls for due members until ctx is cancelled.
func (r *Redis) Run(ctx context.Context, fn ReevaluateFunc) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drainDue(ctx, fn); err != nil {
				r.logger.WarnContext(ctx, "scheduler poll failed", slog.Any("error", err))
			}
		}
	}
}

func (r *Redis) drainDue(ctx context.Context, fn ReevaluateFunc) error {
	now := time.Now().Unix()
	members, err := r.client.ZRangeByScore(ctx, redisDeadlineSet, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		return fmt.Errorf("range deadlines: %w", err)
	}
	for _, member := range members {
		removed, err := r.client.ZRem(ctx, redisDeadlineSet, member).Result()
		if err != nil {
			return fmt.Errorf("claim %q: %w", member, err)
		}
		if removed == 0 {
			// Another instance claimed it.
			continue
		}
		key, err := decodeMember(member)
		if err != nil {
			r.logger.WarnContext(ctx, "dropping malformed deadline member",
				slog.String("member", member), slog.Any("error", err))
			continue
		}
		if err := fn(ctx, key); err != nil {
			r.logger.WarnContext(ctx, "scheduled reevaluation failed",
				slog.String("kind", string(key.Kind)),
				slog.String("id", key.ID),
				slog.Any("error", err))
		}
	}
	return nil
}

func encodeMember(key models.Key) string {
	return string(key.Kind) + "|" + key.ID
}

func decodeMember(member string) (models.Key, error) {
	kind, id, ok := strings.Cut(member, "|")
	if !ok || kind == "" || id == "" {
		return models.Key{}, fmt.Errorf("malformed member %q", member)
	}
	return models.Key{Kind: models.Kind(kind), ID: id}, nil
}
