package usage

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const ttl = 7 * 24 * time.Hour

type Store struct {
	redis *redis.Client
	now   func() time.Time
}

func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient, now: time.Now}
}

func (s *Store) Record(ctx context.Context, r Record) error {
	now := s.now().UTC()
	key := RedisKey(r.Provider, now.Format("2006-01-02"), now.Hour())

	pipe := s.redis.Pipeline()
	pipe.HIncrBy(ctx, key, "requests", 1)
	if r.Failed {
		pipe.HIncrBy(ctx, key, "failures", 1)
	}
	pipe.HIncrBy(ctx, key, "audio_ms", r.Audio.Milliseconds())
	pipe.HIncrBy(ctx, key, "total_latency_ms", r.Latency.Milliseconds())
	pipe.HIncrBy(ctx, key, "latency_count", 1)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Hours returns the non-empty hourly buckets for provider, newest first.
func (s *Store) Hours(ctx context.Context, provider string, hours int) ([]*Hourly, error) {
	now := s.now().UTC()
	var out []*Hourly

	for i := 0; i < hours; i++ {
		t := now.Add(-time.Duration(i) * time.Hour)
		data, err := s.redis.HGetAll(ctx, RedisKey(provider, t.Format("2006-01-02"), t.Hour())).Result()
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			continue
		}

		h := &Hourly{
			Provider: provider,
			Date:     t.Format("2006-01-02"),
			Hour:     t.Hour(),
		}
		h.Requests, _ = strconv.ParseInt(data["requests"], 10, 64)
		h.Failures, _ = strconv.ParseInt(data["failures"], 10, 64)
		h.AudioMs, _ = strconv.ParseInt(data["audio_ms"], 10, 64)

		totalLatency, _ := strconv.ParseInt(data["total_latency_ms"], 10, 64)
		latencyCount, _ := strconv.ParseInt(data["latency_count"], 10, 64)
		if latencyCount > 0 {
			h.AvgLatencyMs = totalLatency / latencyCount
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
