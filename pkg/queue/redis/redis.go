package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dosewatch/adherence-api/pkg/queue"
)

// claimScript pops due members from the schedule set together with their
// payloads in one round trip, so two pollers never claim the same job.
var claimScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
local result = {}
for i, key in ipairs(due) do
    redis.call('ZREM', KEYS[1], key)
    local payload = redis.call('HGET', KEYS[2], key)
    redis.call('HDEL', KEYS[2], key)
    result[2*i-1] = key
    result[2*i] = payload
end
return result
`)

type RedisQueue struct {
	client      *redis.Client
	scheduleKey string
	payloadKey  string
	logger      *zerolog.Logger
}

type Config struct {
	URL          string
	Namespace    string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

func NewRedisQueue(config Config, logger *zerolog.Logger) (queue.DelayedQueue, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.MaxRetries = config.MaxRetries
	opts.MinRetryBackoff = config.RetryBackoff
	opts.PoolSize = config.PoolSize
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ns := config.Namespace
	if ns == "" {
		ns = "escalation"
	}

	return &RedisQueue{
		client:      client,
		scheduleKey: ns + ":schedule",
		payloadKey:  ns + ":payloads",
		logger:      logger,
	}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, job queue.Job) (bool, error) {
	added, err := q.client.ZAddNX(ctx, q.scheduleKey, redis.Z{
		Score:  float64(job.FireAt.UnixMilli()),
		Member: job.Key,
	}).Result()
	if err != nil {
		return false, fmt.Errorf("failed to schedule job: %w", err)
	}
	if added == 0 {
		// Key already scheduled; the existing payload stands.
		return false, nil
	}

	if err := q.client.HSet(ctx, q.payloadKey, job.Key, job.Payload).Err(); err != nil {
		return false, fmt.Errorf("failed to store job payload: %w", err)
	}
	return true, nil
}

func (q *RedisQueue) Remove(ctx context.Context, key string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.scheduleKey, key)
	pipe.HDel(ctx, q.payloadKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove job %s: %w", key, err)
	}
	return nil
}

func (q *RedisQueue) Due(ctx context.Context, now time.Time, limit int) ([]queue.Job, error) {
	raw, err := claimScript.Run(ctx, q.client,
		[]string{q.scheduleKey, q.payloadKey},
		now.UnixMilli(), limit,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to claim due jobs: %w", err)
	}

	jobs := make([]queue.Job, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		key, ok := raw[i].(string)
		if !ok {
			continue
		}
		job := queue.Job{Key: key, FireAt: now}
		if payload, ok := raw[i+1].(string); ok {
			job.Payload = []byte(payload)
		} else if q.logger != nil {
			q.logger.Warn().Str("job_key", key).Msg("claimed job without payload")
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
