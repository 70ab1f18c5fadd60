package redisq

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xclaim"
	"github.com/trickstertwo/xclock"
)

// Queue is a Redis-backed queue transport. Ready messages live on a LIST,
// in-flight messages on a ZSET scored by visibility deadline; bodies,
// delivery counters and receipts live in HASHes keyed by message id. A
// dequeue re-queues every message whose visibility deadline has passed
// before popping, so abandoned messages come back automatically.
type Queue struct {
	name   string
	client *redis.Client
	clock  xclock.Clock

	keySeq        string
	keyReady      string
	keyInvisible  string
	keyBodies     string
	keyDeliveries string
	keyReceipts   string
}

// NewQueue dials Redis and returns a queue transport for cfg.Queue.
func NewQueue(cfg Config) (*Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Queue == "" {
		return nil, fmt.Errorf("config: queue required")
	}
	client, err := cfg.newClient()
	if err != nil {
		return nil, err
	}
	return newQueueWithClient(cfg, client), nil
}

func newQueueWithClient(cfg Config, client *redis.Client) *Queue {
	base := cfg.KeyPrefix + ":q:" + cfg.Queue
	return &Queue{
		name:          cfg.Queue,
		client:        client,
		clock:         xclock.Default(),
		keySeq:        base + ":seq",
		keyReady:      base + ":ready",
		keyInvisible:  base + ":invisible",
		keyBodies:     base + ":bodies",
		keyDeliveries: base + ":deliveries",
		keyReceipts:   base + ":receipts",
	}
}

// WithClock overrides the clock (used by tests to control visibility).
func (q *Queue) WithClock(c xclock.Clock) *Queue {
	if c != nil {
		q.clock = c
	}
	return q
}

// Create is a no-op; Redis keys materialize on first write.
func (q *Queue) Create(_ context.Context) error { return nil }

func (q *Queue) Name() string { return q.name }

func (q *Queue) Enqueue(ctx context.Context, body string, delay time.Duration) (string, error) {
	seq, err := q.client.Incr(ctx, q.keySeq).Result()
	if err != nil {
		return "", fmt.Errorf("redisq: allocate message id: %w", err)
	}
	id := strconv.FormatInt(seq, 10)

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.keyBodies, id, body)
	if delay > 0 {
		pipe.ZAdd(ctx, q.keyInvisible, redis.Z{
			Score:  float64(q.clock.Now().Add(delay).UnixNano()),
			Member: id,
		})
	} else {
		pipe.RPush(ctx, q.keyReady, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("redisq: enqueue: %w", err)
	}
	return id, nil
}

// requeueDue moves messages whose visibility deadline has passed from the
// invisible ZSET back to the front of the ready LIST.
func (q *Queue) requeueDue(ctx context.Context) error {
	now := strconv.FormatInt(q.clock.Now().UnixNano(), 10)
	due, err := q.client.ZRangeByScore(ctx, q.keyInvisible, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return fmt.Errorf("redisq: scan due messages: %w", err)
	}
	if len(due) == 0 {
		return nil
	}
	pipe := q.client.TxPipeline()
	for _, id := range due {
		pipe.ZRem(ctx, q.keyInvisible, id)
		pipe.LPush(ctx, q.keyReady, id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (q *Queue) Dequeue(ctx context.Context, max int, visibility time.Duration) ([]xclaim.QueuedMessage, error) {
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	if err := q.requeueDue(ctx); err != nil {
		return nil, err
	}

	deadline := float64(q.clock.Now().Add(visibility).UnixNano())
	out := make([]xclaim.QueuedMessage, 0, max)

	for len(out) < max {
		id, err := q.client.LPop(ctx, q.keyReady).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("redisq: pop ready message: %w", err)
		}

		body, err := q.client.HGet(ctx, q.keyBodies, id).Result()
		if errors.Is(err, redis.Nil) {
			// Body already deleted; drop the dangling id.
			continue
		}
		if err != nil {
			return out, fmt.Errorf("redisq: load message body: %w", err)
		}

		receipt := newReceipt()
		pipe := q.client.TxPipeline()
		deliveries := pipe.HIncrBy(ctx, q.keyDeliveries, id, 1)
		pipe.HSet(ctx, q.keyReceipts, id, receipt)
		pipe.ZAdd(ctx, q.keyInvisible, redis.Z{Score: deadline, Member: id})
		if _, err := pipe.Exec(ctx); err != nil {
			return out, fmt.Errorf("redisq: mark message in-flight: %w", err)
		}

		out = append(out, xclaim.QueuedMessage{
			ID:           id,
			Body:         body,
			DequeueCount: deliveries.Val(),
			Receipt:      receipt,
		})
	}
	return out, nil
}

func (q *Queue) Peek(ctx context.Context, max int) ([]string, error) {
	if err := q.requeueDue(ctx); err != nil {
		return nil, err
	}
	ids, err := q.client.LRange(ctx, q.keyReady, 0, int64(max-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisq: peek: %w", err)
	}
	if len(ids) == 0 {
		return []string{}, nil
	}
	vals, err := q.client.HMGet(ctx, q.keyBodies, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redisq: peek bodies: %w", err)
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (q *Queue) Delete(ctx context.Context, id, receipt string) error {
	current, err := q.client.HGet(ctx, q.keyReceipts, id).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("redisq: message %q not found", id)
	}
	if err != nil {
		return fmt.Errorf("redisq: load receipt: %w", err)
	}
	if current != receipt {
		return fmt.Errorf("redisq: stale receipt for message %q", id)
	}

	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.keyInvisible, id)
	pipe.LRem(ctx, q.keyReady, 0, id)
	pipe.HDel(ctx, q.keyBodies, id)
	pipe.HDel(ctx, q.keyDeliveries, id)
	pipe.HDel(ctx, q.keyReceipts, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisq: delete message %q: %w", id, err)
	}
	return nil
}

func (q *Queue) ApproximateCount(ctx context.Context) (int, error) {
	pipe := q.client.Pipeline()
	ready := pipe.LLen(ctx, q.keyReady)
	invisible := pipe.ZCard(ctx, q.keyInvisible)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redisq: queue depth: %w", err)
	}
	return int(ready.Val() + invisible.Val()), nil
}

// Close releases the Redis connection.
func (q *Queue) Close() error { return q.client.Close() }

func newReceipt() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
