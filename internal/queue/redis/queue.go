// Package redis implements the enrichment queue as a Redis list so several
// service replicas can share one backlog.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
)

// DefaultListKey is the list tasks are pushed to.
const DefaultListKey = "airs:enrichment:tasks"

const (
	pollTimeout       = 2 * time.Second
	connectionTimeout = 5 * time.Second
)

// ErrEmptyAddress is returned when no Redis address is configured.
var ErrEmptyAddress = errors.New("redis address is required")

// Config holds Redis connection settings.
type Config struct {
	Address  string
	Password string
	DB       int
	ListKey  string
}

// Queue pushes with LPUSH and pops with BRPOP, giving FIFO order.
type Queue struct {
	client *redis.Client
	key    string
	poll   time.Duration
}

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// New wraps an existing client.
func New(client *redis.Client, key string) *Queue {
	if key == "" {
		key = DefaultListKey
	}
	return &Queue{client: client, key: key, poll: pollTimeout}
}

// Enqueue appends task to the list.
func (q *Queue) Enqueue(ctx context.Context, task crawler.EnrichmentTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// Dequeue blocks until a task arrives or ctx ends. Undecodable entries are
// discarded with an error so a poison message cannot wedge the consumer.
func (q *Queue) Dequeue(ctx context.Context) (crawler.EnrichmentTask, error) {
	for {
		if err := ctx.Err(); err != nil {
			return crawler.EnrichmentTask{}, fmt.Errorf("dequeue canceled: %w", err)
		}
		res, err := q.client.BRPop(ctx, q.poll, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return crawler.EnrichmentTask{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
			}
			return crawler.EnrichmentTask{}, fmt.Errorf("redis brpop: %w", err)
		}
		// res is [key, value].
		var task crawler.EnrichmentTask
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			return crawler.EnrichmentTask{}, fmt.Errorf("decode task: %w", err)
		}
		return task, nil
	}
}

// Len reports queued tasks.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen: %w", err)
	}
	return n, nil
}

// Close releases the client.
func (q *Queue) Close() error {
	return q.client.Close()
}
