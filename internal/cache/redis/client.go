// Package redis caches listing extraction results so re-syncing the same
// source does not spend model quota twice.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/estatedesk/backend/pkg/logger"
)

type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetExtraction(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal extraction: %w", err)
	}

	if err := c.client.Set(ctx, "extraction:"+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set extraction cache: %w", err)
	}

	logger.Debug("Extraction cached", zap.String("key", key))
	return nil
}

func (c *Client) GetExtraction(ctx context.Context, key string, out interface{}) (bool, error) {
	data, err := c.client.Get(ctx, "extraction:"+key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get extraction cache: %w", err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal extraction: %w", err)
	}

	logger.Debug("Extraction cache hit", zap.String("key", key))
	return true, nil
}
