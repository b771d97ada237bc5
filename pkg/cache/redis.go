package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/reimbursement-portal-api/pkg/config"
)

const dialTimeout = 5 * time.Second

// Client is the redis connection backing the request lookup cache. It also
// serves as a readiness check.
type Client struct {
	*redis.Client
}

// NewRedis connects to redis and verifies the connection with one ping.
// Callers treat an error as "cache disabled" rather than fatal.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Client{Client: client}, nil
}

// PingContext reports whether redis still answers.
func (c *Client) PingContext(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
