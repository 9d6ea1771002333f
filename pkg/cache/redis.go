package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mikeboe/market-research/pkg/scrape"
)

const (
	DefaultTTL    = 24 * time.Hour
	DefaultPrefix = "market-research:page:"
)

// PageCache stores fetched pages in Redis so repeated runs over the same
// sources skip the network.
type PageCache struct {
	client *redis.Client
	TTL    time.Duration
	Prefix string
}

func NewPageCache(client *redis.Client) *PageCache {
	return &PageCache{client: client, TTL: DefaultTTL, Prefix: DefaultPrefix}
}

// Connect parses a redis:// URL and verifies the server is reachable.
func Connect(ctx context.Context, url string) (*PageCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	return NewPageCache(client), nil
}

func (c *PageCache) key(key string) string {
	sum := sha256.Sum256([]byte(key))
	return c.Prefix + hex.EncodeToString(sum[:])
}

// Get returns the cached page for key. A miss is not an error.
func (c *PageCache) Get(ctx context.Context, key string) (scrape.Page, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return scrape.Page{}, false, nil
	}
	if err != nil {
		return scrape.Page{}, false, fmt.Errorf("cache get: %w", err)
	}

	var page scrape.Page
	if err := json.Unmarshal(data, &page); err != nil {
		return scrape.Page{}, false, fmt.Errorf("cache decode: %w", err)
	}
	return page, true, nil
}

func (c *PageCache) Put(ctx context.Context, key string, page scrape.Page) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.key(key), data, c.TTL).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *PageCache) Close() error {
	return c.client.Close()
}
