package clubsite

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PreviewCache shares rendered preview pages between instances through Redis.
type PreviewCache struct {
	client *redis.Client
	ttl    time.Duration
}

// connectionTimeout bounds the startup ping.
const connectionTimeout = 5 * time.Second

// NewPreviewCache wraps an existing client. ttl defaults to one hour.
func NewPreviewCache(client *redis.Client, ttl time.Duration) *PreviewCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &PreviewCache{client: client, ttl: ttl}
}

// OpenPreviewCache connects to the Redis server at rawURL and verifies the
// connection.
func OpenPreviewCache(rawURL string) (*PreviewCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewPreviewCache(client, time.Hour), nil
}

func previewKey(slug string) string {
	return "og:" + slug
}

// Get returns the cached page for slug when it was rendered from the given
// revision of the item.
func (p *PreviewCache) Get(ctx context.Context, slug, version string) (string, bool, error) {
	vals, err := p.client.HMGet(ctx, previewKey(slug), "version", "page").Result()
	if err != nil {
		return "", false, err
	}
	cached, _ := vals[0].(string)
	page, ok := vals[1].(string)
	if !ok || cached != version {
		return "", false, nil
	}
	return page, true, nil
}

// Set stores a page rendered from the given revision of slug.
func (p *PreviewCache) Set(ctx context.Context, slug, version, page string) error {
	key := previewKey(slug)
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "version", version, "page", page)
		pipe.Expire(ctx, key, p.ttl)
		return nil
	})
	return err
}

// Evict drops cached pages.
func (p *PreviewCache) Evict(ctx context.Context, slugs ...string) error {
	if len(slugs) == 0 {
		return nil
	}
	keys := make([]string, len(slugs))
	for i, s := range slugs {
		keys[i] = previewKey(s)
	}
	return p.client.Del(ctx, keys...).Err()
}

// Close closes the Redis client.
func (p *PreviewCache) Close() error {
	return p.client.Close()
}
