package redis

import (
	"context"
	"math/rand"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/pathway-overlay/internal/domain/interactor"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

// Cache lookup outcomes reported to metrics.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Fetcher fetches interaction payloads.
type Fetcher interface {
	FetchInteractions(ctx context.Context, resource, diagramID string) (*interactor.Payload, error)
}

// PayloadCache is a read-through Fetcher: payloads are served from Redis
// when present and otherwise fetched from next and stored.  Concurrent
// misses for the same key share one upstream fetch, which runs detached from
// any single caller and is bounded by the fetch timeout; a caller whose
// context ends stops waiting without failing the others.  Redis failures
// degrade to a plain upstream fetch.
type PayloadCache struct {
	client       *Client
	next         Fetcher
	logger       logging.Logger
	metrics      *prometheus.OverlayMetrics
	prefix       string
	ttl          time.Duration
	fetchTimeout time.Duration
	group        singleflight.Group
}

type CacheOption func(*PayloadCache)

func WithPrefix(prefix string) CacheOption {
	return func(c *PayloadCache) { c.prefix = prefix }
}

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *PayloadCache) { c.ttl = ttl }
}

func WithMetrics(m *prometheus.OverlayMetrics) CacheOption {
	return func(c *PayloadCache) { c.metrics = m }
}

// WithFetchTimeout bounds a shared upstream fetch.  Non-positive values keep
// the default.
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *PayloadCache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// NewPayloadCache wraps next.
func NewPayloadCache(client *Client, next Fetcher, log logging.Logger, opts ...CacheOption) *PayloadCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &PayloadCache{
		client: client,
		next:   next,
		logger: log.Named("payload-cache"),
		prefix:       "overlay:",
		ttl:          30 * time.Minute,
		fetchTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the Redis key of a payload.
func (c *PayloadCache) Key(resource, diagramID string) string {
	return c.prefix + "payload:" + resource + ":" + diagramID
}

// jitterTTL spreads expiry by +/- 10%.
func (c *PayloadCache) jitterTTL() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitter := float64(c.ttl) * 0.1 * (rand.Float64()*2 - 1)
	return c.ttl + time.Duration(jitter)
}

// FetchInteractions implements Fetcher.
func (c *PayloadCache) FetchInteractions(ctx context.Context, resource, diagramID string) (*interactor.Payload, error) {
	key := c.Key(resource, diagramID)

	if p, ok := c.lookup(ctx, key); ok {
		return p, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		p, err := c.next.FetchInteractions(fctx, resource, diagramID)
		if err != nil {
			return nil, err
		}
		c.store(fctx, key, p)
		return p, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("shared upstream fetch", logging.String("key", key))
		}
		return res.Val.(*interactor.Payload), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *PayloadCache) lookup(ctx context.Context, key string) (*interactor.Payload, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.metrics.RecordPayloadCache(ResultMiss)
		return nil, false
	}
	if err != nil {
		c.metrics.RecordPayloadCache(ResultError)
		c.logger.Warn("payload cache read failed", logging.String("key", key), logging.Err(err))
		return nil, false
	}
	var p interactor.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		c.metrics.RecordPayloadCache(ResultError)
		c.logger.Warn("dropping undecodable cached payload", logging.String("key", key), logging.Err(err))
		c.client.Del(ctx, key)
		return nil, false
	}
	c.metrics.RecordPayloadCache(ResultHit)
	return &p, true
}

func (c *PayloadCache) store(ctx context.Context, key string, p *interactor.Payload) {
	data, err := json.Marshal(p)
	if err != nil {
		c.logger.Warn("payload not cacheable", logging.String("key", key), logging.Err(err))
		return
	}
	if err := c.client.Set(ctx, key, string(data), c.jitterTTL()).Err(); err != nil {
		c.logger.Warn("payload cache write failed", logging.String("key", key), logging.Err(err))
	}
}

// Invalidate removes the cached payload of resource and diagramID.
func (c *PayloadCache) Invalidate(ctx context.Context, resource, diagramID string) error {
	if err := c.client.Del(ctx, c.Key(resource, diagramID)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "payload cache invalidation failed")
	}
	return nil
}
