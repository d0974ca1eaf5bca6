package records

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	faqCacheKey        = "storage:faqs"
	defaultFAQCacheTTL = 5 * time.Minute
)

// FAQCache is a read-through redis cache in front of a FAQSource.
//
// Redis failures never fail a read; the cache falls back to the source.
type FAQCache struct {
	source FAQSource
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewFAQCache wraps source with a redis-backed cache.
func NewFAQCache(source FAQSource, client *redis.Client, ttl time.Duration) *FAQCache {
	if source == nil {
		panic("records: faq source cannot be nil")
	}
	if client == nil {
		panic("records: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultFAQCacheTTL
	}
	return &FAQCache{
		source: source,
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("storage.internal.records.faq_cache"),
	}
}

// ListFAQs returns cached FAQs when present and refreshes the cache otherwise.
func (c *FAQCache) ListFAQs(ctx context.Context) ([]FAQ, error) {
	ctx, span := c.tracer.Start(ctx, "records.list_faqs")
	defer span.End()

	data, err := c.redis.Get(ctx, faqCacheKey).Bytes()
	switch {
	case err == nil:
		var faqs []FAQ
		if jsonErr := json.Unmarshal(data, &faqs); jsonErr == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return faqs, nil
		}
	case !errors.Is(err, redis.Nil):
		span.RecordError(err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	faqs, err := c.source.ListFAQs(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if encoded, err := json.Marshal(faqs); err == nil {
		if err := c.redis.Set(ctx, faqCacheKey, encoded, c.ttl).Err(); err != nil {
			span.RecordError(err)
		}
	}
	return faqs, nil
}

// Invalidate drops the cached FAQ list.
func (c *FAQCache) Invalidate(ctx context.Context) error {
	return c.redis.Del(ctx, faqCacheKey).Err()
}
