package market

import (
	"context"
	"time"

	"botdeck/backend/pkg/logger"
	"botdeck/backend/pkg/redis"
)

// CachedSource fronts another Source with a short-lived Redis cache
type CachedSource struct {
	next  Source
	redis *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

func NewCachedSource(next Source, redisClient *redis.Client, ttl time.Duration) *CachedSource {
	return &CachedSource{
		next:  next,
		redis: redisClient,
		ttl:   ttl,
		log:   logger.GetLogger().WithComponent("market_cache"),
	}
}

// Uncached returns the source behind the cache
func (s *CachedSource) Uncached() Source {
	return s.next
}

func (s *CachedSource) Quote(ctx context.Context, symbol string) (Quote, error) {
	key := redis.QuoteCacheKey(symbol)

	var cached Quote
	if err := s.redis.GetJSON(ctx, key, &cached); err == nil {
		return cached, nil
	}

	q, err := s.next.Quote(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	if err := s.redis.SetJSON(ctx, key, q, s.ttl); err != nil {
		s.log.Warnf("Failed to cache quote for %s: %v", symbol, err)
	}
	return q, nil
}

func (s *CachedSource) Quotes(ctx context.Context, symbol string) ([]Quote, error) {
	key := redis.VenueQuotesCacheKey(symbol)

	var cached []Quote
	if err := s.redis.GetJSON(ctx, key, &cached); err == nil {
		return cached, nil
	}

	quotes, err := s.next.Quotes(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := s.redis.SetJSON(ctx, key, quotes, s.ttl); err != nil {
		s.log.Warnf("Failed to cache venue quotes for %s: %v", symbol, err)
	}
	return quotes, nil
}
