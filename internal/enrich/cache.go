package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appconfig "rektflow/config"
	"rektflow/internal/model"
	"rektflow/logger"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	result    model.EnrichmentResult
	expiresAt time.Time
}

// Cache fronts a Provider with per-metric TTL caching. Concurrent requests
// for the same (symbol, kind) pair are collapsed into one upstream call via
// singleflight. Failed lookups are cached as absent results for the full
// TTL, so one broken symbol cannot hammer the upstream API.
type Cache struct {
	provider Provider
	ttl      map[model.MetricKind]time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry

	group singleflight.Group
	log   *logger.Log
	now   func() time.Time
}

func NewCache(provider Provider, ttlCfg appconfig.CacheTTLConfig) *Cache {
	return &Cache{
		provider: provider,
		ttl: map[model.MetricKind]time.Duration{
			model.MetricOpenInterestDelta: time.Duration(ttlCfg.OpenInterestDeltaSeconds) * time.Second,
			model.MetricFundingRate:       time.Duration(ttlCfg.FundingRateSeconds) * time.Second,
		},
		entries: make(map[string]cacheEntry),
		log:     logger.GetLogger(),
		now:     time.Now,
	}
}

// Get returns the cached metric for a symbol, fetching from the provider on
// a miss or expiry. The returned result may be absent; that is not an
// error. Get only returns an error for unknown metric kinds or a cancelled
// context.
func (c *Cache) Get(ctx context.Context, symbol string, kind model.MetricKind) (model.EnrichmentResult, error) {
	ttl, ok := c.ttl[kind]
	if !ok {
		return model.EnrichmentResult{}, fmt.Errorf("enrich: unknown metric kind %q", kind)
	}

	key := string(kind) + ":" + symbol

	c.mu.RLock()
	e, hit := c.entries[key]
	c.mu.RUnlock()
	if hit && c.now().Before(e.expiresAt) {
		return e.result, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// re-check under the flight: another caller may have refreshed
		// the entry while this one waited
		c.mu.RLock()
		e, hit := c.entries[key]
		c.mu.RUnlock()
		if hit && c.now().Before(e.expiresAt) {
			return e.result, nil
		}

		result := c.fetch(ctx, symbol, kind)
		if ctx.Err() != nil {
			return model.EnrichmentResult{}, ctx.Err()
		}

		c.mu.Lock()
		c.entries[key] = cacheEntry{result: result, expiresAt: c.now().Add(ttl)}
		c.mu.Unlock()
		return result, nil
	})
	if err != nil {
		return model.EnrichmentResult{}, err
	}
	return v.(model.EnrichmentResult), nil
}

func (c *Cache) fetch(ctx context.Context, symbol string, kind model.MetricKind) model.EnrichmentResult {
	var (
		value float64
		err   error
	)
	switch kind {
	case model.MetricOpenInterestDelta:
		value, err = c.provider.OpenInterestDelta(ctx, symbol)
	case model.MetricFundingRate:
		value, err = c.provider.FundingRate(ctx, symbol)
	}

	result := model.EnrichmentResult{Kind: kind, FetchedAt: c.now()}
	if err != nil {
		log := c.log.WithComponent("enrich_cache").WithFields(logger.Fields{
			"symbol": symbol,
			"metric": string(kind),
		})
		if errors.Is(err, ErrNoData) {
			log.Debug("no data from enrichment provider, caching absent result")
		} else {
			log.WithError(err).Warn("enrichment lookup failed, caching absent result")
		}
		return result
	}

	result.Value = &value
	return result
}
