package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"mediafusion/config"
	"mediafusion/internal/cache"
)

const (
	defaultRatePerSecond = 2.0
	defaultRateBurst     = 4
	defaultBreakerTrips  = 5
	defaultCooldown      = 60 * time.Second
	retryAttempts        = 3
)

// wrapped decorates a plugin with the shared middleware chain. Order per
// call: result cache, rate limiter, circuit breaker, bounded retry, per-call
// deadline.
type wrapped struct {
	inner    Scraper
	cache    *cache.Cache
	cacheTTL time.Duration
	timeout  time.Duration
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]Candidate]
}

// Wrap builds the middleware chain for a plugin from its config. A nil cache
// disables result caching but keeps the protective layers.
func Wrap(inner Scraper, cfg config.ScraperConfig, c *cache.Cache) Scraper {
	perSecond := cfg.RateLimitPerSecond
	if perSecond <= 0 {
		perSecond = defaultRatePerSecond
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}
	trips := cfg.BreakerFailures
	if trips <= 0 {
		trips = defaultBreakerTrips
	}
	cooldown := defaultCooldown
	if cfg.BreakerCooldownSecs > 0 {
		cooldown = time.Duration(cfg.BreakerCooldownSecs) * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[[]Candidate](gobreaker.Settings{
		Name: inner.Name(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(trips)
		},
		Timeout: cooldown,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[scraper] %s breaker %s -> %s", name, from, to)
		},
	})

	return &wrapped{
		inner:    inner,
		cache:    c,
		cacheTTL: cfg.CacheTTL(),
		timeout:  cfg.Timeout(),
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
		breaker:  breaker,
	}
}

func (w *wrapped) Name() string { return w.inner.Name() }

func (w *wrapped) Scrape(ctx context.Context, req Request) ([]Candidate, error) {
	cacheKey := fmt.Sprintf("scrape:%s:%s", w.inner.Name(), req.Key())

	if w.cache != nil {
		var cached []Candidate
		if err := w.cache.GetJSON(cacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, cache.ErrNotFound) {
			// Cache trouble is a miss, never a request failure.
			log.Printf("[scraper] %s cache read: %v", w.inner.Name(), err)
		}
	}

	candidates, err := retry.DoWithData(
		func() ([]Candidate, error) {
			if err := w.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: rate limiter: %v", ErrTransient, err)
			}
			return w.breaker.Execute(func() ([]Candidate, error) {
				callCtx, cancel := context.WithTimeout(ctx, w.timeout)
				defer cancel()
				return w.inner.Scrape(callCtx, req)
			})
		},
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// An open breaker or a permanent failure is not worth retrying.
			return errors.Is(err, ErrTransient)
		}),
	)
	if err != nil {
		return nil, err
	}

	if w.cache != nil {
		if err := w.cache.SetJSON(cacheKey, candidates, w.cacheTTL); err != nil {
			log.Printf("[scraper] %s cache write: %v", w.inner.Name(), err)
		}
	}
	return candidates, nil
}
