package debrid

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/singleflight"

	"mediafusion/config"
)

// ResolveState tracks one (provider, hash) through the resolution lifecycle.
type ResolveState string

const (
	StateInit        ResolveState = "INIT"
	StateSubmitting  ResolveState = "SUBMITTING"
	StateQueued      ResolveState = "QUEUED"
	StateDownloading ResolveState = "DOWNLOADING"
	StateReady       ResolveState = "READY"
	StateResolved    ResolveState = "RESOLVED"
	StateError       ResolveState = "ERROR"
)

// errorBackoff is how long an errored (provider, hash) stays parked before a
// new attempt is allowed.
const errorBackoff = 5 * time.Minute

// staleStateAfter bounds the state table: entries untouched this long are
// dropped on the next resolve.
const staleStateAfter = time.Hour

type resolution struct {
	State     ResolveState
	Err       error
	RetryAt   time.Time // set in ERROR
	UpdatedAt time.Time
}

// Resolver turns (provider, hash) into a direct playback URL. Concurrent
// requests for the same pair share one in-flight resolution; errored pairs
// are parked with a backoff so a broken torrent cannot hammer the provider.
type Resolver struct {
	availability *AvailabilityTracker
	timeout      time.Duration

	group singleflight.Group

	mu     sync.Mutex
	states map[string]*resolution
}

func NewResolver(availability *AvailabilityTracker, cfg config.DebridSettings) *Resolver {
	return &Resolver{
		availability: availability,
		timeout:      cfg.Timeout(),
		states:       make(map[string]*resolution),
	}
}

func resolveKey(provider, hash string) string {
	return provider + ":" + strings.ToLower(hash)
}

// State reports the current lifecycle state for UI listing. Unknown pairs
// are INIT.
func (r *Resolver) State(provider, hash string) ResolveState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.states[resolveKey(provider, hash)]; ok {
		return res.State
	}
	return StateInit
}

func (r *Resolver) setState(key string, state ResolveState, mutate func(*resolution)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.states[key]
	if !ok {
		res = &resolution{}
		r.states[key] = res
	}
	res.State = state
	res.UpdatedAt = time.Now()
	if mutate != nil {
		mutate(res)
	}
}

// Resolve returns a direct URL for the stream. The caller's context bounds
// the whole operation; each provider call additionally gets the provider
// timeout.
func (r *Resolver) Resolve(ctx context.Context, provider Provider, hash, magnet, fileHint string) (string, error) {
	hash = strings.ToLower(hash)
	key := resolveKey(provider.Name(), hash)

	// Provider URLs are single-use, so a RESOLVED pair goes back to the
	// provider on the next request; only concurrent callers share a URL,
	// via the singleflight group. An errored pair stays parked until its
	// backoff elapses.
	r.mu.Lock()
	r.pruneLocked()
	if res, ok := r.states[key]; ok && res.State == StateError {
		if time.Now().Before(res.RetryAt) {
			err := res.Err
			r.mu.Unlock()
			return "", err
		}
		res.State = StateInit
	}
	r.mu.Unlock()

	url, err, _ := r.group.Do(key, func() (interface{}, error) {
		return r.resolveOnce(ctx, provider, hash, magnet, fileHint, key)
	})
	if err != nil {
		return "", err
	}
	return url.(string), nil
}

func (r *Resolver) resolveOnce(ctx context.Context, provider Provider, hash, magnet, fileHint, key string) (string, error) {
	available, err := r.availability.Check(ctx, provider, []string{hash})
	if err != nil {
		log.Printf("[resolver] %s availability check: %v", provider.Name(), err)
	}

	if !available[hash] {
		if err := r.submit(ctx, provider, hash, magnet, key); err != nil {
			r.fail(key, err)
			return "", err
		}
		if err := r.awaitReady(ctx, provider, hash, key); err != nil {
			r.fail(key, err)
			return "", err
		}
	} else {
		r.setState(key, StateReady, nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	url, err := provider.Resolve(callCtx, hash, fileHint)
	if err != nil {
		r.fail(key, err)
		return "", err
	}

	r.setState(key, StateResolved, func(res *resolution) {
		res.Err = nil
	})
	r.availability.MarkAvailable(ctx, provider.Name(), hash)
	return url, nil
}

func (r *Resolver) submit(ctx context.Context, provider Provider, hash, magnet, key string) error {
	r.setState(key, StateSubmitting, nil)
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if _, err := provider.Submit(callCtx, hash, magnet); err != nil {
		return fmt.Errorf("submit to %s: %w", provider.Name(), err)
	}
	r.setState(key, StateQueued, nil)
	return nil
}

// awaitReady polls the provider until the torrent reaches READY, advancing
// QUEUED→DOWNLOADING→READY as the cloud download progresses.
func (r *Resolver) awaitReady(ctx context.Context, provider Provider, hash, key string) error {
	return retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			items, err := provider.ListActive(callCtx)
			if err != nil {
				return err
			}
			// Providers without persistent cloud state list nothing; the
			// submit already succeeded, so move straight to resolve.
			if len(items) == 0 {
				r.setState(key, StateReady, nil)
				return nil
			}
			for _, item := range items {
				if !strings.EqualFold(item.Hash, hash) {
					continue
				}
				switch item.Status {
				case StatusReady:
					r.setState(key, StateReady, nil)
					return nil
				case StatusDownloading:
					r.setState(key, StateDownloading, nil)
				case StatusFailed:
					return fmt.Errorf("%w: cloud download failed", ErrContent)
				}
				return fmt.Errorf("%w: %s at %.0f%%", ErrNotReady, item.Status, item.Progress)
			}
			return fmt.Errorf("%w: not in active list", ErrNotReady)
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(2*time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrNotReady)
		}),
	)
}

// pruneLocked drops entries that have not moved in staleStateAfter. The
// caller holds r.mu.
func (r *Resolver) pruneLocked() {
	cutoff := time.Now().Add(-staleStateAfter)
	for key, res := range r.states {
		if res.UpdatedAt.Before(cutoff) {
			delete(r.states, key)
		}
	}
}

func (r *Resolver) fail(key string, err error) {
	r.setState(key, StateError, func(res *resolution) {
		res.Err = err
		res.RetryAt = time.Now().Add(errorBackoff)
	})
}

// ErrorAssetPath maps a provider failure to the static asset the client
// plays instead of the stream.
func ErrorAssetPath(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return "/static/exceptions/token_expired.mp4"
	case errors.Is(err, ErrQuota):
		return "/static/exceptions/quota_exceeded.mp4"
	case errors.Is(err, ErrContent):
		return "/static/exceptions/content_unavailable.mp4"
	case errors.Is(err, ErrNotReady):
		return "/static/exceptions/still_downloading.mp4"
	default:
		return "/static/exceptions/provider_error.mp4"
	}
}
