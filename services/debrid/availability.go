package debrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"mediafusion/config"
	"mediafusion/internal/cache"
)

// AvailabilityTracker fronts every provider Check with a shared cache.
// Reads hit the cache first; only misses reach the provider; positive
// answers are written back. When a hub endpoint is configured, positives are
// also pushed there so peer instances skip the provider call entirely.
type AvailabilityTracker struct {
	cache  *cache.Cache
	ttl    time.Duration
	hubURL string
	client *http.Client
}

func NewAvailabilityTracker(c *cache.Cache, cfg config.DebridSettings, client *http.Client) *AvailabilityTracker {
	return &AvailabilityTracker{
		cache:  c,
		ttl:    cfg.AvailabilityTTL(),
		hubURL: strings.TrimRight(cfg.HubURL, "/"),
		client: client,
	}
}

func availabilityKey(provider, hash string) string {
	return fmt.Sprintf("avail:%s:%s", provider, strings.ToLower(hash))
}

// Check reports availability for the given hashes, consulting the cache
// before the provider. The result covers every requested hash; hashes the
// provider does not answer for come back false.
func (t *AvailabilityTracker) Check(ctx context.Context, provider Provider, hashes []string) (map[string]bool, error) {
	result := make(map[string]bool, len(hashes))
	var misses []string

	for _, hash := range hashes {
		hash = strings.ToLower(hash)
		if _, seen := result[hash]; seen {
			continue
		}
		cached, err := t.cache.Get(availabilityKey(provider.Name(), hash))
		if err == nil {
			result[hash] = string(cached) == "1"
			continue
		}
		if !errors.Is(err, cache.ErrNotFound) {
			log.Printf("[availability] cache read %s: %v", hash, err)
		}
		result[hash] = false
		misses = append(misses, hash)
	}
	if len(misses) == 0 {
		return result, nil
	}

	fresh, err := provider.Check(ctx, misses)
	if err != nil {
		// Cached knowledge still stands; the misses just stay unknown.
		return result, fmt.Errorf("check %s: %w", provider.Name(), err)
	}

	var positives []string
	for _, hash := range misses {
		available := fresh[hash]
		result[hash] = available
		if !available {
			continue
		}
		positives = append(positives, hash)
		if err := t.cache.Set(availabilityKey(provider.Name(), hash), []byte("1"), t.ttl); err != nil {
			log.Printf("[availability] cache write %s: %v", hash, err)
		}
	}
	if len(positives) > 0 {
		t.syncHub(ctx, provider.Name(), positives)
	}
	return result, nil
}

// MarkAvailable records a positive observation outside of Check, e.g. after
// a successful resolve.
func (t *AvailabilityTracker) MarkAvailable(ctx context.Context, provider, hash string) {
	if err := t.cache.Set(availabilityKey(provider, hash), []byte("1"), t.ttl); err != nil {
		log.Printf("[availability] cache write %s: %v", hash, err)
	}
	t.syncHub(ctx, provider, []string{strings.ToLower(hash)})
}

// syncHub pushes positive availability to the configured peer hub. Failures
// are logged only; the hub is an optimization, never a dependency.
func (t *AvailabilityTracker) syncHub(ctx context.Context, provider string, hashes []string) {
	if t.hubURL == "" {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"provider": provider,
		"hashes":   hashes,
	})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.hubURL+"/availability", bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		log.Printf("[availability] hub sync: %v", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("[availability] hub sync returned %d", resp.StatusCode)
	}
}

// Import records availability pushed by a peer hub.
func (t *AvailabilityTracker) Import(provider string, hashes []string) {
	for _, hash := range hashes {
		if err := t.cache.Set(availabilityKey(provider, hash), []byte("1"), t.ttl); err != nil {
			log.Printf("[availability] import %s: %v", hash, err)
		}
	}
}
