// Package scraper discovers stream candidates from external sources. Each
// plugin speaks one upstream protocol; the orchestrator fans a request out
// across every enabled plugin behind a shared middleware chain (cache, rate
// limit, circuit breaker, retry, deadline).
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"mediafusion/config"
	"mediafusion/models"
)

// Classified failure sentinels. Wrap them with %w so the middleware can
// decide retry and breaker behavior by class.
var (
	// ErrTransient marks rate limits, timeouts and 5xx responses; safe to
	// retry against the same source.
	ErrTransient = errors.New("transient source error")
	// ErrPermanent marks auth failures and contract changes; retrying is
	// pointless until config changes.
	ErrPermanent = errors.New("permanent source error")
)

// Request identifies what to scrape for.
type Request struct {
	MediaExternalID string
	Kind            models.MediaKind
	Title           string // cleaned title, for sources without id lookup
	Year            int
	Season          int // 0 for movies
	Episode         int
}

// Key renders the cache key component identifying this request.
func (r Request) Key() string {
	if r.Season > 0 {
		return fmt.Sprintf("%s:%s:%d:%d", r.Kind, r.MediaExternalID, r.Season, r.Episode)
	}
	return fmt.Sprintf("%s:%s", r.Kind, r.MediaExternalID)
}

// Candidate is one raw stream a scraper found, prior to parsing and
// persistence.
type Candidate struct {
	Title        string                   `json:"title"` // raw release name
	InfoHash     string                   `json:"infoHash"`
	Magnet       string                   `json:"magnet,omitempty"`
	PayloadKind  models.StreamPayloadKind `json:"payloadKind,omitempty"`
	PayloadRef   string                   `json:"payloadRef,omitempty"`
	SizeBytes    int64                    `json:"sizeBytes,omitempty"`
	Seeders      *int                     `json:"seeders,omitempty"`
	Trackers     []string                 `json:"trackers,omitempty"`
	Languages    []string                 `json:"languages,omitempty"`
	Uploader     string                   `json:"uploader,omitempty"`
	Source       string                   `json:"source"`
	ExtraSources []string                 `json:"extraSources,omitempty"`
	FileIndex    *int                     `json:"fileIndex,omitempty"`
}

// Scraper is a pluggable candidate source.
type Scraper interface {
	Name() string
	Scrape(ctx context.Context, req Request) ([]Candidate, error)
}

// Factory builds a scraper from its config entry. The http.Client is shared
// so connection pools and proxies are set up once.
type Factory func(cfg config.ScraperConfig, client *http.Client) (Scraper, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// RegisterType registers a plugin factory under a config type name. Called
// from plugin init functions.
func RegisterType(typeName string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[typeName]; exists {
		panic(fmt.Sprintf("scraper type %q registered twice", typeName))
	}
	registry[typeName] = factory
}

// NewFromConfig instantiates the scraper a config entry names.
func NewFromConfig(cfg config.ScraperConfig, client *http.Client) (Scraper, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown scraper type %q (have %v)", cfg.Type, RegisteredTypes())
	}
	return factory(cfg, client)
}

// RegisteredTypes lists the known plugin type names, sorted.
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
