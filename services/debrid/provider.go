// Package debrid is the uniform contract over heterogeneous debrid backends:
// batch availability checks, idempotent magnet submission, and resolution of
// an info-hash into a direct playback URL. Providers register themselves via
// init; the resolver and availability tracker sit in front of every call.
package debrid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"mediafusion/config"
)

// Provider failure classes. Providers wrap these with %w so the resolver can
// pick the right error asset and decide retryability.
var (
	// ErrAuth means the provider rejected the account credentials.
	ErrAuth = errors.New("provider authentication failed")
	// ErrQuota means the account hit a rate or traffic limit.
	ErrQuota = errors.New("provider quota exceeded")
	// ErrContent means the provider refused or lost this torrent.
	ErrContent = errors.New("content unavailable on provider")
	// ErrNotReady means the torrent is still downloading into the cloud.
	ErrNotReady = errors.New("torrent not ready")
)

// JobStatus is the provider-agnostic view of a cloud download.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusDownloading JobStatus = "downloading"
	StatusReady       JobStatus = "ready"
	StatusFailed      JobStatus = "failed"
)

// ActiveItem describes one in-flight or finished cloud download.
type ActiveItem struct {
	Hash     string    `json:"hash"`
	Name     string    `json:"name,omitempty"`
	Status   JobStatus `json:"status"`
	Progress float64   `json:"progress"` // 0..100
}

// Provider is one debrid backend.
type Provider interface {
	Name() string
	// Check reports cached availability per info-hash. Missing hashes mean
	// unknown, not unavailable.
	Check(ctx context.Context, hashes []string) (map[string]bool, error)
	// Submit adds the magnet to the provider's cloud and returns a job id.
	// Submitting an already-known hash is idempotent.
	Submit(ctx context.Context, hash, magnet string) (string, error)
	// Resolve returns a direct URL for a ready torrent. fileHint selects a
	// file inside multi-file torrents (filename or index, provider-specific).
	Resolve(ctx context.Context, hash, fileHint string) (string, error)
	// ListActive lists the account's cloud downloads.
	ListActive(ctx context.Context) ([]ActiveItem, error)
}

// Factory builds a provider from its settings entry.
type Factory func(cfg config.DebridProviderSettings, client *http.Client) (Provider, error)

var (
	providerMu  sync.RWMutex
	providerReg = make(map[string]Factory)
)

// RegisterProvider registers a backend factory. Called from provider init
// functions.
func RegisterProvider(name string, factory Factory) {
	providerMu.Lock()
	defer providerMu.Unlock()
	if _, exists := providerReg[name]; exists {
		panic(fmt.Sprintf("debrid provider %q registered twice", name))
	}
	providerReg[name] = factory
}

// NewFromConfig instantiates the provider a settings entry names.
func NewFromConfig(cfg config.DebridProviderSettings, client *http.Client) (Provider, error) {
	providerMu.RLock()
	factory, ok := providerReg[cfg.Provider]
	providerMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown debrid provider %q (have %v)", cfg.Provider, RegisteredProviders())
	}
	return factory(cfg, client)
}

// RegisteredProviders lists the known backend names, sorted.
func RegisteredProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()
	names := make([]string, 0, len(providerReg))
	for name := range providerReg {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
