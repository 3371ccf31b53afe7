package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server    ServerSettings    `json:"server"`
	Scrapers  []ScraperConfig   `json:"scrapers"`
	Debrid    DebridSettings    `json:"debrid"`
	Metadata  MetadataSettings  `json:"metadata"`
	Cache     CacheSettings     `json:"cache"`
	Database  DatabaseSettings  `json:"database"`
	Ingest    IngestSettings    `json:"ingest"`
	Scheduler SchedulerSettings `json:"scheduler"`
	NZBVault  NZBVaultSettings  `json:"nzbVault"`
	Log       LogConfig         `json:"log"`
}

type ServerSettings struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	BaseURL string `json:"baseUrl"` // public URL prefix for generated links
	// RequestTimeoutSeconds bounds the aggregate stream request (default 45).
	RequestTimeoutSeconds int `json:"requestTimeoutSeconds"`
}

// RequestTimeout returns the aggregate per-request deadline.
func (s ServerSettings) RequestTimeout() time.Duration {
	if s.RequestTimeoutSeconds > 0 {
		return time.Duration(s.RequestTimeoutSeconds) * time.Second
	}
	return 45 * time.Second
}

// ScraperConfig configures one scraper plugin instance.
type ScraperConfig struct {
	Name    string `json:"name"`
	Type    string `json:"type"` // "torrentio", "torznab", "zilean", "htmltracker", "rss", "sportslive"
	URL     string `json:"url,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
	Options string `json:"options,omitempty"` // type-specific URL path options
	Enabled bool   `json:"enabled"`

	// Middleware knobs, zero means package default.
	TimeoutSeconds      int     `json:"timeoutSeconds,omitempty"`      // per-scraper deadline (default 30)
	CacheTTLMinutes     int     `json:"cacheTtlMinutes,omitempty"`     // result cache TTL
	RateLimitPerSecond  float64 `json:"rateLimitPerSecond,omitempty"`  // token bucket refill
	RateLimitBurst      int     `json:"rateLimitBurst,omitempty"`      // token bucket size
	BreakerFailures     int     `json:"breakerFailures,omitempty"`     // consecutive failures before open
	BreakerCooldownSecs int     `json:"breakerCooldownSecs,omitempty"` // open-state recovery timeout

	// ScheduleMinutes > 0 enrolls the scraper in background ingest.
	ScheduleMinutes int `json:"scheduleMinutes,omitempty"`

	Config map[string]string `json:"config,omitempty"` // scraper-specific extras
}

// Timeout returns the per-scraper deadline.
func (c ScraperConfig) Timeout() time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

// CacheTTL returns the scrape-result cache TTL.
func (c ScraperConfig) CacheTTL() time.Duration {
	if c.CacheTTLMinutes > 0 {
		return time.Duration(c.CacheTTLMinutes) * time.Minute
	}
	return 30 * time.Minute
}

// DebridSettings configures the provider abstraction.
type DebridSettings struct {
	Providers []DebridProviderSettings `json:"providers"`
	// TimeoutSeconds bounds any single provider call (default 15).
	TimeoutSeconds int `json:"timeoutSeconds"`
	// AvailabilityTTLHours controls availability record lifetime (default 168 = 7d).
	AvailabilityTTLHours int `json:"availabilityTtlHours"`
	// HubURL, when set, receives write-through positive availability updates.
	HubURL string `json:"hubUrl,omitempty"`
}

// Timeout returns the provider call deadline.
func (d DebridSettings) Timeout() time.Duration {
	if d.TimeoutSeconds > 0 {
		return time.Duration(d.TimeoutSeconds) * time.Second
	}
	return 15 * time.Second
}

// AvailabilityTTL returns the availability record lifetime.
func (d DebridSettings) AvailabilityTTL() time.Duration {
	if d.AvailabilityTTLHours > 0 {
		return time.Duration(d.AvailabilityTTLHours) * time.Hour
	}
	return 7 * 24 * time.Hour
}

type DebridProviderSettings struct {
	Provider string `json:"provider"` // "realdebrid", "alldebrid", "torbox", ...
	Enabled  bool   `json:"enabled"`
	APIKey   string `json:"apiKey,omitempty"`
	// OAuth device-code providers.
	ClientID string `json:"clientId,omitempty"`
	// Username/password providers (pikpak, seedr).
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

type MetadataSettings struct {
	TMDBAPIKey string `json:"tmdbApiKey"`
	TVDBAPIKey string `json:"tvdbApiKey"`
	Language   string `json:"language"`
	// TTLHours controls metadata cache lifetime (default 24).
	TTLHours int `json:"ttlHours"`
}

// TTL returns the metadata cache lifetime.
func (m MetadataSettings) TTL() time.Duration {
	if m.TTLHours > 0 {
		return time.Duration(m.TTLHours) * time.Hour
	}
	return 24 * time.Hour
}

type CacheSettings struct {
	Directory string `json:"directory"`
	// InMemory runs the cache without disk persistence (tests, ephemeral deploys).
	InMemory bool `json:"inMemory,omitempty"`
	// SweepIntervalMinutes controls the expired-entry sweep (default 10).
	SweepIntervalMinutes int `json:"sweepIntervalMinutes,omitempty"`
}

type DatabaseSettings struct {
	Path string `json:"path"`
}

// IngestSettings govern the scraper write path.
type IngestSettings struct {
	// AdultContentPatterns is a list of case-insensitive regexes; matching
	// streams are discarded at ingest.
	AdultContentPatterns []string `json:"adultContentPatterns,omitempty"`
	// MinVideoSizeBytes discards implausibly small video payloads (0 = off).
	MinVideoSizeBytes int64 `json:"minVideoSizeBytes,omitempty"`
	// WorkerPoolSize bounds CPU-bound parse work (default 4).
	WorkerPoolSize int `json:"workerPoolSize,omitempty"`
}

type SchedulerSettings struct {
	Enabled bool `json:"enabled"`
	// HeartbeatSeconds is the leader-lock refresh cadence (default 20; the
	// lock TTL is 3x this value).
	HeartbeatSeconds int `json:"heartbeatSeconds,omitempty"`
}

// Heartbeat returns the leader-lock refresh interval.
func (s SchedulerSettings) Heartbeat() time.Duration {
	if s.HeartbeatSeconds > 0 {
		return time.Duration(s.HeartbeatSeconds) * time.Second
	}
	return 20 * time.Second
}

type NZBVaultSettings struct {
	Backend         string `json:"backend"` // "local" or "s3"
	Directory       string `json:"directory,omitempty"`
	Bucket          string `json:"bucket,omitempty"`
	PublicURLPrefix string `json:"publicUrlPrefix,omitempty"`
}

type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`    // MB per file
	MaxBackups int    `json:"maxBackups"` // old files to keep
	MaxAge     int    `json:"maxAge"`     // days
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{Host: "0.0.0.0", Port: 8585, RequestTimeoutSeconds: 45},
		Scrapers: []ScraperConfig{
			{Name: "Torrentio", Type: "torrentio", Enabled: true, Options: "sort=qualitysize"},
			{Name: "Zilean", Type: "zilean", Enabled: false},
		},
		Debrid: DebridSettings{
			Providers:            []DebridProviderSettings{},
			TimeoutSeconds:       15,
			AvailabilityTTLHours: 168,
		},
		Metadata:  MetadataSettings{Language: "en", TTLHours: 24},
		Cache:     CacheSettings{Directory: "cache", SweepIntervalMinutes: 10},
		Database:  DatabaseSettings{Path: "cache/streams.db"},
		Ingest:    IngestSettings{WorkerPoolSize: 4},
		Scheduler: SchedulerSettings{Enabled: true, HeartbeatSeconds: 20},
		NZBVault:  NZBVaultSettings{Backend: "local", Directory: "data/nzb"},
		Log: LogConfig{
			File:       "cache/logs/mediafusion.log",
			Level:      "info",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures the parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings from disk or creates defaults if missing. Missing
// sections are backfilled from defaults so older files keep working.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return Settings{}, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, err
	}
	applyDefaults(&settings)
	return settings, nil
}

// Save writes settings atomically (write temp, rename).
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

func applyDefaults(s *Settings) {
	defaults := DefaultSettings()
	if s.Server.Port == 0 {
		s.Server.Port = defaults.Server.Port
	}
	if s.Server.RequestTimeoutSeconds == 0 {
		s.Server.RequestTimeoutSeconds = defaults.Server.RequestTimeoutSeconds
	}
	if s.Debrid.TimeoutSeconds == 0 {
		s.Debrid.TimeoutSeconds = defaults.Debrid.TimeoutSeconds
	}
	if s.Debrid.AvailabilityTTLHours == 0 {
		s.Debrid.AvailabilityTTLHours = defaults.Debrid.AvailabilityTTLHours
	}
	if s.Metadata.TTLHours == 0 {
		s.Metadata.TTLHours = defaults.Metadata.TTLHours
	}
	if strings.TrimSpace(s.Cache.Directory) == "" {
		s.Cache.Directory = defaults.Cache.Directory
	}
	if s.Cache.SweepIntervalMinutes == 0 {
		s.Cache.SweepIntervalMinutes = defaults.Cache.SweepIntervalMinutes
	}
	if strings.TrimSpace(s.Database.Path) == "" {
		s.Database.Path = defaults.Database.Path
	}
	if s.Ingest.WorkerPoolSize == 0 {
		s.Ingest.WorkerPoolSize = defaults.Ingest.WorkerPoolSize
	}
	if s.Scheduler.HeartbeatSeconds == 0 {
		s.Scheduler.HeartbeatSeconds = defaults.Scheduler.HeartbeatSeconds
	}
	if strings.TrimSpace(s.NZBVault.Backend) == "" {
		s.NZBVault = defaults.NZBVault
	}
}
