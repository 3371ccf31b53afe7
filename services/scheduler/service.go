// Package scheduler runs background scrapes on a cadence. Each scraper with a
// schedule gets its own job; jobs only do work on the node currently holding
// the leader lock, so running several replicas does not multiply upstream
// traffic.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"mediafusion/config"
	"mediafusion/internal/cache"
	"mediafusion/internal/leader"
	"mediafusion/models"
	"mediafusion/services/scraper"
	"mediafusion/services/store"
)

// defaultRecentLimit bounds how many media a scheduled run re-scrapes.
const defaultRecentLimit = 50

// Service owns the gocron scheduler and the leader lock lifecycle.
type Service struct {
	configManager *config.Manager
	store         *store.Store
	ingestor      *scraper.Ingestor
	cache         *cache.Cache
	lock          *leader.Lock
	httpc         *http.Client

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	cron    gocron.Scheduler
	jobs    map[string]scraper.Scraper
}

func NewService(cm *config.Manager, st *store.Store, ing *scraper.Ingestor, c *cache.Cache, lock *leader.Lock, httpc *http.Client) *Service {
	return &Service{
		configManager: cm,
		store:         st,
		ingestor:      ing,
		cache:         c,
		lock:          lock,
		httpc:         httpc,
		jobs:          make(map[string]scraper.Scraper),
	}
}

// Start builds one job per scheduled scraper and begins the leader heartbeat.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	settings, err := s.configManager.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !settings.Scheduler.Enabled {
		log.Println("[scheduler] disabled by config")
		return nil
	}

	cron, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	s.cron = cron

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	scheduled := 0
	for _, cfg := range settings.Scrapers {
		if !cfg.Enabled || cfg.ScheduleMinutes <= 0 {
			continue
		}
		plugin, err := scraper.NewFromConfig(cfg, s.httpc)
		if err != nil {
			log.Printf("[scheduler] skipping scraper %s: %v", cfg.Name, err)
			continue
		}
		wrapped := scraper.Wrap(plugin, cfg, s.cache)
		s.jobs[cfg.Name] = wrapped

		name := cfg.Name
		_, err = s.cron.NewJob(
			gocron.DurationJob(time.Duration(cfg.ScheduleMinutes)*time.Minute),
			gocron.NewTask(func() { s.runScraper(runCtx, name, wrapped) }),
			gocron.WithName("scrape-"+name),
		)
		if err != nil {
			log.Printf("[scheduler] job for %s: %v", name, err)
			continue
		}
		scheduled++
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.lock.Run(runCtx)
	}()

	s.cron.Start()
	s.running = true
	log.Printf("[scheduler] started, %d scraper job(s) scheduled, node %s", scheduled, s.lock.NodeID())
	return nil
}

// Stop shuts the job runner down and releases the leader lock.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}

	s.cancel()
	if err := s.cron.Shutdown(); err != nil {
		log.Printf("[scheduler] shutdown: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Println("[scheduler] stopped")
	case <-ctx.Done():
		log.Println("[scheduler] stopped (timeout)")
	}

	s.running = false
	return nil
}

// RunNow triggers a single scraper's scheduled run immediately, regardless of
// cadence. Leadership still gates the work.
func (s *Service) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no scheduled scraper named %q", name)
	}
	s.runScraper(ctx, name, job)
	return nil
}

// runScraper re-scrapes recently active media through one plugin and feeds
// the results to the ingest path.
func (s *Service) runScraper(ctx context.Context, name string, plugin scraper.Scraper) {
	if !s.lock.IsLeader() {
		log.Printf("[scheduler] %s: not leader, skipping", name)
		return
	}

	media, err := s.store.RecentMedia(ctx, defaultRecentLimit)
	if err != nil {
		log.Printf("[scheduler] %s: list media: %v", name, err)
		return
	}
	if len(media) == 0 {
		return
	}

	started := time.Now()
	var total models.ScrapeMetrics
	total.Scraper = name

	for _, m := range media {
		if ctx.Err() != nil {
			return
		}
		req := scraper.Request{
			MediaExternalID: m.ExternalID,
			Kind:            m.Kind,
			Title:           m.Title,
			Year:            m.Year,
		}
		candidates, err := plugin.Scrape(ctx, req)
		if err != nil {
			log.Printf("[scheduler] %s: scrape %s: %v", name, m.ExternalID, err)
			continue
		}
		if len(candidates) == 0 {
			continue
		}
		metrics := s.ingestor.Ingest(ctx, m.ID, name, candidates)
		total.New += metrics.New
		total.Updated += metrics.Updated
		total.Blocked += metrics.Blocked
		total.Discarded += metrics.Discarded
	}

	log.Printf("[scheduler] %s: %d media in %s, new=%d updated=%d blocked=%d discarded=%d",
		name, len(media), time.Since(started).Round(time.Millisecond),
		total.New, total.Updated, total.Blocked, total.Discarded)
}
