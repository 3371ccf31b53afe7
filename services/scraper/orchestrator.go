package scraper

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"mediafusion/models"
)

// Orchestrator fans a request out across every enabled scraper. Any scraper
// that fails or times out is logged and dropped; the aggregate call only
// fails when the outer context dies. Results union by info-hash: the first
// reporting scraper owns the candidate, later ones are recorded as extra
// sources.
type Orchestrator struct {
	mu       sync.RWMutex
	scrapers []Scraper
}

// NewOrchestrator wraps the given scrapers. Callers pass plugins already
// wrapped in the middleware chain.
func NewOrchestrator(scrapers ...Scraper) *Orchestrator {
	return &Orchestrator{scrapers: scrapers}
}

// SetScrapers swaps the active plugin set, for config hot-reload.
func (o *Orchestrator) SetScrapers(scrapers []Scraper) {
	o.mu.Lock()
	o.scrapers = scrapers
	o.mu.Unlock()
}

// Scrapers returns the active plugin set.
func (o *Orchestrator) Scrapers() []Scraper {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]Scraper(nil), o.scrapers...)
}

// Scrape queries all scrapers concurrently and returns the deduplicated
// union. Cancellation of ctx cancels every in-flight scraper.
func (o *Orchestrator) Scrape(ctx context.Context, req Request) []Candidate {
	scrapers := o.Scrapers()
	if len(scrapers) == 0 {
		return nil
	}

	var mu sync.Mutex
	perScraper := make(map[string][]Candidate, len(scrapers))

	p := pool.New().WithContext(ctx)
	for _, s := range scrapers {
		p.Go(func(ctx context.Context) error {
			started := time.Now()
			candidates, err := s.Scrape(ctx, req)
			if err != nil {
				log.Printf("[orchestrator] %s failed after %s: %v", s.Name(), time.Since(started).Round(time.Millisecond), err)
				return nil
			}
			mu.Lock()
			perScraper[s.Name()] = candidates
			mu.Unlock()
			return nil
		})
	}
	// Task errors are swallowed above; Wait only reflects ctx cancellation.
	if err := p.Wait(); err != nil {
		log.Printf("[orchestrator] scrape for %s cancelled: %v", req.Key(), err)
	}

	return mergeCandidates(scrapers, perScraper)
}

// mergeCandidates unions per-scraper results by info-hash in a deterministic
// order: scrapers in configured order, candidates in reported order.
func mergeCandidates(scrapers []Scraper, perScraper map[string][]Candidate) []Candidate {
	seen := make(map[string]int)
	var merged []Candidate

	for _, s := range scrapers {
		for _, candidate := range perScraper[s.Name()] {
			hash := strings.ToLower(strings.TrimSpace(candidate.InfoHash))
			if !models.IsInfoHash(hash) {
				continue
			}
			candidate.InfoHash = hash
			if candidate.Source == "" {
				candidate.Source = s.Name()
			}

			idx, exists := seen[hash]
			if !exists {
				seen[hash] = len(merged)
				merged = append(merged, candidate)
				continue
			}
			first := &merged[idx]
			first.Trackers = unionStrings(first.Trackers, candidate.Trackers)
			first.Languages = unionStrings(first.Languages, candidate.Languages)
			if first.SizeBytes == 0 {
				first.SizeBytes = candidate.SizeBytes
			}
			if candidate.Seeders != nil &&
				(first.Seeders == nil || *candidate.Seeders > *first.Seeders) {
				first.Seeders = candidate.Seeders
			}
			if !containsFold(first.ExtraSources, candidate.Source) && !strings.EqualFold(first.Source, candidate.Source) {
				first.ExtraSources = append(first.ExtraSources, candidate.Source)
			}
		}
	}
	return merged
}

func unionStrings(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[strings.ToLower(v)] = struct{}{}
	}
	for _, v := range src {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dst = append(dst, strings.TrimSpace(v))
	}
	return dst
}

func containsFold(list []string, v string) bool {
	for _, existing := range list {
		if strings.EqualFold(existing, v) {
			return true
		}
	}
	return false
}
