package scheduler

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"mediafusion/config"
	"mediafusion/internal/cache"
	"mediafusion/internal/leader"
	"mediafusion/models"
	"mediafusion/services/scraper"
	"mediafusion/services/store"
)

const testInfoHash = "dd8255ecdc7ca55fb0bbf81323d87062db1f6d1c"

type countingScraper struct {
	calls atomic.Int32
}

func (c *countingScraper) Name() string { return "counting" }

func (c *countingScraper) Scrape(ctx context.Context, req scraper.Request) ([]scraper.Candidate, error) {
	c.calls.Add(1)
	return []scraper.Candidate{{
		Title:     "The.Matrix.1999.1080p.BluRay.x264-GROUP",
		InfoHash:  testInfoHash,
		SizeBytes: 4 << 30,
	}}, nil
}

func testService(t *testing.T) (*Service, *store.Store, *leader.Lock) {
	t.Helper()
	c, err := cache.Open(cache.Options{InMemory: true})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	st, err := store.New(filepath.Join(t.TempDir(), "mediafusion.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	lock := leader.NewLock(c, 50*time.Millisecond)
	svc := NewService(nil, st, scraper.NewIngestor(st, config.IngestSettings{}), c, lock, nil)
	return svc, st, lock
}

func waitForLeadership(t *testing.T, lock *leader.Lock) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !lock.IsLeader() {
		if time.Now().After(deadline) {
			t.Fatal("lock never acquired leadership")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunScraperIngestsRecentMedia(t *testing.T) {
	svc, st, lock := testService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go lock.Run(ctx)
	waitForLeadership(t, lock)

	media, err := st.EnsureMedia(ctx, "tt0133093", models.MediaKindMovie)
	if err != nil {
		t.Fatalf("ensure media: %v", err)
	}

	plugin := &countingScraper{}
	svc.runScraper(ctx, plugin.Name(), plugin)

	if got := plugin.calls.Load(); got != 1 {
		t.Fatalf("scraper called %d times, want 1", got)
	}
	streams, err := st.StreamsForMedia(ctx, media.ID, 0, 0)
	if err != nil {
		t.Fatalf("list streams: %v", err)
	}
	if len(streams) != 1 || streams[0].InfoHash != testInfoHash {
		t.Fatalf("streams = %+v", streams)
	}
}

func TestRunScraperSkipsWhenNotLeader(t *testing.T) {
	svc, st, _ := testService(t)

	ctx := context.Background()
	if _, err := st.EnsureMedia(ctx, "tt0133093", models.MediaKindMovie); err != nil {
		t.Fatalf("ensure media: %v", err)
	}

	plugin := &countingScraper{}
	svc.runScraper(ctx, plugin.Name(), plugin)

	if got := plugin.calls.Load(); got != 0 {
		t.Fatalf("non-leader ran the scraper %d times", got)
	}
}

func TestRunNowUnknownScraper(t *testing.T) {
	svc, _, _ := testService(t)
	if err := svc.RunNow(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown scraper")
	}
}
