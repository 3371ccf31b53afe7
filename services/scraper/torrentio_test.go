package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"mediafusion/config"
	"mediafusion/models"
)

func TestTorrentioScrapeMovie(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"streams": [
				{
					"name": "Torrentio\n1080p",
					"title": "The.Matrix.1999.1080p.BluRay.x264-GROUP\n👤 142 💾 8.5 GB ⚙️ ThePirateBay",
					"infoHash": "DD8255ECDC7CA55FB0BBF81323D87062DB1F6D1C",
					"fileIdx": 2,
					"behaviorHints": {"filename": "The.Matrix.1999.1080p.BluRay.x264-GROUP.mkv"},
					"sources": ["tracker:udp://tracker.example:1337", "dht:dd8255ecdc7ca55fb0bbf81323d87062db1f6d1c"]
				},
				{
					"name": "Torrentio\n720p",
					"title": "Broken entry",
					"infoHash": "nothex"
				}
			]
		}`))
	}))
	defer server.Close()

	scraper := NewTorrentio(config.ScraperConfig{URL: server.URL}, server.Client())
	candidates, err := scraper.Scrape(context.Background(), Request{
		MediaExternalID: "tt0133093",
		Kind:            models.MediaKindMovie,
	})
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if gotPath != "/stream/movie/tt0133093.json" {
		t.Errorf("requested path %s", gotPath)
	}
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}

	c := candidates[0]
	if c.InfoHash != testInfoHashA {
		t.Errorf("hash = %s", c.InfoHash)
	}
	if c.Title != "The.Matrix.1999.1080p.BluRay.x264-GROUP.mkv" {
		t.Errorf("title = %q, filename hint should win", c.Title)
	}
	if c.Seeders == nil || *c.Seeders != 142 {
		t.Errorf("seeders = %v, want 142", c.Seeders)
	}
	wantSize := int64(8.5 * float64(1<<30))
	if c.SizeBytes != wantSize {
		t.Errorf("size = %d, want %d", c.SizeBytes, wantSize)
	}
	if len(c.Trackers) != 1 || c.Trackers[0] != "udp://tracker.example:1337" {
		t.Errorf("trackers = %v", c.Trackers)
	}
	if c.Uploader != "ThePirateBay" {
		t.Errorf("uploader = %q", c.Uploader)
	}
	if c.FileIndex == nil || *c.FileIndex != 2 {
		t.Errorf("file index = %v, want 2", c.FileIndex)
	}
	if c.Magnet == "" {
		t.Error("magnet not built")
	}
}

func TestTorrentioScrapeEpisodePath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"streams": []}`))
	}))
	defer server.Close()

	scraper := NewTorrentio(config.ScraperConfig{URL: server.URL, Options: "sort=qualitysize"}, server.Client())
	if _, err := scraper.Scrape(context.Background(), Request{
		MediaExternalID: "tt0903747",
		Kind:            models.MediaKindSeries,
		Season:          5,
		Episode:         14,
	}); err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if gotPath != "/sort=qualitysize/stream/series/tt0903747:5:14.json" {
		t.Errorf("requested path %s", gotPath)
	}
}

func TestTorrentioSkipsNonIMDBIDs(t *testing.T) {
	scraper := NewTorrentio(config.ScraperConfig{}, http.DefaultClient)
	candidates, err := scraper.Scrape(context.Background(), Request{
		MediaExternalID: "sports:f1-2026-r05",
		Kind:            models.MediaKindEvent,
	})
	if err != nil || candidates != nil {
		t.Fatalf("got (%v, %v), want silent skip", candidates, err)
	}
}
