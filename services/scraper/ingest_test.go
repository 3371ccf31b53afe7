package scraper

import (
	"context"
	"path/filepath"
	"testing"

	"mediafusion/config"
	"mediafusion/models"
	"mediafusion/services/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "mediafusion.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testMedia(t *testing.T, st *store.Store) *models.Media {
	t.Helper()
	media, err := st.EnsureMedia(context.Background(), "tt0133093", models.MediaKindMovie)
	if err != nil {
		t.Fatalf("ensure media: %v", err)
	}
	return media
}

func TestIngestPolicy(t *testing.T) {
	st := testStore(t)
	media := testMedia(t, st)
	ing := NewIngestor(st, config.IngestSettings{
		AdultContentPatterns: []string{`\bxxx\b`},
		MinVideoSizeBytes:    50 << 20,
	})

	seeders := 12
	metrics := ing.Ingest(context.Background(), media.ID, "stub", []Candidate{
		{Title: "The.Matrix.1999.1080p.BluRay.x264-GROUP", InfoHash: testInfoHashA, SizeBytes: 8 << 30, Seeders: &seeders, Source: "stub"},
		{Title: "Something.XXX.2020", InfoHash: testInfoHashB, SizeBytes: 2 << 30, Source: "stub"},
		{Title: "Tiny.Sample.mkv", InfoHash: testInfoHashC, SizeBytes: 10 << 20, Source: "stub"},
		{Title: "No Hash At All", Source: "stub"},
	})

	if metrics.New != 1 {
		t.Errorf("New = %d, want 1", metrics.New)
	}
	if metrics.Discarded != 3 {
		t.Errorf("Discarded = %d, want 3", metrics.Discarded)
	}

	streams, err := st.StreamsForMedia(context.Background(), media.ID, 0, 0)
	if err != nil {
		t.Fatalf("list streams: %v", err)
	}
	if len(streams) != 1 {
		t.Fatalf("got %d streams, want 1", len(streams))
	}
	got := streams[0]
	if got.InfoHash != testInfoHashA {
		t.Errorf("hash = %s", got.InfoHash)
	}
	if got.Resolution != "1080p" || got.Quality != "BluRay" || got.Codec != "x264" {
		t.Errorf("parsed attributes wrong: %s %s %s", got.Resolution, got.Quality, got.Codec)
	}
	if got.SeedersOrZero() != 12 {
		t.Errorf("seeders = %d, want 12", got.SeedersOrZero())
	}
}

func TestIngestUpdatesExisting(t *testing.T) {
	st := testStore(t)
	media := testMedia(t, st)
	ing := NewIngestor(st, config.IngestSettings{})

	candidate := Candidate{Title: "The.Matrix.1999.1080p.BluRay.x264-GROUP", InfoHash: testInfoHashA, SizeBytes: 8 << 30, Source: "stub"}
	first := ing.Ingest(context.Background(), media.ID, "stub", []Candidate{candidate})
	if first.New != 1 {
		t.Fatalf("first pass New = %d, want 1", first.New)
	}

	candidate.Source = "other"
	second := ing.Ingest(context.Background(), media.ID, "other", []Candidate{candidate})
	if second.Updated != 1 || second.New != 0 {
		t.Errorf("second pass metrics = %+v, want one update", second)
	}
}

func TestIngestRespectsBlockedStreams(t *testing.T) {
	st := testStore(t)
	media := testMedia(t, st)
	ing := NewIngestor(st, config.IngestSettings{})

	candidate := Candidate{Title: "The.Matrix.1999.1080p.BluRay.x264-GROUP", InfoHash: testInfoHashA, SizeBytes: 8 << 30, Source: "stub"}
	if metrics := ing.Ingest(context.Background(), media.ID, "stub", []Candidate{candidate}); metrics.New != 1 {
		t.Fatalf("seed ingest failed: %+v", metrics)
	}
	if err := st.BlockStream(context.Background(), testInfoHashA); err != nil {
		t.Fatalf("block: %v", err)
	}

	metrics := ing.Ingest(context.Background(), media.ID, "stub", []Candidate{candidate})
	if metrics.Blocked != 1 || metrics.Updated != 0 {
		t.Errorf("metrics = %+v, want one blocked", metrics)
	}

	streams, err := st.StreamsForMedia(context.Background(), media.ID, 0, 0)
	if err != nil {
		t.Fatalf("list streams: %v", err)
	}
	if len(streams) != 0 {
		t.Errorf("blocked stream still listed: %d", len(streams))
	}
}
