package scraper

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"mediafusion/models"
)

const (
	testInfoHashA = "dd8255ecdc7ca55fb0bbf81323d87062db1f6d1c"
	testInfoHashB = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testInfoHashC = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

type fixedScraper struct {
	name       string
	candidates []Candidate
	err        error
}

func (f *fixedScraper) Name() string { return f.name }

func (f *fixedScraper) Scrape(ctx context.Context, req Request) ([]Candidate, error) {
	return f.candidates, f.err
}

func TestOrchestratorPartialFailure(t *testing.T) {
	orch := NewOrchestrator(
		&fixedScraper{name: "good", candidates: []Candidate{
			{Title: "Release A", InfoHash: testInfoHashA, Source: "good"},
		}},
		&fixedScraper{name: "broken", err: errors.New("upstream down")},
	)

	got := orch.Scrape(context.Background(), Request{MediaExternalID: "tt0133093", Kind: models.MediaKindMovie})
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	if got[0].InfoHash != testInfoHashA {
		t.Errorf("got hash %s, want %s", got[0].InfoHash, testInfoHashA)
	}
}

func TestOrchestratorMergesDuplicateHashes(t *testing.T) {
	seedersLow := 10
	seedersHigh := 40
	orch := NewOrchestrator(
		&fixedScraper{name: "first", candidates: []Candidate{
			{
				Title:    "Release.2020.1080p",
				InfoHash: testInfoHashA,
				Trackers: []string{"udp://a.example:1337"},
				Seeders:  &seedersLow,
				Source:   "first",
			},
			{Title: "Other Release", InfoHash: testInfoHashB, SizeBytes: 100, Source: "first"},
		}},
		&fixedScraper{name: "second", candidates: []Candidate{
			{
				Title:     "Release.2020.1080p.x264",
				InfoHash:  "DD8255ECDC7CA55FB0BBF81323D87062DB1F6D1C",
				SizeBytes: 4 << 30,
				Trackers:  []string{"udp://a.example:1337", "udp://b.example:80"},
				Languages: []string{"English"},
				Seeders:   &seedersHigh,
				Source:    "second",
			},
		}},
	)

	got := orch.Scrape(context.Background(), Request{MediaExternalID: "tt0133093", Kind: models.MediaKindMovie})
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}

	merged := got[0]
	if merged.InfoHash != testInfoHashA {
		t.Fatalf("first candidate hash %s, want %s", merged.InfoHash, testInfoHashA)
	}
	if merged.Title != "Release.2020.1080p" {
		t.Errorf("first scraper should own the candidate, got title %q", merged.Title)
	}
	if merged.SizeBytes != 4<<30 {
		t.Errorf("size not adopted from later scraper: %d", merged.SizeBytes)
	}
	if merged.Seeders == nil || *merged.Seeders != 40 {
		t.Errorf("seeders should be the max, got %v", merged.Seeders)
	}
	wantTrackers := []string{"udp://a.example:1337", "udp://b.example:80"}
	if !reflect.DeepEqual(merged.Trackers, wantTrackers) {
		t.Errorf("trackers = %v, want %v", merged.Trackers, wantTrackers)
	}
	if !reflect.DeepEqual(merged.Languages, []string{"English"}) {
		t.Errorf("languages = %v", merged.Languages)
	}
	if !reflect.DeepEqual(merged.ExtraSources, []string{"second"}) {
		t.Errorf("extra sources = %v, want [second]", merged.ExtraSources)
	}
}

func TestOrchestratorDropsInvalidHashes(t *testing.T) {
	orch := NewOrchestrator(&fixedScraper{name: "sloppy", candidates: []Candidate{
		{Title: "No Hash"},
		{Title: "Short Hash", InfoHash: "abc123"},
		{Title: "Good", InfoHash: testInfoHashC},
	}})

	got := orch.Scrape(context.Background(), Request{MediaExternalID: "tt0133093", Kind: models.MediaKindMovie})
	if len(got) != 1 || got[0].InfoHash != testInfoHashC {
		t.Fatalf("got %+v, want only the valid hash", got)
	}
}

func TestOrchestratorDeterministicOrder(t *testing.T) {
	orch := NewOrchestrator(
		&fixedScraper{name: "alpha", candidates: []Candidate{
			{Title: "A", InfoHash: testInfoHashA},
			{Title: "B", InfoHash: testInfoHashB},
		}},
		&fixedScraper{name: "beta", candidates: []Candidate{
			{Title: "C", InfoHash: testInfoHashC},
		}},
	)

	req := Request{MediaExternalID: "tt0133093", Kind: models.MediaKindMovie}
	want := []string{testInfoHashA, testInfoHashB, testInfoHashC}
	for run := 0; run < 10; run++ {
		got := orch.Scrape(context.Background(), req)
		var hashes []string
		for _, c := range got {
			hashes = append(hashes, c.InfoHash)
		}
		if !reflect.DeepEqual(hashes, want) {
			t.Fatalf("run %d: order %v, want %v", run, hashes, want)
		}
	}
}

func TestOrchestratorHotReload(t *testing.T) {
	orch := NewOrchestrator(&fixedScraper{name: "old", candidates: []Candidate{
		{Title: "Old", InfoHash: testInfoHashA},
	}})
	orch.SetScrapers([]Scraper{&fixedScraper{name: "new", candidates: []Candidate{
		{Title: "New", InfoHash: testInfoHashB},
	}}})

	got := orch.Scrape(context.Background(), Request{MediaExternalID: "tt0133093", Kind: models.MediaKindMovie})
	if len(got) != 1 || got[0].InfoHash != testInfoHashB {
		t.Fatalf("got %+v after reload, want the new scraper's candidate", got)
	}
}
