package titleparser

import (
	"testing"
	"time"
)

func TestParseSportsFormula1(t *testing.T) {
	event, ok := ParseSports("F1.2026.R05.Miami.SkyF1HD.1080p.mkv")
	if !ok {
		t.Fatal("expected a sports match")
	}
	if event.Category != "Formula 1" {
		t.Errorf("category = %q, want %q", event.Category, "Formula 1")
	}
	if event.Year != 2026 {
		t.Errorf("year = %d, want 2026", event.Year)
	}
	if event.Round != 5 {
		t.Errorf("round = %d, want 5", event.Round)
	}
	if event.Event != "Miami" {
		t.Errorf("event = %q, want %q", event.Event, "Miami")
	}
	if event.Resolution != "1080p" {
		t.Errorf("resolution = %q, want 1080p", event.Resolution)
	}
}

func TestParseSportsISODate(t *testing.T) {
	event, ok := ParseSports("WWE.SmackDown.2026-08-21.720p.HDTV.h264")
	if !ok {
		t.Fatal("expected a sports match")
	}
	if event.Category != "WWE" {
		t.Errorf("category = %q, want WWE", event.Category)
	}
	want := time.Date(2026, time.August, 21, 0, 0, 0, 0, time.UTC)
	if !event.Date.Equal(want) {
		t.Errorf("date = %v, want %v", event.Date, want)
	}
	if event.Year != 2026 {
		t.Errorf("year = %d, want 2026", event.Year)
	}
	if event.Event != "Smackdown" {
		t.Errorf("event = %q, want Smackdown", event.Event)
	}
	if event.Resolution != "720p" {
		t.Errorf("resolution = %q, want 720p", event.Resolution)
	}
}

func TestParseSportsYearOrdinal(t *testing.T) {
	event, ok := ParseSports("MotoGP.2025x14.Austria.Race.F1TV.1080p")
	if !ok {
		t.Fatal("expected a sports match")
	}
	if event.Category != "MotoGP" {
		t.Errorf("category = %q, want MotoGP", event.Category)
	}
	if event.Year != 2025 {
		t.Errorf("year = %d, want 2025", event.Year)
	}
	if !event.Date.IsZero() {
		t.Errorf("date = %v, want zero (ordinal form has no calendar day)", event.Date)
	}
	if event.Event != "Austria Race" {
		t.Errorf("event = %q, want %q", event.Event, "Austria Race")
	}
}

func TestParseSportsNoMatch(t *testing.T) {
	for _, input := range []string{"The.Matrix.1999.1080p.mkv", "", "Breaking.Bad.S05E14.720p"} {
		if _, ok := ParseSports(input); ok {
			t.Errorf("ParseSports(%q) matched, want no match", input)
		}
	}
}
