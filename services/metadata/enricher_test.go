package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"mediafusion/internal/cache"
	"mediafusion/models"
	"mediafusion/services/store"
)

func testBackends(t *testing.T) (*cache.Cache, *store.Store) {
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
	return c, st
}

const cinemetaFixture = `{
	"meta": {
		"id": "tt0133093",
		"type": "movie",
		"name": "The Matrix",
		"description": "A computer hacker learns the truth.",
		"releaseInfo": "1999",
		"poster": "https://images.example/poster.jpg",
		"background": "https://images.example/bg.jpg",
		"runtime": "136 min",
		"genres": ["Action", "Sci-Fi"],
		"imdbRating": "8.7"
	}
}`

func TestEnrichFromCinemeta(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Path != "/meta/movie/tt0133093.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(cinemetaFixture))
	}))
	defer server.Close()

	c, st := testBackends(t)
	enricher := &Enricher{
		cinemeta: &cinemetaClient{baseURL: server.URL, httpc: server.Client()},
		tmdb:     newTMDBClient("", "", server.Client()),
		tvdb:     newTVDBClient("", "", server.Client()),
		cache:    c,
		store:    st,
		ttl:      time.Hour,
	}

	media, err := st.EnsureMedia(context.Background(), "tt0133093", models.MediaKindMovie)
	if err != nil {
		t.Fatalf("ensure media: %v", err)
	}
	if err := enricher.Enrich(context.Background(), media); err != nil {
		t.Fatalf("enrich: %v", err)
	}

	if media.Title != "The Matrix" || media.Year != 1999 {
		t.Errorf("title/year = %q/%d", media.Title, media.Year)
	}
	if media.Runtime != 136 {
		t.Errorf("runtime = %d", media.Runtime)
	}
	if media.Ratings["imdb"] != 8.7 {
		t.Errorf("ratings = %v", media.Ratings)
	}
	if media.Images["poster"] != "https://images.example/poster.jpg" {
		t.Errorf("images = %v", media.Images)
	}

	// Persisted.
	stored, err := st.GetMediaByExternalID(context.Background(), "tt0133093")
	if err != nil {
		t.Fatalf("reload media: %v", err)
	}
	if stored.Title != "The Matrix" {
		t.Errorf("stored title = %q", stored.Title)
	}

	// Cached: a second enrich makes no further provider calls.
	callsAfterFirst := requests
	if err := enricher.Enrich(context.Background(), media); err != nil {
		t.Fatalf("second enrich: %v", err)
	}
	if requests != callsAfterFirst {
		t.Errorf("second enrich hit the provider (%d calls)", requests)
	}
}

func TestEnrichSkipsSyntheticIDs(t *testing.T) {
	c, st := testBackends(t)
	enricher := &Enricher{
		cinemeta: newCinemetaClient(http.DefaultClient),
		cache:    c,
		store:    st,
		ttl:      time.Hour,
	}

	media := &models.Media{ExternalID: "mfabc123", Kind: models.MediaKindEvent, Title: "Formula 1 Miami"}
	if err := enricher.Enrich(context.Background(), media); err != nil {
		t.Fatalf("enrich synthetic: %v", err)
	}
	if media.Title != "Formula 1 Miami" {
		t.Errorf("synthetic media mutated: %q", media.Title)
	}
}

func TestMergeMeta(t *testing.T) {
	base := &providerMeta{
		Provider:    "cinemeta",
		Title:       "The Matrix",
		Year:        1999,
		Description: "short",
		Ratings:     map[string]float64{"imdb": 8.7},
		Images:      map[string]string{"poster": "cinemeta-poster"},
	}
	mergeMeta(base, &providerMeta{
		Provider:    "tmdb",
		Title:       "Matrix",
		Description: "a considerably longer description of the film",
		Ratings:     map[string]float64{"tmdb": 8.2},
		Images:      map[string]string{"poster": "tmdb-poster", "background": "tmdb-bg"},
		AKATitles:   []string{"La Matrice", "The Matrix"},
		Runtime:     136,
	})

	if base.Title != "The Matrix" {
		t.Errorf("baseline title replaced: %q", base.Title)
	}
	if base.Images["poster"] != "cinemeta-poster" {
		t.Errorf("existing image overwritten: %v", base.Images)
	}
	if base.Images["background"] != "tmdb-bg" {
		t.Errorf("new image not merged: %v", base.Images)
	}
	if base.Ratings["imdb"] != 8.7 || base.Ratings["tmdb"] != 8.2 {
		t.Errorf("ratings = %v", base.Ratings)
	}
	if base.Runtime != 136 {
		t.Errorf("runtime = %d", base.Runtime)
	}
	if len(base.Description) < 20 {
		t.Errorf("longer description should win: %q", base.Description)
	}

	// "Matrix" (differing title) and "La Matrice" become aliases; the
	// duplicate of the primary title does not.
	wantAliases := map[string]bool{"Matrix": true, "La Matrice": true}
	if len(base.AKATitles) != 2 {
		t.Fatalf("aliases = %v", base.AKATitles)
	}
	for _, aka := range base.AKATitles {
		if !wantAliases[aka] {
			t.Errorf("unexpected alias %q", aka)
		}
	}
}

func TestMatchTitleUsesAliases(t *testing.T) {
	media := &models.Media{
		Title:     "The Matrix",
		AKATitles: []string{"La Matrice", "Matrix Reloaded Not"},
	}
	if score := MatchTitle(media, "La Matrice"); score < 0.99 {
		t.Errorf("alias match score = %.2f", score)
	}
	if score := MatchTitle(media, "Completely Unrelated Film"); score > 0.5 {
		t.Errorf("unrelated score = %.2f", score)
	}
}

func TestParseReleaseInfo(t *testing.T) {
	cases := []struct {
		in        string
		year, end int
	}{
		{"1999", 1999, 0},
		{"2008-2013", 2008, 2013},
		{"2008-", 2008, 0},
		{"", 0, 0},
	}
	for _, tc := range cases {
		year, end := parseReleaseInfo(tc.in, "")
		if year != tc.year || end != tc.end {
			t.Errorf("parseReleaseInfo(%q) = (%d, %d), want (%d, %d)", tc.in, year, end, tc.year, tc.end)
		}
	}
}
