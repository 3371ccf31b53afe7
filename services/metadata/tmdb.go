package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"mediafusion/models"
)

const (
	tmdbBaseURL      = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p"
	// Sized renditions instead of "original": posters render at card size,
	// backdrops at 1080p.
	tmdbPosterSize   = "w500"
	tmdbBackdropSize = "w1280"
)

type tmdbClient struct {
	apiKey   string
	language string
	httpc    *http.Client

	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

func newTMDBClient(apiKey, language string, httpc *http.Client) *tmdbClient {
	return &tmdbClient{
		apiKey:      strings.TrimSpace(apiKey),
		language:    language,
		httpc:       httpc,
		minInterval: 20 * time.Millisecond,
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

// doGET performs a GET with light throttling and retry on 429/5xx.
func (c *tmdbClient) doGET(ctx context.Context, endpoint string, v interface{}) error {
	var lastErr error
	backoff := 300 * time.Millisecond

	for attempt := 0; attempt < 3; attempt++ {
		c.throttleMu.Lock()
		since := time.Since(c.lastRequest)
		if since < c.minInterval {
			time.Sleep(c.minInterval - since)
		}
		c.lastRequest = time.Now()
		c.throttleMu.Unlock()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			lastErr = err
			log.Printf("[tmdb] http error (attempt %d/3): %v", attempt+1, err)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("tmdb request failed: %s", resp.Status)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return fmt.Errorf("tmdb request failed: %s", resp.Status)
		}

		err = json.NewDecoder(resp.Body).Decode(v)
		resp.Body.Close()
		return err
	}
	return lastErr
}

type tmdbFindResponse struct {
	MovieResults []tmdbEntry `json:"movie_results"`
	TVResults    []tmdbEntry `json:"tv_results"`
}

type tmdbEntry struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Name         string   `json:"name"`
	Overview     string   `json:"overview"`
	PosterPath   string   `json:"poster_path"`
	BackdropPath string   `json:"backdrop_path"`
	ReleaseDate  string   `json:"release_date"`
	FirstAirDate string   `json:"first_air_date"`
	VoteAverage  float64  `json:"vote_average"`
	GenreIDs     []int    `json:"genre_ids"`
	Genres       []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Runtime           int `json:"runtime"`
	AlternativeTitles struct {
		Titles []struct {
			Title string `json:"title"`
		} `json:"titles"`
		Results []struct {
			Title string `json:"title"`
		} `json:"results"`
	} `json:"alternative_titles"`
}

// fetch looks the IMDb id up via /find, then pulls details with alternative
// titles appended for aka matching.
func (c *tmdbClient) fetch(ctx context.Context, kind models.MediaKind, imdbID string) (*providerMeta, error) {
	if !c.isConfigured() {
		return nil, nil
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("external_source", "imdb_id")
	if c.language != "" {
		params.Set("language", c.language)
	}
	var found tmdbFindResponse
	endpoint := fmt.Sprintf("%s/find/%s?%s", tmdbBaseURL, url.PathEscape(imdbID), params.Encode())
	if err := c.doGET(ctx, endpoint, &found); err != nil {
		return nil, err
	}

	mediaPath := "movie"
	results := found.MovieResults
	if kind == models.MediaKindSeries {
		mediaPath = "tv"
		results = found.TVResults
	}
	if len(results) == 0 {
		return nil, nil
	}

	detailParams := url.Values{}
	detailParams.Set("api_key", c.apiKey)
	detailParams.Set("append_to_response", "alternative_titles")
	if c.language != "" {
		detailParams.Set("language", c.language)
	}
	var entry tmdbEntry
	endpoint = fmt.Sprintf("%s/%s/%d?%s", tmdbBaseURL, mediaPath, results[0].ID, detailParams.Encode())
	if err := c.doGET(ctx, endpoint, &entry); err != nil {
		return nil, err
	}

	return c.toProviderMeta(entry), nil
}

func (c *tmdbClient) toProviderMeta(entry tmdbEntry) *providerMeta {
	meta := &providerMeta{
		Provider:    "tmdb",
		Description: entry.Overview,
		Images:      map[string]string{},
		Runtime:     entry.Runtime,
	}
	meta.Title = entry.Title
	if meta.Title == "" {
		meta.Title = entry.Name
	}

	date := entry.ReleaseDate
	if date == "" {
		date = entry.FirstAirDate
	}
	if len(date) >= 4 {
		meta.Year, _, _ = parseDateYear(date)
	}

	if entry.PosterPath != "" {
		meta.Images["poster"] = fmt.Sprintf("%s/%s%s", tmdbImageBaseURL, tmdbPosterSize, entry.PosterPath)
	}
	if entry.BackdropPath != "" {
		meta.Images["background"] = fmt.Sprintf("%s/%s%s", tmdbImageBaseURL, tmdbBackdropSize, entry.BackdropPath)
	}
	if entry.VoteAverage > 0 {
		meta.Ratings = map[string]float64{"tmdb": entry.VoteAverage}
	}
	for _, g := range entry.Genres {
		meta.Genres = append(meta.Genres, g.Name)
	}
	for _, alt := range entry.AlternativeTitles.Titles {
		meta.AKATitles = append(meta.AKATitles, alt.Title)
	}
	for _, alt := range entry.AlternativeTitles.Results {
		meta.AKATitles = append(meta.AKATitles, alt.Title)
	}
	return meta
}

func parseDateYear(date string) (int, int, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), 0, nil
}
