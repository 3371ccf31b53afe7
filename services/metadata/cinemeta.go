package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"mediafusion/models"
)

const cinemetaBaseURL = "https://v3-cinemeta.strem.io"

// cinemetaClient reads the public Cinemeta addon, the baseline metadata
// source for anything with an IMDb id. No API key, no rate limit worth
// throttling for.
type cinemetaClient struct {
	baseURL string
	httpc   *http.Client
}

func newCinemetaClient(httpc *http.Client) *cinemetaClient {
	return &cinemetaClient{baseURL: cinemetaBaseURL, httpc: httpc}
}

type cinemetaMeta struct {
	Meta struct {
		ID          string   `json:"id"`
		Type        string   `json:"type"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		ReleaseInfo string   `json:"releaseInfo"` // "1999" or "2008-2013"
		Year        string   `json:"year"`
		Poster      string   `json:"poster"`
		Background  string   `json:"background"`
		Logo        string   `json:"logo"`
		Runtime     string   `json:"runtime"` // "136 min"
		Genres      []string `json:"genres"`
		IMDBRating  string   `json:"imdbRating"`
		Videos      []struct {
			Season   int    `json:"season"`
			Episode  int    `json:"episode"`
			Name     string `json:"name"`
			Released string `json:"released"`
		} `json:"videos"`
	} `json:"meta"`
}

func (c *cinemetaClient) fetch(ctx context.Context, kind models.MediaKind, imdbID string) (*providerMeta, error) {
	metaType := "movie"
	if kind == models.MediaKindSeries {
		metaType = "series"
	}
	endpoint := fmt.Sprintf("%s/meta/%s/%s.json", c.baseURL, metaType, url.PathEscape(imdbID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cinemeta request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("cinemeta returned %d: %s", resp.StatusCode, strings.TrimSpace(string(preview)))
	}

	var payload cinemetaMeta
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode cinemeta response: %w", err)
	}
	if payload.Meta.ID == "" {
		return nil, nil
	}

	meta := &providerMeta{
		Provider:    "cinemeta",
		Title:       payload.Meta.Name,
		Description: payload.Meta.Description,
		Genres:      payload.Meta.Genres,
		Images:      map[string]string{},
	}
	meta.Year, meta.EndYear = parseReleaseInfo(payload.Meta.ReleaseInfo, payload.Meta.Year)
	if payload.Meta.Poster != "" {
		meta.Images["poster"] = payload.Meta.Poster
	}
	if payload.Meta.Background != "" {
		meta.Images["background"] = payload.Meta.Background
	}
	if payload.Meta.Logo != "" {
		meta.Images["logo"] = payload.Meta.Logo
	}
	if rating, err := strconv.ParseFloat(payload.Meta.IMDBRating, 64); err == nil {
		meta.Ratings = map[string]float64{"imdb": rating}
	}
	if minutes := parseRuntime(payload.Meta.Runtime); minutes > 0 {
		meta.Runtime = minutes
	}
	return meta, nil
}

// parseReleaseInfo handles "1999", "2008-2013" and the open-ended "2008-".
func parseReleaseInfo(releaseInfo, year string) (int, int) {
	s := strings.TrimSpace(releaseInfo)
	if s == "" {
		s = strings.TrimSpace(year)
	}
	start, end := 0, 0
	if from, rest, found := strings.Cut(s, "-"); found {
		start, _ = strconv.Atoi(strings.TrimSpace(from))
		end, _ = strconv.Atoi(strings.TrimSpace(rest))
	} else {
		start, _ = strconv.Atoi(s)
	}
	return start, end
}

// parseRuntime reads "136 min" style strings.
func parseRuntime(s string) int {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	minutes, _ := strconv.Atoi(fields[0])
	return minutes
}
