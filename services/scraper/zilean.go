package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"mediafusion/config"
	"mediafusion/models"
	"mediafusion/utils/magnet"
)

const zileanDefaultBaseURL = "https://zilean.elfhosted.com"

func init() {
	RegisterType("zilean", func(cfg config.ScraperConfig, client *http.Client) (Scraper, error) {
		return NewZilean(cfg, client), nil
	})
}

// Zilean queries the DMM filtered search API. Results carry no seeder info
// and no file index.
type Zilean struct {
	name    string
	baseURL string
	client  *http.Client
}

func NewZilean(cfg config.ScraperConfig, client *http.Client) *Zilean {
	baseURL := strings.TrimRight(cfg.URL, "/")
	if baseURL == "" {
		baseURL = zileanDefaultBaseURL
	}
	return &Zilean{name: cfg.Name, baseURL: baseURL, client: client}
}

func (z *Zilean) Name() string {
	if z.name != "" {
		return z.name
	}
	return "zilean"
}

// stringOrArray accepts either a JSON string or a string array. Zilean has
// changed this shape between versions.
type stringOrArray []string

func (sa *stringOrArray) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*sa = arr
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil && str != "" {
		*sa = []string{str}
		return nil
	}
	*sa = nil
	return nil
}

// flexibleInt64 accepts either a JSON number or a numeric string.
type flexibleInt64 int64

func (fi *flexibleInt64) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*fi = flexibleInt64(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if parsed, err := strconv.ParseInt(str, 10, 64); err == nil {
			*fi = flexibleInt64(parsed)
			return nil
		}
	}
	*fi = 0
	return nil
}

type zileanItem struct {
	RawTitle  string        `json:"raw_title"`
	InfoHash  string        `json:"info_hash"`
	Size      flexibleInt64 `json:"size"`
	Languages stringOrArray `json:"languages"`
	IMDBID    string        `json:"imdb_id"`
}

func (z *Zilean) Scrape(ctx context.Context, req Request) ([]Candidate, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("Query", req.Title)
	switch {
	case req.Kind == models.MediaKindSeries && req.Season > 0:
		params.Set("Season", strconv.Itoa(req.Season))
		if req.Episode > 0 {
			params.Set("Episode", strconv.Itoa(req.Episode))
		}
	case req.Year > 0:
		params.Set("Year", strconv.Itoa(req.Year))
	}

	endpoint := fmt.Sprintf("%s/dmm/filtered?%s", z.baseURL, params.Encode())

	var items []zileanItem
	if err := getJSON(ctx, z.client, z.Name(), endpoint, &items); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(items))
	for _, item := range items {
		hash, err := magnet.NormalizeHash(item.InfoHash)
		if err != nil {
			continue
		}
		candidate := Candidate{
			Title:     strings.TrimSpace(item.RawTitle),
			InfoHash:  hash,
			SizeBytes: int64(item.Size),
			Languages: item.Languages,
			Source:    z.Name(),
		}
		if uri, err := magnet.Build(hash, candidate.Title, nil); err == nil {
			candidate.Magnet = uri
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}
