package scraper

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"mediafusion/config"
	"mediafusion/models"
	"mediafusion/utils/magnet"
)

func init() {
	RegisterType("torznab", func(cfg config.ScraperConfig, client *http.Client) (Scraper, error) {
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, fmt.Errorf("torznab scraper %q needs a url", cfg.Name)
		}
		return NewTorznab(cfg, client), nil
	})
}

// Torznab queries any Torznab-compatible indexer API (Jackett, Prowlarr,
// native trackers).
type Torznab struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewTorznab(cfg config.ScraperConfig, client *http.Client) *Torznab {
	return &Torznab{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
	}
}

func (t *Torznab) Name() string {
	if t.name != "" {
		return t.name
	}
	return "torznab"
}

type torznabRSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []torznabItem `xml:"item"`
	} `xml:"channel"`
}

type torznabItem struct {
	Title     string `xml:"title"`
	GUID      string `xml:"guid"`
	Link      string `xml:"link"`
	Size      int64  `xml:"size"`
	Enclosure struct {
		URL    string `xml:"url,attr"`
		Length int64  `xml:"length,attr"`
	} `xml:"enclosure"`
	Attrs []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value,attr"`
	} `xml:"attr"`
}

func (i torznabItem) attr(name string) string {
	for _, a := range i.Attrs {
		if strings.EqualFold(a.Name, name) {
			return a.Value
		}
	}
	return ""
}

func (t *Torznab) Scrape(ctx context.Context, req Request) ([]Candidate, error) {
	query := url.Values{}
	query.Set("apikey", t.apiKey)

	switch {
	case req.Kind == models.MediaKindSeries && req.Season > 0:
		query.Set("t", "tvsearch")
		query.Set("q", req.Title)
		query.Set("season", strconv.Itoa(req.Season))
		if req.Episode > 0 {
			query.Set("ep", strconv.Itoa(req.Episode))
		}
	case req.Kind == models.MediaKindMovie:
		query.Set("t", "movie")
		query.Set("q", req.Title)
		if models.IsIMDBID(req.MediaExternalID) {
			query.Set("imdbid", strings.TrimPrefix(req.MediaExternalID, "tt"))
		}
	default:
		query.Set("t", "search")
		query.Set("q", req.Title)
	}
	if req.Title == "" && !models.IsIMDBID(req.MediaExternalID) {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/api?%s", t.baseURL, query.Encode())
	body, err := getBody(ctx, t.client, t.Name(), endpoint)
	if err != nil {
		return nil, err
	}

	var feed torznabRSS
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("%w: decode %s response: %v", ErrPermanent, t.Name(), err)
	}

	candidates := make([]Candidate, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		candidate := Candidate{
			Title:     strings.TrimSpace(item.Title),
			SizeBytes: item.Size,
			Source:    t.Name(),
		}
		if candidate.SizeBytes == 0 {
			candidate.SizeBytes = item.Enclosure.Length
		}

		if rawHash := item.attr("infohash"); rawHash != "" {
			if hash, err := magnet.NormalizeHash(rawHash); err == nil {
				candidate.InfoHash = hash
			}
		}
		if magnetURI := item.attr("magneturl"); magnetURI != "" {
			if parsed, err := magnet.Parse(magnetURI); err == nil {
				candidate.Magnet = magnetURI
				candidate.Trackers = parsed.Trackers
				if candidate.InfoHash == "" {
					candidate.InfoHash = parsed.InfoHash
				}
			}
		}
		if candidate.InfoHash == "" {
			continue
		}
		if candidate.Magnet == "" {
			if uri, err := magnet.Build(candidate.InfoHash, candidate.Title, candidate.Trackers); err == nil {
				candidate.Magnet = uri
			}
		}
		if seeders, err := strconv.Atoi(item.attr("seeders")); err == nil {
			candidate.Seeders = &seeders
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}
