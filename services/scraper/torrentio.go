package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"mediafusion/config"
	"mediafusion/models"
	"mediafusion/utils/magnet"
)

const torrentioDefaultBaseURL = "https://torrentio.strem.fun"

func init() {
	RegisterType("torrentio", func(cfg config.ScraperConfig, client *http.Client) (Scraper, error) {
		return NewTorrentio(cfg, client), nil
	})
}

// Torrentio queries the torrentio Stremio addon by IMDb id.
type Torrentio struct {
	name    string
	baseURL string
	options string // path options, e.g. "sort=qualitysize|qualityfilter=scr,cam"
	client  *http.Client
}

// NewTorrentio builds the plugin from config. URL overrides the public
// instance; options are inserted between base URL and /stream.
func NewTorrentio(cfg config.ScraperConfig, client *http.Client) *Torrentio {
	baseURL := strings.TrimRight(cfg.URL, "/")
	if baseURL == "" {
		baseURL = torrentioDefaultBaseURL
	}
	return &Torrentio{
		name:    cfg.Name,
		baseURL: baseURL,
		options: strings.TrimSpace(cfg.Options),
		client:  client,
	}
}

func (t *Torrentio) Name() string {
	if t.name != "" {
		return t.name
	}
	return "torrentio"
}

type torrentioResponse struct {
	Streams []struct {
		Name          string `json:"name"`
		Title         string `json:"title"`
		InfoHash      string `json:"infoHash"`
		FileIdx       *int   `json:"fileIdx"`
		BehaviorHints struct {
			Filename string `json:"filename"`
		} `json:"behaviorHints"`
		Sources []string `json:"sources"`
	} `json:"streams"`
}

// Stream descriptions pack size and seeders into emoji-tagged text lines.
var (
	reTorrentioSeeders = regexp.MustCompile(`👤\s*(\d+)`)
	reTorrentioSize    = regexp.MustCompile(`💾\s*([\d.,]+)\s*([KMGTP]?B)`)
	reTorrentioSource  = regexp.MustCompile(`⚙️\s*([^\n]+)`)
)

func (t *Torrentio) Scrape(ctx context.Context, req Request) ([]Candidate, error) {
	if !models.IsIMDBID(req.MediaExternalID) {
		return nil, nil
	}

	streamID := req.MediaExternalID
	mediaType := "movie"
	if req.Kind == models.MediaKindSeries {
		mediaType = "series"
		if req.Season > 0 && req.Episode > 0 {
			streamID = fmt.Sprintf("%s:%d:%d", req.MediaExternalID, req.Season, req.Episode)
		}
	}

	var endpoint string
	if t.options != "" {
		endpoint = fmt.Sprintf("%s/%s/stream/%s/%s.json", t.baseURL, t.options, mediaType, url.PathEscape(streamID))
	} else {
		endpoint = fmt.Sprintf("%s/stream/%s/%s.json", t.baseURL, mediaType, url.PathEscape(streamID))
	}

	var payload torrentioResponse
	if err := getJSON(ctx, t.client, t.Name(), endpoint, &payload); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(payload.Streams))
	for _, stream := range payload.Streams {
		hash, err := magnet.NormalizeHash(stream.InfoHash)
		if err != nil {
			continue
		}

		title := firstLine(stream.Title)
		if stream.BehaviorHints.Filename != "" {
			title = stream.BehaviorHints.Filename
		}

		candidate := Candidate{
			Title:     title,
			InfoHash:  hash,
			SizeBytes: parseEmojiSize(stream.Title),
			Trackers:  trackerSources(stream.Sources),
			Source:    t.Name(),
			FileIndex: stream.FileIdx,
		}
		if m := reTorrentioSeeders.FindStringSubmatch(stream.Title); m != nil {
			if seeders, err := strconv.Atoi(m[1]); err == nil {
				candidate.Seeders = &seeders
			}
		}
		if m := reTorrentioSource.FindStringSubmatch(stream.Title); m != nil {
			candidate.Uploader = strings.TrimSpace(m[1])
		}
		if uri, err := magnet.Build(hash, title, candidate.Trackers); err == nil {
			candidate.Magnet = uri
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

// trackerSources keeps the tracker: entries of a Stremio sources list.
func trackerSources(sources []string) []string {
	var trackers []string
	for _, source := range sources {
		if rest, ok := strings.CutPrefix(source, "tracker:"); ok && rest != "" {
			trackers = append(trackers, rest)
		}
	}
	return trackers
}

func parseEmojiSize(raw string) int64 {
	m := reTorrentioSize.FindStringSubmatch(raw)
	if len(m) != 3 {
		return 0
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	switch strings.ToUpper(m[2]) {
	case "KB":
		return int64(value * (1 << 10))
	case "MB":
		return int64(value * (1 << 20))
	case "GB":
		return int64(value * (1 << 30))
	case "TB":
		return int64(value * (1 << 40))
	case "PB":
		return int64(value * (1 << 50))
	default:
		return 0
	}
}
