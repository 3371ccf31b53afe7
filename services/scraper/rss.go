package scraper

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"mediafusion/config"
	"mediafusion/utils/magnet"
	"mediafusion/utils/similarity"
)

func init() {
	RegisterType("rss", func(cfg config.ScraperConfig, client *http.Client) (Scraper, error) {
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, fmt.Errorf("rss scraper %q needs a feed url", cfg.Name)
		}
		return NewRSSFeed(cfg, client), nil
	})
}

// RSSFeed ingests a release feed that is not searchable. The whole feed is
// fetched and items are matched against the requested title, so this plugin
// leans on the middleware cache to avoid refetching per request.
type RSSFeed struct {
	name     string
	feedURL  string
	minScore float64
	client   *http.Client
}

func NewRSSFeed(cfg config.ScraperConfig, client *http.Client) *RSSFeed {
	return &RSSFeed{
		name:     cfg.Name,
		feedURL:  cfg.URL,
		minScore: 0.85,
		client:   client,
	}
}

func (r *RSSFeed) Name() string {
	if r.name != "" {
		return r.name
	}
	return "rss"
}

type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title     string `xml:"title"`
	Link      string `xml:"link"`
	Enclosure struct {
		URL    string `xml:"url,attr"`
		Length int64  `xml:"length,attr"`
	} `xml:"enclosure"`
}

func (r *RSSFeed) Scrape(ctx context.Context, req Request) ([]Candidate, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, nil
	}

	body, err := getBody(ctx, r.client, r.Name(), r.feedURL)
	if err != nil {
		return nil, err
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("%w: decode %s feed: %v", ErrPermanent, r.Name(), err)
	}

	var candidates []Candidate
	for _, item := range feed.Channel.Items {
		uri := item.Link
		if !strings.HasPrefix(uri, "magnet:") {
			uri = item.Enclosure.URL
		}
		if !strings.HasPrefix(uri, "magnet:") {
			continue
		}
		parsed, err := magnet.Parse(uri)
		if err != nil {
			continue
		}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = parsed.DisplayName
		}
		if !r.matches(title, req) {
			continue
		}

		candidates = append(candidates, Candidate{
			Title:     title,
			InfoHash:  parsed.InfoHash,
			Magnet:    uri,
			Trackers:  parsed.Trackers,
			SizeBytes: item.Enclosure.Length,
			Source:    r.Name(),
		})
	}
	return candidates, nil
}

// matches compares the release title head against the requested title. The
// release head is the text before the first year or season marker.
func (r *RSSFeed) matches(releaseName string, req Request) bool {
	if releaseName == "" {
		return false
	}
	head := releaseHead(releaseName)
	score, _ := similarity.BestMatch(head, req.Title, nil)
	return score >= r.minScore
}

func releaseHead(name string) string {
	normalized := strings.Map(func(r rune) rune {
		switch r {
		case '.', '_', '-':
			return ' '
		}
		return r
	}, name)
	fields := strings.Fields(normalized)
	for i, field := range fields {
		if looksLikeBoundary(field) && i > 0 {
			return strings.Join(fields[:i], " ")
		}
	}
	return strings.Join(fields, " ")
}

func looksLikeBoundary(field string) bool {
	field = strings.ToLower(field)
	if len(field) == 4 {
		if strings.HasPrefix(field, "19") || strings.HasPrefix(field, "20") {
			for _, r := range field {
				if r < '0' || r > '9' {
					return false
				}
			}
			return true
		}
	}
	if len(field) >= 2 && field[0] == 's' {
		digits := true
		for _, r := range field[1:] {
			if (r < '0' || r > '9') && r != 'e' {
				digits = false
				break
			}
		}
		if digits {
			return true
		}
	}
	switch field {
	case "1080p", "720p", "2160p", "480p", "4k":
		return true
	}
	return false
}
