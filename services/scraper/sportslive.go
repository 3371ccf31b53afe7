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
	"mediafusion/utils/titleparser"
)

func init() {
	RegisterType("sportslive", func(cfg config.ScraperConfig, client *http.Client) (Scraper, error) {
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, fmt.Errorf("sportslive scraper %q needs a feed url", cfg.Name)
		}
		return NewSportsLive(cfg, client), nil
	})
}

// SportsLive ingests sports release feeds. Releases name events rather than
// titles, so matching runs through sports-mode parsing: category, round and
// event name instead of title and year.
type SportsLive struct {
	name    string
	feedURL string
	client  *http.Client
}

func NewSportsLive(cfg config.ScraperConfig, client *http.Client) *SportsLive {
	return &SportsLive{name: cfg.Name, feedURL: cfg.URL, client: client}
}

func (s *SportsLive) Name() string {
	if s.name != "" {
		return s.name
	}
	return "sportslive"
}

func (s *SportsLive) Scrape(ctx context.Context, req Request) ([]Candidate, error) {
	wanted, ok := titleparser.ParseSports(req.Title)
	if !ok {
		return nil, nil
	}
	if wanted.Year == 0 {
		wanted.Year = req.Year
	}

	body, err := getBody(ctx, s.client, s.Name(), s.feedURL)
	if err != nil {
		return nil, err
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("%w: decode %s feed: %v", ErrPermanent, s.Name(), err)
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
		event, ok := titleparser.ParseSports(title)
		if !ok || !matchesEvent(wanted, event) {
			continue
		}

		candidates = append(candidates, Candidate{
			Title:     title,
			InfoHash:  parsed.InfoHash,
			Magnet:    uri,
			Trackers:  parsed.Trackers,
			SizeBytes: item.Enclosure.Length,
			Source:    s.Name(),
		})
	}
	return candidates, nil
}

// matchesEvent decides whether a release belongs to the requested event.
// Category must agree; year and round only constrain when the request names
// them; event names compare fuzzily since feeds abbreviate venue names.
func matchesEvent(wanted, got titleparser.SportsEvent) bool {
	if wanted.Category != got.Category {
		return false
	}
	if wanted.Year > 0 && got.Year > 0 && wanted.Year != got.Year {
		return false
	}
	if wanted.Round > 0 && got.Round > 0 && wanted.Round != got.Round {
		return false
	}
	if wanted.Event == "" || got.Event == "" {
		return true
	}
	score := similarity.Score(wanted.Event, got.Event)
	if score >= 0.6 {
		return true
	}
	// Venue-only overlap: "Miami" vs "Miami Grand Prix Race".
	return containsFold(strings.Fields(got.Event), firstField(wanted.Event))
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
