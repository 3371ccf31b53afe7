package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mediafusion/config"
	"mediafusion/utils/magnet"
)

func init() {
	RegisterType("htmltracker", func(cfg config.ScraperConfig, client *http.Client) (Scraper, error) {
		if !strings.Contains(cfg.URL, "{query}") {
			return nil, fmt.Errorf("htmltracker scraper %q needs a url with a {query} placeholder", cfg.Name)
		}
		return NewHTMLTracker(cfg, client), nil
	})
}

// HTMLTracker scrapes tracker sites with no API by walking the search results
// page for magnet anchors. The configured URL carries a {query} placeholder;
// Options optionally overrides the result row selector.
type HTMLTracker struct {
	name        string
	searchURL   string
	rowSelector string
	client      *http.Client
}

func NewHTMLTracker(cfg config.ScraperConfig, client *http.Client) *HTMLTracker {
	rowSelector := strings.TrimSpace(cfg.Options)
	if rowSelector == "" {
		rowSelector = "table tr"
	}
	return &HTMLTracker{
		name:        cfg.Name,
		searchURL:   cfg.URL,
		rowSelector: rowSelector,
		client:      client,
	}
}

func (h *HTMLTracker) Name() string {
	if h.name != "" {
		return h.name
	}
	return "htmltracker"
}

var (
	reHTMLSize    = regexp.MustCompile(`(?i)\b([\d.,]+)\s*([KMGT]i?B)\b`)
	reHTMLSeeders = regexp.MustCompile(`(?i)(?:seed(?:er)?s?[:\s]*)(\d+)`)
)

func (h *HTMLTracker) Scrape(ctx context.Context, req Request) ([]Candidate, error) {
	query := req.Title
	if req.Season > 0 {
		if req.Episode > 0 {
			query = fmt.Sprintf("%s S%02dE%02d", req.Title, req.Season, req.Episode)
		} else {
			query = fmt.Sprintf("%s S%02d", req.Title, req.Season)
		}
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	endpoint := strings.ReplaceAll(h.searchURL, "{query}", url.QueryEscape(query))
	body, err := getBody(ctx, h.client, h.Name(), endpoint)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s page: %v", ErrPermanent, h.Name(), err)
	}

	var candidates []Candidate
	doc.Find(h.rowSelector).Each(func(_ int, row *goquery.Selection) {
		href, ok := row.Find(`a[href^="magnet:"]`).First().Attr("href")
		if !ok {
			return
		}
		parsed, err := magnet.Parse(href)
		if err != nil {
			return
		}

		title := parsed.DisplayName
		if title == "" {
			// Longest plain link text in the row is usually the release name.
			row.Find("a").Each(func(_ int, a *goquery.Selection) {
				text := strings.TrimSpace(a.Text())
				if len(text) > len(title) && !strings.HasPrefix(text, "magnet:") {
					title = text
				}
			})
		}
		if title == "" {
			return
		}

		candidate := Candidate{
			Title:    title,
			InfoHash: parsed.InfoHash,
			Magnet:   href,
			Trackers: parsed.Trackers,
			Source:   h.Name(),
		}
		rowText := row.Text()
		if m := reHTMLSize.FindStringSubmatch(rowText); m != nil {
			candidate.SizeBytes = parseHumanSize(m[1], m[2])
		}
		if m := reHTMLSeeders.FindStringSubmatch(rowText); m != nil {
			if seeders, err := strconv.Atoi(m[1]); err == nil {
				candidate.Seeders = &seeders
			}
		}
		candidates = append(candidates, candidate)
	})
	return candidates, nil
}

func parseHumanSize(value, unit string) int64 {
	n, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return 0
	}
	switch strings.TrimSuffix(strings.ToUpper(unit), "IB") {
	case "K", "KB":
		return int64(n * (1 << 10))
	case "M", "MB":
		return int64(n * (1 << 20))
	case "G", "GB":
		return int64(n * (1 << 30))
	case "T", "TB":
		return int64(n * (1 << 40))
	default:
		return 0
	}
}
