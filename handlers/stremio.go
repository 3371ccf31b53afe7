package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"mediafusion/internal/fileselect"
	"mediafusion/models"
	"mediafusion/services/debrid"
	"mediafusion/services/filter"
	"mediafusion/services/metadata"
	"mediafusion/services/scraper"
	"mediafusion/services/store"
)

const addonVersion = "1.0.0"

// StremioHandler serves the addon protocol: manifest and stream lists.
type StremioHandler struct {
	store          *store.Store
	orchestrator   *scraper.Orchestrator
	ingestor       *scraper.Ingestor
	enricher       *metadata.Enricher
	providers      map[string]debrid.Provider
	baseURL        string
	requestTimeout time.Duration
}

func NewStremioHandler(st *store.Store, orch *scraper.Orchestrator, ing *scraper.Ingestor,
	enricher *metadata.Enricher, providers map[string]debrid.Provider, baseURL string,
	requestTimeout time.Duration) *StremioHandler {
	if requestTimeout <= 0 {
		requestTimeout = 45 * time.Second
	}
	return &StremioHandler{
		store:          st,
		orchestrator:   orch,
		ingestor:       ing,
		enricher:       enricher,
		providers:      providers,
		baseURL:        strings.TrimRight(baseURL, "/"),
		requestTimeout: requestTimeout,
	}
}

// Manifest describes the addon. The config segment, when present, only
// affects stream URLs, so one manifest serves all configs.
func (h *StremioHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	manifest := models.Manifest{
		ID:          "community.mediafusion",
		Name:        "MediaFusion",
		Description: "Aggregated torrent and debrid streams for movies, series and live events",
		Version:     addonVersion,
		Resources:   []string{"stream"},
		Types:       []string{"movie", "series", "tv", "events"},
		Catalogs:    []models.CatalogItem{},
		IDPrefixes:  []string{"tt", "mf"},
		BehaviorHints: &models.ManifestBehaviorHints{
			P2P:          true,
			Configurable: true,
		},
	}
	writeJSON(w, http.StatusOK, manifest)
}

// Streams answers a stream query: scrape, ingest, filter, rank, render.
func (h *StremioHandler) Streams(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	cfg, err := parseUserConfig(vars["config"])
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid config: %v", err)
		return
	}
	kind, ok := kindFromStremioType(vars["mediaType"])
	if !ok {
		httpError(w, http.StatusNotFound, "unknown content type %q", vars["mediaType"])
		return
	}
	externalID, season, episode, err := parseStreamID(vars["id"])
	if err != nil {
		httpError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if !models.IsIMDBID(externalID) && !models.IsSyntheticID(externalID) {
		writeJSON(w, http.StatusOK, models.StreamList{Streams: []models.StreamItem{}})
		return
	}

	// The aggregate deadline: scrapers carry their own per-call timeouts
	// underneath this one.
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	media, err := h.store.EnsureMedia(ctx, externalID, kind)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "load media: %v", err)
		return
	}
	if err := h.enricher.Enrich(ctx, media); err != nil {
		log.Printf("[stremio] enrich %s: %v", externalID, err)
	}

	h.scrapeAndIngest(ctx, media, season, episode)

	streams, err := h.store.StreamsForMedia(ctx, media.ID, season, episode)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "load streams: %v", err)
		return
	}
	ranked, histogram := filter.Apply(streams, cfg.Preferences)
	if len(ranked) == 0 && len(histogram) > 0 {
		log.Printf("[stremio] %s: all %d streams dropped: %v", externalID, len(streams), histogram)
	}

	items := make([]models.StreamItem, 0, len(ranked))
	for _, stream := range ranked {
		items = append(items, h.renderStream(stream, cfg, vars["config"], season, episode))
	}
	writeJSON(w, http.StatusOK, models.StreamList{Streams: items})
}

// scrapeAndIngest runs a live scrape for the request and persists what it
// finds. Scrape failures already degraded to partial results upstream.
func (h *StremioHandler) scrapeAndIngest(ctx context.Context, media *models.Media, season, episode int) {
	req := scraper.Request{
		MediaExternalID: media.ExternalID,
		Kind:            media.Kind,
		Title:           media.Title,
		Year:            media.Year,
		Season:          season,
		Episode:         episode,
	}
	candidates := h.orchestrator.Scrape(ctx, req)
	if len(candidates) == 0 {
		return
	}
	metrics := h.ingestor.Ingest(ctx, media.ID, "live", candidates)
	log.Printf("[stremio] %s: scraped %d candidates, new=%d updated=%d blocked=%d discarded=%d",
		media.ExternalID, len(candidates), metrics.New, metrics.Updated, metrics.Blocked, metrics.Discarded)
}

// renderStream maps one ranked stream to the wire item. With a debrid
// provider configured the item carries a resolve URL; otherwise the raw
// info-hash plays over P2P.
func (h *StremioHandler) renderStream(stream *models.Stream, cfg userConfig, configSegment string, season, episode int) models.StreamItem {
	item := models.StreamItem{
		Name:  streamLabel(stream),
		Title: streamTitle(stream, cfg.Preferences),
		BehaviorHints: &models.StreamBehaviorHints{
			BingeGroup: bingeGroup(stream),
			VideoSize:  stream.SizeBytes,
		},
	}

	// Stored mappings win; for unmapped season packs the filename parser
	// picks the episode file.
	file := stream.FileFor(season, episode)
	if file == nil {
		file = fileselect.Pick(stream.Files, season, episode)
	}
	var fileHint string
	if file != nil {
		fileHint = file.Filename
		item.BehaviorHints.Filename = file.Filename
	}

	if _, ok := h.providers[cfg.Provider]; ok && cfg.Provider != "" {
		resolveURL := fmt.Sprintf("%s/%s/resolve/%s/%s", h.baseURL, configSegment, cfg.Provider, stream.InfoHash)
		if fileHint != "" {
			resolveURL += "?file=" + url.QueryEscape(fileHint)
		}
		item.URL = resolveURL
		return item
	}

	item.InfoHash = stream.InfoHash
	if file != nil {
		idx := file.Index
		item.FileIdx = &idx
	}
	for _, tracker := range stream.SortedTrackers() {
		item.Sources = append(item.Sources, "tracker:"+tracker)
	}
	item.Sources = append(item.Sources, "dht:"+stream.InfoHash)
	return item
}

// streamLabel is the short addon-name column: addon plus resolution.
func streamLabel(stream *models.Stream) string {
	res := stream.Resolution
	if res == "" {
		res = "SD"
	}
	return "MediaFusion " + res
}

// streamTitle is the descriptive line under the label.
func streamTitle(stream *models.Stream, prefs models.UserPreferences) string {
	if prefs.ShowFullTorrentName {
		return stream.Name
	}
	parts := []string{}
	if stream.SizeBytes > 0 {
		parts = append(parts, humanSize(stream.SizeBytes))
	}
	if stream.Seeders != nil {
		parts = append(parts, fmt.Sprintf("%d seeds", *stream.Seeders))
	}
	if len(stream.Languages) > 0 {
		parts = append(parts, strings.Join(stream.Languages, "/"))
	}
	parts = append(parts, stream.Source)
	return strings.Join(parts, " | ")
}

// bingeGroup keys episodes of the same release together so the client
// auto-plays the next episode from the same torrent family.
func bingeGroup(stream *models.Stream) string {
	parts := []string{"mediafusion", stream.Resolution}
	if len(stream.Quality) > 0 {
		parts = append(parts, stream.Quality[0])
	}
	if stream.Codec != "" {
		parts = append(parts, stream.Codec)
	}
	return strings.Join(parts, "|")
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
