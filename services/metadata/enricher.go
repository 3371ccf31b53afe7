// Package metadata enriches media records from public metadata providers.
// Cinemeta is the baseline for anything with an IMDb id; TMDB and TVDB layer
// richer artwork, ratings and alternative titles on top. Results are cached
// and written back onto the stored media row.
package metadata

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"mediafusion/config"
	"mediafusion/internal/cache"
	"mediafusion/models"
	"mediafusion/services/store"
	"mediafusion/utils/similarity"
)

// providerMeta is one provider's answer, before merging.
type providerMeta struct {
	Provider    string             `json:"provider"`
	Title       string             `json:"title"`
	Year        int                `json:"year,omitempty"`
	EndYear     int                `json:"endYear,omitempty"`
	Description string             `json:"description,omitempty"`
	Genres      []string           `json:"genres,omitempty"`
	Ratings     map[string]float64 `json:"ratings,omitempty"`
	Images      map[string]string  `json:"images,omitempty"`
	AKATitles   []string           `json:"akaTitles,omitempty"`
	Runtime     int                `json:"runtime,omitempty"`
}

// Enricher fans metadata lookups out across the configured providers and
// merges their answers into the media record.
type Enricher struct {
	cinemeta *cinemetaClient
	tmdb     *tmdbClient
	tvdb     *tvdbClient
	cache    *cache.Cache
	store    *store.Store
	ttl      time.Duration
}

func NewEnricher(cfg config.MetadataSettings, c *cache.Cache, st *store.Store, httpc *http.Client) *Enricher {
	return &Enricher{
		cinemeta: newCinemetaClient(httpc),
		tmdb:     newTMDBClient(cfg.TMDBAPIKey, cfg.Language, httpc),
		tvdb:     newTVDBClient(cfg.TVDBAPIKey, cfg.Language, httpc),
		cache:    c,
		store:    st,
		ttl:      cfg.TTL(),
	}
}

func metaCacheKey(kind models.MediaKind, externalID string) string {
	return fmt.Sprintf("meta:%s:%s", kind, externalID)
}

// Enrich fills the media record from providers and persists the result.
// Synthetic ids (no IMDb identity) keep whatever the ingest path named them.
func (e *Enricher) Enrich(ctx context.Context, media *models.Media) error {
	if !models.IsIMDBID(media.ExternalID) {
		return nil
	}

	merged, err := e.lookup(ctx, media.Kind, media.ExternalID)
	if err != nil {
		return err
	}
	if merged == nil {
		return nil
	}

	applyMeta(media, merged)
	media.UpdatedAt = time.Now()
	if err := e.store.UpdateMedia(ctx, media); err != nil {
		return fmt.Errorf("persist enriched media %s: %w", media.ExternalID, err)
	}
	return nil
}

// lookup returns the merged provider view, cached under the meta namespace.
func (e *Enricher) lookup(ctx context.Context, kind models.MediaKind, externalID string) (*providerMeta, error) {
	key := metaCacheKey(kind, externalID)
	var cached providerMeta
	if err := e.cache.GetJSON(key, &cached); err == nil {
		return &cached, nil
	}

	merged := e.fetchAll(ctx, kind, externalID)
	if merged == nil {
		return nil, fmt.Errorf("no metadata provider answered for %s", externalID)
	}
	if err := e.cache.SetJSON(key, merged, e.ttl); err != nil {
		log.Printf("[metadata] cache write %s: %v", key, err)
	}
	return merged, nil
}

// fetchAll queries providers in precedence order and merges. A provider
// failure costs its contribution only.
func (e *Enricher) fetchAll(ctx context.Context, kind models.MediaKind, externalID string) *providerMeta {
	var merged *providerMeta
	fetchers := []func(context.Context, models.MediaKind, string) (*providerMeta, error){
		e.cinemeta.fetch,
		e.tmdb.fetch,
		e.tvdb.fetch,
	}
	for _, fetch := range fetchers {
		meta, err := fetch(ctx, kind, externalID)
		if err != nil {
			log.Printf("[metadata] provider lookup %s: %v", externalID, err)
			continue
		}
		if meta == nil {
			continue
		}
		if merged == nil {
			base := *meta
			merged = &base
			continue
		}
		mergeMeta(merged, meta)
	}
	return merged
}

// mergeMeta folds a later provider into the baseline: scalars fill gaps only,
// ratings and images merge per key, aka titles union.
func mergeMeta(dst, src *providerMeta) {
	if dst.Title == "" {
		dst.Title = src.Title
	} else if src.Title != "" && !strings.EqualFold(dst.Title, src.Title) {
		dst.AKATitles = appendUniqueTitle(dst.AKATitles, src.Title, dst.Title)
	}
	if dst.Year == 0 {
		dst.Year = src.Year
	}
	if dst.EndYear == 0 {
		dst.EndYear = src.EndYear
	}
	if dst.Description == "" || len(src.Description) > len(dst.Description) {
		if src.Description != "" {
			dst.Description = src.Description
		}
	}
	if len(dst.Genres) == 0 {
		dst.Genres = src.Genres
	}
	if dst.Runtime == 0 {
		dst.Runtime = src.Runtime
	}
	for provider, score := range src.Ratings {
		if dst.Ratings == nil {
			dst.Ratings = map[string]float64{}
		}
		dst.Ratings[provider] = score
	}
	for role, url := range src.Images {
		if dst.Images == nil {
			dst.Images = map[string]string{}
		}
		if _, ok := dst.Images[role]; !ok {
			dst.Images[role] = url
		}
	}
	for _, aka := range src.AKATitles {
		dst.AKATitles = appendUniqueTitle(dst.AKATitles, aka, dst.Title)
	}
}

// appendUniqueTitle adds an aka title unless it duplicates the primary title
// or an existing alias.
func appendUniqueTitle(titles []string, title, primary string) []string {
	title = strings.TrimSpace(title)
	if title == "" || strings.EqualFold(title, primary) {
		return titles
	}
	for _, existing := range titles {
		if strings.EqualFold(existing, title) {
			return titles
		}
	}
	return append(titles, title)
}

func applyMeta(media *models.Media, meta *providerMeta) {
	if meta.Title != "" {
		media.Title = meta.Title
	}
	if meta.Year > 0 {
		media.Year = meta.Year
	}
	if meta.EndYear > 0 {
		media.EndYear = meta.EndYear
	}
	if meta.Description != "" {
		media.Description = meta.Description
	}
	if len(meta.Genres) > 0 {
		media.Genres = meta.Genres
	}
	if len(meta.Ratings) > 0 {
		media.Ratings = meta.Ratings
	}
	if len(meta.Images) > 0 {
		media.Images = meta.Images
	}
	if len(meta.AKATitles) > 0 {
		media.AKATitles = meta.AKATitles
	}
	if meta.Runtime > 0 {
		media.Runtime = meta.Runtime
	}
}

// MatchTitle scores a parsed release title against the media's title and its
// known aliases, so non-English releases still match.
func MatchTitle(media *models.Media, candidate string) float64 {
	score, _ := similarity.BestMatch(candidate, media.Title, media.AKATitles)
	return score
}
