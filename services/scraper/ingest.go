package scraper

import (
	"context"
	"fmt"
	"log"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"mediafusion/config"
	"mediafusion/models"
	"mediafusion/services/store"
	"mediafusion/utils/magnet"
	"mediafusion/utils/titleparser"
)

// Ingestor turns raw candidates into persisted streams: parse the release
// name, apply ingest policy (adult-content patterns, minimum plausible video
// size), and upsert into the store. A failed write drops that one stream
// only.
type Ingestor struct {
	store         *store.Store
	adultPatterns []*regexp.Regexp
	minVideoSize  int64
	workers       int
}

// NewIngestor builds the write path from ingest settings. Invalid adult
// patterns are logged and skipped.
func NewIngestor(st *store.Store, cfg config.IngestSettings) *Ingestor {
	ing := &Ingestor{
		store:        st,
		minVideoSize: cfg.MinVideoSizeBytes,
		workers:      cfg.WorkerPoolSize,
	}
	if ing.workers <= 0 {
		ing.workers = 4
	}
	for _, pattern := range cfg.AdultContentPatterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			log.Printf("[ingest] bad adult content pattern %q: %v", pattern, err)
			continue
		}
		ing.adultPatterns = append(ing.adultPatterns, re)
	}
	return ing
}

// Ingest writes candidates for a media and reports what happened per
// candidate.
func (ing *Ingestor) Ingest(ctx context.Context, mediaID int64, source string, candidates []Candidate) models.ScrapeMetrics {
	metrics := models.ScrapeMetrics{Scraper: source}
	var mu sync.Mutex

	p := pool.New().WithContext(ctx).WithMaxGoroutines(ing.workers)
	for _, candidate := range candidates {
		p.Go(func(ctx context.Context) error {
			outcome, ok := ing.ingestOne(ctx, mediaID, candidate)
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				metrics.Discarded++
				return nil
			}
			switch outcome {
			case store.OutcomeCreated:
				metrics.New++
			case store.OutcomeUpdated:
				metrics.Updated++
			case store.OutcomeBlocked:
				metrics.Blocked++
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		log.Printf("[ingest] %s cancelled: %v", source, err)
	}
	return metrics
}

func (ing *Ingestor) ingestOne(ctx context.Context, mediaID int64, candidate Candidate) (store.UpsertOutcome, bool) {
	if !models.IsInfoHash(candidate.InfoHash) {
		return 0, false
	}
	if ing.isAdult(candidate.Title) {
		return 0, false
	}
	if ing.minVideoSize > 0 && candidate.SizeBytes > 0 && candidate.SizeBytes < ing.minVideoSize {
		return 0, false
	}

	stream := ing.buildStream(candidate)
	outcome, err := ing.store.UpsertStream(ctx, mediaID, stream)
	if err != nil {
		log.Printf("[ingest] upsert %s: %v", candidate.InfoHash, err)
		return 0, false
	}
	return outcome, true
}

// IngestTorrent persists a stream decoded from an uploaded .torrent file,
// carrying the file listing so season packs map to episodes.
func (ing *Ingestor) IngestTorrent(ctx context.Context, mediaID int64, meta magnet.TorrentMeta) (store.UpsertOutcome, error) {
	if ing.isAdult(meta.Name) {
		return 0, fmt.Errorf("torrent %q rejected by content policy", meta.Name)
	}
	magnetURI, err := magnet.Build(meta.InfoHash, meta.Name, meta.Trackers)
	if err != nil {
		return 0, err
	}

	stream := ing.buildStream(Candidate{
		Title:     meta.Name,
		InfoHash:  meta.InfoHash,
		Magnet:    magnetURI,
		SizeBytes: meta.Size,
		Trackers:  meta.Trackers,
		Source:    "upload",
	})
	for i, file := range meta.Files {
		sf := models.StreamFile{
			Index:     i,
			Filename:  file.Path,
			SizeBytes: file.Size,
			Kind:      classifyFile(file.Path),
		}
		if sf.Kind == models.FileVideo {
			parsed := titleparser.Parse(path.Base(file.Path))
			if len(parsed.Seasons) == 1 && len(parsed.Episodes) == 1 {
				sf.Season = parsed.Seasons[0]
				sf.Episode = parsed.Episodes[0]
			}
		}
		stream.Files = append(stream.Files, sf)
	}
	return ing.store.UpsertStream(ctx, mediaID, stream)
}

var (
	videoExtensions    = map[string]struct{}{".mkv": {}, ".mp4": {}, ".m4v": {}, ".avi": {}, ".mov": {}, ".ts": {}, ".m2ts": {}, ".webm": {}}
	subtitleExtensions = map[string]struct{}{".srt": {}, ".sub": {}, ".ass": {}, ".ssa": {}, ".vtt": {}}
)

func classifyFile(name string) models.StreamFileKind {
	ext := strings.ToLower(path.Ext(name))
	if _, ok := videoExtensions[ext]; ok {
		return models.FileVideo
	}
	if _, ok := subtitleExtensions[ext]; ok {
		return models.FileSubtitle
	}
	return models.FileOther
}

func (ing *Ingestor) isAdult(title string) bool {
	for _, re := range ing.adultPatterns {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// buildStream parses the release name and folds in what the scraper already
// knew. Scraper-reported languages extend parsed ones.
func (ing *Ingestor) buildStream(candidate Candidate) *models.Stream {
	parsed := titleparser.Parse(candidate.Title)

	payloadKind := candidate.PayloadKind
	if payloadKind == "" {
		payloadKind = models.PayloadTorrent
	}
	payloadRef := candidate.PayloadRef
	if payloadRef == "" {
		payloadRef = candidate.Magnet
	}

	stream := &models.Stream{
		InfoHash:     strings.ToLower(candidate.InfoHash),
		Name:         candidate.Title,
		Source:       candidate.Source,
		ExtraSources: candidate.ExtraSources,
		PayloadKind:  payloadKind,
		PayloadRef:   payloadRef,
		SizeBytes:    candidate.SizeBytes,
		Resolution:   parsed.Resolution,
		Quality:      parsed.Quality,
		Codec:        parsed.Codec,
		Audio:        parsed.Audio,
		HDR:          parsed.HDR,
		Channels:     parsed.Channels,
		Languages:    parsed.Languages,
		ReleaseGroup: parsed.ReleaseGroup,
		Remux:        parsed.IsRemux,
		Proper:       parsed.IsProper,
		Repack:       parsed.IsRepack,
		Extended:     parsed.IsExtended,
		Dubbed:       parsed.IsDubbed,
		Subbed:       parsed.IsSubbed,
		Complete:     parsed.IsComplete,
		Seeders:      candidate.Seeders,
		Trackers:     candidate.Trackers,
		Seasons:      parsed.Seasons,
		Episodes:     parsed.Episodes,
		Uploader:     candidate.Uploader,
	}
	stream.MergeLanguages(candidate.Languages)
	return stream
}
