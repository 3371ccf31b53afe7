package models

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// StreamPayloadKind distinguishes the transport a stream candidate uses.
type StreamPayloadKind string

const (
	PayloadTorrent  StreamPayloadKind = "torrent"
	PayloadUsenet   StreamPayloadKind = "usenet"
	PayloadDirect   StreamPayloadKind = "direct"
	PayloadAce      StreamPayloadKind = "acestream"
	PayloadLive     StreamPayloadKind = "live"
	PayloadTelegram StreamPayloadKind = "telegram"
)

var infoHashPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// IsInfoHash reports whether s is a 40-char lowercase hex info-hash.
func IsInfoHash(s string) bool {
	return infoHashPattern.MatchString(s)
}

// StreamFileKind classifies files inside a multi-file torrent.
type StreamFileKind string

const (
	FileVideo    StreamFileKind = "video"
	FileSubtitle StreamFileKind = "subtitle"
	FileOther    StreamFileKind = "other"
)

// StreamFile is a single file inside a multi-file torrent. The file links to
// the target media separately from its parent stream so one season pack can
// serve many episode queries.
type StreamFile struct {
	ID        int64          `json:"id"`
	StreamID  int64          `json:"streamId"`
	Filename  string         `json:"filename"`
	SizeBytes int64          `json:"sizeBytes"`
	Index     int            `json:"index"`
	Kind      StreamFileKind `json:"kind"`
	Season    int            `json:"season,omitempty"`
	Episode   int            `json:"episode,omitempty"`
	Title     string         `json:"title,omitempty"`
}

// Stream is a single playable candidate, deduplicated across sources by
// info-hash. Blocked streams never surface regardless of votes; they are soft
// deleted, never removed.
type Stream struct {
	ID           int64             `json:"id"`
	InfoHash     string            `json:"infoHash"` // 40-hex lowercase
	Name         string            `json:"name"`
	Source       string            `json:"source"` // scraper that found it first
	ExtraSources []string          `json:"extraSources,omitempty"`
	PayloadKind  StreamPayloadKind `json:"payloadKind"`
	PayloadRef   string            `json:"payloadRef,omitempty"` // magnet / nzb guid / url

	SizeBytes    int64    `json:"sizeBytes"` // 0 = unknown
	Resolution   string   `json:"resolution,omitempty"`
	Quality      []string `json:"quality,omitempty"`
	Codec        string   `json:"codec,omitempty"`
	Audio        []string `json:"audio,omitempty"`
	HDR          []string `json:"hdr,omitempty"`
	Channels     []string `json:"channels,omitempty"`
	Languages    []string `json:"languages,omitempty"`
	ReleaseGroup string   `json:"releaseGroup,omitempty"`

	Remux    bool `json:"remux,omitempty"`
	Proper   bool `json:"proper,omitempty"`
	Repack   bool `json:"repack,omitempty"`
	Extended bool `json:"extended,omitempty"`
	Dubbed   bool `json:"dubbed,omitempty"`
	Subbed   bool `json:"subbed,omitempty"`
	Complete bool `json:"complete,omitempty"`

	Seeders  *int     `json:"seeders,omitempty"`
	Trackers []string `json:"trackers,omitempty"`
	Seasons  []int    `json:"seasons,omitempty"`
	Episodes []int    `json:"episodes,omitempty"`

	Uploader      string `json:"uploader,omitempty"`
	VoteScore     int    `json:"voteScore"`
	PlaybackCount int    `json:"playbackCount"`

	IsActive  bool      `json:"isActive"`
	IsBlocked bool      `json:"isBlocked"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Files []StreamFile `json:"files,omitempty"`
}

// SeedersOrZero returns the seeder count, treating unknown as zero.
func (s *Stream) SeedersOrZero() int {
	if s.Seeders == nil {
		return 0
	}
	return *s.Seeders
}

// AddSource records an additional scraper that reported the same info-hash.
// The original source tag is preserved.
func (s *Stream) AddSource(source string) {
	source = strings.TrimSpace(source)
	if source == "" || strings.EqualFold(source, s.Source) {
		return
	}
	for _, existing := range s.ExtraSources {
		if strings.EqualFold(existing, source) {
			return
		}
	}
	s.ExtraSources = append(s.ExtraSources, source)
}

// MergeLanguages unions the given languages into the stream, case-insensitive.
func (s *Stream) MergeLanguages(langs []string) {
	s.Languages = unionFold(s.Languages, langs)
}

// MergeTrackers unions the given announce URLs into the stream.
func (s *Stream) MergeTrackers(trackers []string) {
	s.Trackers = unionFold(s.Trackers, trackers)
}

func unionFold(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[strings.ToLower(v)] = struct{}{}
	}
	for _, v := range src {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

// HasSeason reports whether the stream's parsed seasons contain n.
func (s *Stream) HasSeason(n int) bool {
	for _, season := range s.Seasons {
		if season == n {
			return true
		}
	}
	return false
}

// FileFor returns the video file linked to the given season/episode, if any.
func (s *Stream) FileFor(season, episode int) *StreamFile {
	for i := range s.Files {
		f := &s.Files[i]
		if f.Season == season && f.Episode == episode && f.Kind == FileVideo {
			return f
		}
	}
	return nil
}

// SortedTrackers returns the tracker set in deterministic order.
func (s *Stream) SortedTrackers() []string {
	out := append([]string(nil), s.Trackers...)
	sort.Strings(out)
	return out
}
