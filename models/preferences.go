package models

import (
	"fmt"
	"regexp"
	"strings"
)

// SortDirection orders a single sort key.
type SortDirection string

const (
	SortDesc SortDirection = "desc"
	SortAsc  SortDirection = "asc"
)

// SortKey names one ranking criterion in a preference vector.
type SortKey string

const (
	SortByResolution    SortKey = "resolution"
	SortByQuality       SortKey = "quality"
	SortByLanguage      SortKey = "language"
	SortBySize          SortKey = "size"
	SortBySeeders       SortKey = "seeders"
	SortByCreatedAt     SortKey = "created_at"
	SortByVoteScore     SortKey = "vote_score"
	SortByPlaybackCount SortKey = "playback_count"
)

// SortCriterion pairs a key with its direction.
type SortCriterion struct {
	Key       SortKey       `json:"key"`
	Direction SortDirection `json:"direction"`
}

// NameFilterMode controls the stream-name pattern filter.
type NameFilterMode string

const (
	NameFilterDisabled NameFilterMode = "disabled"
	NameFilterInclude  NameFilterMode = "include"
	NameFilterExclude  NameFilterMode = "exclude"
)

// NameFilter drops or keeps streams by display-name patterns.
type NameFilter struct {
	Mode     NameFilterMode `json:"mode"`
	Patterns []string       `json:"patterns,omitempty"`
	IsRegex  bool           `json:"isRegex,omitempty"`
}

// UserPreferences is the per-request preference vector applied by the
// filter/sort engine. It is supplied by the caller and never persisted here.
type UserPreferences struct {
	Version int `json:"version"`

	SelectedResolutions     []string        `json:"selectedResolutions,omitempty"` // empty = allow all
	QualityFilter           []string        `json:"qualityFilter,omitempty"`       // allowed quality groups
	Languages               []string        `json:"languages,omitempty"`           // ordered by preference
	MaxSizeBytes            int64           `json:"maxSizeBytes,omitempty"`
	MinSizeBytes            int64           `json:"minSizeBytes,omitempty"`
	MaxStreamsPerResolution int             `json:"maxStreamsPerResolution,omitempty"`
	MaxTotalStreams         int             `json:"maxTotalStreams"`
	SortingPriority         []SortCriterion `json:"sortingPriority,omitempty"`
	NameFilter              NameFilter      `json:"streamNameFilter,omitempty"`
	ShowFullTorrentName     bool            `json:"showFullTorrentName,omitempty"`
}

// DefaultPreferences returns the vector applied when a caller supplies none.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Version:         1,
		MaxTotalStreams: 50,
		SortingPriority: []SortCriterion{
			{Key: SortByResolution, Direction: SortDesc},
			{Key: SortBySize, Direction: SortDesc},
		},
		NameFilter: NameFilter{Mode: NameFilterDisabled},
	}
}

var knownSortKeys = map[SortKey]struct{}{
	SortByResolution:    {},
	SortByQuality:       {},
	SortByLanguage:      {},
	SortBySize:          {},
	SortBySeeders:       {},
	SortByCreatedAt:     {},
	SortByVoteScore:     {},
	SortByPlaybackCount: {},
}

// Validate checks ranges and patterns; violations surface to the caller as a
// structured 4xx.
func (p *UserPreferences) Validate() error {
	if p.MaxTotalStreams < 0 {
		return fmt.Errorf("maxTotalStreams must be >= 0, got %d", p.MaxTotalStreams)
	}
	if p.MaxStreamsPerResolution < 0 {
		return fmt.Errorf("maxStreamsPerResolution must be >= 0, got %d", p.MaxStreamsPerResolution)
	}
	if p.MaxSizeBytes < 0 || p.MinSizeBytes < 0 {
		return fmt.Errorf("size bounds must be >= 0")
	}
	if p.MaxSizeBytes > 0 && p.MinSizeBytes > p.MaxSizeBytes {
		return fmt.Errorf("minSizeBytes %d exceeds maxSizeBytes %d", p.MinSizeBytes, p.MaxSizeBytes)
	}
	for _, criterion := range p.SortingPriority {
		if _, ok := knownSortKeys[criterion.Key]; !ok {
			return fmt.Errorf("unknown sort key %q", criterion.Key)
		}
		switch criterion.Direction {
		case SortAsc, SortDesc, "":
		default:
			return fmt.Errorf("unknown sort direction %q", criterion.Direction)
		}
	}
	switch p.NameFilter.Mode {
	case NameFilterDisabled, NameFilterInclude, NameFilterExclude, "":
	default:
		return fmt.Errorf("unknown name filter mode %q", p.NameFilter.Mode)
	}
	if p.NameFilter.IsRegex {
		for _, pattern := range p.NameFilter.Patterns {
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("invalid name filter pattern %q: %w", pattern, err)
			}
		}
	}
	return nil
}

// ResolutionRank returns the position of res in the user's selected
// resolutions, lower ranks sorting first. Unlisted resolutions rank last.
func (p *UserPreferences) ResolutionRank(res string) int {
	return rankIn(p.SelectedResolutions, res)
}

// QualityRank ranks the best-placed quality tag against the user's filter.
func (p *UserPreferences) QualityRank(tags []string) int {
	best := len(p.QualityFilter)
	for _, tag := range tags {
		if r := rankIn(p.QualityFilter, tag); r < best {
			best = r
		}
	}
	return best
}

// LanguageRank ranks the best-matching language against the user's ordering.
func (p *UserPreferences) LanguageRank(langs []string) int {
	best := len(p.Languages)
	for _, lang := range langs {
		if r := rankIn(p.Languages, lang); r < best {
			best = r
		}
	}
	return best
}

func rankIn(list []string, value string) int {
	for i, v := range list {
		if strings.EqualFold(v, value) {
			return i
		}
	}
	return len(list)
}

// StreamRequest is what the routing layer hands the core for a stream lookup.
type StreamRequest struct {
	MediaExternalID string          `json:"mediaExternalId"`
	Kind            MediaKind       `json:"kind"`
	Season          int             `json:"season,omitempty"`
	Episode         int             `json:"episode,omitempty"`
	Preferences     UserPreferences `json:"preferences"`
	UserID          string          `json:"userId,omitempty"`
	ChosenProvider  string          `json:"chosenProvider,omitempty"`
}

// StreamResponse carries the ranked candidates plus the drop histogram the UI
// uses to explain empty results.
type StreamResponse struct {
	Streams       []Stream       `json:"streams"`
	DropHistogram map[string]int `json:"dropHistogram,omitempty"`
}

// ScrapeMetrics is the record a scheduled scrape returns to the scheduler.
type ScrapeMetrics struct {
	Scraper   string `json:"scraper"`
	New       int    `json:"new"`
	Updated   int    `json:"updated"`
	Blocked   int    `json:"blocked"`
	Discarded int    `json:"discarded"`
}
