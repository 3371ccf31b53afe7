// Package filter applies a user preference vector to a candidate stream set
// and produces a ranked list plus a histogram of drop reasons. An empty
// result is a normal outcome; the histogram tells the UI why.
package filter

import (
	"regexp"
	"sort"
	"strings"

	"mediafusion/models"
	"mediafusion/utils/titleparser"
)

// Drop reasons, exactly as surfaced to clients.
const (
	ReasonResolution = "Resolution Not Selected"
	ReasonQuality    = "Quality Not Selected"
	ReasonLanguage   = "Language Not Selected"
	ReasonMinSize    = "Min Size Not Met"
	ReasonMaxSize    = "Max Size Exceeded"
	ReasonNameFilter = "Stream Name Filter"
)

// Apply filters and ranks streams by prefs. The input slice is not modified.
// Ordering is fully deterministic: equal streams under every sort criterion
// fall back to info-hash order.
func Apply(streams []*models.Stream, prefs models.UserPreferences) ([]*models.Stream, map[string]int) {
	histogram := make(map[string]int)
	nameMatcher := newNameMatcher(prefs.NameFilter)

	kept := make([]*models.Stream, 0, len(streams))
	for _, stream := range streams {
		if reason := dropReason(stream, prefs, nameMatcher); reason != "" {
			histogram[reason]++
			continue
		}
		kept = append(kept, stream)
	}

	sortStreams(kept, prefs)
	kept = applyPerResolutionCap(kept, prefs.MaxStreamsPerResolution)

	if len(kept) > prefs.MaxTotalStreams {
		kept = kept[:prefs.MaxTotalStreams]
	}
	return kept, histogram
}

func dropReason(stream *models.Stream, prefs models.UserPreferences, nameMatcher *nameMatcher) string {
	if len(prefs.SelectedResolutions) > 0 &&
		prefs.ResolutionRank(stream.Resolution) == len(prefs.SelectedResolutions) {
		return ReasonResolution
	}

	if len(prefs.QualityFilter) > 0 &&
		prefs.QualityRank(qualityGroups(stream)) == len(prefs.QualityFilter) {
		return ReasonQuality
	}

	if len(prefs.Languages) > 0 &&
		prefs.LanguageRank(stream.Languages) == len(prefs.Languages) {
		return ReasonLanguage
	}

	// Size 0 means unknown and is exempt from both size bounds.
	if stream.SizeBytes > 0 {
		if prefs.MaxSizeBytes > 0 && stream.SizeBytes > prefs.MaxSizeBytes {
			return ReasonMaxSize
		}
		if prefs.MinSizeBytes > 0 && stream.SizeBytes < prefs.MinSizeBytes {
			return ReasonMinSize
		}
	}

	if !nameMatcher.allows(stream.Name) {
		return ReasonNameFilter
	}
	return ""
}

// qualityGroups maps a stream's quality tags to their coarse groups, which is
// what the preference vector filters on.
func qualityGroups(stream *models.Stream) []string {
	var groups []string
	for _, tag := range stream.Quality {
		if group := titleparser.QualityGroup(tag); group != "" {
			groups = append(groups, group)
		}
	}
	return groups
}

// nameMatcher implements the stream-name filter: regex or case-insensitive
// substring patterns in include or exclude mode.
type nameMatcher struct {
	mode     models.NameFilterMode
	regexes  []*regexp.Regexp
	needles  []string
	disabled bool
}

func newNameMatcher(f models.NameFilter) *nameMatcher {
	m := &nameMatcher{mode: f.Mode}
	if f.Mode == models.NameFilterDisabled || f.Mode == "" || len(f.Patterns) == 0 {
		m.disabled = true
		return m
	}
	for _, pattern := range f.Patterns {
		if f.IsRegex {
			// Patterns are validated upstream; a bad one degrades to no-op.
			if re, err := regexp.Compile("(?i)" + pattern); err == nil {
				m.regexes = append(m.regexes, re)
			}
		} else {
			m.needles = append(m.needles, strings.ToLower(pattern))
		}
	}
	if len(m.regexes) == 0 && len(m.needles) == 0 {
		m.disabled = true
	}
	return m
}

func (m *nameMatcher) allows(name string) bool {
	if m.disabled {
		return true
	}
	matched := m.matches(name)
	if m.mode == models.NameFilterInclude {
		return matched
	}
	return !matched
}

func (m *nameMatcher) matches(name string) bool {
	lower := strings.ToLower(name)
	for _, needle := range m.needles {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	for _, re := range m.regexes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// sortStreams orders by the preference vector's sorting priority. Resolution,
// quality and language rank by position in the user's lists, not by any
// intrinsic scale; the remaining keys are numeric. Each criterion carries its
// own direction.
func sortStreams(streams []*models.Stream, prefs models.UserPreferences) {
	criteria := prefs.SortingPriority
	sort.SliceStable(streams, func(i, j int) bool {
		a, b := streams[i], streams[j]
		for _, criterion := range criteria {
			va := sortValue(a, criterion.Key, prefs)
			vb := sortValue(b, criterion.Key, prefs)
			if va == vb {
				continue
			}
			if criterion.Direction == models.SortAsc {
				return va < vb
			}
			return va > vb
		}
		return a.InfoHash < b.InfoHash
	})
}

// sortValue maps a stream to a number per key, oriented so that larger is
// "better" under a descending direction. Unknown keys sort as 0.
func sortValue(stream *models.Stream, key models.SortKey, prefs models.UserPreferences) float64 {
	switch key {
	case models.SortByResolution:
		if len(prefs.SelectedResolutions) == 0 {
			// No selection to rank against: fall back to pixel height.
			return float64(titleparser.ResolutionHeight(stream.Resolution))
		}
		return -float64(prefs.ResolutionRank(stream.Resolution))
	case models.SortByQuality:
		return -float64(prefs.QualityRank(qualityGroups(stream)))
	case models.SortByLanguage:
		return -float64(prefs.LanguageRank(stream.Languages))
	case models.SortBySize:
		return float64(stream.SizeBytes)
	case models.SortBySeeders:
		return float64(stream.SeedersOrZero())
	case models.SortByCreatedAt:
		return float64(stream.CreatedAt.UnixNano())
	case models.SortByVoteScore:
		return float64(stream.VoteScore)
	case models.SortByPlaybackCount:
		return float64(stream.PlaybackCount)
	default:
		return 0
	}
}

// applyPerResolutionCap keeps at most cap streams of each resolution,
// scanning the already-sorted list so the best-ranked survive.
func applyPerResolutionCap(streams []*models.Stream, cap int) []*models.Stream {
	if cap <= 0 {
		return streams
	}
	counts := make(map[string]int)
	kept := streams[:0]
	for _, stream := range streams {
		if counts[stream.Resolution] >= cap {
			continue
		}
		counts[stream.Resolution]++
		kept = append(kept, stream)
	}
	return kept
}
