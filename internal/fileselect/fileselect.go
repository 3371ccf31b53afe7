// Package fileselect picks the right video file out of a multi-file stream
// for a season/episode query. Stored file mappings win; otherwise filenames
// are parsed, including the absolute-numbering formats anime releases use.
package fileselect

import (
	"regexp"
	"strconv"
	"strings"

	"mediafusion/models"
)

var (
	episodeCodePattern = regexp.MustCompile(`(?i)s(\d{1,2})\s*e(\d{1,4})`)
	episodeWordPattern = regexp.MustCompile(`(?i)ep(?:isode)?\.?\s*(\d{1,4})`)
	episodeBarePattern = regexp.MustCompile(`[-_\s](\d{1,2})[-_\s\[\.]`)

	// Absolute episode number formats: "- 1153 [", "#1153", "Episode 1153",
	// "S01E1153". Resolution, year and checksum digits must not match.
	absoluteDashPattern    = regexp.MustCompile(`[-–]\s*(\d{2,4})(?:v\d)?\s*[\[\(\s]`)
	absoluteKeywordPattern = regexp.MustCompile(`(?i)(?:episode|ep\.?)\s*(\d{2,4})(?:\s|$|[\[\(])`)
	absoluteHashPattern    = regexp.MustCompile(`#\s*(\d{2,4})(?:\s|$|[\[\(])`)
	absoluteS01Pattern     = regexp.MustCompile(`(?i)s01e(\d{3,4})(?:\s|$|[.\-\[\(])`)

	resolutionPattern = regexp.MustCompile(`(?i)(\d{3,4})p`)
	yearPattern       = regexp.MustCompile(`[\(\[](\d{4})[\)\]]`)
)

// Pick returns the video file serving the given season/episode, or nil when
// the stream has no matching file. Season 0 means a movie or single-file
// query: the largest video file wins.
func Pick(files []models.StreamFile, season, episode int) *models.StreamFile {
	var videos []*models.StreamFile
	for i := range files {
		if files[i].Kind == models.FileVideo {
			videos = append(videos, &files[i])
		}
	}
	if len(videos) == 0 {
		return nil
	}
	if season <= 0 {
		return largest(videos)
	}

	// Stored mappings are authoritative.
	for _, f := range videos {
		if f.Season == season && f.Episode == episode {
			return f
		}
	}

	// Parse SxxEyy codes out of the filenames.
	var matches []*models.StreamFile
	for _, f := range videos {
		if s, e, ok := parseEpisodeCode(f.Filename); ok && s == season && e == episode {
			matches = append(matches, f)
		}
	}

	// Season-1 packs often number episodes without a season marker, and
	// long-running anime uses absolute numbering. Bare numbers are too
	// ambiguous for higher seasons.
	if len(matches) == 0 && season == 1 {
		for _, f := range videos {
			if n, ok := parseBareEpisode(f.Filename); ok && n == episode {
				matches = append(matches, f)
				continue
			}
			if n, ok := ParseAbsoluteEpisode(f.Filename); ok && n == episode {
				matches = append(matches, f)
			}
		}
	}

	if len(matches) == 0 {
		return nil
	}
	return largest(matches)
}

func largest(files []*models.StreamFile) *models.StreamFile {
	best := files[0]
	for _, f := range files[1:] {
		if f.SizeBytes > best.SizeBytes {
			best = f
		}
	}
	return best
}

func parseEpisodeCode(name string) (season, episode int, ok bool) {
	m := episodeCodePattern.FindStringSubmatch(name)
	if len(m) != 3 {
		return 0, 0, false
	}
	season, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	episode, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return season, episode, true
}

// parseBareEpisode extracts an episode number from formats without a season
// marker: "Ep. 05", "Episode 5", " - 05 - ".
func parseBareEpisode(name string) (int, bool) {
	if m := episodeWordPattern.FindStringSubmatch(name); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n, true
		}
	}
	if m := episodeBarePattern.FindStringSubmatch(name); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// ParseAbsoluteEpisode extracts an absolute episode number from anime-style
// filenames ("One Piece - 1153 [1080p]", "S01E1153"). Resolution and year
// digits never count as episodes.
func ParseAbsoluteEpisode(name string) (int, bool) {
	if strings.TrimSpace(name) == "" {
		return 0, false
	}

	exclude := make(map[int]bool)
	for _, m := range resolutionPattern.FindAllStringSubmatch(name, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			exclude[n] = true
		}
	}
	for _, m := range yearPattern.FindAllStringSubmatch(name, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			exclude[n] = true
		}
	}

	for _, pattern := range []*regexp.Regexp{
		absoluteDashPattern,
		absoluteKeywordPattern,
		absoluteHashPattern,
		absoluteS01Pattern,
	} {
		m := pattern.FindStringSubmatch(name)
		if len(m) < 2 {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 && !exclude[n] {
			return n, true
		}
	}
	return 0, false
}
