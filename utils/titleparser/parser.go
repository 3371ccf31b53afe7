// Package titleparser turns raw release names into structured quality
// attributes. Parsing is a pure function of the input string and never fails:
// on unrecognizable input the cleaned input becomes the title and everything
// else stays zero.
package titleparser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// ParsedTitle is the structured result of parsing one release name.
type ParsedTitle struct {
	Title        string   `json:"title"`
	Year         int      `json:"year,omitempty"`
	Seasons      []int    `json:"seasons,omitempty"`
	Episodes     []int    `json:"episodes,omitempty"`
	Resolution   string   `json:"resolution,omitempty"`
	Codec        string   `json:"codec,omitempty"`
	Quality      []string `json:"quality,omitempty"`
	Audio        []string `json:"audio,omitempty"`
	Channels     []string `json:"channels,omitempty"`
	HDR          []string `json:"hdr,omitempty"`
	Languages    []string `json:"languages,omitempty"`
	IsRemux      bool     `json:"isRemux,omitempty"`
	IsProper     bool     `json:"isProper,omitempty"`
	IsRepack     bool     `json:"isRepack,omitempty"`
	IsExtended   bool     `json:"isExtended,omitempty"`
	IsDubbed     bool     `json:"isDubbed,omitempty"`
	IsSubbed     bool     `json:"isSubbed,omitempty"`
	IsComplete   bool     `json:"isComplete,omitempty"`
	ReleaseGroup string   `json:"releaseGroup,omitempty"`
	Container    string   `json:"container,omitempty"`
}

var (
	reContainer = regexp.MustCompile(`(?i)\.(mkv|mp4|avi|ts|m2ts|wmv|mov|webm)$`)
	reYear      = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

	reResolutionP = regexp.MustCompile(`(?i)\b(2160|1440|1080|720|576|480|360|240)[pi]\b`)
	reResolution4K = regexp.MustCompile(`(?i)\b(4k|uhd)\b`)
	reResolutionEq = regexp.MustCompile(`(?i)\b(fhd|hd|sd)\b`)
	reResolutionWH = regexp.MustCompile(`(?i)\b(\d{3,4})x(\d{3,4})\b`)

	reSeasonEpisode = regexp.MustCompile(`(?i)\bS(\d{1,2})[\s._-]?E(\d{1,3})(?:[-E]+(\d{1,3}))?\b`)
	reSeasonX       = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
	reSeasonOnly    = regexp.MustCompile(`(?i)\bS(\d{1,2})(?:[-S]+(\d{1,2}))?\b`)
	reSeasonWord    = regexp.MustCompile(`(?i)\bseason[\s._-]?(\d{1,2})\b`)
	reEpisodeWord   = regexp.MustCompile(`(?i)\b(?:episode|ep)[\s._-]?(\d{1,3})\b`)
	reComplete      = regexp.MustCompile(`(?i)\b(complete|collection|full[\s._-]series)\b`)

	reCodec = regexp.MustCompile(`(?i)\b(x264|x265|h[\s._-]?264|h[\s._-]?265|hevc|avc|av1|xvid|divx|vp9|mpeg2)\b`)

	reAudio    = regexp.MustCompile(`(?i)\b(atmos|truehd|dts[\s._-]?(?:hd[\s._-]?ma|hd|x)?|ddp?5?\.?1?|dd\+|e[\s._-]?ac[\s._-]?3|ac[\s._-]?3|aac|flac|opus|mp3|pcm)\b`)
	reChannels = regexp.MustCompile(`\b([257])\.([01])\b`)

	reHDR = regexp.MustCompile(`(?i)\b(dolby[\s._-]?vision|dovi|dv|hdr10\+|hdr10|hdr|hlg|sdr)\b`)

	reRemux    = regexp.MustCompile(`(?i)\bremux\b`)
	reProper   = regexp.MustCompile(`(?i)\bproper\b`)
	reRepack   = regexp.MustCompile(`(?i)\b(repack|rerip)\b`)
	reExtended = regexp.MustCompile(`(?i)\b(extended|uncut|directors[\s._-]?cut)\b`)
	reDubbed   = regexp.MustCompile(`(?i)\b(dubbed|dual[\s._-]audio|multi[\s._-]audio|dub)\b`)
	reSubbed   = regexp.MustCompile(`(?i)\b(subbed|subs|esub(?:s)?|vostfr|multi[\s._-]?sub(?:s)?)\b`)

	// Trailing "-GROUP" before the container extension.
	reReleaseGroup = regexp.MustCompile(`-\s?([A-Za-z0-9][A-Za-z0-9._]*?)(?:\[[^\]]*\])?$`)

	reSeparators = regexp.MustCompile(`[._]+`)
	reSpaces     = regexp.MustCompile(`\s+`)
	reBrackets   = regexp.MustCompile(`[\[\(][^\]\)]*[\]\)]`)
)

// qualityPatterns maps release-source tokens to their canonical quality tag
// and group. Ordered so longer tokens match before their prefixes.
var qualityPatterns = []struct {
	re    *regexp.Regexp
	tag   string
	group string
}{
	{regexp.MustCompile(`(?i)\buhd[\s._-]?rip\b`), "UHDRip", "BluRay/UHD"},
	{regexp.MustCompile(`(?i)\bremux\b`), "REMUX", "BluRay/UHD"},
	{regexp.MustCompile(`(?i)\bblu[\s._-]?ray\b`), "BluRay", "BluRay/UHD"},
	{regexp.MustCompile(`(?i)\bbd[\s._-]?rip\b`), "BDRip", "BluRay/UHD"},
	{regexp.MustCompile(`(?i)\bbr[\s._-]?rip\b`), "BRRip", "BluRay/UHD"},
	{regexp.MustCompile(`(?i)\bweb[\s._-]?dl\b`), "WEB-DL", "WEB/HD"},
	{regexp.MustCompile(`(?i)\bweb[\s._-]?rip\b`), "WEBRip", "WEB/HD"},
	{regexp.MustCompile(`(?i)\bweb[\s._-]?mux\b`), "WEBMux", "WEB/HD"},
	{regexp.MustCompile(`(?i)\bhd[\s._-]?rip\b`), "HDRip", "WEB/HD"},
	{regexp.MustCompile(`(?i)\bweb\b`), "WEB-DL", "WEB/HD"},
	{regexp.MustCompile(`(?i)\bdvd[\s._-]?rip\b`), "DVDRip", "DVD/TV/SAT"},
	{regexp.MustCompile(`(?i)\bdvd\b`), "DVD", "DVD/TV/SAT"},
	{regexp.MustCompile(`(?i)\bhd[\s._-]?tv\b`), "HDTV", "DVD/TV/SAT"},
	{regexp.MustCompile(`(?i)\bsat[\s._-]?rip\b`), "SATRip", "DVD/TV/SAT"},
	{regexp.MustCompile(`(?i)\btv[\s._-]?rip\b`), "TVRip", "DVD/TV/SAT"},
	{regexp.MustCompile(`(?i)\bpdtv\b`), "PDTV", "DVD/TV/SAT"},
	{regexp.MustCompile(`(?i)\bppv[\s._-]?rip\b`), "PPVRip", "DVD/TV/SAT"},
	{regexp.MustCompile(`(?i)\bcam[\s._-]?rip\b|\bhd[\s._-]?cam\b|\bcam\b`), "CAM", "CAM/Screener"},
	{regexp.MustCompile(`(?i)\btele[\s._-]?sync\b|\bts\b`), "TS", "CAM/Screener"},
	{regexp.MustCompile(`(?i)\btele[\s._-]?cine\b|\btc\b`), "TC", "CAM/Screener"},
	{regexp.MustCompile(`(?i)\bscreener\b|\bscr\b|\bdvd[\s._-]?scr\b`), "SCR", "CAM/Screener"},
}

// QualityGroup returns the coarse group a canonical quality tag belongs to,
// or empty when the tag is unknown.
func QualityGroup(tag string) string {
	for _, qp := range qualityPatterns {
		if strings.EqualFold(qp.tag, tag) {
			return qp.group
		}
	}
	return ""
}

// Parse produces a best-effort ParsedTitle from a raw release name. It is
// deterministic and never returns an error: ambiguous input yields a record
// whose Title is the full cleaned input.
func Parse(raw string) ParsedTitle {
	var parsed ParsedTitle
	working := strings.TrimSpace(raw)
	if working == "" {
		return parsed
	}

	if m := reContainer.FindStringSubmatch(working); m != nil {
		parsed.Container = strings.ToLower(m[1])
		working = working[:len(working)-len(m[0])]
	}

	// Track the earliest metadata token: title text ends where metadata begins.
	titleEnd := len(working)
	note := func(loc []int) {
		if loc != nil && loc[0] > 0 && loc[0] < titleEnd {
			titleEnd = loc[0]
		}
	}

	if m := reReleaseGroup.FindStringSubmatch(working); m != nil {
		candidate := m[1]
		// A trailing dashed token is a group only if it is not itself a
		// recognized metadata token (e.g. "-DL" in WEB-DL).
		if !looksLikeMetadata(candidate) {
			parsed.ReleaseGroup = candidate
			working = working[:len(working)-len(m[0])]
		}
	}

	parsed.Seasons, parsed.Episodes = parseSeasonsEpisodes(working, note)
	parsed.IsComplete = reComplete.MatchString(working)
	if parsed.IsComplete {
		note(reComplete.FindStringIndex(working))
	}

	parsed.Resolution = parseResolution(working, note)

	if m := reCodec.FindStringIndex(working); m != nil {
		note(m)
		parsed.Codec = canonicalCodec(working[m[0]:m[1]])
	}

	for _, qp := range qualityPatterns {
		if loc := qp.re.FindStringIndex(working); loc != nil {
			if !containsFold(parsed.Quality, qp.tag) {
				parsed.Quality = append(parsed.Quality, qp.tag)
			}
			note(loc)
		}
	}

	for _, m := range reAudio.FindAllString(working, -1) {
		canonical := canonicalAudio(m)
		if canonical != "" && !containsFold(parsed.Audio, canonical) {
			parsed.Audio = append(parsed.Audio, canonical)
		}
	}
	if loc := reAudio.FindStringIndex(working); loc != nil {
		note(loc)
	}

	for _, m := range reChannels.FindAllString(working, -1) {
		if !containsFold(parsed.Channels, m) {
			parsed.Channels = append(parsed.Channels, m)
		}
	}

	for _, m := range reHDR.FindAllString(working, -1) {
		canonical := canonicalHDR(m)
		if canonical != "" && !containsFold(parsed.HDR, canonical) {
			parsed.HDR = append(parsed.HDR, canonical)
		}
	}
	if loc := reHDR.FindStringIndex(working); loc != nil {
		note(loc)
	}

	parsed.Languages = detectLanguages(working)
	parsed.IsRemux = reRemux.MatchString(working)
	parsed.IsProper = reProper.MatchString(working)
	parsed.IsRepack = reRepack.MatchString(working)
	parsed.IsExtended = reExtended.MatchString(working)
	parsed.IsDubbed = reDubbed.MatchString(working)
	parsed.IsSubbed = reSubbed.MatchString(working)

	// Year: prefer the last plausible match before other metadata; release
	// names put the year right after the title.
	for _, loc := range reYear.FindAllStringIndex(working, -1) {
		if loc[0] <= titleEnd {
			parsed.Year, _ = strconv.Atoi(working[loc[0]:loc[1]])
			if loc[0] < titleEnd && loc[0] > 0 {
				titleEnd = loc[0]
			}
		}
	}

	parsed.Title = cleanTitle(working[:titleEnd])
	if parsed.Title == "" {
		parsed.Title = cleanTitle(working)
	}
	return parsed
}

func parseSeasonsEpisodes(s string, note func([]int)) (seasons, episodes []int) {
	if m := reSeasonEpisode.FindStringSubmatchIndex(s); m != nil {
		note(m[0:2])
		season, _ := strconv.Atoi(s[m[2]:m[3]])
		seasons = appendUnique(seasons, season)
		first, _ := strconv.Atoi(s[m[4]:m[5]])
		episodes = appendUnique(episodes, first)
		if m[6] >= 0 {
			last, _ := strconv.Atoi(s[m[6]:m[7]])
			for ep := first + 1; ep <= last; ep++ {
				episodes = appendUnique(episodes, ep)
			}
		}
		return seasons, episodes
	}
	if m := reSeasonX.FindStringSubmatchIndex(s); m != nil {
		note(m[0:2])
		season, _ := strconv.Atoi(s[m[2]:m[3]])
		episode, _ := strconv.Atoi(s[m[4]:m[5]])
		return appendUnique(seasons, season), appendUnique(episodes, episode)
	}
	if m := reSeasonWord.FindStringSubmatchIndex(s); m != nil {
		note(m[0:2])
		season, _ := strconv.Atoi(s[m[2]:m[3]])
		seasons = appendUnique(seasons, season)
		if em := reEpisodeWord.FindStringSubmatchIndex(s); em != nil {
			episode, _ := strconv.Atoi(s[em[2]:em[3]])
			episodes = appendUnique(episodes, episode)
		}
		return seasons, episodes
	}
	if m := reSeasonOnly.FindStringSubmatchIndex(s); m != nil {
		note(m[0:2])
		first, _ := strconv.Atoi(s[m[2]:m[3]])
		seasons = appendUnique(seasons, first)
		if m[4] >= 0 {
			last, _ := strconv.Atoi(s[m[4]:m[5]])
			for season := first + 1; season <= last; season++ {
				seasons = appendUnique(seasons, season)
			}
		}
		return seasons, episodes
	}
	return seasons, episodes
}

func parseResolution(s string, note func([]int)) string {
	if m := reResolutionP.FindStringSubmatchIndex(s); m != nil {
		note(m[0:2])
		height := s[m[2]:m[3]]
		if height == "2160" {
			return "2160p"
		}
		return height + "p"
	}
	if loc := reResolution4K.FindStringIndex(s); loc != nil {
		note(loc)
		return "4k"
	}
	if m := reResolutionWH.FindStringSubmatchIndex(s); m != nil {
		note(m[0:2])
		height, _ := strconv.Atoi(s[m[4]:m[5]])
		return nearestCanonical(height)
	}
	if m := reResolutionEq.FindStringSubmatchIndex(s); m != nil {
		note(m[0:2])
		switch strings.ToLower(s[m[2]:m[3]]) {
		case "fhd":
			return "1080p"
		case "hd":
			return "720p"
		case "sd":
			return "576p"
		}
	}
	return ""
}

var canonicalHeights = []int{240, 360, 480, 576, 720, 1080, 1440, 2160}

func nearestCanonical(height int) string {
	best := canonicalHeights[0]
	bestDiff := abs(height - best)
	for _, h := range canonicalHeights[1:] {
		if diff := abs(height - h); diff < bestDiff {
			best, bestDiff = h, diff
		}
	}
	return strconv.Itoa(best) + "p"
}

// ResolutionHeight maps a canonical resolution to its pixel height for
// numeric comparison. 4k maps to 2160; unknown maps to 0.
func ResolutionHeight(res string) int {
	switch strings.ToLower(res) {
	case "4k", "2160p":
		return 2160
	case "1440p":
		return 1440
	case "1080p":
		return 1080
	case "720p":
		return 720
	case "576p":
		return 576
	case "480p":
		return 480
	case "360p":
		return 360
	case "240p":
		return 240
	default:
		return 0
	}
}

func canonicalCodec(raw string) string {
	normalized := strings.ToLower(reSeparators.ReplaceAllString(raw, ""))
	normalized = strings.ReplaceAll(normalized, " ", "")
	normalized = strings.ReplaceAll(normalized, "-", "")
	switch normalized {
	case "h264", "avc":
		return "h264"
	case "h265", "hevc":
		return "h265"
	default:
		return strings.ToLower(normalized)
	}
}

func canonicalAudio(raw string) string {
	normalized := strings.ToLower(reSeparators.ReplaceAllString(raw, ""))
	normalized = strings.ReplaceAll(normalized, " ", "")
	normalized = strings.ReplaceAll(normalized, "-", "")
	switch {
	case normalized == "atmos":
		return "Atmos"
	case normalized == "truehd":
		return "TrueHD"
	case strings.HasPrefix(normalized, "dtshdma"):
		return "DTS-HD MA"
	case strings.HasPrefix(normalized, "dtshd"):
		return "DTS-HD"
	case normalized == "dtsx":
		return "DTS:X"
	case strings.HasPrefix(normalized, "dts"):
		return "DTS"
	case strings.HasPrefix(normalized, "ddp") || normalized == "dd+" || strings.HasPrefix(normalized, "eac3"):
		return "DD+"
	case strings.HasPrefix(normalized, "dd") || strings.HasPrefix(normalized, "ac3"):
		return "DD"
	case normalized == "aac":
		return "AAC"
	case normalized == "flac":
		return "FLAC"
	case normalized == "opus":
		return "Opus"
	case normalized == "mp3":
		return "MP3"
	case normalized == "pcm":
		return "PCM"
	default:
		return ""
	}
}

func canonicalHDR(raw string) string {
	normalized := strings.ToLower(reSeparators.ReplaceAllString(raw, ""))
	normalized = strings.ReplaceAll(normalized, " ", "")
	normalized = strings.ReplaceAll(normalized, "-", "")
	switch normalized {
	case "dolbyvision", "dovi", "dv":
		return "DV"
	case "hdr10+":
		return "HDR10+"
	case "hdr10":
		return "HDR10"
	case "hdr":
		return "HDR"
	case "hlg":
		return "HLG"
	case "sdr":
		return "SDR"
	default:
		return ""
	}
}

func looksLikeMetadata(token string) bool {
	switch strings.ToLower(token) {
	case "dl", "ma", "hd", "rip", "mux":
		// Suffixes of hyphenated quality tokens (WEB-DL, DTS-HD MA).
		return true
	}
	for _, re := range []*regexp.Regexp{reResolutionP, reCodec, reAudio, reHDR, reYear} {
		if re.MatchString(token) {
			return true
		}
	}
	for _, qp := range qualityPatterns {
		if qp.re.MatchString(token) {
			return true
		}
	}
	return false
}

// cleanTitle collapses separator runs into single spaces and strips
// bracketed noise, preserving the original word casing.
func cleanTitle(s string) string {
	s = reBrackets.ReplaceAllString(s, " ")
	s = reSeparators.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "-", " ")
	s = reSpaces.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return strings.TrimSpace(unidecode.Unidecode(s))
}

func appendUnique(list []int, v int) []int {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func containsFold(list []string, v string) bool {
	for _, existing := range list {
		if strings.EqualFold(existing, v) {
			return true
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
