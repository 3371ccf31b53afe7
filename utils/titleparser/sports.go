package titleparser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SportsEvent is the sports-mode parse of a release name.
type SportsEvent struct {
	Category   string    `json:"category"`
	Year       int       `json:"year,omitempty"`
	Round      int       `json:"round,omitempty"`
	Event      string    `json:"event"`
	Date       time.Time `json:"date,omitempty"`
	Resolution string    `json:"resolution,omitempty"`
}

// sportsCategories maps keyword sets to canonical category names. Checked in
// order; the first keyword hit wins.
var sportsCategories = []struct {
	keywords []string
	name     string
}{
	{[]string{"formula 1", "formula1", "f1"}, "Formula 1"},
	{[]string{"formula 2", "formula2", "f2"}, "Formula 2"},
	{[]string{"formula 3", "formula3", "f3"}, "Formula 3"},
	{[]string{"motogp", "moto gp"}, "MotoGP"},
	{[]string{"moto2"}, "Moto2"},
	{[]string{"moto3"}, "Moto3"},
	{[]string{"wwe", "wrestlemania", "smackdown", "raw"}, "WWE"},
	{[]string{"ufc", "mma"}, "UFC"},
	{[]string{"aew"}, "AEW"},
	{[]string{"nba", "basketball"}, "NBA"},
	{[]string{"nfl", "superbowl", "super bowl"}, "NFL"},
	{[]string{"nhl", "hockey"}, "NHL"},
	{[]string{"mlb", "baseball"}, "MLB"},
	{[]string{"ipl", "cricket", "t20", "odi"}, "Cricket"},
	{[]string{"premier league", "epl", "la liga", "bundesliga", "serie a", "champions league", "uefa", "fifa"}, "Football"},
	{[]string{"nascar"}, "NASCAR"},
	{[]string{"indycar"}, "IndyCar"},
	{[]string{"wrc", "rally"}, "WRC"},
	{[]string{"wsbk", "superbike"}, "WSBK"},
	{[]string{"rugby"}, "Rugby"},
	{[]string{"tennis", "wimbledon", "us open", "roland garros"}, "Tennis"},
	{[]string{"golf", "pga"}, "Golf"},
	{[]string{"boxing"}, "Boxing"},
}

var (
	reRound     = regexp.MustCompile(`(?i)\b(?:r(?:ound)?[\s._-]?)(\d{1,2})\b`)
	reDateDots  = regexp.MustCompile(`\b(\d{2})\.(\d{2})\.(\d{4})\b`)
	reDateISO   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	reYearEvent = regexp.MustCompile(`\b(\d{4})x(\d{2})\b`)

	// Broadcaster tags stripped from the cleaned event title.
	reBroadcaster = regexp.MustCompile(`(?i)\b(sky\s?(sports?|f1)?(hd|uhd)?|espn\+?|fox\s?sports?|bt\s?sport|tnt\s?sports?|dazn|peacock|viaplay|ziggo|canal\+?|servus\s?tv|rtl|itv\d?|bbc(\s?one|\s?two)?|cbs|nbc|abc|amazon|f1tv)\b`)
)

// ParseSports runs the sports-specific second entry point: it detects a
// sports category from the keyword table, extracts round number, event date
// and a cleaned event title with broadcaster and quality noise stripped.
// The boolean is false when no category keyword matches.
func ParseSports(raw string) (SportsEvent, bool) {
	var event SportsEvent
	working := strings.TrimSpace(raw)
	if working == "" {
		return event, false
	}

	if m := reContainer.FindStringSubmatch(working); m != nil {
		working = working[:len(working)-len(m[0])]
	}

	normalized := strings.ToLower(reSeparators.ReplaceAllString(working, " "))
	normalized = reSpaces.ReplaceAllString(normalized, " ")

	category, keyword := matchSportsCategory(normalized)
	if category == "" {
		return event, false
	}
	event.Category = category

	if m := reRound.FindStringSubmatch(working); m != nil {
		event.Round, _ = strconv.Atoi(m[1])
	}

	event.Date, event.Year = parseEventDate(working)
	if event.Year == 0 {
		if m := reYear.FindStringSubmatch(working); m != nil {
			event.Year, _ = strconv.Atoi(m[1])
		}
	}

	event.Resolution = parseResolution(working, func([]int) {})
	event.Event = cleanSportsEvent(normalized, keyword)
	return event, true
}

func matchSportsCategory(normalized string) (category, keyword string) {
	padded := " " + normalized + " "
	for _, entry := range sportsCategories {
		for _, kw := range entry.keywords {
			if strings.Contains(padded, " "+kw+" ") {
				return entry.name, kw
			}
		}
	}
	return "", ""
}

func parseEventDate(s string) (time.Time, int) {
	if m := reDateDots.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if validDate(year, month, day) {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), year
		}
	}
	if m := reDateISO.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if validDate(year, month, day) {
			return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), year
		}
	}
	// YYYYxNN carries the season year plus an event ordinal, no calendar day.
	if m := reYearEvent.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		return time.Time{}, year
	}
	return time.Time{}, 0
}

func validDate(year, month, day int) bool {
	return year >= 1900 && year <= 2100 && month >= 1 && month <= 12 && day >= 1 && day <= 31
}

// cleanSportsEvent strips the category keyword, round/date/year tokens,
// broadcaster tags and resolution noise, leaving the human event title.
func cleanSportsEvent(normalized, keyword string) string {
	out := normalized
	out = reBroadcaster.ReplaceAllString(out, " ")
	reKeyword := regexp.MustCompile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
	out = reKeyword.ReplaceAllString(out, " ")
	out = reRound.ReplaceAllString(out, " ")
	out = reDateDots.ReplaceAllString(out, " ")
	out = reDateISO.ReplaceAllString(out, " ")
	out = reYearEvent.ReplaceAllString(out, " ")
	out = reYear.ReplaceAllString(out, " ")
	out = reResolutionP.ReplaceAllString(out, " ")
	out = reResolution4K.ReplaceAllString(out, " ")
	out = reCodec.ReplaceAllString(out, " ")
	for _, qp := range qualityPatterns {
		out = qp.re.ReplaceAllString(out, " ")
	}
	out = reSpaces.ReplaceAllString(out, " ")
	out = strings.TrimSpace(out)
	return titleCase(out)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
