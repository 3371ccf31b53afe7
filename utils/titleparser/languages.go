package titleparser

import (
	"regexp"
	"strings"
)

// languageTable maps release-name substrings to canonical language names.
// Longer tokens are listed before shorter ones so "english" wins over "eng".
var languageTable = []struct {
	token string
	name  string
}{
	{"english", "English"},
	{"eng", "English"},
	{"french", "French"},
	{"vostfr", "French"},
	{"vfq", "French"},
	{"truefrench", "French"},
	{"german", "German"},
	{"spanish", "Spanish"},
	{"castellano", "Spanish"},
	{"latino", "Spanish"},
	{"italian", "Italian"},
	{"portuguese", "Portuguese"},
	{"brazilian", "Portuguese"},
	{"russian", "Russian"},
	{"japanese", "Japanese"},
	{"korean", "Korean"},
	{"chinese", "Chinese"},
	{"mandarin", "Chinese"},
	{"cantonese", "Chinese"},
	{"hindi", "Hindi"},
	{"tamil", "Tamil"},
	{"telugu", "Telugu"},
	{"malayalam", "Malayalam"},
	{"kannada", "Kannada"},
	{"bengali", "Bengali"},
	{"marathi", "Marathi"},
	{"punjabi", "Punjabi"},
	{"gujarati", "Gujarati"},
	{"arabic", "Arabic"},
	{"turkish", "Turkish"},
	{"polish", "Polish"},
	{"dutch", "Dutch"},
	{"swedish", "Swedish"},
	{"norwegian", "Norwegian"},
	{"danish", "Danish"},
	{"finnish", "Finnish"},
	{"greek", "Greek"},
	{"hebrew", "Hebrew"},
	{"thai", "Thai"},
	{"vietnamese", "Vietnamese"},
	{"indonesian", "Indonesian"},
	{"ukrainian", "Ukrainian"},
	{"czech", "Czech"},
	{"hungarian", "Hungarian"},
	{"romanian", "Romanian"},
}

// flagEmojiLanguages maps regional-indicator flag sequences to languages.
// Ordered so detection output is deterministic.
var flagEmojiLanguages = []struct {
	flag string
	name string
}{
	{"\U0001F1EC\U0001F1E7", "English"}, // GB
	{"\U0001F1FA\U0001F1F8", "English"}, // US
	{"\U0001F1EB\U0001F1F7", "French"},
	{"\U0001F1E9\U0001F1EA", "German"},
	{"\U0001F1EA\U0001F1F8", "Spanish"},
	{"\U0001F1F2\U0001F1FD", "Spanish"}, // MX
	{"\U0001F1EE\U0001F1F9", "Italian"},
	{"\U0001F1F5\U0001F1F9", "Portuguese"},
	{"\U0001F1E7\U0001F1F7", "Portuguese"}, // BR
	{"\U0001F1F7\U0001F1FA", "Russian"},
	{"\U0001F1EF\U0001F1F5", "Japanese"},
	{"\U0001F1F0\U0001F1F7", "Korean"},
	{"\U0001F1E8\U0001F1F3", "Chinese"},
	{"\U0001F1EE\U0001F1F3", "Hindi"},
	{"\U0001F1F8\U0001F1E6", "Arabic"},
	{"\U0001F1F9\U0001F1F7", "Turkish"},
	{"\U0001F1F5\U0001F1F1", "Polish"},
	{"\U0001F1F3\U0001F1F1", "Dutch"},
	{"\U0001F1EC\U0001F1F7", "Greek"},
	{"\U0001F1EE\U0001F1F1", "Hebrew"},
	{"\U0001F1F9\U0001F1ED", "Thai"},
	{"\U0001F1FA\U0001F1E6", "Ukrainian"},
	{"\U0001F1E8\U0001F1FF", "Czech"},
	{"\U0001F1ED\U0001F1FA", "Hungarian"},
	{"\U0001F1F7\U0001F1F4", "Romanian"},
	{"\U0001F1F8\U0001F1EA", "Swedish"},
	{"\U0001F1F3\U0001F1F4", "Norwegian"},
	{"\U0001F1E9\U0001F1F0", "Danish"},
	{"\U0001F1EB\U0001F1EE", "Finnish"},
	{"\U0001F1FB\U0001F1F3", "Vietnamese"},
	{"\U0001F1EE\U0001F1E9", "Indonesian"},
}

var (
	reMultiAudio = regexp.MustCompile(`(?i)\bmulti[\s._-]?(audio)?\b`)
	reDualAudio  = regexp.MustCompile(`(?i)\bdual[\s._-]?audio\b`)
	reWordSplit  = regexp.MustCompile(`[\s._\-\[\]\(\)]+`)
)

// detectLanguages extracts languages from a release name. Primary source is
// substring matching against the language table; flag-emoji codepoints are a
// secondary source. "Multi Audio" and "Dual Audio" emit synthetic tokens.
func detectLanguages(s string) []string {
	var langs []string

	words := make(map[string]struct{})
	for _, w := range reWordSplit.Split(strings.ToLower(s), -1) {
		if w != "" {
			words[w] = struct{}{}
		}
	}
	for _, entry := range languageTable {
		if _, ok := words[entry.token]; ok && !containsFold(langs, entry.name) {
			langs = append(langs, entry.name)
		}
	}

	for _, entry := range flagEmojiLanguages {
		if strings.Contains(s, entry.flag) && !containsFold(langs, entry.name) {
			langs = append(langs, entry.name)
		}
	}

	if reDualAudio.MatchString(s) && !containsFold(langs, "Dual Audio") {
		langs = append(langs, "Dual Audio")
	} else if reMultiAudio.MatchString(s) && !containsFold(langs, "Multi Audio") {
		langs = append(langs, "Multi Audio")
	}

	return langs
}
