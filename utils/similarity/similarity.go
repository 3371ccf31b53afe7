// Package similarity scores how closely two media titles match. Scores feed
// the metadata enricher when it reconciles scraped release titles against
// canonical and alternative titles.
package similarity

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// Score returns a similarity between 0.0 (unrelated) and 1.0 (identical),
// based on Levenshtein distance over normalized titles.
//
// Possessive prefixes get special handling: "Will Vinton's Claymation
// Christmas" vs "Claymation Christmas" scores high when the shorter title is
// a word-aligned suffix covering most of the longer one.
func Score(a, b string) float64 {
	a = normalize(a)
	b = normalize(b)

	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	if score := suffixScore(a, b); score > 0 {
		return score
	}

	distance := levenshtein(a, b)
	longest := max(len(a), len(b))
	return 1.0 - float64(distance)/float64(longest)
}

// BestMatch scores target against a primary title and any alternatives,
// returning the highest score and the title that produced it. Alternatives
// cover localized and aka titles.
func BestMatch(target, primary string, alternatives []string) (float64, string) {
	best := Score(target, primary)
	bestTitle := primary
	for _, alt := range alternatives {
		if s := Score(target, alt); s > best {
			best, bestTitle = s, alt
		}
	}
	return best, bestTitle
}

// suffixScore handles titles that drop a possessive prefix. When the shorter
// string is a word-aligned suffix covering at least 60% of the longer one,
// the score scales from 0.96 at 60% coverage to 1.0 at full coverage.
func suffixScore(a, b string) float64 {
	longer, shorter := a, b
	if len(a) < len(b) {
		longer, shorter = b, a
	}
	if !strings.HasSuffix(longer, shorter) {
		return 0
	}
	cut := len(longer) - len(shorter)
	if cut != 0 && longer[cut-1] != ' ' {
		return 0
	}
	coverage := float64(len(shorter)) / float64(len(longer))
	if coverage < 0.6 {
		return 0
	}
	return 0.90 + coverage*0.10
}

// normalize lowercases, transliterates to ASCII, maps "&" to "and" and strips
// everything but letters, digits and single spaces.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "&", " and ")
	s = unidecode.Unidecode(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == '-' || r == '_':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// levenshtein computes edit distance with a rolling two-row table.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
