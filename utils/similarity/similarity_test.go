package similarity

import (
	"testing"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		minScore float64
	}{
		{"identical", "The Matrix", "The Matrix", 1.0},
		{"case insensitive", "The Matrix", "the matrix", 1.0},
		{"dots vs spaces", "The.Matrix", "The Matrix", 1.0},
		{"accented vs plain", "Amélie", "Amelie", 1.0},
		{"ampersand vs and", "Law & Order", "Law and Order", 1.0},
		{"possessive prefix dropped", "Will Vinton's Claymation Christmas", "Claymation Christmas", 0.9},
		{"year in one title", "The Matrix 1999", "The Matrix", 0.65},
		{"article dropped", "The Dark Knight", "Dark Knight", 0.7},
		{"release noise", "The.Matrix.1999.1080p.BluRay.x264", "The Matrix", 0.3},
		{"unrelated", "The Matrix", "Inception", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := Score(tt.a, tt.b)
			if tt.minScore == 1.0 && score != 1.0 {
				t.Errorf("Score(%q, %q) = %.2f, want exactly 1.0", tt.a, tt.b, score)
			} else if score < tt.minScore {
				t.Errorf("Score(%q, %q) = %.2f, want >= %.2f", tt.a, tt.b, score, tt.minScore)
			}
		})
	}
}

func TestScoreUnrelatedStaysLow(t *testing.T) {
	if score := Score("The Matrix", "Inception"); score > 0.5 {
		t.Errorf("Score(unrelated) = %.2f, want <= 0.5", score)
	}
}

func TestBestMatch(t *testing.T) {
	score, title := BestMatch("Le Fabuleux Destin d'Amelie Poulain", "Amelie",
		[]string{"Le Fabuleux Destin d'Amélie Poulain", "Die fabelhafte Welt der Amelie"})
	if title != "Le Fabuleux Destin d'Amélie Poulain" {
		t.Errorf("best title = %q, want the French aka title", title)
	}
	if score != 1.0 {
		t.Errorf("best score = %.2f, want 1.0", score)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"The Matrix", "the matrix"},
		{"The.Matrix", "the matrix"},
		{"The-Matrix", "the matrix"},
		{"The_Matrix", "the matrix"},
		{"The   Matrix", "the matrix"},
		{"The Matrix (1999)", "the matrix 1999"},
		{"Law & Order", "law and order"},
		{"Amélie", "amelie"},
	}

	for _, tt := range tests {
		if got := normalize(tt.input); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
