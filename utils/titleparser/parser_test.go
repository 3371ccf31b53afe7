package titleparser

import (
	"reflect"
	"testing"
)

func TestParseMovie(t *testing.T) {
	parsed := Parse("The.Matrix.1999.1080p.BluRay.x264-GROUP.mkv")

	if parsed.Title != "The Matrix" {
		t.Errorf("title = %q, want %q", parsed.Title, "The Matrix")
	}
	if parsed.Year != 1999 {
		t.Errorf("year = %d, want 1999", parsed.Year)
	}
	if parsed.Resolution != "1080p" {
		t.Errorf("resolution = %q, want 1080p", parsed.Resolution)
	}
	if !reflect.DeepEqual(parsed.Quality, []string{"BluRay"}) {
		t.Errorf("quality = %v, want [BluRay]", parsed.Quality)
	}
	if parsed.Codec != "x264" {
		t.Errorf("codec = %q, want x264", parsed.Codec)
	}
	if parsed.ReleaseGroup != "GROUP" {
		t.Errorf("release group = %q, want GROUP", parsed.ReleaseGroup)
	}
	if parsed.Container != "mkv" {
		t.Errorf("container = %q, want mkv", parsed.Container)
	}
}

func TestParseSeries(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		seasons  []int
		episodes []int
	}{
		{"standard SxxEyy", "Breaking.Bad.S05E14.720p.HDTV.x264-ASAP.mkv", []int{5}, []int{14}},
		{"episode range", "Show.S01E01-E03.1080p.WEB-DL", []int{1}, []int{1, 2, 3}},
		{"NxNN form", "Show.1x05.720p.HDTV", []int{1}, []int{5}},
		{"season word", "Show.Season.3.Complete.1080p", []int{3}, nil},
		{"season pack", "Show.S02.1080p.WEB-DL.DDP5.1.H.264", []int{2}, nil},
		{"season range", "Show.S01-S03.Complete.720p", []int{1, 2, 3}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := Parse(tt.input)
			if !reflect.DeepEqual(parsed.Seasons, tt.seasons) {
				t.Errorf("seasons = %v, want %v", parsed.Seasons, tt.seasons)
			}
			if !reflect.DeepEqual(parsed.Episodes, tt.episodes) {
				t.Errorf("episodes = %v, want %v", parsed.Episodes, tt.episodes)
			}
		})
	}
}

func TestParseRemuxAttributes(t *testing.T) {
	parsed := Parse("Dune.Part.Two.2024.2160p.UHD.BluRay.REMUX.DV.HDR10.Atmos.TrueHD.7.1-FraMeSToR.mkv")

	if parsed.Title != "Dune Part Two" {
		t.Errorf("title = %q, want %q", parsed.Title, "Dune Part Two")
	}
	if parsed.Resolution != "2160p" {
		t.Errorf("resolution = %q, want 2160p", parsed.Resolution)
	}
	if !parsed.IsRemux {
		t.Error("expected remux flag")
	}
	if !reflect.DeepEqual(parsed.HDR, []string{"DV", "HDR10"}) {
		t.Errorf("hdr = %v, want [DV HDR10]", parsed.HDR)
	}
	if !reflect.DeepEqual(parsed.Audio, []string{"Atmos", "TrueHD"}) {
		t.Errorf("audio = %v, want [Atmos TrueHD]", parsed.Audio)
	}
	if !reflect.DeepEqual(parsed.Channels, []string{"7.1"}) {
		t.Errorf("channels = %v, want [7.1]", parsed.Channels)
	}
	if parsed.ReleaseGroup != "FraMeSToR" {
		t.Errorf("release group = %q, want FraMeSToR", parsed.ReleaseGroup)
	}
}

func TestParseResolutionForms(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Movie.2020.2160p.WEB-DL", "2160p"},
		{"Movie.2020.4K.WEB-DL", "4k"},
		{"Movie.2020.1920x1080.BluRay", "1080p"},
		{"Movie.2020.FHD.WEBRip", "1080p"},
		{"Movie.2020.DVDRip", ""},
	}

	for _, tt := range tests {
		if got := Parse(tt.input).Resolution; got != tt.want {
			t.Errorf("Parse(%q).Resolution = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseLanguages(t *testing.T) {
	parsed := Parse("Movie.2020.1080p.MULTi.VOSTFR.WEB-DL")

	if !reflect.DeepEqual(parsed.Languages, []string{"French", "Multi Audio"}) {
		t.Errorf("languages = %v, want [French, Multi Audio]", parsed.Languages)
	}
	if !parsed.IsSubbed {
		t.Error("expected subbed flag from VOSTFR")
	}
}

func TestParseReleaseGroupGuard(t *testing.T) {
	// Trailing "-DL" belongs to WEB-DL, not a release group.
	parsed := Parse("Movie.2020.1080p.WEB-DL")
	if parsed.ReleaseGroup != "" {
		t.Errorf("release group = %q, want empty", parsed.ReleaseGroup)
	}
}

func TestParseNeverFails(t *testing.T) {
	for _, input := range []string{"", "....", "-", "ütf8 tïtle", "1080p"} {
		_ = Parse(input)
	}
}

func TestParseDeterministic(t *testing.T) {
	const input = "Movie.2020.1080p.MULTi.TrueFrench.English.WEB-DL.DDP5.1.x265-GRP.mkv"
	first := Parse(input)
	for i := 0; i < 20; i++ {
		if again := Parse(input); !reflect.DeepEqual(first, again) {
			t.Fatalf("parse not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestQualityGroup(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"BluRay", "BluRay/UHD"},
		{"WEB-DL", "WEB/HD"},
		{"HDTV", "DVD/TV/SAT"},
		{"CAM", "CAM/Screener"},
		{"unknown", ""},
	}
	for _, tt := range tests {
		if got := QualityGroup(tt.tag); got != tt.want {
			t.Errorf("QualityGroup(%q) = %q, want %q", tt.tag, got, tt.want)
		}
	}
}

func TestResolutionHeight(t *testing.T) {
	if h := ResolutionHeight("4k"); h != 2160 {
		t.Errorf("ResolutionHeight(4k) = %d, want 2160", h)
	}
	if h := ResolutionHeight(""); h != 0 {
		t.Errorf("ResolutionHeight(empty) = %d, want 0", h)
	}
}
