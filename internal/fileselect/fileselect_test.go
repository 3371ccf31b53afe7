package fileselect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediafusion/models"
)

func video(name string, size int64, season, episode int) models.StreamFile {
	return models.StreamFile{Filename: name, SizeBytes: size, Kind: models.FileVideo, Season: season, Episode: episode}
}

func TestPickStoredMappingWins(t *testing.T) {
	files := []models.StreamFile{
		video("Show.S02E01.1080p.mkv", 2<<30, 2, 1),
		video("Show.S02E02.1080p.mkv", 2<<30, 2, 2),
		{Filename: "Show.S02E02.srt", Kind: models.FileSubtitle},
	}
	picked := Pick(files, 2, 2)
	require.NotNil(t, picked)
	assert.Equal(t, "Show.S02E02.1080p.mkv", picked.Filename)
}

func TestPickParsesFilenames(t *testing.T) {
	files := []models.StreamFile{
		video("Show.S03E07.1080p.WEB.mkv", 2<<30, 0, 0),
		video("Show.S03E08.1080p.WEB.mkv", 2<<30, 0, 0),
	}
	picked := Pick(files, 3, 8)
	require.NotNil(t, picked)
	assert.Equal(t, "Show.S03E08.1080p.WEB.mkv", picked.Filename)

	assert.Nil(t, Pick(files, 3, 9), "episode outside the pack should not match")
}

func TestPickMovieTakesLargestVideo(t *testing.T) {
	files := []models.StreamFile{
		video("sample.mkv", 50<<20, 0, 0),
		video("The.Matrix.1999.1080p.mkv", 8<<30, 0, 0),
		{Filename: "readme.txt", Kind: models.FileOther},
	}
	picked := Pick(files, 0, 0)
	require.NotNil(t, picked)
	assert.Equal(t, "The.Matrix.1999.1080p.mkv", picked.Filename)
}

func TestPickSeasonOneBareNumbering(t *testing.T) {
	files := []models.StreamFile{
		video("[Group] Anime - 01 [1080p].mkv", 1<<30, 0, 0),
		video("[Group] Anime - 02 [1080p].mkv", 1<<30, 0, 0),
	}
	picked := Pick(files, 1, 2)
	require.NotNil(t, picked)
	assert.Equal(t, "[Group] Anime - 02 [1080p].mkv", picked.Filename)

	// Bare numbers are ambiguous beyond season 1.
	assert.Nil(t, Pick(files, 2, 1))
}

func TestPickNoVideoFiles(t *testing.T) {
	files := []models.StreamFile{
		{Filename: "Show.S01E01.srt", Kind: models.FileSubtitle},
	}
	assert.Nil(t, Pick(files, 1, 1))
}

func TestParseAbsoluteEpisode(t *testing.T) {
	cases := []struct {
		name   string
		wantEp int
		wantOk bool
	}{
		{"[SubsPlease] One Piece - 1153 (1080p) [ABCD1234].mkv", 1153, true},
		{"[Erai-raws] Anime - 42 [1080p].mkv", 42, true},
		{"[SubsPlease] One Piece - 1153v2 (1080p).mkv", 1153, true},
		{"Anime Episode 1153 [1080p].mkv", 1153, true},
		{"Anime Ep.42 [720p].mkv", 42, true},
		{"Anime #1153 [1080p].mkv", 1153, true},
		{"One.Piece.S01E1153.REPACK.1080p.mkv", 1153, true},
		{"Anime [1080p].mkv", 0, false},
		{"Anime (2024) [1080p].mkv", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		ep, ok := ParseAbsoluteEpisode(tc.name)
		assert.Equal(t, tc.wantOk, ok, tc.name)
		assert.Equal(t, tc.wantEp, ep, tc.name)
	}
}
