package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MediaKind identifies the class of an identifiable work.
type MediaKind string

const (
	MediaKindMovie  MediaKind = "movie"
	MediaKindSeries MediaKind = "series"
	MediaKindTV     MediaKind = "tv"
	MediaKindEvent  MediaKind = "event"
)

// IsValid reports whether the kind is one of the recognized values.
func (k MediaKind) IsValid() bool {
	switch k {
	case MediaKindMovie, MediaKindSeries, MediaKindTV, MediaKindEvent:
		return true
	}
	return false
}

var imdbIDPattern = regexp.MustCompile(`^tt\d+$`)

// IsIMDBID reports whether id is an IMDb-style identifier (tt followed by digits).
func IsIMDBID(id string) bool {
	return imdbIDPattern.MatchString(id)
}

// IsSyntheticID reports whether id is an internally minted identifier (mf{hash}).
func IsSyntheticID(id string) bool {
	return strings.HasPrefix(id, "mf") && len(id) > 2
}

// Media is the identifiable work a stream plays. It is created the first time
// any enricher encounters it and mutated only by the metadata enricher.
type Media struct {
	ID          int64              `json:"id"`
	ExternalID  string             `json:"externalId"` // tt\d+ or mf{hash}
	Kind        MediaKind          `json:"kind"`
	Title       string             `json:"title"`
	Year        int                `json:"year,omitempty"`
	EndYear     int                `json:"endYear,omitempty"`
	Description string             `json:"description,omitempty"`
	Genres      []string           `json:"genres,omitempty"`
	Ratings     map[string]float64 `json:"ratings,omitempty"` // provider -> score
	Images      map[string]string  `json:"images,omitempty"`  // role -> url
	AKATitles   []string           `json:"akaTitles,omitempty"`
	Runtime     int                `json:"runtime,omitempty"` // minutes

	TotalStreams    int       `json:"totalStreams"`
	LastStreamAdded time.Time `json:"lastStreamAdded,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Episode is one entry of a series season.
type Episode struct {
	ID            int64     `json:"id"`
	MediaID       int64     `json:"mediaId"`
	SeasonNumber  int       `json:"season"`
	EpisodeNumber int       `json:"episode"`
	Title         string    `json:"title,omitempty"`
	ReleaseDate   time.Time `json:"releaseDate,omitempty"`
	Thumbnail     string    `json:"thumbnail,omitempty"`
}

// Code renders the SxxEyy form used in release names.
func (e Episode) Code() string {
	return fmt.Sprintf("S%02dE%02d", e.SeasonNumber, e.EpisodeNumber)
}
