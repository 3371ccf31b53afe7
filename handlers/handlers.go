// Package handlers is the thin HTTP surface over the core services. Handlers
// validate, delegate, and translate; no business logic lives here.
package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"mediafusion/models"
)

// userConfig is the per-client configuration Stremio embeds in the addon URL
// path as a base64 JSON segment.
type userConfig struct {
	// Provider selects the debrid provider streams resolve through. Empty
	// means raw info-hash streams (P2P playback in the client).
	Provider    string                 `json:"provider,omitempty"`
	Preferences models.UserPreferences `json:"preferences"`
}

func defaultUserConfig() userConfig {
	return userConfig{Preferences: models.DefaultPreferences()}
}

// parseUserConfig decodes the path config segment. An empty segment yields
// defaults; a malformed one is a client error.
func parseUserConfig(segment string) (userConfig, error) {
	if segment == "" {
		return defaultUserConfig(), nil
	}
	data, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		if data, err = base64.StdEncoding.DecodeString(segment); err != nil {
			return userConfig{}, fmt.Errorf("decode config segment: %w", err)
		}
	}

	// Unmarshalling over the defaults keeps them for any key the client
	// omitted; an explicit zero stays zero.
	cfg := defaultUserConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return userConfig{}, fmt.Errorf("parse config segment: %w", err)
	}
	if err := cfg.Preferences.Validate(); err != nil {
		return userConfig{}, err
	}
	return cfg, nil
}

// EncodeUserConfig renders the path segment for a config, for install links.
func EncodeUserConfig(provider string, prefs models.UserPreferences) string {
	data, _ := json.Marshal(userConfig{Provider: provider, Preferences: prefs})
	return base64.RawURLEncoding.EncodeToString(data)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[handlers] encode response: %v", err)
	}
}

func httpError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

// parseStreamID splits a Stremio content id into external id and optional
// season/episode ("tt0903747:5:14").
func parseStreamID(id string) (externalID string, season, episode int, err error) {
	id = strings.TrimSuffix(id, ".json")
	parts := strings.Split(id, ":")
	externalID = parts[0]
	if externalID == "" {
		return "", 0, 0, fmt.Errorf("empty content id")
	}
	if len(parts) == 1 {
		return externalID, 0, 0, nil
	}
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf("malformed content id %q", id)
	}
	if _, err := fmt.Sscanf(parts[1]+" "+parts[2], "%d %d", &season, &episode); err != nil {
		return "", 0, 0, fmt.Errorf("malformed season/episode in %q", id)
	}
	if season <= 0 || episode <= 0 {
		return "", 0, 0, fmt.Errorf("season and episode must be positive in %q", id)
	}
	return externalID, season, episode, nil
}

// kindFromStremioType maps the URL's content type to a media kind.
func kindFromStremioType(t string) (models.MediaKind, bool) {
	switch t {
	case "movie":
		return models.MediaKindMovie, true
	case "series":
		return models.MediaKindSeries, true
	case "tv":
		return models.MediaKindTV, true
	case "events", "event":
		return models.MediaKindEvent, true
	default:
		return "", false
	}
}
