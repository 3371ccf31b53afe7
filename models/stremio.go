package models

// Stremio addon protocol wire types. Only the subset the core emits.

// Manifest describes the addon to clients.
type Manifest struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	Version       string                 `json:"version"`
	Resources     []string               `json:"resources"`
	Types         []string               `json:"types"`
	Catalogs      []CatalogItem          `json:"catalogs"`
	IDPrefixes    []string               `json:"idPrefixes,omitempty"`
	Logo          string                 `json:"logo,omitempty"`
	Background    string                 `json:"background,omitempty"`
	BehaviorHints *ManifestBehaviorHints `json:"behaviorHints,omitempty"`
}

// ManifestBehaviorHints flags addon-level behavior.
type ManifestBehaviorHints struct {
	Adult        bool `json:"adult,omitempty"`
	P2P          bool `json:"p2p,omitempty"`
	Configurable bool `json:"configurable,omitempty"`
}

// CatalogItem names a browsable list of media.
type CatalogItem struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StreamItem is one playable entry in a stream response. Exactly one of
// InfoHash or URL is set; InfoHash is always lowercase 40-hex.
type StreamItem struct {
	Name          string               `json:"name,omitempty"`
	Title         string               `json:"title,omitempty"`
	InfoHash      string               `json:"infoHash,omitempty"`
	FileIdx       *int                 `json:"fileIdx,omitempty"`
	URL           string               `json:"url,omitempty"`
	Sources       []string             `json:"sources,omitempty"` // tracker:<url> entries
	BehaviorHints *StreamBehaviorHints `json:"behaviorHints,omitempty"`
}

// StreamBehaviorHints steers client playback behavior.
type StreamBehaviorHints struct {
	BingeGroup  string `json:"bingeGroup,omitempty"`
	Filename    string `json:"filename,omitempty"`
	NotWebReady bool   `json:"notWebReady,omitempty"`
	VideoSize   int64  `json:"videoSize,omitempty"`
}

// StreamList is the top-level stream response envelope.
type StreamList struct {
	Streams []StreamItem `json:"streams"`
}

// CacheStatusRequest asks for batch cached-availability of hashes on a service.
type CacheStatusRequest struct {
	Service    string   `json:"service"`
	InfoHashes []string `json:"info_hashes"`
}

// CacheStatusResponse maps hash -> cached on the requested service.
type CacheStatusResponse struct {
	CachedStatus map[string]bool `json:"cached_status"`
}

// CacheSubmitRequest submits hashes for caching on a service.
type CacheSubmitRequest struct {
	Service    string   `json:"service"`
	InfoHashes []string `json:"info_hashes"`
}

// CacheSubmitResponse reports submit outcome.
type CacheSubmitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
