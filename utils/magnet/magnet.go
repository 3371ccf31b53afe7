// Package magnet builds and parses magnet URIs and extracts metadata from
// .torrent files. Info hashes are canonically lowercase 40-hex everywhere.
package magnet

import (
	"crypto/sha1"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/zeebo/bencode"
)

var reHex40 = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Magnet is the parsed form of a magnet URI.
type Magnet struct {
	InfoHash    string   // lowercase 40-hex
	DisplayName string
	Trackers    []string
}

// Parse extracts the info hash, display name and trackers from a magnet URI.
// Both hex (40) and base32 (32) btih encodings are accepted; the returned
// hash is always lowercase hex.
func Parse(uri string) (Magnet, error) {
	var m Magnet
	if !strings.HasPrefix(uri, "magnet:?") {
		return m, fmt.Errorf("not a magnet uri: %q", truncate(uri, 32))
	}
	values, err := url.ParseQuery(strings.TrimPrefix(uri, "magnet:?"))
	if err != nil {
		return m, fmt.Errorf("parse magnet query: %w", err)
	}

	for _, xt := range values["xt"] {
		if !strings.HasPrefix(xt, "urn:btih:") {
			continue
		}
		hash, err := normalizeHash(strings.TrimPrefix(xt, "urn:btih:"))
		if err != nil {
			return m, err
		}
		m.InfoHash = hash
		break
	}
	if m.InfoHash == "" {
		return m, fmt.Errorf("magnet uri has no btih hash")
	}

	m.DisplayName = values.Get("dn")
	for _, tr := range values["tr"] {
		if tr != "" && !contains(m.Trackers, tr) {
			m.Trackers = append(m.Trackers, tr)
		}
	}
	return m, nil
}

// Build assembles a magnet URI. Trackers keep their given order so output is
// deterministic for a given input.
func Build(infoHash, displayName string, trackers []string) (string, error) {
	hash, err := normalizeHash(infoHash)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(hash)
	if displayName != "" {
		b.WriteString("&dn=")
		b.WriteString(url.QueryEscape(displayName))
	}
	for _, tr := range trackers {
		if tr == "" {
			continue
		}
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(tr))
	}
	return b.String(), nil
}

// NormalizeHash validates a btih hash and returns it as lowercase 40-hex.
func NormalizeHash(raw string) (string, error) {
	return normalizeHash(raw)
}

func normalizeHash(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch len(raw) {
	case 40:
		lower := strings.ToLower(raw)
		if !reHex40.MatchString(lower) {
			return "", fmt.Errorf("invalid hex info hash: %q", truncate(raw, 40))
		}
		return lower, nil
	case 32:
		decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(raw))
		if err != nil {
			return "", fmt.Errorf("invalid base32 info hash: %w", err)
		}
		return hex.EncodeToString(decoded), nil
	default:
		return "", fmt.Errorf("info hash must be 40 hex or 32 base32 chars, got %d", len(raw))
	}
}

// TorrentFile is one payload file inside a torrent.
type TorrentFile struct {
	Path string
	Size int64
}

// TorrentMeta is the subset of a .torrent metainfo the ingest path needs.
type TorrentMeta struct {
	InfoHash string // lowercase 40-hex, sha1 of the bencoded info dict
	Name     string
	Size     int64
	Files    []TorrentFile
	Trackers []string
}

type metainfo struct {
	Announce     string             `bencode:"announce"`
	AnnounceList [][]string         `bencode:"announce-list"`
	Info         bencode.RawMessage `bencode:"info"`
}

type infoDict struct {
	Name   string `bencode:"name"`
	Length int64  `bencode:"length"`
	Files  []struct {
		Length int64    `bencode:"length"`
		Path   []string `bencode:"path"`
	} `bencode:"files"`
}

// ParseTorrent decodes .torrent file bytes into TorrentMeta. The info hash is
// computed over the raw bencoded info dictionary, so it matches what trackers
// and debrid services expect.
func ParseTorrent(data []byte) (TorrentMeta, error) {
	var meta TorrentMeta

	var mi metainfo
	if err := bencode.DecodeBytes(data, &mi); err != nil {
		return meta, fmt.Errorf("decode torrent: %w", err)
	}
	if len(mi.Info) == 0 {
		return meta, fmt.Errorf("torrent has no info dictionary")
	}

	sum := sha1.Sum(mi.Info)
	meta.InfoHash = hex.EncodeToString(sum[:])

	var info infoDict
	if err := bencode.DecodeBytes(mi.Info, &info); err != nil {
		return meta, fmt.Errorf("decode torrent info: %w", err)
	}
	meta.Name = info.Name

	if len(info.Files) > 0 {
		for _, f := range info.Files {
			path := strings.Join(f.Path, "/")
			meta.Files = append(meta.Files, TorrentFile{Path: path, Size: f.Length})
			meta.Size += f.Length
		}
	} else {
		meta.Size = info.Length
		if info.Name != "" {
			meta.Files = []TorrentFile{{Path: info.Name, Size: info.Length}}
		}
	}

	if mi.Announce != "" {
		meta.Trackers = append(meta.Trackers, mi.Announce)
	}
	for _, tier := range mi.AnnounceList {
		for _, tr := range tier {
			if tr != "" && !contains(meta.Trackers, tr) {
				meta.Trackers = append(meta.Trackers, tr)
			}
		}
	}
	return meta, nil
}

func contains(list []string, v string) bool {
	for _, existing := range list {
		if existing == v {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
