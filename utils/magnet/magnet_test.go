package magnet

import (
	"crypto/sha1"
	"encoding/hex"
	"reflect"
	"strings"
	"testing"

	"github.com/zeebo/bencode"
)

const testHash = "dd8255ecdc7ca55fb0bbf81323d87062db1f6d1c"

func TestBuildParseRoundTrip(t *testing.T) {
	trackers := []string{"udp://tracker.opentrackr.org:1337/announce", "udp://open.demonii.com:1337/announce"}

	uri, err := Build(testHash, "The Matrix 1999 1080p", trackers)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	parsed, err := Parse(uri)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.InfoHash != testHash {
		t.Errorf("info hash = %q, want %q", parsed.InfoHash, testHash)
	}
	if parsed.DisplayName != "The Matrix 1999 1080p" {
		t.Errorf("display name = %q", parsed.DisplayName)
	}
	if !reflect.DeepEqual(parsed.Trackers, trackers) {
		t.Errorf("trackers = %v, want %v", parsed.Trackers, trackers)
	}
}

func TestParseUppercaseHexHash(t *testing.T) {
	uri := "magnet:?xt=urn:btih:" + strings.ToUpper(testHash)
	parsed, err := Parse(uri)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.InfoHash != testHash {
		t.Errorf("info hash = %q, want lowercase %q", parsed.InfoHash, testHash)
	}
}

func TestParseBase32Hash(t *testing.T) {
	// base32 of the raw 20 bytes behind testHash
	uri := "magnet:?xt=urn:btih:3WBFL3G4PSSV7MF37AJSHWDQMLNR63I4"
	parsed, err := Parse(uri)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.InfoHash != testHash {
		t.Errorf("info hash = %q, want %q", parsed.InfoHash, testHash)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	for _, uri := range []string{
		"http://example.com/file.torrent",
		"magnet:?dn=no-hash",
		"magnet:?xt=urn:btih:zzzz",
		"magnet:?xt=urn:btih:" + strings.Repeat("g", 40),
	} {
		if _, err := Parse(uri); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", uri)
		}
	}
}

func TestParseTorrentSingleFile(t *testing.T) {
	info := map[string]interface{}{
		"name":         "movie.mkv",
		"length":       int64(1234567),
		"piece length": int64(262144),
		"pieces":       "xxxxxxxxxxxxxxxxxxxx",
	}
	rawInfo, err := bencode.EncodeBytes(info)
	if err != nil {
		t.Fatalf("encode info: %v", err)
	}
	data, err := bencode.EncodeBytes(map[string]interface{}{
		"announce": "udp://tracker.example.org:1337/announce",
		"info":     bencode.RawMessage(rawInfo),
	})
	if err != nil {
		t.Fatalf("encode torrent: %v", err)
	}

	meta, err := ParseTorrent(data)
	if err != nil {
		t.Fatalf("parse torrent: %v", err)
	}

	sum := sha1.Sum(rawInfo)
	if want := hex.EncodeToString(sum[:]); meta.InfoHash != want {
		t.Errorf("info hash = %q, want %q", meta.InfoHash, want)
	}
	if meta.Name != "movie.mkv" {
		t.Errorf("name = %q", meta.Name)
	}
	if meta.Size != 1234567 {
		t.Errorf("size = %d, want 1234567", meta.Size)
	}
	if len(meta.Files) != 1 || meta.Files[0].Path != "movie.mkv" {
		t.Errorf("files = %+v", meta.Files)
	}
	if len(meta.Trackers) != 1 {
		t.Errorf("trackers = %v", meta.Trackers)
	}
}

func TestParseTorrentMultiFile(t *testing.T) {
	info := map[string]interface{}{
		"name": "Show.S01.1080p",
		"files": []map[string]interface{}{
			{"length": int64(100), "path": []string{"Show.S01E01.mkv"}},
			{"length": int64(200), "path": []string{"extras", "sample.mkv"}},
		},
		"piece length": int64(262144),
		"pieces":       "xxxxxxxxxxxxxxxxxxxx",
	}
	rawInfo, err := bencode.EncodeBytes(info)
	if err != nil {
		t.Fatalf("encode info: %v", err)
	}
	data, err := bencode.EncodeBytes(map[string]interface{}{
		"announce":      "udp://a.example/announce",
		"announce-list": [][]string{{"udp://a.example/announce"}, {"udp://b.example/announce"}},
		"info":          bencode.RawMessage(rawInfo),
	})
	if err != nil {
		t.Fatalf("encode torrent: %v", err)
	}

	meta, err := ParseTorrent(data)
	if err != nil {
		t.Fatalf("parse torrent: %v", err)
	}
	if meta.Size != 300 {
		t.Errorf("size = %d, want 300", meta.Size)
	}
	if len(meta.Files) != 2 || meta.Files[1].Path != "extras/sample.mkv" {
		t.Errorf("files = %+v", meta.Files)
	}
	// announce duplicated in announce-list must not repeat
	if len(meta.Trackers) != 2 {
		t.Errorf("trackers = %v, want 2 unique", meta.Trackers)
	}
}

func TestParseTorrentRejectsGarbage(t *testing.T) {
	if _, err := ParseTorrent([]byte("not a torrent")); err == nil {
		t.Error("expected decode error")
	}
}
