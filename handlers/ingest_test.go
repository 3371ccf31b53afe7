package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"mediafusion/config"
	"mediafusion/internal/nzbvault"
	"mediafusion/models"
	"mediafusion/services/scraper"
	"mediafusion/services/store"
)

// Hand-assembled bencoded torrents. Keys inside each dictionary are sorted,
// as bencode requires.
const (
	singleFileTorrent = "d8:announce31:http://tracker.example/announce" +
		"4:infod6:lengthi5368709120e4:name39:The.Matrix.1999.1080p.BluRay.x264-GROUPee"

	multiFileTorrent = "d8:announce31:http://tracker.example/announce" +
		"4:infod5:filesl" +
		"d6:lengthi2000000000e4:pathl34:Show.S01E01.1080p.WEB.x264-GRP.mkvee" +
		"d6:lengthi52000e4:pathl34:Show.S01E01.1080p.WEB.x264-GRP.srtee" +
		"e4:name27:Show.S01.1080p.WEB.x264-GRPee"
)

func testIngestHandler(t *testing.T, ingestCfg config.IngestSettings) (*IngestHandler, *store.Store, *nzbvault.Vault) {
	t.Helper()
	st := testStore(t)
	vault, err := nzbvault.New(config.NZBVaultSettings{Backend: "memory"})
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	h := NewIngestHandler(st, scraper.NewIngestor(st, ingestCfg), vault)
	return h, st, vault
}

func ingestRouter(h *IngestHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/ingest/torrent", h.Torrent).Methods("POST")
	r.HandleFunc("/api/ingest/nzb", h.NZB).Methods("POST")
	r.HandleFunc("/nzb/{guid}", h.ServeNZB).Methods("GET")
	return r
}

const ingestNZBFixture = `<?xml version="1.0" encoding="UTF-8"?>
<nzb xmlns="http://www.newzbin.com/DTD/2003/nzb">
  <file poster="up@example.com" date="1700000000" subject="The.Matrix.1999 yEnc (1/2)">
    <groups><group>alt.binaries.movies</group></groups>
    <segments>
      <segment bytes="600000" number="1">a@news.example</segment>
      <segment bytes="400000" number="2">b@news.example</segment>
    </segments>
  </file>
</nzb>`

func TestIngestSingleFileTorrent(t *testing.T) {
	h, st, _ := testIngestHandler(t, config.IngestSettings{})
	r := ingestRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/ingest/torrent?mediaId=tt0133093&type=movie",
		strings.NewReader(singleFileTorrent)))
	if rec.Code != 201 {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		InfoHash string `json:"infoHash"`
		Name     string `json:"name"`
		Files    int    `json:"files"`
		Outcome  string `json:"outcome"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !models.IsInfoHash(resp.InfoHash) {
		t.Errorf("infoHash = %q", resp.InfoHash)
	}
	if resp.Name != "The.Matrix.1999.1080p.BluRay.x264-GROUP" {
		t.Errorf("name = %q", resp.Name)
	}
	if resp.Outcome != "created" {
		t.Errorf("outcome = %q", resp.Outcome)
	}

	stream, err := st.GetStreamByInfoHash(context.Background(), resp.InfoHash)
	if err != nil {
		t.Fatalf("load stream: %v", err)
	}
	if stream.Resolution != "1080p" {
		t.Errorf("resolution = %q", stream.Resolution)
	}
	if stream.SizeBytes != 5368709120 {
		t.Errorf("size = %d", stream.SizeBytes)
	}
}

func TestIngestSeasonPackTorrent(t *testing.T) {
	h, st, _ := testIngestHandler(t, config.IngestSettings{})
	r := ingestRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/ingest/torrent?mediaId=tt0903747&type=series",
		strings.NewReader(multiFileTorrent)))
	if rec.Code != 201 {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		InfoHash string `json:"infoHash"`
		Files    int    `json:"files"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Files != 2 {
		t.Errorf("files = %d, want 2", resp.Files)
	}

	stream, err := st.GetStreamByInfoHash(context.Background(), resp.InfoHash)
	if err != nil {
		t.Fatalf("load stream: %v", err)
	}
	if len(stream.Files) != 2 {
		t.Fatalf("stored files = %d, want 2", len(stream.Files))
	}
	video := stream.FileFor(1, 1)
	if video == nil {
		t.Fatal("no video file mapped to S01E01")
	}
	if video.Kind != models.FileVideo {
		t.Errorf("kind = %q", video.Kind)
	}
	foundSubtitle := false
	for _, f := range stream.Files {
		if f.Kind == models.FileSubtitle {
			foundSubtitle = true
		}
	}
	if !foundSubtitle {
		t.Error("subtitle file not classified")
	}
}

func TestIngestTorrentValidation(t *testing.T) {
	h, _, _ := testIngestHandler(t, config.IngestSettings{})
	r := ingestRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/ingest/torrent?mediaId=notanid",
		strings.NewReader(singleFileTorrent)))
	if rec.Code != 400 {
		t.Errorf("bad mediaId status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/ingest/torrent?mediaId=tt0133093",
		strings.NewReader("not a torrent")))
	if rec.Code != 400 {
		t.Errorf("bad payload status = %d, want 400", rec.Code)
	}
}

func TestIngestTorrentContentPolicy(t *testing.T) {
	h, _, _ := testIngestHandler(t, config.IngestSettings{AdultContentPatterns: []string{"matrix"}})
	r := ingestRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/ingest/torrent?mediaId=tt0133093",
		strings.NewReader(singleFileTorrent)))
	if rec.Code != 422 {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestIngestNZB(t *testing.T) {
	h, st, vault := testIngestHandler(t, config.IngestSettings{})
	r := ingestRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST",
		"/api/ingest/nzb?mediaId=tt0133093&name=The+Matrix+1999",
		strings.NewReader(ingestNZBFixture)))
	if rec.Code != 201 {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		GUID     string `json:"guid"`
		Name     string `json:"name"`
		Files    int    `json:"files"`
		Segments int    `json:"segments"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.GUID == "" {
		t.Fatal("no guid in response")
	}
	if resp.Name != "The.Matrix.1999.nzb" {
		t.Errorf("name = %q", resp.Name)
	}
	if resp.Files != 1 || resp.Segments != 2 {
		t.Errorf("files/segments = %d/%d", resp.Files, resp.Segments)
	}

	// The stream persisted under a synthetic hash derived from the guid.
	stream, err := st.GetStreamByInfoHash(context.Background(), syntheticHash(resp.GUID))
	if err != nil {
		t.Fatalf("load stream: %v", err)
	}
	if stream.PayloadKind != models.PayloadUsenet {
		t.Errorf("payloadKind = %q", stream.PayloadKind)
	}
	if stream.PayloadRef != resp.GUID {
		t.Errorf("payloadRef = %q, want %q", stream.PayloadRef, resp.GUID)
	}

	// The stored blob is downloadable again.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/nzb/"+resp.GUID, nil))
	if rec.Code != 200 {
		t.Fatalf("serve status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-nzb" {
		t.Errorf("content-type = %q", ct)
	}
	if rec.Body.String() != ingestNZBFixture {
		t.Error("served payload differs from upload")
	}

	// Vault agrees.
	if _, err := vault.Get(resp.GUID); err != nil {
		t.Errorf("vault get: %v", err)
	}
}

func TestIngestNZBRejectsInvalidPayload(t *testing.T) {
	h, _, _ := testIngestHandler(t, config.IngestSettings{})
	r := ingestRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/ingest/nzb?mediaId=tt0133093",
		strings.NewReader("this is not xml")))
	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServeNZBUnknownGUID(t *testing.T) {
	h, _, _ := testIngestHandler(t, config.IngestSettings{})
	r := ingestRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/nzb/1b4f0e98-71a9-4b42-9a1c-000000000000", nil))
	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
