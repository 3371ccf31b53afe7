package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"mediafusion/config"
	"mediafusion/services/debrid"
	"mediafusion/services/store"
)

func testResolveHandler(t *testing.T, provider *fakeProvider) (*ResolveHandler, *store.Store) {
	t.Helper()
	st := testStore(t)
	c := testCache(t)
	availability := debrid.NewAvailabilityTracker(c, config.DebridSettings{}, offlineClient())
	resolver := debrid.NewResolver(availability, config.DebridSettings{TimeoutSeconds: 5})
	h := NewResolveHandler(resolver, map[string]debrid.Provider{provider.Name(): provider}, st)
	return h, st
}

func resolveRouter(h *ResolveHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/resolve/{provider}/{infoHash}", h.Resolve)
	r.HandleFunc("/resolve/{provider}/{infoHash}/state", h.State)
	return r
}

func TestResolveRedirectsToPlaybackURL(t *testing.T) {
	provider := &fakeProvider{
		available:  map[string]bool{testInfoHash: true},
		resolveURL: "https://cdn.debrid.example/the-matrix.mkv",
	}
	h, st := testResolveHandler(t, provider)
	seedStream(t, st, testInfoHash)
	r := resolveRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/resolve/realdebrid/"+testInfoHash, nil))
	if rec.Code != 302 {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != provider.resolveURL {
		t.Errorf("location = %q, want %q", got, provider.resolveURL)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("cache-control = %q, want no-store", got)
	}

	// Playback was recorded on the stored stream.
	stream, err := st.GetStreamByInfoHash(context.Background(), testInfoHash)
	if err != nil {
		t.Fatalf("load stream: %v", err)
	}
	if stream.PlaybackCount != 1 {
		t.Errorf("playbackCount = %d, want 1", stream.PlaybackCount)
	}
}

func TestResolveSubmitsUnknownHash(t *testing.T) {
	provider := &fakeProvider{resolveURL: "https://cdn.debrid.example/video.mkv"}
	h, _ := testResolveHandler(t, provider)
	r := resolveRouter(h)

	// Hash is neither cached nor in the store; the resolver submits a bare
	// magnet and continues.
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/resolve/realdebrid/"+testInfoHash, nil))
	if rec.Code != 302 {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(provider.submitted) != 1 || provider.submitted[0] != testInfoHash {
		t.Errorf("submitted = %v", provider.submitted)
	}
}

func TestResolveFailureRedirectsToErrorClip(t *testing.T) {
	provider := &fakeProvider{
		available:  map[string]bool{testInfoHash: true},
		resolveErr: fmt.Errorf("%w: token rejected", debrid.ErrAuth),
	}
	h, _ := testResolveHandler(t, provider)
	r := resolveRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/resolve/realdebrid/"+testInfoHash, nil))
	if rec.Code != 302 {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/static/exceptions/token_expired.mp4" {
		t.Errorf("location = %q", got)
	}
}

func TestResolveValidation(t *testing.T) {
	h, _ := testResolveHandler(t, &fakeProvider{})
	r := resolveRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/resolve/nosuch/"+testInfoHash, nil))
	if rec.Code != 404 {
		t.Errorf("unknown provider status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/resolve/realdebrid/nothex", nil))
	if rec.Code != 400 {
		t.Errorf("bad hash status = %d, want 400", rec.Code)
	}
}

func TestResolveState(t *testing.T) {
	provider := &fakeProvider{
		available:  map[string]bool{testInfoHash: true},
		resolveURL: "https://cdn.debrid.example/video.mkv",
	}
	h, _ := testResolveHandler(t, provider)
	r := resolveRouter(h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/resolve/realdebrid/"+testInfoHash+"/state", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["state"] != string(debrid.StateInit) {
		t.Errorf("state = %q, want INIT before any resolve", body["state"])
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/resolve/realdebrid/"+testInfoHash, nil))
	if rec.Code != 302 {
		t.Fatalf("resolve status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/resolve/realdebrid/"+testInfoHash+"/state", nil))
	var after map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&after); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if after["state"] != string(debrid.StateResolved) {
		t.Errorf("state = %q, want RESOLVED after resolve", after["state"])
	}
}
