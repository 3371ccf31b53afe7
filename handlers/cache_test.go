package handlers

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"mediafusion/config"
	"mediafusion/models"
	"mediafusion/services/debrid"
)

const secondHash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func testCacheHandler(t *testing.T, provider *fakeProvider) *CacheHandler {
	t.Helper()
	c := testCache(t)
	availability := debrid.NewAvailabilityTracker(c, config.DebridSettings{}, offlineClient())
	return NewCacheHandler(availability, map[string]debrid.Provider{provider.Name(): provider})
}

func TestCacheStatus(t *testing.T) {
	provider := &fakeProvider{available: map[string]bool{testInfoHash: true}}
	h := testCacheHandler(t, provider)

	body := `{"service":"realdebrid","info_hashes":["` + testInfoHash + `","` + secondHash + `"]}`
	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest("POST", "/api/cache/status", strings.NewReader(body)))
	if rec.Code != 200 {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp models.CacheStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.CachedStatus[testInfoHash] {
		t.Error("cached hash reported unavailable")
	}
	if resp.CachedStatus[secondHash] {
		t.Error("unknown hash reported available")
	}
}

func TestCacheStatusServesFromCacheAfterImport(t *testing.T) {
	provider := &fakeProvider{checkErr: errors.New("provider down")}
	h := testCacheHandler(t, provider)

	importBody := `{"provider":"realdebrid","hashes":["` + testInfoHash + `"]}`
	rec := httptest.NewRecorder()
	h.Import(rec, httptest.NewRequest("POST", "/api/availability", strings.NewReader(importBody)))
	if rec.Code != 204 {
		t.Fatalf("import status = %d", rec.Code)
	}

	statusBody := `{"service":"realdebrid","info_hashes":["` + testInfoHash + `"]}`
	rec = httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest("POST", "/api/cache/status", strings.NewReader(statusBody)))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp models.CacheStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.CachedStatus[testInfoHash] {
		t.Error("imported hash not served from cache")
	}
	if provider.checkCalls != 0 {
		t.Errorf("provider checked %d times, want 0 (cache hit)", provider.checkCalls)
	}
}

func TestCacheStatusValidation(t *testing.T) {
	h := testCacheHandler(t, &fakeProvider{})

	cases := []struct {
		name string
		body string
	}{
		{"unknown service", `{"service":"nosuch","info_hashes":["` + testInfoHash + `"]}`},
		{"no hashes", `{"service":"realdebrid","info_hashes":[]}`},
		{"all invalid hashes", `{"service":"realdebrid","info_hashes":["nothex","short"]}`},
		{"bad json", `{"service":`},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.Status(rec, httptest.NewRequest("POST", "/api/cache/status", strings.NewReader(tc.body)))
		if rec.Code != 400 {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestCacheSubmit(t *testing.T) {
	provider := &fakeProvider{}
	h := testCacheHandler(t, provider)

	// Duplicate and uppercase hashes collapse into one submission each.
	body := `{"service":"realdebrid","info_hashes":["` + testInfoHash + `","` +
		strings.ToUpper(secondHash) + `","` + testInfoHash + `"]}`
	rec := httptest.NewRecorder()
	h.Submit(rec, httptest.NewRequest("POST", "/api/cache/submit", strings.NewReader(body)))
	if rec.Code != 200 {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp models.CacheSubmitResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Errorf("success = false, message %q", resp.Message)
	}
	if len(provider.submitted) != 2 {
		t.Errorf("submitted %d hashes, want 2: %v", len(provider.submitted), provider.submitted)
	}
}

func TestAvailabilityImportValidation(t *testing.T) {
	h := testCacheHandler(t, &fakeProvider{})

	cases := []string{
		`{"provider":"","hashes":["` + testInfoHash + `"]}`,
		`{"provider":"realdebrid","hashes":[]}`,
		`{"provider":"realdebrid","hashes":["nothex"]}`,
	}
	for _, body := range cases {
		rec := httptest.NewRecorder()
		h.Import(rec, httptest.NewRequest("POST", "/api/availability", strings.NewReader(body)))
		if rec.Code != 400 {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}
