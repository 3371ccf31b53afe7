package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"mediafusion/models"
	"mediafusion/services/debrid"
	"mediafusion/utils/magnet"
)

// maxBatchHashes bounds batch endpoints so one request cannot fan out into
// thousands of provider calls.
const maxBatchHashes = 100

// CacheHandler exposes the shared availability layer: batch status checks,
// cache-warm submissions, and the peer-hub import endpoint.
type CacheHandler struct {
	availability *debrid.AvailabilityTracker
	providers    map[string]debrid.Provider
}

func NewCacheHandler(availability *debrid.AvailabilityTracker, providers map[string]debrid.Provider) *CacheHandler {
	return &CacheHandler{availability: availability, providers: providers}
}

// Status handles POST /api/cache/status: cached availability per hash on one
// service, cache-first.
func (h *CacheHandler) Status(w http.ResponseWriter, r *http.Request) {
	var req models.CacheStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	provider, hashes, err := h.validateBatch(req.Service, req.InfoHashes)
	if err != nil {
		httpError(w, http.StatusBadRequest, "%v", err)
		return
	}

	status, err := h.availability.Check(r.Context(), provider, hashes)
	if err != nil {
		// Cached knowledge is still a valid partial answer.
		log.Printf("[cache] status check %s: %v", req.Service, err)
	}
	writeJSON(w, http.StatusOK, models.CacheStatusResponse{CachedStatus: status})
}

// Submit handles POST /api/cache/submit: push hashes to the provider's cloud
// so later resolves hit the cache.
func (h *CacheHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.CacheSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	provider, hashes, err := h.validateBatch(req.Service, req.InfoHashes)
	if err != nil {
		httpError(w, http.StatusBadRequest, "%v", err)
		return
	}

	submitted := 0
	for _, hash := range hashes {
		magnetURI, err := magnet.Build(hash, "", nil)
		if err != nil {
			continue
		}
		if _, err := provider.Submit(r.Context(), hash, magnetURI); err != nil {
			log.Printf("[cache] submit %s to %s: %v", hash, req.Service, err)
			continue
		}
		submitted++
	}
	writeJSON(w, http.StatusOK, models.CacheSubmitResponse{
		Success: submitted == len(hashes),
		Message: fmt.Sprintf("submitted %d/%d hashes", submitted, len(hashes)),
	})
}

// Import handles POST /api/availability: a peer hub pushing positive
// availability observations into the local cache.
func (h *CacheHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string   `json:"provider"`
		Hashes   []string `json:"hashes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Provider == "" || len(req.Hashes) == 0 {
		httpError(w, http.StatusBadRequest, "provider and hashes are required")
		return
	}
	hashes := normalizeHashes(req.Hashes)
	if len(hashes) == 0 {
		httpError(w, http.StatusBadRequest, "no valid info hashes")
		return
	}
	h.availability.Import(req.Provider, hashes)
	w.WriteHeader(http.StatusNoContent)
}

func (h *CacheHandler) validateBatch(service string, rawHashes []string) (debrid.Provider, []string, error) {
	provider, ok := h.providers[service]
	if !ok {
		return nil, nil, fmt.Errorf("unknown service %q", service)
	}
	hashes := normalizeHashes(rawHashes)
	if len(hashes) == 0 {
		return nil, nil, fmt.Errorf("no valid info hashes")
	}
	if len(hashes) > maxBatchHashes {
		return nil, nil, fmt.Errorf("too many hashes: %d > %d", len(hashes), maxBatchHashes)
	}
	return provider, hashes, nil
}

func normalizeHashes(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	var hashes []string
	for _, hash := range raw {
		hash = strings.ToLower(strings.TrimSpace(hash))
		if !models.IsInfoHash(hash) {
			continue
		}
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}
		hashes = append(hashes, hash)
	}
	return hashes
}
