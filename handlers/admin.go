package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"mediafusion/models"
	"mediafusion/services/scheduler"
	"mediafusion/services/store"
)

// AdminHandler covers moderation and operations endpoints: blocking streams,
// voting, and triggering scheduled scrapes.
type AdminHandler struct {
	store     *store.Store
	scheduler *scheduler.Service
}

func NewAdminHandler(st *store.Store, sched *scheduler.Service) *AdminHandler {
	return &AdminHandler{store: st, scheduler: sched}
}

func (h *AdminHandler) hashFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	hash := strings.ToLower(mux.Vars(r)["infoHash"])
	if !models.IsInfoHash(hash) {
		httpError(w, http.StatusBadRequest, "invalid info hash %q", mux.Vars(r)["infoHash"])
		return "", false
	}
	return hash, true
}

// Block marks an info-hash blocked. Blocked is sticky against re-ingest.
func (h *AdminHandler) Block(w http.ResponseWriter, r *http.Request) {
	hash, ok := h.hashFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.store.BlockStream(r.Context(), hash); err != nil {
		h.storeError(w, hash, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unblock clears a block.
func (h *AdminHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	hash, ok := h.hashFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.store.UnblockStream(r.Context(), hash); err != nil {
		h.storeError(w, hash, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Deactivate soft-hides a stream without the moderation weight of a block.
func (h *AdminHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	hash, ok := h.hashFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.store.SetStreamActive(r.Context(), hash, false); err != nil {
		h.storeError(w, hash, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Vote applies a +1/-1 delta to a stream's score.
func (h *AdminHandler) Vote(w http.ResponseWriter, r *http.Request) {
	hash, ok := h.hashFromRequest(w, r)
	if !ok {
		return
	}
	var body struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if body.Delta != 1 && body.Delta != -1 {
		httpError(w, http.StatusBadRequest, "delta must be 1 or -1, got %d", body.Delta)
		return
	}
	if err := h.store.VoteStream(r.Context(), hash, body.Delta); err != nil {
		h.storeError(w, hash, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunScrape triggers one scheduled scraper immediately.
func (h *AdminHandler) RunScrape(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.scheduler.RunNow(r.Context(), name); err != nil {
		httpError(w, http.StatusNotFound, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"scraper": name, "status": "completed"})
}

func (h *AdminHandler) storeError(w http.ResponseWriter, hash string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		httpError(w, http.StatusNotFound, "no stream with hash %s", hash)
		return
	}
	httpError(w, http.StatusInternalServerError, "%v", err)
}
