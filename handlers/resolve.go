package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"mediafusion/models"
	"mediafusion/services/debrid"
	"mediafusion/services/store"
	"mediafusion/utils/magnet"
)

// ResolveHandler turns a (provider, info-hash) pair into a 302 to the direct
// playback URL. Failures redirect to a static explanation clip instead of
// erroring, so the player always has something to show.
type ResolveHandler struct {
	resolver  *debrid.Resolver
	providers map[string]debrid.Provider
	store     *store.Store
}

func NewResolveHandler(resolver *debrid.Resolver, providers map[string]debrid.Provider, st *store.Store) *ResolveHandler {
	return &ResolveHandler{resolver: resolver, providers: providers, store: st}
}

// Resolve handles GET /{config}/resolve/{provider}/{infoHash}. Responses are
// never cacheable: a resolved URL is provider- and account-specific and
// expires.
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	w.Header().Set("Cache-Control", "no-store")

	provider, ok := h.providers[vars["provider"]]
	if !ok {
		httpError(w, http.StatusNotFound, "unknown provider %q", vars["provider"])
		return
	}
	hash := strings.ToLower(vars["infoHash"])
	if !models.IsInfoHash(hash) {
		httpError(w, http.StatusBadRequest, "invalid info hash %q", vars["infoHash"])
		return
	}

	ctx := r.Context()
	magnetURI, fileHint := h.playbackInputs(r, hash)

	url, err := h.resolver.Resolve(ctx, provider, hash, magnetURI, fileHint)
	if err != nil {
		log.Printf("[resolve] %s/%s: %v", provider.Name(), hash, err)
		http.Redirect(w, r, debrid.ErrorAssetPath(err), http.StatusFound)
		return
	}

	if err := h.store.RecordPlayback(ctx, hash); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("[resolve] record playback %s: %v", hash, err)
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// playbackInputs gathers the magnet and file hint for a resolve. The stored
// stream supplies both when known; an unknown hash still resolves through a
// bare magnet.
func (h *ResolveHandler) playbackInputs(r *http.Request, hash string) (magnetURI, fileHint string) {
	fileHint = r.URL.Query().Get("file")

	stream, err := h.store.GetStreamByInfoHash(r.Context(), hash)
	if err == nil {
		if stream.PayloadKind == models.PayloadTorrent && strings.HasPrefix(stream.PayloadRef, "magnet:") {
			magnetURI = stream.PayloadRef
		}
		if magnetURI == "" {
			magnetURI, _ = magnet.Build(hash, stream.Name, stream.SortedTrackers())
		}
		return magnetURI, fileHint
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Printf("[resolve] load stream %s: %v", hash, err)
	}
	magnetURI, _ = magnet.Build(hash, "", nil)
	return magnetURI, fileHint
}

// State reports the resolution lifecycle for a pair, for client polling UIs.
func (h *ResolveHandler) State(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if _, ok := h.providers[vars["provider"]]; !ok {
		httpError(w, http.StatusNotFound, "unknown provider %q", vars["provider"])
		return
	}
	hash := strings.ToLower(vars["infoHash"])
	if !models.IsInfoHash(hash) {
		httpError(w, http.StatusBadRequest, "invalid info hash %q", vars["infoHash"])
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"provider": vars["provider"],
		"infoHash": hash,
		"state":    string(h.resolver.State(vars["provider"], hash)),
	})
}
