// Package api wires handlers onto the router. Route shape follows the
// Stremio addon protocol for the public surface and a /api prefix for
// everything else.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"mediafusion/handlers"
)

// corsMiddleware opens the addon surface to browser-based clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Register mounts all endpoints onto the router.
func Register(
	r *mux.Router,
	stremio *handlers.StremioHandler,
	resolve *handlers.ResolveHandler,
	cacheHandler *handlers.CacheHandler,
	admin *handlers.AdminHandler,
	ingest *handlers.IngestHandler,
	staticDir string,
) {
	r.Use(corsMiddleware)

	// Stremio addon protocol, with and without a config segment.
	r.HandleFunc("/manifest.json", stremio.Manifest).Methods(http.MethodGet)
	r.HandleFunc("/{config}/manifest.json", stremio.Manifest).Methods(http.MethodGet)
	r.HandleFunc("/stream/{mediaType}/{id}", stremio.Streams).Methods(http.MethodGet)
	r.HandleFunc("/{config}/stream/{mediaType}/{id}", stremio.Streams).Methods(http.MethodGet)

	// Playback resolution. The config segment is accepted but unused: the
	// provider is already in the path.
	r.HandleFunc("/resolve/{provider}/{infoHash}", resolve.Resolve).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/{config}/resolve/{provider}/{infoHash}", resolve.Resolve).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/resolve/{provider}/{infoHash}/state", resolve.State).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/cache/status", cacheHandler.Status).Methods(http.MethodPost)
	api.HandleFunc("/cache/submit", cacheHandler.Submit).Methods(http.MethodPost)
	api.HandleFunc("/availability", cacheHandler.Import).Methods(http.MethodPost)

	api.HandleFunc("/ingest/torrent", ingest.Torrent).Methods(http.MethodPost)
	api.HandleFunc("/ingest/nzb", ingest.NZB).Methods(http.MethodPost)

	api.HandleFunc("/streams/{infoHash}/vote", admin.Vote).Methods(http.MethodPost)

	adminRouter := api.PathPrefix("/admin").Subrouter()
	adminRouter.HandleFunc("/streams/{infoHash}/block", admin.Block).Methods(http.MethodPost)
	adminRouter.HandleFunc("/streams/{infoHash}/block", admin.Unblock).Methods(http.MethodDelete)
	adminRouter.HandleFunc("/streams/{infoHash}/deactivate", admin.Deactivate).Methods(http.MethodPost)
	adminRouter.HandleFunc("/scrape/{name}", admin.RunScrape).Methods(http.MethodPost)

	// Stored NZB blobs and the error-clip assets.
	r.HandleFunc("/nzb/{guid}", ingest.ServeNZB).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
}
