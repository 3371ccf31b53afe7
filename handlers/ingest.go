package handlers

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"mediafusion/internal/nzbvault"
	"mediafusion/models"
	"mediafusion/services/scraper"
	"mediafusion/services/store"
	"mediafusion/utils/magnet"
)

// maxUploadBytes bounds torrent and NZB uploads.
const maxUploadBytes = 10 << 20

// IngestHandler accepts user-contributed payloads: .torrent files and NZB
// documents. Both run through the same ingest policy as scraped candidates.
type IngestHandler struct {
	store    *store.Store
	ingestor *scraper.Ingestor
	vault    *nzbvault.Vault
}

func NewIngestHandler(st *store.Store, ing *scraper.Ingestor, vault *nzbvault.Vault) *IngestHandler {
	return &IngestHandler{store: st, ingestor: ing, vault: vault}
}

// ensureTarget resolves the media the upload attaches to, creating it when
// new. The external id and content type come from query parameters.
func (h *IngestHandler) ensureTarget(w http.ResponseWriter, r *http.Request) (*models.Media, bool) {
	externalID := r.URL.Query().Get("mediaId")
	if !models.IsIMDBID(externalID) && !models.IsSyntheticID(externalID) {
		httpError(w, http.StatusBadRequest, "mediaId must be an IMDb or mf identifier, got %q", externalID)
		return nil, false
	}
	kind, ok := kindFromStremioType(r.URL.Query().Get("type"))
	if !ok {
		kind = models.MediaKindMovie
	}
	media, err := h.store.EnsureMedia(r.Context(), externalID, kind)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "load media: %v", err)
		return nil, false
	}
	return media, true
}

func readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, string, bool) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile(field)
		if err != nil {
			httpError(w, http.StatusBadRequest, "missing %q upload: %v", field, err)
			return nil, "", false
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			httpError(w, http.StatusBadRequest, "read upload: %v", err)
			return nil, "", false
		}
		return data, header.Filename, true
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		httpError(w, http.StatusBadRequest, "read body: %v", err)
		return nil, "", false
	}
	return data, "", true
}

// Torrent handles POST /api/ingest/torrent?mediaId=tt...: decode, extract the
// info-hash and file listing, persist as a stream.
func (h *IngestHandler) Torrent(w http.ResponseWriter, r *http.Request) {
	media, ok := h.ensureTarget(w, r)
	if !ok {
		return
	}
	data, _, ok := readUpload(w, r, "torrent")
	if !ok {
		return
	}

	meta, err := magnet.ParseTorrent(data)
	if err != nil {
		httpError(w, http.StatusBadRequest, "%v", err)
		return
	}

	outcome, err := h.ingestor.IngestTorrent(r.Context(), media.ID, meta)
	if err != nil {
		httpError(w, http.StatusUnprocessableEntity, "%v", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"infoHash": meta.InfoHash,
		"name":     meta.Name,
		"files":    len(meta.Files),
		"outcome":  outcomeLabel(outcome),
	})
}

// NZB handles POST /api/ingest/nzb?mediaId=tt...: validate into the vault,
// then record a usenet stream referencing the stored blob. NZBs have no
// info-hash, so one is derived from the vault GUID.
func (h *IngestHandler) NZB(w http.ResponseWriter, r *http.Request) {
	media, ok := h.ensureTarget(w, r)
	if !ok {
		return
	}
	data, filename, ok := readUpload(w, r, "nzb")
	if !ok {
		return
	}
	if filename == "" {
		filename = r.URL.Query().Get("name")
	}

	entry, err := h.vault.Put(data, filename)
	if err != nil {
		if errors.Is(err, nzbvault.ErrInvalidPayload) {
			httpError(w, http.StatusBadRequest, "%v", err)
			return
		}
		httpError(w, http.StatusInternalServerError, "%v", err)
		return
	}

	candidate := scraper.Candidate{
		Title:       strings.TrimSuffix(entry.Name, ".nzb"),
		InfoHash:    syntheticHash(entry.GUID),
		PayloadKind: models.PayloadUsenet,
		PayloadRef:  entry.GUID,
		SizeBytes:   entry.Bytes,
		Source:      "upload",
	}
	metrics := h.ingestor.Ingest(r.Context(), media.ID, "upload", []scraper.Candidate{candidate})
	if metrics.New+metrics.Updated == 0 {
		// Policy rejected it; drop the stored blob again.
		if err := h.vault.Delete(entry.GUID); err != nil {
			log.Printf("[ingest] cleanup rejected nzb %s: %v", entry.GUID, err)
		}
		httpError(w, http.StatusUnprocessableEntity, "nzb rejected by ingest policy")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"guid":     entry.GUID,
		"name":     entry.Name,
		"files":    entry.Files,
		"segments": entry.Segments,
		"url":      h.vault.PublicURL(entry.GUID),
	})
}

// ServeNZB handles GET /nzb/{guid}: stream the stored blob back.
func (h *IngestHandler) ServeNZB(w http.ResponseWriter, r *http.Request) {
	guid := mux.Vars(r)["guid"]
	data, err := h.vault.Get(guid)
	if errors.Is(err, nzbvault.ErrNotFound) {
		httpError(w, http.StatusNotFound, "no nzb %s", guid)
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	w.Header().Set("Content-Type", "application/x-nzb")
	w.Header().Set("Content-Disposition", `attachment; filename="`+guid+`.nzb"`)
	w.Write(data)
}

// syntheticHash derives a stable stream key for payloads that have no
// BitTorrent identity.
func syntheticHash(guid string) string {
	sum := sha1.Sum([]byte("nzb:" + guid))
	return hex.EncodeToString(sum[:])
}

func outcomeLabel(outcome store.UpsertOutcome) string {
	switch outcome {
	case store.OutcomeCreated:
		return "created"
	case store.OutcomeUpdated:
		return "updated"
	default:
		return "blocked"
	}
}
