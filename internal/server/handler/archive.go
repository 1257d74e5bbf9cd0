package handler

import (
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// archivePrefixes are the only key spaces the archive endpoints expose.
var archivePrefixes = []string{"runs/", "draws/"}

// ArchiveHandler browses archived run snapshots and draw exports.
type ArchiveHandler struct {
	blobs  domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(blobs domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{blobs: blobs, logger: logger}
}

type archiveEntry struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
}

// List returns the objects under prefix.
// GET /api/archive?prefix=runs/2026/
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "runs/"
	}
	if !allowedArchivePath(prefix) {
		writeError(w, http.StatusBadRequest, "prefix must start with runs/ or draws/")
		return
	}

	infos, err := h.blobs.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archive failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to list archive")
		return
	}

	limit := parseLimit(r, 100, 1000)
	entries := make([]archiveEntry, 0, min(len(infos), limit))
	for _, info := range infos {
		if len(entries) == limit {
			break
		}
		entries = append(entries, archiveEntry{
			Path:         info.Path,
			Size:         info.Size,
			LastModified: info.LastModified.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"prefix": prefix, "objects": entries})
}

// Get streams one archived object.
// GET /api/archive/object?path=runs/2026/10/19/<id>.json
func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("path")
	if !allowedArchivePath(key) || strings.HasSuffix(key, "/") {
		writeError(w, http.StatusBadRequest, "invalid archive path")
		return
	}

	ok, err := h.blobs.Exists(r.Context(), key)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: archive lookup failed",
			slog.String("path", key),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to read archive")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "object not found")
		return
	}

	body, err := h.blobs.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to read archive")
		return
	}
	defer body.Close()

	contentType := "application/json"
	if path.Ext(key) == ".jsonl" {
		contentType = "application/x-ndjson"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func allowedArchivePath(p string) bool {
	if strings.Contains(p, "..") {
		return false
	}
	for _, prefix := range archivePrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}
