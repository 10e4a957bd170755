package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vmreddy/crickrag"
)

type handler struct {
	engine *crickrag.Engine
}

func newHandler(e *crickrag.Engine) *handler {
	return &handler{engine: e}
}

// POST /ask
func (h *handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := h.engine.Ask(ctx, req.Question)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to answer question")
		slog.Error("ask error", "question", req.Question, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// POST /ingest
// Accepts multipart file upload or JSON with a file path.
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	// Try multipart upload first
	if err := r.ParseMultipartForm(100 << 20); err == nil { // 100MB max
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()

			// Sanitise filename to prevent path traversal.
			safeName := filepath.Base(header.Filename)

			tmpPath := filepath.Join(os.TempDir(), safeName)
			dst, err := os.Create(tmpPath)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to process file")
				slog.Error("creating temp file", "error", err)
				return
			}
			if _, err := io.Copy(dst, file); err != nil {
				dst.Close()
				writeError(w, http.StatusInternalServerError, "failed to save file")
				slog.Error("saving uploaded file", "error", err)
				return
			}
			dst.Close()
			defer os.Remove(tmpPath)

			result, err := h.engine.IngestPDF(ctx, tmpPath)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "ingestion failed")
				slog.Error("ingest error", "error", err)
				return
			}

			writeJSON(w, http.StatusOK, result)
			return
		}
	}

	// Try JSON body with path
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "path must be an existing file")
		return
	}

	result, err := h.engine.IngestPDF(ctx, absPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		slog.Error("ingest error", "path", absPath, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /loadstats
func (h *handler) handleLoadStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	rows, err := h.engine.LoadStats(ctx, req.Path)
	if err != nil {
		if errors.Is(err, crickrag.ErrStatsDBUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "statistics database unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "loading statistics failed")
		slog.Error("loadstats error", "path", req.Path, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"path": req.Path,
		"rows": rows,
	})
}

// GET /documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.ListDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		slog.Error("list documents error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
	})
}

// DELETE /documents/{id}
func (h *handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	if err := h.engine.DeleteDocument(r.Context(), id); err != nil {
		if errors.Is(err, crickrag.ErrDocumentNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "delete failed")
		slog.Error("delete error", "document_id", id, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"stats_db": h.engine.StatsAvailable(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
