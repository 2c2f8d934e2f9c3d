package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	fleetwise "github.com/dang-hang/fleet-wise-aide"
	"github.com/dang-hang/fleet-wise-aide/extract"
	"github.com/dang-hang/fleet-wise-aide/geom"
	"github.com/dang-hang/fleet-wise-aide/ingest"
	"github.com/dang-hang/fleet-wise-aide/render"
	"github.com/dang-hang/fleet-wise-aide/store"
)

type handler struct {
	engine fleetwise.Engine
}

func newHandler(e fleetwise.Engine) *handler {
	return &handler{engine: e}
}

type queryRequest struct {
	Question    string `json:"question"`
	MaxSections int    `json:"max_sections,omitempty"`
	Scope       string `json:"scope,omitempty"`
}

func (q queryRequest) options() []fleetwise.QueryOption {
	var opts []fleetwise.QueryOption
	if q.MaxSections > 0 && q.MaxSections <= 50 {
		opts = append(opts, fleetwise.WithMaxSections(q.MaxSections))
	}
	if q.Scope != "" {
		opts = append(opts, fleetwise.WithScope(q.Scope))
	}
	return opts
}

// POST /api/query
func (h *handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := h.engine.Query(ctx, req.Question, req.options()...)
	if err != nil {
		writeEngineError(w, "query", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /api/references
// Like query, but flattens sections and images into one reference list
// with ready-to-fetch image URLs.
func (h *handler) handleReferences(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := h.engine.Query(ctx, req.Question, req.options()...)
	if err != nil {
		writeEngineError(w, "references", err)
		return
	}

	type reference struct {
		Kind      string `json:"kind"` // "section" or "image"
		ManualID  int64  `json:"manual_id"`
		Name      string `json:"name,omitempty"`
		FirstPage int    `json:"first_page,omitempty"`
		LastPage  int    `json:"last_page,omitempty"`
		Page      int    `json:"page,omitempty"`
		ImageURL  string `json:"image_url,omitempty"`
	}

	refs := make([]reference, 0, len(result.Sections)+len(result.Images))
	for _, s := range result.Sections {
		refs = append(refs, reference{
			Kind: "section", ManualID: s.ManualID, Name: s.Name,
			FirstPage: s.FirstPage, LastPage: s.LastPage,
		})
	}
	for _, img := range result.Images {
		refs = append(refs, reference{
			Kind: "image", ManualID: img.ManualID, Page: img.Page,
			ImageURL: fmt.Sprintf("/api/images/extract/%d/%d?x=%d&y=%d&w=%d&h=%d",
				img.ManualID, img.Page, img.X, img.Y, img.W, img.H),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"vehicle":    result.Vehicle,
		"references": refs,
	})
}

// POST /api/answer
func (h *handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	answer, err := h.engine.Answer(ctx, req.Question, req.options()...)
	if err != nil {
		writeEngineError(w, "answer", err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// GET /api/manuals
func (h *handler) handleListManuals(w http.ResponseWriter, r *http.Request) {
	manuals, err := h.engine.ListManuals(r.Context(), r.URL.Query().Get("scope"))
	if err != nil {
		writeEngineError(w, "list manuals", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"manuals": manuals})
}

// GET /api/manuals/{id}
func (h *handler) handleGetManual(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid manual id")
		return
	}

	details, err := h.engine.GetManual(r.Context(), id)
	if err != nil {
		writeEngineError(w, "get manual", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// DELETE /api/manuals/{id}
func (h *handler) handleDeleteManual(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid manual id")
		return
	}

	if err := h.engine.DeleteManual(r.Context(), id, r.URL.Query().Get("scope")); err != nil {
		writeEngineError(w, "delete manual", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// POST /api/manuals/upload
// Multipart upload: file plus year/make/model form fields, optional
// uplifted and owner.
func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(200 << 20); err != nil { // 200MB max
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	year, err := strconv.Atoi(r.FormValue("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year is required")
		return
	}
	mk := strings.TrimSpace(r.FormValue("make"))
	model := strings.TrimSpace(r.FormValue("model"))
	if mk == "" || model == "" {
		writeError(w, http.StatusBadRequest, "make and model are required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	// Sanitise filename to prevent path traversal.
	safeName := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(safeName), ".pdf") {
		writeError(w, http.StatusBadRequest, "only PDF manuals are accepted")
		return
	}

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

	id, err := h.engine.Ingest(ctx, tmpPath, ingest.Meta{
		Year:     year,
		Make:     mk,
		Model:    model,
		Uplifted: r.FormValue("uplifted") == "true",
		Owner:    r.FormValue("owner"),
	})
	if err != nil {
		writeEngineError(w, "ingest", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"manual_id": id,
		"filename":  safeName,
	})
}

// POST /api/images/extract
func (h *handler) handleExtractBatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	var req struct {
		ManualID int64             `json:"manual_id"`
		DPI      int               `json:"dpi,omitempty"`
		Regions  []extract.Request `json:"regions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Regions) == 0 {
		writeError(w, http.StatusBadRequest, "regions are required")
		return
	}

	images, err := h.engine.ExtractRegions(ctx, req.ManualID, req.Regions, req.DPI)
	if err != nil {
		writeEngineError(w, "extract batch", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"manual_id": req.ManualID,
		"images":    images,
	})
}

// GET /api/images/extract/{manual}/{page}?x=&y=&w=&h=&dpi=
// Returns the cropped region as raw PNG.
func (h *handler) handleExtractRegion(w http.ResponseWriter, r *http.Request) {
	manualID, err := strconv.ParseInt(r.PathValue("manual"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid manual id")
		return
	}
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}

	q := r.URL.Query()
	region := geom.RegionPct{
		X: intParam(q.Get("x"), 0),
		Y: intParam(q.Get("y"), 0),
		W: intParam(q.Get("w"), 100),
		H: intParam(q.Get("h"), 100),
	}

	data, _, err := h.engine.ExtractRegion(r.Context(), manualID, page, region, intParam(q.Get("dpi"), 0))
	if err != nil {
		writeEngineError(w, "extract region", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// writeEngineError maps engine sentinels to HTTP status codes.
func writeEngineError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, fleetwise.ErrEmptyQuery),
		errors.Is(err, extract.ErrEmptyRegion),
		errors.Is(err, fleetwise.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, fleetwise.ErrManualNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, render.ErrPageOutOfRange):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, fleetwise.ErrVisionRequired):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, op+" failed")
		slog.Error(op+" error", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
