// Package httpapi provides the REST HTTP adapter for the board surface.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/evanschultz/brainboard/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	board common.BoardService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over a board service.
func NewHandler(board common.BoardService) *Handler {
	return &Handler{board: board}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.board == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "board service is not configured",
		})
		return
	}
	segments, ok := splitPath(r.URL.EscapedPath())
	if !ok {
		writeNotFound(w)
		return
	}

	switch {
	case len(segments) == 1 && segments[0] == "board":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleGetBoard(w, r)
	case len(segments) == 1 && segments[0] == "features":
		switch r.Method {
		case http.MethodGet:
			h.handleListFeatures(w, r)
		case http.MethodPost:
			h.handleCreateFeature(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(segments) == 2 && segments[0] == "features":
		switch r.Method {
		case http.MethodPut, http.MethodPatch:
			h.handleUpdateFeature(w, r, segments[1])
		case http.MethodDelete:
			h.handleDeleteFeature(w, r, segments[1])
		default:
			writeMethodNotAllowed(w, http.MethodPut, http.MethodPatch, http.MethodDelete)
		}
	case len(segments) == 3 && segments[0] == "features" && segments[2] == "move":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleMoveFeature(w, r, segments[1])
	case len(segments) == 1 && segments[0] == "phases":
		switch r.Method {
		case http.MethodGet:
			h.handleListPhases(w, r)
		case http.MethodPost:
			h.handleCreatePhase(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(segments) == 2 && segments[0] == "phases":
		if r.Method != http.MethodDelete {
			writeMethodNotAllowed(w, http.MethodDelete)
			return
		}
		h.handleDeletePhase(w, r, segments[1])
	case len(segments) == 3 && segments[0] == "phases" && segments[2] == "move":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleMovePhase(w, r, segments[1])
	case len(segments) == 3 && segments[0] == "phases" && segments[2] == "rename":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleRenamePhase(w, r, segments[1])
	case len(segments) == 1 && segments[0] == "tags":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListTags(w, r)
	case len(segments) == 1 && segments[0] == "export":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleExport(w, r)
	case len(segments) == 1 && segments[0] == "import":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleImport(w, r)
	default:
		writeNotFound(w)
	}
}

// handleGetBoard serves GET `/board`.
func (h *Handler) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.board.GetBoard(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// handleListFeatures serves GET `/features`.
func (h *Handler) handleListFeatures(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	features, err := h.board.ListFeatures(r.Context(), common.ListFeaturesRequest{
		Tags:  splitCSV(query["tags"]),
		Mode:  strings.TrimSpace(query.Get("mode")),
		Phase: strings.TrimSpace(query.Get("phase")),
		Query: strings.TrimSpace(query.Get("q")),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"features": features,
	})
}

// handleCreateFeature serves POST `/features`.
func (h *Handler) handleCreateFeature(w http.ResponseWriter, r *http.Request) {
	var req common.CreateFeatureRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	feature, err := h.board.CreateFeature(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, feature)
}

// handleUpdateFeature serves PUT `/features/{id}`.
func (h *Handler) handleUpdateFeature(w http.ResponseWriter, r *http.Request, id string) {
	var req common.UpdateFeatureRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.ID = id
	feature, err := h.board.UpdateFeature(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feature)
}

// handleDeleteFeature serves DELETE `/features/{id}`.
func (h *Handler) handleDeleteFeature(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.board.DeleteFeature(r.Context(), id); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMoveFeature serves POST `/features/{id}/move`.
func (h *Handler) handleMoveFeature(w http.ResponseWriter, r *http.Request, id string) {
	var req common.MoveFeatureRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.ID = id
	feature, err := h.board.MoveFeature(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feature)
}

// handleListPhases serves GET `/phases`.
func (h *Handler) handleListPhases(w http.ResponseWriter, r *http.Request) {
	phases, err := h.board.ListPhases(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"phases": phases})
}

// handleCreatePhase serves POST `/phases`.
func (h *Handler) handleCreatePhase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	phases, err := h.board.CreatePhase(r.Context(), req.Name)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"phases": phases})
}

// handleMovePhase serves POST `/phases/{name}/move`.
func (h *Handler) handleMovePhase(w http.ResponseWriter, r *http.Request, name string) {
	var req common.MovePhaseRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.Name = name
	phases, err := h.board.MovePhase(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"phases": phases})
}

// handleRenamePhase serves POST `/phases/{name}/rename`.
func (h *Handler) handleRenamePhase(w http.ResponseWriter, r *http.Request, name string) {
	var req common.RenamePhaseRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.Name = name
	phases, err := h.board.RenamePhase(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"phases": phases})
}

// handleDeletePhase serves DELETE `/phases/{name}`.
func (h *Handler) handleDeletePhase(w http.ResponseWriter, r *http.Request, name string) {
	phases, err := h.board.DeletePhase(r.Context(), name)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"phases": phases})
}

// handleListTags serves GET `/tags`.
func (h *Handler) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.board.ListTags(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// handleExport serves GET `/export` as a downloadable document.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	includePhases := false
	if raw := strings.TrimSpace(query.Get("include_phases")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: fmt.Sprintf("include_phases must be a boolean, got %q", raw),
			})
			return
		}
		includePhases = parsed
	}
	out, err := h.board.ExportDocument(r.Context(), common.ExportRequest{
		Format:        query.Get("format"),
		IncludePhases: includePhases,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	contentType := "application/json"
	if out.Format == "yaml" {
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out.Content)
}

// handleImport serves POST `/import` with a raw document body.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()
	raw, err := io.ReadAll(reader)
	if err != nil {
		writeErrorFrom(w, fmt.Errorf("read request body: %w", errors.Join(common.ErrInvalidRequest, err)))
		return
	}
	board, err := h.board.ImportDocument(r.Context(), raw)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// splitPath canonicalizes one escaped request path into unescaped segments so
// phase names may carry spaces or slashes.
func splitPath(escaped string) ([]string, bool) {
	escaped = strings.Trim(strings.TrimSpace(escaped), "/")
	if escaped == "" {
		return nil, false
	}
	parts := strings.Split(escaped, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		segment, err := url.PathUnescape(part)
		if err != nil || strings.TrimSpace(segment) == "" {
			return nil, false
		}
		out = append(out, segment)
	}
	return out, true
}

// splitCSV flattens repeated and comma-separated query values.
func splitCSV(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrBoardRequired):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "board_required",
			Message: err.Error(),
			Hint:    "Import a document or run `brainboard init` first.",
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

func writeNotFound(w http.ResponseWriter) {
	writeJSONError(w, http.StatusNotFound, APIError{
		Code:    "not_found",
		Message: "endpoint not found",
	})
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
