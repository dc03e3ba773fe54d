package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/msomdec/persist/internal/domain"
	"github.com/msomdec/persist/internal/service"
)

// bodyOverhead is the room left in a request body for the JSON envelope
// around the value.
const bodyOverhead = 4 << 10

// CacheHandler handles the cache JSON API.
type CacheHandler struct {
	cache        *service.CacheService
	maxBodyBytes int64
}

// NewCacheHandler creates a new CacheHandler. maxValueBytes bounds the size of
// a stored value; request bodies may be slightly larger.
func NewCacheHandler(cache *service.CacheService, maxValueBytes int64) *CacheHandler {
	return &CacheHandler{cache: cache, maxBodyBytes: maxValueBytes + bodyOverhead}
}

// HandleSet stores a value, replacing any existing entry.
// PUT /api/cache/{key}
// Request:  {"value": <json>, "expiresIn": "1h"}
// Response: {"key": "...", "value": <json>}
func (h *CacheHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	req, ok := h.readWrite(w, r)
	if !ok {
		return
	}

	if err := h.cache.Set(r.Context(), key, req.Value, req.ExpiresIn); err != nil {
		writeServiceError(w, r, "set cache entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toCacheEntryDTO(key, req.Value))
}

// HandleCreate stores a value only if the key does not exist yet.
// POST /api/cache/{key}
// Response: 201 {"key": "...", "value": <json>} or 409 if the key exists.
func (h *CacheHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	req, ok := h.readWrite(w, r)
	if !ok {
		return
	}

	if err := h.cache.Create(r.Context(), key, req.Value, req.ExpiresIn); err != nil {
		writeServiceError(w, r, "create cache entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCacheEntryDTO(key, req.Value))
}

// HandleGet returns a live entry.
// GET /api/cache/{key}
func (h *CacheHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	value, err := h.cache.Get(r.Context(), key)
	if err != nil {
		writeServiceError(w, r, "get cache entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toCacheEntryDTO(key, value))
}

// HandleDelete removes an entry. Deleting an absent key succeeds.
// DELETE /api/cache/{key}
func (h *CacheHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Delete(r.Context(), r.PathValue("key")); err != nil {
		writeServiceError(w, r, "delete cache entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTidy purges expired entries.
// POST /api/cache/tidy
// Response: {"removed": 3}
func (h *CacheHandler) HandleTidy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TidyDTO{Removed: h.cache.Tidy(r.Context())})
}

func (h *CacheHandler) readWrite(w http.ResponseWriter, r *http.Request) (CacheWriteRequest, bool) {
	var req CacheWriteRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := readJSON(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body is too large.")
			return req, false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return req, false
	}
	return req, true
}

// writeServiceError maps service errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, action string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Key not found.")
	case errors.Is(err, domain.ErrDuplicateKey):
		writeError(w, http.StatusConflict, "Key already exists.")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized.")
	default:
		slog.ErrorContext(r.Context(), action, "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
	}
}
