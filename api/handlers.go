/*
handlers.go - HTTP handlers for the typed key-value engine

ENDPOINTS:
  PUT    /v1/types/{type}/keys/{key}      Put a value
  GET    /v1/types/{type}/keys/{key}      Get a value
  HEAD   /v1/types/{type}/keys/{key}      Check existence
  DELETE /v1/types/{type}/keys/{key}      Delete a value
  GET    /v1/types/{type}/keys            List keys (query: prefix, limit)
  GET    /healthz                         Liveness probe
  GET    /v1/admin/log/tail               Tail the active transaction log

VALIDATION:
  The handlers do not check type/key themselves: they pass them to the
  store, which runs kv.ValidateTypeOrKey before taking its lock, so a
  bad request never takes the write lane and comes back as 400. limit
  is clamped to [0, kv.MaxLimit] with kv.DefaultLimit when absent.

ERROR HANDLING:
  errors.Is(err, kv.ErrInvalidArgument) -> 400
  errors.Is(err, kv.ErrValueTooLarge)   -> 413
  not found (Get/Exists miss)          -> 404
  anything else                        -> 500

SEE ALSO:
  - dto.go: request/response shapes
  - server.go: router and middleware wiring
*/
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/warp/kvengine/internal/metrics"
	"github.com/warp/kvengine/kv"
	"github.com/warp/kvengine/store/sqlite"
	"github.com/warp/kvengine/txnlog"
)

// Handler holds the dependencies every route needs.
type Handler struct {
	Store      *sqlite.Store
	Log        zerolog.Logger
	ActivePath string // path to the active transaction log file, for LogTail
}

// NewHandler builds a Handler wired to store, logging through log, and
// able to tail the transaction log at activeLogPath.
func NewHandler(store *sqlite.Store, log zerolog.Logger, activeLogPath string) *Handler {
	return &Handler{Store: store, Log: log, ActivePath: activeLogPath}
}

// PutValue handles PUT /v1/types/{type}/keys/{key}. The body is a
// PutRequest whose Value is base64-encoded, so arbitrary (including
// non-UTF-8) byte values can be round-tripped through JSON.
func (h *Handler) PutValue(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	key := chi.URLParam(r, "key")

	var req PutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed JSON body", err)
		return
	}

	value, err := base64.StdEncoding.DecodeString(req.Value)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "value must be base64-encoded", err)
		return
	}

	err = metrics.ObserveKVOp("put", func() error {
		return h.Store.Put(typ, key, value)
	})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetValue handles GET /v1/types/{type}/keys/{key}.
func (h *Handler) GetValue(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	key := chi.URLParam(r, "key")

	var value []byte
	var updatedAt float64
	var found bool
	err := metrics.ObserveKVOp("get", func() error {
		var err error
		value, updatedAt, found, err = h.Store.Get(typ, key)
		return err
	})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, "key not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, GetResponse{
		Type:      typ,
		Key:       key,
		Value:     base64.StdEncoding.EncodeToString(value),
		UpdatedAt: updatedAt,
	})
}

// ExistsValue handles HEAD /v1/types/{type}/keys/{key}, responding
// with 204 if present and 404 if absent, body always empty.
func (h *Handler) ExistsValue(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	key := chi.URLParam(r, "key")

	var exists bool
	err := metrics.ObserveKVOp("exists", func() error {
		var err error
		exists, err = h.Store.Exists(typ, key)
		return err
	})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteValue handles DELETE /v1/types/{type}/keys/{key}. Deleting a
// missing key is not an error (sqlite.Store.Delete is idempotent).
func (h *Handler) DeleteValue(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	key := chi.URLParam(r, "key")

	err := metrics.ObserveKVOp("delete", func() error {
		return h.Store.Delete(typ, key)
	})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListKeys handles GET /v1/types/{type}/keys?prefix=&limit=. prefix is
// matched as a literal SQL LIKE prefix with no escaping of wildcard
// metacharacters; a caller who needs literal '%' or '_' matching must
// avoid those characters (see store/sqlite.Store.List).
func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	prefix := r.URL.Query().Get("prefix")

	limit := kv.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "limit must be an integer", err)
			return
		}
		limit = n
	}
	limit = kv.ClampLimit(limit)

	var keys []string
	err := metrics.ObserveKVOp("list", func() error {
		var err error
		keys, err = h.Store.List(typ, prefix, limit)
		return err
	})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Type: typ, Keys: keys, Limit: limit})
}

// Health handles GET /healthz: pings the database and reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(); err != nil {
		h.Log.Warn().Err(err).Msg("health check: database unreachable")
		writeError(w, r, http.StatusServiceUnavailable, "database unreachable", err)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// LogTail handles GET /v1/admin/log/tail?n=50: returns the last n
// parsed JSON lines of the active transaction log. Read-only
// introspection, not log compaction or replay tooling.
func (h *Handler) LogTail(w http.ResponseWriter, r *http.Request) {
	n := 50
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, r, http.StatusBadRequest, "n must be a non-negative integer", err)
			return
		}
		n = parsed
	}

	lines, err := txnlog.TailLines(h.ActivePath, n)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to read transaction log", err)
		return
	}

	writeJSON(w, http.StatusOK, LogTailResponse{Lines: lines})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, kv.ErrInvalidArgument):
		writeError(w, r, http.StatusBadRequest, "invalid type or key", err)
	case errors.Is(err, kv.ErrValueTooLarge):
		writeError(w, r, http.StatusRequestEntityTooLarge, "value exceeds maximum size", err)
	default:
		h.Log.Error().Err(err).Str("path", r.URL.Path).Msg("store operation failed")
		writeError(w, r, http.StatusInternalServerError, "internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	resp := ErrorResponse{
		Error:     message,
		RequestID: middleware.GetReqID(r.Context()),
	}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
