package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/atvirokodosprendimai/dbmirror/internal/catalog"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
	"github.com/atvirokodosprendimai/dbmirror/internal/core/usecase"
	"github.com/atvirokodosprendimai/dbmirror/internal/metrics"
)

type ctxKey string

const (
	timeFormat             = "2006-01-02T15:04:05.999999999Z07:00"
	apiActorCtxKey  ctxKey = "api_actor"
	maxJSONBodySize        = 1 << 20
)

// MirrorStatus is the part of the secondary connection the API exposes.
type MirrorStatus interface {
	State() domain.ConnectionState
	Reconnect(ctx context.Context) error
}

// DriftComparer counts every mirrored type on both stores.
type DriftComparer interface {
	Compare(ctx context.Context) domain.DriftReport
}

// DriftChecker is the scheduled monitor: it runs comparisons and remembers
// the last one.
type DriftChecker interface {
	CheckNow(ctx context.Context) domain.DriftReport
	Last() (domain.DriftReport, time.Time)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	catalogService *usecase.CatalogService
	authService    *usecase.AuthService
	mirror         MirrorStatus
	comparator     DriftComparer
	drift          DriftChecker
	primary        Pinger
	log            zerolog.Logger
}

type Deps struct {
	Catalog    *usecase.CatalogService
	Auth       *usecase.AuthService
	Mirror     MirrorStatus
	Comparator DriftComparer
	Drift      DriftChecker
	Primary    Pinger
	Log        zerolog.Logger
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		catalogService: d.Catalog,
		authService:    d.Auth,
		mirror:         d.Mirror,
		comparator:     d.Comparator,
		drift:          d.Drift,
		primary:        d.Primary,
		log:            d.Log,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAPIKey)
		pr.Get("/v1/catalog/{collection}", h.list)
		pr.Post("/v1/catalog/{collection}", h.create)
		pr.Get("/v1/catalog/{collection}/{id}", h.get)
		pr.Put("/v1/catalog/{collection}/{id}", h.update)
		pr.Delete("/v1/catalog/{collection}/{id}", h.delete)

		pr.Get("/v1/mirror/status", h.mirrorStatus)
		pr.Get("/v1/mirror/drift", h.mirrorDrift)
		pr.Post("/v1/mirror/connect", h.mirrorConnect)

		pr.Delete("/v1/keys/{name}", h.revokeKey)
	})

	return r
}

type driftEntryResponse struct {
	Type  string `json:"type"`
	Local int64  `json:"local"`
	Live  int64  `json:"live"`
	Match bool   `json:"match"`
	Error string `json:"error,omitempty"`
}

type driftResponse struct {
	InSync    bool                 `json:"in_sync"`
	CheckedAt string               `json:"checked_at,omitempty"`
	Entries   []driftEntryResponse `json:"entries"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	body, ok := decodeObject(w, r)
	if !ok {
		return
	}

	item, err := h.catalogService.Create(r.Context(), kind, body)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	body, ok := decodeObject(w, r)
	if !ok {
		return
	}

	item, err := h.catalogService.Update(r.Context(), kind, chi.URLParam(r, "id"), body)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	item, err := h.catalogService.Get(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	deleted, err := h.catalogService.Delete(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	items, err := h.catalogService.List(r.Context(), kind, limit)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) mirrorStatus(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"state": h.mirror.State()}
	if h.drift != nil {
		if report, at := h.drift.Last(); !at.IsZero() {
			body["last_drift"] = toDriftResponse(report, at)
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// mirrorDrift goes through the monitor when one runs so its last report
// stays current.
func (h *Handler) mirrorDrift(w http.ResponseWriter, r *http.Request) {
	var report domain.DriftReport
	switch {
	case h.drift != nil:
		report = h.drift.CheckNow(r.Context())
	case h.comparator != nil:
		report = h.comparator.Compare(r.Context())
	default:
		writeError(w, http.StatusServiceUnavailable, "drift checks are not available")
		return
	}
	writeJSON(w, http.StatusOK, toDriftResponse(report, time.Now()))
}

func (h *Handler) mirrorConnect(w http.ResponseWriter, r *http.Request) {
	if err := h.mirror.Reconnect(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("secondary reconnect failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"state": h.mirror.State(), "error": "secondary store unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": h.mirror.State()})
}

func (h *Handler) revokeKey(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	revoked, err := h.authService.Revoke(r.Context(), name)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	if revoked {
		h.log.Info().Str("key", name).Str("actor", actorFromContext(r.Context())).Msg("api key revoked")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": revoked})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"ok": true, "mirror": h.mirror.State()}
	if h.primary != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.primary.Ping(ctx); err != nil {
			body["ok"] = false
			body["primary"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	// The mirror is optional; its state never fails the health check.
	body["primary"] = "ok"
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openapiSpec())
}

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if token == "" {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}

		apiKey, err := h.authService.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), apiActorCtxKey, apiKey.Name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("actor", actorFromContext(r.Context())).
			Msg("request")
	})
}

func kindParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	kind, ok := catalog.ParseCollection(chi.URLParam(r, "collection"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection")
		return "", false
	}
	return string(kind), true
}

func decodeObject(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	var body json.RawMessage
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return nil, false
	}
	return body, true
}

func toDriftResponse(report domain.DriftReport, at time.Time) driftResponse {
	out := driftResponse{InSync: report.InSync(), Entries: make([]driftEntryResponse, 0, len(report.Entries))}
	if !at.IsZero() {
		out.CheckedAt = at.UTC().Format(timeFormat)
	}
	for _, e := range report.Entries {
		out.Entries = append(out.Entries, driftEntryResponse{Type: e.Type, Local: e.Local, Live: e.Live, Match: e.Match, Error: e.Err})
	}
	return out
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be integer")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		zlog.Error().Err(err).Msg("encode json response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		zlog.Debug().Err(err).Msg("write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func handleDomainError(w http.ResponseWriter, err error) {
	var sv *domain.ErrShapeViolation
	switch {
	case errors.Is(err, domain.ErrInvalidID), errors.Is(err, domain.ErrInvalidKind), errors.Is(err, domain.ErrInvalidData):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &sv):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "shape validation failed", "details": sv.Errors})
	case errors.Is(err, domain.ErrUnknownKind), errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDuplicateKey):
		writeError(w, http.StatusConflict, "conflicts with an existing record")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}

func actorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(apiActorCtxKey).(string)
	return actor
}

func openapiSpec() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "dbmirror",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/v1/catalog/{collection}": map[string]any{
				"get":  map[string]any{"summary": "List catalog entities"},
				"post": map[string]any{"summary": "Create catalog entity"},
			},
			"/v1/catalog/{collection}/{id}": map[string]any{
				"get":    map[string]any{"summary": "Get catalog entity"},
				"put":    map[string]any{"summary": "Update catalog entity"},
				"delete": map[string]any{"summary": "Delete catalog entity"},
			},
			"/v1/mirror/status": map[string]any{
				"get": map[string]any{"summary": "Secondary connection state and last drift report"},
			},
			"/v1/mirror/drift": map[string]any{
				"get": map[string]any{"summary": "Compare record counts across both stores"},
			},
			"/v1/mirror/connect": map[string]any{
				"post": map[string]any{"summary": "Retry the secondary connection"},
			},
			"/v1/keys/{name}": map[string]any{
				"delete": map[string]any{"summary": "Revoke API keys by name"},
			},
		},
	}
}
