// Package server exposes the extraction engine and audit log over HTTP for
// the service deployment. The CLI talks to the same engine directly.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/monbulletin/payslip-cli/internal/engine"
	"github.com/monbulletin/payslip-cli/internal/model"
	"github.com/monbulletin/payslip-cli/internal/store"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps wires the handler's collaborators. Store may be nil when running
// without persistence, in which case the log and payslip routes return 503.
type Deps struct {
	Engine *engine.Engine
	Store  store.Store
	// AllowedOrigins configures CORS; empty means same-origin only.
	AllowedOrigins []string
}

// ExtractionRequest is the body of POST /api/extractions.
type ExtractionRequest struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	// Method selects the extraction layer: traditional, ai or hybrid.
	// Defaults to hybrid.
	Method string `json:"method"`
}

// NewHandler builds the HTTP API router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", handleHealth(deps))
	r.Route("/api", func(r chi.Router) {
		r.Post("/extractions", handleExtract(deps))
		r.Get("/logs", handleListLogs(deps))
		r.Get("/logs/stats", handleLogStats(deps))
		r.Get("/logs/{id}", handleGetLog(deps))
		r.Delete("/logs", handleDeleteLogs(deps))
		r.Get("/payslips", handleListPayslips(deps))
		r.Get("/payslips/{id}", handleGetPayslip(deps))
		r.Put("/payslips/{id}", handleUpdatePayslip(deps))
		r.Delete("/payslips/{id}", handleDeletePayslip(deps))
	})
	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		if deps.Store != nil {
			if err := deps.Store.Ping(r.Context()); err != nil {
				status["status"] = "degraded"
				status["store"] = "unreachable"
				writeJSON(w, http.StatusServiceUnavailable, status)
				return
			}
			status["store"] = "ok"
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func handleExtract(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ExtractionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.URL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required")
			return
		}
		if req.Method == "" {
			req.Method = string(model.MethodHybrid)
		}

		meta := model.FileInfo{Name: req.FileName, URL: req.URL}
		var (
			res *model.ExtractionResult
			err error
		)
		switch model.ExtractionMethod(req.Method) {
		case model.MethodTraditional:
			fields := deps.Engine.ExtractDataTraditional(r.Context(), req.URL, meta)
			if fields == nil {
				httpError(w, http.StatusUnprocessableEntity, "extraction_error", "pattern extraction incomplete")
				return
			}
			res = &model.ExtractionResult{ExtractedFields: *fields, Method: model.MethodTraditional}
		case model.MethodAI:
			res, err = deps.Engine.AnalyzeDocument(r.Context(), req.URL, meta)
		case model.MethodHybrid:
			res, err = deps.Engine.AnalyzeDocumentHybrid(r.Context(), req.URL, meta)
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown method %q", req.Method)
			return
		}
		if err != nil {
			status := http.StatusUnprocessableEntity
			if model.ClassifyError(err) == model.ErrKindNetwork {
				status = http.StatusBadGateway
			}
			httpError(w, status, "extraction_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleListLogs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "no store configured")
			return
		}

		filter := store.LogFilter{
			ErrorType: model.ErrorKind(r.URL.Query().Get("errorType")),
			Method:    model.ExtractionMethod(r.URL.Query().Get("method")),
			Take:      parseIntParam(r, "take", 50, 500),
			Skip:      parseIntParam(r, "skip", 0, 0),
		}
		if s := r.URL.Query().Get("success"); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid success value %q", s)
				return
			}
			filter.Success = &v
		}
		if s := r.URL.Query().Get("since"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid since value %q", s)
				return
			}
			filter.Since = t
		}

		entries, err := deps.Store.ListLogs(r.Context(), filter)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list logs: %v", err)
			return
		}
		if entries == nil {
			entries = []model.ExtractionLogEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func handleGetLog(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "no store configured")
			return
		}
		entry, err := deps.Store.GetLog(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondStoreError(w, err, "log entry")
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func handleLogStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "no store configured")
			return
		}
		stats, err := deps.Store.AggregateErrors(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to aggregate errors: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleDeleteLogs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "no store configured")
			return
		}
		n, err := deps.Store.DeleteAllLogs(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete logs: %v", err)
			return
		}
		zap.L().Info("extraction logs cleared", zap.Int64("deleted", n))
		writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
	}
}

func handleListPayslips(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "no store configured")
			return
		}
		limit := parseIntParam(r, "limit", 50, 500)
		offset := parseIntParam(r, "offset", 0, 0)

		payslips, err := deps.Store.ListPayslips(r.Context(), limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list payslips: %v", err)
			return
		}
		if payslips == nil {
			payslips = []model.Payslip{}
		}
		writeJSON(w, http.StatusOK, payslips)
	}
}

func handleGetPayslip(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "no store configured")
			return
		}
		p, err := deps.Store.GetPayslip(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondStoreError(w, err, "payslip")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleUpdatePayslip(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "no store configured")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var p model.Payslip
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		p.ID = chi.URLParam(r, "id")

		if err := deps.Store.UpdatePayslip(r.Context(), &p); err != nil {
			respondStoreError(w, err, "payslip")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleDeletePayslip(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "no store configured")
			return
		}
		if err := deps.Store.DeletePayslip(r.Context(), chi.URLParam(r, "id")); err != nil {
			respondStoreError(w, err, "payslip")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func respondStoreError(w http.ResponseWriter, err error, what string) {
	if eris.Is(err, store.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "%s not found", what)
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "failed to get %s: %v", what, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func httpError(w http.ResponseWriter, status int, kind, format string, args ...any) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"type":    kind,
			"message": fmt.Sprintf(format, args...),
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
