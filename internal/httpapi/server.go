package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelrt/pkg/types"
)

// Service defines the methods required by the HTTP API layer. It is
// satisfied by *worker.Client.
type Service interface {
	ListModels(ctx context.Context) ([]types.ModelDescriptor, error)
	LoadedModels(ctx context.Context) ([]string, error)
	ModelInfo(ctx context.Context, id string) (*types.ModelDescriptor, error)
	LoadModel(ctx context.Context, id, location string) bool
	UnloadModel(ctx context.Context, id string) bool
	Generate(ctx context.Context, id, prompt string, opts types.GenerateOptions) (types.GenerationResult, error)
	GenerateText(ctx context.Context, id, prompt string, opts types.GenerateOptions) string
	AnalyzeDocument(ctx context.Context, id, content string, kind types.AnalysisKind) (types.AnalysisResult, error)
	Status(ctx context.Context) (types.StatusResponse, error)
	Cleanup(ctx context.Context) error
}

// readyTimeout bounds the worker round trip made by /readyz.
const readyTimeout = 2 * time.Second

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}
	r.Get("/models", h.listModels)
	r.Get("/models/loaded", h.loadedModels)
	r.Get("/models/{id}", h.modelInfo)
	r.Post("/models/{id}/load", h.loadModel)
	r.Post("/models/{id}/unload", h.unloadModel)
	r.Post("/generate", h.generate)
	r.Post("/analyze", h.analyze)
	r.Post("/cleanup", h.cleanup)
	r.Get("/status", h.status)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", h.ready)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

type handlers struct {
	svc Service
}

func (h *handlers) listModels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	models, err := h.svc.ListModels(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: models})
}

func (h *handlers) loadedModels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	ids, err := h.svc.LoadedModels(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, types.LoadedModelsResponse{Models: ids})
}

func (h *handlers) modelInfo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	id := chi.URLParam(r, "id")
	info, err := h.svc.ModelInfo(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if info == nil {
		writeJSONError(w, http.StatusNotFound, "model not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// loadModel accepts an optional LoadRequest body. The outcome is reported
// in the ok field; reasons are in the server log.
func (h *handlers) loadModel(w http.ResponseWriter, r *http.Request) {
	var req types.LoadRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	id := chi.URLParam(r, "id")
	ok := h.svc.LoadModel(ctx, id, req.Location)
	logRequest(r, "load", http.StatusOK, time.Time{}, nil, func(e logEvent) { e.Str("model", id).Bool("ok", ok) })
	writeJSON(w, http.StatusOK, types.BoolResponse{OK: ok})
}

func (h *handlers) unloadModel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	id := chi.URLParam(r, "id")
	ok := h.svc.UnloadModel(ctx, id)
	logRequest(r, "unload", http.StatusOK, time.Time{}, nil, func(e logEvent) { e.Str("model", id).Bool("ok", ok) })
	writeJSON(w, http.StatusOK, types.BoolResponse{OK: ok})
}

// generate runs one generation. With ?format=text the GenerateText contract
// applies: the response is always 200 and failures are reported in band.
func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	start := time.Now()
	logRequest(r, "generate start", 0, time.Time{}, nil, func(e logEvent) { e.Str("model", req.Model) })

	if r.URL.Query().Get("format") == "text" {
		text := h.svc.GenerateText(ctx, req.Model, req.Prompt, req.Options)
		logRequest(r, "generate end", http.StatusOK, start, nil, nil)
		writeJSON(w, http.StatusOK, types.TextResponse{Text: text})
		return
	}
	res, err := h.svc.Generate(ctx, req.Model, req.Prompt, req.Options)
	if err != nil {
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		status := statusFor(err)
		logRequest(r, "generate end", status, start, err, nil)
		writeJSONError(w, status, err.Error())
		return
	}
	logRequest(r, "generate end", http.StatusOK, start, nil, func(e logEvent) {
		e.Int("tokens", res.TokensGenerated).Str("finish_reason", res.FinishReason)
	})
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) analyze(w http.ResponseWriter, r *http.Request) {
	var req types.AnalyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSONError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.Kind == "" {
		req.Kind = types.AnalysisSummary
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	res, err := h.svc.AnalyzeDocument(ctx, req.Model, req.Content, req.Kind)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) cleanup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	if err := h.svc.Cleanup(ctx); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.BoolResponse{OK: true})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	st, err := h.svc.Status(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ready reports whether the worker answers within readyTimeout.
func (h *handlers) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if _, err := h.svc.Status(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil {
		return
	}
	status := statusFor(err)
	logRequest(r, "request failed", status, time.Time{}, err, nil)
	writeJSONError(w, status, err.Error())
}

func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if !requireJSON(w, r) {
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// decodeOptionalBody accepts an empty body; a non-empty body must be JSON.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if !requireJSON(w, r) {
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
