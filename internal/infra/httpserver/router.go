package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/bryanwahyu/nutrisnap/internal/application/session"
	domain "github.com/bryanwahyu/nutrisnap/internal/domain/meal"
	"github.com/bryanwahyu/nutrisnap/internal/middleware"
)

// MealService is the read side of the analysis use case.
type MealService interface {
	History(ctx context.Context, identity string) ([]domain.HistoryEntry, error)
	Ready() error
}

// Options configures the optional parts of the router.
type Options struct {
	CORSOrigins []string
	APIKeys     map[string]string
	Limiter     *middleware.RateLimiter
	Metrics     *middleware.Metrics
	Checks      map[string]middleware.HealthChecker
	Logger      *slog.Logger
}

type Router struct {
	meals    MealService
	sessions *session.Registry
	logger   *slog.Logger
}

// badRequestError marks client input errors.
type badRequestError struct{ msg string }

func (e badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return badRequestError{msg: fmt.Sprintf(format, args...)}
}

func NewRouter(meals MealService, sessions *session.Registry, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = middleware.NewMetrics()
	}
	r := &Router{meals: meals, sessions: sessions, logger: logger}

	mux := chi.NewRouter()
	mux.Use(middleware.Logging(logger))
	mux.Use(metrics.Middleware)
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.IdentityHeader},
		MaxAge:         300,
	}))

	readiness := map[string]middleware.HealthChecker{
		"credential": middleware.CheckFunc(func(context.Context) error { return meals.Ready() }),
	}
	for name, c := range opts.Checks {
		readiness[name] = c
	}

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/healthz", middleware.HealthHandler(opts.Checks))
	mux.Get("/readyz", middleware.HealthHandler(readiness))
	mux.Get("/metrics", metrics.Handler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(opts.APIKeys))
		rt.Use(middleware.Identity)

		rt.Post("/sessions", r.wrap(r.handleCreateSession))
		rt.Get("/sessions/{id}", r.wrap(r.handleGetSession))
		rt.Post("/sessions/{id}/reset", r.wrap(r.handleReset))
		rt.Delete("/sessions/{id}", r.wrap(r.handleDeleteSession))
		rt.Get("/history/{identity}", r.wrap(r.handleHistory))

		analyze := r.wrap(r.handleAnalyze)
		if opts.Limiter != nil {
			rt.With(middleware.RateLimit(opts.Limiter)).Post("/sessions/{id}/analyze", analyze)
		} else {
			rt.Post("/sessions/{id}/analyze", analyze)
		}
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var bad badRequestError
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &bad):
			writeJSON(w, http.StatusBadRequest, errorBody(bad.msg))
		case errors.As(err, &tooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("image too large"))
		case errors.Is(err, domain.ErrImageDecode):
			writeJSON(w, http.StatusBadRequest, errorBody("Could not read that image. Please upload a photo."))
		case errors.Is(err, domain.ErrMissingCredential):
			writeJSON(w, http.StatusPreconditionFailed, errorBody("API Error: Missing credentials."))
		case errors.Is(err, session.ErrSessionNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("session not found"))
		case errors.Is(err, session.ErrBusy):
			writeJSON(w, http.StatusConflict, errorBody("an analysis is already running for this session"))
		case errors.Is(err, session.ErrInvalidTransition):
			writeJSON(w, http.StatusConflict, errorBody("not allowed in the current state"))
		case errors.Is(err, domain.ErrQuotaExceeded):
			writeJSON(w, http.StatusTooManyRequests, errorBody(domain.FailureMessage))
		case errors.Is(err, domain.ErrAnalysisFailed):
			writeJSON(w, http.StatusBadGateway, errorBody(domain.FailureMessage))
		default:
			r.logger.Error("request failed", "method", req.Method, "path", req.URL.Path, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
	}
}

// POST /v1/sessions
func (r *Router) handleCreateSession(w http.ResponseWriter, req *http.Request) error {
	id, m := r.sessions.Create()
	return writeJSON(w, http.StatusCreated, newSessionResponse(id, m.State()))
}

// GET /v1/sessions/{id}
func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) error {
	id, m, err := r.session(req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, newSessionResponse(id, m.State()))
}

// POST /v1/sessions/{id}/analyze
// Multipart form: image=<file>, optional username=<name> when X-Username is absent.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	id, m, err := r.session(req)
	if err != nil {
		return err
	}

	req.Body = http.MaxBytesReader(w, req.Body, middleware.MaxUploadBytes+1<<20)
	if err := req.ParseMultipartForm(middleware.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return badRequest("expected multipart form with an image field")
	}
	file, hdr, err := req.FormFile("image")
	if err != nil {
		return badRequest("image field is required")
	}
	defer file.Close()
	blob, err := io.ReadAll(io.LimitReader(file, middleware.MaxUploadBytes+1))
	if err != nil {
		return badRequest("could not read upload")
	}
	if err := middleware.ValidateImageUpload(max(hdr.Size, int64(len(blob))), blob[:min(len(blob), 512)]); err != nil {
		return badRequest("%s", err.Error())
	}

	identity, err := requestIdentity(req)
	if err != nil {
		return err
	}

	// The analysis runs to completion even if the client goes away.
	view, err := m.Submit(context.WithoutCancel(req.Context()), identity, blob)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, newSessionResponse(id, view))
}

// POST /v1/sessions/{id}/reset
func (r *Router) handleReset(w http.ResponseWriter, req *http.Request) error {
	id, m, err := r.session(req)
	if err != nil {
		return err
	}
	view, err := m.Reset()
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, newSessionResponse(id, view))
}

// DELETE /v1/sessions/{id}
func (r *Router) handleDeleteSession(w http.ResponseWriter, req *http.Request) error {
	if err := r.sessions.Delete(chi.URLParam(req, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /v1/history/{identity}?limit=50
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	identity := middleware.SanitizeString(chi.URLParam(req, "identity"))
	if err := middleware.ValidateIdentity(identity); err != nil {
		return badRequest("%s", err.Error())
	}
	identity = domain.NormalizeIdentity(identity)

	entries, err := r.meals.History(req.Context(), identity)
	if err != nil {
		return err
	}
	if raw := req.URL.Query().Get("limit"); raw != "" {
		limit, _ := strconv.Atoi(raw)
		limit = middleware.ValidateLimit(limit)
		if len(entries) > limit {
			entries = entries[:limit]
		}
	}
	return writeJSON(w, http.StatusOK, newHistoryResponse(identity, entries))
}

func (r *Router) session(req *http.Request) (string, *session.Machine, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSessionID(id); err != nil {
		return id, nil, session.ErrSessionNotFound
	}
	m, err := r.sessions.Get(id)
	return id, m, err
}

// requestIdentity prefers the X-Username header and falls back to the
// username form field.
func requestIdentity(req *http.Request) (string, error) {
	if req.Header.Get(middleware.IdentityHeader) != "" {
		return middleware.IdentityFromContext(req.Context()), nil
	}
	name := middleware.SanitizeString(req.FormValue("username"))
	if err := middleware.ValidateIdentity(name); err != nil {
		return "", badRequest("%s", err.Error())
	}
	return domain.NormalizeIdentity(name), nil
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
