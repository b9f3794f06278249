// Package api exposes the brain over HTTP (management/API surface) and
// MCP (assistant-facing tool surface).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/forgefit/brain/internal/cache"
	"github.com/forgefit/brain/internal/composer"
	"github.com/forgefit/brain/internal/gaps"
	"github.com/forgefit/brain/internal/knowledge"
	"github.com/forgefit/brain/internal/session"
	"github.com/forgefit/brain/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Brain abstracts the aggregator for the API layer.
type Brain interface {
	LoadUserKnowledge(ctx context.Context, userID string) (*knowledge.UserKnowledge, error)
	GetUserKnowledge(userID string) (*knowledge.UserKnowledge, error)
	RefreshForge(ctx context.Context, userID string, forge knowledge.Forge) error
	GetRawProfile(userID string) (*storage.Profile, error)
}

// GapAnalyzer abstracts the missing-data detector.
type GapAnalyzer interface {
	Analyze(snap *knowledge.UserKnowledge) gaps.Report
}

// PromptBuilder abstracts the composer.
type PromptBuilder interface {
	BuildSystemPrompt(bc composer.BrainContext, basePrompt string) string
}

// CacheInfo is the slice of the cache manager the API exposes: stats,
// health, and the bulk eviction hooks for operational use.
type CacheInfo interface {
	GetStats() cache.Stats
	IsHealthy() bool
	InvalidateForge(forge knowledge.Forge) int
	InvalidateUser(userID string) int
}

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Brain   Brain
	Gaps    GapAnalyzer
	Prompts PromptBuilder
	Cache   CacheInfo
	Token   string
}

// NewHandler builds the chi router. Everything except /health sits behind
// bearer auth.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/v1/knowledge/{userID}/load", handleLoad(deps))
		r.Get("/v1/knowledge/{userID}", handleGet(deps))
		r.Post("/v1/knowledge/{userID}/refresh/{forge}", handleRefresh(deps))
		r.Get("/v1/knowledge/{userID}/gaps", handleGaps(deps))
		r.Get("/v1/profile/{userID}", handleRawProfile(deps))
		r.Post("/v1/prompt/{userID}", handlePrompt(deps))
		r.Get("/v1/cache/stats", handleCacheStats(deps))
		r.Post("/v1/cache/invalidate/forge/{forge}", handleInvalidateForge(deps))
		r.Post("/v1/cache/invalidate/user/{userID}", handleInvalidateUser(deps))
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if deps.Cache != nil && !deps.Cache.IsHealthy() {
			status = "degraded"
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
	}
}

func handleLoad(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		snap, err := deps.Brain.LoadUserKnowledge(r.Context(), userID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "no profile for user %s", userID)
				return
			}
			httpError(w, http.StatusInternalServerError, "internal_error", "loading knowledge: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleGet(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		snap, err := deps.Brain.GetUserKnowledge(userID)
		if err != nil {
			if errors.Is(err, knowledge.ErrNotLoaded) {
				httpError(w, http.StatusConflict, "not_loaded", "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "internal_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleRefresh(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		forge := knowledge.Forge(chi.URLParam(r, "forge"))
		if !knowledge.Valid(forge) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown forge %q", forge)
			return
		}
		if err := deps.Brain.RefreshForge(r.Context(), userID, forge); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "no profile for user %s", userID)
				return
			}
			httpError(w, http.StatusInternalServerError, "internal_error", "refreshing %s: %v", forge, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed", "forge": string(forge)})
	}
}

func handleGaps(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		snap, err := deps.Brain.LoadUserKnowledge(r.Context(), userID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "no profile for user %s", userID)
				return
			}
			httpError(w, http.StatusInternalServerError, "internal_error", "loading knowledge: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, deps.Gaps.Analyze(snap))
	}
}

func handleRawProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		p, err := deps.Brain.GetRawProfile(userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "internal_error", "%v", err)
			return
		}
		if p == nil {
			httpError(w, http.StatusNotFound, "not_found", "no profile for user %s", userID)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// PromptRequest is the body for POST /v1/prompt/{userID}.
type PromptRequest struct {
	BasePrompt string                `json:"base_prompt"`
	Session    session.State         `json:"session"`
	Activity   composer.AppActivity  `json:"activity"`
}

// PromptResponse carries the rendered prompt plus the style decision, so
// the assistant layer can also clamp its own output length.
type PromptResponse struct {
	Prompt    string                `json:"prompt"`
	Awareness string                `json:"awareness"`
	Style     session.ResponseStyle `json:"style"`
}

func handlePrompt(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		var req PromptRequest
		body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		snap, err := deps.Brain.LoadUserKnowledge(r.Context(), userID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "no profile for user %s", userID)
				return
			}
			httpError(w, http.StatusInternalServerError, "internal_error", "loading knowledge: %v", err)
			return
		}

		report := deps.Gaps.Analyze(snap)
		bc := composer.BrainContext{
			Knowledge: snap,
			Activity:  req.Activity,
			Session:   req.Session,
			Gaps:      &report,
		}
		awareness := session.Classify(req.Session)
		writeJSON(w, http.StatusOK, PromptResponse{
			Prompt:    deps.Prompts.BuildSystemPrompt(bc, req.BasePrompt),
			Awareness: awareness.String(),
			Style:     session.StyleFor(awareness),
		})
	}
}

func handleCacheStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Cache.GetStats())
	}
}

// handleInvalidateForge evicts one forge's entries for every user, for use
// after backfills or data migrations that touch a whole domain.
func handleInvalidateForge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forge := knowledge.Forge(chi.URLParam(r, "forge"))
		if !knowledge.Valid(forge) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown forge %q", forge)
			return
		}
		n := deps.Cache.InvalidateForge(forge)
		writeJSON(w, http.StatusOK, map[string]any{"evicted": n, "forge": string(forge)})
	}
}

// handleInvalidateUser evicts everything cached for one user, snapshot
// included. Called on logout or account deletion.
func handleInvalidateUser(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		n := deps.Cache.InvalidateUser(userID)
		writeJSON(w, http.StatusOK, map[string]any{"evicted": n, "user_id": userID})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
