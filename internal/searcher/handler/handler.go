package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/tracing"
)

// SearchExecutor runs a parsed query. *executor.Executor satisfies it.
type SearchExecutor interface {
	Search(ctx context.Context, q parser.Query, opts executor.Options) (*executor.SearchResult, error)
	Resolve(opts executor.Options) executor.Options
	SnapshotID() string
}

type Handler struct {
	executor SearchExecutor
	parser   *parser.Parser
	profiles *ranker.Registry
	cache    *cache.QueryCache
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New returns a Handler. queryCache and m may be nil.
func New(exec SearchExecutor, p *parser.Parser, profiles *ranker.Registry, queryCache *cache.QueryCache, m *metrics.Metrics) *Handler {
	return &Handler{
		executor: exec,
		parser:   p,
		profiles: profiles,
		cache:    queryCache,
		metrics:  m,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/profiles", h.Profiles)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	ctx, span := tracing.Start(ctx, "http.search")
	defer span.End(log)

	text := r.URL.Query().Get("q")
	if text == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	opts := executor.Options{Profile: r.URL.Query().Get("profile")}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.NHits = parsed
	}
	opts = h.executor.Resolve(opts)
	if _, err := h.profiles.Get(opts.Profile); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown profile %q", opts.Profile))
		return
	}

	q := h.parser.Parse(r.URL.Query().Get("id"), text)
	search := func() (*executor.SearchResult, error) {
		return h.executor.Search(ctx, q, opts)
	}

	var (
		result      *executor.SearchResult
		err         error
		cacheHit    bool
		cacheStatus = "disabled"
	)
	if h.cache != nil && len(q.Terms) > 0 {
		key := cache.Key(h.executor.SnapshotID(), opts.Profile, opts.NHits, q.Terms)
		result, cacheHit, err = h.cache.GetOrCompute(ctx, key, search)
		if result != nil {
			// Cached and shared results carry the first caller's query.
			own := *result
			own.QueryID, own.Query = q.ID, q.Text
			result = &own
		}
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result, err = search()
	}
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("search execution failed", "query", text, "status", status, "error", err)
		h.writeError(w, status, publicMessage(err))
		return
	}

	elapsed := time.Since(start)
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	}
	log.Info("search completed",
		"query", text,
		"profile", opts.Profile,
		"candidates", result.Candidates,
		"returned", len(result.Results),
		"cache", cacheStatus,
		"latency_ms", elapsed.Milliseconds(),
	)
	span.SetAttr("cache", cacheStatus)
	w.Header().Set("X-Cache", cacheStatus)
	h.writeJSON(w, http.StatusOK, result)
}

type profileView struct {
	Name    string             `json:"name"`
	Weights map[string]float64 `json:"weights"`
}

func (h *Handler) Profiles(w http.ResponseWriter, r *http.Request) {
	names := h.profiles.Names()
	out := make([]profileView, 0, len(names))
	for _, name := range names {
		p, err := h.profiles.Get(name)
		if err != nil {
			continue
		}
		out = append(out, profileView{Name: p.Name(), Weights: p.Weights()})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"default":  h.executor.Resolve(executor.Options{}).Profile,
		"profiles": out,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.InvalidateAll(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func publicMessage(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrIndexNotReady):
		return "index not ready"
	case errors.Is(err, apperrors.ErrTimeout):
		return "search timed out"
	case errors.Is(err, apperrors.ErrUnknownProfile):
		return "unknown profile"
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.StatusCode < http.StatusInternalServerError {
		return appErr.Message
	}
	return "search failed"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
