package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
)

type source struct {
	snap *indexer.Snapshot
	err  error
}

func (s source) Current() (*indexer.Snapshot, error) { return s.snap, s.err }

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memoryStore) GetBytes(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value.([]byte)
	return nil
}

func (s *memoryStore) FlushByPattern(_ context.Context, _ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.data))
	s.data = make(map[string][]byte)
	return n, nil
}

func newHandler(t *testing.T, src source, withCache bool) *Handler {
	t.Helper()
	reg, err := ranker.NewRegistry(config.ProfileSet{"titles": {"title": 1}})
	require.NoError(t, err)
	exec := executor.New(src, reg, config.SearchConfig{
		Profile:        ranker.ProfileAll,
		NHits:          10,
		CandidateLimit: 10,
		MaxResults:     100,
		Workers:        2,
	}, nil)
	var qc *cache.QueryCache
	if withCache {
		qc = cache.New(&memoryStore{data: make(map[string][]byte)}, time.Minute, nil)
	}
	return New(exec, parser.New(tokenizer.Default()), reg, qc, nil)
}

func snapshot(t *testing.T) *indexer.Snapshot {
	t.Helper()
	docs := []document.Document{
		{ID: "A", Tokens: document.FieldTokens{
			document.Title:       {"debt", "rescheduling"},
			document.Description: {"debt", "fund"},
		}},
		{ID: "B", Tokens: document.FieldTokens{
			document.Title:       {"fund", "management"},
			document.Description: {"housing", "market"},
		}},
	}
	stats, _, err := index.Build(context.Background(), docs, index.BuildOptions{Schema: document.DefaultSchema()})
	require.NoError(t, err)
	return &indexer.Snapshot{Stats: stats, Info: segment.Info{ID: "snap-1"}}
}

func serve(h *Handler, method, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestSearch(t *testing.T) {
	h := newHandler(t, source{snap: snapshot(t)}, false)
	rec := serve(h, http.MethodGet, "/api/v1/search?q=Debt+Fund&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "disabled", rec.Header().Get("X-Cache"))

	var res executor.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []string{"debt", "fund"}, res.Terms)
	assert.Equal(t, ranker.ProfileAll, res.Profile)
	assert.Equal(t, "snap-1", res.SnapshotID)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "A", res.Results[0].DocID)
	assert.Equal(t, res.Results[0].Score, res.Results[0].Parts.Total)
}

func TestSearchErrors(t *testing.T) {
	ready := newHandler(t, source{snap: snapshot(t)}, false)
	notReady := newHandler(t, source{err: apperrors.ErrIndexNotReady}, false)

	tests := []struct {
		name   string
		h      *Handler
		target string
		status int
		msg    string
	}{
		{"missing q", ready, "/api/v1/search", http.StatusBadRequest, "required"},
		{"bad limit", ready, "/api/v1/search?q=debt&limit=zero", http.StatusBadRequest, "limit"},
		{"negative limit", ready, "/api/v1/search?q=debt&limit=-2", http.StatusBadRequest, "limit"},
		{"unknown profile", ready, "/api/v1/search?q=debt&profile=nope", http.StatusBadRequest, "unknown profile"},
		{"index not ready", notReady, "/api/v1/search?q=debt", http.StatusServiceUnavailable, "index not ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.h, http.MethodGet, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.msg)
		})
	}
}

func TestSearchUsesCache(t *testing.T) {
	h := newHandler(t, source{snap: snapshot(t)}, true)
	for i, want := range []string{"miss", "hit", "hit"} {
		rec := serve(h, http.MethodGet, "/api/v1/search?q=debt&profile=titles")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, want, rec.Header().Get("X-Cache"), "request %d", i)
	}
	hits, misses := h.cache.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)

	rec := serve(h, http.MethodGet, "/api/v1/cache/stats")
	assert.Contains(t, rec.Body.String(), `"hit_rate":"66.7%"`)

	rec = serve(h, http.MethodPost, "/api/v1/cache/invalidate")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"keys_deleted":1`)
}

func TestCachedResultCarriesRequestQuery(t *testing.T) {
	h := newHandler(t, source{snap: snapshot(t)}, true)
	tests := []struct {
		target  string
		cache   string
		query   string
		queryID string
	}{
		{"/api/v1/search?q=debt&profile=titles&id=q1", "miss", "debt", "q1"},
		{"/api/v1/search?q=DEBT%21&profile=titles&id=q2", "hit", "DEBT!", "q2"},
		{"/api/v1/search?q=the+debt&profile=titles", "hit", "the debt", ""},
	}
	for _, tt := range tests {
		rec := serve(h, http.MethodGet, tt.target)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, tt.cache, rec.Header().Get("X-Cache"), tt.target)

		var body executor.SearchResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, tt.query, body.Query, tt.target)
		assert.Equal(t, tt.queryID, body.QueryID, tt.target)
		assert.Equal(t, []string{"debt"}, body.Terms, tt.target)
	}
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	h := newHandler(t, source{snap: snapshot(t)}, false)
	assert.Contains(t, serve(h, http.MethodGet, "/api/v1/cache/stats").Body.String(), "disabled")
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, http.MethodPost, "/api/v1/cache/invalidate").Code)
}

func TestProfiles(t *testing.T) {
	h := newHandler(t, source{snap: snapshot(t)}, false)
	rec := serve(h, http.MethodGet, "/api/v1/profiles")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Default  string        `json:"default"`
		Profiles []profileView `json:"profiles"`
	}
	require.NoError(t, json.NewDecoder(strings.NewReader(rec.Body.String())).Decode(&body))
	assert.Equal(t, ranker.ProfileAll, body.Default)
	require.Len(t, body.Profiles, 7)
	assert.Equal(t, "titles", body.Profiles[6].Name)
	assert.Equal(t, map[string]float64{"title": 1}, body.Profiles[6].Weights)
}
