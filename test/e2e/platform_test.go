//go:build e2e

// Package e2e exercises running services over HTTP: the ingestion service
// publishing to Kafka and the searcher serving a loaded snapshot.
//
// Prerequisites:
//   - cmd/searcher running with a snapshot built from the sample corpus
//   - optionally cmd/ingestion with Kafka, and Redis for the cache checks
//
// Run with:
//
//	go test -v -tags=e2e -timeout=120s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type e2eConfig struct {
	IngestionURL string
	SearcherURL  string
}

func loadE2EConfig() e2eConfig {
	return e2eConfig{
		IngestionURL: envOrDefault("E2E_INGESTION_URL", "http://localhost:8081"),
		SearcherURL:  envOrDefault("E2E_SEARCHER_URL", "http://localhost:8080"),
	}
}

type hit struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

type searchResponse struct {
	Terms      []string `json:"terms"`
	Profile    string   `json:"profile"`
	SnapshotID string   `json:"snapshot_id"`
	Results    []hit    `json:"results"`
}

func search(t *testing.T, client *http.Client, base string, params url.Values) (*http.Response, searchResponse) {
	t.Helper()
	resp, err := client.Get(base + "/api/v1/search?" + params.Encode())
	if err != nil {
		t.Skipf("search service unavailable: %v", err)
	}
	defer resp.Body.Close()
	var out searchResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestSearcherHealth(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	for _, path := range []string{"/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			resp, err := client.Get(cfg.SearcherURL + path)
			if err != nil {
				t.Skipf("service unavailable: %v", err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		})
	}
}

func TestSearchRanking(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 10 * time.Second}

	resp, res := search(t, client, cfg.SearcherURL, url.Values{"q": {"debt fund"}, "limit": {"5"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"debt", "fund"}, res.Terms)
	assert.NotEmpty(t, res.SnapshotID)
	assert.LessOrEqual(t, len(res.Results), 5)
	for i := 1; i < len(res.Results); i++ {
		prev, cur := res.Results[i-1], res.Results[i]
		assert.True(t, prev.Score > cur.Score || (prev.Score == cur.Score && prev.DocID < cur.DocID),
			"results out of order at %d", i)
	}

	_, again := search(t, client, cfg.SearcherURL, url.Values{"q": {"debt fund"}, "limit": {"5"}})
	assert.Equal(t, res.Results, again.Results)
}

func TestSearchProfiles(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(cfg.SearcherURL + "/api/v1/profiles")
	if err != nil {
		t.Skipf("search service unavailable: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Default  string `json:"default"`
		Profiles []struct {
			Name string `json:"name"`
		} `json:"profiles"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Profiles)

	for _, p := range body.Profiles {
		t.Run(p.Name, func(t *testing.T) {
			resp, res := search(t, client, cfg.SearcherURL, url.Values{"q": {"river levels"}, "profile": {p.Name}})
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, p.Name, res.Profile)
		})
	}

	resp, _ = search(t, client, cfg.SearcherURL, url.Values{"q": {"river"}, "profile": {"no-such-profile"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchCacheHeader(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	q := url.Values{"q": {fmt.Sprintf("housing market %d", time.Now().UnixNano())}}
	first, _ := search(t, client, cfg.SearcherURL, q)
	if first.Header.Get("X-Cache") == "disabled" {
		t.Skip("search cache is disabled")
	}
	second, _ := search(t, client, cfg.SearcherURL, q)
	assert.Equal(t, "miss", first.Header.Get("X-Cache"))
	assert.Equal(t, "hit", second.Header.Get("X-Cache"))
}

func TestIngestDatasets(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 10 * time.Second}

	id := fmt.Sprintf("e2e-%d", time.Now().UnixNano())
	payload := fmt.Sprintf(`[{"dataset_id":%q,"title":"e2e river levels"},{"title":"missing id"}]`, id)
	resp, err := client.Post(cfg.IngestionURL+"/api/v1/datasets", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Skipf("ingestion service unavailable: %v", err)
	}
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var report struct {
		Published int `json:"published"`
		Rejected  []struct {
			Fields map[string]string `json:"fields"`
		} `json:"rejected"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 1, report.Published)
	require.Len(t, report.Rejected, 1)
	assert.Contains(t, report.Rejected[0].Fields, "dataset_id")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
