package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/parser"
)

var defaultQueries = []string{
	"global debt rescheduling",
	"housing market prices",
	"river water levels",
	"air quality monitoring stations",
	"census population by region",
	"public transport timetable",
	"election results",
	"hospital bed capacity",
	"crop yield statistics",
	"school enrolment",
}

type target struct {
	baseURL  string
	profiles []string
	limit    int
	queries  []string
}

type stats struct {
	total     atomic.Int64
	ok        atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func newStats() *stats {
	return &stats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

func (s *stats) record(d time.Duration, code int, cache string, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if code >= 200 && code < 300 {
		s.ok.Add(1)
	} else {
		s.failed.Add(1)
	}
	if cache == "hit" {
		s.cacheHits.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[code]++
	s.mu.Unlock()
}

func main() {
	baseURL := pflag.StringP("url", "u", "http://localhost:8080", "base URL of the search service")
	queriesPath := pflag.StringP("queries", "q", "", "queries file (id<TAB>text per line); built-in queries when empty")
	profiles := pflag.StringSliceP("profile", "p", nil, "profiles to rotate through (service default when empty)")
	limit := pflag.IntP("limit", "n", 10, "hits per query")
	concurrency := pflag.IntP("concurrency", "C", 10, "concurrent workers")
	duration := pflag.DurationP("duration", "d", 30*time.Second, "test duration")
	pflag.Parse()

	queries := defaultQueries
	if *queriesPath != "" {
		loaded, err := loadQueries(*queriesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading queries: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}
	if len(queries) == 0 {
		fmt.Fprintln(os.Stderr, "no queries with indexable terms")
		os.Exit(1)
	}
	if len(*profiles) == 0 {
		*profiles = []string{""}
	}

	t := target{baseURL: *baseURL, profiles: *profiles, limit: *limit, queries: queries}

	fmt.Println("=== Dataset Search Load Test ===")
	fmt.Printf("Target:      %s\n", t.baseURL)
	fmt.Printf("Profiles:    %v\n", t.profiles)
	fmt.Printf("Concurrency: %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Printf("Queries:     %d unique\n", len(t.queries))
	fmt.Println()

	s := run(t, *concurrency, *duration)
	report(s, *duration)
}

// loadQueries reads a queries file and drops queries that analyse to no
// terms; the service answers those without ranking anything.
func loadQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	parsed, err := parser.New(tokenizer.Default()).ReadQueries(f)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(parsed))
	for _, q := range parsed {
		if len(q.Terms) > 0 {
			texts = append(texts, q.Text)
		}
	}
	return texts, nil
}

func (t target) url(i int) string {
	v := url.Values{}
	v.Set("q", t.queries[i%len(t.queries)])
	v.Set("limit", strconv.Itoa(t.limit))
	if p := t.profiles[i%len(t.profiles)]; p != "" {
		v.Set("profile", p)
	}
	return t.baseURL + "/api/v1/search?" + v.Encode()
}

func run(t target, concurrency int, duration time.Duration) *stats {
	s := newStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	fmt.Print("Running")
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	var g errgroup.Group
	for w := 0; w < concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i += concurrency {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url(i), nil)
				if err != nil {
					return err
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						s.record(elapsed, 0, "", err)
					}
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				s.record(elapsed, resp.StatusCode, resp.Header.Get("X-Cache"), nil)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "\nload test aborted: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(" done!")
	fmt.Println()
	return s
}

func report(s *stats, duration time.Duration) {
	total := s.total.Load()
	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", s.ok.Load())
	fmt.Printf("Errors:          %d\n", s.failed.Load())
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(s.failed.Load())/float64(total)*100)
		fmt.Printf("Cache Hit Rate:  %.2f%%\n", float64(s.cacheHits.Load())/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	s.mu.Lock()
	latencies := slices.Clone(s.latencies)
	codes := make([]int, 0, len(s.codes))
	for code := range s.codes {
		codes = append(codes, code)
	}
	s.mu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))
		var sq float64
		for _, l := range latencies {
			diff := float64(l - avg)
			sq += diff * diff
		}

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
		fmt.Printf("StdDev: %s\n", time.Duration(math.Sqrt(sq/float64(len(latencies)))))
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, s.codes[code])
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the searcher running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
