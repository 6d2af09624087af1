package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/retriever"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/config"
)

type fixedSource struct{ snap *indexer.Snapshot }

func (s fixedSource) Current() (*indexer.Snapshot, error) { return s.snap, nil }

var benchQueries = [][]string{
	{"debt"},
	{"river", "levels"},
	{"housing", "market", "prices"},
	{"air", "quality", "monitoring", "stations"},
}

// BenchmarkScore measures FSDM scoring of a single document per field
// schema; positional content fields add ordered and unordered windows.
func BenchmarkScore(b *testing.B) {
	schemas := map[string]document.Schema{
		"default":    document.DefaultSchema(),
		"positional": document.PositionalContentSchema(),
	}
	for name, schema := range schemas {
		b.Run(name, func(b *testing.B) {
			stats := buildStats(b, 2000, schema)
			profile := allProfile(b)
			qc := ranker.NewQueryContext(stats, profile, benchQueries[2])
			scorer := ranker.NewScorer(ranker.DefaultParams(), 1)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = scorer.Score(qc, uint32(i%stats.NumDocs()))
			}
		})
	}
}

// BenchmarkRank measures parallel reranking of candidate sets of growing
// size.
func BenchmarkRank(b *testing.B) {
	stats := buildStats(b, 10000, document.DefaultSchema())
	profile := allProfile(b)
	scorer := ranker.NewScorer(ranker.DefaultParams(), 0)
	for _, n := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("candidates_%d", n), func(b *testing.B) {
			candidates, err := retriever.New(stats).Retrieve(context.Background(), benchQueries[1], profile.ActiveFields(), n)
			if err != nil {
				b.Fatal(err)
			}
			ids := retriever.IDs(candidates)
			qc := ranker.NewQueryContext(stats, profile, benchQueries[1])
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := scorer.Rank(context.Background(), qc, ids, 100); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkSearch measures end-to-end query execution: retrieval, query
// context construction, scoring and top-k selection.
func BenchmarkSearch(b *testing.B) {
	stats := buildStats(b, 10000, document.DefaultSchema())
	exec := newExecutor(b, stats)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		terms := benchQueries[i%len(benchQueries)]
		q := parser.Query{ID: "q", Terms: terms}
		if _, err := exec.Search(context.Background(), q, executor.Options{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearchParallel(b *testing.B) {
	stats := buildStats(b, 10000, document.DefaultSchema())
	exec := newExecutor(b, stats)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			q := parser.Query{ID: "q", Terms: benchQueries[i%len(benchQueries)]}
			if _, err := exec.Search(context.Background(), q, executor.Options{}); err != nil {
				b.Error(err)
				return
			}
			i++
		}
	})
}

func allProfile(b *testing.B) *ranker.Profile {
	b.Helper()
	profiles, err := ranker.NewRegistry(nil)
	if err != nil {
		b.Fatal(err)
	}
	profile, err := profiles.Get(ranker.ProfileAll)
	if err != nil {
		b.Fatal(err)
	}
	return profile
}

func newExecutor(b *testing.B, stats *index.Statistics) *executor.Executor {
	b.Helper()
	profiles, err := ranker.NewRegistry(nil)
	if err != nil {
		b.Fatal(err)
	}
	snap := &indexer.Snapshot{Stats: stats, Info: segment.Info{ID: "bench", Docs: stats.NumDocs()}}
	return executor.New(fixedSource{snap: snap}, profiles, config.SearchConfig{
		Profile:        ranker.ProfileAll,
		NHits:          100,
		CandidateLimit: 1000,
		MaxResults:     1000,
		Workers:        1,
	}, nil)
}
