// Package ranker implements the Fielded Sequential Dependence Model: a
// Dirichlet-smoothed mixture of unigram, ordered bigram and unordered
// bigram evidence across weighted document fields.
package ranker

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/merger"
	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
)

// Params are the model constants.
type Params struct {
	LambdaT float64
	LambdaO float64
	LambdaU float64
	Epsilon float64
	Window  int
}

// DefaultParams returns λT=0.8, λO=0.1, λU=0.1, ε=1e-100 and an unordered
// window of 8 tokens.
func DefaultParams() Params {
	return Params{
		LambdaT: 0.8,
		LambdaO: 0.1,
		LambdaU: 0.1,
		Epsilon: 1e-100,
		Window:  8,
	}
}

// Score is the FSDM score of one document with its components.
type Score struct {
	Unigram   float64 `json:"unigram"`
	Ordered   float64 `json:"ordered"`
	Unordered float64 `json:"unordered"`
	Total     float64 `json:"total"`
}

// ScoredDoc is a ranked document.
type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
	Parts Score   `json:"components"`
}

// Better orders by score descending, then document id ascending.
func Better(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// Scorer computes FSDM scores. It holds no per-query state and is safe for
// concurrent use.
type Scorer struct {
	params  Params
	workers int
}

// NewScorer returns a Scorer. workers bounds parallel candidate scoring in
// Rank; zero means GOMAXPROCS.
func NewScorer(params Params, workers int) *Scorer {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Scorer{params: params, workers: workers}
}

// Score computes the FSDM score of document ord. A field the document lacks
// contributes zero term frequency over zero length.
func (s *Scorer) Score(qc *QueryContext, ord uint32) Score {
	vectors := make([]index.TermVector, len(qc.fields))
	for i, fc := range qc.fields {
		vectors[i] = qc.stats.TermVector(ord, fc.field)
	}

	var sc Score
	for i, term := range qc.terms {
		var tmp float64
		for j, fc := range qc.fields {
			tv := vectors[j]
			tmp += fc.weight * dirichlet(float64(tv.Frequency(term)), fc.unigramCF[i], fc, tv.Length)
		}
		sc.Unigram += math.Log(tmp + s.params.Epsilon)
	}
	for i := 0; i+1 < len(qc.terms); i++ {
		a, b := qc.terms[i], qc.terms[i+1]
		var tmpO, tmpU float64
		for j, fc := range qc.fields {
			tv := vectors[j]
			cf := fc.bigramCF[i]
			tmpO += fc.weight * dirichlet(float64(OrderedCount(tv.Tokens, a, b)), cf, fc, tv.Length)
			tmpU += fc.weight * dirichlet(float64(UnorderedCount(tv.Tokens, a, b, s.params.Window)), cf, fc, tv.Length)
		}
		sc.Ordered += math.Log(tmpO + s.params.Epsilon)
		sc.Unordered += math.Log(tmpU + s.params.Epsilon)
	}
	sc.Total = s.params.LambdaT*sc.Unigram + s.params.LambdaO*sc.Ordered + s.params.LambdaU*sc.Unordered
	return sc
}

// dirichlet is (tf + µ·cf/Cj) / (Dj + µ).
func dirichlet(tf, cf float64, fc fieldContext, length int) float64 {
	return (tf + fc.mu*cf/fc.cj) / (float64(length) + fc.mu)
}

// OrderedCount counts positions where a is immediately followed by b.
func OrderedCount(tokens []string, a, b string) int {
	n := 0
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i] == a && tokens[i+1] == b {
			n++
		}
	}
	return n
}

// UnorderedCount counts the full windows of width tokens that contain both
// a and b in any order. A sequence shorter than the window has none.
func UnorderedCount(tokens []string, a, b string, width int) int {
	if width <= 0 {
		return 0
	}
	n := 0
	for i := 0; i+width <= len(tokens); i++ {
		var hasA, hasB bool
		for _, t := range tokens[i : i+width] {
			if t == a {
				hasA = true
			}
			if t == b {
				hasB = true
			}
		}
		if hasA && hasB {
			n++
		}
	}
	return n
}

// ScoreAll scores every candidate in parallel and returns results in input
// order. A repeated id is scored once, at its first position. An id the
// store does not know is ErrDocumentNotFound.
func (s *Scorer) ScoreAll(ctx context.Context, qc *QueryContext, ids []string) ([]ScoredDoc, error) {
	ords := make([]uint32, 0, len(ids))
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ord, ok := qc.stats.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", apperrors.ErrDocumentNotFound, id)
		}
		ords = append(ords, ord)
		unique = append(unique, id)
	}

	out := make([]ScoredDoc, len(ords))
	chunk := (len(ords) + s.workers - 1) / s.workers
	if chunk < 16 {
		chunk = 16
	}
	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(ords); start += chunk {
		end := min(start+chunk, len(ords))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				sc := s.Score(qc, ords[i])
				out[i] = ScoredDoc{DocID: unique[i], Score: sc.Total, Parts: sc}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Rank scores the candidates and returns the best nHits, ordered by score
// descending then document id ascending. nHits <= 0 returns all of them.
func (s *Scorer) Rank(ctx context.Context, qc *QueryContext, ids []string, nHits int) ([]ScoredDoc, error) {
	scored, err := s.ScoreAll(ctx, qc, ids)
	if err != nil {
		return nil, err
	}
	return merger.TopK(scored, nHits, Better), nil
}
