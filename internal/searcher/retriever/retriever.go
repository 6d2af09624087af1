// Package retriever selects the candidate documents of a query: every
// document in which any query term occurs in any searched field, seeded with
// a BM25 score and bounded by a limit.
package retriever

import (
	"context"
	"math"

	"github.com/RoaringBitmap/roaring"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/merger"
	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
)

const (
	k1 = 1.2
	b  = 0.75
)

// Candidate is a retrieved document with its seed score. The seed only
// orders and bounds the candidate set; it is not the final ranking.
type Candidate struct {
	Ord  uint32
	ID   string
	Seed float64
}

// Retriever runs disjunctive queries over one statistics snapshot.
type Retriever struct {
	stats *index.Statistics
	// boosts scales each field's BM25 contribution. A field without a
	// boost counts with 1.
	boosts map[document.Field]float64
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithBoosts scales the seed contribution of each field.
func WithBoosts(boosts map[document.Field]float64) Option {
	return func(r *Retriever) {
		r.boosts = boosts
	}
}

// New returns a Retriever over stats.
func New(stats *index.Statistics, opts ...Option) *Retriever {
	r := &Retriever{stats: stats}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns at most limit candidates matching any of terms in any of
// fields, ordered by seed score descending then id ascending. Repeated terms
// count once. A non-positive limit is invalid input; no terms is an empty
// result.
func (r *Retriever) Retrieve(ctx context.Context, terms []string, fields []document.Field, limit int) ([]Candidate, error) {
	if limit <= 0 {
		return nil, apperrors.Invalidf("candidate limit must be positive, got %d", limit)
	}
	distinct := dedupe(terms)
	if len(distinct) == 0 || len(fields) == 0 {
		return []Candidate{}, nil
	}

	seeds := make(map[uint32]float64)
	bitmaps := make([]*roaring.Bitmap, 0, len(fields)*len(distinct))
	n := float64(r.stats.NumDocs())
	for _, f := range fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		avg, ok := r.stats.AverageFieldLength(f)
		if !ok {
			continue
		}
		boost := r.boost(f)
		for _, term := range distinct {
			postings := r.stats.Postings(f, term)
			if postings == nil || postings.IsEmpty() {
				continue
			}
			bitmaps = append(bitmaps, postings)
			idf := computeIDF(n, float64(postings.GetCardinality()))
			it := postings.Iterator()
			for it.HasNext() {
				ord := it.Next()
				tf := float64(r.stats.FieldTermFrequency(ord, f, term))
				dl := float64(r.stats.FieldLength(ord, f))
				seeds[ord] += boost * idf * computeTFNorm(tf, dl, avg)
			}
		}
	}
	if len(bitmaps) == 0 {
		return []Candidate{}, nil
	}

	union := roaring.FastOr(bitmaps...)
	out := make([]Candidate, 0, union.GetCardinality())
	it := union.Iterator()
	for it.HasNext() {
		ord := it.Next()
		out = append(out, Candidate{Ord: ord, ID: r.stats.DocID(ord), Seed: seeds[ord]})
	}
	return merger.TopK(out, limit, better), nil
}

// IDs returns the ids of candidates in order.
func IDs(candidates []Candidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return ids
}

func (r *Retriever) boost(f document.Field) float64 {
	if w, ok := r.boosts[f]; ok {
		return w
	}
	return 1
}

func better(x, y Candidate) bool {
	if x.Seed != y.Seed {
		return x.Seed > y.Seed
	}
	return x.ID < y.ID
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func computeIDF(totalDocs, docFreq float64) float64 {
	return math.Log((totalDocs-docFreq)/(docFreq+0.5) + 1)
}

func computeTFNorm(termFreq, docLength, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	return termFreq * (k1 + 1) / (termFreq + k1*(1-b+b*lengthRatio))
}
