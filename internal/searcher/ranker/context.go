package ranker

import (
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/index"
)

// fieldContext holds the collection statistics of one active field for one
// query.
type fieldContext struct {
	field  document.Field
	weight float64
	mu     float64
	cj     float64
	// unigramCF[i] is the collection frequency of terms[i].
	unigramCF []float64
	// bigramCF[i] approximates the joint collection frequency of
	// (terms[i], terms[i+1]) by the smaller of the two.
	bigramCF []float64
}

// QueryContext is the per-query statistics cache shared by every candidate
// of one query. It is built once, never modified, and discarded with the
// query.
type QueryContext struct {
	stats   *index.Statistics
	profile *Profile
	terms   []string
	fields  []fieldContext
}

// NewQueryContext gathers the collection statistics of terms under profile.
// Active fields that no document uses have no Dirichlet prior and are left
// out; their share of the normalized weight is not redistributed.
func NewQueryContext(stats *index.Statistics, profile *Profile, terms []string) *QueryContext {
	qc := &QueryContext{
		stats:   stats,
		profile: profile,
		terms:   append([]string(nil), terms...),
	}
	for _, f := range profile.active {
		mu, ok := stats.AverageFieldLength(f)
		if !ok {
			continue
		}
		fc := fieldContext{
			field:     f,
			weight:    profile.NormalizedWeight(f),
			mu:        mu,
			cj:        float64(stats.CollectionFieldLength(f)),
			unigramCF: make([]float64, len(terms)),
		}
		for i, t := range terms {
			fc.unigramCF[i] = float64(stats.CollectionTermFrequency(f, t))
		}
		if len(terms) > 1 {
			fc.bigramCF = make([]float64, len(terms)-1)
			for i := 0; i+1 < len(terms); i++ {
				fc.bigramCF[i] = min(fc.unigramCF[i], fc.unigramCF[i+1])
			}
		}
		qc.fields = append(qc.fields, fc)
	}
	return qc
}

// Terms returns the query terms.
func (qc *QueryContext) Terms() []string {
	return qc.terms
}

// Profile returns the profile the context was built for.
func (qc *QueryContext) Profile() *Profile {
	return qc.profile
}

// Statistics returns the store the context reads.
func (qc *QueryContext) Statistics() *index.Statistics {
	return qc.stats
}

// Fields returns the fields that contribute to scores, in canonical order.
func (qc *QueryContext) Fields() []document.Field {
	out := make([]document.Field, len(qc.fields))
	for i, fc := range qc.fields {
		out[i] = fc.field
	}
	return out
}
