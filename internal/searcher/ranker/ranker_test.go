package ranker

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
)

func buildStats(t *testing.T, schema document.Schema, docs ...document.Document) *index.Statistics {
	t.Helper()
	stats, _, err := index.Build(context.Background(), docs, index.BuildOptions{Schema: schema, Workers: 2})
	require.NoError(t, err)
	return stats
}

func mustProfile(t *testing.T, weights map[document.Field]float64) *Profile {
	t.Helper()
	p, err := NewProfile("test", weights)
	require.NoError(t, err)
	return p
}

func twoDocs(bEntities []string) []document.Document {
	return []document.Document{
		{ID: "A", Tokens: document.FieldTokens{
			document.Title:    {"debt", "rescheduling"},
			document.Entities: {"debt", "fund"},
		}},
		{ID: "B", Tokens: document.FieldTokens{
			document.Title:    {"fund", "management"},
			document.Entities: bEntities,
		}},
	}
}

func TestOrderedCount(t *testing.T) {
	seq := []string{"a", "b", "c", "b", "a"}
	tests := []struct {
		a, b string
		want int
	}{
		{"a", "b", 1},
		{"b", "c", 1},
		{"c", "b", 1},
		{"b", "a", 1},
		{"a", "c", 0},
		{"x", "a", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, OrderedCount(seq, tt.a, tt.b))
		})
	}
	assert.Equal(t, 2, OrderedCount([]string{"a", "b", "x", "a", "b"}, "a", "b"))
	assert.Equal(t, 0, OrderedCount(nil, "a", "b"))
}

func TestUnorderedCountWindow(t *testing.T) {
	seq := func(n int, at map[int]string) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = "z"
		}
		for i, s := range at {
			out[i] = s
		}
		return out
	}

	tests := []struct {
		name   string
		tokens []string
		want   int
	}{
		{"both inside the only window", seq(8, map[int]string{0: "x", 7: "y"}), 1},
		{"second term one past the window", seq(9, map[int]string{0: "x", 8: "y"}), 0},
		{"shorter than the window", seq(7, map[int]string{0: "x", 6: "y"}), 0},
		{"order irrelevant", seq(8, map[int]string{0: "y", 3: "x"}), 1},
		{"every sliding window counted", seq(10, map[int]string{2: "x", 3: "y"}), 3},
		{"missing term", seq(8, map[int]string{0: "x"}), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UnorderedCount(tt.tokens, "x", "y", 8))
		})
	}
	assert.Equal(t, 0, UnorderedCount([]string{"x", "y"}, "x", "y", 0))
}

func TestNormalizedWeightsSumToOne(t *testing.T) {
	reg, err := NewRegistry(nil)
	require.NoError(t, err)
	for _, name := range reg.Names() {
		p, err := reg.Get(name)
		require.NoError(t, err)
		var sum float64
		for _, f := range p.ActiveFields() {
			sum += p.NormalizedWeight(f)
		}
		assert.InDelta(t, 1.0, sum, 1e-12, name)
	}
}

func TestZeroWeightFieldContributesNothing(t *testing.T) {
	stats := buildStats(t, document.DefaultSchema(), twoDocs([]string{"debt", "debt", "fund"})...)
	withZero := mustProfile(t, map[document.Field]float64{document.Title: 2, document.Entities: 0})
	without := mustProfile(t, map[document.Field]float64{document.Title: 2})

	terms := []string{"debt", "fund"}
	s := NewScorer(DefaultParams(), 1)
	for _, id := range []string{"A", "B"} {
		ord, ok := stats.Lookup(id)
		require.True(t, ok)
		a := s.Score(NewQueryContext(stats, withZero, terms), ord)
		b := s.Score(NewQueryContext(stats, without, terms), ord)
		assert.Equal(t, b, a, id)
	}
	assert.Equal(t, 0.0, withZero.NormalizedWeight(document.Entities))
	assert.Equal(t, 1.0, withZero.NormalizedWeight(document.Title))
}

func TestNoOverlapFloor(t *testing.T) {
	stats := buildStats(t, document.DefaultSchema(), twoDocs(nil)...)
	terms := []string{"zebra", "quantum", "harbour"}
	qc := NewQueryContext(stats, mustProfile(t, map[document.Field]float64{document.Title: 1, document.Entities: 1}), terms)
	s := NewScorer(DefaultParams(), 1)

	floor := float64(len(terms)) * math.Log(1e-100)
	for _, id := range []string{"A", "B"} {
		ord, _ := stats.Lookup(id)
		sc := s.Score(qc, ord)
		assert.InDelta(t, floor, sc.Unigram, 1e-9)
		assert.InDelta(t, 2*math.Log(1e-100), sc.Ordered, 1e-9)
	}
}

func TestAbsentTermScoresAreFinite(t *testing.T) {
	stats := buildStats(t, document.DefaultSchema(), twoDocs(nil)...)
	reg, err := NewRegistry(nil)
	require.NoError(t, err)
	s := NewScorer(DefaultParams(), 2)

	for _, name := range reg.Names() {
		p, _ := reg.Get(name)
		qc := NewQueryContext(stats, p, []string{"debt", "nonexistentterm", "fund"})
		scored, err := s.ScoreAll(context.Background(), qc, []string{"A", "B"})
		require.NoError(t, err)
		for _, d := range scored {
			assert.False(t, math.IsNaN(d.Score) || math.IsInf(d.Score, 0), "%s/%s: %v", name, d.DocID, d.Score)
		}
	}
}

func TestUnusedFieldIsSkipped(t *testing.T) {
	stats := buildStats(t, document.DefaultSchema(), twoDocs(nil)...)
	p := mustProfile(t, map[document.Field]float64{document.Title: 1, document.Literals: 1})
	qc := NewQueryContext(stats, p, []string{"debt"})

	assert.Equal(t, []document.Field{document.Title}, qc.Fields())
	ord, _ := stats.Lookup("A")
	sc := NewScorer(DefaultParams(), 1).Score(qc, ord)
	// title: (1 + 2*1/4) / (2 + 2) at half the normalized weight.
	assert.InDelta(t, math.Log(0.5*0.375+1e-100), sc.Unigram, 1e-12)
}

func TestTwoDocumentScenario(t *testing.T) {
	p := mustProfile(t, map[document.Field]float64{document.Title: 1, document.Entities: 1})
	terms := []string{"debt", "fund"}
	s := NewScorer(DefaultParams(), 2)

	// With B's entities empty, Dirichlet smoothing gives B's entities field
	// the bare collection prior cf/Cj. That ties the unigram evidence and
	// lifts B's bigram components (0.5 against A's 0.25), so B outscores A.
	// Once B has entities of its own, A ranks first.
	t.Run("entities only in A", func(t *testing.T) {
		stats := buildStats(t, document.DefaultSchema(), twoDocs(nil)...)
		qc := NewQueryContext(stats, p, terms)
		a, _ := stats.Lookup("A")
		b, _ := stats.Lookup("B")
		sa, sb := s.Score(qc, a), s.Score(qc, b)

		// Title evidence is symmetric and B's empty entities field takes the
		// whole collection prior, so the unigram evidence ties.
		assert.InDelta(t, math.Log(0.5*0.375+0.5*0.5)+math.Log(0.5*0.125+0.5*0.5), sa.Unigram, 1e-12)
		assert.Equal(t, sa.Unigram, sb.Unigram)
		assert.InDelta(t, math.Log(0.5*0.125+0.5*0.25), sa.Ordered, 1e-12)
		assert.InDelta(t, math.Log(0.5*0.125+0.5*0.5), sb.Ordered, 1e-12)
		assert.Greater(t, sb.Unordered, sa.Unordered)
		assert.Greater(t, sb.Total, sa.Total)
	})

	for _, schema := range []struct {
		name   string
		schema document.Schema
	}{
		{"frequency-only content", document.DefaultSchema()},
		{"positional content", document.PositionalContentSchema()},
	} {
		t.Run("unrelated entities in B/"+schema.name, func(t *testing.T) {
			stats := buildStats(t, schema.schema, twoDocs([]string{"housing", "market"})...)
			ranked, err := s.Rank(context.Background(), NewQueryContext(stats, p, terms), []string{"B", "A"}, 10)
			require.NoError(t, err)
			require.Len(t, ranked, 2)
			assert.Equal(t, "A", ranked[0].DocID)
			assert.Greater(t, ranked[0].Score, ranked[1].Score)
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	stats := buildStats(t, document.PositionalContentSchema(), twoDocs([]string{"fund", "debt", "fund"})...)
	reg, err := NewRegistry(nil)
	require.NoError(t, err)
	p, _ := reg.Get(ProfileTFIDF)
	terms := []string{"fund", "debt", "fund"}

	first, err := NewScorer(DefaultParams(), 1).Rank(context.Background(), NewQueryContext(stats, p, terms), []string{"A", "B"}, 0)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := NewScorer(DefaultParams(), 4).Rank(context.Background(), NewQueryContext(stats, p, terms), []string{"B", "A"}, 0)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRankTieBreakAndLimit(t *testing.T) {
	docs := []document.Document{
		{ID: "c", Tokens: document.FieldTokens{document.Title: {"river"}}},
		{ID: "a", Tokens: document.FieldTokens{document.Title: {"river"}}},
		{ID: "b", Tokens: document.FieldTokens{document.Title: {"river"}}},
		{ID: "d", Tokens: document.FieldTokens{document.Title: {"lake"}}},
	}
	stats := buildStats(t, document.DefaultSchema(), docs...)
	qc := NewQueryContext(stats, mustProfile(t, map[document.Field]float64{document.Title: 1}), []string{"river"})
	s := NewScorer(DefaultParams(), 3)

	ranked, err := s.Rank(context.Background(), qc, []string{"d", "c", "b", "a", "c"}, 3)
	require.NoError(t, err)
	ids := make([]string, len(ranked))
	for i, d := range ranked {
		ids[i] = d.DocID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	all, err := s.Rank(context.Background(), qc, []string{"d", "c", "b", "a"}, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "d", all[3].DocID)
}

func TestRankUnknownCandidate(t *testing.T) {
	stats := buildStats(t, document.DefaultSchema(), twoDocs(nil)...)
	qc := NewQueryContext(stats, mustProfile(t, map[document.Field]float64{document.Title: 1}), []string{"debt"})
	_, err := NewScorer(DefaultParams(), 1).Rank(context.Background(), qc, []string{"A", "missing"}, 10)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
}

func TestRankHonoursCancellation(t *testing.T) {
	stats := buildStats(t, document.DefaultSchema(), twoDocs(nil)...)
	qc := NewQueryContext(stats, mustProfile(t, map[document.Field]float64{document.Title: 1}), []string{"debt"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewScorer(DefaultParams(), 1).Rank(ctx, qc, []string{"A", "B"}, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewProfileValidation(t *testing.T) {
	tests := []struct {
		name    string
		weights map[document.Field]float64
		wantErr error
	}{
		{"empty", nil, apperrors.ErrEmptyProfile},
		{"all zero", map[document.Field]float64{document.Title: 0}, apperrors.ErrEmptyProfile},
		{"negative", map[document.Field]float64{document.Title: -1}, apperrors.ErrInvalidConfig},
		{"nan", map[document.Field]float64{document.Title: math.NaN()}, apperrors.ErrInvalidConfig},
		{"unknown field", map[document.Field]float64{document.NumFields: 1}, apperrors.ErrUnknownField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProfile("p", tt.weights)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := NewProfile(" ", map[document.Field]float64{document.Title: 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile("custom", map[string]float64{"title": 3, "tags": 1})
	require.NoError(t, err)
	assert.Equal(t, []document.Field{document.Title, document.Tags}, p.ActiveFields())
	assert.InDelta(t, 0.75, p.NormalizedWeight(document.Title), 1e-12)
	assert.Equal(t, map[string]float64{"title": 3, "tags": 1}, p.Weights())

	_, err = ParseProfile("custom", map[string]float64{"summary": 1})
	assert.ErrorIs(t, err, apperrors.ErrUnknownField)
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(config.ProfileSet{
		"titles": {"title": 1},
		"bm25":   {"description": 1},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"all", "bm25", "content", "lmd", "metadata", "tfidf", "titles"}, reg.Names())

	p, err := reg.Get("bm25")
	require.NoError(t, err)
	assert.Equal(t, []document.Field{document.Description}, p.ActiveFields())

	lmd, err := reg.Get(ProfileLMD)
	require.NoError(t, err)
	assert.Equal(t, 0.9, lmd.Weight(document.Tags))

	_, err = reg.Get("nope")
	assert.ErrorIs(t, err, apperrors.ErrUnknownProfile)

	_, err = NewRegistry(config.ProfileSet{"bad": {"title": 0}})
	assert.ErrorIs(t, err, apperrors.ErrEmptyProfile)
}
