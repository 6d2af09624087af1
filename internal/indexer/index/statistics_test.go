package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
)

func corpus() []document.Document {
	return []document.Document{
		{
			ID: "A",
			Tokens: document.FieldTokens{
				document.Title:    {"debt", "rescheduling"},
				document.Entities: {"debt", "fund"},
			},
			Stored: document.FieldValues{document.Title: {"Debt rescheduling"}},
		},
		{
			ID: "B",
			Tokens: document.FieldTokens{
				document.Title: {"fund", "management"},
			},
		},
	}
}

func build(t *testing.T, docs []document.Document, opts BuildOptions) (*Statistics, *BuildReport) {
	t.Helper()
	stats, report, err := Build(context.Background(), docs, opts)
	require.NoError(t, err)
	return stats, report
}

func TestBuildStatistics(t *testing.T) {
	stats, report := build(t, corpus(), BuildOptions{Schema: document.DefaultSchema(), Workers: 2})

	assert.Equal(t, 2, report.Indexed)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, 2, stats.NumDocs())

	a, ok := stats.Lookup("A")
	require.True(t, ok)
	b, ok := stats.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, uint32(0), a)
	assert.Equal(t, "B", stats.DocID(b))

	assert.Equal(t, 1, stats.FieldTermFrequency(a, document.Title, "debt"))
	assert.Equal(t, 0, stats.FieldTermFrequency(b, document.Title, "debt"))
	assert.Equal(t, 0, stats.FieldTermFrequency(b, document.Entities, "fund"))
	assert.Equal(t, 2, stats.FieldLength(a, document.Entities))
	assert.Equal(t, 0, stats.FieldLength(b, document.Entities))

	assert.Equal(t, int64(4), stats.CollectionFieldLength(document.Title))
	assert.Equal(t, int64(1), stats.CollectionTermFrequency(document.Title, "fund"))
	assert.Equal(t, int64(0), stats.CollectionTermFrequency(document.Title, "absent"))
	assert.Equal(t, 2, stats.DocumentCount(document.Title))
	assert.Equal(t, 1, stats.DocumentCount(document.Entities))
	assert.Equal(t, 0, stats.DocumentCount(document.Author))
	assert.Equal(t, 3, stats.VocabularySize(document.Title))

	assert.Equal(t, []string{"Debt rescheduling"}, stats.StoredValues(a, document.Title))
}

func TestSumTotalTermFreqMatchesFieldLengths(t *testing.T) {
	stats, _ := build(t, corpus(), BuildOptions{Schema: document.DefaultSchema()})
	for _, f := range document.AllFields {
		var sum int64
		for ord := uint32(0); int(ord) < stats.NumDocs(); ord++ {
			sum += int64(stats.FieldLength(ord, f))
		}
		assert.Equal(t, sum, stats.CollectionFieldLength(f), f.String())
	}
}

func TestPositionalTokensFollowSchema(t *testing.T) {
	stats, _ := build(t, corpus(), BuildOptions{Schema: document.DefaultSchema()})
	a, _ := stats.Lookup("A")
	assert.Equal(t, []string{"debt", "rescheduling"}, stats.TermVector(a, document.Title).Tokens)
	assert.False(t, stats.TermVector(a, document.Entities).Positional())
	assert.Equal(t, 1, stats.TermVector(a, document.Entities).Frequency("fund"))

	stats, _ = build(t, corpus(), BuildOptions{Schema: document.PositionalContentSchema()})
	assert.Equal(t, []string{"debt", "fund"}, stats.TermVector(a, document.Entities).Tokens)
}

func TestAverageFieldLength(t *testing.T) {
	stats, _ := build(t, corpus(), BuildOptions{Schema: document.DefaultSchema()})

	mu, ok := stats.AverageFieldLength(document.Title)
	require.True(t, ok)
	assert.InDelta(t, 2.0, mu, 1e-12)

	_, ok = stats.AverageFieldLength(document.Author)
	assert.False(t, ok)
}

func TestPostings(t *testing.T) {
	stats, _ := build(t, corpus(), BuildOptions{Schema: document.DefaultSchema()})
	bm := stats.Postings(document.Title, "fund")
	require.NotNil(t, bm)
	assert.Equal(t, []uint32{1}, bm.ToArray())
	assert.Nil(t, stats.Postings(document.Title, "absent"))
	assert.Nil(t, stats.Postings(document.NumFields, "fund"))
}

func TestOutOfRangeAccessIsZero(t *testing.T) {
	stats, _ := build(t, corpus(), BuildOptions{Schema: document.DefaultSchema()})
	assert.Equal(t, 0, stats.FieldLength(99, document.Title))
	assert.Equal(t, "", stats.DocID(99))
	_, ok := stats.Entry(99)
	assert.False(t, ok)
}

func TestBuildSkipsAndContinues(t *testing.T) {
	docs := append(corpus(),
		document.Document{ID: "A", Tokens: document.FieldTokens{document.Title: {"dup"}}},
		document.Document{ID: "", Tokens: document.FieldTokens{document.Title: {"anon"}}},
		document.Document{ID: "big", Tokens: document.FieldTokens{document.Literals: {"1", "2", "3", "4", "5"}}},
		document.Document{ID: "C", Tokens: document.FieldTokens{document.Title: {"crisis"}}},
	)
	stats, report := build(t, docs, BuildOptions{Schema: document.DefaultSchema(), MaxDocumentTokens: 4})

	assert.Equal(t, 3, report.Indexed)
	assert.Equal(t, map[string]int{SkipDuplicate: 1, SkipInvalid: 1, SkipTooLarge: 1}, report.SkippedBy())
	for _, s := range report.Skipped {
		if s.Reason == SkipTooLarge {
			assert.ErrorIs(t, s.Err, apperrors.ErrDocumentTooLarge)
			assert.Equal(t, "big", s.ID)
		}
	}

	_, ok := stats.Lookup("big")
	assert.False(t, ok)
	c, ok := stats.Lookup("C")
	require.True(t, ok)
	assert.Equal(t, uint32(2), c)
	a, _ := stats.Lookup("A")
	assert.Equal(t, 0, stats.FieldTermFrequency(a, document.Title, "dup"))
}

func TestBuildIsDeterministicAcrossWorkerCounts(t *testing.T) {
	var docs []document.Document
	for i := 0; i < 200; i++ {
		docs = append(docs, document.Document{
			ID:     fmt.Sprintf("d%03d", i),
			Tokens: document.FieldTokens{document.Title: {fmt.Sprintf("t%d", i%7), "common"}},
		})
	}
	one, _ := build(t, docs, BuildOptions{Schema: document.DefaultSchema(), Workers: 1})
	many, _ := build(t, docs, BuildOptions{Schema: document.DefaultSchema(), Workers: 16})

	for i := 0; i < 200; i++ {
		assert.Equal(t, one.DocID(uint32(i)), many.DocID(uint32(i)))
	}
	assert.Equal(t, one.CollectionTermFrequency(document.Title, "common"), many.CollectionTermFrequency(document.Title, "common"))
	assert.True(t, one.Postings(document.Title, "t3").Equals(many.Postings(document.Title, "t3")))
}

func TestBuildHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Build(ctx, corpus(), BuildOptions{Schema: document.DefaultSchema()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromEntriesRejectsDuplicates(t *testing.T) {
	_, err := FromEntries(document.DefaultSchema(), []Entry{{ID: "x"}, {ID: "x"}})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateDocument)
}

func TestTermVectorFromFreqs(t *testing.T) {
	tv := TermVectorFromFreqs(map[string]int{"a": 2, "b": 3})
	assert.Equal(t, 5, tv.Length)
	assert.False(t, tv.Positional())
	assert.Equal(t, TermVector{}, TermVectorFromFreqs(nil))
}
