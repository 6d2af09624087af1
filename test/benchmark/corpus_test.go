// Package benchmark contains Go benchmarks for index construction, snapshot
// persistence, text analysis and FSDM ranking.
package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/index"
)

var vocabulary = []string{
	"debt", "fund", "river", "levels", "housing", "market", "census", "population",
	"transport", "timetable", "election", "results", "hospital", "capacity", "crop",
	"yield", "school", "enrolment", "air", "quality", "energy", "consumption", "budget",
	"spending", "weather", "stations", "traffic", "accidents", "water", "supply",
}

func word(i int) string { return vocabulary[i%len(vocabulary)] }

func words(seed, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = word(seed*7 + i*3 + i/5)
	}
	return out
}

// syntheticCorpus returns n documents with every field populated. Content
// fields are larger than metadata fields, as in extracted RDF dumps.
func syntheticCorpus(n int) []document.Document {
	docs := make([]document.Document, n)
	for i := range docs {
		var tokens document.FieldTokens
		tokens[document.Title] = words(i, 4)
		tokens[document.Description] = words(i+1, 30)
		tokens[document.Author] = words(i+2, 2)
		tokens[document.Tags] = words(i+3, 5)
		tokens[document.Entities] = words(i+4, 60)
		tokens[document.Literals] = words(i+5, 120)
		tokens[document.Classes] = words(i+6, 6)
		tokens[document.Properties] = words(i+7, 12)
		docs[i] = document.Document{ID: fmt.Sprintf("ds-%06d", i), Tokens: tokens}
	}
	return docs
}

func buildStats(b *testing.B, n int, schema document.Schema) *index.Statistics {
	b.Helper()
	stats, _, err := index.Build(context.Background(), syntheticCorpus(n), index.BuildOptions{Schema: schema})
	if err != nil {
		b.Fatal(err)
	}
	return stats
}
