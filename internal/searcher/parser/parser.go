// Package parser turns raw query text into the analysed term sequence the
// retriever and scorer consume, and reads batch query files.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
)

// Query is an analysed query. Terms keeps the order and repetitions of the
// analysed text; the bigram components of the scorer depend on both.
type Query struct {
	ID    string   `json:"id"`
	Text  string   `json:"text"`
	Terms []string `json:"terms"`
}

// Parser analyses queries with the same analyzer used at index time.
type Parser struct {
	analyzer *tokenizer.Analyzer
}

// New returns a Parser using analyzer.
func New(analyzer *tokenizer.Analyzer) *Parser {
	return &Parser{analyzer: analyzer}
}

// Parse analyses text. Text without indexable words yields a query with no
// terms, which ranks nothing.
func (p *Parser) Parse(id, text string) Query {
	return Query{
		ID:    id,
		Text:  text,
		Terms: p.analyzer.Analyze(text),
	}
}

// ReadQueries reads one query per line in the form "id<TAB>text" and parses
// each one. Blank lines are skipped; a line without a tab or with an empty
// id is invalid input.
func (p *Parser) ReadQueries(r io.Reader) ([]Query, error) {
	var queries []Query
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		id, text, ok := strings.Cut(raw, "\t")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, apperrors.Invalidf("queries line %d: expected \"id<TAB>text\"", line)
		}
		queries = append(queries, p.Parse(id, text))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading queries: %w", err)
	}
	return queries, nil
}
