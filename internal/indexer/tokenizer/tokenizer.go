// Package tokenizer turns raw field values and query text into ordered term
// sequences. Text is segmented on Unicode word boundaries (UAX #29),
// lower-cased, filtered against a stopword set and optionally stemmed.
// Indexing and querying share one Analyzer so that terms match.
package tokenizer

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"github.com/kljensen/snowball/english"
	"golang.org/x/text/unicode/norm"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/config"
)

// DefaultMaxTokenLength is the longest token, in bytes, kept by default.
const DefaultMaxTokenLength = 255

//go:embed stopwords_en.txt
var englishStopwords string

// Token represents a single normalised term and its position in the
// analysed sequence. Positions are contiguous: removed stopwords leave no
// gap.
type Token struct {
	Term     string
	Position int
}

// StopSet is an immutable set of stopwords.
type StopSet map[string]struct{}

// Contains reports whether term is a stopword.
func (s StopSet) Contains(term string) bool {
	_, ok := s[term]
	return ok
}

// DefaultStopwords returns the English stopword list compiled into the
// binary.
func DefaultStopwords() StopSet {
	set, _ := LoadStopwords(strings.NewReader(englishStopwords))
	return set
}

// LoadStopwords reads one stopword per line. Blank lines and lines starting
// with '#' are ignored; words are lower-cased.
func LoadStopwords(r io.Reader) (StopSet, error) {
	set := make(StopSet)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[strings.ToLower(line)] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading stopwords: %w", err)
	}
	return set, nil
}

// Options configures an Analyzer.
type Options struct {
	Stopwords      StopSet
	MaxTokenLength int
	NormalizeNFKC  bool
	// Stem applies the Snowball English stemmer after stopword removal.
	Stem bool
}

// Analyzer is safe for concurrent use; it holds no mutable state.
type Analyzer struct {
	stop   StopSet
	maxLen int
	nfkc   bool
	stem   bool
}

// New builds an Analyzer. A nil stopword set selects the built-in English
// list; a non-positive MaxTokenLength selects DefaultMaxTokenLength.
func New(opts Options) *Analyzer {
	stop := opts.Stopwords
	if stop == nil {
		stop = DefaultStopwords()
	}
	maxLen := opts.MaxTokenLength
	if maxLen <= 0 {
		maxLen = DefaultMaxTokenLength
	}
	return &Analyzer{stop: stop, maxLen: maxLen, nfkc: opts.NormalizeNFKC, stem: opts.Stem}
}

// Default returns an Analyzer with the built-in stopwords and no Unicode
// normalisation.
func Default() *Analyzer {
	return New(Options{})
}

// NewFromConfig builds an Analyzer from config, loading the stopword file
// if one is configured.
func NewFromConfig(cfg config.AnalysisConfig) (*Analyzer, error) {
	opts := Options{
		MaxTokenLength: cfg.MaxTokenLength,
		NormalizeNFKC:  cfg.NormalizeNFKC,
		Stem:           cfg.Stem,
	}
	if cfg.StopwordsPath != "" {
		f, err := os.Open(cfg.StopwordsPath)
		if err != nil {
			return nil, fmt.Errorf("opening stopwords file %s: %w", cfg.StopwordsPath, err)
		}
		defer f.Close()
		set, err := LoadStopwords(f)
		if err != nil {
			return nil, fmt.Errorf("loading stopwords file %s: %w", cfg.StopwordsPath, err)
		}
		opts.Stopwords = set
	}
	return New(opts), nil
}

// Analyze returns the ordered terms of text.
func (a *Analyzer) Analyze(text string) []string {
	var terms []string
	a.each(text, func(term string) {
		terms = append(terms, term)
	})
	return terms
}

// Tokenize returns the ordered terms of text with their positions.
func (a *Analyzer) Tokenize(text string) []Token {
	var tokens []Token
	a.each(text, func(term string) {
		tokens = append(tokens, Token{Term: term, Position: len(tokens)})
	})
	return tokens
}

func (a *Analyzer) each(text string, emit func(string)) {
	if a.nfkc {
		text = norm.NFKC.String(text)
	}
	segs := words.FromString(text)
	for segs.Next() {
		seg := segs.Value()
		if !isWord(seg) {
			continue
		}
		term := strings.ToLower(seg)
		if len(term) > a.maxLen {
			continue
		}
		if a.stop.Contains(term) {
			continue
		}
		if a.stem {
			term = english.Stem(term, false)
		}
		emit(term)
	}
}

// isWord reports whether a segment carries at least one letter or digit.
// Whitespace and punctuation segments are dropped.
func isWord(seg string) bool {
	for _, r := range seg {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
