package index

// TermVector is the per-document, per-field view of a token sequence: raw
// term frequencies, the field length and, for positional fields, the
// ordered tokens. The zero value is an empty field.
type TermVector struct {
	Freqs  map[string]int
	Length int
	Tokens []string
}

// NewTermVector derives a TermVector from an analysed token sequence. The
// sequence is kept only when positional is true.
func NewTermVector(tokens []string, positional bool) TermVector {
	if len(tokens) == 0 {
		return TermVector{}
	}
	freqs := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freqs[t]++
	}
	tv := TermVector{Freqs: freqs, Length: len(tokens)}
	if positional {
		tv.Tokens = append([]string(nil), tokens...)
	}
	return tv
}

// TermVectorFromFreqs rebuilds a frequency-only TermVector.
func TermVectorFromFreqs(freqs map[string]int) TermVector {
	if len(freqs) == 0 {
		return TermVector{}
	}
	n := 0
	for _, c := range freqs {
		n += c
	}
	return TermVector{Freqs: freqs, Length: n}
}

// Frequency returns the number of occurrences of term, 0 when absent.
func (tv TermVector) Frequency(term string) int {
	return tv.Freqs[term]
}

// Positional reports whether the ordered token sequence is available.
func (tv TermVector) Positional() bool {
	return tv.Tokens != nil
}

// FieldStats are the corpus-wide aggregates of one field.
type FieldStats struct {
	// SumTotalTermFreq is the number of tokens in the field across all
	// documents.
	SumTotalTermFreq int64
	// DocCount is the number of documents with at least one token in the
	// field.
	DocCount int
	// TermFreqs maps a term to its number of occurrences in the field
	// across all documents.
	TermFreqs map[string]int64
}
