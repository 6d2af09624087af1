// Package index holds the multi-field index statistics the ranker reads:
// per-document term vectors, corpus-wide field aggregates and a per-field
// inverted index of document ordinals. A Statistics value is built once and
// never modified, so it is shared between goroutines without locking.
package index

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
)

// Entry is everything the store keeps about one document.
type Entry struct {
	ID      string
	Vectors [document.NumFields]TermVector
	Stored  document.FieldValues
}

// NewEntry derives an Entry from an analysed document under schema.
func NewEntry(doc *document.Document, schema document.Schema) Entry {
	e := Entry{ID: doc.ID}
	for _, f := range document.AllFields {
		e.Vectors[f] = NewTermVector(doc.Tokens[f], schema.Positional(f))
		if schema.Stored(f) && len(doc.Stored[f]) > 0 {
			e.Stored[f] = append([]string(nil), doc.Stored[f]...)
		}
	}
	return e
}

// Statistics is the immutable index statistics store. Documents are
// addressed by a dense ordinal assigned in build order.
type Statistics struct {
	schema   document.Schema
	entries  []Entry
	ids      map[string]uint32
	fields   [document.NumFields]FieldStats
	postings [document.NumFields]map[string]*roaring.Bitmap
}

// FromEntries assembles a Statistics from entries in ordinal order. It is
// the reduce step of Build and the restore step of snapshot loading.
// Duplicate ids are rejected.
func FromEntries(schema document.Schema, entries []Entry) (*Statistics, error) {
	s := &Statistics{
		schema:  schema,
		entries: entries,
		ids:     make(map[string]uint32, len(entries)),
	}
	for f := range s.fields {
		s.fields[f].TermFreqs = make(map[string]int64)
		s.postings[f] = make(map[string]*roaring.Bitmap)
	}
	for i := range entries {
		e := &entries[i]
		if _, dup := s.ids[e.ID]; dup {
			return nil, fmt.Errorf("%w: %q", apperrors.ErrDuplicateDocument, e.ID)
		}
		ord := uint32(i)
		s.ids[e.ID] = ord
		for f := range e.Vectors {
			tv := e.Vectors[f]
			if tv.Length == 0 {
				continue
			}
			fs := &s.fields[f]
			fs.SumTotalTermFreq += int64(tv.Length)
			fs.DocCount++
			for term, c := range tv.Freqs {
				fs.TermFreqs[term] += int64(c)
				bm, ok := s.postings[f][term]
				if !ok {
					bm = roaring.New()
					s.postings[f][term] = bm
				}
				bm.Add(ord)
			}
		}
	}
	for f := range s.postings {
		for _, bm := range s.postings[f] {
			bm.RunOptimize()
		}
	}
	return s, nil
}

// Schema returns the schema the store was built with.
func (s *Statistics) Schema() document.Schema {
	return s.schema
}

// NumDocs returns the number of indexed documents.
func (s *Statistics) NumDocs() int {
	return len(s.entries)
}

// Lookup resolves a dataset id to its ordinal.
func (s *Statistics) Lookup(id string) (uint32, bool) {
	ord, ok := s.ids[id]
	return ord, ok
}

// DocID returns the dataset id of ordinal ord, or "" when out of range.
func (s *Statistics) DocID(ord uint32) string {
	if int(ord) >= len(s.entries) {
		return ""
	}
	return s.entries[ord].ID
}

// Entry returns the stored entry of ord. The result must not be modified.
func (s *Statistics) Entry(ord uint32) (*Entry, bool) {
	if int(ord) >= len(s.entries) {
		return nil, false
	}
	return &s.entries[ord], true
}

// TermVector returns the term vector of ord in field f. Absent documents
// and fields yield the empty vector.
func (s *Statistics) TermVector(ord uint32, f document.Field) TermVector {
	if int(ord) >= len(s.entries) || !f.Valid() {
		return TermVector{}
	}
	return s.entries[ord].Vectors[f]
}

// StoredValues returns the raw values of a stored field.
func (s *Statistics) StoredValues(ord uint32, f document.Field) []string {
	if int(ord) >= len(s.entries) || !f.Valid() {
		return nil
	}
	return s.entries[ord].Stored[f]
}

// FieldTermFrequency returns how often term occurs in field f of ord.
func (s *Statistics) FieldTermFrequency(ord uint32, f document.Field, term string) int {
	return s.TermVector(ord, f).Frequency(term)
}

// FieldLength returns the number of tokens in field f of ord.
func (s *Statistics) FieldLength(ord uint32, f document.Field) int {
	return s.TermVector(ord, f).Length
}

// CollectionTermFrequency returns the occurrences of term in field f
// across the corpus.
func (s *Statistics) CollectionTermFrequency(f document.Field, term string) int64 {
	if !f.Valid() {
		return 0
	}
	return s.fields[f].TermFreqs[term]
}

// CollectionFieldLength returns the total number of tokens in field f.
func (s *Statistics) CollectionFieldLength(f document.Field) int64 {
	if !f.Valid() {
		return 0
	}
	return s.fields[f].SumTotalTermFreq
}

// DocumentCount returns the number of documents with a non-empty field f.
func (s *Statistics) DocumentCount(f document.Field) int {
	if !f.Valid() {
		return 0
	}
	return s.fields[f].DocCount
}

// VocabularySize returns the number of distinct terms in field f.
func (s *Statistics) VocabularySize(f document.Field) int {
	if !f.Valid() {
		return 0
	}
	return len(s.fields[f].TermFreqs)
}

// AverageFieldLength returns the mean length of field f over documents
// where it is non-empty. It reports false when no document has the field;
// the quotient is undefined and callers skip the field.
func (s *Statistics) AverageFieldLength(f document.Field) (float64, bool) {
	n := s.DocumentCount(f)
	if n == 0 {
		return 0, false
	}
	return float64(s.CollectionFieldLength(f)) / float64(n), true
}

// Postings returns the ordinals of documents containing term in field f,
// or nil. The bitmap is shared and must not be modified.
func (s *Statistics) Postings(f document.Field, term string) *roaring.Bitmap {
	if !f.Valid() {
		return nil
	}
	return s.postings[f][term]
}
