package document

// FieldTokens holds one analysed token sequence per field. A missing field
// is an empty sequence.
type FieldTokens [NumFields][]string

// FieldValues holds the raw values of stored fields.
type FieldValues [NumFields][]string

// Document is an analysed dataset: its id and the token sequence of every
// field. Multi-valued fields hold the concatenation of their values' tokens
// in insertion order. A Document is not modified after construction.
type Document struct {
	ID     string
	Tokens FieldTokens
	Stored FieldValues
}

// Len returns the number of tokens in field f.
func (d *Document) Len(f Field) int {
	if !f.Valid() {
		return 0
	}
	return len(d.Tokens[f])
}

// TotalTokens returns the number of tokens across all fields.
func (d *Document) TotalTokens() int {
	n := 0
	for _, toks := range d.Tokens {
		n += len(toks)
	}
	return n
}
