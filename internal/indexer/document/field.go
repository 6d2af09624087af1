// Package document defines the fields of a dataset record and turns raw
// records into analysed Documents ready for indexing.
package document

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
)

// Field identifies an independently weighted text attribute of a dataset.
type Field uint8

const (
	Title Field = iota
	Description
	Author
	Tags
	Entities
	Literals
	Classes
	Properties

	// NumFields is the number of defined fields.
	NumFields
)

// AllFields lists every field in canonical order.
var AllFields = []Field{Title, Description, Author, Tags, Entities, Literals, Classes, Properties}

// MetadataFields are the fields taken from the dataset's descriptive
// metadata.
var MetadataFields = []Field{Title, Description, Author, Tags}

// ContentFields are the fields extracted from the dataset's RDF content.
var ContentFields = []Field{Classes, Entities, Properties, Literals}

var fieldNames = [NumFields]string{
	Title:       "title",
	Description: "description",
	Author:      "author",
	Tags:        "tags",
	Entities:    "entities",
	Literals:    "literals",
	Classes:     "classes",
	Properties:  "properties",
}

func (f Field) String() string {
	if f >= NumFields {
		return fmt.Sprintf("field(%d)", uint8(f))
	}
	return fieldNames[f]
}

// Valid reports whether f is a defined field.
func (f Field) Valid() bool {
	return f < NumFields
}

// IsMetadata reports whether f is a metadata field.
func (f Field) IsMetadata() bool {
	return f <= Tags
}

// ParseField resolves a field name, case-insensitively.
func ParseField(name string) (Field, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for f, fn := range fieldNames {
		if fn == n {
			return Field(f), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", apperrors.ErrUnknownField, name)
}

// MarshalText implements encoding.TextMarshaler so fields can be map keys
// in JSON and YAML.
func (f Field) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrUnknownField, uint8(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Field) UnmarshalText(b []byte) error {
	parsed, err := ParseField(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Schema records, per field, whether the ordered token sequence is kept
// (positional) and whether raw values are retained for display (stored).
type Schema struct {
	positional [NumFields]bool
	stored     [NumFields]bool
}

// DefaultSchema keeps positions and raw values for metadata fields only.
// Content fields are frequency-only.
func DefaultSchema() Schema {
	var s Schema
	for _, f := range MetadataFields {
		s.positional[f] = true
		s.stored[f] = true
	}
	return s
}

// PositionalContentSchema is DefaultSchema with positions also kept for
// content fields.
func PositionalContentSchema() Schema {
	s := DefaultSchema()
	for _, f := range ContentFields {
		s.positional[f] = true
	}
	return s
}

// Positional reports whether f keeps its ordered token sequence.
func (s Schema) Positional(f Field) bool {
	return f.Valid() && s.positional[f]
}

// Stored reports whether f keeps its raw values.
func (s Schema) Stored(f Field) bool {
	return f.Valid() && s.stored[f]
}

// Mask returns the schema as two bitmasks, bit i for Field(i).
func (s Schema) Mask() (positional, stored uint8) {
	for f := Field(0); f < NumFields; f++ {
		if s.positional[f] {
			positional |= 1 << f
		}
		if s.stored[f] {
			stored |= 1 << f
		}
	}
	return positional, stored
}

// SchemaFromMask is the inverse of Mask.
func SchemaFromMask(positional, stored uint8) Schema {
	var s Schema
	for f := Field(0); f < NumFields; f++ {
		s.positional[f] = positional&(1<<f) != 0
		s.stored[f] = stored&(1<<f) != 0
	}
	return s
}
