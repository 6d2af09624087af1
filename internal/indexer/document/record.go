package document

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Content source names, one per RDF extraction tool.
const (
	SourceJena     = "jena"
	SourceRDFLib   = "rdflib"
	SourceLightRDF = "lightrdf"
)

// KnownSources lists the content sources in the order their values are
// appended to a document.
var KnownSources = []string{SourceJena, SourceRDFLib, SourceLightRDF}

// Content holds the values one extraction tool produced for a dataset.
type Content struct {
	Entities   []string `json:"entities,omitempty"`
	Literals   []string `json:"literals,omitempty"`
	Classes    []string `json:"classes,omitempty"`
	Properties []string `json:"properties,omitempty"`
}

func (c Content) values(f Field) []string {
	switch f {
	case Entities:
		return c.Entities
	case Literals:
		return c.Literals
	case Classes:
		return c.Classes
	case Properties:
		return c.Properties
	}
	return nil
}

// Record is a raw dataset entry as produced by the ingestion pipeline:
// descriptive metadata plus content keyed by extraction source. Tags are a
// single ':'-separated string.
type Record struct {
	DatasetID   string             `json:"dataset_id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Author      string             `json:"author,omitempty"`
	Tags        string             `json:"tags,omitempty"`
	Content     map[string]Content `json:"content,omitempty"`
}

// ReadRecords decodes a JSON-lines stream, calling fn for every record in
// order. Blank lines are skipped. A malformed line aborts with its line
// number; an error from fn aborts as well.
func ReadRecords(r io.Reader, fn func(Record) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 256*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(bytes.TrimSpace(b)) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return fmt.Errorf("decoding record on line %d: %w", line, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("record on line %d exceeds 256MiB: %w", line+1, err)
		}
		return fmt.Errorf("reading records: %w", err)
	}
	return nil
}
