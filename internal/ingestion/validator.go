// Package ingestion publishes dataset records to the ingest topic the
// indexer consumes. Records are validated and deduplicated by dataset id
// before they are published.
package ingestion

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
)

const (
	maxIDLength    = 255
	maxTitleLength = 1024
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	DatasetID string            `json:"dataset_id"`
	Fields    map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// ValidateRecord checks the fields the indexer relies on.
func ValidateRecord(rec document.Record) error {
	errs := make(map[string]string)

	id := rec.DatasetID
	switch {
	case strings.TrimSpace(id) == "":
		errs["dataset_id"] = "dataset_id is required"
	case len(id) > maxIDLength:
		errs["dataset_id"] = fmt.Sprintf("dataset_id must be at most %d bytes", maxIDLength)
	case strings.ContainsFunc(id, unicode.IsSpace):
		errs["dataset_id"] = "dataset_id must not contain whitespace"
	}
	if len(rec.Title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d bytes", maxTitleLength)
	}
	for source := range rec.Content {
		if !slices.Contains(document.KnownSources, source) {
			errs["content"] = fmt.Sprintf("unknown content source %q", source)
			break
		}
	}
	if len(errs) > 0 {
		return &ValidationError{DatasetID: id, Fields: errs}
	}
	return nil
}
