package document

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
)

// DefaultMaxContentValues is the per-field value limit applied to very large
// datasets.
const DefaultMaxContentValues = 100000

// BuildConfig selects which record content becomes document fields.
type BuildConfig struct {
	// IncludeClasses adds the classes field; when false it stays empty.
	IncludeClasses bool
	// DeduplicateClasses keeps only the first occurrence of each class
	// value across all sources.
	DeduplicateClasses bool
	// ContentSources lists the extraction sources to read, in order. Empty
	// means all KnownSources.
	ContentSources []string
	// MaxContentValues truncates each content field to this many values per
	// source. Zero means unlimited.
	MaxContentValues int
}

// DefaultBuildConfig reads every source, includes classes and applies no
// truncation.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{IncludeClasses: true}
}

// Builder converts Records into Documents with a shared Analyzer.
type Builder struct {
	analyzer *tokenizer.Analyzer
	schema   Schema
	cfg      BuildConfig
	sources  []string
}

// NewBuilder validates cfg and returns a Builder.
func NewBuilder(analyzer *tokenizer.Analyzer, schema Schema, cfg BuildConfig) (*Builder, error) {
	if analyzer == nil {
		return nil, apperrors.Configf("document builder requires an analyzer")
	}
	if cfg.MaxContentValues < 0 {
		return nil, apperrors.Configf("max content values must not be negative, got %d", cfg.MaxContentValues)
	}
	sources := cfg.ContentSources
	if len(sources) == 0 {
		sources = KnownSources
	}
	seen := make(map[string]bool, len(sources))
	normalized := make([]string, 0, len(sources))
	for _, s := range sources {
		s = strings.ToLower(strings.TrimSpace(s))
		if !slices.Contains(KnownSources, s) {
			return nil, apperrors.Configf("unknown content source %q", s)
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		normalized = append(normalized, s)
	}
	return &Builder{analyzer: analyzer, schema: schema, cfg: cfg, sources: normalized}, nil
}

// Schema returns the schema documents are built against.
func (b *Builder) Schema() Schema {
	return b.schema
}

// Build analyses rec into a Document. A record without a dataset id is
// rejected.
func (b *Builder) Build(rec Record) (Document, error) {
	id := strings.TrimSpace(rec.DatasetID)
	if id == "" {
		return Document{}, apperrors.Invalidf("record has no dataset_id")
	}
	doc := Document{ID: id}

	b.add(&doc, Title, rec.Title)
	b.add(&doc, Description, rec.Description)
	b.add(&doc, Author, rec.Author)
	if rec.Tags != "" {
		for _, tag := range strings.Split(rec.Tags, ":") {
			b.add(&doc, Tags, tag)
		}
	}

	var seenClasses map[string]struct{}
	if b.cfg.DeduplicateClasses {
		seenClasses = make(map[string]struct{})
	}
	for _, src := range b.sources {
		content, ok := rec.Content[src]
		if !ok {
			continue
		}
		for _, f := range []Field{Entities, Classes, Literals, Properties} {
			if f == Classes && !b.cfg.IncludeClasses {
				continue
			}
			values := content.values(f)
			if limit := b.cfg.MaxContentValues; limit > 0 && len(values) > limit {
				values = values[:limit]
			}
			for _, v := range values {
				if seenClasses != nil && f == Classes {
					if _, dup := seenClasses[v]; dup {
						continue
					}
					seenClasses[v] = struct{}{}
				}
				b.add(&doc, f, v)
			}
		}
	}
	return doc, nil
}

func (b *Builder) add(doc *Document, f Field, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if b.schema.Stored(f) {
		doc.Stored[f] = append(doc.Stored[f], value)
	}
	doc.Tokens[f] = append(doc.Tokens[f], b.analyzer.Analyze(value)...)
}

// String describes the builder configuration for logs.
func (b *Builder) String() string {
	return fmt.Sprintf("sources=%v classes=%t dedup=%t max_values=%d",
		b.sources, b.cfg.IncludeClasses, b.cfg.DeduplicateClasses, b.cfg.MaxContentValues)
}
