package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
)

// BuildOptions controls Build.
type BuildOptions struct {
	Schema document.Schema
	// Workers bounds the number of documents processed concurrently.
	// Zero means GOMAXPROCS.
	Workers int
	// MaxDocumentTokens is the per-document token budget. Documents above
	// it are skipped. Zero means unlimited.
	MaxDocumentTokens int
}

// Skip records a document left out of the build.
type Skip struct {
	ID     string
	Reason string
	Err    error
}

// BuildReport summarises a build.
type BuildReport struct {
	Indexed  int
	Skipped  []Skip
	Duration time.Duration
}

// Skip reasons.
const (
	SkipTooLarge  = "too_large"
	SkipDuplicate = "duplicate"
	SkipInvalid   = "invalid"
)

// Build consumes docs once and returns the finished store. Term vectors are
// built in parallel; ordinals and corpus aggregates follow the input order,
// so the result does not depend on scheduling. Documents that exceed the
// token budget, lack an id, or repeat an earlier id are skipped and
// reported; they never abort the build. Only context cancellation does.
func Build(ctx context.Context, docs []document.Document, opts BuildOptions) (*Statistics, *BuildReport, error) {
	start := time.Now()
	logger := slog.Default().With("component", "index-build")
	report := &BuildReport{}

	keep := make([]int, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for i := range docs {
		id := docs[i].ID
		switch _, dup := seen[id]; {
		case id == "":
			report.skip(logger, Skip{ID: id, Reason: SkipInvalid, Err: apperrors.Invalidf("document %d has no id", i)})
		case dup:
			report.skip(logger, Skip{ID: id, Reason: SkipDuplicate, Err: apperrors.ErrDuplicateDocument})
		default:
			seen[id] = struct{}{}
			keep = append(keep, i)
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	entries := make([]Entry, len(keep))
	failed := make([]error, len(keep))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for slot, i := range keep {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc := &docs[i]
			if opts.MaxDocumentTokens > 0 {
				if n := doc.TotalTokens(); n > opts.MaxDocumentTokens {
					failed[slot] = fmt.Errorf("%w: %d tokens, budget %d", apperrors.ErrDocumentTooLarge, n, opts.MaxDocumentTokens)
					return nil
				}
			}
			entries[slot] = NewEntry(doc, opts.Schema)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("building index: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("building index: %w", err)
	}

	kept := entries[:0]
	for slot, e := range entries {
		if err := failed[slot]; err != nil {
			reason := SkipInvalid
			if errors.Is(err, apperrors.ErrDocumentTooLarge) {
				reason = SkipTooLarge
			}
			report.skip(logger, Skip{ID: docs[keep[slot]].ID, Reason: reason, Err: err})
			continue
		}
		kept = append(kept, e)
	}

	stats, err := FromEntries(opts.Schema, kept)
	if err != nil {
		return nil, nil, fmt.Errorf("reducing index statistics: %w", err)
	}
	report.Indexed = stats.NumDocs()
	report.Duration = time.Since(start)
	logger.Info("index built",
		"indexed", report.Indexed,
		"skipped", len(report.Skipped),
		"duration", report.Duration,
	)
	return stats, report, nil
}

func (r *BuildReport) skip(logger *slog.Logger, s Skip) {
	logger.Warn("skipping document", "dataset_id", s.ID, "reason", s.Reason, "error", s.Err)
	r.Skipped = append(r.Skipped, s)
}

// SkippedBy counts skips per reason.
func (r *BuildReport) SkippedBy() map[string]int {
	out := make(map[string]int)
	for _, s := range r.Skipped {
		out[s.Reason]++
	}
	return out
}
