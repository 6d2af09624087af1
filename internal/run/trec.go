// Package run persists the output of batch ranking runs: TREC-style run
// files for evaluation tools and a PostgreSQL table for later analysis.
package run

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/executor"
)

// TRECWriter writes one line per ranked document:
//
//	queryID \t Q0 \t documentID \t rank \t score \t runID
//
// Ranks start at 0 and scores carry six decimals. A dataset id repeated
// within one query is written once, at its best rank.
type TRECWriter struct {
	w     *bufio.Writer
	runID string
	lines int
}

// NewTRECWriter returns a writer emitting lines tagged with runID.
func NewTRECWriter(w io.Writer, runID string) *TRECWriter {
	return &TRECWriter{w: bufio.NewWriter(w), runID: runID}
}

// Write appends the ranking of one query.
func (t *TRECWriter) Write(_ context.Context, result *executor.SearchResult) error {
	seen := make(map[string]struct{}, len(result.Results))
	rank := 0
	for _, doc := range result.Results {
		if _, dup := seen[doc.DocID]; dup {
			continue
		}
		seen[doc.DocID] = struct{}{}
		if _, err := fmt.Fprintf(t.w, "%s\tQ0\t%s\t%d\t%.6f\t%s\n",
			result.QueryID, doc.DocID, rank, doc.Score, t.runID); err != nil {
			return fmt.Errorf("writing run line: %w", err)
		}
		rank++
		t.lines++
	}
	return nil
}

// Flush writes buffered lines to the underlying writer.
func (t *TRECWriter) Flush() error {
	return t.w.Flush()
}

// Lines returns the number of lines written so far.
func (t *TRECWriter) Lines() int {
	return t.lines
}

// RunFile is a TRECWriter backed by a temporary file that replaces path on
// Commit. An abandoned RunFile leaves any previous file at path intact.
type RunFile struct {
	*TRECWriter
	path string
	tmp  *os.File
}

// CreateRunFile starts a run file at path, creating parent directories.
func CreateRunFile(path, runID string) (*RunFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp run file: %w", err)
	}
	return &RunFile{TRECWriter: NewTRECWriter(tmp, runID), path: path, tmp: tmp}, nil
}

// Commit flushes, syncs and atomically renames the file into place.
func (f *RunFile) Commit() error {
	if err := f.Flush(); err != nil {
		f.Abort()
		return fmt.Errorf("flushing run file: %w", err)
	}
	if err := f.tmp.Sync(); err != nil {
		f.Abort()
		return fmt.Errorf("syncing run file: %w", err)
	}
	if err := f.tmp.Close(); err != nil {
		os.Remove(f.tmp.Name())
		return fmt.Errorf("closing run file: %w", err)
	}
	if err := os.Rename(f.tmp.Name(), f.path); err != nil {
		os.Remove(f.tmp.Name())
		return fmt.Errorf("renaming run file: %w", err)
	}
	return nil
}

// Abort discards the temporary file.
func (f *RunFile) Abort() {
	f.tmp.Close()
	os.Remove(f.tmp.Name())
}

// MultiSink hands each result to every sink in order and stops at the first
// error.
type MultiSink []executor.Sink

func (m MultiSink) Write(ctx context.Context, result *executor.SearchResult) error {
	for _, s := range m {
		if err := s.Write(ctx, result); err != nil {
			return err
		}
	}
	return nil
}
