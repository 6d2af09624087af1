// Package executor runs queries end to end: candidates are retrieved over
// the profile's fields, reranked with FSDM and cut to the requested number
// of hits. Batches run queries concurrently and emit results in input order.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/retriever"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/tracing"
)

// SearchResult is the ranked answer to one query.
type SearchResult struct {
	QueryID    string             `json:"query_id,omitempty"`
	Query      string             `json:"query"`
	Terms      []string           `json:"terms"`
	Profile    string             `json:"profile"`
	SnapshotID string             `json:"snapshot_id"`
	Candidates int                `json:"candidates"`
	Results    []ranker.ScoredDoc `json:"results"`
	TookMs     int64              `json:"took_ms"`
}

// Options override the configured defaults for one query. Zero values keep
// the defaults.
type Options struct {
	Profile string
	NHits   int
}

// SnapshotSource provides the currently served snapshot. *indexer.Engine
// satisfies it.
type SnapshotSource interface {
	Current() (*indexer.Snapshot, error)
}

// Sink receives batch results in query order.
type Sink interface {
	Write(ctx context.Context, result *SearchResult) error
}

// BatchReport summarises a batch run.
type BatchReport struct {
	Queries int
	Written int
	Failed  int
}

// Executor is safe for concurrent use.
type Executor struct {
	source   SnapshotSource
	profiles *ranker.Registry
	scorer   *ranker.Scorer
	cfg      config.SearchConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New returns an Executor. m may be nil.
func New(source SnapshotSource, profiles *ranker.Registry, cfg config.SearchConfig, m *metrics.Metrics) *Executor {
	return &Executor{
		source:   source,
		profiles: profiles,
		scorer:   ranker.NewScorer(ranker.DefaultParams(), cfg.Workers),
		cfg:      cfg,
		metrics:  m,
		logger:   slog.Default().With("component", "query-executor"),
	}
}

// Resolve applies the configured defaults to opts.
func (e *Executor) Resolve(opts Options) Options {
	if opts.Profile == "" {
		opts.Profile = e.cfg.Profile
	}
	if opts.NHits <= 0 {
		opts.NHits = e.cfg.NHits
	}
	if e.cfg.MaxResults > 0 && opts.NHits > e.cfg.MaxResults {
		opts.NHits = e.cfg.MaxResults
	}
	return opts
}

// SnapshotID returns the id of the served snapshot, or "" when none is
// loaded.
func (e *Executor) SnapshotID() string {
	snap, err := e.source.Current()
	if err != nil {
		return ""
	}
	return snap.Info.ID
}

// Search ranks one query against the current snapshot.
func (e *Executor) Search(ctx context.Context, q parser.Query, opts Options) (*SearchResult, error) {
	start := time.Now()
	opts = e.Resolve(opts)
	profile, err := e.profiles.Get(opts.Profile)
	if err != nil {
		return nil, err
	}
	snap, err := e.source.Current()
	if err != nil {
		return nil, err
	}
	ctx, span := tracing.Start(ctx, "search")
	defer span.End(e.logger)
	span.SetAttr("profile", profile.Name())

	result := &SearchResult{
		QueryID:    q.ID,
		Query:      q.Text,
		Terms:      q.Terms,
		Profile:    profile.Name(),
		SnapshotID: snap.Info.ID,
		Results:    []ranker.ScoredDoc{},
	}
	if len(q.Terms) == 0 {
		e.observe(profile.Name(), result)
		return result, nil
	}

	qctx := ctx
	if e.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, e.cfg.QueryTimeout)
		defer cancel()
	}

	limit := max(e.cfg.CandidateLimit, opts.NHits)
	_, step := tracing.Start(qctx, "retrieve")
	candidates, err := retriever.New(snap.Stats).Retrieve(qctx, q.Terms, profile.ActiveFields(), limit)
	step.SetAttr("candidates", len(candidates))
	step.End(e.logger)
	if err != nil {
		return nil, e.fail(ctx, profile.Name(), q, "retrieving candidates", err)
	}
	_, step = tracing.Start(qctx, "rank")
	qc := ranker.NewQueryContext(snap.Stats, profile, q.Terms)
	ranked, err := e.scorer.Rank(qctx, qc, retriever.IDs(candidates), opts.NHits)
	step.SetAttr("fields", len(qc.Fields()))
	step.End(e.logger)
	if err != nil {
		return nil, e.fail(ctx, profile.Name(), q, "ranking candidates", err)
	}

	result.Candidates = len(candidates)
	result.Results = append(result.Results, ranked...)
	result.TookMs = time.Since(start).Milliseconds()
	e.observe(profile.Name(), result)
	e.logger.Debug("query executed",
		"query_id", q.ID,
		"terms", q.Terms,
		"profile", profile.Name(),
		"candidates", len(candidates),
		"results", len(ranked),
	)
	return result, nil
}

// RunBatch ranks queries with at most cfg.Workers in flight and hands each
// result to sink in input order. A failed query is logged, counted and
// skipped; a sink error or cancellation of ctx ends the batch.
func (e *Executor) RunBatch(ctx context.Context, queries []parser.Query, opts Options, sink Sink) (*BatchReport, error) {
	report := &BatchReport{Queries: len(queries)}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*SearchResult, len(queries))
	errs := make([]error, len(queries))
	ready := make([]chan struct{}, len(queries))
	for i := range ready {
		ready[i] = make(chan struct{})
	}

	workers := e.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	g := new(errgroup.Group)
	g.SetLimit(workers)
	scheduled := make(chan struct{})
	go func() {
		defer close(scheduled)
		for i, q := range queries {
			if err := ctx.Err(); err != nil {
				for j := i; j < len(queries); j++ {
					errs[j] = err
					close(ready[j])
				}
				return
			}
			g.Go(func() error {
				defer close(ready[i])
				results[i], errs[i] = e.Search(ctx, q, opts)
				return nil
			})
		}
	}()
	stop := func() {
		cancel()
		<-scheduled
		_ = g.Wait()
	}

	for i, q := range queries {
		<-ready[i]
		if err := errs[i]; err != nil {
			if ctx.Err() != nil {
				stop()
				return report, fmt.Errorf("batch interrupted at query %s: %w", q.ID, ctx.Err())
			}
			report.Failed++
			e.countRun("error")
			e.logger.Error("query failed", "query_id", q.ID, "error", err)
			continue
		}
		if err := sink.Write(ctx, results[i]); err != nil {
			stop()
			return report, fmt.Errorf("writing results of query %s: %w", q.ID, err)
		}
		results[i] = nil
		report.Written++
		e.countRun("ok")
	}
	stop()

	e.logger.Info("batch complete",
		"queries", report.Queries,
		"written", report.Written,
		"failed", report.Failed,
	)
	return report, nil
}

func (e *Executor) fail(parent context.Context, profile string, q parser.Query, op string, err error) error {
	if e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(profile, "error").Inc()
	}
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return apperrors.Newf(apperrors.ErrTimeout, http.StatusServiceUnavailable,
			"query %q exceeded %s", q.ID, e.cfg.QueryTimeout)
	}
	return fmt.Errorf("%s for query %q: %w", op, q.ID, err)
}

func (e *Executor) observe(profile string, result *SearchResult) {
	if e.metrics == nil {
		return
	}
	resultType := "hit"
	if len(result.Results) == 0 {
		resultType = "zero_result"
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(profile, resultType).Inc()
	e.metrics.SearchResultsCount.Observe(float64(len(result.Results)))
	e.metrics.CandidatesScored.Observe(float64(result.Candidates))
}

func (e *Executor) countRun(status string) {
	if e.metrics != nil {
		e.metrics.RunQueriesTotal.WithLabelValues(status).Inc()
	}
}
