// Package indexer orchestrates index builds: records become documents, the
// statistics store is built in parallel, persisted as a snapshot and
// published to readers with an atomic swap so that no query ever observes
// a partially built store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/metrics"
)

// Publisher emits index lifecycle events. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// IndexCompleteEvent announces a newly saved snapshot.
type IndexCompleteEvent struct {
	SnapshotID string    `json:"snapshot_id"`
	Path       string    `json:"path"`
	Docs       int       `json:"docs"`
	CreatedAt  time.Time `json:"created_at"`
}

// Snapshot is a published, immutable store together with its identity.
type Snapshot struct {
	Stats *index.Statistics
	Info  segment.Info
}

// Engine owns the current snapshot.
type Engine struct {
	cfg         config.IndexerConfig
	builder     *document.Builder
	compression segment.Compression
	current     atomic.Pointer[Snapshot]
	publisher   Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithPublisher emits an IndexCompleteEvent after every Save.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithMetrics records build and snapshot metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine validates cfg and returns an Engine with no snapshot loaded.
// builder may be nil for engines that only load snapshots.
func NewEngine(cfg config.IndexerConfig, builder *document.Builder, opts ...Option) (*Engine, error) {
	if cfg.SnapshotPath == "" {
		return nil, apperrors.Configf("indexer snapshot path must not be empty")
	}
	compression, err := segment.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:         cfg,
		builder:     builder,
		compression: compression,
		logger:      slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Build converts records into documents and builds a store from them.
// Records that cannot be converted are skipped and reported like any other
// per-document failure. The result is not published; see Save.
func (e *Engine) Build(ctx context.Context, records []document.Record) (*index.Statistics, *index.BuildReport, error) {
	if e.builder == nil {
		return nil, nil, apperrors.Configf("engine has no document builder")
	}
	docs := make([]document.Document, 0, len(records))
	var invalid []index.Skip
	for i, rec := range records {
		doc, err := e.builder.Build(rec)
		if err != nil {
			e.logger.Warn("skipping record", "position", i, "dataset_id", rec.DatasetID, "error", err)
			invalid = append(invalid, index.Skip{ID: rec.DatasetID, Reason: index.SkipInvalid, Err: err})
			continue
		}
		docs = append(docs, doc)
	}
	stats, report, err := e.BuildDocuments(ctx, docs)
	if err != nil {
		return nil, nil, err
	}
	report.Skipped = append(invalid, report.Skipped...)
	return stats, report, nil
}

// BuildDocuments builds a store from already analysed documents.
func (e *Engine) BuildDocuments(ctx context.Context, docs []document.Document) (*index.Statistics, *index.BuildReport, error) {
	schema := document.DefaultSchema()
	if e.builder != nil {
		schema = e.builder.Schema()
	}
	stats, report, err := index.Build(ctx, docs, index.BuildOptions{
		Schema:            schema,
		Workers:           e.cfg.Workers,
		MaxDocumentTokens: e.cfg.MaxDocumentTokens,
	})
	if err != nil {
		return nil, nil, err
	}
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Add(float64(report.Indexed))
		for reason, n := range report.SkippedBy() {
			e.metrics.DocsSkippedTotal.WithLabelValues(reason).Add(float64(n))
		}
		e.metrics.IndexBuildDuration.Observe(report.Duration.Seconds())
	}
	return stats, report, nil
}

// Save writes stats as the snapshot file, publishes it to readers and
// announces it. A failed announcement is logged; the snapshot stays
// published.
func (e *Engine) Save(ctx context.Context, stats *index.Statistics) (segment.Info, error) {
	info, err := segment.NewWriter(e.cfg.SnapshotPath, e.compression).Write(stats)
	e.recordSnapshotOp("save", err)
	if err != nil {
		return segment.Info{}, fmt.Errorf("saving snapshot: %w", err)
	}
	e.swap(&Snapshot{Stats: stats, Info: info})
	e.logger.Info("snapshot saved",
		"snapshot_id", info.ID,
		"path", info.Path,
		"docs", info.Docs,
		"bytes", info.Bytes,
		"compression", info.Compression.String(),
	)
	if e.publisher != nil {
		event := kafka.Event{
			Key: info.ID,
			Value: IndexCompleteEvent{
				SnapshotID: info.ID,
				Path:       info.Path,
				Docs:       info.Docs,
				CreatedAt:  info.CreatedAt,
			},
		}
		if err := e.publisher.Publish(ctx, event); err != nil {
			e.logger.Error("failed to announce snapshot", "snapshot_id", info.ID, "error", err)
		}
	}
	return info, nil
}

// Load reads the snapshot file and publishes it.
func (e *Engine) Load() (segment.Info, error) {
	r, err := segment.OpenReader(e.cfg.SnapshotPath)
	e.recordSnapshotOp("load", err)
	if err != nil {
		return segment.Info{}, fmt.Errorf("loading snapshot: %w", err)
	}
	e.swap(&Snapshot{Stats: r.Statistics(), Info: r.Info()})
	e.logger.Info("snapshot loaded",
		"snapshot_id", r.Info().ID,
		"docs", r.Info().Docs,
		"created_at", r.Info().CreatedAt,
	)
	return r.Info(), nil
}

// Reload loads the snapshot file unless its id is already being served.
// It reports whether a new snapshot was published.
func (e *Engine) Reload(expectedID string) (bool, error) {
	if cur := e.current.Load(); cur != nil && expectedID != "" && cur.Info.ID == expectedID {
		return false, nil
	}
	info, err := e.Load()
	if err != nil {
		return false, err
	}
	if expectedID != "" && info.ID != expectedID {
		e.logger.Warn("loaded snapshot differs from announced one",
			"announced", expectedID,
			"loaded", info.ID,
		)
	}
	return true, nil
}

// Current returns the published snapshot, or ErrIndexNotReady before the
// first Save or Load.
func (e *Engine) Current() (*Snapshot, error) {
	s := e.current.Load()
	if s == nil {
		return nil, apperrors.New(apperrors.ErrIndexNotReady, http.StatusServiceUnavailable, "no index snapshot has been loaded")
	}
	return s, nil
}

// Ready reports whether a snapshot is published.
func (e *Engine) Ready() bool {
	return e.current.Load() != nil
}

// SnapshotID returns the id of the published snapshot, or "".
func (e *Engine) SnapshotID() string {
	if s := e.current.Load(); s != nil {
		return s.Info.ID
	}
	return ""
}

// Describe returns the published snapshot's id and size for health checks.
func (e *Engine) Describe() (string, int) {
	if s := e.current.Load(); s != nil {
		return s.Info.ID, s.Stats.NumDocs()
	}
	return "", 0
}

func (e *Engine) swap(s *Snapshot) {
	e.current.Store(s)
	if e.metrics != nil {
		e.metrics.IndexedDocuments.Set(float64(s.Stats.NumDocs()))
	}
}

func (e *Engine) recordSnapshotOp(op string, err error) {
	if e.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case errors.Is(err, apperrors.ErrCorruptSnapshot):
		status = "corrupt"
	case err != nil:
		status = "error"
	}
	e.metrics.SnapshotOpsTotal.WithLabelValues(op, status).Inc()
}
