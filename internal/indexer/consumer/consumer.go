// Package consumer connects the indexer to Kafka: it gathers dataset
// records from the ingest topic for a one-shot build, and reloads served
// snapshots when an index.complete event arrives.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/kafka"
)

// ErrCollectorFull is returned by the handler once MaxRecords is reached so
// that the message is left uncommitted for the next build.
var ErrCollectorFull = errors.New("corpus collector is full")

// CorpusCollector accumulates dataset records delivered over Kafka.
type CorpusCollector struct {
	mu         sync.Mutex
	records    []document.Record
	maxRecords int
	decodeErrs int
	logger     *slog.Logger
}

// NewCorpusCollector creates a collector. maxRecords <= 0 means unlimited.
func NewCorpusCollector(maxRecords int) *CorpusCollector {
	return &CorpusCollector{
		maxRecords: maxRecords,
		logger:     slog.Default().With("component", "corpus-collector"),
	}
}

// Handler returns the Kafka MessageHandler that decodes and stores records.
// Undecodable messages are logged and acknowledged so they are not
// redelivered.
func (c *CorpusCollector) Handler() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		rec, err := kafka.DecodeJSON[document.Record](value)
		if err != nil {
			c.mu.Lock()
			c.decodeErrs++
			c.mu.Unlock()
			c.logger.Error("failed to decode dataset record",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.maxRecords > 0 && len(c.records) >= c.maxRecords {
			return ErrCollectorFull
		}
		c.records = append(c.records, rec)
		return nil
	}
}

// Full reports whether MaxRecords has been reached.
func (c *CorpusCollector) Full() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxRecords > 0 && len(c.records) >= c.maxRecords
}

// Records returns the collected records in delivery order.
func (c *CorpusCollector) Records() []document.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]document.Record(nil), c.records...)
}

// DecodeErrors returns the number of messages that could not be decoded.
func (c *CorpusCollector) DecodeErrors() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.decodeErrs
}

// Reloader is the part of indexer.Engine the reload handler needs.
type Reloader interface {
	Reload(expectedID string) (bool, error)
}

// Invalidator drops cached results computed against an older snapshot.
type Invalidator interface {
	InvalidateAll(ctx context.Context) (int64, error)
}

// ReloadHandler returns a MessageHandler for index.complete events. The
// snapshot is reloaded, and on change the cache (if any) is invalidated.
func ReloadHandler(engine Reloader, cache Invalidator) kafka.MessageHandler {
	logger := slog.Default().With("component", "snapshot-reloader")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[indexer.IndexCompleteEvent](value)
		if err != nil {
			logger.Error("failed to decode index event", "error", err, "key", string(key))
			return nil
		}
		changed, err := engine.Reload(event.SnapshotID)
		if err != nil {
			return fmt.Errorf("reloading snapshot %s: %w", event.SnapshotID, err)
		}
		if !changed {
			logger.Debug("snapshot already served", "snapshot_id", event.SnapshotID)
			return nil
		}
		logger.Info("snapshot reloaded", "snapshot_id", event.SnapshotID, "docs", event.Docs)
		if cache != nil {
			n, err := cache.InvalidateAll(ctx)
			if err != nil {
				logger.Warn("cache invalidation failed", "error", err)
			} else {
				logger.Info("cache invalidated", "keys", n)
			}
		}
		return nil
	}
}
