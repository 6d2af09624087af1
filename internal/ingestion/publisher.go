package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/kafka"
)

const defaultBatchSize = 100

// EventPublisher is the part of kafka.Producer the publisher needs.
type EventPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Report summarises one publish call.
type Report struct {
	Published  int               `json:"published"`
	Duplicates int               `json:"duplicates"`
	Rejected   []ValidationError `json:"rejected,omitempty"`
}

// Publisher validates dataset records and writes them to Kafka keyed by
// dataset id, so every version of a dataset lands on the same partition.
type Publisher struct {
	events    EventPublisher
	batchSize int
	logger    *slog.Logger
}

// NewPublisher returns a Publisher. batchSize <= 0 uses 100.
func NewPublisher(events EventPublisher, batchSize int) *Publisher {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Publisher{
		events:    events,
		batchSize: batchSize,
		logger:    slog.Default().With("component", "dataset-publisher"),
	}
}

type batch struct {
	p      *Publisher
	seen   map[string]struct{}
	events []kafka.Event
	report Report
}

func (p *Publisher) newBatch() *batch {
	return &batch{p: p, seen: make(map[string]struct{})}
}

func (b *batch) add(ctx context.Context, rec document.Record) error {
	if err := ValidateRecord(rec); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			b.report.Rejected = append(b.report.Rejected, *verr)
			b.p.logger.Warn("dataset record rejected", "dataset_id", rec.DatasetID, "error", err)
			return nil
		}
		return err
	}
	if _, dup := b.seen[rec.DatasetID]; dup {
		b.report.Duplicates++
		return nil
	}
	b.seen[rec.DatasetID] = struct{}{}
	b.events = append(b.events, kafka.Event{Key: rec.DatasetID, Value: rec})
	if len(b.events) >= b.p.batchSize {
		return b.flush(ctx)
	}
	return nil
}

func (b *batch) flush(ctx context.Context) error {
	if len(b.events) == 0 {
		return nil
	}
	if err := b.p.events.PublishBatch(ctx, b.events); err != nil {
		return fmt.Errorf("publishing %d dataset records: %w", len(b.events), err)
	}
	b.report.Published += len(b.events)
	b.events = b.events[:0]
	return nil
}

// Publish validates and publishes records. Invalid records are reported and
// skipped; repeated dataset ids keep the first record. A Kafka failure stops
// the call and the report covers what was published before it.
func (p *Publisher) Publish(ctx context.Context, records []document.Record) (Report, error) {
	b := p.newBatch()
	for _, rec := range records {
		if err := b.add(ctx, rec); err != nil {
			return b.report, err
		}
	}
	err := b.flush(ctx)
	return b.report, err
}

// PublishStream publishes a JSON-lines corpus read from r.
func (p *Publisher) PublishStream(ctx context.Context, r io.Reader) (Report, error) {
	b := p.newBatch()
	err := document.ReadRecords(r, func(rec document.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return b.add(ctx, rec)
	})
	if err != nil {
		return b.report, err
	}
	err = b.flush(ctx)
	if err == nil {
		p.logger.Info("corpus published",
			"published", b.report.Published,
			"duplicates", b.report.Duplicates,
			"rejected", len(b.report.Rejected),
		)
	}
	return b.report, err
}
