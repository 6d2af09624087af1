package run

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/resilience"
)

// Schema creates the run_results table. Rows are keyed by run, query and
// rank so that rewriting a query replaces its previous ranking.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS run_results (
		run_id      TEXT             NOT NULL,
		query_id    TEXT             NOT NULL,
		rank        INTEGER          NOT NULL,
		dataset_id  TEXT             NOT NULL,
		score       DOUBLE PRECISION NOT NULL,
		unigram     DOUBLE PRECISION NOT NULL,
		ordered     DOUBLE PRECISION NOT NULL,
		unordered   DOUBLE PRECISION NOT NULL,
		profile     TEXT             NOT NULL,
		snapshot_id TEXT             NOT NULL,
		created_at  TIMESTAMPTZ      NOT NULL DEFAULT now(),
		PRIMARY KEY (run_id, query_id, rank)
	)`,
	`CREATE INDEX IF NOT EXISTS run_results_dataset_idx ON run_results (run_id, dataset_id)`,
}

var copyColumns = []string{
	"run_id", "query_id", "rank", "dataset_id", "score",
	"unigram", "ordered", "unordered", "profile", "snapshot_id",
}

// Row is one stored ranking line.
type Row struct {
	RunID      string
	QueryID    string
	Rank       int
	DatasetID  string
	Score      float64
	Unigram    float64
	Ordered    float64
	Unordered  float64
	Profile    string
	SnapshotID string
}

// Rows flattens a result into stored rows with the same rank numbering and
// duplicate suppression as the run file.
func Rows(runID string, result *executor.SearchResult) []Row {
	rows := make([]Row, 0, len(result.Results))
	seen := make(map[string]struct{}, len(result.Results))
	for _, doc := range result.Results {
		if _, dup := seen[doc.DocID]; dup {
			continue
		}
		seen[doc.DocID] = struct{}{}
		rows = append(rows, Row{
			RunID:      runID,
			QueryID:    result.QueryID,
			Rank:       len(rows),
			DatasetID:  doc.DocID,
			Score:      doc.Score,
			Unigram:    doc.Parts.Unigram,
			Ordered:    doc.Parts.Ordered,
			Unordered:  doc.Parts.Unordered,
			Profile:    result.Profile,
			SnapshotID: result.SnapshotID,
		})
	}
	return rows
}

// PostgresStore writes rankings to run_results, one transaction per query.
type PostgresStore struct {
	db     *postgres.Client
	runID  string
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// NewPostgresStore returns a store writing rows tagged with runID.
func NewPostgresStore(db *postgres.Client, runID string) *PostgresStore {
	return &PostgresStore{
		db:     db,
		runID:  runID,
		logger: slog.Default().With("component", "run-store", "run_id", runID),
	}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if err := s.db.Migrate(ctx, Schema...); err != nil {
		return fmt.Errorf("migrating run store: %w", err)
	}
	return nil
}

// Write replaces the stored ranking of result's query. Transient failures
// are retried with backoff; each attempt starts by deleting earlier rows so
// a retry never duplicates them.
func (s *PostgresStore) Write(ctx context.Context, result *executor.SearchResult) error {
	rows := Rows(s.runID, result)
	err := resilience.Retry(ctx, "run-store-write", s.retry, func() error {
		return s.db.InTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM run_results WHERE run_id = $1 AND query_id = $2`,
				s.runID, result.QueryID); err != nil {
				return fmt.Errorf("clearing previous rows: %w", err)
			}
			if len(rows) == 0 {
				return nil
			}
			return copyRows(ctx, tx, rows)
		})
	})
	if err != nil {
		return fmt.Errorf("storing results of query %s: %w", result.QueryID, err)
	}
	s.logger.Debug("stored ranking", "query_id", result.QueryID, "rows", len(rows))
	return nil
}

func copyRows(ctx context.Context, tx *sql.Tx, rows []Row) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("run_results", copyColumns...))
	if err != nil {
		return fmt.Errorf("preparing copy: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.RunID, r.QueryID, r.Rank, r.DatasetID, r.Score,
			r.Unigram, r.Ordered, r.Unordered, r.Profile, r.SnapshotID,
		); err != nil {
			return fmt.Errorf("copying row %d: %w", r.Rank, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flushing copy: %w", err)
	}
	return nil
}

// Results loads the stored ranking of one query in rank order.
func (s *PostgresStore) Results(ctx context.Context, queryID string) ([]Row, error) {
	rs, err := s.db.DB.QueryContext(ctx,
		`SELECT run_id, query_id, rank, dataset_id, score, unigram, ordered, unordered, profile, snapshot_id
		FROM run_results WHERE run_id = $1 AND query_id = $2 ORDER BY rank`,
		s.runID, queryID)
	if err != nil {
		return nil, fmt.Errorf("querying run results: %w", err)
	}
	defer rs.Close()

	var out []Row
	for rs.Next() {
		var r Row
		if err := rs.Scan(&r.RunID, &r.QueryID, &r.Rank, &r.DatasetID, &r.Score,
			&r.Unigram, &r.Ordered, &r.Unordered, &r.Profile, &r.SnapshotID); err != nil {
			return nil, fmt.Errorf("scanning run result: %w", err)
		}
		out = append(out, r)
	}
	return out, rs.Err()
}
