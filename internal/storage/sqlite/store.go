// Package sqlite is the SQLite implementation of the comparison store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/research-compare/internal/storage"
)

// Store is a SQLite implementation of ComparisonStore.
type Store struct {
	db *sql.DB
}

var _ storage.ComparisonStore = (*Store)(nil)

// New creates a new SQLite store.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS comparisons (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			request TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			duration_ns INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			comparison_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			position INTEGER NOT NULL,
			status TEXT NOT NULL,
			raw TEXT,
			normalized TEXT NOT NULL,
			duration_ns INTEGER NOT NULL,
			PRIMARY KEY (comparison_id, provider),
			FOREIGN KEY (comparison_id) REFERENCES comparisons(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comparisons_started ON comparisons(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_comparison ON outcomes(comparison_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// SaveComparison persists a comparison and all of its outcomes in one
// transaction.
func (s *Store) SaveComparison(ctx context.Context, rec *storage.ComparisonRecord) error {
	rec.CreatedAt = time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO comparisons (id, query, request, started_at, duration_ns, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, query,
		rec.ID, rec.Query, string(rec.Request), rec.StartedAt, int64(rec.Duration), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert comparison: %w", err)
	}

	outcomeQuery := `INSERT INTO outcomes (comparison_id, provider, position, status, raw, normalized, duration_ns)
	                 VALUES (?, ?, ?, ?, ?, ?, ?)`

	for _, o := range rec.Outcomes {
		_, err = tx.ExecContext(ctx, outcomeQuery,
			rec.ID, o.Provider, o.Position, o.Status, string(o.Raw), string(o.Normalized), o.DurationNS)
		if err != nil {
			return fmt.Errorf("failed to insert outcome for %s: %w", o.Provider, err)
		}
	}

	return tx.Commit()
}

// GetComparison loads one comparison with its outcomes in submission order.
func (s *Store) GetComparison(ctx context.Context, id string) (*storage.ComparisonRecord, error) {
	query := `SELECT id, query, request, started_at, duration_ns, created_at
	          FROM comparisons WHERE id = ?`

	var rec storage.ComparisonRecord
	var requestStr string
	var durationNS int64

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.Query, &requestStr, &rec.StartedAt, &durationNS, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comparison: %w", err)
	}

	rec.Request = []byte(requestStr)
	rec.Duration = time.Duration(durationNS)

	outcomes, err := s.getOutcomes(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Outcomes = outcomes

	return &rec, nil
}

func (s *Store) getOutcomes(ctx context.Context, comparisonID string) ([]storage.OutcomeRecord, error) {
	query := `SELECT comparison_id, provider, position, status, raw, normalized, duration_ns
	          FROM outcomes WHERE comparison_id = ?
	          ORDER BY position ASC`

	rows, err := s.db.QueryContext(ctx, query, comparisonID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []storage.OutcomeRecord
	for rows.Next() {
		var o storage.OutcomeRecord
		var rawStr, normalizedStr sql.NullString

		if err := rows.Scan(&o.ComparisonID, &o.Provider, &o.Position, &o.Status,
			&rawStr, &normalizedStr, &o.DurationNS); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}

		if rawStr.Valid && rawStr.String != "" {
			o.Raw = []byte(rawStr.String)
		}
		if normalizedStr.Valid {
			o.Normalized = []byte(normalizedStr.String)
		}

		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}

// ListComparisons returns comparisons newest first.
func (s *Store) ListComparisons(ctx context.Context, opts storage.ListOptions) ([]*storage.ComparisonRecord, error) {
	query := `SELECT id, query, request, started_at, duration_ns, created_at
	          FROM comparisons
	          ORDER BY started_at DESC
	          LIMIT ? OFFSET ?`

	limit := opts.Limit
	if limit == 0 {
		limit = 100 // default limit
	}

	rows, err := s.db.QueryContext(ctx, query, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query comparisons: %w", err)
	}
	defer rows.Close()

	var records []*storage.ComparisonRecord
	for rows.Next() {
		var rec storage.ComparisonRecord
		var requestStr string
		var durationNS int64

		if err := rows.Scan(&rec.ID, &rec.Query, &requestStr,
			&rec.StartedAt, &durationNS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comparison: %w", err)
		}

		rec.Request = []byte(requestStr)
		rec.Duration = time.Duration(durationNS)

		outcomes, err := s.getOutcomes(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		rec.Outcomes = outcomes

		records = append(records, &rec)
	}

	return records, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
