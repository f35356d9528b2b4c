// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists a log of completed federated searches in
// SQLite and answers recent-search and per-database failure queries.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const (
	defaultLimit = 20
	maxLimit     = 1000

	// timeLayout has fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Store is the search history database. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the history database at path, creating the
// parent directory and schema when missing.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS searches (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			query TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			total_results INTEGER NOT NULL,
			response_time_ms INTEGER NOT NULL,
			databases_queried TEXT,
			successful_databases TEXT,
			failed_databases TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_searches_timestamp ON searches(timestamp)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record appends one search. A record with an existing ID replaces it.
func (s *Store) Record(ctx context.Context, rec types.SearchRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("search record has no id")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	queried, _ := json.Marshal(nonNil(rec.DatabasesQueried))
	succeeded, _ := json.Marshal(nonNil(rec.SuccessfulDatabases))
	failed, _ := json.Marshal(nonNil(rec.FailedDatabases))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO searches (id, query, timestamp, total_results, response_time_ms,
			databases_queried, successful_databases, failed_databases)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			query=excluded.query, timestamp=excluded.timestamp,
			total_results=excluded.total_results, response_time_ms=excluded.response_time_ms,
			databases_queried=excluded.databases_queried,
			successful_databases=excluded.successful_databases,
			failed_databases=excluded.failed_databases`,
		rec.ID, rec.Query, rec.Timestamp.UTC().Format(timeLayout),
		rec.TotalResults, rec.ResponseTimeMS,
		string(queried), string(succeeded), string(failed),
	)
	if err != nil {
		return fmt.Errorf("inserting search record: %w", err)
	}
	return nil
}

// Filter narrows a history query. Zero fields match everything.
type Filter struct {
	// Contains matches a case-insensitive substring of the query text.
	Contains string

	// Database keeps searches that queried this provider.
	Database string

	// FailedOnly keeps searches in which at least one provider failed.
	FailedOnly bool

	Since time.Time

	// Limit caps the result count. Zero uses 20.
	Limit int
}

// Query returns searches matching f, newest first.
func (s *Store) Query(ctx context.Context, f Filter) ([]types.SearchRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT id, query, timestamp, total_results, response_time_ms,
			databases_queried, successful_databases, failed_databases
		FROM searches s
		WHERE 1=1`)

	if f.Contains != "" {
		qb.WriteString(` AND lower(s.query) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(f.Contains))+"%")
	}
	if f.Database != "" {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(s.databases_queried) WHERE value = ?)`)
		args = append(args, f.Database)
	}
	if f.FailedOnly {
		qb.WriteString(` AND json_array_length(s.failed_databases) > 0`)
	}
	if !f.Since.IsZero() {
		qb.WriteString(` AND s.timestamp >= ?`)
		args = append(args, f.Since.UTC().Format(timeLayout))
	}

	qb.WriteString(` ORDER BY s.timestamp DESC, s.rowid DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	records := []types.SearchRecord{}
	for rows.Next() {
		var rec types.SearchRecord
		var ts string
		var queried, succeeded, failed sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Query, &ts, &rec.TotalResults, &rec.ResponseTimeMS,
			&queried, &succeeded, &failed); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rec.Timestamp, _ = time.Parse(timeLayout, ts)
		rec.DatabasesQueried = decodeList(queried)
		rec.SuccessfulDatabases = decodeList(succeeded)
		rec.FailedDatabases = decodeList(failed)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Summary aggregates the whole history.
type Summary struct {
	Searches          int            `json:"searches" yaml:"searches"`
	AvgResponseTimeMS float64        `json:"avg_response_time_ms" yaml:"avg_response_time_ms"`
	AvgResults        float64        `json:"avg_results" yaml:"avg_results"`
	Failures          map[string]int `json:"failures" yaml:"failures"`
}

// Summarize counts searches and per-database failures.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	sum := Summary{Failures: map[string]int{}}
	var avgMS, avgResults sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*), avg(response_time_ms), avg(total_results) FROM searches`,
	).Scan(&sum.Searches, &avgMS, &avgResults); err != nil {
		return Summary{}, fmt.Errorf("summarizing history: %w", err)
	}
	sum.AvgResponseTimeMS = avgMS.Float64
	sum.AvgResults = avgResults.Float64

	rows, err := s.db.QueryContext(ctx,
		`SELECT j.value, count(*) FROM searches s, json_each(s.failed_databases) j GROUP BY j.value`)
	if err != nil {
		return Summary{}, fmt.Errorf("counting failures: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return Summary{}, fmt.Errorf("scanning row: %w", err)
		}
		sum.Failures[name] = n
	}
	return sum, rows.Err()
}

func decodeList(v sql.NullString) []string {
	out := []string{}
	if v.Valid && v.String != "" {
		json.Unmarshal([]byte(v.String), &out)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
