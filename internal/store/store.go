// Package store is the append-only result store of an invocation.
// Every run id owns a subtree of histogram objects and one summary row.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/schema"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// Table names of the result store.
const (
	invocationsTable = "skysig_invocations"
	runsTable        = "skysig_runs"
	objectsTable     = "skysig_objects"
	summaryTable     = "skysig_summary"
)

var (
	// ErrRunNotFound is returned when a run subtree is missing or incomplete.
	ErrRunNotFound = errors.New("run subtree not found")
	// ErrRunExists is returned when a run id is written twice.
	ErrRunExists = errors.New("run subtree already exists")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("result store is closed")
)

// ResultStore persists run subtrees in a SQL database.
type ResultStore struct {
	db         *sql.DB
	backend    schema.DatabaseBackend
	invocation string

	mu     sync.Mutex
	locks  map[int]*sync.Mutex
	closed bool

	closeOnce sync.Once
	closeErr  error
}

// Open connects to the backend and migrates the schema to the latest version.
func Open(backend schema.DatabaseBackend, connStr string) (*ResultStore, error) {
	db, err := openDB(backend, connStr)
	if err != nil {
		return nil, err
	}
	if err := migrateUp(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create result tables: %w", err)
	}
	return &ResultStore{db: db, backend: backend, locks: make(map[int]*sync.Mutex)}, nil
}

func openDB(backend schema.DatabaseBackend, connStr string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	switch backend {
	case schema.SQLiteBackend:
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetStoreDBFilePath()
		}
		db, err = sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database at %q: %w. Check that the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)

	case schema.MySQLBackend:
		// DATETIME columns are scanned into time.Time
		cfg, perr := mysql.ParseDSN(connStr)
		if perr != nil {
			return nil, fmt.Errorf("invalid MySQL connection string: %w", perr)
		}
		cfg.ParseTime = true
		db, err = sql.Open("mysql", cfg.FormatDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open MySQL database: %w. Check connection string format: user:password@tcp(host:port)/dbname", err)
		}

	case schema.PostgreSQLBackend:
		db, err = sql.Open("pgx", connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w. Check connection string format: host=... dbname=...", err)
		}

	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w. Verify the database server is running and accessible", backend, err)
	}
	return db, nil
}

// Backend returns the configured backend.
func (s *ResultStore) Backend() schema.DatabaseBackend {
	return s.backend
}

// Invocation returns the id of the current invocation, empty before Begin.
func (s *ResultStore) Invocation() string {
	return s.invocation
}

// Begin records a new invocation and returns its id.
func (s *ResultStore) Begin(ctx context.Context, mode schema.Mode, pairCount int) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	query := s.rebind(fmt.Sprintf(`INSERT INTO %s (invocation_id, mode, started_at, pair_count, complete) VALUES (?, ?, ?, ?, 0)`,
		quoteTableName(invocationsTable, s.backend)))
	if _, err := s.db.ExecContext(ctx, query, id, string(mode), formatTime(time.Now(), s.backend), pairCount); err != nil {
		return "", fmt.Errorf("failed to insert invocation: %w", err)
	}
	s.invocation = id
	return id, nil
}

// MarkComplete flags the current invocation as finished without a fatal abort.
func (s *ResultStore) MarkComplete(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.invocation == "" {
		return errors.New("no invocation in progress")
	}
	query := s.rebind(fmt.Sprintf(`UPDATE %s SET finished_at = ?, complete = 1 WHERE invocation_id = ?`,
		quoteTableName(invocationsTable, s.backend)))
	if _, err := s.db.ExecContext(ctx, query, formatTime(time.Now(), s.backend), s.invocation); err != nil {
		return fmt.Errorf("failed to complete invocation: %w", err)
	}
	return nil
}

// Run returns a destination handle for the subtree of a pair.
func (s *ResultStore) Run(pair schema.RunPair) *RunWriter {
	return &RunWriter{store: s, pair: pair}
}

// runLock returns the lock serializing writes to one run id.
func (s *ResultStore) runLock(runID int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[runID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[runID] = l
	}
	return l
}

func (s *ResultStore) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// HasRun reports whether a complete subtree exists for runID.
func (s *ResultStore) HasRun(ctx context.Context, runID int) (bool, error) {
	query := s.rebind(fmt.Sprintf(`SELECT complete FROM %s WHERE run_id = ?`, quoteTableName(runsTable, s.backend)))
	var complete int
	err := s.db.QueryRowContext(ctx, query, runID).Scan(&complete)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up run %d: %w", runID, err)
	}
	return complete == 1, nil
}

// Summaries returns every summary row, per-run rows by run id and the combined row last.
func (s *ResultStore) Summaries(ctx context.Context) ([]schema.RunSummaryRecord, error) {
	query := fmt.Sprintf(`SELECT record FROM %s ORDER BY CASE WHEN run_id < 0 THEN 1 ELSE 0 END, run_id`,
		quoteTableName(summaryTable, s.backend))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RunSummaryRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		var rec schema.RunSummaryRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode summary: %w", err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}
	return results, nil
}

// Summary returns the summary row of one run id.
func (s *ResultStore) Summary(ctx context.Context, runID int) (schema.RunSummaryRecord, error) {
	query := s.rebind(fmt.Sprintf(`SELECT record FROM %s WHERE run_id = ?`, quoteTableName(summaryTable, s.backend)))
	var raw string
	err := s.db.QueryRowContext(ctx, query, runID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.RunSummaryRecord{}, fmt.Errorf("run %s: %w", contract.FormatRunID(runID), ErrRunNotFound)
	}
	if err != nil {
		return schema.RunSummaryRecord{}, fmt.Errorf("failed to query summary: %w", err)
	}
	var rec schema.RunSummaryRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return schema.RunSummaryRecord{}, fmt.Errorf("failed to decode summary: %w", err)
	}
	return rec, nil
}

// Invocations returns every recorded invocation, oldest first.
func (s *ResultStore) Invocations(ctx context.Context) ([]schema.InvocationRecord, error) {
	query := fmt.Sprintf(`SELECT invocation_id, mode, started_at, finished_at, pair_count, complete FROM %s ORDER BY started_at`,
		quoteTableName(invocationsTable, s.backend))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query invocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.InvocationRecord
	for rows.Next() {
		var rec schema.InvocationRecord
		var mode string
		var complete int
		switch s.backend {
		case schema.SQLiteBackend:
			var started string
			var finished *string
			if err := rows.Scan(&rec.InvocationID, &mode, &started, &finished, &rec.PairCount, &complete); err != nil {
				return nil, fmt.Errorf("failed to scan invocation: %w", err)
			}
			t, err := time.Parse(time.RFC3339Nano, started)
			if err != nil {
				return nil, fmt.Errorf("failed to parse started_at: %w", err)
			}
			rec.StartedAt = t
			if finished != nil {
				f, err := time.Parse(time.RFC3339Nano, *finished)
				if err != nil {
					return nil, fmt.Errorf("failed to parse finished_at: %w", err)
				}
				rec.FinishedAt = &f
			}
		default: // MySQL and PostgreSQL store as native datetime
			if err := rows.Scan(&rec.InvocationID, &mode, &rec.StartedAt, &rec.FinishedAt, &rec.PairCount, &complete); err != nil {
				return nil, fmt.Errorf("failed to scan invocation: %w", err)
			}
		}
		rec.Mode = schema.Mode(mode)
		rec.Complete = complete == 1
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invocations: %w", err)
	}
	return results, nil
}

// Status returns status information about the result store.
func (s *ResultStore) Status(ctx context.Context) (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:    string(s.backend),
		Connected:  s.db != nil,
		TableSizes: make(map[string]int64),
	}

	versionQuery := fmt.Sprintf("SELECT version FROM %s LIMIT 1", quoteTableName(migrationsTable, s.backend))
	var version int64
	if err := s.db.QueryRowContext(ctx, versionQuery).Scan(&version); err == nil && version > 0 {
		status.SchemaVersion = uint(version)
	}

	invocations, err := s.Invocations(ctx)
	if err != nil {
		return status, err
	}
	status.TotalInvocations = len(invocations)
	if n := len(invocations); n > 0 {
		last := invocations[n-1]
		status.LastInvocationID = last.InvocationID
		status.LastInvocationTime = last.StartedAt
		status.LastMode = last.Mode
		status.Complete = last.Complete
	}

	runsQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE run_id >= 0 AND complete = 1", quoteTableName(runsTable, s.backend))
	if err := s.db.QueryRowContext(ctx, runsQuery).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to count runs: %w", err)
	}
	has, err := s.HasRun(ctx, schema.CombinedRunID)
	if err != nil {
		return status, err
	}
	status.HasCombined = has

	for _, table := range []string{invocationsTable, runsTable, objectsTable, summaryTable} {
		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, s.backend))
		var count int64
		if err := s.db.QueryRowContext(ctx, countQuery).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	return status, nil
}

// Clear deletes every stored row. The schema is kept.
func (s *ResultStore) Clear(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{summaryTable, objectsTable, runsTable, invocationsTable} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", quoteTableName(table, s.backend))); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying connection. Later calls return the first result.
func (s *ResultStore) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// rebind rewrites ? placeholders into the backend's style.
func (s *ResultStore) rebind(query string) string {
	if s.backend != schema.PostgreSQLBackend {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// quoteTableName quotes a table name for the backend.
func quoteTableName(name string, backend schema.DatabaseBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return "`" + name + "`"
	default:
		return `"` + name + `"`
	}
}

// formatTime converts a time.Time to the appropriate format for the backend.
func formatTime(t time.Time, backend schema.DatabaseBackend) any {
	switch backend {
	case schema.SQLiteBackend:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return t
	}
}
