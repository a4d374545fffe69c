package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/internal/hist"
	"github.com/huangsam/skysig/schema"
)

// Object is one serialized histogram of a run subtree.
type Object struct {
	Category schema.Category
	Name     string
	Kind     string
	Payload  []byte
}

// Subtree is the complete stored content of one run id.
type Subtree struct {
	Pair     schema.RunPair
	Objects  []Object
	Summary  schema.RunSummaryRecord
	Imported bool
}

// Histogram decodes one object of the subtree.
func (t *Subtree) Histogram(cat schema.Category, name string) (hist.Histogram, error) {
	for _, o := range t.Objects {
		if o.Category == cat && o.Name == name {
			return hist.Decode(o.Payload)
		}
	}
	return nil, fmt.Errorf("run %s has no object %s/%s: %w", t.Pair, cat, name, ErrRunNotFound)
}

// Set decodes every object of a category into a histogram set keyed by object name.
func (t *Subtree) Set(cat schema.Category) (hist.Set, error) {
	set := make(hist.Set)
	for _, o := range t.Objects {
		if o.Category != cat {
			continue
		}
		h, err := hist.Decode(o.Payload)
		if err != nil {
			return nil, fmt.Errorf("object %s/%s: %w", cat, o.Name, err)
		}
		set[schema.Quantity(o.Name)] = h
	}
	return set, nil
}

// RunWriter collects the objects of one run subtree and writes them in a single
// transaction on Commit.
type RunWriter struct {
	store    *ResultStore
	pair     schema.RunPair
	objects  []Object
	summary  *schema.RunSummaryRecord
	imported bool
}

// Pair returns the pair the writer belongs to.
func (w *RunWriter) Pair() schema.RunPair {
	return w.pair
}

// Put adds one histogram under category and name.
func (w *RunWriter) Put(cat schema.Category, name string, h hist.Histogram) error {
	payload, err := hist.Encode(h)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", cat, name, err)
	}
	w.objects = append(w.objects, Object{Category: cat, Name: name, Kind: h.Kind().String(), Payload: payload})
	return nil
}

// PutSet adds every histogram of a set, named by quantity.
func (w *RunWriter) PutSet(cat schema.Category, set hist.Set) error {
	for _, q := range set.Quantities() {
		if err := w.Put(cat, string(q), set[q]); err != nil {
			return err
		}
	}
	return nil
}

// SetSummary sets the summary row of the subtree.
func (w *RunWriter) SetSummary(rec schema.RunSummaryRecord) {
	w.summary = &rec
}

// Commit writes the subtree. A run id can be written only once.
func (w *RunWriter) Commit(ctx context.Context) error {
	s := w.store
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.invocation == "" {
		return errors.New("no invocation in progress")
	}
	if w.summary == nil {
		return fmt.Errorf("run %s has no summary record", w.pair)
	}

	lock := s.runLock(w.pair.ID())
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	checkQuery := s.rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE run_id = ?`, quoteTableName(runsTable, s.backend)))
	if err := tx.QueryRowContext(ctx, checkQuery, w.pair.ID()).Scan(&existing); err != nil {
		return fmt.Errorf("failed to check run %s: %w", w.pair, err)
	}
	if existing > 0 {
		return fmt.Errorf("run %s: %w", contract.FormatRunID(w.pair.ID()), ErrRunExists)
	}

	objectQuery := s.rebind(fmt.Sprintf(`INSERT INTO %s (run_id, category, name, kind, payload) VALUES (?, ?, ?, ?, ?)`,
		quoteTableName(objectsTable, s.backend)))
	for _, o := range w.objects {
		if _, err := tx.ExecContext(ctx, objectQuery, w.pair.ID(), string(o.Category), o.Name, o.Kind, string(o.Payload)); err != nil {
			return fmt.Errorf("failed to write object %s/%s of run %s: %w", o.Category, o.Name, w.pair, err)
		}
	}

	record, err := json.Marshal(w.summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary of run %s: %w", w.pair, err)
	}
	maxSig := math.Max(w.summary.MaxSigCorrelated, w.summary.MaxSigUncorrelated)
	summaryQuery := s.rebind(fmt.Sprintf(`INSERT INTO %s (run_id, run_off, significance, max_significance, record) VALUES (?, ?, ?, ?, ?)`,
		quoteTableName(summaryTable, s.backend)))
	if _, err := tx.ExecContext(ctx, summaryQuery, w.pair.ID(), w.pair.Off, w.summary.Significance, maxSig, string(record)); err != nil {
		return fmt.Errorf("failed to write summary of run %s: %w", w.pair, err)
	}

	imported := 0
	if w.imported {
		imported = 1
	}
	runQuery := s.rebind(fmt.Sprintf(`INSERT INTO %s (run_id, run_off, invocation_id, written_at, imported, complete) VALUES (?, ?, ?, ?, ?, 1)`,
		quoteTableName(runsTable, s.backend)))
	if _, err := tx.ExecContext(ctx, runQuery, w.pair.ID(), w.pair.Off, s.invocation, formatTime(time.Now(), s.backend), imported); err != nil {
		return fmt.Errorf("failed to write run %s: %w", w.pair, err)
	}
	return tx.Commit()
}

// ReadRun returns the complete subtree of runID.
func (s *ResultStore) ReadRun(ctx context.Context, runID int) (*Subtree, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var runOff, imported, complete int
	runQuery := s.rebind(fmt.Sprintf(`SELECT run_off, imported, complete FROM %s WHERE run_id = ?`, quoteTableName(runsTable, s.backend)))
	err := s.db.QueryRowContext(ctx, runQuery, runID).Scan(&runOff, &imported, &complete)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && complete != 1) {
		return nil, fmt.Errorf("run %s: %w", contract.FormatRunID(runID), ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", contract.FormatRunID(runID), err)
	}

	sub := &Subtree{Pair: schema.RunPair{On: runID, Off: runOff}, Imported: imported == 1}
	summary, err := s.Summary(ctx, runID)
	if err != nil {
		return nil, err
	}
	sub.Summary = summary

	objectQuery := s.rebind(fmt.Sprintf(`SELECT category, name, kind, payload FROM %s WHERE run_id = ? ORDER BY category, name`,
		quoteTableName(objectsTable, s.backend)))
	rows, err := s.db.QueryContext(ctx, objectQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query objects of run %s: %w", contract.FormatRunID(runID), err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var o Object
		var cat, payload string
		if err := rows.Scan(&cat, &o.Name, &o.Kind, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		o.Category = schema.Category(cat)
		o.Payload = []byte(payload)
		sub.Objects = append(sub.Objects, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating objects: %w", err)
	}
	return sub, nil
}

// ImportRun copies a subtree read from another store without modification.
func (s *ResultStore) ImportRun(ctx context.Context, sub *Subtree) error {
	w := s.Run(sub.Pair)
	w.objects = append(w.objects, sub.Objects...)
	w.SetSummary(sub.Summary)
	w.imported = true
	return w.Commit(ctx)
}

// Object decodes one stored histogram.
func (s *ResultStore) Object(ctx context.Context, runID int, cat schema.Category, name string) (hist.Histogram, error) {
	query := s.rebind(fmt.Sprintf(`SELECT payload FROM %s WHERE run_id = ? AND category = ? AND name = ?`,
		quoteTableName(objectsTable, s.backend)))
	var payload string
	err := s.db.QueryRowContext(ctx, query, runID, string(cat), name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s has no object %s/%s: %w", contract.FormatRunID(runID), cat, name, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return hist.Decode([]byte(payload))
}

// ListObjects lists the objects of a run without decoding them.
func (s *ResultStore) ListObjects(ctx context.Context, runID int) ([]schema.ObjectInfo, error) {
	query := s.rebind(fmt.Sprintf(`SELECT category, name, kind FROM %s WHERE run_id = ? ORDER BY category, name`,
		quoteTableName(objectsTable, s.backend)))
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.ObjectInfo
	for rows.Next() {
		info := schema.ObjectInfo{RunID: runID}
		var cat string
		if err := rows.Scan(&cat, &info.Name, &info.Kind); err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		info.Category = schema.Category(cat)
		results = append(results, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating objects: %w", err)
	}
	return results, nil
}
