// Package registry implements an optional SQLite manifest of training
// runs and the checkpoint files they produced, for ablation
// bookkeeping.
package registry

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a run id is not in the registry.
var ErrNotFound = errors.New("registry: run not found")

// RunMeta describes a run when it is registered.
type RunMeta struct {
	Tag          string
	Dataset      string
	Seed         uint64
	LearningRate float64
	Quota        int
}

// Run is a registered run.
type Run struct {
	ID        string
	Tag       string
	Dataset   string
	Seed      uint64
	LearnRate float64
	Quota     int
	StartedAt time.Time
}

// CheckpointRecord is one saved checkpoint file.
type CheckpointRecord struct {
	RunID     string
	Index     int
	Acc       float64
	Seed      uint64
	Tag       string
	Path      string
	Bytes     int64
	CreatedAt time.Time
}

// Stats summarizes the checkpoints of one run.
type Stats struct {
	Count      int
	MeanBytes  float64
	FirstIndex int
	LastIndex  int
}

// Registry is a SQLite-backed manifest. The zero value is not usable;
// call Open.
type Registry struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if necessary) the registry database at path.
func Open(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("registry: create %v: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("registry: open %v: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: apply schema: %w", err)
	}

	return &Registry{db: db}, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Close()
}

// CreateRun registers a new run and returns its id.
func (r *Registry) CreateRun(meta RunMeta) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	_, err := r.db.Exec(
		`INSERT INTO runs (id, tag, dataset, seed, learning_rate, quota,
			started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, meta.Tag, meta.Dataset, int64(meta.Seed), meta.LearningRate,
		meta.Quota, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("registry: create run: %w", err)
	}
	return id, nil
}

// RecordCheckpoint records one saved checkpoint file of a run.
func (r *Registry) RecordCheckpoint(rec CheckpointRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(
		`INSERT INTO checkpoints (run_id, idx, acc, seed, tag, path,
			bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Index, rec.Acc, int64(rec.Seed), rec.Tag, rec.Path,
		rec.Bytes, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("registry: record checkpoint %v of run %v: %w",
			rec.Index, rec.RunID, err)
	}
	return nil
}

// Runs returns every registered run, newest first.
func (r *Registry) Runs() ([]Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(
		`SELECT id, tag, dataset, seed, learning_rate, quota, started_at
		 FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("registry: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var seed int64
		var startedAt string
		if err := rows.Scan(&run.ID, &run.Tag, &run.Dataset, &seed,
			&run.LearnRate, &run.Quota, &startedAt); err != nil {
			return nil, fmt.Errorf("registry: scan run: %w", err)
		}
		run.Seed = uint64(seed)
		run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Checkpoints returns the checkpoints of a run in save order.
func (r *Registry) Checkpoints(runID string) ([]CheckpointRecord,
	error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.runExists(runID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(
		`SELECT run_id, idx, acc, seed, tag, path, bytes, created_at
		 FROM checkpoints WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("registry: list checkpoints: %w", err)
	}
	defer rows.Close()

	var recs []CheckpointRecord
	for rows.Next() {
		var rec CheckpointRecord
		var seed int64
		var createdAt string
		if err := rows.Scan(&rec.RunID, &rec.Index, &rec.Acc, &seed,
			&rec.Tag, &rec.Path, &rec.Bytes, &createdAt); err != nil {
			return nil, fmt.Errorf("registry: scan checkpoint: %w", err)
		}
		rec.Seed = uint64(seed)
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Stats summarizes the checkpoints recorded for a run.
func (r *Registry) Stats(runID string) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.runExists(runID); err != nil {
		return Stats{}, err
	}

	var s Stats
	err := r.db.QueryRow(
		`SELECT COUNT(*), COALESCE(AVG(bytes), 0),
			COALESCE(MIN(idx), 0), COALESCE(MAX(idx), 0)
		 FROM checkpoints WHERE run_id = ?`, runID).
		Scan(&s.Count, &s.MeanBytes, &s.FirstIndex, &s.LastIndex)
	if err != nil {
		return Stats{}, fmt.Errorf("registry: stats for %v: %w", runID, err)
	}
	return s, nil
}

// runExists checks that runID is registered. Callers must hold mu.
func (r *Registry) runExists(runID string) error {
	var one int
	err := r.db.QueryRow(`SELECT 1 FROM runs WHERE id = ?`, runID).
		Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("registry: lookup run %v: %w", runID, err)
	}
	return nil
}
