package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/nvandessel/migsim/internal/phylogeny"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteRunStore implements RunStore on a single SQLite file.
type SQLiteRunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

var _ RunStore = (*SQLiteRunStore)(nil)

// NewSQLiteRunStore opens or creates the archive at dbPath, creating parent
// directories as needed.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string { return s.dbPath }

// SaveRun stores run, its tally, labels and edges in one transaction. The
// assigned ID and creation time are written back to run.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, run *Run) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (
			created_at, birth_rate, migration_probability, generations, sites,
			seed, rescale_iterations, root_length, node_count, leaf_count, migrations
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.CreatedAt.Format(time.RFC3339Nano), run.BirthRate, run.MigrationProbability,
		run.Generations, run.Sites, strconv.FormatUint(run.Seed, 10), run.RescaleIterations,
		run.RootLength, run.Nodes, run.Leaves, run.Migrations)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	if err := insertTally(ctx, tx, id, run.Tally); err != nil {
		return 0, err
	}
	if err := insertVertices(ctx, tx, id, run.Labels); err != nil {
		return 0, err
	}
	if err := insertEdges(ctx, tx, id, run.Edges); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	run.ID = id
	return id, nil
}

func insertTally(ctx context.Context, tx *sql.Tx, id int64, tally [][]int) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tally (run_id, origin, destination, count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare tally insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range tally {
		for j, count := range row {
			if count == 0 {
				continue
			}
			if _, err := stmt.ExecContext(ctx, id, i, j, count); err != nil {
				return fmt.Errorf("failed to insert tally cell (%d,%d): %w", i, j, err)
			}
		}
	}
	return nil
}

func insertVertices(ctx context.Context, tx *sql.Tx, id int64, labels []int) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vertices (run_id, vertex, label) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare vertex insert: %w", err)
	}
	defer stmt.Close()

	for v, label := range labels {
		if _, err := stmt.ExecContext(ctx, id, v, label); err != nil {
			return fmt.Errorf("failed to insert vertex %d: %w", v, err)
		}
	}
	return nil
}

func insertEdges(ctx context.Context, tx *sql.Tx, id int64, edges []phylogeny.Edge) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO edges (run_id, parent, child, length) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, id, e.Parent, e.Child, e.Length); err != nil {
			return fmt.Errorf("failed to insert edge %d->%d: %w", e.Parent, e.Child, err)
		}
	}
	return nil
}

const runColumns = `id, created_at, birth_rate, migration_probability, generations, sites,
	seed, rescale_iterations, root_length, node_count, leaf_count, migrations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run       Run
		createdAt string
		seed      string
	)
	if err := row.Scan(&run.ID, &createdAt, &run.BirthRate, &run.MigrationProbability,
		&run.Generations, &run.Sites, &seed, &run.RescaleIterations,
		&run.RootLength, &run.Nodes, &run.Leaves, &run.Migrations); err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
	}
	run.CreatedAt = t

	run.Seed, err = strconv.ParseUint(seed, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed %q: %w", seed, err)
	}
	return &run, nil
}

// GetRun returns the run with the given ID, including tally, labels and
// edges.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id int64) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %d: %w", id, err)
	}

	if run.Tally, err = s.loadTally(ctx, id, run.Sites); err != nil {
		return nil, err
	}
	if run.Labels, err = s.loadLabels(ctx, id, run.Nodes); err != nil {
		return nil, err
	}
	if run.Edges, err = s.loadEdges(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteRunStore) loadTally(ctx context.Context, id int64, sites int) ([][]int, error) {
	tally := make([][]int, sites)
	for i := range tally {
		tally[i] = make([]int, sites)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT origin, destination, count FROM tally WHERE run_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query tally: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var i, j, count int
		if err := rows.Scan(&i, &j, &count); err != nil {
			return nil, fmt.Errorf("failed to scan tally: %w", err)
		}
		if i < 0 || i >= sites || j < 0 || j >= sites {
			return nil, fmt.Errorf("tally cell (%d,%d) outside %d sites", i, j, sites)
		}
		tally[i][j] = count
	}
	return tally, rows.Err()
}

func (s *SQLiteRunStore) loadLabels(ctx context.Context, id int64, nodes int) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label FROM vertices WHERE run_id = ? ORDER BY vertex`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query vertices: %w", err)
	}
	defer rows.Close()

	labels := make([]int, 0, nodes)
	for rows.Next() {
		var label int
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan vertex: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

func (s *SQLiteRunStore) loadEdges(ctx context.Context, id int64) ([]phylogeny.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT parent, child, length FROM edges WHERE run_id = ? ORDER BY child`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []phylogeny.Edge
	for rows.Next() {
		var e phylogeny.Edge
		if err := rows.Scan(&e.Parent, &e.Child, &e.Length); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// ListRuns returns run summaries, newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
