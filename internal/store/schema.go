package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema of the run archive.
const schemaV1 = `
-- One row per simulation run
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TEXT NOT NULL,

    birth_rate REAL NOT NULL,
    migration_probability REAL NOT NULL,
    generations INTEGER NOT NULL,
    sites INTEGER NOT NULL,
    seed TEXT NOT NULL,  -- decimal uint64; exceeds INTEGER range
    rescale_iterations INTEGER NOT NULL,

    root_length REAL NOT NULL,
    node_count INTEGER NOT NULL,
    leaf_count INTEGER NOT NULL,
    migrations INTEGER NOT NULL
);

-- Non-zero migration tally cells
CREATE TABLE IF NOT EXISTS tally (
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    origin INTEGER NOT NULL,
    destination INTEGER NOT NULL,
    count INTEGER NOT NULL,
    PRIMARY KEY (run_id, origin, destination)
);

-- Site label of every vertex
CREATE TABLE IF NOT EXISTS vertices (
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    vertex INTEGER NOT NULL,
    label INTEGER NOT NULL,
    PRIMARY KEY (run_id, vertex)
);

-- Parent/child edges with branch lengths
CREATE TABLE IF NOT EXISTS edges (
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    parent INTEGER NOT NULL,
    child INTEGER NOT NULL,
    length REAL NOT NULL,
    PRIMARY KEY (run_id, child)
);
CREATE INDEX IF NOT EXISTS idx_edges_parent ON edges(run_id, parent);

-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the schema on a fresh database, or validates an
// existing one and checks its version.
func InitSchema(ctx context.Context, db *sql.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	if currentVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema version %d (want %d)", currentVersion, SchemaVersion)
	}
	return nil
}

// getSchemaVersion returns an error if the schema_version table doesn't exist.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

// ValidateIntegrity runs PRAGMA integrity_check and PRAGMA
// foreign_key_check and reports any problem found.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return fmt.Errorf("failed to scan integrity_check result: %w", err)
		}
		if result != "ok" {
			return fmt.Errorf("integrity_check failed: %s", result)
		}
	}

	fkRows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer fkRows.Close()

	var fkErrors []string
	for fkRows.Next() {
		var table, rowid, parent, fkid string
		if err := fkRows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		fkErrors = append(fkErrors, fmt.Sprintf("table=%s rowid=%s parent=%s fkid=%s", table, rowid, parent, fkid))
	}
	if len(fkErrors) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", fkErrors)
	}
	return nil
}
