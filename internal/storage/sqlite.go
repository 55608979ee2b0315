package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"shimcheck/internal/resolver"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ RunStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT,
			verdict TEXT,
			declarations INTEGER,
			clusters INTEGER,
			warnings INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS declarations (
			run_id INTEGER,
			qualified_name TEXT,
			kind TEXT,
			provenance TEXT,
			location TEXT,
			signature JSON,
			rank_group INTEGER,
			rank_document INTEGER,
			rank_position INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS cluster_members (
			run_id INTEGER,
			cluster INTEGER,
			member INTEGER,
			qualified_name TEXT,
			location TEXT,
			PRIMARY KEY (run_id, cluster, member)
		);`,
		`CREATE TABLE IF NOT EXISTS warnings (
			run_id INTEGER,
			location TEXT,
			message TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_declarations_name ON declarations(run_id, qualified_name);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun writes the run in a single transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (created_at, verdict, declarations, clusters, warnings) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), run.Verdict, len(run.Declarations), len(run.Clusters), len(run.Warnings),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	declStmt, err := tx.PrepareContext(ctx, `INSERT INTO declarations
		(run_id, qualified_name, kind, provenance, location, signature, rank_group, rank_document, rank_position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer declStmt.Close()

	for _, d := range run.Declarations {
		sig, err := signatureJSON(d)
		if err != nil {
			return 0, err
		}
		if _, err := declStmt.ExecContext(ctx, runID, d.QualifiedName, string(d.Kind), string(d.Provenance), d.Span.String(), sig,
			d.Rank.Group, d.Rank.Document, d.Rank.Position); err != nil {
			return 0, fmt.Errorf("failed to insert declaration %s: %w", d.QualifiedName, err)
		}
	}

	for ci, c := range run.Clusters {
		for mi, d := range c.Occurrences {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO cluster_members (run_id, cluster, member, qualified_name, location) VALUES (?, ?, ?, ?, ?)`,
				runID, ci, mi, c.Name, d.Span.String(),
			); err != nil {
				return 0, fmt.Errorf("failed to insert cluster %s: %w", c.Name, err)
			}
		}
	}

	for _, w := range run.Warnings {
		if _, err := tx.ExecContext(ctx, `INSERT INTO warnings (run_id, location, message) VALUES (?, ?, ?)`,
			runID, w.Span.String(), w.Message); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

func (s *SQLiteStore) LoadClusters(ctx context.Context, runID int64) ([]ArchivedCluster, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cluster, qualified_name, location FROM cluster_members WHERE run_id = ? ORDER BY cluster, member`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedCluster
	last := -1
	for rows.Next() {
		var cluster int
		var name, location string
		if err := rows.Scan(&cluster, &name, &location); err != nil {
			return nil, err
		}
		if cluster != last {
			out = append(out, ArchivedCluster{Name: name})
			last = cluster
		}
		out[len(out)-1].Locations = append(out[len(out)-1].Locations, location)
	}
	return out, rows.Err()
}

func signatureJSON(d resolver.Declaration) (any, error) {
	if d.Signature == nil {
		return nil, nil
	}
	data, err := json.Marshal(d.Signature)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
