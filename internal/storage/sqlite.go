// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/annlab/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		id TEXT PRIMARY KEY,
		prompt TEXT,
		source TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_datasets_created_at ON datasets(created_at);

	CREATE TABLE IF NOT EXISTS points (
		dataset_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		label TEXT,
		description TEXT,
		x REAL NOT NULL,
		y REAL NOT NULL,
		PRIMARY KEY (dataset_id, position),
		UNIQUE (dataset_id, id),
		FOREIGN KEY (dataset_id) REFERENCES datasets(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateDataset inserts a dataset and its points in one transaction. An empty ID is replaced
// with a new UUID.
func (s *SQLiteStorage) CreateDataset(ctx context.Context, ds *models.Dataset) error {
	if ds.ID == "" {
		ds.ID = uuid.New().String()
	}
	ds.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (id, prompt, source, created_at) VALUES (?, ?, ?, ?)`,
		ds.ID, ds.Prompt, ds.Source, ds.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}
	if err := insertPoints(ctx, tx, ds.ID, ds.Points); err != nil {
		return err
	}
	ds.PointCount = len(ds.Points)
	return tx.Commit()
}

// GetDataset returns a dataset with its points in their original order.
func (s *SQLiteStorage) GetDataset(ctx context.Context, id string) (*models.Dataset, error) {
	var ds models.Dataset
	var prompt sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, prompt, source, created_at FROM datasets WHERE id = ?`, id,
	).Scan(&ds.ID, &prompt, &ds.Source, &ds.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dataset %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	ds.Prompt = prompt.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, description, x, y FROM points WHERE dataset_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ds.Points = make([]models.Point, 0)
	for rows.Next() {
		var p models.Point
		var label, description sql.NullString
		if err := rows.Scan(&p.ID, &label, &description, &p.X, &p.Y); err != nil {
			return nil, err
		}
		p.Label = label.String
		p.Description = description.String
		ds.Points = append(ds.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	ds.PointCount = len(ds.Points)
	return &ds, nil
}

// ListDatasets returns dataset summaries (PointCount set, Points empty), newest first.
func (s *SQLiteStorage) ListDatasets(ctx context.Context, offset, limit int) ([]*models.Dataset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.prompt, d.source, d.created_at, COUNT(p.id)
		 FROM datasets d LEFT JOIN points p ON p.dataset_id = d.id
		 GROUP BY d.id ORDER BY d.created_at DESC, d.rowid DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Dataset
	for rows.Next() {
		var ds models.Dataset
		var prompt sql.NullString
		if err := rows.Scan(&ds.ID, &prompt, &ds.Source, &ds.CreatedAt, &ds.PointCount); err != nil {
			return nil, err
		}
		ds.Prompt = prompt.String
		out = append(out, &ds)
	}
	return out, rows.Err()
}

// DeleteDataset removes a dataset and its points.
func (s *SQLiteStorage) DeleteDataset(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM points WHERE dataset_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("dataset %s: %w", id, models.ErrNotFound)
	}
	return tx.Commit()
}

// ReplacePoints swaps the point set of an existing dataset.
func (s *SQLiteStorage) ReplacePoints(ctx context.Context, id string, points []models.Point) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM datasets WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("dataset %s: %w", id, models.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM points WHERE dataset_id = ?`, id); err != nil {
		return err
	}
	if err := insertPoints(ctx, tx, id, points); err != nil {
		return err
	}
	return tx.Commit()
}

// CountDatasets returns the number of stored datasets.
func (s *SQLiteStorage) CountDatasets(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM datasets`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func insertPoints(ctx context.Context, tx *sql.Tx, datasetID string, points []models.Point) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO points (dataset_id, position, id, label, description, x, y)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range points {
		if _, err := stmt.ExecContext(ctx, datasetID, i, p.ID, p.Label, p.Description, p.X, p.Y); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: duplicate point id %q", models.ErrInvalidDataset, p.ID)
			}
			return fmt.Errorf("insert point %s: %w", p.ID, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
