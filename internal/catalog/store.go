// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog persists named sample collections in a local SQLite
// database. A collection owns its samples and a field schema that grows as
// samples are added and as embedded label attributes are discovered.
//
// One process at a time may hold a catalog open; Open takes an exclusive
// file lock beside the database.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/dataset-engine/pkg/types"
)

const (
	dbFile            = "catalog.db"
	lockFile          = "catalog.lock"
	defaultMaxResults = 50
)

var (
	// ErrDatasetExists is returned when creating a dataset whose name is
	// taken and overwrite was not requested.
	ErrDatasetExists = errors.New("dataset already exists")

	// ErrDatasetNotFound is returned for operations on an unknown dataset.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrLocked is returned when another process holds the catalog.
	ErrLocked = errors.New("catalog is locked by another process")
)

// Store manages the catalog SQLite database.
type Store struct {
	db         *sql.DB
	lock       *flock.Flock
	dir        string
	maxResults int
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger routes catalog diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open opens or creates the catalog database at cfg.CatalogDir/catalog.db
// and creates the schema if it does not exist.
func Open(cfg types.CatalogConfig, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(cfg.CatalogDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.CatalogDir, lockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking catalog: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", cfg.CatalogDir, ErrLocked)
	}

	dbPath := filepath.Join(cfg.CatalogDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{
		db:         db,
		lock:       lock,
		dir:        cfg.CatalogDir,
		maxResults: maxResults,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		lock.Unlock()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection and the catalog lock.
func (s *Store) Close() error {
	dbErr := s.db.Close()
	lockErr := s.lock.Unlock()
	return errors.Join(dbErr, lockErr)
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			name TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS samples (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			dataset TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
			filepath TEXT NOT NULL,
			tags TEXT,
			fields TEXT,
			segmentations TEXT,
			metadata TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_dataset ON samples(dataset)`,
		`CREATE TABLE IF NOT EXISTS sample_fields (
			dataset TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			dynamic INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (dataset, name)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// baseFields are declared on every dataset at creation.
var baseFields = []Field{
	{Name: "filepath", Type: types.FieldString},
	{Name: "tags", Type: types.FieldStringList},
	{Name: "metadata", Type: types.FieldImageMetadata},
}

// CreateDataset creates an empty dataset named name. If the name is taken,
// it fails with ErrDatasetExists unless overwrite is set, in which case the
// existing dataset, its samples, and its schema are deleted first.
func (s *Store) CreateDataset(ctx context.Context, name string, overwrite bool) (*Dataset, error) {
	if name == "" {
		return nil, errors.New("dataset name must not be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := datasetExists(ctx, tx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		if !overwrite {
			return nil, fmt.Errorf("%q: %w", name, ErrDatasetExists)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name); err != nil {
			return nil, fmt.Errorf("deleting dataset %q: %w", name, err)
		}
		s.logger.Info("overwriting dataset", "dataset", name)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (name, created_at) VALUES (?, ?)`,
		name, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("inserting dataset: %w", err)
	}
	for _, f := range baseFields {
		if err := declareField(ctx, tx, name, f); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing dataset: %w", err)
	}
	return &Dataset{store: s, name: name}, nil
}

// LoadDataset returns a handle to an existing dataset.
func (s *Store) LoadDataset(ctx context.Context, name string) (*Dataset, error) {
	exists, err := datasetExists(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%q: %w", name, ErrDatasetNotFound)
	}
	return &Dataset{store: s, name: name}, nil
}

// ListDatasets returns every dataset with its sample count, ordered by name.
func (s *Store) ListDatasets(ctx context.Context) ([]types.DatasetInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.name, d.created_at, COUNT(s.id)
		 FROM datasets d LEFT JOIN samples s ON s.dataset = d.name
		 GROUP BY d.name ORDER BY d.name`)
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	defer rows.Close()

	var infos []types.DatasetInfo
	for rows.Next() {
		var (
			info    types.DatasetInfo
			created string
		)
		if err := rows.Scan(&info.Name, &created, &info.SampleCount); err != nil {
			return nil, fmt.Errorf("scanning dataset: %w", err)
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeleteDataset removes a dataset with its samples and schema.
func (s *Store) DeleteDataset(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting dataset %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%q: %w", name, ErrDatasetNotFound)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func datasetExists(ctx context.Context, q queryer, name string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx,
		`SELECT count(*) FROM datasets WHERE name = ?`, name,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("looking up dataset %q: %w", name, err)
	}
	return n > 0, nil
}
