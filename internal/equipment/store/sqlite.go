package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/entity"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/usecase"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/pkg/pkgerror"
)

// SQLiteConfig holds configuration for the SQLite dataset store.
type SQLiteConfig struct {
	// Path is the database file. ":memory:" is rejected because every pooled
	// connection would see its own empty database.
	Path string
	// BusyTimeout is how long a writer waits for the write lock before the
	// transaction fails with entity.ErrTxConflict.
	BusyTimeout time.Duration
	// Synchronous sets the SQLite synchronous pragma: OFF, NORMAL or FULL.
	Synchronous string
}

// DefaultSQLiteConfig returns a configuration suited to a single service instance.
func DefaultSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		Path:        path,
		BusyTimeout: 5 * time.Second,
		Synchronous: "NORMAL",
	}
}

// Validate checks configuration values and returns an error for invalid settings.
func (c SQLiteConfig) Validate() error {
	if c.Path == "" || c.Path == ":memory:" {
		return fmt.Errorf("sqlite path must be a file, got %q", c.Path)
	}
	switch c.Synchronous {
	case "", "OFF", "NORMAL", "FULL":
	default:
		return fmt.Errorf("invalid Synchronous value %q: must be OFF, NORMAL, or FULL", c.Synchronous)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("BusyTimeout must be non-negative, got %s", c.BusyTimeout)
	}
	return nil
}

func (c SQLiteConfig) dsn() string {
	sync := c.Synchronous
	if sync == "" {
		sync = "NORMAL"
	}
	// _txlock=immediate makes every BeginTx take the database write lock up
	// front, so two writers can never both read the pre-insert state.
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d&_synchronous=%s&_txlock=immediate",
		c.Path, c.BusyTimeout.Milliseconds(), sync)
}

// SQLiteStore persists datasets and their rows in SQLite.
type SQLiteStore struct {
	db         *sql.DB
	ownerLocks keyedMutex
}

// OpenSQLite opens (creating if needed) the database and applies the schema.
func OpenSQLite(cfg SQLiteConfig) (*SQLiteStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	slog.Info("opened sqlite dataset store", "db_path", cfg.Path, "synchronous", cfg.Synchronous)

	return &SQLiteStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			id INTEGER PRIMARY KEY,
			owner_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			summary_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_datasets_owner_recent
			ON datasets (owner_id, created_at DESC, id DESC)`,
		`CREATE TABLE IF NOT EXISTS equipment_rows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			dataset_id INTEGER NOT NULL REFERENCES datasets (id) ON DELETE CASCADE,
			equipment_name TEXT NOT NULL,
			type TEXT NOT NULL,
			flowrate REAL NOT NULL,
			pressure REAL NOT NULL,
			temperature REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_equipment_rows_dataset ON equipment_rows (dataset_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InTx(ctx context.Context, owner string, fn func(ctx context.Context, tx usecase.Tx) error) error {
	unlock := s.ownerLocks.Lock(owner)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteErr(fmt.Errorf("begin transaction: %w", err))
	}

	if err := fn(ctx, &sqlTx{tx: tx, owner: owner}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "failed to rollback dataset transaction", "error", rbErr)
		}
		return mapSQLiteErr(err)
	}

	if err := tx.Commit(); err != nil {
		return mapSQLiteErr(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func (s *SQLiteStore) ListRecent(ctx context.Context, owner string, limit int) ([]entity.Dataset, error) {
	if limit < 1 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, filename, created_at, summary_json
		FROM datasets
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	var datasets []entity.Dataset
	for rows.Next() {
		dataset, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, dataset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}

	return datasets, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64, owner string) (entity.Dataset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, filename, created_at, summary_json
		FROM datasets
		WHERE id = ? AND owner_id = ?`, id, owner)

	dataset, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Dataset{}, pkgerror.ErrNotFound
	}
	return dataset, err
}

// Rows reads the rows of one of owner's datasets in a single statement, so a
// concurrent delete never yields rows of a dataset that no longer exists.
func (s *SQLiteStore) Rows(ctx context.Context, id int64, owner string) ([]entity.EquipmentRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.dataset_id, r.equipment_name, r.type, r.flowrate, r.pressure, r.temperature
		FROM equipment_rows r
		JOIN datasets d ON d.id = r.dataset_id
		WHERE d.id = ? AND d.owner_id = ?
		ORDER BY r.id`, id, owner)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	items := []entity.EquipmentRow{}
	for rows.Next() {
		var item entity.EquipmentRow
		if err := rows.Scan(&item.ID, &item.DatasetID, &item.Name, &item.Category, &item.Flowrate, &item.Pressure, &item.Temperature); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	if len(items) == 0 {
		if _, err := s.Get(ctx, id, owner); err != nil {
			return nil, err
		}
	}

	return items, nil
}

// Delete removes one of owner's datasets; its rows go with it via ON DELETE CASCADE.
func (s *SQLiteStore) Delete(ctx context.Context, id int64, owner string) error {
	unlock := s.ownerLocks.Lock(owner)
	defer unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return mapSQLiteErr(fmt.Errorf("delete dataset: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	if n == 0 {
		return pkgerror.ErrNotFound
	}
	return nil
}

type sqlTx struct {
	tx    *sql.Tx
	owner string
}

func (t *sqlTx) Create(ctx context.Context, dataset entity.Dataset, rows entity.RowSet) (entity.Dataset, error) {
	if dataset.OwnerID != t.owner {
		return entity.Dataset{}, pkgerror.NewServer(errOwnerMismatch)
	}

	var latestMicros sql.NullInt64
	if err := t.tx.QueryRowContext(ctx, `SELECT MAX(created_at) FROM datasets WHERE owner_id = ?`, t.owner).Scan(&latestMicros); err != nil {
		return entity.Dataset{}, fmt.Errorf("read latest timestamp: %w", err)
	}
	var latest time.Time
	if latestMicros.Valid {
		latest = time.UnixMicro(latestMicros.Int64).UTC()
	}
	dataset.CreatedAt = nextCreatedAt(dataset.CreatedAt, latest)

	summary, err := json.Marshal(dataset.Summary)
	if err != nil {
		return entity.Dataset{}, fmt.Errorf("encode summary: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO datasets (id, owner_id, filename, created_at, summary_json)
		VALUES (?, ?, ?, ?, ?)`,
		dataset.ID, dataset.OwnerID, dataset.Filename, dataset.CreatedAt.UnixMicro(), string(summary)); err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return entity.Dataset{}, pkgerror.NewBusiness("dataset already exists", pkgerror.CodeConflict)
		}
		return entity.Dataset{}, fmt.Errorf("insert dataset: %w", err)
	}

	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO equipment_rows (dataset_id, equipment_name, type, flowrate, pressure, temperature)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return entity.Dataset{}, fmt.Errorf("prepare row insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, dataset.ID, row.Name, row.Category, row.Flowrate, row.Pressure, row.Temperature); err != nil {
			return entity.Dataset{}, fmt.Errorf("insert row: %w", err)
		}
	}

	return dataset, nil
}

func (t *sqlTx) ListRecentIDs(ctx context.Context, owner string) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id FROM datasets
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("query dataset ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dataset id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *sqlTx) Delete(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete dataset %d: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDataset(row scanner) (entity.Dataset, error) {
	var (
		dataset     entity.Dataset
		createdAt   int64
		summaryJSON string
	)

	if err := row.Scan(&dataset.ID, &dataset.OwnerID, &dataset.Filename, &createdAt, &summaryJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Dataset{}, err
		}
		return entity.Dataset{}, fmt.Errorf("scan dataset: %w", err)
	}

	if err := json.Unmarshal([]byte(summaryJSON), &dataset.Summary); err != nil {
		return entity.Dataset{}, fmt.Errorf("decode summary of dataset %d: %w", dataset.ID, err)
	}
	dataset.CreatedAt = time.UnixMicro(createdAt).UTC()

	return dataset, nil
}

// mapSQLiteErr marks lock contention as a retryable conflict.
func mapSQLiteErr(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %w", entity.ErrTxConflict, err)
	}
	return err
}
