package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattn/go-sqlite3"

	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/entity"
	"github.com/abhi5171-max/chemical-equipment-visualizer/internal/equipment/usecase"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()

	return openSQLiteAt(t, filepath.Join(t.TempDir(), "datasets.db"))
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	testStoreContract(t, func(t *testing.T) usecase.Store {
		return openTestSQLite(t)
	})
}

func TestSQLiteConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     SQLiteConfig
		wantErr bool
	}{
		{name: "default", cfg: DefaultSQLiteConfig("x.db")},
		{name: "empty path", cfg: DefaultSQLiteConfig(""), wantErr: true},
		{name: "memory", cfg: DefaultSQLiteConfig(":memory:"), wantErr: true},
		{name: "bad synchronous", cfg: SQLiteConfig{Path: "x.db", Synchronous: "SOMETIMES"}, wantErr: true},
		{name: "negative timeout", cfg: SQLiteConfig{Path: "x.db", BusyTimeout: -1}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "datasets.db")
	ctx := context.Background()

	s, err := OpenSQLite(DefaultSQLiteConfig(path))
	if err != nil {
		t.Fatalf("OpenSQLite() err = %v", err)
	}
	res, err := newUsecase(s).Ingest(ctx, "alice", "f.csv", strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Ingest() err = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() err = %v", err)
	}

	s = openSQLiteAt(t, path)
	got, err := s.Get(ctx, res.DatasetID, "alice")
	if err != nil {
		t.Fatalf("Get() after reopen err = %v", err)
	}
	if !got.CreatedAt.Equal(res.CreatedAt) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, res.CreatedAt)
	}
	if got.Summary.MeanTemperature != res.Summary.MeanTemperature {
		t.Fatalf("summary changed across reopen: %+v vs %+v", got.Summary, res.Summary)
	}
}

func openSQLiteAt(t *testing.T, path string) *SQLiteStore {
	t.Helper()

	s, err := OpenSQLite(DefaultSQLiteConfig(path))
	if err != nil {
		t.Fatalf("OpenSQLite() err = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMapSQLiteErr(t *testing.T) {
	t.Parallel()

	busy := fmt.Errorf("commit: %w", sqlite3.Error{Code: sqlite3.ErrBusy})
	if err := mapSQLiteErr(busy); !errors.Is(err, entity.ErrTxConflict) {
		t.Fatalf("busy not mapped to conflict: %v", err)
	}

	other := errors.New("disk on fire")
	if err := mapSQLiteErr(other); err != other {
		t.Fatalf("unexpected mapping of %v to %v", other, err)
	}
}
