// Package dataset owns the master dataset: a single Parquet file holding the
// append-only sequence of validated transaction rows. The file on disk is
// always either the prior complete version or the new complete version; the
// merge engine writes a full replacement to a temp file in the same
// directory and swaps it in with one atomic rename.
package dataset

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"

	"github.com/carson-networks/ingest-server/internal/batch"
)

const (
	datasetFile = "transactions.parquet"
	metaFile    = "transactions.meta.json"
)

type Store struct {
	dir  string
	path string
	pool memory.Allocator
}

func NewStore(dataDir string) *Store {
	return &Store{
		dir:  dataDir,
		path: filepath.Join(dataDir, datasetFile),
		pool: memory.NewGoAllocator(),
	}
}

// Path returns the location of the master dataset file.
func (s *Store) Path() string {
	return s.path
}

// Exists checks storage directly; there is no cached dataset pointer.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Merge appends rows to the master dataset. The caller must hold the global
// upload lock: merge is a read-modify-write-replace and two overlapping
// merges would lose rows. A failure before the final rename leaves the
// previous dataset file untouched.
func (s *Store) Merge(ctx context.Context, rows []batch.Row) (int, error) {
	merged := rows
	if s.Exists() {
		existing, err := s.ReadAll(ctx)
		if err != nil {
			return 0, err
		}
		merged = make([]batch.Row, 0, len(existing)+len(rows))
		merged = append(merged, existing...)
		merged = append(merged, rows...)
	}

	if err := s.writeAtomic(merged); err != nil {
		return 0, err
	}

	return len(rows), nil
}

// ReadAll decodes the complete dataset. Readers take no lock: the atomic
// replace guarantees they see a complete file, at worst the version from
// before a concurrent merge.
func (s *Store) ReadAll(ctx context.Context) ([]batch.Row, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "opening dataset")
	}

	return s.readParquet(ctx, f)
}

// writeAtomic writes the full row set to a temp file in the dataset
// directory (same volume, so the rename cannot degrade to a copy) and
// replaces the dataset file in a single step.
func (s *Store) writeAtomic(rows []batch.Row) error {
	tmp, err := os.CreateTemp(s.dir, "transactions-*.parquet.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp dataset")
	}
	tmpPath := tmp.Name()

	if err := s.writeParquet(tmp, rows); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "syncing temp dataset")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "closing temp dataset")
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "replacing dataset")
	}

	return nil
}

// Meta is the small side-car written after each successful merge with the
// incoming/kept/dropped counts of the last batch. It is informational only.
type Meta struct {
	RowsIncoming int `json:"rows_incoming"`
	RowsCleaned  int `json:"rows_cleaned"`
	RowsDropped  int `json:"rows_dropped"`
}

// WriteMeta best-effort persists the side-car; callers ignore failures.
func (s *Store) WriteMeta(counts batch.Counts) error {
	meta := Meta{
		RowsIncoming: counts.Incoming,
		RowsCleaned:  counts.Kept,
		RowsDropped:  counts.Dropped(),
	}

	encoded, err := json.Marshal(meta)
	if err != nil {
		return errors.Wrap(err, "encoding meta")
	}

	return errors.Wrap(
		os.WriteFile(filepath.Join(s.dir, metaFile), encoded, 0o644),
		"writing meta",
	)
}
