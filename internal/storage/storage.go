package storage

import (
	"os"

	"github.com/pkg/errors"

	"github.com/carson-networks/ingest-server/internal/storage/dataset"
	"github.com/carson-networks/ingest-server/internal/storage/locks"
	"github.com/carson-networks/ingest-server/internal/storage/manifest"
)

// Storage bundles the three durable collaborators of the ingest pipeline.
// The dataset directory may be shared by multiple server processes; all
// mutual exclusion goes through Locks.
type Storage struct {
	Dataset  *dataset.Store
	Manifest *manifest.Manifest
	Locks    *locks.Manager
}

// NewStorage builds the storage facade over dataDir and ensures the on-disk
// layout (data dir, locks dir, empty manifest) exists.
func NewStorage(dataDir string) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating data directory")
	}

	store := &Storage{
		Dataset:  dataset.NewStore(dataDir),
		Manifest: manifest.NewManifest(dataDir),
		Locks:    locks.NewManager(dataDir),
	}

	if err := store.Locks.EnsureLayout(); err != nil {
		return nil, err
	}
	if err := store.Manifest.EnsureLayout(); err != nil {
		return nil, err
	}

	return store, nil
}
