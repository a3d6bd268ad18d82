// Package locks provides named, cross-process advisory locks backed by
// flock(2). Two tiers exist: the single global lock serializing physical
// writes to the master dataset, and per-checksum locks serializing
// duplicate-detection-and-merge for one content hash. Locks are ephemeral
// and advisory; the lock files are not part of durable state.
package locks

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

const (
	globalLockFile = "upload.lock"
	locksDirName   = "locks"
)

type Manager struct {
	globalPath string
	locksDir   string
}

func NewManager(dataDir string) *Manager {
	return &Manager{
		globalPath: filepath.Join(dataDir, globalLockFile),
		locksDir:   filepath.Join(dataDir, locksDirName),
	}
}

// EnsureLayout creates the per-checksum locks directory.
func (m *Manager) EnsureLayout() error {
	return errors.Wrap(os.MkdirAll(m.locksDir, 0o755), "creating locks directory")
}

// Lock is a held advisory lock. Release must be called on every exit path.
type Lock struct {
	fl *flock.Flock
}

// Release unlocks and closes the underlying file handle.
func (l *Lock) Release() error {
	return errors.Wrap(l.fl.Unlock(), "releasing lock")
}

// acquire blocks until the lock at path is held. A fresh file handle is
// opened per acquisition so goroutines within one process contend the same
// way separate processes do.
func (m *Manager) acquire(path string) (*Lock, error) {
	fl := flock.New(path)
	if err := fl.Lock(); err != nil {
		return nil, errors.Wrapf(err, "acquiring lock %s", filepath.Base(path))
	}
	return &Lock{fl: fl}, nil
}

// AcquireGlobal takes the global upload lock guarding the dataset
// read-modify-write-replace.
func (m *Manager) AcquireGlobal() (*Lock, error) {
	return m.acquire(m.globalPath)
}

// AcquireChecksum takes the lock scoped to one content hash, letting
// unrelated uploads proceed in parallel.
func (m *Manager) AcquireChecksum(checksum string) (*Lock, error) {
	return m.acquire(filepath.Join(m.locksDir, checksum+".lock"))
}
