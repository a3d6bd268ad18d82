package actions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/carson-networks/ingest-server/internal/batch"
	"github.com/carson-networks/ingest-server/internal/storage"
	"github.com/carson-networks/ingest-server/internal/storage/manifest"
)

// IngestResult is what a completed ingest reports back to the caller.
type IngestResult struct {
	StoredPath string
	RowsAdded  int
	Duplicate  bool
}

// IngestUpload runs the at-most-once-per-checksum ingestion protocol for one
// uploaded file. Raw holds the complete upload (already size-capped by the
// handler); Result is populated on success.
//
// Sequence: checksum, fast dedup check, validate outside any lock, acquire
// the per-checksum lock, re-check, merge under the global lock, record the
// outcome in the manifest. Every terminal outcome, success or failure, is
// appended to the manifest exactly once.
type IngestUpload struct {
	Filename string
	Raw      []byte

	Result IngestResult
	IAction
}

func (a *IngestUpload) Perform(ctx context.Context, store *storage.Storage) error {
	sum := sha256.Sum256(a.Raw)
	checksum := hex.EncodeToString(sum[:])

	// Fast path: identical bytes already ingested. No locks taken.
	existing, err := store.Manifest.FindReadyByChecksum(checksum)
	if err != nil {
		return err
	}
	if existing != nil {
		a.Result = IngestResult{StoredPath: store.Dataset.Path(), Duplicate: true}
		return nil
	}

	// CPU-bound validation stays outside the critical section.
	rows, counts, err := batch.Process(a.Raw)
	if err != nil {
		return a.recordFailure(store, checksum, err)
	}

	// Serialize against concurrent uploads of the same content; unrelated
	// checksums keep merging in parallel.
	checksumLock, err := store.Locks.AcquireChecksum(checksum)
	if err != nil {
		return a.recordFailure(store, checksum, err)
	}
	defer checksumLock.Release()

	// Guards the race between the fast check and lock acquisition: two
	// identical concurrent uploads must not both merge.
	existing, err = store.Manifest.FindReadyByChecksum(checksum)
	if err != nil {
		return a.recordFailure(store, checksum, err)
	}
	if existing != nil {
		a.Result = IngestResult{StoredPath: store.Dataset.Path(), Duplicate: true}
		return nil
	}

	added, err := a.mergeUnderGlobalLock(ctx, store, rows)
	if err != nil {
		return a.recordFailure(store, checksum, err)
	}

	// Informational side-car; a failure here never fails the ingest.
	_ = store.Dataset.WriteMeta(counts)

	if _, err := store.Manifest.Append(manifest.StatusReady, checksum, &added, nil); err != nil {
		return err
	}

	a.Result = IngestResult{StoredPath: store.Dataset.Path(), RowsAdded: added}
	return nil
}

// mergeUnderGlobalLock holds the global upload lock only for the dataset
// read-modify-write-replace itself.
func (a *IngestUpload) mergeUnderGlobalLock(ctx context.Context, store *storage.Storage, rows []batch.Row) (int, error) {
	globalLock, err := store.Locks.AcquireGlobal()
	if err != nil {
		return 0, err
	}
	defer globalLock.Release()

	return store.Dataset.Merge(ctx, rows)
}

// recordFailure appends a failed manifest record carrying the error message
// and re-signals the original error. Only ready records satisfy the dedup
// check, so the checksum stays retryable.
func (a *IngestUpload) recordFailure(store *storage.Storage, checksum string, cause error) error {
	message := cause.Error()
	_, _ = store.Manifest.Append(manifest.StatusFailed, checksum, nil, &message)
	return cause
}
