// Package manifest is the checksum index: an append-only JSONL audit log of
// every ingest attempt, keyed by the SHA-256 of the raw uploaded bytes.
// Entries are never rewritten or removed.
package manifest

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gofrs/uuid/v5"
	"github.com/pkg/errors"
)

const manifestFile = "manifest.jsonl"

const (
	// StatusReady marks a successfully merged ingest. Only ready records
	// satisfy the dedup check; failed attempts stay retryable.
	StatusReady = "ready"
	// StatusFailed marks a terminal ingestion failure, recorded for audit.
	StatusFailed = "failed"
)

// Record is one ingest attempt. One JSON line per record; a line is the
// atomic append unit.
type Record struct {
	IngestID     string  `json:"ingest_id"`
	Status       string  `json:"status"`
	Checksum     string  `json:"checksum_sha256"`
	RowsAppended *int    `json:"rows_appended"`
	Error        *string `json:"error"`
}

type Manifest struct {
	path string
}

func NewManifest(dataDir string) *Manifest {
	return &Manifest{path: filepath.Join(dataDir, manifestFile)}
}

// Path returns the location of the manifest file.
func (m *Manifest) Path() string {
	return m.path
}

// EnsureLayout creates an empty manifest file if none exists.
func (m *Manifest) EnsureLayout() error {
	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "creating manifest")
	}
	return errors.Wrap(f.Close(), "closing manifest")
}

// Append durably writes one record and returns its ingest id (a UUIDv7, so
// ids are time-ordered). The file is opened O_APPEND and a record is a
// single write, so concurrent appenders from multiple processes cannot
// interleave within a record.
func (m *Manifest) Append(status, checksum string, rowsAppended *int, errMessage *string) (string, error) {
	ingestID, err := uuid.NewV7()
	if err != nil {
		return "", errors.Wrap(err, "generating ingest id")
	}

	record := Record{
		IngestID:     ingestID.String(),
		Status:       status,
		Checksum:     checksum,
		RowsAppended: rowsAppended,
		Error:        errMessage,
	}

	line, err := json.Marshal(record)
	if err != nil {
		return "", errors.Wrap(err, "encoding ingest record")
	}
	line = append(line, '\n')

	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "opening manifest for append")
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return "", errors.Wrap(err, "appending ingest record")
	}
	if err := f.Sync(); err != nil {
		return "", errors.Wrap(err, "syncing manifest")
	}

	return record.IngestID, nil
}

// FindReadyByChecksum scans all records and returns the first ready record
// with the given checksum, or nil when none exists. Malformed lines are
// skipped, never fatal to the scan.
func (m *Manifest) FindReadyByChecksum(checksum string) (*Record, error) {
	f, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "opening manifest")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		if record.Checksum == checksum && record.Status == StatusReady {
			found := record
			return &found, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning manifest")
	}

	return nil, nil
}
