package actions

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/ingest-server/internal/apperror"
	"github.com/carson-networks/ingest-server/internal/storage"
)

const csvHeader = "transaction_id,user_id,product_id,timestamp,transaction_amount\n"

func newTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	store, err := storage.NewStorage(t.TempDir())
	require.NoError(t, err)
	return store
}

func makeCSV(prefix string, n int) []byte {
	var sb strings.Builder
	sb.WriteString(csvHeader)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%s-%d,u%d,p1,2025-01-01T10:00:00Z,10.50\n", prefix, i, i%7)
	}
	return []byte(sb.String())
}

func ingest(t *testing.T, store *storage.Storage, raw []byte) (*IngestUpload, error) {
	t.Helper()
	action := &IngestUpload{Filename: "batch.csv", Raw: raw}
	err := action.Perform(context.Background(), store)
	return action, err
}

func datasetRowCount(t *testing.T, store *storage.Storage) int {
	t.Helper()
	if !store.Dataset.Exists() {
		return 0
	}
	rows, err := store.Dataset.ReadAll(context.Background())
	require.NoError(t, err)
	return len(rows)
}

func manifestLines(t *testing.T, store *storage.Storage, status string) int {
	t.Helper()
	content, err := os.ReadFile(store.Manifest.Path())
	require.NoError(t, err)
	count := 0
	for _, line := range strings.Split(string(content), "\n") {
		if strings.Contains(line, `"status":"`+status+`"`) {
			count++
		}
	}
	return count
}

// -- success and idempotence --

func TestPerform_FirstIngest(t *testing.T) {
	store := newTestStorage(t)

	action, err := ingest(t, store, makeCSV("a", 10))
	require.NoError(t, err)

	assert.Equal(t, 10, action.Result.RowsAdded)
	assert.False(t, action.Result.Duplicate)
	assert.Equal(t, store.Dataset.Path(), action.Result.StoredPath)
	assert.Equal(t, 10, datasetRowCount(t, store))
	assert.Equal(t, 1, manifestLines(t, store, "ready"))
}

func TestPerform_IdenticalBytesIngestedOnce(t *testing.T) {
	store := newTestStorage(t)
	raw := makeCSV("a", 10)

	first, err := ingest(t, store, raw)
	require.NoError(t, err)
	assert.False(t, first.Result.Duplicate)

	second, err := ingest(t, store, raw)
	require.NoError(t, err)
	assert.True(t, second.Result.Duplicate)
	assert.Equal(t, 0, second.Result.RowsAdded)

	assert.Equal(t, 10, datasetRowCount(t, store), "dataset row count increases only once")
	assert.Equal(t, 1, manifestLines(t, store, "ready"), "exactly one ready record per checksum")
}

func TestPerform_SameRowsDifferentBytesAreNotDuplicates(t *testing.T) {
	store := newTestStorage(t)

	// an extra row changes the bytes, so the checksum differs even though
	// the filename is identical
	_, err := ingest(t, store, makeCSV("a", 5))
	require.NoError(t, err)
	_, err = ingest(t, store, append(makeCSV("a", 5), []byte("x-1,u1,p1,2025-01-01T10:00:00Z,1\n")...))
	require.NoError(t, err)

	assert.Equal(t, 2, manifestLines(t, store, "ready"))
}

// -- failure handling --

func TestPerform_ValidationFailureRecordedAndDatasetUntouched(t *testing.T) {
	store := newTestStorage(t)

	_, err := ingest(t, store, makeCSV("a", 3))
	require.NoError(t, err)

	_, err = ingest(t, store, []byte(csvHeader)) // header only
	assert.True(t, apperror.IsKind(err, apperror.KindEmptyInput))

	assert.Equal(t, 3, datasetRowCount(t, store), "failed request never mutates the dataset")
	assert.Equal(t, 1, manifestLines(t, store, "failed"))
}

func TestPerform_FailedChecksumStaysRetryable(t *testing.T) {
	store := newTestStorage(t)
	missingColumn := []byte("transaction_id,user_id,product_id,transaction_amount\n1,u1,p1,5\n")

	_, err := ingest(t, store, missingColumn)
	assert.True(t, apperror.IsKind(err, apperror.KindMissingColumns))

	// identical bytes again: the failed attempt must not short-circuit
	_, err = ingest(t, store, missingColumn)
	assert.True(t, apperror.IsKind(err, apperror.KindMissingColumns))
	assert.Equal(t, 2, manifestLines(t, store, "failed"))
}

func TestPerform_InvalidRowsDroppedNotFatal(t *testing.T) {
	store := newTestStorage(t)
	raw := []byte(csvHeader +
		"001,u1,p1,2025-01-01T10:00:00Z,12.345\n" +
		"002,u1,p1,bad-timestamp,1.00\n" +
		"003,u1,p1,2025-01-01T10:00:00Z,bad-amount\n")

	action, err := ingest(t, store, raw)
	require.NoError(t, err)
	assert.Equal(t, 1, action.Result.RowsAdded)
	assert.Equal(t, 1, datasetRowCount(t, store))
}

// -- concurrency --

func TestPerform_ConcurrentDistinctBatches(t *testing.T) {
	store := newTestStorage(t)

	const uploads = 6
	const rowsPer = 40

	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			action := &IngestUpload{Filename: "batch.csv", Raw: makeCSV(fmt.Sprintf("g%d", n), rowsPer)}
			assert.NoError(t, action.Perform(context.Background(), store))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uploads*rowsPer, datasetRowCount(t, store), "no rows lost or duplicated under concurrency")
	assert.Equal(t, uploads, manifestLines(t, store, "ready"))
}

func TestPerform_ConcurrentIdenticalBatchesMergeOnce(t *testing.T) {
	store := newTestStorage(t)
	raw := makeCSV("dup", 30)

	const uploads = 5
	duplicates := make([]bool, uploads)

	var wg sync.WaitGroup
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			action := &IngestUpload{Filename: "batch.csv", Raw: raw}
			if assert.NoError(t, action.Perform(context.Background(), store)) {
				duplicates[n] = action.Result.Duplicate
			}
		}(i)
	}
	wg.Wait()

	merged := 0
	for _, dup := range duplicates {
		if !dup {
			merged++
		}
	}
	assert.Equal(t, 1, merged, "exactly one of the identical uploads performs the merge")
	assert.Equal(t, 30, datasetRowCount(t, store))
	assert.Equal(t, 1, manifestLines(t, store, "ready"))
}
