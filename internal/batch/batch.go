// Package batch is the pure, lock-free part of the ingestion pipeline: it
// turns raw uploaded bytes into validated, canonical transaction rows. It
// performs no I/O beyond consuming the source reader and holds no state, so
// callers may run it concurrently outside any lock.
package batch

import (
	"bytes"
	"encoding/csv"

	"github.com/carson-networks/ingest-server/internal/apperror"
)

// Canonical column names, in the fixed persisted order.
const (
	ColTransactionID = "transaction_id"
	ColUserID        = "user_id"
	ColProductID     = "product_id"
	ColTimestamp     = "timestamp"
	ColAmount        = "transaction_amount"
)

// CanonicalColumns is the persisted column order of the master dataset.
var CanonicalColumns = []string{ColTransactionID, ColUserID, ColProductID, ColTimestamp, ColAmount}

// Row is a validated transaction in canonical form. String fields are
// trimmed with leading zeros preserved; Timestamp is ISO-8601 UTC at second
// precision with a Z suffix; Amount is a decimal string rounded to 2 places.
// Rows are immutable once created and live only inside the master dataset.
type Row struct {
	TransactionID string
	UserID        string
	ProductID     string
	Timestamp     string
	Amount        string
}

// Counts reports how many raw rows arrived and how many survived validation.
type Counts struct {
	Incoming int
	Kept     int
}

func (c Counts) Dropped() int {
	return c.Incoming - c.Kept
}

// Process runs the full pipeline on raw CSV bytes: parse, resolve headers,
// normalise. It is the single entry point the ingest coordinator calls before
// taking any lock.
func Process(raw []byte) ([]Row, Counts, error) {
	headers, records, err := parseCSV(raw)
	if err != nil {
		return nil, Counts{}, err
	}

	columns, err := ResolveColumns(headers)
	if err != nil {
		return nil, Counts{}, err
	}

	return Normalise(records, columns)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// parseCSV reads the bytes as tabular data with all fields kept as raw
// strings. The first record is the header row; a ragged or otherwise
// unparseable body fails as UnreadableInput.
func parseCSV(raw []byte) ([]string, [][]string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(raw))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.KindUnreadableInput, "cannot parse CSV")
	}
	if len(records) == 0 {
		return nil, nil, apperror.New(apperror.KindUnreadableInput, "no header row")
	}

	return records[0], records[1:], nil
}
