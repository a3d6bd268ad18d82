package batch

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carson-networks/ingest-server/internal/apperror"
)

// timestampLayouts are tried in order. Layouts without an offset are taken
// as UTC, matching how the dataset treats naive timestamps.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalise trims, validates, and coerces raw rows into canonical form.
// A row is dropped (never individually fatal) when any required field is
// empty after trimming, the amount does not parse as a decimal, or the
// timestamp does not parse as an instant. A batch with zero data rows, or
// zero surviving rows, fails as EmptyInput.
//
// Amounts are rounded to 2 decimal places, half away from zero ("half-up"
// for the non-negative amounts this system carries): 12.345 persists as
// 12.35. Timestamps are converted to UTC, truncated to second precision,
// and formatted ISO-8601 with a Z suffix.
func Normalise(records [][]string, columns map[string]int) ([]Row, Counts, error) {
	if len(records) == 0 {
		return nil, Counts{}, apperror.New(apperror.KindEmptyInput, "CSV has headers but zero rows")
	}

	counts := Counts{Incoming: len(records)}
	rows := make([]Row, 0, len(records))

	for _, record := range records {
		transactionID := strings.TrimSpace(record[columns[ColTransactionID]])
		userID := strings.TrimSpace(record[columns[ColUserID]])
		productID := strings.TrimSpace(record[columns[ColProductID]])
		rawTimestamp := strings.TrimSpace(record[columns[ColTimestamp]])
		rawAmount := strings.TrimSpace(record[columns[ColAmount]])

		if transactionID == "" || userID == "" || productID == "" || rawTimestamp == "" || rawAmount == "" {
			continue
		}

		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			continue
		}

		timestamp, ok := parseTimestamp(rawTimestamp)
		if !ok {
			continue
		}

		rows = append(rows, Row{
			TransactionID: transactionID,
			UserID:        userID,
			ProductID:     productID,
			Timestamp:     timestamp.Format(time.RFC3339),
			Amount:        amount.Round(2).StringFixed(2),
		})
	}

	counts.Kept = len(rows)
	if counts.Kept == 0 {
		return nil, counts, apperror.New(apperror.KindEmptyInput, "no valid rows after validation")
	}

	return rows, counts, nil
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return parsed.UTC().Truncate(time.Second), true
		}
	}
	return time.Time{}, false
}
