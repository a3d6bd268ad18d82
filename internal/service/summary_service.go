package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carson-networks/ingest-server/internal/apperror"
	"github.com/carson-networks/ingest-server/internal/storage"
)

// SummaryService answers per-user aggregate queries by scanning the master
// dataset in full. It takes no lock: the atomic replace guarantees it reads
// either the dataset from before or after a concurrent merge, never a torn
// file.
type SummaryService struct {
	storage *storage.Storage
}

// NewSummaryService creates a new SummaryService.
func NewSummaryService(store *storage.Storage) *SummaryService {
	return &SummaryService{storage: store}
}

// Summarise scans, filters, and aggregates. Querying before any dataset
// exists fails as UnreadableInput; a query matching zero rows succeeds with
// count 0 and nil aggregates.
func (s *SummaryService) Summarise(ctx context.Context, query SummaryQuery) (Summary, error) {
	if !s.storage.Dataset.Exists() {
		return Summary{}, apperror.New(apperror.KindUnreadableInput, "no dataset, upload first")
	}

	rows, err := s.storage.Dataset.ReadAll(ctx)
	if err != nil {
		return Summary{}, apperror.Wrap(err, apperror.KindUnreadableInput, "failed to read dataset")
	}

	summary := Summary{UserID: query.UserID}
	var total decimal.Decimal

	for _, row := range rows {
		if row.UserID != query.UserID {
			continue
		}

		timestamp, ok := parseStoredTimestamp(row.Timestamp)
		if !ok {
			continue
		}
		if query.From != nil && timestamp.Before(*query.From) {
			continue
		}
		if query.To != nil && timestamp.After(*query.To) {
			continue
		}

		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			continue
		}

		summary.Count++
		total = total.Add(amount)
		if summary.Min == nil || amount.LessThan(*summary.Min) {
			value := amount
			summary.Min = &value
		}
		if summary.Max == nil || amount.GreaterThan(*summary.Max) {
			value := amount
			summary.Max = &value
		}
		if summary.FirstTransaction == nil || timestamp.Before(*summary.FirstTransaction) {
			instant := timestamp
			summary.FirstTransaction = &instant
		}
		if summary.LastTransaction == nil || timestamp.After(*summary.LastTransaction) {
			instant := timestamp
			summary.LastTransaction = &instant
		}
	}

	if summary.Count > 0 {
		summary.Total = &total
		mean := total.DivRound(decimal.NewFromInt(int64(summary.Count)), 4)
		summary.Mean = &mean
	}

	return summary, nil
}

// parseStoredTimestamp reads the dataset's ISO-8601 Z representation. Rows
// in the store already passed validation, so a parse failure means a foreign
// file; such rows are skipped rather than failing the query.
func parseStoredTimestamp(raw string) (time.Time, bool) {
	timestamp, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return timestamp.UTC(), true
}
