package service

import (
	"time"

	"github.com/shopspring/decimal"
)

// SummaryQuery selects the rows to aggregate: exact string match on the user
// id, optional inclusive instant range on the timestamp.
type SummaryQuery struct {
	UserID string
	From   *time.Time
	To     *time.Time
}

// Summary is the aggregate over transaction_amount for the matching rows.
// The numeric fields and instants are nil when Count is zero; a query that
// matches nothing is a valid result, not an error.
type Summary struct {
	UserID           string
	Count            int
	Min              *decimal.Decimal
	Max              *decimal.Decimal
	Mean             *decimal.Decimal
	Total            *decimal.Decimal
	FirstTransaction *time.Time
	LastTransaction  *time.Time
}
