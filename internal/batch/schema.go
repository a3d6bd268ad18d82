package batch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carson-networks/ingest-server/internal/apperror"
)

// requiredColumns maps each canonical field to the lowercase header spellings
// accepted for it. Matching is case-insensitive.
var requiredColumns = map[string][]string{
	ColTransactionID: {"transaction_id", "transactionid", "transaction-id", "transaction id"},
	ColUserID:        {"user_id", "userid", "user-id", "user id", "user"},
	ColProductID:     {"product_id", "productid", "product-id", "product id", "product"},
	ColTimestamp:     {"timestamp", "time_stamp", "date", "datetime", "time stamp"},
	ColAmount:        {"transaction_amount", "amount", "value", "price", "transaction amount"},
}

// ResolveColumns maps each canonical field to the index of the header that
// provides it. If any canonical field has no accepted variant among the
// headers it fails with MissingColumns naming every missing field and the
// full expected set; no partial mapping is returned.
func ResolveColumns(headers []string) (map[string]int, error) {
	lowered := make(map[string]int, len(headers))
	for i, header := range headers {
		lowered[strings.ToLower(strings.TrimSpace(header))] = i
	}

	resolved := make(map[string]int, len(CanonicalColumns))
	var missing []string
	for _, canonical := range CanonicalColumns {
		index, found := -1, false
		for _, variant := range requiredColumns[canonical] {
			if i, ok := lowered[variant]; ok {
				index, found = i, true
				break
			}
		}
		if !found {
			missing = append(missing, canonical)
			continue
		}
		resolved[canonical] = index
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		detail := fmt.Sprintf("missing %s, expected %s",
			strings.Join(missing, ", "), strings.Join(CanonicalColumns, ", "))
		return nil, apperror.New(apperror.KindMissingColumns, detail)
	}

	return resolved, nil
}
