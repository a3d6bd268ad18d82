package summary

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/ingest-server/internal/apperror"
	"github.com/carson-networks/ingest-server/internal/logging"
	"github.com/carson-networks/ingest-server/internal/service"
)

// SummaryInput is the Huma input for the per-user summary query.
type SummaryInput struct {
	UserID string `path:"userID" doc:"User id, matched exactly as a string"`
	From   string `query:"from" doc:"Optional inclusive lower bound, RFC3339 instant"`
	To     string `query:"to" doc:"Optional inclusive upper bound, RFC3339 instant"`
}

// SummaryResponseBody is the response body for the summary query. Numeric
// aggregates are decimal strings and null when no rows match.
type SummaryResponseBody struct {
	UserID           string  `json:"userID" doc:"Queried user id"`
	Count            int     `json:"count" doc:"Matching transaction count"`
	Min              *string `json:"min" doc:"Smallest transaction amount"`
	Max              *string `json:"max" doc:"Largest transaction amount"`
	Mean             *string `json:"mean" doc:"Mean transaction amount"`
	Total            *string `json:"total" doc:"Sum of transaction amounts"`
	FirstTransaction *string `json:"firstTransaction" doc:"Earliest matching timestamp"`
	LastTransaction  *string `json:"lastTransaction" doc:"Latest matching timestamp"`
}

// SummaryOutput is the Huma output for the summary query.
type SummaryOutput struct {
	Body SummaryResponseBody
}

// summariser is the interface for computing per-user summaries.
type summariser interface {
	Summarise(ctx context.Context, query service.SummaryQuery) (service.Summary, error)
}

// SummaryHandler handles GET /v1/summary/{userID}.
type SummaryHandler struct {
	SummaryService summariser
}

// NewSummaryHandler creates a new SummaryHandler.
func NewSummaryHandler(svc summariser) *SummaryHandler {
	return &SummaryHandler{SummaryService: svc}
}

// Register registers the summary endpoint with the Huma API.
func (h *SummaryHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "user-summary",
		Method:      http.MethodGet,
		Path:        "/v1/summary/{userID}",
		Summary:     "Per-user transaction summary",
		Description: "Scans the master dataset and aggregates transaction amounts for one user, optionally bounded to an inclusive time range.",
		Tags:        []string{"Queries"},
	}, h.handle)
}

// parseSummaryInput validates the optional range bounds. Bounds accept
// RFC3339 instants; naive instants are taken as UTC.
func parseSummaryInput(input *SummaryInput) (service.SummaryQuery, error) {
	query := service.SummaryQuery{UserID: input.UserID}

	if input.From != "" {
		from, err := parseInstant(input.From)
		if err != nil {
			return service.SummaryQuery{}, huma.NewError(http.StatusBadRequest, "invalid from instant", err)
		}
		query.From = &from
	}

	if input.To != "" {
		to, err := parseInstant(input.To)
		if err != nil {
			return service.SummaryQuery{}, huma.NewError(http.StatusBadRequest, "invalid to instant", err)
		}
		query.To = &to
	}

	return query, nil
}

var instantLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseInstant(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range instantLayouts {
		parsed, err := time.ParseInLocation(layout, raw, time.UTC)
		if err == nil {
			return parsed.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func (h *SummaryHandler) handle(ctx context.Context, input *SummaryInput) (*SummaryOutput, error) {
	logData := logging.GetLogData(ctx)

	query, err := parseSummaryInput(input)
	if err != nil {
		return nil, err
	}

	var stopTimer func()
	if logData != nil {
		stopTimer = logData.AddTiming("summariseMs")
	}
	result, err := h.SummaryService.Summarise(ctx, query)
	if stopTimer != nil {
		stopTimer()
	}
	if err != nil {
		return nil, apperror.ToHuma(err)
	}

	if logData != nil {
		logData.AddData("matchCount", result.Count)
	}

	body := SummaryResponseBody{
		UserID: result.UserID,
		Count:  result.Count,
	}
	if result.Count > 0 {
		body.Min = decimalString(result.Min)
		body.Max = decimalString(result.Max)
		body.Mean = decimalString(result.Mean)
		body.Total = decimalString(result.Total)
		body.FirstTransaction = instantString(result.FirstTransaction)
		body.LastTransaction = instantString(result.LastTransaction)
	}

	return &SummaryOutput{Body: body}, nil
}

func decimalString(value *decimal.Decimal) *string {
	if value == nil {
		return nil
	}
	formatted := value.String()
	return &formatted
}

func instantString(value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := value.Format(time.RFC3339)
	return &formatted
}
