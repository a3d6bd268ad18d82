package upload

import (
	"context"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/ingest-server/internal/apperror"
	"github.com/carson-networks/ingest-server/internal/batch"
	"github.com/carson-networks/ingest-server/internal/logging"
	"github.com/carson-networks/ingest-server/internal/operator/actions"
)

// UploadInput is the Huma input for uploading a CSV batch: multipart form
// with the file under the "file" field.
type UploadInput struct {
	RawBody multipart.Form
}

// UploadResponseBody is the response body for a completed upload.
type UploadResponseBody struct {
	StoredPath string `json:"storedPath" doc:"Location of the master dataset file"`
	RowsAdded  int    `json:"rowsAdded" doc:"Rows appended by this upload, 0 for duplicates"`
	Duplicate  bool   `json:"duplicate" doc:"True when identical bytes were already ingested"`
}

// UploadOutput is the Huma output for uploading a CSV batch.
type UploadOutput struct {
	Status int
	Body   UploadResponseBody
}

// actionProcessor is the interface for running ingest actions.
type actionProcessor interface {
	Process(ctx context.Context, action actions.IAction) error
}

// UploadHandler handles POST /v1/upload.
type UploadHandler struct {
	Operator actionProcessor
	MaxBytes int64
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(op actionProcessor, maxBytes int64) *UploadHandler {
	return &UploadHandler{Operator: op, MaxBytes: maxBytes}
}

// Register registers the upload endpoint with the Huma API.
func (h *UploadHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "upload-transactions",
		Method:      http.MethodPost,
		Path:        "/v1/upload",
		Summary:     "Upload transactions",
		Description: "Validates a CSV transaction batch and appends it to the master dataset. Re-uploading identical bytes is an idempotent no-op.",
		Tags:        []string{"Ingestion"},
	}, h.handle)
}

func (h *UploadHandler) handle(ctx context.Context, input *UploadInput) (*UploadOutput, error) {
	logData := logging.GetLogData(ctx)

	files := input.RawBody.File["file"]
	if len(files) == 0 {
		return nil, huma.NewError(http.StatusBadRequest, "file field is required")
	}
	header := files[0]

	// Cheap fail on extension before reading any byte.
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		return nil, apperror.ToHuma(apperror.New(apperror.KindInvalidFileType, "filename must end in .csv"))
	}

	src, err := header.Open()
	if err != nil {
		return nil, huma.NewError(http.StatusBadRequest, "cannot open upload", err)
	}
	defer src.Close()

	raw, err := batch.ReadCapped(src, h.MaxBytes)
	if err != nil {
		return nil, apperror.ToHuma(err)
	}
	if len(raw) == 0 {
		return nil, apperror.ToHuma(apperror.New(apperror.KindEmptyInput, "upload is empty"))
	}

	action := &actions.IngestUpload{Filename: header.Filename, Raw: raw}

	var stopTimer func()
	if logData != nil {
		stopTimer = logData.AddTiming("ingestMs")
	}
	err = h.Operator.Process(ctx, action)
	if stopTimer != nil {
		stopTimer()
	}
	if err != nil {
		return nil, apperror.ToHuma(err)
	}

	if logData != nil {
		logData.AddData("rowsAdded", action.Result.RowsAdded)
		logData.AddData("duplicate", action.Result.Duplicate)
	}

	return &UploadOutput{
		Status: http.StatusCreated,
		Body: UploadResponseBody{
			StoredPath: action.Result.StoredPath,
			RowsAdded:  action.Result.RowsAdded,
			Duplicate:  action.Result.Duplicate,
		},
	}, nil
}
