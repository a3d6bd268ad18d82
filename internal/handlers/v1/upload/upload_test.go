package upload

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/ingest-server/internal/operator"
	"github.com/carson-networks/ingest-server/internal/storage"
)

const validCSV = "transaction_id,user_id,product_id,timestamp,transaction_amount\n" +
	"001,u1,p1,2025-01-01T10:00:00Z,12.345\n"

// newTestAPI wires the handler against real tmpdir storage and a running
// operator, so these tests cover the whole ingest path.
func newTestAPI(t *testing.T, maxBytes int64) humatest.TestAPI {
	t.Helper()

	store, err := storage.NewStorage(t.TempDir())
	require.NoError(t, err)

	delegator := operator.NewOperatorDelegator(store, 2)
	delegator.Start()
	t.Cleanup(delegator.Stop)

	_, api := humatest.New(t)
	NewUploadHandler(delegator, maxBytes).Register(api)
	return api
}

func multipartBody(t *testing.T, filename string, content []byte) (string, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return "Content-Type: " + writer.FormDataContentType(), &buf
}

func postFile(t *testing.T, api humatest.TestAPI, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	contentType, body := multipartBody(t, filename, content)
	return api.Post("/v1/upload", contentType, body)
}

func TestUpload_Success(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	resp := postFile(t, api, "batch.csv", []byte(validCSV))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var body UploadResponseBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 1, body.RowsAdded)
	assert.False(t, body.Duplicate)
	assert.NotEmpty(t, body.StoredPath)
}

func TestUpload_DuplicateIsNoOp(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	resp := postFile(t, api, "batch.csv", []byte(validCSV))
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = postFile(t, api, "renamed.csv", []byte(validCSV))
	require.Equal(t, http.StatusCreated, resp.Code)

	var body UploadResponseBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.Duplicate, "identical bytes dedup regardless of filename")
	assert.Equal(t, 0, body.RowsAdded)
}

func TestUpload_RejectsNonCSVFilename(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	resp := postFile(t, api, "batch.txt", []byte(validCSV))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "INVALID_FILE_TYPE")
}

func TestUpload_FileTooLarge(t *testing.T) {
	api := newTestAPI(t, 64)

	resp := postFile(t, api, "batch.csv", []byte(validCSV))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
	assert.Contains(t, resp.Body.String(), "FILE_TOO_LARGE")
}

func TestUpload_MissingFileField(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("notfile", "x"))
	require.NoError(t, writer.Close())

	resp := api.Post("/v1/upload", "Content-Type: "+writer.FormDataContentType(), &buf)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUpload_MissingColumns(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	resp := postFile(t, api, "batch.csv", []byte("user_id,product_id\nu1,p1\n"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Contains(t, resp.Body.String(), "MISSING_COLUMNS")
}

func TestUpload_HeaderOnly(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	resp := postFile(t, api, "batch.csv", []byte("transaction_id,user_id,product_id,timestamp,transaction_amount\n"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Contains(t, resp.Body.String(), "EMPTY_CSV")
}

func TestUpload_EmptyFile(t *testing.T) {
	api := newTestAPI(t, 1<<20)

	resp := postFile(t, api, "batch.csv", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Contains(t, resp.Body.String(), "EMPTY_CSV")
}
