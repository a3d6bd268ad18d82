package dataset

import (
	"context"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/pkg/errors"

	"github.com/carson-networks/ingest-server/internal/batch"
)

// datasetSchema is the five canonical columns, all strings, in the fixed
// persisted order. Timestamps are ISO-8601 Z strings and amounts 2 dp
// decimal strings, so the file round-trips without float coercion.
var datasetSchema = arrow.NewSchema([]arrow.Field{
	{Name: batch.ColTransactionID, Type: arrow.BinaryTypes.String},
	{Name: batch.ColUserID, Type: arrow.BinaryTypes.String},
	{Name: batch.ColProductID, Type: arrow.BinaryTypes.String},
	{Name: batch.ColTimestamp, Type: arrow.BinaryTypes.String},
	{Name: batch.ColAmount, Type: arrow.BinaryTypes.String},
}, nil)

// noCloseWriter hides Close from the parquet writer so the temp file can
// still be fsynced and renamed after the footer is written.
type noCloseWriter struct {
	io.Writer
}

func (s *Store) writeParquet(w io.Writer, rows []batch.Row) error {
	transactionIDs := array.NewStringBuilder(s.pool)
	userIDs := array.NewStringBuilder(s.pool)
	productIDs := array.NewStringBuilder(s.pool)
	timestamps := array.NewStringBuilder(s.pool)
	amounts := array.NewStringBuilder(s.pool)

	defer transactionIDs.Release()
	defer userIDs.Release()
	defer productIDs.Release()
	defer timestamps.Release()
	defer amounts.Release()

	for _, row := range rows {
		transactionIDs.Append(row.TransactionID)
		userIDs.Append(row.UserID)
		productIDs.Append(row.ProductID)
		timestamps.Append(row.Timestamp)
		amounts.Append(row.Amount)
	}

	record := array.NewRecord(datasetSchema, []arrow.Array{
		transactionIDs.NewArray(),
		userIDs.NewArray(),
		productIDs.NewArray(),
		timestamps.NewArray(),
		amounts.NewArray(),
	}, int64(len(rows)))
	defer record.Release()

	writer, err := pqarrow.NewFileWriter(datasetSchema, noCloseWriter{w}, nil, pqarrow.DefaultWriterProps())
	if err != nil {
		return errors.Wrap(err, "creating parquet writer")
	}

	if err := writer.Write(record); err != nil {
		writer.Close()
		return errors.Wrap(err, "writing parquet record")
	}

	return errors.Wrap(writer.Close(), "closing parquet writer")
}

func (s *Store) readParquet(ctx context.Context, f *os.File) ([]batch.Row, error) {
	pf, err := file.NewParquetReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "opening parquet reader")
	}
	defer pf.Close()

	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, s.pool)
	if err != nil {
		return nil, errors.Wrap(err, "creating arrow reader")
	}

	table, err := reader.ReadTable(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading parquet table")
	}
	defer table.Release()

	columns := make([][]string, len(batch.CanonicalColumns))
	for i := range batch.CanonicalColumns {
		values, err := stringColumn(table, i)
		if err != nil {
			return nil, err
		}
		columns[i] = values
	}

	rows := make([]batch.Row, int(table.NumRows()))
	for i := range rows {
		rows[i] = batch.Row{
			TransactionID: columns[0][i],
			UserID:        columns[1][i],
			ProductID:     columns[2][i],
			Timestamp:     columns[3][i],
			Amount:        columns[4][i],
		}
	}

	return rows, nil
}

func stringColumn(table arrow.Table, index int) ([]string, error) {
	if index >= int(table.NumCols()) {
		return nil, errors.Errorf("dataset missing column %d", index)
	}

	values := make([]string, 0, int(table.NumRows()))
	for _, chunk := range table.Column(index).Data().Chunks() {
		stringChunk, ok := chunk.(*array.String)
		if !ok {
			return nil, errors.Errorf("dataset column %d is not a string column", index)
		}
		for i := 0; i < stringChunk.Len(); i++ {
			values = append(values, stringChunk.Value(i))
		}
	}

	return values, nil
}
