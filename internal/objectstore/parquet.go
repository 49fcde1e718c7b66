package objectstore

import (
	"fmt"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

// parquetParallelism is the xitongsys/parquet-go writer/reader concurrency
// factor. Event and projection files are small per-partition batches, so a
// low fixed value is enough; no need to thread it through Config.
const parquetParallelism = 4

// EncodeParquet writes rows — pointers to a struct tagged with
// `parquet:"..."` — to an in-memory Parquet buffer. T fixes the schema for
// both the event partitions (the row schema in internal/events) and the
// single-column PK index (internal/publish's key_hash schema).
func EncodeParquet[T any](rows []*T) ([]byte, error) {
	pFile := buffer.NewBufferFile()

	var schema T

	pw, err := writer.NewParquetWriter(pFile, &schema, parquetParallelism)
	if err != nil {
		return nil, fmt.Errorf("new parquet writer: %w", err)
	}

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			return nil, fmt.Errorf("write parquet row: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}

	return pFile.Bytes(), nil
}

// DecodeParquet reads every row of type T out of an in-memory Parquet
// buffer.
func DecodeParquet[T any](body []byte) ([]*T, error) {
	pFile := buffer.NewBufferFileFromBytes(body)

	var schema T

	pr, err := reader.NewParquetReader(pFile, &schema, parquetParallelism)
	if err != nil {
		return nil, fmt.Errorf("new parquet reader: %w", err)
	}
	defer pr.ReadStop()

	numRows := int(pr.GetNumRows())
	buf := make([]T, numRows)

	if err := pr.Read(&buf); err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}

	rows := make([]*T, numRows)
	for i := range buf {
		rows[i] = &buf[i]
	}

	return rows, nil
}
