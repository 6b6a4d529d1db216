package table

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// EncodeParquet serializes t to a Parquet byte buffer, snappy-compressed,
// for upload as the finalized output file.
func EncodeParquet(t Table) ([]byte, error) {
	arrowTable := t.arrowTable()
	defer arrowTable.Release()

	var buf bytes.Buffer

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
	)
	arrowProps := pqarrow.DefaultWriterProps()

	if err := pqarrow.WriteTable(arrowTable, &buf, arrowTable.NumRows(), writerProps, arrowProps); err != nil {
		return nil, fmt.Errorf("table: writing parquet: %w", err)
	}
	return buf.Bytes(), nil
}
