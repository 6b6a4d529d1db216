package table

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Table is one decoded response: a fixed Arrow schema plus the record
// batches accumulated for it. A finalized output file is the
// concatenation of every Table contributed by its constituent items.
type Table struct {
	Schema  *arrow.Schema
	Records []arrow.Record
}

// NumRows sums the row count across every record batch.
func (t Table) NumRows() int64 {
	var n int64
	for _, r := range t.Records {
		n += r.NumRows()
	}
	return n
}

// Release drops the reference held on every record batch. Callers must
// call this once a Table (or the Concat built from it) is no longer
// needed.
func (t Table) Release() {
	for _, r := range t.Records {
		r.Release()
	}
}

// DecodeCSV parses an upstream CSV response body against the named
// schema's column types, mirroring pyarrow.csv.read_csv with an
// explicit convert_options column-type map.
func DecodeCSV(schemaName string, body []byte) (Table, error) {
	schema, err := SchemaFor(schemaName)
	if err != nil {
		return Table{}, err
	}

	reader := csv.NewReader(
		bytes.NewReader(body),
		schema,
		csv.WithHeader(true),
		csv.WithAllocator(memory.DefaultAllocator),
	)
	defer reader.Release()

	var records []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := reader.Err(); err != nil {
		for _, r := range records {
			r.Release()
		}
		return Table{}, fmt.Errorf("table: decoding csv: %w", err)
	}

	return Table{Schema: schema, Records: records}, nil
}

// Concat merges the record batches of several Tables sharing the same
// schema into one Table, for the finalize stage coalescing every item
// of a FileWriteJob into a single output file. Empty (skipped) inputs
// contribute no batches.
func Concat(tables []Table) (Table, error) {
	if len(tables) == 0 {
		return Table{}, fmt.Errorf("table: concat of zero tables")
	}
	schema := tables[0].Schema
	var records []arrow.Record
	for _, t := range tables {
		if t.Schema != nil && !t.Schema.Equal(schema) {
			return Table{}, fmt.Errorf("table: concat: schema mismatch")
		}
		for _, r := range t.Records {
			r.Retain()
			records = append(records, r)
		}
	}
	return Table{Schema: schema, Records: records}, nil
}

// arrowTable builds a unified array.Table from the record batches, the
// shape pqarrow needs to write Parquet.
func (t Table) arrowTable() arrow.Table {
	return array.NewTableFromRecords(t.Schema, t.Records)
}
