// Package pipeline implements the fetch → decode → finalize stage chain
// and the per-file fan-in barrier that coalesces per-day results into a
// single output file.
package pipeline

import (
	"sync"

	"thetaclient/internal/table"
)

// Schema names a closed column layout used by the decode stage to parse
// a CSV response into a typed table.
type Schema string

const (
	SchemaStockEOD         Schema = "stock_eod"
	SchemaStockQuote       Schema = "stock_quote"
	SchemaOptionEOD        Schema = "option_eod"
	SchemaOptionQuote      Schema = "option_quote"
	SchemaOptionTrade      Schema = "option_trade"
	SchemaOptionTradeQuote Schema = "option_trade_quote"
	SchemaGreekFirstOrder  Schema = "greek_first_order"
	SchemaGreekEOD         Schema = "greek_eod"
)

// FileWriteJob is the completion latch for one output file: it tracks
// how many of its constituent per-day items have crossed the pipeline,
// and whether any of them were empty (skipped) upstream responses.
//
// total_items is fixed at construction; each item must cross exactly
// once via AddTable or MarkItemSkipped.
type FileWriteJob struct {
	ObjectKey string

	mu             sync.Mutex
	totalItems     int
	completedItems int
	skippedItems   bool
	completed      bool
	tables         []table.Table
}

// NewFileWriteJob creates the barrier for objectKey with the given
// number of constituent per-day items.
func NewFileWriteJob(objectKey string, totalItems int) *FileWriteJob {
	return &FileWriteJob{ObjectKey: objectKey, totalItems: totalItems}
}

// AddTable appends a decoded table and advances the completion counter.
// Must be called at most once per item. Returns true for the one call
// (across AddTable/MarkItemSkipped) that closes the barrier, so the
// caller can act on completion exactly once instead of every sibling
// re-observing IsComplete() as true.
func (f *FileWriteJob) AddTable(t table.Table) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables = append(f.tables, t)
	return f.increment()
}

// MarkItemSkipped records an item whose upstream response carried no
// data, and advances the completion counter the same as AddTable.
// Returns true only for the call that closes the barrier.
func (f *FileWriteJob) MarkItemSkipped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skippedItems = true
	return f.increment()
}

// increment must be called with mu held. Returns true exactly once per
// FileWriteJob, on the call that brings completedItems to totalItems.
func (f *FileWriteJob) increment() bool {
	f.completedItems++
	if f.completedItems == f.totalItems && !f.completed {
		f.completed = true
		return true
	}
	return false
}

// IsComplete reports whether every constituent item has crossed the
// barrier. Sticky once true.
func (f *FileWriteJob) IsComplete() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// HasSkips reports whether at least one item was an empty upstream
// response. Sticky once true.
func (f *FileWriteJob) HasSkips() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.skippedItems
}

// Tables returns the tables accumulated so far. Only safe to call once
// IsComplete() is true and only from the finalize stage, which is the
// sole reader of this slice.
func (f *FileWriteJob) Tables() []table.Table {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables
}

// TotalItems returns the fixed fan-out count for this file.
func (f *FileWriteJob) TotalItems() int {
	return f.totalItems
}

// Job is a unit of work flowing fetch → decode → finalize: one upstream
// URL, the schema used to decode it, and a back-pointer to the
// FileWriteJob it contributes to. Body is populated by fetch and
// consumed by decode.
type Job struct {
	URL    string
	Schema Schema
	Body   []byte // nil means the upstream reported "no data" for this URL
	Parent *FileWriteJob

	// BarrierClosed is set by decode to true only for the one item
	// whose AddTable/MarkItemSkipped call closed Parent's barrier.
	// Finalize acts on this flag instead of re-checking Parent.IsComplete(),
	// which every sibling would otherwise observe as true once the
	// barrier closes, causing duplicate emission.
	BarrierClosed bool
}
