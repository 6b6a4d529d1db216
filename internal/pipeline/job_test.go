package pipeline

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"thetaclient/internal/table"
)

func TestFileWriteJobCompletesAfterAllItems(t *testing.T) {
	fwj := NewFileWriteJob("thetadata/stock/history/eod/monthly/1d/AAPL/2024/01/data.parquet", 3)

	assert.False(t, fwj.IsComplete())

	fwj.AddTable(table.Table{})
	assert.False(t, fwj.IsComplete())

	fwj.MarkItemSkipped()
	assert.False(t, fwj.IsComplete())
	assert.True(t, fwj.HasSkips())

	fwj.AddTable(table.Table{})
	assert.True(t, fwj.IsComplete())
}

func TestFileWriteJobConcurrentIncrement(t *testing.T) {
	const totalItems = 200
	fwj := NewFileWriteJob("obj", totalItems)

	var wg sync.WaitGroup
	var closedCount int32
	for i := 0; i < totalItems; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var closed bool
			if i%2 == 0 {
				closed = fwj.AddTable(table.Table{})
			} else {
				closed = fwj.MarkItemSkipped()
			}
			if closed {
				atomic.AddInt32(&closedCount, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.True(t, fwj.IsComplete())
	assert.True(t, fwj.HasSkips())
	assert.Equal(t, totalItems, fwj.TotalItems())
	assert.Len(t, fwj.Tables(), totalItems/2)
	assert.EqualValues(t, 1, closedCount, "exactly one of the concurrent calls must observe the barrier closing")
}
