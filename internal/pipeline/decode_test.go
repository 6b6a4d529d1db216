package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStageMarksSkippedOnNilBody(t *testing.T) {
	fwj := NewFileWriteJob("obj", 1)
	job := &Job{Schema: SchemaStockEOD, Body: nil, Parent: fwj}

	stage := DecodeStage(nil, nil)
	_, fwd, err := stage(job)

	require.NoError(t, err)
	assert.True(t, fwd)
	assert.True(t, fwj.HasSkips())
	assert.True(t, fwj.IsComplete())
	assert.True(t, job.BarrierClosed)
}

func TestDecodeStageParsesCSVIntoTable(t *testing.T) {
	fwj := NewFileWriteJob("obj", 1)
	csv := "created,last_trade,open,high,low,close,volume,count,bid_size,bid_exchange,bid,bid_condition,ask_size,ask_exchange,ask,ask_condition\n" +
		"2024-01-02T09:30:00.000,2024-01-02T16:00:00.000,100.0,101.5,99.5,101.0,1000000,5000,10,1,100.9,0,10,1,101.1,0\n"
	job := &Job{Schema: SchemaStockEOD, Body: []byte(csv), Parent: fwj}

	stage := DecodeStage(nil, nil)
	_, fwd, err := stage(job)

	require.NoError(t, err)
	assert.True(t, fwd)
	assert.True(t, fwj.IsComplete())
	assert.False(t, fwj.HasSkips())
	assert.True(t, job.BarrierClosed)
	require.Len(t, fwj.Tables(), 1)
	assert.EqualValues(t, 1, fwj.Tables()[0].NumRows())
}
