package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaForKnownSchemas(t *testing.T) {
	for _, name := range []string{
		"stock_eod", "stock_quote", "option_eod", "option_quote",
		"option_trade", "option_trade_quote", "greek_first_order", "greek_eod",
	} {
		schema, err := SchemaFor(name)
		require.NoError(t, err, name)
		assert.Greater(t, len(schema.Fields()), 0, name)
	}
}

func TestSchemaForUnknownSchema(t *testing.T) {
	_, err := SchemaFor("not_a_real_schema")
	assert.Error(t, err)
}

func TestStockEODHasExpectedColumnCount(t *testing.T) {
	schema, err := SchemaFor("stock_eod")
	require.NoError(t, err)
	// created, last_trade, OHLCV(6), quote(8)
	assert.Len(t, schema.Fields(), 2+6+8)
}

func TestGreekEODHasExpectedColumnCount(t *testing.T) {
	schema, err := SchemaFor("greek_eod")
	require.NoError(t, err)
	// contract(4) + timestamp(1) + OHLCV(6) + quote(8) + first-order(7)
	// + second-order(5) + third-order(4) + BS intermediates(4) + iv(2)
	// + underlying_timestamp(1) + underlying_price(1)
	assert.Len(t, schema.Fields(), 4+1+6+8+7+5+4+4+2+1+1)
}
