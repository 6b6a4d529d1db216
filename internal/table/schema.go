// Package table wraps Apache Arrow record batches with the column
// schemas the upstream CSV endpoints produce, and the CSV decode /
// Parquet encode operations the pipeline's decode and finalize stages
// call.
package table

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// schemaName mirrors pipeline.Schema without importing it, to keep
// this package free of a dependency on the stage-chain package.
type schemaName string

const (
	stockEOD         schemaName = "stock_eod"
	stockQuote       schemaName = "stock_quote"
	optionEOD        schemaName = "option_eod"
	optionQuote      schemaName = "option_quote"
	optionTrade      schemaName = "option_trade"
	optionTradeQuote schemaName = "option_trade_quote"
	greekFirstOrder  schemaName = "greek_first_order"
	greekEOD         schemaName = "greek_eod"
)

var quoteFields = []arrow.Field{
	{Name: "bid_size", Type: arrow.PrimitiveTypes.Int32},
	{Name: "bid_exchange", Type: arrow.PrimitiveTypes.Int16},
	{Name: "bid", Type: arrow.PrimitiveTypes.Float64},
	{Name: "bid_condition", Type: arrow.PrimitiveTypes.Int16},
	{Name: "ask_size", Type: arrow.PrimitiveTypes.Int32},
	{Name: "ask_exchange", Type: arrow.PrimitiveTypes.Int16},
	{Name: "ask", Type: arrow.PrimitiveTypes.Float64},
	{Name: "ask_condition", Type: arrow.PrimitiveTypes.Int16},
}

var ohlcvFields = []arrow.Field{
	{Name: "open", Type: arrow.PrimitiveTypes.Float64},
	{Name: "high", Type: arrow.PrimitiveTypes.Float64},
	{Name: "low", Type: arrow.PrimitiveTypes.Float64},
	{Name: "close", Type: arrow.PrimitiveTypes.Float64},
	{Name: "volume", Type: arrow.PrimitiveTypes.Int64},
	{Name: "count", Type: arrow.PrimitiveTypes.Int64},
}

var contractFields = []arrow.Field{
	{Name: "symbol", Type: arrow.BinaryTypes.String},
	{Name: "expiration", Type: arrow.FixedWidthTypes.Date32},
	{Name: "strike", Type: arrow.PrimitiveTypes.Float64},
	{Name: "right", Type: arrow.BinaryTypes.String},
}

func ts(name string) arrow.Field {
	return arrow.Field{Name: name, Type: arrow.FixedWidthTypes.Timestamp_ms}
}

func fields(groups ...[]arrow.Field) []arrow.Field {
	var out []arrow.Field
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// schemas maps each upstream response shape to its Arrow field list,
// ported field-for-field from the Python client's pyarrow schemas.
var schemas = map[schemaName][]arrow.Field{
	stockQuote: fields([]arrow.Field{ts("timestamp")}, quoteFields),

	stockEOD: fields(
		[]arrow.Field{ts("created"), ts("last_trade")},
		ohlcvFields,
		quoteFields,
	),

	optionQuote: fields(contractFields, []arrow.Field{ts("timestamp")}, quoteFields),

	optionEOD: fields(
		contractFields,
		[]arrow.Field{ts("created"), ts("last_trade")},
		ohlcvFields,
		quoteFields,
	),

	optionTrade: fields(contractFields, []arrow.Field{ts("timestamp")}, []arrow.Field{
		{Name: "sequence", Type: arrow.PrimitiveTypes.Int64},
		{Name: "ext_condition1", Type: arrow.PrimitiveTypes.Int16},
		{Name: "ext_condition2", Type: arrow.PrimitiveTypes.Int16},
		{Name: "ext_condition3", Type: arrow.PrimitiveTypes.Int16},
		{Name: "ext_condition4", Type: arrow.PrimitiveTypes.Int16},
		{Name: "condition", Type: arrow.PrimitiveTypes.Int16},
		{Name: "size", Type: arrow.PrimitiveTypes.Int32},
		{Name: "exchange", Type: arrow.PrimitiveTypes.Int16},
		{Name: "price", Type: arrow.PrimitiveTypes.Float64},
	}),

	optionTradeQuote: fields(
		contractFields,
		[]arrow.Field{ts("trade_timestamp"), ts("quote_timestamp")},
		[]arrow.Field{
			{Name: "sequence", Type: arrow.PrimitiveTypes.Int64},
			{Name: "ext_condition1", Type: arrow.PrimitiveTypes.Int16},
			{Name: "ext_condition2", Type: arrow.PrimitiveTypes.Int16},
			{Name: "ext_condition3", Type: arrow.PrimitiveTypes.Int16},
			{Name: "ext_condition4", Type: arrow.PrimitiveTypes.Int16},
			{Name: "condition", Type: arrow.PrimitiveTypes.Int16},
			{Name: "size", Type: arrow.PrimitiveTypes.Int32},
			{Name: "exchange", Type: arrow.PrimitiveTypes.Int16},
			{Name: "price", Type: arrow.PrimitiveTypes.Float64},
		},
		quoteFields,
	),

	greekFirstOrder: fields(
		contractFields,
		[]arrow.Field{ts("timestamp")},
		[]arrow.Field{
			{Name: "bid", Type: arrow.PrimitiveTypes.Float64},
			{Name: "ask", Type: arrow.PrimitiveTypes.Float64},
			{Name: "delta", Type: arrow.PrimitiveTypes.Float64},
			{Name: "theta", Type: arrow.PrimitiveTypes.Float64},
			{Name: "vega", Type: arrow.PrimitiveTypes.Float64},
			{Name: "rho", Type: arrow.PrimitiveTypes.Float64},
			{Name: "epsilon", Type: arrow.PrimitiveTypes.Float64},
			{Name: "lambda", Type: arrow.PrimitiveTypes.Float64},
			{Name: "implied_vol", Type: arrow.PrimitiveTypes.Float64},
			{Name: "iv_error", Type: arrow.PrimitiveTypes.Float64},
		},
		[]arrow.Field{ts("underlying_timestamp")},
		[]arrow.Field{{Name: "underlying_price", Type: arrow.PrimitiveTypes.Float64}},
	),

	greekEOD: fields(
		contractFields,
		[]arrow.Field{ts("timestamp")},
		ohlcvFields,
		quoteFields,
		[]arrow.Field{
			// First-order Greeks
			{Name: "delta", Type: arrow.PrimitiveTypes.Float64},
			{Name: "gamma", Type: arrow.PrimitiveTypes.Float64},
			{Name: "vega", Type: arrow.PrimitiveTypes.Float64},
			{Name: "theta", Type: arrow.PrimitiveTypes.Float64},
			{Name: "rho", Type: arrow.PrimitiveTypes.Float64},
			{Name: "epsilon", Type: arrow.PrimitiveTypes.Float64},
			{Name: "lambda", Type: arrow.PrimitiveTypes.Float64},
			// Second-order Greeks
			{Name: "vanna", Type: arrow.PrimitiveTypes.Float64},
			{Name: "charm", Type: arrow.PrimitiveTypes.Float64},
			{Name: "vomma", Type: arrow.PrimitiveTypes.Float64},
			{Name: "veta", Type: arrow.PrimitiveTypes.Float64},
			{Name: "vera", Type: arrow.PrimitiveTypes.Float64},
			// Third-order Greeks
			{Name: "speed", Type: arrow.PrimitiveTypes.Float64},
			{Name: "zomma", Type: arrow.PrimitiveTypes.Float64},
			{Name: "color", Type: arrow.PrimitiveTypes.Float64},
			{Name: "ultima", Type: arrow.PrimitiveTypes.Float64},
			// Black-Scholes intermediate values
			{Name: "d1", Type: arrow.PrimitiveTypes.Float64},
			{Name: "d2", Type: arrow.PrimitiveTypes.Float64},
			{Name: "dual_delta", Type: arrow.BinaryTypes.String},
			{Name: "dual_gamma", Type: arrow.PrimitiveTypes.Float64},
			// Implied volatility
			{Name: "implied_vol", Type: arrow.PrimitiveTypes.Float64},
			{Name: "iv_error", Type: arrow.PrimitiveTypes.Float64},
		},
		[]arrow.Field{ts("underlying_timestamp")},
		[]arrow.Field{{Name: "underlying_price", Type: arrow.PrimitiveTypes.Float64}},
	),
}

// SchemaFor returns the Arrow schema registered for name, or an error
// if name is not one of the eight closed response shapes.
func SchemaFor(name string) (*arrow.Schema, error) {
	fs, ok := schemas[schemaName(name)]
	if !ok {
		return nil, fmt.Errorf("table: unknown schema %q", name)
	}
	return arrow.NewSchema(fs, nil), nil
}
