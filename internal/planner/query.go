// Package planner expands a logical data request into the set of
// upstream URLs and output object keys it resolves to, intersecting
// the requested date range against the upstream trading-day calendar.
package planner

import "fmt"

// Interval is the bar width for non-EOD endpoints.
type Interval string

const (
	IntervalTick Interval = "tick"
	Interval10ms Interval = "10ms"
	Interval100ms Interval = "100ms"
	Interval500ms Interval = "500ms"
	Interval1s   Interval = "1s"
	Interval5s   Interval = "5s"
	Interval15s  Interval = "15s"
	Interval30s  Interval = "30s"
	Interval1m   Interval = "1m"
	Interval5m   Interval = "5m"
	Interval15m  Interval = "15m"
	Interval30m  Interval = "30m"
	Interval1h   Interval = "1h"
)

// AssetClass is the top-level upstream namespace.
type AssetClass string

const (
	AssetStock  AssetClass = "stock"
	AssetOption AssetClass = "option"
)

// DataType distinguishes historical backfill from live snapshots. Only
// History is in scope (spec Non-goals exclude snapshot/streaming
// upstream endpoints); the type is kept so the object-key layout and
// URL shape match the upstream API's full namespace.
type DataType string

const (
	DataHistory DataType = "history"
	DataSnapshot DataType = "snapshot"
)

// Endpoint is the response shape requested within an asset class.
type Endpoint string

const (
	EndpointEOD               Endpoint = "eod"
	EndpointQuote             Endpoint = "quote"
	EndpointTrade             Endpoint = "trade"
	EndpointTradeQuote        Endpoint = "trade_quote"
	EndpointGreeksFirstOrder  Endpoint = "greeks/first_order"
	EndpointGreeksEOD         Endpoint = "greeks/eod"
)

// FileGranularity controls how many calendar days are coalesced into
// one output file.
type FileGranularity string

const (
	GranularityMonthly FileGranularity = "monthly"
	GranularityDaily    FileGranularity = "daily"
)

// Query is a single logical backfill request: one symbol, one
// inclusive YYYYMMDD date range, one endpoint within one asset class.
type Query struct {
	Symbol          string
	StartDate       int // YYYYMMDD
	EndDate         int // YYYYMMDD
	AssetClass      AssetClass
	DataType        DataType
	Endpoint        Endpoint
	Interval        Interval
	ForceRefresh    bool
	FileGranularity FileGranularity
}

var stockEndpoints = map[Endpoint]bool{
	EndpointEOD:   true,
	EndpointQuote: true,
}

var optionEndpoints = map[Endpoint]bool{
	EndpointEOD:              true,
	EndpointQuote:            true,
	EndpointTrade:            true,
	EndpointTradeQuote:       true,
	EndpointGreeksEOD:        true,
	EndpointGreeksFirstOrder: true,
}

// Validate checks the endpoint is legal for the query's asset class,
// the standing per-class namespace constraint (spec §3).
func (q Query) Validate() error {
	if q.StartDate > q.EndDate {
		return fmt.Errorf("planner: start_date %d after end_date %d", q.StartDate, q.EndDate)
	}
	switch q.AssetClass {
	case AssetStock:
		if !stockEndpoints[q.Endpoint] {
			return fmt.Errorf("planner: invalid endpoint %q for stock, valid: eod, quote", q.Endpoint)
		}
	case AssetOption:
		if !optionEndpoints[q.Endpoint] {
			return fmt.Errorf("planner: invalid endpoint %q for option, valid: eod, quote, trade, trade_quote, greeks/eod, greeks/first_order", q.Endpoint)
		}
	default:
		return fmt.Errorf("planner: unknown asset class %q", q.AssetClass)
	}
	if q.FileGranularity != GranularityMonthly && q.FileGranularity != GranularityDaily {
		return fmt.Errorf("planner: unknown file granularity %q", q.FileGranularity)
	}
	return nil
}

// Schema returns the decode-stage schema tag this query's responses
// must be parsed with.
func (q Query) Schema() string {
	switch q.AssetClass {
	case AssetStock:
		if q.Endpoint == EndpointEOD {
			return "stock_eod"
		}
		return "stock_quote"
	case AssetOption:
		switch q.Endpoint {
		case EndpointGreeksEOD:
			return "greek_eod"
		case EndpointGreeksFirstOrder:
			return "greek_first_order"
		case EndpointEOD:
			return "option_eod"
		case EndpointTrade:
			return "option_trade"
		case EndpointTradeQuote:
			return "option_trade_quote"
		default:
			return "option_quote"
		}
	}
	return ""
}

// objectFolder returns the root/class/endpoint/granularity/interval
// segment shared by every object key this query produces.
func (q Query) objectFolder() string {
	intervalSegment := string(q.Interval)
	if q.Endpoint == EndpointEOD || q.Endpoint == EndpointGreeksEOD {
		intervalSegment = "1d"
	}
	return fmt.Sprintf(
		"thetadata/%s/%s/%s/%s/%s",
		q.AssetClass, q.DataType, q.Endpoint, q.FileGranularity, intervalSegment,
	)
}
