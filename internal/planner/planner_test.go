package planner

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCalendar struct {
	days []string
}

func (f fakeCalendar) TradingDays(ctx context.Context, symbol string) ([]string, error) {
	return f.days, nil
}

func TestPlanGroupsMonthlyAcrossMonthBoundary(t *testing.T) {
	q := Query{
		Symbol:          "AAPL",
		StartDate:       20240130,
		EndDate:         20240202,
		AssetClass:      AssetStock,
		DataType:        DataHistory,
		Endpoint:        EndpointEOD,
		FileGranularity: GranularityMonthly,
	}
	cal := fakeCalendar{days: []string{"20240130", "20240131", "20240201", "20240202"}}

	groups, err := Plan(context.Background(), q, cal, "http://localhost:25503/v3")
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Contains(t, groups[0].ObjectKey, "/2024/01/data.parquet")
	assert.Len(t, groups[0].URLs, 2)
	assert.Contains(t, groups[1].ObjectKey, "/2024/02/data.parquet")
	assert.Len(t, groups[1].URLs, 2)
}

func TestPlanDropsDaysNotInTradingCalendar(t *testing.T) {
	q := Query{
		Symbol:          "AAPL",
		StartDate:       20240101,
		EndDate:         20240107,
		AssetClass:      AssetStock,
		DataType:        DataHistory,
		Endpoint:        EndpointQuote,
		Interval:        Interval1h,
		FileGranularity: GranularityDaily,
	}
	// Only one of the seven requested days is a trading day.
	cal := fakeCalendar{days: []string{"20240103"}}

	groups, err := Plan(context.Background(), q, cal, "http://localhost:25503/v3")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Contains(t, groups[0].ObjectKey, "/2024/01/03/data.parquet")
}

func TestOptionURLsKeepLiteralWildcard(t *testing.T) {
	q := Query{
		Symbol:     "AAPL",
		AssetClass: AssetOption,
		DataType:   DataHistory,
		Endpoint:   EndpointQuote,
		Interval:   Interval1h,
	}
	urls := urlsForDays(q, []string{"20240103"}, "http://localhost:25503/v3")
	require.Len(t, urls, 1)
	assert.Contains(t, urls[0], "expiration=*")
	assert.Contains(t, urls[0], "strike=*")
	assert.True(t, strings.HasPrefix(urls[0], "http://localhost:25503/v3/"))

	parsed, err := url.Parse(urls[0])
	require.NoError(t, err)
	assert.Equal(t, "AAPL", parsed.Query().Get("symbol"))
}

func TestURLsForDaysUsesConfiguredBaseURL(t *testing.T) {
	q := Query{
		Symbol:     "AAPL",
		AssetClass: AssetStock,
		DataType:   DataHistory,
		Endpoint:   EndpointEOD,
	}
	urls := urlsForDays(q, []string{"20240103"}, "https://theta.internal.example/v3/")
	require.Len(t, urls, 1)
	assert.True(t, strings.HasPrefix(urls[0], "https://theta.internal.example/v3/stock/history/eod?"))
}

func TestValidateRejectsEndpointForAssetClass(t *testing.T) {
	q := Query{
		Symbol:          "AAPL",
		StartDate:       20240101,
		EndDate:         20240101,
		AssetClass:      AssetStock,
		Endpoint:        EndpointTrade,
		FileGranularity: GranularityMonthly,
	}
	assert.Error(t, q.Validate())
}
