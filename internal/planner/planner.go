package planner

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "20060102"

// Calendar resolves the upstream trading-day list for a symbol, so the
// planner only issues requests for days the upstream actually has
// data for.
type Calendar interface {
	TradingDays(ctx context.Context, symbol string) ([]string, error)
}

// FileGroup is one output file: the object key it will be written to,
// and the ordered per-day upstream URLs that must all complete before
// it can be finalized.
type FileGroup struct {
	ObjectKey string
	URLs      []string
}

// Plan expands q into its constituent file groups, intersecting the
// requested date range against the upstream's trading-day calendar
// and grouping the surviving days by q.FileGranularity. baseURL is the
// same upstream host the calendar itself was built against, so data
// and calendar requests never diverge when a non-default host is
// configured.
func Plan(ctx context.Context, q Query, cal Calendar, baseURL string) ([]FileGroup, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	requested, err := dateRange(q.StartDate, q.EndDate)
	if err != nil {
		return nil, err
	}

	tradingDays, err := cal.TradingDays(ctx, q.Symbol)
	if err != nil {
		return nil, fmt.Errorf("planner: resolving trading days: %w", err)
	}
	tradingSet := make(map[string]bool, len(tradingDays))
	for _, d := range tradingDays {
		tradingSet[d] = true
	}

	var days []string
	for _, d := range requested {
		if tradingSet[d] {
			days = append(days, d)
		}
	}
	sort.Strings(days)

	base := fmt.Sprintf("%s/%s", q.objectFolder(), q.Symbol)

	var groups []FileGroup
	switch q.FileGranularity {
	case GranularityMonthly:
		groups = groupMonthly(days, base, q, baseURL)
	case GranularityDaily:
		groups = groupDaily(days, base, q, baseURL)
	}
	return groups, nil
}

func groupMonthly(days []string, base string, q Query, baseURL string) []FileGroup {
	byYearMonth := map[string][]string{}
	var order []string
	for _, d := range days {
		key := d[:6] // YYYYMM
		if _, ok := byYearMonth[key]; !ok {
			order = append(order, key)
		}
		byYearMonth[key] = append(byYearMonth[key], d)
	}

	var groups []FileGroup
	for _, ym := range order {
		year, month := ym[:4], ym[4:6]
		objectKey := fmt.Sprintf("%s/%s/%s/data.parquet", base, year, month)
		groups = append(groups, FileGroup{
			ObjectKey: objectKey,
			URLs:      urlsForDays(q, byYearMonth[ym], baseURL),
		})
	}
	return groups
}

func groupDaily(days []string, base string, q Query, baseURL string) []FileGroup {
	var groups []FileGroup
	for _, d := range days {
		year, month, day := d[:4], d[4:6], d[6:]
		objectKey := fmt.Sprintf("%s/%s/%s/%s/data.parquet", base, year, month, day)
		groups = append(groups, FileGroup{
			ObjectKey: objectKey,
			URLs:      urlsForDays(q, []string{d}, baseURL),
		})
	}
	return groups
}

// dateRange enumerates every calendar day from start to end inclusive,
// both given as YYYYMMDD integers.
func dateRange(start, end int) ([]string, error) {
	s, err := time.Parse(dateLayout, strconv.Itoa(start))
	if err != nil {
		return nil, fmt.Errorf("planner: invalid start_date %d: %w", start, err)
	}
	e, err := time.Parse(dateLayout, strconv.Itoa(end))
	if err != nil {
		return nil, fmt.Errorf("planner: invalid end_date %d: %w", end, err)
	}

	var days []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(dateLayout))
	}
	return days, nil
}

// urlsForDays builds one upstream GET URL per day, base params shared
// across every day plus the date/start-end params specific to each.
// The '*' wildcard for option expiration/strike is left unescaped, per
// the upstream API's expectation of a literal glob character rather
// than a percent-encoded one. baseURL is the configured upstream host
// (e.g. cfg.BaseURL), the same one the calendar resolves against.
func urlsForDays(q Query, days []string, baseURL string) []string {
	base := fmt.Sprintf("%s/%s/%s/%s", strings.TrimSuffix(baseURL, "/"), q.AssetClass, q.DataType, q.Endpoint)

	baseParams := url.Values{}
	baseParams.Set("symbol", q.Symbol)
	if q.Endpoint != EndpointEOD && q.Endpoint != EndpointGreeksEOD {
		baseParams.Set("interval", string(q.Interval))
	}
	if q.AssetClass == AssetOption {
		baseParams.Set("expiration", "*")
		baseParams.Set("strike", "*")
	}

	urls := make([]string, 0, len(days))
	for _, d := range days {
		params := url.Values{}
		for k, v := range baseParams {
			params[k] = v
		}
		if q.Endpoint != EndpointEOD && q.Endpoint != EndpointGreeksEOD {
			params.Set("date", d)
		} else {
			params.Set("start_date", d)
			params.Set("end_date", d)
		}
		urls = append(urls, base+"?"+encodeKeepStar(params))
	}
	return urls
}

// encodeKeepStar is url.Values.Encode with '*' left unescaped, matching
// the upstream's literal-glob expectation for expiration/strike.
func encodeKeepStar(params url.Values) string {
	encoded := params.Encode()
	return strings.ReplaceAll(encoded, "%2A", "*")
}
