package planner

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// HTTPCalendar resolves trading days by calling the upstream's
// /stock/list/dates/quote endpoint, which is the same per-symbol
// trading-day list regardless of asset class or endpoint being
// planned (options trade on the same calendar as their underlying).
type HTTPCalendar struct {
	baseURL string
	client  *http.Client
}

// NewHTTPCalendar builds a calendar resolver against baseURL (e.g.
// "http://localhost:25503/v3").
func NewHTTPCalendar(baseURL string, client *http.Client) *HTTPCalendar {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPCalendar{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

// TradingDays fetches and parses the CSV "date" column, keeping only
// weekdays: the upstream is not expected to return weekend rows, but a
// malformed response should not plan requests for days markets are
// known to be closed.
func (c *HTTPCalendar) TradingDays(ctx context.Context, symbol string) ([]string, error) {
	reqURL := fmt.Sprintf("%s/stock/list/dates/quote?symbol=%s", c.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("planner: fetching trading days for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("planner: trading days for %s: status %d", symbol, resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("planner: parsing trading days csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	dateCol := -1
	for i, h := range records[0] {
		if h == "date" {
			dateCol = i
			break
		}
	}
	if dateCol == -1 {
		return nil, fmt.Errorf("planner: trading days csv missing date column")
	}

	var days []string
	for _, row := range records[1:] {
		raw := strings.ReplaceAll(row[dateCol], "-", "")
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			continue
		}
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		days = append(days, raw)
	}
	return days, nil
}

// CachedCalendar wraps a Calendar with a Redis-backed cache keyed by
// symbol, so repeated Plan calls across requests in the same process
// (or across processes sharing the Redis instance) don't re-fetch the
// same symbol's trading-day list on every call.
type CachedCalendar struct {
	inner Calendar
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedCalendar wraps inner with a Redis cache. A zero ttl disables
// expiry (entries live until evicted or flushed).
func NewCachedCalendar(inner Calendar, client *redis.Client, ttl time.Duration) *CachedCalendar {
	return &CachedCalendar{inner: inner, redis: client, ttl: ttl}
}

func (c *CachedCalendar) TradingDays(ctx context.Context, symbol string) ([]string, error) {
	key := "thetaclient:calendar:" + symbol

	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		return strings.Split(cached, ","), nil
	}
	if err != redis.Nil {
		// Cache unavailable: fall through to the live resolver rather
		// than fail the whole plan over a cache outage.
		_ = err
	}

	days, err := c.inner.TradingDays(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if len(days) > 0 {
		_ = c.redis.Set(ctx, key, strings.Join(days, ","), c.ttl).Err()
	}
	return days, nil
}
