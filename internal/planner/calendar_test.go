package planner

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type countingCalendar struct {
	calls int
	days  []string
}

func (c *countingCalendar) TradingDays(ctx context.Context, symbol string) ([]string, error) {
	c.calls++
	return c.days, nil
}

func TestCachedCalendarHitsRedisOnSecondCall(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingCalendar{days: []string{"20240102", "20240103"}}
	cached := NewCachedCalendar(inner, client, time.Minute)

	days1, err := cached.TradingDays(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, inner.days, days1)
	assert.Equal(t, 1, inner.calls)

	days2, err := cached.TradingDays(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, inner.days, days2)
	assert.Equal(t, 1, inner.calls, "second call should be served from redis, not the inner resolver")
}
