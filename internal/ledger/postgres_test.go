package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("thetaclient_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	return pool
}

func TestPostgresLedgerMarkAndCheckFinalized(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	pool := newTestPool(t)
	led := NewPostgres(pool)
	ctx := context.Background()

	ok, err := led.IsFinalized(ctx, "thetadata/stock/history/eod/monthly/1d/AAPL/2024/01/data.parquet")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, led.MarkFinalized(ctx, "thetadata/stock/history/eod/monthly/1d/AAPL/2024/01/data.parquet", 42))

	ok, err = led.IsFinalized(ctx, "thetadata/stock/history/eod/monthly/1d/AAPL/2024/01/data.parquet")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPostgresLedgerRecordFailures(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	pool := newTestPool(t)
	led := NewPostgres(pool)
	ctx := context.Background()

	err := led.RecordFailures(ctx, []FailedFile{
		{ObjectKey: "obj", URL: "http://localhost/x", Reason: "timeout"},
	})
	require.NoError(t, err)

	// Recording the same failure twice must not error (ON CONFLICT DO NOTHING).
	err = led.RecordFailures(ctx, []FailedFile{
		{ObjectKey: "obj", URL: "http://localhost/x", Reason: "timeout"},
	})
	require.NoError(t, err)
}
