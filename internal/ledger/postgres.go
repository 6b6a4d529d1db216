package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Postgres is a Ledger backed by a pgxpool connection pool. Table
// names match the teacher's tracker-table naming (ohlcv_update_state,
// ohlcv_failed_files), adapted to this domain's per-object-key
// granularity instead of per-timeframe.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an already-connected pool. Schema is created by
// the caller via Migrate before first use.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the ledger tables if they do not already exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := withRetry(ctx, pool, `
		CREATE TABLE IF NOT EXISTS thetaclient_finalized_files (
			object_key TEXT PRIMARY KEY,
			rows BIGINT NOT NULL,
			finalized_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}
	_, err = withRetry(ctx, pool, `
		CREATE TABLE IF NOT EXISTS thetaclient_failed_files (
			object_key TEXT NOT NULL,
			url TEXT NOT NULL,
			reason TEXT NOT NULL,
			failed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (object_key, url)
		)`)
	return err
}

func (p *Postgres) IsFinalized(ctx context.Context, objectKey string) (bool, error) {
	row := p.pool.QueryRow(ctx, `SELECT 1 FROM thetaclient_finalized_files WHERE object_key = $1`, objectKey)
	var dummy int
	err := row.Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *Postgres) MarkFinalized(ctx context.Context, objectKey string, rows int64) error {
	_, err := withRetry(ctx, p.pool, `
		INSERT INTO thetaclient_finalized_files(object_key, rows, finalized_at)
		VALUES ($1, $2, now())
		ON CONFLICT (object_key) DO UPDATE SET rows = EXCLUDED.rows, finalized_at = EXCLUDED.finalized_at`,
		objectKey, rows)
	return err
}

func (p *Postgres) RecordFailures(ctx context.Context, files []FailedFile) error {
	for _, f := range files {
		_, err := withRetry(ctx, p.pool, `
			INSERT INTO thetaclient_failed_files(object_key, url, reason)
			VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			f.ObjectKey, f.URL, f.Reason)
		if err != nil {
			return fmt.Errorf("ledger: recording failure for %s: %w", f.ObjectKey, err)
		}
	}
	return nil
}

// withRetry executes query, retrying any error with exponential
// backoff; retryPlan gives connection errors more attempts than other
// errors.
func withRetry(ctx context.Context, pool *pgxpool.Pool, query string, args ...interface{}) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	var err error
	backoff := 500 * time.Millisecond
	maxAttempts := 5

	for attempt := 1; ; attempt++ {
		tag, err = pool.Exec(ctx, query, args...)
		if err == nil {
			return tag, nil
		}
		if ctx.Err() != nil {
			return tag, ctx.Err()
		}

		planned, initial := retryPlan(err)
		if attempt == 1 {
			maxAttempts = planned
			backoff = initial
		}
		if attempt >= maxAttempts {
			break
		}

		log.Printf("ledger: exec failed (attempt %d/%d): %v", attempt, maxAttempts, err)
		time.Sleep(backoff)
		backoff = nextBackoff(backoff)
	}
	return tag, err
}

var _ Ledger = (*Postgres)(nil)
