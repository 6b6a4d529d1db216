package ledger

import (
	"strings"
	"time"

	"github.com/jackc/pgconn"
)

// isConnectionError reports whether err looks like a transient
// connectivity failure rather than a query/schema problem, so such
// errors get a larger retry budget than other errors.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if pgErr, ok := err.(*pgconn.PgError); ok {
		sqlState := pgErr.Code
		return strings.HasPrefix(sqlState, "08") ||
			sqlState == "57P01" ||
			sqlState == "57P02" ||
			sqlState == "57P03"
	}

	errStr := strings.ToLower(err.Error())
	keywords := []string{
		"connection refused",
		"connection reset",
		"connection closed",
		"unexpected eof",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"timeout",
		"connection lost",
		"server closed the connection",
	}
	for _, k := range keywords {
		if strings.Contains(errStr, k) {
			return true
		}
	}
	return false
}

// retryPlan yields the attempt count and per-attempt backoff for a
// given error class: connection errors get 10 attempts, every other
// error 5, both starting at a 500ms backoff.
func retryPlan(err error) (maxAttempts int, initialBackoff time.Duration) {
	if isConnectionError(err) {
		return 10, 500 * time.Millisecond
	}
	return 5, 500 * time.Millisecond
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}
