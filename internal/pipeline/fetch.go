package pipeline

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"thetaclient/internal/metrics"
)

// noDataStatus is the upstream sentinel status code for "empty result,
// not an error" (spec §6).
const noDataStatus = 472

// noDataBodySubstring must appear in the response body alongside
// noDataStatus for the response to be treated as an empty result
// rather than a hard failure.
const noDataBodySubstring = "No data found for your request"

// fetchTimeout bounds a single upstream GET end-to-end.
const fetchTimeout = 120 * time.Second

// ErrUpstream wraps any non-2xx, non-472 response or transport failure
// from the upstream data service. Fatal for the pipeline (spec §7.4).
var ErrUpstream = errors.New("upstream fetch failed")

// NewHTTPClient builds the process-wide HTTP client used by the fetch
// stage: HTTP/2 preferred, a connection pool sized to numThreads (both
// max and keepalive), and zero transport-level retries — the upstream
// is expected to be on localhost or a controlled peer.
func NewHTTPClient(numThreads int) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        numThreads,
		MaxIdleConnsPerHost: numThreads,
		MaxConnsPerHost:     numThreads,
		IdleConnTimeout:     90 * time.Second,
	}
	// Best-effort HTTP/2: TLS connections negotiate h2 via ALPN and fall
	// back to HTTP/1.1 if the upstream does not offer it. Cleartext
	// http:// connections stay on HTTP/1.1.
	_ = http2.ConfigureTransport(transport)

	return &http.Client{
		Transport: transport,
		Timeout:   fetchTimeout,
	}
}

// FetchStage builds the fetch stage's ProcessFunc: GET job.URL, resolve
// the "no data" sentinel, and attach the response body to the Job.
// Never drops a Job — every Job it accepts is forwarded, whether or not
// it carries a body.
func FetchStage(client *http.Client, met metrics.Collector, log *zap.SugaredLogger) ProcessFunc {
	return func(job *Job) (*Job, bool, error) {
		start := time.Now()

		resp, err := client.Get(job.URL)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %s: %v", ErrUpstream, job.URL, err)
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(resp.Body)
		elapsed := time.Since(start)

		if resp.StatusCode == noDataStatus {
			if readErr == nil && strings.Contains(string(body), noDataBodySubstring) {
				if log != nil {
					log.Warnw("no data for request", "url", job.URL, "elapsed_ms", elapsed.Milliseconds())
				}
				if met != nil {
					met.RecordFetch(elapsed, true)
				}
				job.Body = nil
				return job, true, nil
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, false, fmt.Errorf("%w: %s: status %d", ErrUpstream, job.URL, resp.StatusCode)
		}
		if readErr != nil {
			return nil, false, fmt.Errorf("%w: %s: reading body: %v", ErrUpstream, job.URL, readErr)
		}

		if log != nil {
			log.Debugw("fetched", "url", job.URL, "elapsed_ms", elapsed.Milliseconds(), "bytes", len(body))
		}
		if met != nil {
			met.RecordFetch(elapsed, false)
		}

		job.Body = body
		return job, true, nil
	}
}
