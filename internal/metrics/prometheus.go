package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus is a Collector backed by client_golang. A process normally
// constructs one instance and shares it across every Request/Stream
// call the client makes.
type Prometheus struct {
	httpRequests   prometheus.Counter
	noDataRequests prometheus.Counter
	fetchDuration  prometheus.Histogram
	rowsProcessed  prometheus.Counter
	filesFinalized prometheus.Counter
	filesSkipped   prometheus.Counter
	requestsTotal  *prometheus.CounterVec
	requestSeconds prometheus.Histogram
	filesInFlight  prometheus.Gauge
}

// NewPrometheus registers the theta-client collector family and returns
// a ready-to-use Collector. Panics on duplicate registration, matching
// promauto's behavior for process-lifetime singletons.
func NewPrometheus() *Prometheus {
	return &Prometheus{
		httpRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "thetaclient_http_requests_total",
			Help: "Total upstream GET requests issued by the fetch stage",
		}),
		noDataRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "thetaclient_http_no_data_total",
			Help: "Upstream GET requests answered with the no-data sentinel",
		}),
		fetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "thetaclient_fetch_duration_seconds",
			Help:    "Upstream GET latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		rowsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "thetaclient_rows_processed_total",
			Help: "Rows decoded from upstream CSV responses",
		}),
		filesFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "thetaclient_files_finalized_total",
			Help: "Output files successfully emitted",
		}),
		filesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "thetaclient_files_skipped_total",
			Help: "Output files withheld because a constituent item had no data",
		}),
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "thetaclient_requests_total",
			Help: "Request/Stream calls by outcome",
		}, []string{"status"}),
		requestSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "thetaclient_request_duration_seconds",
			Help:    "End-to-end Request/Stream duration",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		filesInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "thetaclient_files_in_flight",
			Help: "Output files with at least one item submitted but not yet finalized",
		}),
	}
}

func (p *Prometheus) StartRequest(totalHTTPRequests, totalFiles int) {
	p.filesInFlight.Add(float64(totalFiles))
}

func (p *Prometheus) RecordFetch(elapsed time.Duration, noData bool) {
	p.httpRequests.Inc()
	p.fetchDuration.Observe(elapsed.Seconds())
	if noData {
		p.noDataRequests.Inc()
	}
}

func (p *Prometheus) RecordRowsProcessed(rows int) {
	p.rowsProcessed.Add(float64(rows))
}

func (p *Prometheus) RecordFileFinalized(objectKey string, rows int) {
	p.filesFinalized.Inc()
	p.filesInFlight.Dec()
}

func (p *Prometheus) RecordFileSkipped(objectKey string) {
	p.filesSkipped.Inc()
	p.filesInFlight.Dec()
}

func (p *Prometheus) EndRequest(duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.requestsTotal.WithLabelValues(status).Inc()
	p.requestSeconds.Observe(duration.Seconds())
}

var _ Collector = (*Prometheus)(nil)

// Server exposes the process's registered collectors over /metrics, for
// deployments that scrape rather than push (spec §4 "Metrics sink is
// pluggable").
type Server struct {
	server *http.Server
	addr   string
}

// NewServer builds a metrics server listening on addr (e.g. ":9090").
// It does not start listening until Start is called.
func NewServer(addr string) *Server {
	if addr == "" {
		addr = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins serving in the background. Errors after shutdown are
// swallowed; anything else is logged.
func (s *Server) Start() {
	log.Printf("metrics server listening on %s", s.addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
