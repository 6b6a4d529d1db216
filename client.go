package thetaclient

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"thetaclient/internal/ledger"
	"thetaclient/internal/metrics"
	"thetaclient/internal/pipeline"
	"thetaclient/internal/planner"
	"thetaclient/internal/store"
)

var (
	singleton   *Client
	singletonMu sync.Mutex
)

// Client is the bulk ingestion coordinator: one fetch/decode/finalize
// pipeline shared by every Request call, so concurrent Requests don't
// each open their own worker pool and overwhelm the upstream. Stream
// calls build their own dedicated stages (see Stream).
// Only one Client exists per process — New returns the same instance
// on every call, constructing it on the first.
type Client struct {
	cfg Config
	log *zap.SugaredLogger
	met metrics.Collector

	httpClient *http.Client
	objStore   *store.ObjectStore
	ledger     ledger.Ledger
	calendar   planner.Calendar

	fetch    *pipeline.QueueWorker
	decode   *pipeline.QueueWorker
	finalize *pipeline.QueueWorker

	mu      sync.Mutex
	running bool
}

// New returns the process-wide Client, constructing it from cfg on
// the first call. Subsequent calls ignore cfg and return the existing
// instance, mirroring the reference client's singleton: too many
// independently-configured clients would each open their own
// connection pool against the same upstream.
func New(cfg Config) (*Client, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	if singleton != nil {
		return singleton, nil
	}

	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	singleton = c
	return c, nil
}

func newClient(cfg Config) (*Client, error) {
	zapLog, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("thetaclient: building logger: %w", err)
	}
	log := zapLog.Sugar()

	met := metrics.Collector(metrics.Noop{})
	if cfg.PostgresDSN != "" || cfg.RedisAddr != "" {
		met = metrics.NewPrometheus()
	}

	objStore, err := store.New(store.Config{
		Endpoint:     cfg.S3Endpoint,
		Bucket:       cfg.S3Bucket,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		Region:       cfg.S3Region,
		UseTLS:       cfg.S3UseTLS,
		CheckBuckets: cfg.S3CheckBuckets,
	})
	if err != nil {
		return nil, err
	}

	led := ledger.Ledger(ledger.Noop{})
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.Connect(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("thetaclient: connecting to postgres: %w", err)
		}
		if err := ledger.Migrate(context.Background(), pool); err != nil {
			return nil, fmt.Errorf("thetaclient: migrating ledger schema: %w", err)
		}
		led = ledger.NewPostgres(pool)
	}

	httpClient := pipeline.NewHTTPClient(cfg.NumThreads)

	var cal planner.Calendar = planner.NewHTTPCalendar(cfg.BaseURL, httpClient)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cal = planner.NewCachedCalendar(cal, rdb, 24*time.Hour)
	}

	c := &Client{
		cfg:        cfg,
		log:        log,
		met:        met,
		httpClient: httpClient,
		objStore:   objStore,
		ledger:     led,
		calendar:   cal,
	}

	c.fetch = pipeline.NewQueueWorker("fetch", cfg.NumThreads, pipeline.FetchStage(httpClient, met, log), log)
	c.decode = pipeline.NewQueueWorker("decode", 1, pipeline.DecodeStage(met, log), log)
	c.finalize = pipeline.NewQueueWorker("finalize", 1, pipeline.FinalizeStage(
		context.Background(), objStore, pipeline.Hooks{OnFinalized: c.onFinalized, OnSkipped: c.onSkipped}, met, log), log)

	c.fetch.Chain(c.decode).Chain(c.finalize)

	return c, nil
}

func (c *Client) onFinalized(ctx context.Context, objectKey string, rows int64) error {
	return c.ledger.MarkFinalized(ctx, objectKey, rows)
}

// onSkipped records a withheld file in the failed-file ledger so an
// operator can see which output files never finalized and why,
// mirroring the teacher's storeFailedFiles audit trail.
func (c *Client) onSkipped(ctx context.Context, objectKey string) error {
	return c.ledger.RecordFailures(ctx, []ledger.FailedFile{
		{ObjectKey: objectKey, Reason: "withheld: at least one constituent item had no upstream data"},
	})
}

func (c *Client) start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.log.Infow("starting pipeline", "threads", c.cfg.NumThreads)
	c.fetch.Start()
	c.decode.Start()
	c.finalize.Start()
}

func (c *Client) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	c.fetch.Stop()
	c.decode.Stop()
	c.finalize.Stop()
}

// Request synchronously ingests everything query resolves to: it
// plans the query against the trading-day calendar, skips object keys
// already finalized unless ForceRefresh is set, drains every resulting
// item through the pipeline, and returns the first error encountered
// by any stage.
func (c *Client) Request(ctx context.Context, query planner.Query) error {
	c.start()
	start := time.Now()

	requestID := uuid.New().String()
	log := c.log.With("request_id", requestID)
	log.Infow("processing request", "symbol", query.Symbol, "asset_class", query.AssetClass, "endpoint", query.Endpoint)

	groups, totalHTTP, err := c.planAndFilter(ctx, query)
	if err != nil {
		return err
	}
	c.met.StartRequest(totalHTTP, len(groups))

	schema := pipeline.Schema(query.Schema())
	for _, g := range groups {
		fwj := pipeline.NewFileWriteJob(g.ObjectKey, len(g.URLs))
		for _, url := range g.URLs {
			c.fetch.Submit(&pipeline.Job{URL: url, Schema: schema, Parent: fwj})
		}
	}

	c.fetch.WaitForDrain()
	if err := c.fetch.RaiseIfFailed(); err != nil {
		c.stop()
		c.met.EndRequest(time.Since(start), err)
		return err
	}
	c.decode.WaitForDrain()
	if err := c.decode.RaiseIfFailed(); err != nil {
		c.stop()
		c.met.EndRequest(time.Since(start), err)
		return err
	}
	c.finalize.WaitForDrain()
	if err := c.finalize.RaiseIfFailed(); err != nil {
		c.stop()
		c.met.EndRequest(time.Since(start), err)
		return err
	}

	c.met.EndRequest(time.Since(start), nil)
	return nil
}

// planAndFilter expands query into file groups and drops any object
// key that's already finalized, unless query.ForceRefresh is set. The
// existence checks hit the ledger and the object store once per file
// group, so they're fanned out behind a bounded semaphore rather than
// run one at a time or all at once.
func (c *Client) planAndFilter(ctx context.Context, query planner.Query) ([]planner.FileGroup, int, error) {
	all, err := planner.Plan(ctx, query, c.calendar, c.cfg.BaseURL)
	if err != nil {
		return nil, 0, err
	}

	if query.ForceRefresh {
		totalHTTP := 0
		for _, g := range all {
			totalHTTP += len(g.URLs)
		}
		return all, totalHTTP, nil
	}

	maxConcurrency := c.cfg.NumThreads
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	sem := semaphore.NewWeighted(int64(maxConcurrency))

	kept := make([]bool, len(all))
	errCh := make(chan error, len(all))
	var wg sync.WaitGroup

	for i, g := range all {
		if err := sem.Acquire(ctx, 1); err != nil {
			errCh <- err
			break
		}
		wg.Add(1)
		go func(i int, g planner.FileGroup) {
			defer wg.Done()
			defer sem.Release(1)

			skip, err := c.alreadyFinalized(ctx, g.ObjectKey)
			if err != nil {
				errCh <- err
				return
			}
			if skip {
				c.log.Debugw("skipping existing file", "object_key", g.ObjectKey)
				return
			}
			kept[i] = true
		}(i, g)
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return nil, 0, err
	}

	var groups []planner.FileGroup
	totalHTTP := 0
	for i, g := range all {
		if kept[i] {
			groups = append(groups, g)
			totalHTTP += len(g.URLs)
		}
	}
	return groups, totalHTTP, nil
}

func (c *Client) alreadyFinalized(ctx context.Context, objectKey string) (bool, error) {
	if ok, err := c.ledger.IsFinalized(ctx, objectKey); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}
	return c.objStore.Exists(ctx, objectKey)
}

// Close stops the pipeline's worker goroutines. Safe to call even if
// no Request has run yet.
func (c *Client) Close() {
	c.stop()
}
