package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/benchlink-core/internal/infrastructure/config"
)

// pointWriter is the subset of api.WriteAPI the client uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client batches valve points into one InfluxDB bucket.
//
// Writes never block a valve move: points are queued in the library's
// non-blocking write API and flushed by size or interval. Write failures
// arrive asynchronously on the SetOnError callback. Points offered after
// Close are counted by Dropped and discarded.
type Client struct {
	client influxdb2.Client
	writer pointWriter
	bucket string

	open    atomic.Bool
	dropped atomic.Uint64

	mu      sync.Mutex
	onError func(err error)
}

// Connect creates the client, checks the server answers a ping and that
// the bucket exists, and starts the batched writer.
//
// Parameters:
//   - cfg: influxdb section of the config
//   - site: site ID added as a "site" tag to every point (omitted when empty)
//
// Returns:
//   - *Client: ready client
//   - error: ErrDisabled, or ErrConnectionFailed / ErrBucketNotFound wrapping the cause
func Connect(cfg config.InfluxDBConfig, site string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg, site))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrConnectionFailed, cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: %s not healthy", ErrConnectionFailed, cfg.URL)
	}

	// A missing bucket would otherwise surface only as async write errors
	// long after startup.
	if _, err := client.BucketsAPI().FindBucketByName(ctx, cfg.Bucket); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %q in org %q: %w", ErrBucketNotFound, cfg.Bucket, cfg.Org, err)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	c := &Client{client: client, writer: writeAPI, bucket: cfg.Bucket}
	c.open.Store(true)
	go c.forwardErrors(writeAPI.Errors())

	return c, nil
}

// clientOptions maps the config onto library options. Non-positive batch
// settings fall back to the defaults.
func clientOptions(cfg config.InfluxDBConfig, site string) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds())).
		SetPrecision(time.Millisecond)
	if site != "" {
		opts.AddDefaultTag("site", site)
	}
	return opts
}

func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		c.mu.Lock()
		callback := c.onError
		c.mu.Unlock()
		if callback != nil {
			callback(err)
		}
	}
}

// write queues p, or counts it as dropped once the client is closed.
func (c *Client) write(p *write.Point) {
	if !c.open.Load() {
		c.dropped.Add(1)
		return
	}
	c.writer.WritePoint(p)
}

// Close flushes queued points and releases the client. Safe to call twice.
func (c *Client) Close() error {
	if !c.open.Swap(false) {
		return nil
	}
	c.writer.Flush()
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.open.Load() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check: server not healthy")
	}
	return nil
}

// IsConnected reports whether the client accepts points (it has not been
// closed). It does not contact the server; use HealthCheck for that.
func (c *Client) IsConnected() bool {
	return c.open.Load()
}

// Dropped returns how many points were discarded because the client was
// closed.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// Bucket returns the bucket points are written to.
func (c *Client) Bucket() string {
	return c.bucket
}

// SetOnError sets the callback for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until queued points are sent. No-op after Close.
func (c *Client) Flush() {
	if c.open.Load() {
		c.writer.Flush()
	}
}
