// Copyright 2017 Fortio Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package benchmarkclient issues single HTTP requests against one endpoint
// and records connect/response latencies and status counters, admission
// controlled by a fixed number of concurrent in-flight requests.
package benchmarkclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"

	"fortio.org/log"

	"github.com/nighthawk-io/nighthawk/endpoint"
	"github.com/nighthawk-io/nighthawk/statistic"
)

// Config configures a BenchmarkHttpClient.
type Config struct {
	Endpoint         endpoint.Endpoint
	H2               bool
	ConnectTimeout   time.Duration
	RequestHeaders   http.Header
	// ConnectionLimit caps the number of requests that may be
	// in-flight (initiated but not yet completed) at once.
	ConnectionLimit int
}

// Counters are named request-outcome tallies, mirroring spec.md's
// benchmark.http_NNN / benchmark.pool_overflow / benchmark.stream_resets.
type Counters map[string]int64

const (
	counterPoolOverflow = "benchmark.pool_overflow"
	counterStreamReset  = "benchmark.stream_resets"
)

// Client is a single worker's HTTP request issuer: one per ClientWorker.
// TryStartOne's admission bookkeeping is safe for concurrent callers and
// for completion callbacks racing with them.
type Client struct {
	cfg Config

	httpClient *http.Client
	transport  interface {
		http.RoundTripper
		CloseIdleConnections()
	}

	measureLatencies atomic.Bool

	inFlight    atomic.Int64
	lastConnect atomic.Int64 // nanoseconds, set by the dialer on each new connection

	mu          sync.Mutex
	latencyStat statistic.Statistic
	connectStat statistic.Statistic
	counters    Counters
}

// New constructs a Client; Initialize must be called before use.
func New(cfg Config) *Client {
	return &Client{
		cfg:         cfg,
		latencyStat: statistic.NewHdr(),
		connectStat: statistic.NewHdr(),
		counters:    Counters{},
	}
}

// Initialize builds the underlying HTTP/1.1 or HTTP/2 transport. Building
// the transport cannot fail, so it currently always returns nil; the caller
// (ClientWorker) treats a non-nil error here as a failed bootstrap.
func (c *Client) Initialize() error {
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		d := &net.Dialer{Timeout: c.cfg.ConnectTimeout}
		conn, err := d.DialContext(ctx, network, addr)
		if err == nil {
			c.lastConnect.Store(int64(time.Since(start)))
		}
		return conn, err
	}

	if c.cfg.Endpoint.Scheme == "https" && c.cfg.H2 {
		tr := &http2.Transport{
			DialTLSContext: func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
				conn, err := dial(ctx, network, addr)
				if err != nil {
					return nil, err
				}
				tlsConn := tls.Client(conn, cfg)
				if err := tlsConn.HandshakeContext(ctx); err != nil {
					return nil, fmt.Errorf("tls handshake: %w", err)
				}
				return tlsConn, nil
			},
		}
		c.transport = tr
	} else if c.cfg.H2 {
		// h2c: HTTP/2 without TLS, plaintext prior-knowledge.
		tr := &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
				return dial(ctx, network, addr)
			},
		}
		c.transport = tr
	} else {
		tr := &http.Transport{
			DialContext:         dial,
			MaxIdleConns:        c.cfg.ConnectionLimit,
			MaxIdleConnsPerHost: c.cfg.ConnectionLimit,
			TLSHandshakeTimeout: c.cfg.ConnectTimeout,
			Proxy:               http.ProxyFromEnvironment,
		}
		if c.cfg.Endpoint.Scheme == "https" {
			tr.TLSClientConfig = &tls.Config{} //nolint:gosec // ServerName is set per-request via the standard client.
		}
		c.transport = tr
	}
	c.httpClient = &http.Client{Transport: c.transport}
	return nil
}

// SetMeasureLatencies toggles whether TryStartOne records connect/response
// latency samples; warm-up runs with this false.
func (c *Client) SetMeasureLatencies(v bool) {
	c.measureLatencies.Store(v)
}

// TryStartOne attempts to admit one request, subject to the connection
// limit admission gate: requests_initiated - requests_completed >=
// connection_limit blocks admission uniformly for HTTP/1 and HTTP/2. If the
// gate is closed it returns false immediately, issuing no request and
// never invoking done; the caller must treat this as a blocked event and
// retry later. Otherwise it returns true immediately and issues the
// request on its own goroutine, invoking done exactly once when the
// request completes (successfully or not).
func (c *Client) TryStartOne(ctx context.Context, done func()) bool {
	for {
		n := c.inFlight.Load()
		if int(n) >= c.cfg.ConnectionLimit {
			c.bumpCounter(counterPoolOverflow)
			return false
		}
		if c.inFlight.CompareAndSwap(n, n+1) {
			break
		}
	}
	go func() {
		defer func() {
			c.inFlight.Add(-1)
			done()
		}()
		c.doRequest(ctx)
	}()
	return true
}

// doRequest issues one request and records its outcome; it runs on its own
// goroutine per admitted TryStartOne call.
func (c *Client) doRequest(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint.URL(), nil)
	if err != nil {
		log.Warnf("benchmarkclient: building request: %v", err)
		c.bumpCounter("benchmark.errors")
		return
	}
	for k, vs := range c.cfg.RequestHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	c.lastConnect.Store(-1)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.Debugf("benchmarkclient: request failed: %v", err)
		c.bumpCounter(counterStreamReset)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if c.measureLatencies.Load() {
		c.mu.Lock()
		c.latencyStat.Add(elapsed.Nanoseconds())
		if connectNs := c.lastConnect.Load(); connectNs >= 0 {
			c.connectStat.Add(connectNs)
		}
		c.mu.Unlock()
	}
	c.bumpCounter(statusCounterName(resp.StatusCode))
}

func statusCounterName(code int) string {
	bucket := code / 100
	switch {
	case bucket >= 1 && bucket <= 5:
		return fmt.Sprintf("benchmark.http_%dxx", bucket)
	default:
		return "benchmark.http_xxx"
	}
}

func (c *Client) bumpCounter(name string) {
	c.mu.Lock()
	c.counters[name]++
	c.mu.Unlock()
}

// Terminate closes idle connections held by the underlying transport.
func (c *Client) Terminate() {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
}

// Statistics returns the response latency statistic collected so far.
func (c *Client) Statistics() statistic.Statistic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latencyStat
}

// ConnectStatistics returns the connect latency statistic collected so far.
func (c *Client) ConnectStatistics() statistic.Statistic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectStat
}

// Counters returns a snapshot copy of the counters collected so far.
func (c *Client) Counters() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(Counters, len(c.counters))
	for k, v := range c.counters {
		out[k] = v
	}
	return out
}
