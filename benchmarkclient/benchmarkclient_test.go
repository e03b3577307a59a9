package benchmarkclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nighthawk-io/nighthawk/endpoint"
)

func newTestConfig(t *testing.T, srv *httptest.Server, connLimit int) Config {
	t.Helper()
	ep, err := endpoint.Parse(srv.URL)
	if err != nil {
		t.Fatalf("Parse(%q): %v", srv.URL, err)
	}
	return Config{
		Endpoint:        ep,
		ConnectTimeout:  time.Second,
		ConnectionLimit: connLimit,
	}
}

// startOneSync admits a request and blocks until its done callback fires,
// failing the test if TryStartOne rejects it outright.
func startOneSync(t *testing.T, c *Client, ctx context.Context) {
	t.Helper()
	done := make(chan struct{})
	if ok := c.TryStartOne(ctx, func() { close(done) }); !ok {
		t.Fatal("TryStartOne returned false unexpectedly")
	}
	<-done
}

func TestTryStartOneCountsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(newTestConfig(t, srv, 4))
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer c.Terminate()
	c.SetMeasureLatencies(true)

	startOneSync(t, c, context.Background())
	counters := c.Counters()
	if counters["benchmark.http_2xx"] != 1 {
		t.Errorf("counters = %+v, want http_2xx=1", counters)
	}
	if c.Statistics().Count() != 1 {
		t.Errorf("latency stat count = %d, want 1", c.Statistics().Count())
	}
}

func TestTryStartOneWithoutMeasureLatenciesSkipsStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(newTestConfig(t, srv, 4))
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer c.Terminate()

	startOneSync(t, c, context.Background())
	if c.Statistics().Count() != 0 {
		t.Errorf("latency stat count = %d, want 0 (latencies not enabled)", c.Statistics().Count())
	}
}

func TestTryStartOneAdmissionGate(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(block)

	c := New(newTestConfig(t, srv, 1))
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer c.Terminate()

	done := make(chan struct{})
	if ok := c.TryStartOne(context.Background(), func() { close(done) }); !ok {
		t.Fatal("TryStartOne returned false unexpectedly")
	}
	time.Sleep(50 * time.Millisecond) // let the first request occupy the single slot

	if ok := c.TryStartOne(context.Background(), func() {}); ok {
		t.Error("TryStartOne should have been rejected by the admission gate while at the connection limit")
	}
	counters := c.Counters()
	if counters["benchmark.pool_overflow"] != 1 {
		t.Errorf("counters = %+v, want pool_overflow=1", counters)
	}
	block <- struct{}{}
	<-done
}

func TestTryStartOneConnectionError(t *testing.T) {
	ep, err := endpoint.Parse("http://127.0.0.1:1/")
	if err != nil {
		t.Fatal(err)
	}
	c := New(Config{Endpoint: ep, ConnectTimeout: 100 * time.Millisecond, ConnectionLimit: 1})
	if err := c.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer c.Terminate()

	startOneSync(t, c, context.Background())
	counters := c.Counters()
	if counters[counterStreamReset] != 1 {
		t.Errorf("counters = %+v, want %s=1", counters, counterStreamReset)
	}
}
