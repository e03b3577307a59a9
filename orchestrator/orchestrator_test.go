package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResolveConcurrency(t *testing.T) {
	if n, err := ResolveConcurrency("auto"); err != nil || n <= 0 {
		t.Errorf("ResolveConcurrency(auto) = %d, %v", n, err)
	}
	if n, err := ResolveConcurrency("3"); err != nil || n != 3 {
		t.Errorf("ResolveConcurrency(3) = %d, %v, want 3, nil", n, err)
	}
	if _, err := ResolveConcurrency("0"); err == nil {
		t.Error("ResolveConcurrency(0): expected error")
	}
	if _, err := ResolveConcurrency("nope"); err == nil {
		t.Error("ResolveConcurrency(nope): expected error")
	}
}

func TestRunEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := Config{
		URI:             srv.URL,
		RPS:             100,
		Concurrency:     "2",
		Duration:        50 * time.Millisecond,
		Timeout:         200 * time.Millisecond,
		ConnectionLimit: 4,
	}
	result, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Error("expected overall success")
	}
	if result.Concurrency != 2 {
		t.Errorf("concurrency = %d, want 2", result.Concurrency)
	}
	if result.Counters["benchmark.http_2xx"] == 0 {
		t.Errorf("counters = %+v, want at least one http_2xx", result.Counters)
	}
	if stat, ok := result.Statistics["benchmark_http_client.request_to_response"]; !ok || stat.Count() == 0 {
		t.Errorf("expected merged response latency statistic with nonzero count, got %+v", stat)
	}
}

func TestRunInvalidURI(t *testing.T) {
	cfg := Config{URI: "not-a-uri", RPS: 10, Concurrency: "1", Duration: 10 * time.Millisecond, Timeout: 10 * time.Millisecond}
	if _, err := Run(context.Background(), cfg); err == nil {
		t.Error("Run with invalid URI: expected error")
	}
}
