package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/nighthawk-io/nighthawk/options"
)

// chdirTemp runs the test against a scratch directory so the unconditional
// measurements/ persistence in run() doesn't leave files behind in the repo.
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restoring Chdir: %v", err)
		}
	})
}

func TestRunEndToEnd(t *testing.T) {
	chdirTemp(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	o := options.Defaults
	o.URI = srv.URL
	o.RPS = 50
	o.Duration = 30 * time.Millisecond
	o.Timeout = 100 * time.Millisecond
	o.Concurrency = "2"
	o.Connections = 4
	o.OutputFormat = "json"
	if err := o.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	res, err := run(&o)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Success {
		t.Error("expected successful run")
	}
}
