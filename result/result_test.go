package result

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nighthawk-io/nighthawk/benchmarkclient"
	"github.com/nighthawk-io/nighthawk/options"
	"github.com/nighthawk-io/nighthawk/statistic"
)

// chdirTemp switches the test process into a fresh temp directory for the
// duration of the test, restoring the original working directory after,
// since Save always writes under the fixed relative MeasurementsDir.
func chdirTemp(t *testing.T) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func TestNewAndSave(t *testing.T) {
	chdirTemp(t)

	stats := map[string]statistic.Statistic{
		"benchmark_http_client.request_to_response": func() statistic.Statistic {
			s := statistic.NewHdr()
			s.Add(1000)
			s.Add(2000)
			return s
		}(),
	}
	counters := benchmarkclient.Counters{"benchmark.http_2xx": 42}

	o := options.Defaults
	o.URI = "http://example.com"
	o.RPS = 100

	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	doc := New(o, 4, stats, counters, now)

	if len(doc.Results) != 1 || doc.Results[0].Name != "global" {
		t.Fatalf("unexpected results: %+v", doc.Results)
	}
	if len(doc.Results[0].Statistics) != 1 {
		t.Errorf("expected 1 statistic record, got %d", len(doc.Results[0].Statistics))
	}
	if len(doc.Results[0].Counters) != 1 || doc.Results[0].Counters[0].Value != 42 {
		t.Errorf("unexpected counters: %+v", doc.Results[0].Counters)
	}
	if doc.Options.URI != o.URI || doc.Options.RPS != o.RPS {
		t.Errorf("options echo = %+v, want URI=%q RPS=%v", doc.Options, o.URI, o.RPS)
	}
	if doc.ResolvedConcurrency != 4 {
		t.Errorf("ResolvedConcurrency = %d, want 4", doc.ResolvedConcurrency)
	}

	path, err := Save(doc)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Dir(path) != MeasurementsDir {
		t.Errorf("path = %q, want under %q", path, MeasurementsDir)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var roundTrip Document
	if err := json.Unmarshal(data, &roundTrip); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if roundTrip.Options.URI != doc.Options.URI {
		t.Errorf("round-tripped URI = %q, want %q", roundTrip.Options.URI, doc.Options.URI)
	}
}

func TestSaveCreatesDir(t *testing.T) {
	chdirTemp(t)

	o := options.Defaults
	o.URI = "http://example.com"
	doc := New(o, 1, nil, nil, time.Unix(1000, 0))
	if _, err := Save(doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(MeasurementsDir); err != nil {
		t.Errorf("expected directory to be created: %v", err)
	}
}
