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

// Package result defines the structured output document for a completed run
// and its JSON persistence to disk.
package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fortio.org/log"
	"github.com/google/uuid"

	"github.com/nighthawk-io/nighthawk/benchmarkclient"
	"github.com/nighthawk-io/nighthawk/options"
	"github.com/nighthawk-io/nighthawk/statistic"
)

// MeasurementsDir is the fixed directory every run's result document is
// persisted under.
const MeasurementsDir = "measurements"

// CounterEntry is one named counter with its total.
type CounterEntry struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// NamedResult groups the statistics and counters collected under one name;
// the global run always contributes a result named "global".
type NamedResult struct {
	Name       string             `json:"name"`
	Statistics []statistic.Record `json:"statistics"`
	Counters   []CounterEntry     `json:"counters"`
}

// Document is the full structured output of one run.
type Document struct {
	RunID string `json:"run_id"`
	// Options is an echo of the command-line options the run was invoked
	// with; the log level is not included.
	Options Options `json:"options"`
	// ResolvedConcurrency is the Orchestrator's resolution of
	// Options.Concurrency ("auto" or an explicit count) into an actual
	// worker count.
	ResolvedConcurrency int           `json:"resolved_concurrency"`
	Timestamp           time.Time     `json:"timestamp"`
	Results             []NamedResult `json:"results"`
}

// Options mirrors options.Options for the result document's echo field;
// kept as a distinct type (rather than embedding options.Options directly)
// so the wire shape doesn't shift if internal-only Options fields are
// added later.
type Options struct {
	URI            string              `json:"uri"`
	RPS            float64             `json:"requests_per_second"`
	Connections    int                 `json:"connections"`
	Duration       time.Duration       `json:"duration_ns"`
	Timeout        time.Duration       `json:"timeout_ns"`
	H2             bool                `json:"h2"`
	Concurrency    string              `json:"concurrency"`
	RequestHeaders map[string][]string `json:"request_headers,omitempty"`
	OutputFormat   string              `json:"output_format"`
}

// optionsEcho builds the Options echo from the run's options.Options.
func optionsEcho(o options.Options) Options {
	return Options{
		URI:            o.URI,
		RPS:            o.RPS,
		Connections:    o.Connections,
		Duration:       o.Duration,
		Timeout:        o.Timeout,
		H2:             o.H2,
		Concurrency:    o.Concurrency,
		RequestHeaders: o.RequestHeaders,
		OutputFormat:   o.OutputFormat,
	}
}

// New builds a Document from the run's options, the Orchestrator's resolved
// concurrency, and the merged run statistics and counters, tagged with a
// freshly generated run identifier.
func New(o options.Options, resolvedConcurrency int,
	stats map[string]statistic.Statistic, counters benchmarkclient.Counters, now time.Time) Document {
	global := NamedResult{Name: "global"}
	for name, s := range stats {
		s.SetID(name)
		global.Statistics = append(global.Statistics, s.ToRecord())
	}
	for name, v := range counters {
		global.Counters = append(global.Counters, CounterEntry{Name: name, Value: v})
	}
	return Document{
		RunID:               uuid.NewString(),
		Options:             optionsEcho(o),
		ResolvedConcurrency: resolvedConcurrency,
		Timestamp:           now,
		Results:             []NamedResult{global},
	}
}

// Save unconditionally persists the document as indented JSON to
// MeasurementsDir/<epoch-seconds>.json, creating the directory if it does
// not already exist. Returns the path written to.
func Save(doc Document) (string, error) {
	if err := os.MkdirAll(MeasurementsDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory %q: %w", MeasurementsDir, err)
	}
	name := fmt.Sprintf("%d.json", doc.Timestamp.Unix())
	path := filepath.Join(MeasurementsDir, name)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling result document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing result document to %q: %w", path, err)
	}
	log.Infof("saved result document to %s", path)
	return path, nil
}
