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

// Package options defines the command line surface and normalizes it into
// validated run parameters.
package options

import (
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fortio.org/log"
)

// Defaults mirror the CLI flag defaults below; exported so callers
// constructing Options programmatically (e.g. tests) can start from them.
var Defaults = Options{
	RPS:             5,
	Connections:     1,
	Duration:        5 * time.Second,
	Timeout:         5 * time.Second,
	Concurrency:     "auto",
	OutputFormat:    "human",
	Verbosity:       "info",
}

// Options are the normalized parameters for one run. Echoed into the result
// document's Options field, except for Verbosity.
type Options struct {
	URI            string
	RPS            float64
	Connections    int
	Duration       time.Duration
	Timeout        time.Duration
	H2             bool
	Concurrency    string
	RequestHeaders http.Header
	OutputFormat   string // human|json|yaml
	Verbosity      string

	initDone bool
}

type HeaderFlags struct {
	headers http.Header
}

func (h *HeaderFlags) String() string { return "" }

func (h *HeaderFlags) Set(value string) error {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid header %q, want Key:Value", value)
	}
	if h.headers == nil {
		h.headers = http.Header{}
	}
	h.headers.Add(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
	return nil
}

// Headers returns the accumulated header values; only meaningful after the
// owning FlagSet has been parsed.
func (h *HeaderFlags) Headers() http.Header { return h.headers }

// RegisterFlags declares the run's flags on fs, returning the Options they
// populate and the header-flag collector (whose accumulated headers are
// only valid after fs has been parsed). Shared between Parse, which owns a
// private FlagSet for hermetic testing, and cmd/nighthawk, which registers
// onto the global flag.CommandLine ahead of fortio.org/cli's usage/version
// handling.
func RegisterFlags(fs *flag.FlagSet) (*Options, *HeaderFlags) {
	o := Defaults
	fs.Float64Var(&o.RPS, "rps", Defaults.RPS, "Requests per second to generate, spread evenly across -concurrency workers")
	fs.IntVar(&o.Connections, "connections", Defaults.Connections, "Max number of concurrent connections/requests in flight per worker")
	fs.DurationVar(&o.Duration, "duration", Defaults.Duration, "Duration of the load test")
	fs.DurationVar(&o.Timeout, "timeout", Defaults.Timeout, "Connect timeout and grace period allowed for in-flight requests to complete after -duration elapses")
	fs.BoolVar(&o.H2, "h2", false, "Use HTTP/2 (h2c over plaintext, negotiated via ALPN over TLS)")
	fs.StringVar(&o.Concurrency, "concurrency", Defaults.Concurrency, "Number of worker threads, or \"auto\" to use the number of CPUs")
	fs.StringVar(&o.OutputFormat, "output-format", Defaults.OutputFormat, "Result format: human, json or yaml")
	fs.StringVar(&o.Verbosity, "loglevel", "info", "Log level: debug, verbose, info, warning, error, critical")
	hf := &HeaderFlags{}
	fs.Var(hf, "H", "Extra header(s) to add to each request, e.g. -H Foo:Bar (repeatable)")
	return &o, hf
}

// Parse parses argv into a fresh FlagSet named progName. The first non-flag
// argument is treated as the target URI.
func Parse(progName string, argv []string) (*Options, error) {
	fs := flag.NewFlagSet(progName, flag.ContinueOnError)
	o, hf := RegisterFlags(fs)

	if err := fs.Parse(argv); err != nil {
		return nil, err
	}
	rest := fs.Args()
	if len(rest) < 1 {
		return nil, fmt.Errorf("missing target uri")
	}
	o.URI = rest[0]
	o.RequestHeaders = hf.Headers()

	if err := o.Normalize(); err != nil {
		return nil, err
	}
	return o, nil
}

// Normalize validates the options, matching the Options.Init()-style pattern
// of the wider ecosystem. Non-positive RPS, Duration or Timeout and an
// unknown OutputFormat are errors; non-positive Connections and an empty
// Concurrency are replaced by their defaults.
func (o *Options) Normalize() error {
	if o.initDone {
		return nil
	}
	o.initDone = true
	if o.RPS <= 0 {
		return fmt.Errorf("invalid -rps %v: must be > 0", o.RPS)
	}
	if o.Connections <= 0 {
		log.Warnf("invalid -connections %d, using default %d", o.Connections, Defaults.Connections)
		o.Connections = Defaults.Connections
	}
	if o.Duration <= 0 {
		return fmt.Errorf("invalid -duration %v: must be > 0", o.Duration)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("invalid -timeout %v: must be > 0", o.Timeout)
	}
	switch o.OutputFormat {
	case "human", "json", "yaml":
	default:
		return fmt.Errorf("invalid -output-format %q: want human, json or yaml", o.OutputFormat)
	}
	if o.Concurrency == "" {
		o.Concurrency = Defaults.Concurrency
	}
	return nil
}
