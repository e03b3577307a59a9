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

// Command nighthawk drives a layer-7 HTTP load test against one endpoint
// and prints and persists the resulting statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"fortio.org/cli"
	"fortio.org/log"
	"fortio.org/version"

	"github.com/nighthawk-io/nighthawk/formatter"
	"github.com/nighthawk-io/nighthawk/options"
	"github.com/nighthawk-io/nighthawk/orchestrator"
	"github.com/nighthawk-io/nighthawk/result"
)

var logLevels = map[string]log.Level{
	"debug":    log.Debug,
	"verbose":  log.Verbose,
	"info":     log.Info,
	"warning":  log.Warning,
	"error":    log.Error,
	"critical": log.Critical,
}

func main() {
	cli.ProgramName = "Nighthawk"
	cli.ArgsHelp = "url"
	cli.MinArgs = 1
	cli.MaxArgs = 1

	o, hf := options.RegisterFlags(flag.CommandLine)
	cli.Main() // parses flags/args, handles -h/-help/-version, exits on usage errors

	o.URI = flag.Arg(0)
	o.RequestHeaders = hf.Headers()
	if err := o.Normalize(); err != nil {
		cli.ErrUsage("%v", err)
	}

	if lvl, ok := logLevels[o.Verbosity]; ok {
		log.SetLogLevel(lvl)
	}
	log.Infof("nighthawk %s starting against %s", version.Short(), o.URI)

	runResult, err := run(o)
	if err != nil {
		log.Errf("run failed: %v", err)
		os.Exit(1)
	}
	if !runResult.Success {
		os.Exit(1)
	}
}

func run(o *options.Options) (orchestrator.Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.Duration+2*o.Timeout)
	defer cancel()

	cfg := orchestrator.Config{
		URI:             o.URI,
		RPS:             o.RPS,
		Concurrency:     o.Concurrency,
		Duration:        o.Duration,
		Timeout:         o.Timeout,
		H2:              o.H2,
		ConnectionLimit: o.Connections,
		RequestHeaders:  o.RequestHeaders,
	}
	res, err := orchestrator.Run(ctx, cfg)
	if err != nil {
		return res, err
	}

	doc := result.New(*o, res.Concurrency, res.Statistics, res.Counters, time.Now())
	out, err := formatter.Render(doc, formatter.Format(o.OutputFormat))
	if err != nil {
		return res, fmt.Errorf("rendering result: %w", err)
	}
	fmt.Println(out)

	if _, err := result.Save(doc); err != nil {
		log.Warnf("failed to persist result document: %v", err)
	}
	return res, nil
}
