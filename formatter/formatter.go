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

// Package formatter renders a result.Document as human-readable tables,
// JSON, or YAML.
package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v2"

	"github.com/nighthawk-io/nighthawk/result"
)

// Format selects the rendering.
type Format string

const (
	Human Format = "human"
	JSON  Format = "json"
	YAML  Format = "yaml"
)

// Render renders doc in the requested format.
func Render(doc result.Document, format Format) (string, error) {
	switch format {
	case Human, "":
		return renderHuman(doc), nil
	case JSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling json: %w", err)
		}
		return string(data), nil
	case YAML:
		data, err := yaml.Marshal(doc)
		if err != nil {
			return "", fmt.Errorf("marshaling yaml: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}

func renderHuman(doc result.Document) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\nTarget: %s  RPS: %.0f  Concurrency: %d  Duration: %s\n",
		doc.Options.URI, doc.Options.RPS, doc.ResolvedConcurrency, doc.Options.Duration)

	for _, r := range doc.Results {
		fmt.Fprintf(&buf, "\nResult %q:\n", r.Name)

		statTable := tablewriter.NewWriter(&buf)
		statTable.SetHeader([]string{"Statistic", "Count", "Mean (us)", "Pstdev (us)"})
		for _, s := range r.Statistics {
			statTable.Append([]string{
				s.ID,
				strconv.FormatInt(s.Count, 10),
				strconv.FormatFloat(s.MeanNs/1000, 'f', 2, 64),
				strconv.FormatFloat(s.PstdevNs/1000, 'f', 2, 64),
			})
		}
		statTable.Render()

		for _, s := range r.Statistics {
			if len(s.Percentile) == 0 {
				continue
			}
			fmt.Fprintf(&buf, "\nPercentiles for %q:\n", s.ID)
			pTable := tablewriter.NewWriter(&buf)
			pTable.SetHeader([]string{"Percentile", "Latency (us)", "Cumulative Count"})
			for _, p := range s.Percentile {
				pTable.Append([]string{
					strconv.FormatFloat(p.Percentile, 'f', 3, 64),
					strconv.FormatFloat(float64(p.LatencyNs)/1000, 'f', 2, 64),
					strconv.FormatInt(p.CumulativeCount, 10),
				})
			}
			pTable.Render()
		}

		if len(r.Counters) > 0 {
			fmt.Fprintf(&buf, "\nCounters for %q:\n", r.Name)
			sorted := append([]result.CounterEntry(nil), r.Counters...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
			counterTable := tablewriter.NewWriter(&buf)
			counterTable.SetHeader([]string{"Counter", "Value"})
			for _, c := range sorted {
				counterTable.Append([]string{c.Name, strconv.FormatInt(c.Value, 10)})
			}
			counterTable.Render()
		}
	}
	return buf.String()
}
