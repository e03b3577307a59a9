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

// Package statistic implements the three interchangeable latency statistic
// kinds: SimpleStatistic (sums), StreamingStatistic (Welford) and
// HdrStatistic (HDR histogram). All three satisfy the Statistic interface;
// Combine across different concrete kinds is a programmer error (panics),
// not an implicit coercion.
package statistic

import "fmt"

// Percentile is one entry of the percentile ladder emitted by HdrStatistic.
type Percentile struct {
	Percentile      float64 `json:"percentile"`
	LatencyNs       int64   `json:"latency_ns"`
	CumulativeCount int64   `json:"cumulative_count"`
}

// Record is the structured emission of a Statistic, suitable for the result
// document.
type Record struct {
	ID         string       `json:"id"`
	Count      int64        `json:"count"`
	MeanNs     float64      `json:"mean_ns"`
	PstdevNs   float64      `json:"pstdev_ns"`
	Percentile []Percentile `json:"percentiles,omitempty"`
}

// DefaultPercentileLadder is the percentile list every HdrStatistic record
// covers at minimum.
var DefaultPercentileLadder = []float64{50, 75, 90, 99, 99.9, 99.99, 99.999, 100}

// Statistic is the common contract satisfied by SimpleStatistic,
// StreamingStatistic and HdrStatistic.
type Statistic interface {
	// ID returns the statistic's identifier (e.g. "sequencer.callback").
	ID() string
	// SetID sets the statistic's identifier.
	SetID(id string)
	// Add records one sample, a latency in nanoseconds.
	Add(value int64)
	// Count returns the number of samples recorded.
	Count() int64
	// Mean returns the population mean; NaN when Count() == 0.
	Mean() float64
	// Pvariance returns the population variance; NaN when Count() == 0, zero when Count() == 1.
	Pvariance() float64
	// Pstdev returns the population standard deviation.
	Pstdev() float64
	// Combine returns a new Statistic equal to the union of both operands'
	// samples. Panics if other is not of the same concrete kind
	// (CombineTypeMismatch, a programmer error per design).
	Combine(other Statistic) Statistic
	// SignificantDigits declares the numeric precision used to relax
	// equality comparisons in tests. 0 means exact.
	SignificantDigits() int
	// ResistsCatastrophicCancellation is true only for StreamingStatistic.
	ResistsCatastrophicCancellation() bool
	// ToRecord emits a structured record of this statistic.
	ToRecord() Record
}

// typeMismatch panics with a CombineTypeMismatch-flavored message; combining
// statistics of different concrete kinds is a programmer error that must
// surface immediately, never be silently coerced.
func typeMismatch(self, other Statistic) {
	panic(fmt.Sprintf("statistic: CombineTypeMismatch: cannot combine %T with %T", self, other))
}
