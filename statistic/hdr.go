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

package statistic

import (
	"math"

	"github.com/codahale/hdrhistogram"

	"fortio.org/log"
)

const (
	hdrMinValueNs         = 1                    // 1 ns
	hdrMaxValueNs         = 60 * 1000 * 1000 * 1000 // 60s in ns
	hdrSignificantFigures = 4
)

// HdrStatistic is a Statistic backed by a high-dynamic-range histogram,
// tracking values in [1ns, 60s] with 4 significant digits.
type HdrStatistic struct {
	id        string
	histogram *hdrhistogram.Histogram
	dropped   int64
}

// NewHdr creates an empty HdrStatistic.
func NewHdr() *HdrStatistic {
	return &HdrStatistic{
		histogram: hdrhistogram.New(hdrMinValueNs, hdrMaxValueNs, hdrSignificantFigures),
	}
}

func (h *HdrStatistic) ID() string      { return h.id }
func (h *HdrStatistic) SetID(id string) { h.id = id }

// Add records one sample; values outside [1ns, 60s] are dropped with a
// counter/warning rather than failing the run.
func (h *HdrStatistic) Add(value int64) {
	if value < hdrMinValueNs || value > hdrMaxValueNs {
		h.dropped++
		log.Warnf("statistic %s: dropping out-of-range value %dns", h.id, value)
		return
	}
	if err := h.histogram.RecordValue(value); err != nil {
		h.dropped++
		log.Warnf("statistic %s: dropping out-of-range value %dns: %v", h.id, value, err)
	}
}

// Dropped returns the number of out-of-range samples dropped so far.
func (h *HdrStatistic) Dropped() int64 { return h.dropped }

// Count returns the number of recorded (non-dropped) samples.
func (h *HdrStatistic) Count() int64 { return h.histogram.TotalCount() }

// Mean returns the histogram's mean, NaN if empty.
func (h *HdrStatistic) Mean() float64 {
	if h.Count() == 0 {
		return math.NaN()
	}
	return h.histogram.Mean()
}

// Pvariance computes the population variance from the histogram's bucket
// midpoints: the library's StdDev iterates every non-empty bucket's
// median-equivalent value and divides by the total count.
func (h *HdrStatistic) Pvariance() float64 {
	if h.Count() == 0 {
		return math.NaN()
	}
	if h.Count() == 1 {
		return 0
	}
	sd := h.histogram.StdDev()
	return sd * sd
}

// Pstdev returns sqrt(Pvariance()).
func (h *HdrStatistic) Pstdev() float64 {
	return math.Sqrt(h.Pvariance())
}

// Combine merges two HdrStatistic histograms; out-of-range values during the
// merge are dropped and logged, never fail the run. Panics if other is not
// a *HdrStatistic.
func (h *HdrStatistic) Combine(other Statistic) Statistic {
	o, ok := other.(*HdrStatistic)
	if !ok {
		typeMismatch(h, other)
	}
	combined := NewHdr()
	combined.id = h.id
	dropped := combined.histogram.Merge(h.histogram)
	dropped += combined.histogram.Merge(o.histogram)
	combined.dropped = h.dropped + o.dropped + dropped
	if dropped > 0 {
		log.Warnf("statistic %s: combining HDR histograms dropped %d values", combined.id, dropped)
	}
	return combined
}

// SignificantDigits is 4 for HdrStatistic.
func (h *HdrStatistic) SignificantDigits() int { return hdrSignificantFigures }

// ResistsCatastrophicCancellation is false for HdrStatistic.
func (h *HdrStatistic) ResistsCatastrophicCancellation() bool { return false }

// ToRecord emits a structured record including the percentile ladder.
func (h *HdrStatistic) ToRecord() Record {
	r := Record{ID: h.id, Count: h.Count(), MeanNs: h.Mean(), PstdevNs: h.Pstdev()}
	total := h.Count()
	for _, p := range DefaultPercentileLadder {
		cumulative := int64(math.Round(float64(total) * p / 100.0))
		if cumulative > total {
			cumulative = total
		}
		r.Percentile = append(r.Percentile, Percentile{
			Percentile:      p,
			LatencyNs:       h.histogram.ValueAtQuantile(p),
			CumulativeCount: cumulative,
		})
	}
	return r
}
