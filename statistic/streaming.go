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

import "math"

// StreamingStatistic is Welford's online algorithm for mean and variance;
// resistant to the catastrophic cancellation SimpleStatistic can suffer.
type StreamingStatistic struct {
	id    string
	count int64
	mean  float64
	m2    float64 // sum of squared deltas
}

// NewStreaming creates an empty StreamingStatistic.
func NewStreaming() *StreamingStatistic {
	return &StreamingStatistic{}
}

func (s *StreamingStatistic) ID() string      { return s.id }
func (s *StreamingStatistic) SetID(id string) { s.id = id }

// Add records one sample using Welford's recurrence:
// n+=1; d=x-mean; mean+=d/n; m2+=d*(x-mean).
func (s *StreamingStatistic) Add(value int64) {
	x := float64(value)
	s.count++
	d := x - s.mean
	s.mean += d / float64(s.count)
	s.m2 += d * (x - s.mean)
}

// Count returns the number of recorded samples.
func (s *StreamingStatistic) Count() int64 { return s.count }

// Mean returns the running mean, NaN if empty.
func (s *StreamingStatistic) Mean() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	return s.mean
}

// Pvariance returns m2/n.
func (s *StreamingStatistic) Pvariance() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	if s.count == 1 {
		return 0
	}
	return s.m2 / float64(s.count)
}

// Pstdev returns sqrt(Pvariance()).
func (s *StreamingStatistic) Pstdev() float64 {
	return math.Sqrt(s.Pvariance())
}

// Combine merges two StreamingStatistic instances via Chan's parallel
// formula. Panics if other is not a *StreamingStatistic.
func (s *StreamingStatistic) Combine(other Statistic) Statistic {
	o, ok := other.(*StreamingStatistic)
	if !ok {
		typeMismatch(s, other)
	}
	if s.count == 0 {
		return &StreamingStatistic{id: s.id, count: o.count, mean: o.mean, m2: o.m2}
	}
	if o.count == 0 {
		return &StreamingStatistic{id: s.id, count: s.count, mean: s.mean, m2: s.m2}
	}
	n := s.count + o.count
	fn, fa, fb := float64(n), float64(s.count), float64(o.count)
	mean := (fa*s.mean + fb*o.mean) / fn
	delta := s.mean - o.mean
	m2 := s.m2 + o.m2 + delta*delta*fa*fb/fn
	return &StreamingStatistic{id: s.id, count: n, mean: mean, m2: m2}
}

// SignificantDigits is 0 (exact) for the Welford accumulator.
func (s *StreamingStatistic) SignificantDigits() int { return 0 }

// ResistsCatastrophicCancellation is true for StreamingStatistic.
func (s *StreamingStatistic) ResistsCatastrophicCancellation() bool { return true }

// ToRecord emits a structured record.
func (s *StreamingStatistic) ToRecord() Record {
	return Record{ID: s.id, Count: s.count, MeanNs: s.Mean(), PstdevNs: s.Pstdev()}
}
