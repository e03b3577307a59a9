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

// SimpleStatistic keeps count, sum and sum-of-squares; fast but subject to
// catastrophic cancellation for large magnitude/variance ratios.
type SimpleStatistic struct {
	id      string
	count   int64
	sumX    float64
	sumX2   float64
}

// NewSimple creates an empty SimpleStatistic.
func NewSimple() *SimpleStatistic {
	return &SimpleStatistic{}
}

func (s *SimpleStatistic) ID() string     { return s.id }
func (s *SimpleStatistic) SetID(id string) { s.id = id }

// Add records one sample.
func (s *SimpleStatistic) Add(value int64) {
	v := float64(value)
	s.count++
	s.sumX += v
	s.sumX2 += v * v
}

// Count returns the number of recorded samples.
func (s *SimpleStatistic) Count() int64 { return s.count }

// Mean returns sum_x/n, NaN if empty.
func (s *SimpleStatistic) Mean() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	return s.sumX / float64(s.count)
}

// Pvariance returns sum_x2/n - mean^2.
func (s *SimpleStatistic) Pvariance() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	if s.count == 1 {
		return 0
	}
	mean := s.Mean()
	v := s.sumX2/float64(s.count) - mean*mean
	if v < 0 {
		// Catastrophic cancellation can produce a tiny negative value.
		v = 0
	}
	return v
}

// Pstdev returns sqrt(Pvariance()).
func (s *SimpleStatistic) Pstdev() float64 {
	return math.Sqrt(s.Pvariance())
}

// Combine merges two SimpleStatistic instances. Panics if other is not a *SimpleStatistic.
func (s *SimpleStatistic) Combine(other Statistic) Statistic {
	o, ok := other.(*SimpleStatistic)
	if !ok {
		typeMismatch(s, other)
	}
	return &SimpleStatistic{
		id:    s.id,
		count: s.count + o.count,
		sumX:  s.sumX + o.sumX,
		sumX2: s.sumX2 + o.sumX2,
	}
}

// SignificantDigits is approximately 8 for a float64 sum-based accumulator.
func (s *SimpleStatistic) SignificantDigits() int { return 8 }

// ResistsCatastrophicCancellation is false for SimpleStatistic.
func (s *SimpleStatistic) ResistsCatastrophicCancellation() bool { return false }

// ToRecord emits a structured record.
func (s *SimpleStatistic) ToRecord() Record {
	return Record{ID: s.id, Count: s.count, MeanNs: s.Mean(), PstdevNs: s.Pstdev()}
}
