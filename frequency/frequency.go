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

// Package frequency holds the Frequency value type shared by ratelimiter
// and sequencer: a rate expressed in Hz together with its derived interval.
package frequency

import (
	"fmt"
	"time"
)

// Frequency is a positive rate expressed in Hz (events per second).
type Frequency struct {
	hz float64
}

// FromHz builds a Frequency from a Hz value. Returns an error if hz <= 0.
func FromHz(hz float64) (Frequency, error) {
	if hz <= 0 {
		return Frequency{}, fmt.Errorf("frequency must be greater than zero, got %g", hz)
	}
	return Frequency{hz: hz}, nil
}

// MustFromHz is like FromHz but panics on error; for use with compile-time constants.
func MustFromHz(hz float64) Frequency {
	f, err := FromHz(hz)
	if err != nil {
		panic(err)
	}
	return f
}

// Hz returns the frequency in Hz.
func (f Frequency) Hz() float64 {
	return f.hz
}

// Interval returns the duration between successive events at this frequency.
func (f Frequency) Interval() time.Duration {
	return time.Duration(float64(time.Second) / f.hz)
}

// String implements fmt.Stringer.
func (f Frequency) String() string {
	return fmt.Sprintf("%g Hz (%v interval)", f.hz, f.Interval())
}
