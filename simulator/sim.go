// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Simulator encoder program
//
// Drives the decoder with a simulated quadrature signal instead of
// real sensor lines, printing the decoded events. Useful for checking
// a decode mode without hardware.

package main

import (
	"flag"
	"fmt"
	"sync"
	"time"

	"github.com/aamcrae/rotary/device"
	"github.com/aamcrae/rotary/encoder"
)

var spp = flag.Int("mode", 1, "Steps per period (1, 2 or 4)")
var detents = flag.Int("detents", 5, "Detents to simulate in each direction")
var interval = flag.Duration("interval", 5*time.Millisecond, "Delay between signal edges")

// simLines simulates the two sensor lines of a quadrature encoder.
// Every state change fires the edge callback of each watched line,
// like a both-edges interrupt per GPIO.
type simLines struct {
	mu     sync.Mutex
	levels [2]int
	fns    []func()
}

func (s *simLines) Count() int {
	return 2
}

func (s *simLines) Read(i int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[i], nil
}

func (s *simLines) Watch(i int, fn func()) (device.Watcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns = append(s.fns, fn)
	return s, nil
}

func (s *simLines) Close() error {
	return nil
}

// set drives the lines to the gray pattern decoding to state and
// fires the edge callbacks.
func (s *simLines) set(state uint) {
	s.mu.Lock()
	l0 := int(state>>1) & 1
	s.levels[0] = l0
	s.levels[1] = int(state&1) ^ l0
	fns := append([]func(){}, s.fns...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	time.Sleep(*interval)
}

func main() {
	flag.Parse()
	sim := new(simLines)
	sink := encoder.NewStream(64)
	cfg := &encoder.Config{Name: "sim", StepsPerPeriod: *spp, Relative: true}
	d, err := device.Open(cfg, sim, sink)
	if err != nil {
		fmt.Printf("sim: %v\n", err)
		return
	}
	defer d.Close()
	fmt.Printf("simulating %s decoding\n", d.Encoder().Mode())
	go func() {
		for i := 0; i < *detents; i++ {
			for _, s := range []uint{3, 2, 1, 0} {
				sim.set(s)
			}
		}
		for i := 0; i < *detents; i++ {
			for _, s := range []uint{1, 2, 3, 0} {
				sim.set(s)
			}
		}
		close(sink.C)
	}()
	total := 0
	for ev := range sink.C {
		total += ev.Value
		fmt.Printf("delta %+d, total %d\n", ev.Value, total)
	}
}
