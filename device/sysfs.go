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

// Sysfs GPIO line source.

package device

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/aamcrae/gpio"
)

// Sysfs reads sensor lines through the legacy sysfs GPIO interface.
// Each watched pin is serviced by a goroutine blocking in an
// edge-triggered read.
type Sysfs struct {
	pins []*io.Gpio
}

// OpenSysfs exports and opens the given GPIO pins as inputs.
func OpenSysfs(gpios []int) (*Sysfs, error) {
	s := new(Sysfs)
	for _, g := range gpios {
		p, err := io.Pin(g)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("pin %d: %v", g, err)
		}
		s.pins = append(s.pins, p)
	}
	return s, nil
}

func (s *Sysfs) Count() int {
	return len(s.pins)
}

func (s *Sysfs) Read(i int) (int, error) {
	return s.pins[i].Get()
}

// Watch enables both-edge detection on pin i and services it from a
// goroutine: Get blocks until an edge fires, then fn is invoked.
// Pins without edge support report ErrNoEdge.
func (s *Sysfs) Watch(i int, fn func()) (Watcher, error) {
	p := s.pins[i]
	if err := p.Edge(io.BOTH); err != nil {
		return nil, fmt.Errorf("pin %d: %w: %v", i, ErrNoEdge, err)
	}
	w := &sysfsWatcher{p: p}
	go func() {
		for {
			if _, err := p.Get(); err != nil {
				if w.stopped.Load() {
					return
				}
				log.Printf("pin %d: edge wait: %v", i, err)
				return
			}
			if w.stopped.Load() {
				return
			}
			fn()
		}
	}()
	return w, nil
}

func (s *Sysfs) Close() error {
	for _, p := range s.pins {
		p.Close()
	}
	s.pins = nil
	return nil
}

// sysfsWatcher stops edge servicing. Disabling edge detection stops
// further callbacks, but does not wake a Get already blocked waiting
// for an edge; that goroutine stays parked until Sysfs.Close releases
// the pin, whose read error it swallows via the stop flag. The pin is
// left open here so concurrent decodes can still sample it in the
// meantime.
type sysfsWatcher struct {
	p       *io.Gpio
	stopped atomic.Bool
}

func (w *sysfsWatcher) Close() error {
	w.stopped.Store(true)
	return w.p.Edge(io.NONE)
}
