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

// Event sinks for decoded encoder events.

package encoder

import (
	"log"
	"sync"
)

// Event is one decoded encoder event. Relative events carry a signed
// delta, absolute events the new position.
type Event struct {
	Axis     int
	Value    int
	Relative bool
}

// Stream is an EventSink delivering events on a channel. Events are
// dropped if the consumer falls behind; the decoder never blocks on
// its sink.
type Stream struct {
	C chan Event
}

// NewStream creates a channel-backed sink with the given buffering.
func NewStream(depth int) *Stream {
	return &Stream{C: make(chan Event, depth)}
}

func (s *Stream) RelEvent(axis, delta int) {
	select {
	case s.C <- Event{Axis: axis, Value: delta, Relative: true}:
	default:
	}
}

func (s *Stream) AbsEvent(axis, value int) {
	select {
	case s.C <- Event{Axis: axis, Value: value}:
	default:
	}
}

func (s *Stream) Sync() {
}

// Logger is an EventSink that logs events, useful when no input device
// is configured.
type Logger struct {
	Name string
}

func (l *Logger) RelEvent(axis, delta int) {
	log.Printf("%s: axis %d: delta %+d", l.Name, axis, delta)
}

func (l *Logger) AbsEvent(axis, value int) {
	log.Printf("%s: axis %d: position %d", l.Name, axis, value)
}

func (l *Logger) Sync() {
}

// Monitor tees events to another sink while recording the latest
// value seen on each axis: the reported position for absolute axes,
// and a running total of deltas for relative ones. The recorded values
// are used for status display only and play no part in decoding.
type Monitor struct {
	next EventSink

	mu     sync.Mutex
	values map[int]int
}

// NewMonitor creates a Monitor forwarding to next, which may be nil.
func NewMonitor(next EventSink) *Monitor {
	return &Monitor{next: next, values: make(map[int]int)}
}

func (m *Monitor) RelEvent(axis, delta int) {
	m.mu.Lock()
	m.values[axis] += delta
	m.mu.Unlock()
	if m.next != nil {
		m.next.RelEvent(axis, delta)
	}
}

func (m *Monitor) AbsEvent(axis, value int) {
	m.mu.Lock()
	m.values[axis] = value
	m.mu.Unlock()
	if m.next != nil {
		m.next.AbsEvent(axis, value)
	}
}

func (m *Monitor) Sync() {
	if m.next != nil {
		m.next.Sync()
	}
}

// Value returns the last recorded value for an axis.
func (m *Monitor) Value(axis int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[axis]
}

// Axes returns the axes that have reported at least one event.
func (m *Monitor) Axes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	axes := make([]int, 0, len(m.values))
	for a := range m.values {
		axes = append(axes, a)
	}
	return axes
}
