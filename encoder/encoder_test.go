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

package encoder

import (
	"errors"
	"testing"
)

// fakeLines is a LineReader with settable levels.
type fakeLines struct {
	levels []int
}

func (f *fakeLines) Count() int {
	return len(f.levels)
}

func (f *fakeLines) Read(i int) (int, error) {
	return f.levels[i], nil
}

// setState drives the two lines so that the gray decoded sample
// matches the given 2-bit state.
func (f *fakeLines) setState(s uint) {
	l0 := int(s>>1) & 1
	l1 := int(s&1) ^ l0
	f.levels[0] = l0
	f.levels[1] = l1
}

// recSink records emitted events.
type recSink struct {
	events []Event
	syncs  int
}

func (r *recSink) RelEvent(axis, delta int) {
	r.events = append(r.events, Event{Axis: axis, Value: delta, Relative: true})
}

func (r *recSink) AbsEvent(axis, value int) {
	r.events = append(r.events, Event{Axis: axis, Value: value})
}

func (r *recSink) Sync() {
	r.syncs++
}

// newQuadrature builds an encoder over two fake lines at state 0.
func newQuadrature(t *testing.T, cfg *Config) (*Encoder, *fakeLines, *recSink) {
	t.Helper()
	lines := &fakeLines{levels: make([]int, 2)}
	sink := &recSink{}
	e, err := New(lines, sink, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, lines, sink
}

// feed delivers one edge per state in the sequence.
func feed(t *testing.T, e *Encoder, lines *fakeLines, states []uint) {
	t.Helper()
	for _, s := range states {
		lines.setState(s)
		if err := e.Edge(); err != nil {
			t.Fatalf("Edge at state %d: %v", s, err)
		}
	}
}

func TestFullPeriod(t *testing.T) {
	tests := []struct {
		name   string
		states []uint
		deltas []int
	}{
		{"clockwise", []uint{0, 2, 1, 0}, []int{1}},
		{"counter-clockwise", []uint{0, 2, 3, 0}, []int{-1}},
		{"bounce rejected", []uint{0, 2, 0}, nil},
		{"direction overwrite", []uint{0, 2, 1, 3, 0}, []int{-1}},
		{"mid states before arming ignored", []uint{1, 3, 0}, nil},
		{"two detents", []uint{0, 2, 1, 0, 2, 1, 0}, []int{1, 1}},
		{"repeated rest sample", []uint{0, 2, 1, 0, 0}, []int{1}},
		{"repeated mid samples", []uint{0, 2, 2, 1, 1, 0}, []int{1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Name: "t", StepsPerPeriod: 1, Axis: 3, Relative: true}
			e, lines, sink := newQuadrature(t, cfg)
			feed(t, e, lines, tc.states)
			if len(sink.events) != len(tc.deltas) {
				t.Fatalf("got %d events, want %d", len(sink.events), len(tc.deltas))
			}
			for i, d := range tc.deltas {
				ev := sink.events[i]
				if !ev.Relative || ev.Axis != 3 || ev.Value != d {
					t.Errorf("event %d = %+v, want delta %d on axis 3", i, ev, d)
				}
			}
			if sink.syncs != len(tc.deltas) {
				t.Errorf("got %d syncs, want %d", sink.syncs, len(tc.deltas))
			}
		})
	}
}

func TestHalfPeriod(t *testing.T) {
	tests := []struct {
		name   string
		states []uint
		deltas []int
		stable uint
	}{
		{"step to 2", []uint{1, 2}, []int{-1}, 2},
		{"step back", []uint{3, 2}, []int{1}, 2},
		{"no change on repeat", []uint{1, 2, 2}, []int{-1}, 2},
		{"odd samples never emit", []uint{1, 3, 1}, nil, 0},
		{"full turn", []uint{3, 2, 1, 0}, []int{1, 1}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Name: "t", StepsPerPeriod: 2, Relative: true}
			e, lines, sink := newQuadrature(t, cfg)
			if e.Mode() != HalfPeriod {
				t.Fatalf("mode = %v, want half-period", e.Mode())
			}
			feed(t, e, lines, tc.states)
			if len(sink.events) != len(tc.deltas) {
				t.Fatalf("got %v, want deltas %v", sink.events, tc.deltas)
			}
			for i, d := range tc.deltas {
				if sink.events[i].Value != d {
					t.Errorf("event %d delta = %d, want %d", i, sink.events[i].Value, d)
				}
			}
			if e.lastStable != tc.stable {
				t.Errorf("lastStable = %d, want %d", e.lastStable, tc.stable)
			}
		})
	}
}

func TestQuarterPeriod(t *testing.T) {
	tests := []struct {
		name   string
		states []uint
		deltas []int
		stable uint
	}{
		{"adjacent up", []uint{1}, []int{1}, 1},
		{"adjacent down", []uint{3}, []int{-1}, 3},
		{"wrap up", []uint{1, 2, 3, 0}, []int{1, 1, 1, 1}, 0},
		{"non-adjacent dropped", []uint{2}, nil, 2},
		{"reference advances on drop", []uint{2, 3}, []int{1}, 3},
		{"repeat emits nothing", []uint{1, 1}, []int{1}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Name: "t", StepsPerPeriod: 4, Relative: true}
			e, lines, sink := newQuadrature(t, cfg)
			if e.Mode() != QuarterPeriod {
				t.Fatalf("mode = %v, want quarter-period", e.Mode())
			}
			feed(t, e, lines, tc.states)
			if len(sink.events) != len(tc.deltas) {
				t.Fatalf("got %v, want deltas %v", sink.events, tc.deltas)
			}
			for i, d := range tc.deltas {
				if sink.events[i].Value != d {
					t.Errorf("event %d delta = %d, want %d", i, sink.events[i].Value, d)
				}
			}
			if e.lastStable != tc.stable {
				t.Errorf("lastStable = %d, want %d", e.lastStable, tc.stable)
			}
		})
	}
}

// cw and ccw are one full-period detent in each direction.
var cw = []uint{0, 2, 1, 0}
var ccw = []uint{0, 2, 3, 0}

func TestPositionRollover(t *testing.T) {
	cfg := &Config{Name: "t", StepsPerPeriod: 1, Steps: 4, Rollover: true}
	e, lines, sink := newQuadrature(t, cfg)
	// From 0, one detent counter-clockwise wraps to steps-1.
	feed(t, e, lines, ccw)
	if e.Position() != 3 {
		t.Fatalf("position = %d, want 3", e.Position())
	}
	// And one detent clockwise wraps back to 0.
	feed(t, e, lines, cw)
	if e.Position() != 0 {
		t.Fatalf("position = %d, want 0", e.Position())
	}
	want := []int{3, 0}
	for i, v := range want {
		if sink.events[i].Value != v || sink.events[i].Relative {
			t.Errorf("event %d = %+v, want absolute %d", i, sink.events[i], v)
		}
	}
}

func TestPositionClamp(t *testing.T) {
	cfg := &Config{Name: "t", StepsPerPeriod: 1, Steps: 4}
	e, lines, sink := newQuadrature(t, cfg)
	// Clamped at zero turning counter-clockwise.
	feed(t, e, lines, ccw)
	if e.Position() != 0 {
		t.Fatalf("position = %d, want 0", e.Position())
	}
	// Clockwise increments until clamped at steps.
	for i := 0; i < 6; i++ {
		feed(t, e, lines, cw)
	}
	if e.Position() != 4 {
		t.Fatalf("position = %d, want 4", e.Position())
	}
	want := []int{0, 1, 2, 3, 4, 4, 4}
	if len(sink.events) != len(want) {
		t.Fatalf("got %d events, want %d", len(sink.events), len(want))
	}
	for i, v := range want {
		if sink.events[i].Value != v {
			t.Errorf("event %d = %d, want %d", i, sink.events[i].Value, v)
		}
	}
}

func TestAbsoluteEncoder(t *testing.T) {
	lines := &fakeLines{levels: []int{0, 0, 0}}
	sink := &recSink{}
	cfg := &Config{Name: "t", Absolute: true, Axis: 1}
	e, err := New(lines, sink, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Mode() != Absolute {
		t.Fatalf("mode = %v, want absolute", e.Mode())
	}
	// Initial pattern of zero matches the reference state, no event.
	if err := e.Edge(); err != nil {
		t.Fatal(err)
	}
	if len(sink.events) != 0 {
		t.Fatalf("unexpected events %v", sink.events)
	}
	// A raw pattern change reports the pattern as the position.
	lines.levels = []int{1, 0, 1}
	if err := e.Edge(); err != nil {
		t.Fatal(err)
	}
	// Identical pattern redelivered, no second event.
	if err := e.Edge(); err != nil {
		t.Fatal(err)
	}
	// Poll path uses the same change detection.
	lines.levels = []int{0, 1, 1}
	if err := e.Poll(); err != nil {
		t.Fatal(err)
	}
	want := []int{0b101, 0b011}
	if len(sink.events) != len(want) {
		t.Fatalf("got %d events, want %d", len(sink.events), len(want))
	}
	for i, v := range want {
		ev := sink.events[i]
		if ev.Relative || ev.Axis != 1 || ev.Value != v {
			t.Errorf("event %d = %+v, want absolute %d on axis 1", i, ev, v)
		}
	}
}

func TestSampleGray(t *testing.T) {
	tests := []struct {
		levels []int
		state  uint
	}{
		{[]int{0, 0}, 0},
		{[]int{0, 1}, 1},
		{[]int{1, 1}, 2},
		{[]int{1, 0}, 3},
		// Extra lines contribute only the low 2 bits.
		{[]int{1, 1, 0}, 0},
		{[]int{0, 1, 1}, 2},
	}
	for _, tc := range tests {
		lines := &fakeLines{levels: tc.levels}
		e := &Encoder{lines: lines}
		s, err := e.sampleGray()
		if err != nil {
			t.Fatal(err)
		}
		if s != tc.state {
			t.Errorf("levels %v: state = %d, want %d", tc.levels, s, tc.state)
		}
	}
}

func TestSampleRaw(t *testing.T) {
	lines := &fakeLines{levels: []int{1, 0, 1, 1}}
	e := &Encoder{lines: lines}
	s, err := e.sampleRaw()
	if err != nil {
		t.Fatal(err)
	}
	if s != 0b1011 {
		t.Errorf("raw state = %#b, want 0b1011", s)
	}
}

func TestRolloverRequiresSteps(t *testing.T) {
	lines := &fakeLines{levels: make([]int, 2)}
	cfg := &Config{Name: "t", StepsPerPeriod: 1, Rollover: true}
	if _, err := New(lines, &recSink{}, cfg); !errors.Is(err, ErrConfig) {
		t.Fatalf("New: %v, want ErrConfig", err)
	}
	// A relative axis never wraps, so rollover without steps is fine.
	cfg = &Config{Name: "t", StepsPerPeriod: 1, Rollover: true, Relative: true}
	e, lines2, sink := newQuadrature(t, cfg)
	feed(t, e, lines2, cw)
	if len(sink.events) != 1 {
		t.Fatalf("events = %v, want one", sink.events)
	}
}

func TestNotEnoughLines(t *testing.T) {
	lines := &fakeLines{levels: []int{0}}
	cfg := &Config{Name: "t", StepsPerPeriod: 1}
	if _, err := New(lines, &recSink{}, cfg); !errors.Is(err, ErrConfig) {
		t.Fatalf("New: %v, want ErrConfig", err)
	}
}
