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

// Package encoder decodes quadrature rotary encoders.
//
// Two (or more) gray-coded sensor lines are sampled on each edge event,
// and a state machine turns the transitions into direction and step
// events delivered to an event sink. Three quadrature decode modes are
// supported (one, two or four steps per signal period), along with an
// absolute mode for multi-bit encoders where the raw line pattern is the
// position.

package encoder

import (
	"errors"
	"fmt"
	"sync"
)

// ErrConfig is wrapped by construction errors caused by an invalid
// or unsupported configuration.
var ErrConfig = errors.New("invalid configuration")

// Mode selects the decoding strategy for an encoder.
// Exactly one mode is active for the lifetime of an Encoder.
type Mode int

const (
	// FullPeriod emits one step per full 4-state quadrature cycle.
	FullPeriod Mode = iota
	// HalfPeriod emits one step per half cycle; the two even states
	// are treated as stable detents.
	HalfPeriod
	// QuarterPeriod emits one step per state transition.
	QuarterPeriod
	// Absolute reports the raw multi-bit line pattern as the position.
	Absolute
)

func (m Mode) String() string {
	switch m {
	case FullPeriod:
		return "full-period"
	case HalfPeriod:
		return "half-period"
	case QuarterPeriod:
		return "quarter-period"
	case Absolute:
		return "absolute"
	default:
		return "unknown"
	}
}

// LineReader provides the current logic levels of the sensor lines.
// Read may block briefly (e.g sysfs or character device I/O), so it
// must only be called from contexts that can sleep.
type LineReader interface {
	Count() int
	Read(i int) (int, error)
}

// EventSink receives decoded events. Sync marks the end of an event
// report. Sinks are assumed infallible; delivery problems are the
// sink's concern, not the decoder's.
type EventSink interface {
	RelEvent(axis, delta int)
	AbsEvent(axis, value int)
	Sync()
}

// Encoder decodes a single rotary encoder. All decode state is guarded
// by a mutex so that edge events from different sensor lines, which may
// be serviced concurrently, are serialised. Separate Encoder instances
// are fully independent.
type Encoder struct {
	lines LineReader
	sink  EventSink

	mode     Mode
	steps    uint // Positions per revolution (absolute axis mode)
	axis     int  // Event axis the encoder reports on
	relative bool // Report deltas rather than positions
	rollover bool // Wrap position modulo steps instead of clamping

	mu         sync.Mutex
	pos        uint
	armed      bool // Full-period: a transition sequence has begun
	dir        int  // Provisional direction, +1 cw / -1 ccw
	lastStable uint // Last reported state (half/quarter/absolute)
}

// New creates an Encoder decoding the given sensor lines into the sink.
// The decode mode, axis and position policy are fixed at construction.
// Half and quarter period modes take their initial reference state from
// the current line levels.
func New(lines LineReader, sink EventSink, cfg *Config) (*Encoder, error) {
	mode, err := cfg.DecodeMode(lines.Count())
	if err != nil {
		return nil, err
	}
	// Rollover wraps the position modulo steps, so an absolute axis
	// must have a step count to wrap within.
	if cfg.Rollover && !cfg.Relative && mode != Absolute && cfg.Steps == 0 {
		return nil, fmt.Errorf("%s: %w: rollover requires steps", cfg.Name, ErrConfig)
	}
	e := &Encoder{
		lines:    lines,
		sink:     sink,
		mode:     mode,
		steps:    uint(cfg.Steps),
		axis:     cfg.Axis,
		relative: cfg.Relative,
		rollover: cfg.Rollover,
	}
	switch mode {
	case HalfPeriod, QuarterPeriod:
		s, err := e.sampleGray()
		if err != nil {
			return nil, fmt.Errorf("%s: initial state: %v", cfg.Name, err)
		}
		e.lastStable = s
	}
	return e, nil
}

// Mode returns the decode mode selected at construction.
func (e *Encoder) Mode() Mode {
	return e.mode
}

// Axis returns the event axis the encoder reports on.
func (e *Encoder) Axis() int {
	return e.axis
}

// Position returns the current position (absolute axis mode).
func (e *Encoder) Position() uint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

// Edge performs one decode step. It is called once per qualifying edge
// on any of the sensor lines, samples the lines and runs the active
// state machine, emitting at most one event. Unrecognised transitions
// are treated as noise and dropped silently.
func (e *Encoder) Edge() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == Absolute {
		return e.absolute()
	}
	state, err := e.sampleGray()
	if err != nil {
		return err
	}
	switch e.mode {
	case FullPeriod:
		e.fullPeriod(state)
	case HalfPeriod:
		e.halfPeriod(state)
	case QuarterPeriod:
		e.quarterPeriod(state)
	}
	return nil
}

// Poll performs one poll-mode decode step for an absolute encoder.
// Used when the sensor lines cannot deliver edge events; the change
// detection is identical to the edge driven path.
func (e *Encoder) Poll() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.absolute()
}

// fullPeriod emits one event per full quadrature cycle. State 2 is the
// midpoint and arms the decoder, states 1 and 3 record the provisional
// direction, and only a return to the rest state 0 commits. A bounce
// straight back to 0 never records a direction and so never commits
// a stale one; the armed latch is what rejects it.
func (e *Encoder) fullPeriod(state uint) {
	switch state {
	case 0:
		if e.armed {
			e.report()
			e.armed = false
		}
	case 1, 3:
		if e.armed {
			e.dir = 2 - int(state)
		}
	case 2:
		e.armed = true
	}
}

// halfPeriod emits one event per half cycle. The even states are the
// stable detents; an odd sample only derives the direction towards the
// next detent. Repeating the current stable state emits nothing.
func (e *Encoder) halfPeriod(state uint) {
	if state&1 == 1 {
		e.dir = int((e.lastStable-state+1)%4) - 1
		return
	}
	if state != e.lastStable {
		e.report()
		e.lastStable = state
	}
}

// quarterPeriod emits one event per state transition. Only transitions
// between adjacent states carry a direction; a non-adjacent jump (a
// missed edge or bounce) emits nothing. The reference state advances on
// every sample, including rejected ones, so the next adjacent
// transition is decoded from where the encoder actually is.
func (e *Encoder) quarterPeriod(state uint) {
	switch {
	case (e.lastStable+1)%4 == state:
		e.dir = 1
		e.report()
	case e.lastStable == (state+1)%4:
		e.dir = -1
		e.report()
	}
	e.lastStable = state
}

// absolute reports the raw line pattern whenever it changes.
func (e *Encoder) absolute() error {
	state, err := e.sampleRaw()
	if err != nil {
		return err
	}
	if state != e.lastStable {
		e.sink.AbsEvent(e.axis, int(state))
		e.sink.Sync()
		e.lastStable = state
	}
	return nil
}

// report emits one event in the recorded direction. In relative mode
// the direction is the event; in absolute axis mode the position is
// advanced first, wrapping modulo steps or clamping at the bounds
// according to the rollover policy.
func (e *Encoder) report() {
	if e.relative {
		e.sink.RelEvent(e.axis, e.dir)
	} else {
		pos := e.pos
		if e.dir < 0 {
			// Turning counter-clockwise
			if e.rollover {
				pos += e.steps
			}
			if pos > 0 {
				pos--
			}
		} else {
			// Turning clockwise
			if e.rollover || pos < e.steps {
				pos++
			}
		}
		if e.rollover {
			pos %= e.steps
		}
		e.pos = pos
		e.sink.AbsEvent(e.axis, int(pos))
	}
	e.sink.Sync()
}

// sampleGray reads the sensor lines and folds them into a binary state,
// converting from gray encoding to normal. Only the low 2 bits are
// significant for quadrature decoding.
func (e *Encoder) sampleGray() (uint, error) {
	var v uint
	for i := 0; i < e.lines.Count(); i++ {
		b, err := e.lines.Read(i)
		if err != nil {
			return 0, err
		}
		if v&1 == 1 {
			b ^= 1
		}
		v = v<<1 | uint(b&1)
	}
	return v & 3, nil
}

// sampleRaw reads the sensor lines into a state value without gray
// conversion, one bit per line.
func (e *Encoder) sampleRaw() (uint, error) {
	var v uint
	for i := 0; i < e.lines.Count(); i++ {
		b, err := e.lines.Read(i)
		if err != nil {
			return 0, err
		}
		v = v<<1 | uint(b&1)
	}
	return v, nil
}
