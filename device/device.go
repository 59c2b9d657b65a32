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

// Package device wires encoders to their sensor lines.
//
// A Device owns the edge watchers (or the poll loop) that drive one
// encoder, and sequences teardown so that no callback can run against a
// closed encoder. Line access is abstracted behind LineSource, with
// backends for the GPIO character device and sysfs.

package device

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/aamcrae/rotary/encoder"
)

// ErrNoEdge is wrapped by Watch when a line cannot deliver edge
// events. Absolute encoders fall back to polling; quadrature decoding
// cannot work without edges.
var ErrNoEdge = errors.New("no edge support")

// Watcher is an active edge registration on one line.
type Watcher interface {
	Close() error
}

// LineSource provides the sensor lines of one encoder.
// Read may block briefly. Watch registers a callback to be invoked on
// every rising and falling edge of line i, returning an error wrapping
// ErrNoEdge when the line has no edge event support. Callbacks run on
// their own goroutines and may themselves block in Read.
type LineSource interface {
	Count() int
	Read(i int) (int, error)
	Watch(i int, fn func()) (Watcher, error)
	Close() error
}

// Device is one active rotary encoder: the decoder plus the watchers
// or poll timer feeding it. The line source is owned by the Device and
// released on Close.
type Device struct {
	Name string

	enc       *encoder.Encoder
	src       LineSource
	wakeup    bool
	suspended atomic.Bool

	watchers []Watcher
	pollStop chan struct{}
	pollDone chan struct{}
}

// Open builds the encoder for cfg and attaches it to the line source.
// Every line is watched for both edges; if a line has no edge support
// an absolute encoder falls back to periodic polling, while any other
// mode fails construction. On failure all partially-acquired watchers
// and the line source are released.
func Open(cfg *encoder.Config, src LineSource, sink encoder.EventSink) (*Device, error) {
	enc, err := encoder.New(src, sink, cfg)
	if err != nil {
		src.Close()
		return nil, err
	}
	d := &Device{
		Name:   cfg.Name,
		enc:    enc,
		src:    src,
		wakeup: cfg.Wakeup,
	}
	for i := 0; i < src.Count(); i++ {
		w, err := src.Watch(i, d.edge)
		if err == nil {
			d.watchers = append(d.watchers, w)
			continue
		}
		if errors.Is(err, ErrNoEdge) && enc.Mode() == encoder.Absolute {
			// No interrupt capability; poll the lines instead.
			log.Printf("%s: line %d: using poll mode", cfg.Name, i)
			d.closeWatchers()
			d.poll(cfg.Poll)
			return d, nil
		}
		d.closeWatchers()
		src.Close()
		return nil, fmt.Errorf("%s: line %d: %w", cfg.Name, i, err)
	}
	return d, nil
}

// Encoder returns the device's decoder.
func (d *Device) Encoder() *encoder.Encoder {
	return d.enc
}

// edge services one edge event. Events are dropped while suspended.
func (d *Device) edge() {
	if d.suspended.Load() {
		return
	}
	if err := d.enc.Edge(); err != nil {
		log.Printf("%s: decode: %v", d.Name, err)
	}
}

// poll starts the fallback poll loop for an absolute encoder.
func (d *Device) poll(period time.Duration) {
	if period <= 0 {
		period = 20 * time.Millisecond
	}
	d.pollStop = make(chan struct{})
	d.pollDone = make(chan struct{})
	go func() {
		defer close(d.pollDone)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-d.pollStop:
				return
			case <-ticker.C:
				if d.suspended.Load() {
					continue
				}
				if err := d.enc.Poll(); err != nil {
					log.Printf("%s: poll: %v", d.Name, err)
				}
			}
		}
	}()
}

// Suspend stops event delivery unless the encoder is configured as a
// wakeup source, in which case decoding carries on so that encoder
// activity is still seen while suspended.
func (d *Device) Suspend() {
	if !d.wakeup {
		d.suspended.Store(true)
	}
}

// Resume re-enables event delivery.
func (d *Device) Resume() {
	d.suspended.Store(false)
}

// Close tears down the device. The watchers and the poll loop are
// stopped before the lines are released, so no decode callback can
// fire during or after teardown.
func (d *Device) Close() {
	if d.pollStop != nil {
		close(d.pollStop)
		<-d.pollDone
		d.pollStop = nil
	}
	d.closeWatchers()
	d.src.Close()
}

func (d *Device) closeWatchers() {
	for _, w := range d.watchers {
		w.Close()
	}
	d.watchers = nil
}
