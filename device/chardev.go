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

// GPIO character device line source.

package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Chardev reads sensor lines through the GPIO character device.
// Lines are initially requested as plain inputs; Watch re-requests a
// line with both-edge event delivery. The line table is guarded by a
// mutex: an event handler may be decoding (and reading every line)
// while later lines are still being re-requested.
type Chardev struct {
	chip     string
	offsets  []int
	debounce time.Duration

	mu    sync.Mutex
	lines []*gpiocdev.Line
}

// OpenChardev requests the given lines on a GPIO chip (e.g
// "gpiochip0") as inputs. A non-zero debounce is applied by the kernel
// before edges are reported.
func OpenChardev(chip string, gpios []int, debounce time.Duration) (*Chardev, error) {
	c := &Chardev{chip: chip, offsets: gpios, debounce: debounce}
	for _, o := range gpios {
		l, err := gpiocdev.RequestLine(chip, o, gpiocdev.AsInput)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("%s: gpio %d: %v", chip, o, err)
		}
		c.lines = append(c.lines, l)
	}
	return c, nil
}

func (c *Chardev) Count() int {
	return len(c.offsets)
}

func (c *Chardev) Read(i int) (int, error) {
	c.mu.Lock()
	l := c.lines[i]
	c.mu.Unlock()
	if l == nil {
		return 0, fmt.Errorf("%s: gpio %d: line closed", c.chip, c.offsets[i])
	}
	return l.Value()
}

// Watch re-requests line i with edge events delivered to fn. If the
// line cannot be requested with edge detection it is restored as a
// plain input and ErrNoEdge returned, so that Read keeps working for
// poll mode.
func (c *Chardev) Watch(i int, fn func()) (Watcher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines[i].Close()
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { fn() }),
	}
	if c.debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(c.debounce))
	}
	l, err := gpiocdev.RequestLine(c.chip, c.offsets[i], opts...)
	if err != nil {
		l, rerr := gpiocdev.RequestLine(c.chip, c.offsets[i], gpiocdev.AsInput)
		if rerr != nil {
			return nil, fmt.Errorf("%s: gpio %d: %v", c.chip, c.offsets[i], rerr)
		}
		c.lines[i] = l
		return nil, fmt.Errorf("%s: gpio %d: %w: %v", c.chip, c.offsets[i], ErrNoEdge, err)
	}
	c.lines[i] = l
	return &chardevWatcher{c: c, i: i}, nil
}

func (c *Chardev) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lines {
		if l != nil {
			l.Close()
		}
	}
	c.lines = nil
	return nil
}

// chardevWatcher reverts a watched line to a plain input, stopping
// event delivery.
type chardevWatcher struct {
	c *Chardev
	i int
}

func (w *chardevWatcher) Close() error {
	c := w.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lines == nil {
		return nil
	}
	c.lines[w.i].Close()
	l, err := gpiocdev.RequestLine(c.chip, c.offsets[w.i], gpiocdev.AsInput)
	if err != nil {
		c.lines[w.i] = nil
		return err
	}
	c.lines[w.i] = l
	return nil
}
