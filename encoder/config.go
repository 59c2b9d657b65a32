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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aamcrae/config"
)

// Default period for poll mode when the config does not set one.
const defaultPoll = 20 * time.Millisecond

// Config holds the configuration for one encoder, read from a section
// of a configuration file. The decode mode, steps and axis are fixed
// for the lifetime of the encoder; there is no runtime reconfiguration.
type Config struct {
	Name           string
	Gpio           []int         // Sensor line numbers, in bit order
	Chip           string        // GPIO character device (empty for sysfs)
	Steps          int           // Positions per revolution (absolute axis)
	StepsPerPeriod int           // Steps per quadrature period (1, 2 or 4)
	Axis           int           // Event axis to report on
	Relative       bool          // Report relative deltas
	Rollover       bool          // Wrap position instead of clamping
	Absolute       bool          // Multi-bit absolute encoder
	Wakeup         bool          // Keep decoding while suspended
	Poll           time.Duration // Poll period when edges are unavailable
	Debounce       time.Duration // Optional hardware debounce (chardev)
}

// ParseConfig reads and validates an encoder config from a config file
// section. Sample config:
//  [volume]                 # name of the encoder
//  gpio=17,27               # GPIOs for the sensor lines
//  chip=gpiochip0           # GPIO character device
//  steps-per-period=2       # 1, 2 or 4 steps per quadrature period
//  steps=24                 # number of positions per revolution
//  axis=7                   # event axis
//  relative-axis=true       # report deltas rather than positions
//  rollover=true            # wrap position modulo steps
//  absolute-encoder=false   # multi-bit absolute encoder
//  wakeup-source=false      # keep decoding while suspended
//  poll=20ms                # poll period (absolute, no edge support)
//
// The deprecated boolean key half-period is honoured only when
// steps-per-period is absent, mapping to steps-per-period=2; with
// neither key present the encoder decodes one step per period.
func ParseConfig(conf *config.Config, name string) (*Config, error) {
	s := conf.GetSection(name)
	if s == nil {
		return nil, fmt.Errorf("no config for %s", name)
	}
	var c Config
	c.Name = name
	// The config library splits comma separated values into multiple
	// tokens, which GetArg rejects; the raw argument string holds the
	// comma separated list as written.
	ge := s.Get("gpio")
	if len(ge) != 1 {
		return nil, fmt.Errorf("gpio: missing or duplicate keyword")
	}
	for _, f := range strings.Split(ge[0].Args, ",") {
		p, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("gpio: %v", err)
		}
		c.Gpio = append(c.Gpio, p)
	}
	if ch, err := s.GetArg("chip"); err == nil {
		c.Chip = ch
	}
	n, err := s.Parse("steps-per-period", "%d", &c.StepsPerPeriod)
	if err != nil || n != 1 {
		// The half-period key has been deprecated in favour of
		// steps-per-period, but is still parsed for compatibility.
		// With neither key present, one step per period is assumed.
		c.StepsPerPeriod = 1
		if optionalBool(s, "half-period") {
			c.StepsPerPeriod = 2
		}
	}
	if n, err := s.Parse("steps", "%d", &c.Steps); err == nil && n == 1 {
		if c.Steps < 0 {
			return nil, fmt.Errorf("steps: %w: %d", ErrConfig, c.Steps)
		}
	}
	if n, err := s.Parse("axis", "%d", &c.Axis); err == nil && n != 1 {
		return nil, fmt.Errorf("axis: argument count")
	}
	c.Relative = optionalBool(s, "relative-axis")
	c.Rollover = optionalBool(s, "rollover")
	c.Absolute = optionalBool(s, "absolute-encoder")
	c.Wakeup = optionalBool(s, "wakeup-source")
	c.Poll = defaultPoll
	if p, err := s.GetArg("poll"); err == nil {
		c.Poll, err = time.ParseDuration(p)
		if err != nil {
			return nil, fmt.Errorf("poll: %v", err)
		}
	}
	if d, err := s.GetArg("debounce"); err == nil {
		c.Debounce, err = time.ParseDuration(d)
		if err != nil {
			return nil, fmt.Errorf("debounce: %v", err)
		}
	}
	return &c, nil
}

// DecodeMode resolves the decode mode for an encoder with nlines sensor
// lines. Absolute encoders bypass the mode selection entirely and
// accept any number of lines. Quadrature decoding requires at least 2
// lines, and the steps per period, scaled down by the extra lines,
// must come to 4, 2 or 1 (quarter, half or full period decoding).
func (c *Config) DecodeMode(nlines int) (Mode, error) {
	if nlines != len(c.Gpio) && len(c.Gpio) > 0 {
		return 0, fmt.Errorf("%s: %w: %d lines for %d gpios",
			c.Name, ErrConfig, nlines, len(c.Gpio))
	}
	if c.Absolute {
		if nlines < 1 {
			return 0, fmt.Errorf("%s: %w: no sensor lines", c.Name, ErrConfig)
		}
		return Absolute, nil
	}
	if nlines < 2 {
		return 0, fmt.Errorf("%s: %w: not enough sensor lines", c.Name, ErrConfig)
	}
	switch c.StepsPerPeriod >> (nlines - 2) {
	case 4:
		return QuarterPeriod, nil
	case 2:
		return HalfPeriod, nil
	case 1:
		return FullPeriod, nil
	default:
		return 0, fmt.Errorf("%s: %w: %d is not a valid steps-per-period value",
			c.Name, ErrConfig, c.StepsPerPeriod)
	}
}

// optionalBool reads a boolean key, treating a missing or malformed
// value as false.
func optionalBool(s *config.Section, key string) bool {
	a, err := s.GetArg(key)
	if err != nil {
		return false
	}
	b, err := strconv.ParseBool(a)
	if err != nil {
		return false
	}
	return b
}
