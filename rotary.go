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

// Rotary encoder daemon.
//
// Decodes one or more GPIO rotary encoders from a configuration file
// and reports their events to a virtual input device (or the log).
// SIGUSR1/SIGUSR2 suspend and resume event delivery; encoders marked
// as wakeup sources keep reporting while suspended.

package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aamcrae/config"

	"github.com/aamcrae/rotary/device"
	"github.com/aamcrae/rotary/encoder"
	"github.com/aamcrae/rotary/uinput"
)

var configFile = flag.String("config", "/etc/rotary.conf", "Configuration file")
var encoders = flag.String("encoders", "", "Comma separated encoder sections")
var useUinput = flag.Bool("uinput", false, "Report events to a uinput device")
var devName = flag.String("name", "rotary-encoder", "Virtual input device name")
var web = flag.Bool("web", false, "Serve position dials over HTTP")

func main() {
	flag.Parse()
	conf, err := config.ParseFile(*configFile)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	var cfgs []*encoder.Config
	for _, name := range strings.Split(*encoders, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		c, err := encoder.ParseConfig(conf, name)
		if err != nil {
			log.Fatalf("%s: %v", name, err)
		}
		cfgs = append(cfgs, c)
	}
	if len(cfgs) == 0 {
		log.Fatalf("no encoders configured (use -encoders)")
	}
	var sink encoder.EventSink = &encoder.Logger{Name: "rotary"}
	if *useUinput {
		u, err := uinput.New(*devName, axes(cfgs))
		if err != nil {
			log.Fatalf("uinput: %v", err)
		}
		defer u.Close()
		sink = u
	}
	mon := encoder.NewMonitor(sink)
	reg := device.NewRegistry()
	var encs []*encoder.Encoder
	for _, c := range cfgs {
		src, err := lines(c)
		if err != nil {
			log.Fatalf("%s: %v", c.Name, err)
		}
		d, err := device.Open(c, src, mon)
		if err != nil {
			reg.Close()
			log.Fatalf("%s: %v", c.Name, err)
		}
		if err := reg.Add(d); err != nil {
			d.Close()
			reg.Close()
			log.Fatalf("%s: %v", c.Name, err)
		}
		encs = append(encs, d.Encoder())
		log.Printf("%s: %d lines, %s decoding, axis %d", c.Name,
			len(c.Gpio), d.Encoder().Mode(), c.Axis)
	}
	if *web {
		go encoder.PositionServer(mon, encs)
	}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	for s := range sig {
		switch s {
		case syscall.SIGUSR1:
			log.Printf("suspending")
			reg.SuspendAll()
		case syscall.SIGUSR2:
			log.Printf("resuming")
			reg.ResumeAll()
		default:
			log.Printf("shutting down")
			reg.Close()
			return
		}
	}
}

// lines opens the sensor lines for an encoder, using the GPIO
// character device when a chip is configured and sysfs otherwise.
func lines(c *encoder.Config) (device.LineSource, error) {
	if c.Chip != "" {
		return device.OpenChardev(c.Chip, c.Gpio, c.Debounce)
	}
	return device.OpenSysfs(c.Gpio)
}

// axes builds the uinput axis set for the configured encoders.
func axes(cfgs []*encoder.Config) []uinput.Axis {
	var ax []uinput.Axis
	for _, c := range cfgs {
		max := c.Steps
		if c.Absolute {
			// The raw line pattern is the position.
			max = 1<<len(c.Gpio) - 1
		}
		ax = append(ax, uinput.Axis{Code: c.Axis, Relative: c.Relative, Max: max})
	}
	return ax
}
