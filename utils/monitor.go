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

// Monitor utility
//
// Builds a single encoder from a configuration file section and
// prints every decoded event, for checking wiring and decode mode.

package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/aamcrae/config"

	"github.com/aamcrae/rotary/device"
	"github.com/aamcrae/rotary/encoder"
)

var configFile = flag.String("config", "", "Configuration file")
var section = flag.String("encoder", "", "Encoder section to monitor")

func main() {
	flag.Parse()
	conf, err := config.ParseFile(*configFile)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	c, err := encoder.ParseConfig(conf, *section)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	var src device.LineSource
	if c.Chip != "" {
		src, err = device.OpenChardev(c.Chip, c.Gpio, c.Debounce)
	} else {
		src, err = device.OpenSysfs(c.Gpio)
	}
	if err != nil {
		log.Fatalf("%s: %v", c.Name, err)
	}
	sink := encoder.NewStream(64)
	d, err := device.Open(c, src, sink)
	if err != nil {
		log.Fatalf("%s: %v", c.Name, err)
	}
	defer d.Close()
	fmt.Printf("%s: %s decoding on axis %d, turn the encoder\n",
		c.Name, d.Encoder().Mode(), c.Axis)
	for ev := range sink.C {
		if ev.Relative {
			fmt.Printf("axis %d: delta %+d\n", ev.Axis, ev.Value)
		} else {
			fmt.Printf("axis %d: position %d\n", ev.Axis, ev.Value)
		}
	}
}
