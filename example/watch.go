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

// Program to demonstrate how to watch edge triggered sensor lines

package main

import (
	"flag"
	"log"

	"github.com/warthog618/go-gpiocdev"
)

var chip = flag.String("chip", "gpiochip0", "GPIO character device")
var gpio = flag.Int("gpio", 17, "GPIO line to watch")

func main() {
	flag.Parse()
	l, err := gpiocdev.RequestLine(*chip, *gpio,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			if evt.Type == gpiocdev.LineEventRisingEdge {
				log.Printf("gpio %d: rising", *gpio)
			} else {
				log.Printf("gpio %d: falling", *gpio)
			}
		}))
	if err != nil {
		log.Fatalf("gpio %d: %v", *gpio, err)
	}
	defer l.Close()
	select {}
}
