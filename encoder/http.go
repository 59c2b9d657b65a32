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

// HTTP server for encoder position dials
package encoder

import (
	"flag"
	"fmt"
	"image/jpeg"
	"log"
	"math"
	"net/http"

	"github.com/fogleman/gg"
)

var port = flag.Int("port", 8080, "Web server port number")
var dialSize = flag.Int("dialsize", 400, "Dial image size in pixels")

const dialTicks = 24

// PositionServer serves a dial image per encoder showing the last
// reported value on its axis, read from the monitor sink. Relative
// axes show the accumulated delta total instead of a position.
func PositionServer(m *Monitor, encoders []*Encoder) {
	for _, e := range encoders {
		http.Handle(fmt.Sprintf("/axis%d.jpg", e.Axis()),
			http.HandlerFunc(handler(m, e)))
	}
	url := fmt.Sprintf(":%d", *port)
	log.Printf("Starting server on %s", url)
	server := &http.Server{Addr: url}
	log.Fatal(server.ListenAndServe())
}

func handler(m *Monitor, e *Encoder) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		c := gg.NewContext(*dialSize, *dialSize)
		c.SetRGB(1, 1, 1)
		c.Clear()
		drawDial(c, m.Value(e.Axis()), ticks(e))
		err := jpeg.Encode(w, c.Image(), nil)
		if err != nil {
			log.Printf("Error writing image: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

// ticks returns the number of positions around the dial face.
func ticks(e *Encoder) int {
	if e.relative || e.steps == 0 {
		return dialTicks
	}
	return int(e.steps)
}

func drawDial(c *gg.Context, value, revolution int) {
	mid := float64(c.Width()) / 2
	radius := mid * 0.9
	c.SetRGB(0, 0, 0)
	c.SetLineWidth(3)
	c.DrawCircle(mid, mid, radius)
	c.Stroke()
	// Tick marks around the face.
	c.SetLineWidth(1)
	for i := 0; i < revolution; i++ {
		radians := float64(i) * 2 * math.Pi / float64(revolution)
		x := math.Sin(radians)
		y := -math.Cos(radians)
		c.DrawLine(mid+x*radius*0.92, mid+y*radius*0.92,
			mid+x*radius, mid+y*radius)
	}
	c.Stroke()
	// Needle at the current value.
	v := value % revolution
	if v < 0 {
		v += revolution
	}
	radians := float64(v) * 2 * math.Pi / float64(revolution)
	x := radius * 0.85 * math.Sin(radians) + mid
	y := -radius * 0.85 * math.Cos(radians) + mid
	c.SetRGB(0, 0, 1)
	c.SetLineWidth(5)
	c.DrawLine(mid, mid, x, y)
	c.Stroke()
}
