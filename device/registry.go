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

package device

import (
	"fmt"
	"sync"
)

// Registry tracks the active encoder devices of an application. It is
// created at startup and closed at shutdown; there is no process-wide
// device table.
type Registry struct {
	mu   sync.Mutex
	devs map[string]*Device
}

func NewRegistry() *Registry {
	return &Registry{devs: make(map[string]*Device)}
}

// Add registers a device under its name.
func (r *Registry) Add(d *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devs[d.Name]; ok {
		return fmt.Errorf("%s: already registered", d.Name)
	}
	r.devs[d.Name] = d
	return nil
}

// Get returns a registered device, or nil.
func (r *Registry) Get(name string) *Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.devs[name]
}

// Devices returns all registered devices.
func (r *Registry) Devices() []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	devs := make([]*Device, 0, len(r.devs))
	for _, d := range r.devs {
		devs = append(devs, d)
	}
	return devs
}

// SuspendAll suspends every registered device.
func (r *Registry) SuspendAll() {
	for _, d := range r.Devices() {
		d.Suspend()
	}
}

// ResumeAll resumes every registered device.
func (r *Registry) ResumeAll() {
	for _, d := range r.Devices() {
		d.Resume()
	}
}

// Close tears down every registered device.
func (r *Registry) Close() {
	r.mu.Lock()
	devs := r.devs
	r.devs = make(map[string]*Device)
	r.mu.Unlock()
	for _, d := range devs {
		d.Close()
	}
}
