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

// Package uinput delivers decoded encoder events to the Linux input
// subsystem through a virtual input device on /dev/uinput.
package uinput

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"os"

	"golang.org/x/sys/unix"
)

// Input event types and codes.
const (
	evSyn = 0x00
	evRel = 0x02
	evAbs = 0x03

	synReport = 0x00

	busHost = 0x19
)

// ioctl request encoding (Linux _IOC macro).
const (
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocWrite = 1
)

const uinputMaxNameSize = 80
const absCnt = 0x40

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr(dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift)
}

var (
	uiDevCreate  = ioc(0, 'U', 1, 0)
	uiDevDestroy = ioc(0, 'U', 2, 0)
	uiSetEvBit   = ioc(iocWrite, 'U', 100, 4)
	uiSetRelBit  = ioc(iocWrite, 'U', 102, 4)
	uiSetAbsBit  = ioc(iocWrite, 'U', 103, 4)
)

// Axis declares one event axis of the virtual device. Absolute axes
// report values in [0, Max].
type Axis struct {
	Code     int
	Relative bool
	Max      int
}

// Device is a virtual input device. It implements encoder.EventSink.
type Device struct {
	f *os.File
}

// New creates a virtual input device with the given axes.
// The device node appears under /dev/input once created, and is
// destroyed again by Close.
func New(name string, axes []Axis) (*Device, error) {
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("/dev/uinput: %v", err)
	}
	d := &Device{f: f}
	fd := f.Fd()
	var haveRel, haveAbs bool
	for _, a := range axes {
		if a.Relative {
			haveRel = true
		} else {
			haveAbs = true
		}
	}
	if haveRel {
		if err := ioctl(fd, uiSetEvBit, evRel); err != nil {
			f.Close()
			return nil, fmt.Errorf("set EV_REL: %v", err)
		}
	}
	if haveAbs {
		if err := ioctl(fd, uiSetEvBit, evAbs); err != nil {
			f.Close()
			return nil, fmt.Errorf("set EV_ABS: %v", err)
		}
	}
	for _, a := range axes {
		req := uiSetAbsBit
		if a.Relative {
			req = uiSetRelBit
		}
		if err := ioctl(fd, req, a.Code); err != nil {
			f.Close()
			return nil, fmt.Errorf("axis %d: %v", a.Code, err)
		}
	}
	if _, err := f.Write(setupRecord(name, axes)); err != nil {
		f.Close()
		return nil, fmt.Errorf("device setup: %v", err)
	}
	if err := ioctl(fd, uiDevCreate, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("device create: %v", err)
	}
	return d, nil
}

// setupRecord builds a uinput_user_dev record: the device name, bus
// identity, and the per-axis absolute ranges.
func setupRecord(name string, axes []Axis) []byte {
	var b bytes.Buffer
	var nb [uinputMaxNameSize]byte
	copy(nb[:], name)
	b.Write(nb[:])
	// struct input_id: bustype, vendor, product, version.
	binary.Write(&b, binary.LittleEndian, uint16(busHost))
	binary.Write(&b, binary.LittleEndian, uint16(0))
	binary.Write(&b, binary.LittleEndian, uint16(0))
	binary.Write(&b, binary.LittleEndian, uint16(0))
	binary.Write(&b, binary.LittleEndian, uint32(0)) // ff_effects_max
	var absMax, absMin [absCnt]int32
	for _, a := range axes {
		if !a.Relative && a.Code < absCnt {
			absMax[a.Code] = int32(a.Max)
		}
	}
	binary.Write(&b, binary.LittleEndian, absMax[:])
	binary.Write(&b, binary.LittleEndian, absMin[:])
	binary.Write(&b, binary.LittleEndian, [absCnt]int32{}) // absfuzz
	binary.Write(&b, binary.LittleEndian, [absCnt]int32{}) // absflat
	return b.Bytes()
}

// event marshals one input_event record. The kernel fills in the
// timestamp for uinput writes, so it is left zero.
func event(typ, code uint16, value int32) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, int64(0)) // tv_sec
	binary.Write(&b, binary.LittleEndian, int64(0)) // tv_usec
	binary.Write(&b, binary.LittleEndian, typ)
	binary.Write(&b, binary.LittleEndian, code)
	binary.Write(&b, binary.LittleEndian, value)
	return b.Bytes()
}

func (d *Device) emit(typ, code uint16, value int32) {
	if _, err := d.f.Write(event(typ, code, value)); err != nil {
		log.Printf("uinput: write: %v", err)
	}
}

func (d *Device) RelEvent(axis, delta int) {
	d.emit(evRel, uint16(axis), int32(delta))
}

func (d *Device) AbsEvent(axis, value int) {
	d.emit(evAbs, uint16(axis), int32(value))
}

func (d *Device) Sync() {
	d.emit(evSyn, synReport, 0)
}

// Close destroys the virtual device.
func (d *Device) Close() error {
	if err := ioctl(d.f.Fd(), uiDevDestroy, 0); err != nil {
		d.f.Close()
		return err
	}
	return d.f.Close()
}

func ioctl(fd, req uintptr, arg int) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
