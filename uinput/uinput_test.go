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

package uinput

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestIoctlEncoding(t *testing.T) {
	tests := []struct {
		name string
		req  uintptr
		want uintptr
	}{
		{"UI_DEV_CREATE", uiDevCreate, 0x5501},
		{"UI_DEV_DESTROY", uiDevDestroy, 0x5502},
		{"UI_SET_EVBIT", uiSetEvBit, 0x40045564},
		{"UI_SET_RELBIT", uiSetRelBit, 0x40045566},
		{"UI_SET_ABSBIT", uiSetAbsBit, 0x40045567},
	}
	for _, tc := range tests {
		if tc.req != tc.want {
			t.Errorf("%s = %#x, want %#x", tc.name, tc.req, tc.want)
		}
	}
}

func TestSetupRecord(t *testing.T) {
	axes := []Axis{{Code: 8, Max: 24}, {Code: 1, Relative: true}}
	rec := setupRecord("rotary", axes)
	// sizeof(struct uinput_user_dev)
	if len(rec) != 1116 {
		t.Fatalf("record length = %d, want 1116", len(rec))
	}
	if !bytes.Equal(rec[:6], []byte("rotary")) {
		t.Errorf("name = %q", rec[:8])
	}
	if rec[6] != 0 {
		t.Errorf("name not zero padded")
	}
	if bus := binary.LittleEndian.Uint16(rec[80:]); bus != busHost {
		t.Errorf("bustype = %#x, want %#x", bus, busHost)
	}
	// absmax array starts after name, id and ff_effects_max.
	off := 80 + 8 + 4
	if max := binary.LittleEndian.Uint32(rec[off+8*4:]); max != 24 {
		t.Errorf("absmax[8] = %d, want 24", max)
	}
	// Relative axes contribute no abs range.
	if max := binary.LittleEndian.Uint32(rec[off+1*4:]); max != 0 {
		t.Errorf("absmax[1] = %d, want 0", max)
	}
}

func TestEventRecord(t *testing.T) {
	ev := event(evRel, 7, -1)
	if len(ev) != 24 {
		t.Fatalf("event length = %d, want 24", len(ev))
	}
	if typ := binary.LittleEndian.Uint16(ev[16:]); typ != evRel {
		t.Errorf("type = %d, want %d", typ, evRel)
	}
	if code := binary.LittleEndian.Uint16(ev[18:]); code != 7 {
		t.Errorf("code = %d, want 7", code)
	}
	if val := int32(binary.LittleEndian.Uint32(ev[20:])); val != -1 {
		t.Errorf("value = %d, want -1", val)
	}
}
