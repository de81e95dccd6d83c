// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controlplus

import (
	"bytes"
	"errors"
	"testing"
)

func TestFramer_SingleFrame(t *testing.T) {
	f := NewFramer()
	data := []byte{0x05, 0x00, 0x82, 0x00, 0x0A}

	for i, b := range data {
		frame, err := f.PushByte(b)
		if err != nil {
			t.Fatalf("PushByte(%d) error: %v", i, err)
		}
		if i < len(data)-1 && frame != nil {
			t.Fatalf("frame completed early at byte %d", i)
		}
		if i == len(data)-1 && !bytes.Equal(frame, data) {
			t.Errorf("frame = % X, want % X", frame, data)
		}
	}
	if len(f.Pending()) != 0 {
		t.Errorf("Pending() = % X after complete frame", f.Pending())
	}
}

func TestFramer_BackToBack(t *testing.T) {
	first := MustEncode(NewHubAction(HubActionShutdown))
	second := MustEncode(NewStartSpeed(1, 50, 100, ProfileNone))
	third := MustEncode(NewWriteDirect(0, bytes.Repeat([]byte{0x55}, 130)))

	stream := append(append(append([]byte{}, first...), second...), third...)

	frames, errs := NewFramer().Push(stream)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := [][]byte{first, second, third}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(frames), len(want))
	}
	for i := range want {
		if !bytes.Equal(frames[i], want[i]) {
			t.Errorf("frame %d = % X, want % X", i, frames[i], want[i])
		}
	}
}

func TestFramer_Resync(t *testing.T) {
	tests := []struct {
		name string
		junk []byte
	}{
		{"size too small", []byte{0x01}},
		{"hub id not zero", []byte{0x04, 0x07}},
		{"extended size too small", []byte{0x80, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid := MustEncode(NewHubAction(HubActionSwitchOff))
			frames, errs := NewFramer().Push(append(append([]byte{}, tt.junk...), valid...))
			if len(errs) == 0 {
				t.Error("expected a framing error")
			}
			if len(frames) != 1 || !bytes.Equal(frames[0], valid) {
				t.Errorf("frames = %X, want the valid frame only", frames)
			}
		})
	}
}

func TestFramer_HubIDError(t *testing.T) {
	f := NewFramer()
	f.PushByte(0x04)
	_, err := f.PushByte(0x01)
	if !errors.Is(err, ErrReservedHubID) {
		t.Errorf("error = %v, want ErrReservedHubID", err)
	}
}

func TestDecoder_DecodeByte(t *testing.T) {
	d := NewDecoder()
	data := MustEncode(NewPortInfoRequest(1, PortInfoModeInfo))

	var msg Message
	for _, b := range data {
		m, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("DecodeByte error: %v", err)
		}
		if m != nil {
			msg = m
		}
	}
	req, ok := msg.(*PortInfoRequest)
	if !ok {
		t.Fatalf("decoded %T, want *PortInfoRequest", msg)
	}
	if req.Port != 1 || req.InfoType != PortInfoModeInfo {
		t.Errorf("decoded %+v", req)
	}
	if !bytes.Equal(d.GetRawBytes(), data) {
		t.Errorf("GetRawBytes() = % X, want % X", d.GetRawBytes(), data)
	}
}

func TestDecoder_DecodeErrorKeepsStream(t *testing.T) {
	d := NewDecoder()
	bad := []byte{0x03, 0x00, 0x99}
	good := MustEncode(NewHubAction(HubActionSwitchOff))

	var errs, msgs int
	for _, b := range append(bad, good...) {
		m, err := d.DecodeByte(b)
		if err != nil {
			errs++
			if !errors.Is(err, ErrUnknownType) {
				t.Errorf("error = %v, want ErrUnknownType", err)
			}
		}
		if m != nil {
			msgs++
		}
	}
	if errs != 1 || msgs != 1 {
		t.Errorf("errors=%d messages=%d, want 1 and 1", errs, msgs)
	}
}
