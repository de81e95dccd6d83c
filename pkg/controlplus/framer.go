// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controlplus

import "fmt"

// Framer states
const (
	stateSize = iota
	stateSizeLow
	stateBody
)

// Framer splits a byte stream into messages using the size field.
// BLE notifications already carry whole messages; Framer is for byte
// streams such as a serial bridge or a capture replay.
type Framer struct {
	state  int
	size   int
	buffer []byte
}

// NewFramer creates a new stream framer
func NewFramer() *Framer {
	return &Framer{
		state:  stateSize,
		buffer: make([]byte, 0, MaxEncodedSize),
	}
}

// Reset discards any partial message
func (f *Framer) Reset() {
	f.state = stateSize
	f.size = 0
	f.buffer = f.buffer[:0]
}

// Pending returns the bytes of the partial message collected so far
func (f *Framer) Pending() []byte {
	return f.buffer
}

// PushByte feeds one byte into the framer.
// Returns a complete frame, or nil if the frame is incomplete.
// Returns an error and resynchronizes on an impossible size or a
// non-zero hub id byte.
func (f *Framer) PushByte(b byte) ([]byte, error) {
	f.buffer = append(f.buffer, b)

	switch f.state {
	case stateSize:
		if b&extendedSizeBit != 0 {
			f.state = stateSizeLow
			return nil, nil
		}
		if int(b) < MinMessageSize {
			f.Reset()
			return nil, fmt.Errorf("invalid size: %d (min %d)", b, MinMessageSize)
		}
		f.size = int(b)
		f.state = stateBody
		return nil, nil

	case stateSizeLow:
		f.size = int(f.buffer[0]&^extendedSizeBit)<<8 | int(b)
		if f.size < MinMessageSize+1 || f.size > MaxExtendedSize {
			size := f.size
			f.Reset()
			return nil, fmt.Errorf("invalid extended size: %d", size)
		}
		f.state = stateBody
		return nil, nil

	case stateBody:
		sizeLen := 1
		if f.buffer[0]&extendedSizeBit != 0 {
			sizeLen = 2
		}
		if len(f.buffer) == sizeLen+1 && b != HubID {
			f.Reset()
			return nil, fmt.Errorf("%w: 0x%02X", ErrReservedHubID, b)
		}
		if len(f.buffer) < f.size {
			return nil, nil
		}
		frame := append([]byte(nil), f.buffer...)
		f.Reset()
		return frame, nil

	default:
		f.Reset()
		return nil, fmt.Errorf("invalid state: %d", f.state)
	}
}

// Push feeds a chunk of bytes and returns every frame completed by it,
// plus any framing errors encountered along the way.
func (f *Framer) Push(data []byte) ([][]byte, []error) {
	var frames [][]byte
	var errs []error
	for _, b := range data {
		frame, err := f.PushByte(b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if frame != nil {
			frames = append(frames, frame)
		}
	}
	return frames, errs
}
