// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture reads and writes recordings of raw Control+ frames.
//
// A capture is a CBOR sequence: one Header item followed by any number of
// Record items, each holding a single frame as it crossed the link.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Format identifies hubpad capture files
const (
	Format  = "hubpad-capture"
	Version = 1
)

// ErrBadHeader is returned when a stream does not start with a capture header
var ErrBadHeader = errors.New("not a hubpad capture")

// Direction tells which way a frame travelled
type Direction uint8

const (
	Inbound  Direction = 1 // hub -> host
	Outbound Direction = 2 // host -> hub
)

func (d Direction) String() string {
	switch d {
	case Inbound:
		return "IN"
	case Outbound:
		return "OUT"
	default:
		return fmt.Sprintf("DIR(%d)", uint8(d))
	}
}

// Header is the first item of a capture
type Header struct {
	Format  string    `cbor:"1,keyasint"`
	Version uint      `cbor:"2,keyasint"`
	Created time.Time `cbor:"3,keyasint"`
	Source  string    `cbor:"4,keyasint,omitempty"`
}

// Record is one captured frame
type Record struct {
	Time      time.Time `cbor:"1,keyasint"`
	Direction Direction `cbor:"2,keyasint"`
	Frame     []byte    `cbor:"3,keyasint"`
}

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor options: %v", err))
	}
	return em
}

// Writer appends records to a capture. Safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	enc *cbor.Encoder
}

// NewWriter writes the capture header to w and returns a Writer for the
// records that follow.
func NewWriter(w io.Writer, source string) (*Writer, error) {
	enc := encMode.NewEncoder(w)
	header := Header{
		Format:  Format,
		Version: Version,
		Created: time.Now(),
		Source:  source,
	}
	if err := enc.Encode(header); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return &Writer{enc: enc}, nil
}

// Write appends one record
func (w *Writer) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to write capture record: %w", err)
	}
	return nil
}

// Tap records a frame with the current time. Its signature matches the
// session frame tap; errors are dropped.
func (w *Writer) Tap(dir Direction, frame []byte) {
	_ = w.Write(Record{
		Time:      time.Now(),
		Direction: dir,
		Frame:     append([]byte(nil), frame...),
	})
}

// Reader iterates over the records of a capture
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads and checks the capture header
func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(r)
	var header Header
	if err := dec.Decode(&header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrBadHeader)
		}
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if header.Format != Format {
		return nil, fmt.Errorf("%w: format %q", ErrBadHeader, header.Format)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("unsupported capture version %d", header.Version)
	}
	return &Reader{dec: dec, header: header}, nil
}

// Header returns the capture header
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record, or io.EOF at the end of the capture
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to read capture record: %w", err)
	}
	return rec, nil
}
