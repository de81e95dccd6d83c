// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controlplus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Decode and encode errors
var (
	ErrTooShort      = errors.New("message too short")
	ErrSizeMismatch  = errors.New("size field does not match message length")
	ErrReservedHubID = errors.New("reserved hub id byte is not zero")
	ErrUnknownType   = errors.New("unknown message type")
	ErrUnsupported   = errors.New("unsupported message")
	ErrTypeMismatch  = errors.New("message type does not match variant")
	ErrTruncated     = errors.New("message body truncated")
	ErrTrailingBytes = errors.New("trailing bytes after message body")
	ErrTooLong       = errors.New("message too long to encode")
	ErrInvalidField  = errors.New("invalid field value")
)

// Codec encodes and decodes Control+ messages.
// The zero value uses WordOrderHighFirst. Encoding is always little-endian.
type Codec struct {
	WordOrder WordOrder
}

// DefaultCodec is used by the package-level Decode and Encode functions.
var DefaultCodec = Codec{WordOrder: WordOrderHighFirst}

// Decode parses one complete message using DefaultCodec.
func Decode(b []byte) (Message, error) {
	return DefaultCodec.Decode(b)
}

// Encode serializes a message using DefaultCodec.
func Encode(m Message) ([]byte, error) {
	return DefaultCodec.Encode(m)
}

// MustEncode serializes a message and panics on error.
// Use Encode for error handling.
func MustEncode(m Message) []byte {
	data, err := DefaultCodec.Encode(m)
	if err != nil {
		panic(fmt.Sprintf("controlplus: encode error: %v", err))
	}
	return data
}

// parseHeader returns the declared size and header length (1 or 2 size bytes).
func parseHeader(b []byte) (size int, sizeLen int, err error) {
	if len(b) < MinMessageSize {
		return 0, 0, fmt.Errorf("%w: %d bytes", ErrTooShort, len(b))
	}
	size = int(b[0])
	sizeLen = 1
	if b[0]&extendedSizeBit != 0 {
		if len(b) < MinMessageSize+1 {
			return 0, 0, fmt.Errorf("%w: %d bytes with extended size", ErrTooShort, len(b))
		}
		size = int(b[0]&^extendedSizeBit)<<8 | int(b[1])
		sizeLen = 2
	}
	return size, sizeLen, nil
}

// Decode parses one complete message. The buffer must hold exactly the number
// of bytes announced by the size field.
func (c Codec) Decode(b []byte) (Message, error) {
	size, sizeLen, err := parseHeader(b)
	if err != nil {
		return nil, err
	}
	if size != len(b) {
		return nil, fmt.Errorf("%w: size=%d, got %d bytes", ErrSizeMismatch, size, len(b))
	}
	if b[sizeLen] != HubID {
		return nil, fmt.Errorf("%w: 0x%02X", ErrReservedHubID, b[sizeLen])
	}

	typeByte := b[sizeLen+1]
	if !IsKnownType(typeByte) {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownType, typeByte)
	}
	msgType := MessageType(typeByte)

	key := catalogKey{typ: msgType}
	if msgType == MsgPortOutputCommand {
		// [size][hub][type][port][startup][sub]
		subOffset := sizeLen + 4
		if len(b) <= subOffset {
			return nil, fmt.Errorf("%w: output command without sub-command", ErrTooShort)
		}
		key.sub = SubCommand(b[subOffset])
	}

	ctor, ok := catalog[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, key)
	}
	m := ctor()
	if m.Type() != msgType {
		return nil, fmt.Errorf("%w: %s built for 0x%02X", ErrTypeMismatch, FormatMessageType(m.Type()), typeByte)
	}

	r := &reader{buf: b, pos: sizeLen + 2, order: c.WordOrder}
	if err := m.decodeBody(r, size); err != nil {
		return nil, fmt.Errorf("%s: %w", FormatMessageType(msgType), err)
	}
	if r.err != nil {
		return nil, fmt.Errorf("%s: %w", FormatMessageType(msgType), r.err)
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%s: %w: %d", FormatMessageType(msgType), ErrTrailingBytes, r.remaining())
	}
	return m, nil
}

// Encode serializes a message, computing the size field last.
// Messages longer than MaxShortSize use the two-byte size field.
func (c Codec) Encode(m Message) ([]byte, error) {
	w := &writer{buf: make([]byte, 0, 16)}
	if err := m.encodeBody(w); err != nil {
		return nil, fmt.Errorf("%s: %w", FormatMessageType(m.Type()), err)
	}

	total := len(w.buf) + MinMessageSize
	extended := total > MaxShortSize
	if extended {
		total++
	}
	if total > MaxEncodedSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLong, total, MaxEncodedSize)
	}

	out := make([]byte, 0, total)
	if extended {
		out = append(out, 0, 0)
	} else {
		out = append(out, 0)
	}
	out = append(out, HubID, byte(m.Type()))
	out = append(out, w.buf...)

	if extended {
		out[0] = byte(total>>8) | extendedSizeBit
		out[1] = byte(total)
	} else {
		out[0] = byte(total)
	}
	return out, nil
}

// reader walks a message body. Reads past the end set err and return zero
// values, so body decoders can read unconditionally and check once.
type reader struct {
	buf   []byte
	pos   int
	order WordOrder
	err   error
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	if r.pos >= len(r.buf) {
		r.err = ErrTruncated
		return 0
	}
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *reader) i8() int8 {
	return int8(r.u8())
}

func (r *reader) u16() uint16 {
	lo := r.u8()
	hi := r.u8()
	return uint16(hi)<<8 | uint16(lo)
}

func (r *reader) u32() uint32 {
	first := uint32(r.u16())
	second := uint32(r.u16())
	if r.order == WordOrderLittleEndian {
		return second<<16 | first
	}
	return first<<16 | second
}

func (r *reader) f32() float32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.remaining() < n {
		r.err = ErrTruncated
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

// rest consumes the remaining bytes. Returns nil when nothing is left.
func (r *reader) rest() []byte {
	if r.err != nil || r.remaining() == 0 {
		return nil
	}
	b := append([]byte(nil), r.buf[r.pos:]...)
	r.pos = len(r.buf)
	return b
}

// writer always emits plain little-endian. WordOrder only affects reads.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *writer) i8(v int8) {
	w.buf = append(w.buf, uint8(v))
}

func (w *writer) u16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *writer) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *writer) f32(v float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
}

func (w *writer) raw(b []byte) {
	w.buf = append(w.buf, b...)
}

func boolByte(v bool) uint8 {
	if v {
		return 1
	}
	return 0
}
