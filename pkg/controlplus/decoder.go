// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controlplus

// Decoder turns a byte stream into messages
type Decoder struct {
	framer   *Framer
	codec    Codec
	rawFrame []byte
}

// NewDecoder creates a new stream decoder using DefaultCodec
func NewDecoder() *Decoder {
	return NewDecoderWithCodec(DefaultCodec)
}

// NewDecoderWithCodec creates a new stream decoder using the given codec
func NewDecoderWithCodec(codec Codec) *Decoder {
	return &Decoder{
		framer: NewFramer(),
		codec:  codec,
	}
}

// Reset discards any partial message
func (d *Decoder) Reset() {
	d.framer.Reset()
	d.rawFrame = nil
}

// GetRawBytes returns the frame completed by the last DecodeByte call,
// or the partial frame collected so far
func (d *Decoder) GetRawBytes() []byte {
	if d.rawFrame != nil {
		return d.rawFrame
	}
	return d.framer.Pending()
}

// DecodeByte processes a single byte.
// Returns a decoded message, or nil if the frame is incomplete.
// Returns an error if framing or decoding fails.
func (d *Decoder) DecodeByte(b byte) (Message, error) {
	d.rawFrame = nil
	frame, err := d.framer.PushByte(b)
	if err != nil || frame == nil {
		return nil, err
	}
	d.rawFrame = frame
	return d.codec.Decode(frame)
}
