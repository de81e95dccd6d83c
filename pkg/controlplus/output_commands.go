// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controlplus

import "fmt"

// OutputHeader is the port and startup/completion byte shared by every
// PortOutputCommand sub-command.
type OutputHeader struct {
	Port    uint8
	Startup uint8
}

func (h *OutputHeader) Type() MessageType { return MsgPortOutputCommand }
func (h *OutputHeader) Ports() []uint8    { return []uint8{h.Port} }
func (h *OutputHeader) Header() OutputHeader {
	return *h
}

func (h *OutputHeader) decodeHeader(r *reader, want SubCommand) error {
	h.Port = r.u8()
	h.Startup = r.u8()
	if sub := SubCommand(r.u8()); r.err == nil && sub != want {
		return fmt.Errorf("%w: sub-command 0x%02X, want 0x%02X", ErrTypeMismatch, uint8(sub), uint8(want))
	}
	return nil
}

func (h *OutputHeader) encodeHeader(w *writer, sub SubCommand) {
	w.u8(h.Port)
	w.u8(h.Startup)
	w.u8(uint8(sub))
}

func (h *OutputHeader) headerFields() []field {
	return []field{
		kv("Port", "%d", h.Port),
		kv("Startup", "0x%02X", h.Startup),
	}
}

// StartPower drives a pair of motors at raw power.
type StartPower struct {
	OutputHeader
	Power1 int8
	Power2 int8
}

func (m *StartPower) SubCommand() SubCommand { return SubStartPower }
func (m *StartPower) String() string         { return formatInline(m) }

func (m *StartPower) decodeBody(r *reader, _ int) error {
	if err := m.decodeHeader(r, m.SubCommand()); err != nil {
		return err
	}
	m.Power1 = r.i8()
	m.Power2 = r.i8()
	return nil
}

func (m *StartPower) encodeBody(w *writer) error {
	m.encodeHeader(w, m.SubCommand())
	w.i8(m.Power1)
	w.i8(m.Power2)
	return nil
}

func (m *StartPower) describe() []field {
	return append(m.headerFields(), kv("Power1", "%d", m.Power1), kv("Power2", "%d", m.Power2))
}

// ProfileTime sets the acceleration or deceleration ramp time of a motor.
type ProfileTime struct {
	OutputHeader
	Time    uint16 // milliseconds
	Profile uint8
}

func (p *ProfileTime) decodeTime(r *reader, sub SubCommand) error {
	if err := p.decodeHeader(r, sub); err != nil {
		return err
	}
	p.Time = r.u16()
	p.Profile = r.u8()
	return nil
}

func (p *ProfileTime) encodeTime(w *writer, sub SubCommand) {
	p.encodeHeader(w, sub)
	w.u16(p.Time)
	w.u8(p.Profile)
}

func (p *ProfileTime) describe() []field {
	return append(p.headerFields(), kv("Time", "%d ms", p.Time), kv("Profile", "%d", p.Profile))
}

// SetAccTime sets the acceleration time.
type SetAccTime struct {
	ProfileTime
}

func (m *SetAccTime) SubCommand() SubCommand            { return SubSetAccTime }
func (m *SetAccTime) String() string                    { return formatInline(m) }
func (m *SetAccTime) decodeBody(r *reader, _ int) error { return m.decodeTime(r, m.SubCommand()) }
func (m *SetAccTime) encodeBody(w *writer) error {
	m.encodeTime(w, m.SubCommand())
	return nil
}

// SetDecTime sets the deceleration time.
type SetDecTime struct {
	ProfileTime
}

func (m *SetDecTime) SubCommand() SubCommand            { return SubSetDecTime }
func (m *SetDecTime) String() string                    { return formatInline(m) }
func (m *SetDecTime) decodeBody(r *reader, _ int) error { return m.decodeTime(r, m.SubCommand()) }
func (m *SetDecTime) encodeBody(w *writer) error {
	m.encodeTime(w, m.SubCommand())
	return nil
}

// StartSpeed runs a motor at a speed percentage until told otherwise.
type StartSpeed struct {
	OutputHeader
	Speed      int8
	MaxPower   int8
	UseProfile uint8
}

func (m *StartSpeed) SubCommand() SubCommand { return SubStartSpeed }
func (m *StartSpeed) String() string         { return formatInline(m) }

func (m *StartSpeed) decodeBody(r *reader, _ int) error {
	if err := m.decodeHeader(r, m.SubCommand()); err != nil {
		return err
	}
	m.Speed = r.i8()
	m.MaxPower = r.i8()
	m.UseProfile = r.u8()
	return nil
}

func (m *StartSpeed) encodeBody(w *writer) error {
	m.encodeHeader(w, m.SubCommand())
	w.i8(m.Speed)
	w.i8(m.MaxPower)
	w.u8(m.UseProfile)
	return nil
}

func (m *StartSpeed) describe() []field {
	return append(m.headerFields(),
		kv("Speed", "%d", m.Speed),
		kv("Max Power", "%d", m.MaxPower),
		kv("Profile", "%d", m.UseProfile))
}

// StartSpeedForTime runs a motor for a fixed time.
type StartSpeedForTime struct {
	OutputHeader
	Time       uint16 // milliseconds
	Speed      int8
	MaxPower   int8
	EndState   uint8
	UseProfile uint8
}

func (m *StartSpeedForTime) SubCommand() SubCommand { return SubStartSpeedForTime }
func (m *StartSpeedForTime) String() string         { return formatInline(m) }

func (m *StartSpeedForTime) decodeBody(r *reader, _ int) error {
	if err := m.decodeHeader(r, m.SubCommand()); err != nil {
		return err
	}
	m.Time = r.u16()
	m.Speed = r.i8()
	m.MaxPower = r.i8()
	m.EndState = r.u8()
	m.UseProfile = r.u8()
	return nil
}

func (m *StartSpeedForTime) encodeBody(w *writer) error {
	m.encodeHeader(w, m.SubCommand())
	w.u16(m.Time)
	w.i8(m.Speed)
	w.i8(m.MaxPower)
	w.u8(m.EndState)
	w.u8(m.UseProfile)
	return nil
}

func (m *StartSpeedForTime) describe() []field {
	return append(m.headerFields(),
		kv("Time", "%d ms", m.Time),
		kv("Speed", "%d", m.Speed),
		kv("Max Power", "%d", m.MaxPower),
		kv("End State", "%s", FormatEndState(m.EndState)),
		kv("Profile", "%d", m.UseProfile))
}

// StartSpeedForDegrees turns a motor through a number of degrees.
type StartSpeedForDegrees struct {
	OutputHeader
	Degrees    int32
	Speed      int8
	MaxPower   int8
	EndState   uint8
	UseProfile uint8
}

func (m *StartSpeedForDegrees) SubCommand() SubCommand { return SubStartSpeedForDegrees }
func (m *StartSpeedForDegrees) String() string         { return formatInline(m) }

func (m *StartSpeedForDegrees) decodeBody(r *reader, _ int) error {
	if err := m.decodeHeader(r, m.SubCommand()); err != nil {
		return err
	}
	m.Degrees = int32(r.u32())
	m.Speed = r.i8()
	m.MaxPower = r.i8()
	m.EndState = r.u8()
	m.UseProfile = r.u8()
	return nil
}

func (m *StartSpeedForDegrees) encodeBody(w *writer) error {
	m.encodeHeader(w, m.SubCommand())
	w.u32(uint32(m.Degrees))
	w.i8(m.Speed)
	w.i8(m.MaxPower)
	w.u8(m.EndState)
	w.u8(m.UseProfile)
	return nil
}

func (m *StartSpeedForDegrees) describe() []field {
	return append(m.headerFields(),
		kv("Degrees", "%d", m.Degrees),
		kv("Speed", "%d", m.Speed),
		kv("Max Power", "%d", m.MaxPower),
		kv("End State", "%s", FormatEndState(m.EndState)),
		kv("Profile", "%d", m.UseProfile))
}

// GotoAbsolutePosition moves a motor to an encoder position.
type GotoAbsolutePosition struct {
	OutputHeader
	Position   int32
	Speed      int8
	MaxPower   int8
	EndState   uint8
	UseProfile uint8
}

func (m *GotoAbsolutePosition) SubCommand() SubCommand { return SubGotoAbsolutePosition }
func (m *GotoAbsolutePosition) String() string         { return formatInline(m) }

func (m *GotoAbsolutePosition) decodeBody(r *reader, _ int) error {
	if err := m.decodeHeader(r, m.SubCommand()); err != nil {
		return err
	}
	m.Position = int32(r.u32())
	m.Speed = r.i8()
	m.MaxPower = r.i8()
	m.EndState = r.u8()
	m.UseProfile = r.u8()
	return nil
}

func (m *GotoAbsolutePosition) encodeBody(w *writer) error {
	m.encodeHeader(w, m.SubCommand())
	w.u32(uint32(m.Position))
	w.i8(m.Speed)
	w.i8(m.MaxPower)
	w.u8(m.EndState)
	w.u8(m.UseProfile)
	return nil
}

func (m *GotoAbsolutePosition) describe() []field {
	return append(m.headerFields(),
		kv("Position", "%d", m.Position),
		kv("Speed", "%d", m.Speed),
		kv("Max Power", "%d", m.MaxPower),
		kv("End State", "%s", FormatEndState(m.EndState)),
		kv("Profile", "%d", m.UseProfile))
}

// PresetEncoder sets the current encoder position of a motor.
type PresetEncoder struct {
	OutputHeader
	Position int32
}

func (m *PresetEncoder) SubCommand() SubCommand { return SubPresetEncoder }
func (m *PresetEncoder) String() string         { return formatInline(m) }

func (m *PresetEncoder) decodeBody(r *reader, _ int) error {
	if err := m.decodeHeader(r, m.SubCommand()); err != nil {
		return err
	}
	m.Position = int32(r.u32())
	return nil
}

func (m *PresetEncoder) encodeBody(w *writer) error {
	m.encodeHeader(w, m.SubCommand())
	w.u32(uint32(m.Position))
	return nil
}

func (m *PresetEncoder) describe() []field {
	return append(m.headerFields(), kv("Position", "%d", m.Position))
}

// WriteDirect writes raw bytes to a port.
type WriteDirect struct {
	OutputHeader
	Payload []byte
}

func (m *WriteDirect) SubCommand() SubCommand { return SubWriteDirect }
func (m *WriteDirect) String() string         { return formatInline(m) }

func (m *WriteDirect) decodeBody(r *reader, _ int) error {
	if err := m.decodeHeader(r, m.SubCommand()); err != nil {
		return err
	}
	m.Payload = r.rest()
	return nil
}

func (m *WriteDirect) encodeBody(w *writer) error {
	m.encodeHeader(w, m.SubCommand())
	w.raw(m.Payload)
	return nil
}

func (m *WriteDirect) describe() []field {
	return append(m.headerFields(), kv("Payload", "% X", m.Payload))
}

// WriteDirectModeData writes a value to a port in the given mode.
type WriteDirectModeData struct {
	OutputHeader
	Mode    uint8
	Payload []byte
}

func (m *WriteDirectModeData) SubCommand() SubCommand { return SubWriteDirectModeData }
func (m *WriteDirectModeData) String() string         { return formatInline(m) }

func (m *WriteDirectModeData) decodeBody(r *reader, _ int) error {
	if err := m.decodeHeader(r, m.SubCommand()); err != nil {
		return err
	}
	m.Mode = r.u8()
	m.Payload = r.rest()
	return nil
}

func (m *WriteDirectModeData) encodeBody(w *writer) error {
	m.encodeHeader(w, m.SubCommand())
	w.u8(m.Mode)
	w.raw(m.Payload)
	return nil
}

func (m *WriteDirectModeData) describe() []field {
	return append(m.headerFields(), kv("Mode", "%d", m.Mode), kv("Payload", "% X", m.Payload))
}
