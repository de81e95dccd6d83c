// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controlplus

import (
	"bytes"
	"fmt"
)

// PortInfoRequest asks the hub for information about a port.
type PortInfoRequest struct {
	Port     uint8
	InfoType PortInfoType
}

func (m *PortInfoRequest) Type() MessageType { return MsgPortInfoRequest }
func (m *PortInfoRequest) Ports() []uint8    { return []uint8{m.Port} }
func (m *PortInfoRequest) String() string    { return formatInline(m) }

func (m *PortInfoRequest) decodeBody(r *reader, _ int) error {
	m.Port = r.u8()
	m.InfoType = PortInfoType(r.u8())
	return nil
}

func (m *PortInfoRequest) encodeBody(w *writer) error {
	w.u8(m.Port)
	w.u8(uint8(m.InfoType))
	return nil
}

func (m *PortInfoRequest) describe() []field {
	return []field{
		kv("Port", "%d", m.Port),
		kv("Info", "%s", FormatPortInfoType(m.InfoType)),
	}
}

// PortModeInfoRequest asks the hub for information about one mode of a port.
type PortModeInfoRequest struct {
	Port     uint8
	Mode     uint8
	InfoType ModeInfoType
}

func (m *PortModeInfoRequest) Type() MessageType { return MsgPortModeInfoRequest }
func (m *PortModeInfoRequest) Ports() []uint8    { return []uint8{m.Port} }
func (m *PortModeInfoRequest) String() string    { return formatInline(m) }

func (m *PortModeInfoRequest) decodeBody(r *reader, _ int) error {
	m.Port = r.u8()
	m.Mode = r.u8()
	m.InfoType = ModeInfoType(r.u8())
	return nil
}

func (m *PortModeInfoRequest) encodeBody(w *writer) error {
	w.u8(m.Port)
	w.u8(m.Mode)
	w.u8(uint8(m.InfoType))
	return nil
}

func (m *PortModeInfoRequest) describe() []field {
	return []field{
		kv("Port", "%d", m.Port),
		kv("Mode", "%d", m.Mode),
		kv("Info", "%s", FormatModeInfoType(m.InfoType)),
	}
}

// InputFormat is the body shared by PortInputFormatSetupSingle and
// PortInputFormatSingle.
type InputFormat struct {
	Port                uint8
	Mode                uint8
	DeltaInterval       uint32
	NotificationEnabled bool
}

func (p *InputFormat) Ports() []uint8 { return []uint8{p.Port} }

func (p *InputFormat) decodeBody(r *reader, _ int) error {
	p.Port = r.u8()
	p.Mode = r.u8()
	p.DeltaInterval = r.u32()
	p.NotificationEnabled = r.u8() != 0
	return nil
}

func (p *InputFormat) encodeBody(w *writer) error {
	w.u8(p.Port)
	w.u8(p.Mode)
	w.u32(p.DeltaInterval)
	w.u8(boolByte(p.NotificationEnabled))
	return nil
}

func (p *InputFormat) describe() []field {
	return []field{
		kv("Port", "%d", p.Port),
		kv("Mode", "%d", p.Mode),
		kv("Delta", "%d", p.DeltaInterval),
		kv("Notify", "%t", p.NotificationEnabled),
	}
}

// PortInputFormatSetupSingle selects the mode a port reports values in.
type PortInputFormatSetupSingle struct {
	InputFormat
}

func (m *PortInputFormatSetupSingle) Type() MessageType { return MsgPortInputFormatSetupSingle }
func (m *PortInputFormatSetupSingle) String() string    { return formatInline(m) }

// PortInputFormatSingle acknowledges a PortInputFormatSetupSingle.
type PortInputFormatSingle struct {
	InputFormat
}

func (m *PortInputFormatSingle) Type() MessageType { return MsgPortInputFormatSingle }
func (m *PortInputFormatSingle) String() string    { return formatInline(m) }

// Port capability bits reported in PortInfo
const (
	CapabilityOutput                = 0x01
	CapabilityInput                 = 0x02
	CapabilityLogicalCombinable     = 0x04
	CapabilityLogicalSynchronizable = 0x08
)

// PortInfo answers a PortInfoRequest.
//
// For PortInfoModeInfo the capability, mode count and mode bitmasks are set.
// For PortInfoPossibleCombinations only Combinations is set.
type PortInfo struct {
	Port         uint8
	InfoType     PortInfoType
	Capabilities uint8
	ModeCount    uint8
	InputModes   uint16
	OutputModes  uint16
	Combinations []uint16
}

func (m *PortInfo) Type() MessageType { return MsgPortInfo }
func (m *PortInfo) Ports() []uint8    { return []uint8{m.Port} }
func (m *PortInfo) String() string    { return formatInline(m) }

// IsOutput reports whether the port accepts output commands.
func (m *PortInfo) IsOutput() bool { return m.Capabilities&CapabilityOutput != 0 }

// IsInput reports whether the port produces values.
func (m *PortInfo) IsInput() bool { return m.Capabilities&CapabilityInput != 0 }

func (m *PortInfo) decodeBody(r *reader, _ int) error {
	m.Port = r.u8()
	m.InfoType = PortInfoType(r.u8())
	switch m.InfoType {
	case PortInfoModeInfo:
		m.Capabilities = r.u8()
		m.ModeCount = r.u8()
		m.InputModes = r.u16()
		m.OutputModes = r.u16()
	case PortInfoPossibleCombinations:
		if r.remaining()%2 != 0 {
			return fmt.Errorf("%w: odd combination length %d", ErrTruncated, r.remaining())
		}
		for r.remaining() > 0 {
			m.Combinations = append(m.Combinations, r.u16())
		}
	default:
		return fmt.Errorf("%w: port info type 0x%02X", ErrUnsupported, uint8(m.InfoType))
	}
	return nil
}

func (m *PortInfo) encodeBody(w *writer) error {
	w.u8(m.Port)
	w.u8(uint8(m.InfoType))
	switch m.InfoType {
	case PortInfoModeInfo:
		w.u8(m.Capabilities)
		w.u8(m.ModeCount)
		w.u16(m.InputModes)
		w.u16(m.OutputModes)
	case PortInfoPossibleCombinations:
		for _, c := range m.Combinations {
			w.u16(c)
		}
	default:
		return fmt.Errorf("%w: port info type 0x%02X", ErrUnsupported, uint8(m.InfoType))
	}
	return nil
}

func (m *PortInfo) describe() []field {
	fields := []field{
		kv("Port", "%d", m.Port),
		kv("Info", "%s", FormatPortInfoType(m.InfoType)),
	}
	if m.InfoType == PortInfoPossibleCombinations {
		return append(fields, kv("Combinations", "%04X", m.Combinations))
	}
	return append(fields,
		kv("Capabilities", "0x%02X", m.Capabilities),
		kv("Modes", "%d", m.ModeCount),
		kv("Input", "0x%04X", m.InputModes),
		kv("Output", "0x%04X", m.OutputModes),
	)
}

// ValueFormat describes how a mode encodes its values.
type ValueFormat struct {
	Datasets uint8
	Format   uint8 // 0 = int8, 1 = int16, 2 = int32, 3 = float
	Figures  uint8
	Decimals uint8
}

// PortModeInfo answers a PortModeInfoRequest. Which fields are set depends
// on InfoType.
type PortModeInfo struct {
	Port     uint8
	Mode     uint8
	InfoType ModeInfoType

	Name          string      // ModeInfoName
	Min, Max      float32     // ModeInfoRaw, ModeInfoPct, ModeInfoSI
	Symbol        string      // ModeInfoSymbol
	InputMapping  uint8       // ModeInfoMapping
	OutputMapping uint8       // ModeInfoMapping
	MotorBias     uint8       // ModeInfoMotorBias
	Capability    [6]byte     // ModeInfoCapability
	ValueFormat   ValueFormat // ModeInfoValueFormat
}

func (m *PortModeInfo) Type() MessageType { return MsgPortModeInfo }
func (m *PortModeInfo) Ports() []uint8    { return []uint8{m.Port} }
func (m *PortModeInfo) String() string    { return formatInline(m) }

func (m *PortModeInfo) decodeBody(r *reader, _ int) error {
	m.Port = r.u8()
	m.Mode = r.u8()
	m.InfoType = ModeInfoType(r.u8())
	switch m.InfoType {
	case ModeInfoName:
		m.Name = trimNUL(r.rest())
	case ModeInfoRaw, ModeInfoPct, ModeInfoSI:
		m.Min = r.f32()
		m.Max = r.f32()
	case ModeInfoSymbol:
		rest := r.rest()
		if len(rest) > MaxSymbolLength {
			return fmt.Errorf("%w: symbol length %d", ErrInvalidField, len(rest))
		}
		m.Symbol = trimNUL(rest)
	case ModeInfoMapping:
		m.InputMapping = r.u8()
		m.OutputMapping = r.u8()
	case ModeInfoMotorBias:
		m.MotorBias = r.u8()
	case ModeInfoCapability:
		copy(m.Capability[:], r.bytes(len(m.Capability)))
	case ModeInfoValueFormat:
		m.ValueFormat.Datasets = r.u8()
		m.ValueFormat.Format = r.u8()
		m.ValueFormat.Figures = r.u8()
		m.ValueFormat.Decimals = r.u8()
	default:
		return fmt.Errorf("%w: mode info type 0x%02X", ErrUnsupported, uint8(m.InfoType))
	}
	return nil
}

func (m *PortModeInfo) encodeBody(w *writer) error {
	w.u8(m.Port)
	w.u8(m.Mode)
	w.u8(uint8(m.InfoType))
	switch m.InfoType {
	case ModeInfoName:
		w.raw([]byte(m.Name))
	case ModeInfoRaw, ModeInfoPct, ModeInfoSI:
		w.f32(m.Min)
		w.f32(m.Max)
	case ModeInfoSymbol:
		if len(m.Symbol) > MaxSymbolLength {
			return fmt.Errorf("%w: symbol length %d", ErrInvalidField, len(m.Symbol))
		}
		w.raw([]byte(m.Symbol))
	case ModeInfoMapping:
		w.u8(m.InputMapping)
		w.u8(m.OutputMapping)
	case ModeInfoMotorBias:
		w.u8(m.MotorBias)
	case ModeInfoCapability:
		w.raw(m.Capability[:])
	case ModeInfoValueFormat:
		w.u8(m.ValueFormat.Datasets)
		w.u8(m.ValueFormat.Format)
		w.u8(m.ValueFormat.Figures)
		w.u8(m.ValueFormat.Decimals)
	default:
		return fmt.Errorf("%w: mode info type 0x%02X", ErrUnsupported, uint8(m.InfoType))
	}
	return nil
}

func (m *PortModeInfo) describe() []field {
	fields := []field{
		kv("Port", "%d", m.Port),
		kv("Mode", "%d", m.Mode),
		kv("Info", "%s", FormatModeInfoType(m.InfoType)),
	}
	switch m.InfoType {
	case ModeInfoName:
		fields = append(fields, kv("Name", "%q", m.Name))
	case ModeInfoRaw, ModeInfoPct, ModeInfoSI:
		fields = append(fields, kv("Min", "%g", m.Min), kv("Max", "%g", m.Max))
	case ModeInfoSymbol:
		fields = append(fields, kv("Symbol", "%q", m.Symbol))
	case ModeInfoMapping:
		fields = append(fields,
			kv("Input Mapping", "0x%02X", m.InputMapping),
			kv("Output Mapping", "0x%02X", m.OutputMapping))
	case ModeInfoMotorBias:
		fields = append(fields, kv("Bias", "%d", m.MotorBias))
	case ModeInfoCapability:
		fields = append(fields, kv("Capability", "% X", m.Capability[:]))
	case ModeInfoValueFormat:
		fields = append(fields, kv("Format", "datasets=%d type=%d figures=%d decimals=%d",
			m.ValueFormat.Datasets, m.ValueFormat.Format, m.ValueFormat.Figures, m.ValueFormat.Decimals))
	}
	return fields
}

func trimNUL(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// PortValueSingle reports the current value of a port in its selected mode.
//
// The value width follows from the message size: 1, 2 or 4 bytes, all
// signed. Width records the decoded width so the message encodes back to
// the same bytes. A zero Width encodes with the smallest width that fits.
type PortValueSingle struct {
	Port  uint8
	Value int32
	Width int
}

func (m *PortValueSingle) Type() MessageType { return MsgPortValueSingle }
func (m *PortValueSingle) Ports() []uint8    { return []uint8{m.Port} }
func (m *PortValueSingle) String() string    { return formatInline(m) }

func (m *PortValueSingle) decodeBody(r *reader, size int) error {
	m.Port = r.u8()
	width := r.remaining()
	switch width {
	case 1:
		m.Value = int32(r.i8())
	case 2:
		m.Value = int32(int16(r.u16()))
	case 4:
		m.Value = int32(r.u32())
	default:
		return fmt.Errorf("%w: port value in %d byte message", ErrSizeMismatch, size)
	}
	m.Width = width
	return nil
}

func (m *PortValueSingle) encodeBody(w *writer) error {
	w.u8(m.Port)
	switch m.encodedWidth() {
	case 1:
		w.i8(int8(m.Value))
	case 2:
		w.u16(uint16(int16(m.Value)))
	case 4:
		w.u32(uint32(m.Value))
	default:
		return fmt.Errorf("%w: port value width %d", ErrInvalidField, m.Width)
	}
	return nil
}

func (m *PortValueSingle) encodedWidth() int {
	if m.Width != 0 {
		return m.Width
	}
	switch {
	case m.Value >= -128 && m.Value <= 127:
		return 1
	case m.Value >= -32768 && m.Value <= 32767:
		return 2
	default:
		return 4
	}
}

func (m *PortValueSingle) describe() []field {
	return []field{
		kv("Port", "%d", m.Port),
		kv("Value", "%d", m.Value),
	}
}
