// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controlplus

// HubActions asks the hub to perform an action, or reports one it will take.
type HubActions struct {
	Action HubAction
}

func (m *HubActions) Type() MessageType { return MsgHubActions }
func (m *HubActions) Ports() []uint8    { return nil }
func (m *HubActions) String() string    { return formatInline(m) }

func (m *HubActions) decodeBody(r *reader, _ int) error {
	m.Action = HubAction(r.u8())
	return nil
}

func (m *HubActions) encodeBody(w *writer) error {
	w.u8(uint8(m.Action))
	return nil
}

func (m *HubActions) describe() []field {
	return []field{kv("Action", "%s (0x%02X)", FormatHubAction(m.Action), uint8(m.Action))}
}

// GenericError reports that the hub rejected or failed a command.
type GenericError struct {
	Command MessageType
	Code    ErrorCode
}

func (m *GenericError) Type() MessageType { return MsgGenericError }
func (m *GenericError) Ports() []uint8    { return nil }
func (m *GenericError) String() string    { return formatInline(m) }

func (m *GenericError) decodeBody(r *reader, _ int) error {
	m.Command = MessageType(r.u8())
	m.Code = ErrorCode(r.u8())
	return nil
}

func (m *GenericError) encodeBody(w *writer) error {
	w.u8(uint8(m.Command))
	w.u8(uint8(m.Code))
	return nil
}

func (m *GenericError) describe() []field {
	return []field{
		kv("Command", "%s (0x%02X)", FormatMessageType(m.Command), uint8(m.Command)),
		kv("Code", "%s (0x%02X)", FormatErrorCode(m.Code), uint8(m.Code)),
	}
}

// HubAttachedIO reports a device attached to or detached from a port.
//
// Attached events carry the IO type and the hardware and software revisions.
// Virtual attach events carry the IO type and the two member ports.
// Detach events carry nothing beyond the port and event.
type HubAttachedIO struct {
	Port        uint8
	Event       IOEvent
	IOType      IOType
	HardwareRev uint32
	SoftwareRev uint32
	PortA       uint8
	PortB       uint8
}

func (m *HubAttachedIO) Type() MessageType { return MsgHubAttachedIO }
func (m *HubAttachedIO) Ports() []uint8    { return []uint8{m.Port} }
func (m *HubAttachedIO) String() string    { return formatInline(m) }

func (m *HubAttachedIO) decodeBody(r *reader, _ int) error {
	m.Port = r.u8()
	m.Event = IOEvent(r.u8())
	switch m.Event {
	case IOEventAttached:
		m.IOType = IOType(r.u16())
		m.HardwareRev = r.u32()
		m.SoftwareRev = r.u32()
	case IOEventAttachedVirtual:
		m.IOType = IOType(r.u16())
		m.PortA = r.u8()
		m.PortB = r.u8()
	}
	return nil
}

func (m *HubAttachedIO) encodeBody(w *writer) error {
	w.u8(m.Port)
	w.u8(uint8(m.Event))
	switch m.Event {
	case IOEventAttached:
		w.u16(uint16(m.IOType))
		w.u32(m.HardwareRev)
		w.u32(m.SoftwareRev)
	case IOEventAttachedVirtual:
		w.u16(uint16(m.IOType))
		w.u8(m.PortA)
		w.u8(m.PortB)
	}
	return nil
}

func (m *HubAttachedIO) describe() []field {
	fields := []field{
		kv("Port", "%d", m.Port),
		kv("Event", "%s", FormatIOEvent(m.Event)),
	}
	switch m.Event {
	case IOEventAttached:
		fields = append(fields,
			kv("IO Type", "%s (0x%04X)", FormatIOType(m.IOType), uint16(m.IOType)),
			kv("HW", "%s", FormatVersion(m.HardwareRev)),
			kv("SW", "%s", FormatVersion(m.SoftwareRev)),
		)
	case IOEventAttachedVirtual:
		fields = append(fields,
			kv("IO Type", "%s (0x%04X)", FormatIOType(m.IOType), uint16(m.IOType)),
			kv("Port A", "%d", m.PortA),
			kv("Port B", "%d", m.PortB),
		)
	}
	return fields
}
