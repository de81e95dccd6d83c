// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controlplus

import "fmt"

// MaxFeedbackEntries is the most ports one feedback message reports.
const MaxFeedbackEntries = 3

// FeedbackEntry is the status of one port.
type FeedbackEntry struct {
	Port   uint8
	Status FeedbackStatus
}

// PortOutputCommandFeedback reports the command buffer status of up to
// three ports.
type PortOutputCommandFeedback struct {
	Entries []FeedbackEntry
}

func (m *PortOutputCommandFeedback) Type() MessageType { return MsgPortOutputCommandFeedback }
func (m *PortOutputCommandFeedback) String() string    { return formatInline(m) }

func (m *PortOutputCommandFeedback) Ports() []uint8 {
	ports := make([]uint8, 0, len(m.Entries))
	for _, e := range m.Entries {
		ports = append(ports, e.Port)
	}
	return ports
}

// Status returns the status reported for port.
func (m *PortOutputCommandFeedback) Status(port uint8) (FeedbackStatus, bool) {
	for _, e := range m.Entries {
		if e.Port == port {
			return e.Status, true
		}
	}
	return 0, false
}

func (m *PortOutputCommandFeedback) decodeBody(r *reader, _ int) error {
	if r.remaining() == 0 || r.remaining()%2 != 0 {
		return fmt.Errorf("%w: %d feedback bytes", ErrTruncated, r.remaining())
	}
	for r.remaining() > 0 && len(m.Entries) < MaxFeedbackEntries {
		port := r.u8()
		status := FeedbackStatus(r.u8())
		m.Entries = append(m.Entries, FeedbackEntry{Port: port, Status: status})
	}
	return nil
}

func (m *PortOutputCommandFeedback) encodeBody(w *writer) error {
	if len(m.Entries) == 0 || len(m.Entries) > MaxFeedbackEntries {
		return fmt.Errorf("%w: %d feedback entries", ErrInvalidField, len(m.Entries))
	}
	for _, e := range m.Entries {
		w.u8(e.Port)
		w.u8(uint8(e.Status))
	}
	return nil
}

func (m *PortOutputCommandFeedback) describe() []field {
	fields := make([]field, 0, len(m.Entries))
	for _, e := range m.Entries {
		fields = append(fields, kv(fmt.Sprintf("Port %d", e.Port), "%s", FormatFeedbackStatus(e.Status)))
	}
	return fields
}
