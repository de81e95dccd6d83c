// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controlplus

import (
	"fmt"
	"strings"
)

// Message is one decoded Control+ message variant.
//
// The set of variants is closed: only types in this package implement
// Message. Use a type switch to inspect a decoded message.
type Message interface {
	// Type returns the message type byte
	Type() MessageType
	// Ports returns the port ids this message refers to, if any
	Ports() []uint8
	String() string

	decodeBody(r *reader, size int) error
	encodeBody(w *writer) error
	describe() []field
}

// OutputCommand is a PortOutputCommand variant.
type OutputCommand interface {
	Message
	SubCommand() SubCommand
	Header() OutputHeader
}

// field is one labelled value used by the formatters
type field struct {
	name  string
	value string
}

func kv(name string, format string, args ...interface{}) field {
	return field{name: name, value: fmt.Sprintf(format, args...)}
}

// formatInline renders a message on one line: TYPE key=value ...
func formatInline(m Message) string {
	var sb strings.Builder
	sb.WriteString(messageName(m))
	for _, fl := range m.describe() {
		sb.WriteByte(' ')
		sb.WriteString(strings.ToLower(strings.ReplaceAll(fl.name, " ", "_")))
		sb.WriteByte('=')
		sb.WriteString(fl.value)
	}
	return sb.String()
}

// messageName is the message type name, with the sub-command appended for
// output commands.
func messageName(m Message) string {
	if oc, ok := m.(OutputCommand); ok {
		return FormatMessageType(m.Type()) + "/" + FormatSubCommand(oc.SubCommand())
	}
	return FormatMessageType(m.Type())
}
