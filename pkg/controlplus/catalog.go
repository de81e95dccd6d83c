// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controlplus

import (
	"fmt"
	"sort"
)

// catalogKey identifies a variant. sub is only set for PortOutputCommand.
type catalogKey struct {
	typ MessageType
	sub SubCommand
}

func (k catalogKey) String() string {
	if k.typ == MsgPortOutputCommand {
		return fmt.Sprintf("%s (0x%02X) sub-command %s (0x%02X)",
			FormatMessageType(k.typ), uint8(k.typ), FormatSubCommand(k.sub), uint8(k.sub))
	}
	return fmt.Sprintf("%s (0x%02X)", FormatMessageType(k.typ), uint8(k.typ))
}

// catalog maps each supported (type, sub-command) pair to a constructor.
// Known types missing here decode as ErrUnsupported.
var catalog = map[catalogKey]func() Message{
	{typ: MsgHubActions}:                 func() Message { return &HubActions{} },
	{typ: MsgHubAttachedIO}:              func() Message { return &HubAttachedIO{} },
	{typ: MsgGenericError}:               func() Message { return &GenericError{} },
	{typ: MsgPortInfoRequest}:            func() Message { return &PortInfoRequest{} },
	{typ: MsgPortModeInfoRequest}:        func() Message { return &PortModeInfoRequest{} },
	{typ: MsgPortInputFormatSetupSingle}: func() Message { return &PortInputFormatSetupSingle{} },
	{typ: MsgPortInfo}:                   func() Message { return &PortInfo{} },
	{typ: MsgPortModeInfo}:               func() Message { return &PortModeInfo{} },
	{typ: MsgPortValueSingle}:            func() Message { return &PortValueSingle{} },
	{typ: MsgPortInputFormatSingle}:      func() Message { return &PortInputFormatSingle{} },
	{typ: MsgPortOutputCommandFeedback}:  func() Message { return &PortOutputCommandFeedback{} },

	{MsgPortOutputCommand, SubStartPower}:           func() Message { return &StartPower{} },
	{MsgPortOutputCommand, SubSetAccTime}:           func() Message { return &SetAccTime{} },
	{MsgPortOutputCommand, SubSetDecTime}:           func() Message { return &SetDecTime{} },
	{MsgPortOutputCommand, SubStartSpeed}:           func() Message { return &StartSpeed{} },
	{MsgPortOutputCommand, SubStartSpeedForTime}:    func() Message { return &StartSpeedForTime{} },
	{MsgPortOutputCommand, SubStartSpeedForDegrees}: func() Message { return &StartSpeedForDegrees{} },
	{MsgPortOutputCommand, SubGotoAbsolutePosition}: func() Message { return &GotoAbsolutePosition{} },
	{MsgPortOutputCommand, SubPresetEncoder}:        func() Message { return &PresetEncoder{} },
	{MsgPortOutputCommand, SubWriteDirect}:          func() Message { return &WriteDirect{} },
	{MsgPortOutputCommand, SubWriteDirectModeData}:  func() Message { return &WriteDirectModeData{} },
}

// IsSupported reports whether the catalog can decode the given type and
// sub-command. sub is ignored for types other than MsgPortOutputCommand.
func IsSupported(t MessageType, sub SubCommand) bool {
	if t != MsgPortOutputCommand {
		sub = 0
	}
	_, ok := catalog[catalogKey{typ: t, sub: sub}]
	return ok
}

// SupportedTypes returns the distinct message types in the catalog.
func SupportedTypes() []MessageType {
	seen := make(map[MessageType]bool)
	var types []MessageType
	for k := range catalog {
		if !seen[k.typ] {
			seen[k.typ] = true
			types = append(types, k.typ)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
