// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controlplus

import "encoding/binary"

// Command builder functions create messages ready for encoding.
// Output commands use DefaultStartupFlags: execute immediately and
// report completion with PORT_OUTPUT_COMMAND_FEEDBACK.

func defaultHeader(port uint8) OutputHeader {
	return OutputHeader{Port: port, Startup: DefaultStartupFlags}
}

// NewHubAction creates a HUB_ACTIONS message (0x02).
// HubActionShutdown asks the hub to power off.
func NewHubAction(action HubAction) *HubActions {
	return &HubActions{Action: action}
}

// NewPortInfoRequest creates a PORT_INFO_REQUEST message (0x21).
// The hub answers with PORT_INFO.
func NewPortInfoRequest(port uint8, infoType PortInfoType) *PortInfoRequest {
	return &PortInfoRequest{Port: port, InfoType: infoType}
}

// NewPortModeInfoRequest creates a PORT_MODE_INFO_REQUEST message (0x22).
// The hub answers with PORT_MODE_INFO.
func NewPortModeInfoRequest(port, mode uint8, infoType ModeInfoType) *PortModeInfoRequest {
	return &PortModeInfoRequest{Port: port, Mode: mode, InfoType: infoType}
}

// NewPortInputFormatSetup creates a PORT_INPUT_FORMAT_SETUP_SINGLE message (0x41).
// With notify set the hub sends PORT_VALUE_SINGLE whenever the value
// changes by at least delta.
func NewPortInputFormatSetup(port, mode uint8, delta uint32, notify bool) *PortInputFormatSetupSingle {
	return &PortInputFormatSetupSingle{InputFormat{
		Port:                port,
		Mode:                mode,
		DeltaInterval:       delta,
		NotificationEnabled: notify,
	}}
}

// NewStartPower creates a START_POWER output command.
func NewStartPower(port uint8, power1, power2 int8) *StartPower {
	return &StartPower{OutputHeader: defaultHeader(port), Power1: power1, Power2: power2}
}

// NewSetAccTime creates a SET_ACC_TIME output command.
func NewSetAccTime(port uint8, ms uint16, profile uint8) *SetAccTime {
	return &SetAccTime{ProfileTime{OutputHeader: defaultHeader(port), Time: ms, Profile: profile}}
}

// NewSetDecTime creates a SET_DEC_TIME output command.
func NewSetDecTime(port uint8, ms uint16, profile uint8) *SetDecTime {
	return &SetDecTime{ProfileTime{OutputHeader: defaultHeader(port), Time: ms, Profile: profile}}
}

// NewStartSpeed creates a START_SPEED output command.
// Speed is -100..100 percent; use 0 to stop.
func NewStartSpeed(port uint8, speed, maxPower int8, useProfile uint8) *StartSpeed {
	return &StartSpeed{
		OutputHeader: defaultHeader(port),
		Speed:        speed,
		MaxPower:     maxPower,
		UseProfile:   useProfile,
	}
}

// NewStartSpeedForTime creates a START_SPEED_FOR_TIME output command.
func NewStartSpeedForTime(port uint8, ms uint16, speed, maxPower int8, endState, useProfile uint8) *StartSpeedForTime {
	return &StartSpeedForTime{
		OutputHeader: defaultHeader(port),
		Time:         ms,
		Speed:        speed,
		MaxPower:     maxPower,
		EndState:     endState,
		UseProfile:   useProfile,
	}
}

// NewStartSpeedForDegrees creates a START_SPEED_FOR_DEGREES output command.
func NewStartSpeedForDegrees(port uint8, degrees int32, speed, maxPower int8, endState, useProfile uint8) *StartSpeedForDegrees {
	return &StartSpeedForDegrees{
		OutputHeader: defaultHeader(port),
		Degrees:      degrees,
		Speed:        speed,
		MaxPower:     maxPower,
		EndState:     endState,
		UseProfile:   useProfile,
	}
}

// NewGotoAbsolutePosition creates a GOTO_ABSOLUTE_POSITION output command.
// EndStateBrake holds the motor braked on arrival, EndStateHold keeps it
// actively holding the position.
func NewGotoAbsolutePosition(port uint8, position int32, speed, maxPower int8, endState uint8) *GotoAbsolutePosition {
	return &GotoAbsolutePosition{
		OutputHeader: defaultHeader(port),
		Position:     position,
		Speed:        speed,
		MaxPower:     maxPower,
		EndState:     endState,
		UseProfile:   ProfileNone,
	}
}

// NewPresetEncoder creates a PRESET_ENCODER output command (0x14).
func NewPresetEncoder(port uint8, position int32) *PresetEncoder {
	return &PresetEncoder{OutputHeader: defaultHeader(port), Position: position}
}

// NewWriteDirect creates a WRITE_DIRECT output command.
func NewWriteDirect(port uint8, payload []byte) *WriteDirect {
	return &WriteDirect{OutputHeader: defaultHeader(port), Payload: payload}
}

// NewWriteDirectModeData creates a WRITE_DIRECT_MODE_DATA output command.
func NewWriteDirectModeData(port, mode uint8, payload []byte) *WriteDirectModeData {
	return &WriteDirectModeData{OutputHeader: defaultHeader(port), Mode: mode, Payload: payload}
}

// NewMotorPower sets raw motor power through WRITE_DIRECT_MODE_DATA in
// ModePower. Power is -100..100; 0 floats the motor.
func NewMotorPower(port uint8, power int8) *WriteDirectModeData {
	return NewWriteDirectModeData(port, ModePower, []byte{uint8(power)})
}

// NewPositionPreset resets the relative encoder of a motor by writing the
// position to ModePosition. Hubs accept this on ports that reject
// PRESET_ENCODER.
func NewPositionPreset(port uint8, position int32) *WriteDirectModeData {
	payload := binary.LittleEndian.AppendUint32(nil, uint32(position))
	return NewWriteDirectModeData(port, ModePosition, payload)
}
