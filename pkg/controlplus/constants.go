// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package controlplus implements the LEGO Control+ (LWP3) hub wire protocol.
//
// A message on the wire is framed as [size][hub id][type][body...]. The size
// field is a single byte for messages up to 127 bytes, or two bytes with the
// high bit of the first byte set. This package provides message encoding and
// decoding, the catalog of supported message variants, command builders,
// stream framing and human-readable formatting.
package controlplus

// Frame layout
const (
	HubID           = 0x00 // Reserved hub id byte, always zero
	MinMessageSize  = 3    // size + hub id + type
	MaxShortSize    = 0x7F // Largest size that fits the single-byte size field
	MaxEncodedSize  = 0xFF // Largest message the encoder will produce
	MaxExtendedSize = 0x7FFF
	extendedSizeBit = 0x80
)

// MessageType is the type byte at offset 2 (or 3 with an extended size field).
type MessageType uint8

// Message types
const (
	MsgHubProperties                MessageType = 0x01
	MsgHubActions                   MessageType = 0x02
	MsgHubAlerts                    MessageType = 0x03
	MsgHubAttachedIO                MessageType = 0x04
	MsgGenericError                 MessageType = 0x05
	MsgHWNetworkCommands            MessageType = 0x06
	MsgFWUpdateGoIntoBootMode       MessageType = 0x10
	MsgFWUpdateLockMemory           MessageType = 0x11
	MsgFWUpdateLockStatusRequest    MessageType = 0x12
	MsgFWLockStatus                 MessageType = 0x13
	MsgPortInfoRequest              MessageType = 0x21
	MsgPortModeInfoRequest          MessageType = 0x22
	MsgPortInputFormatSetupSingle   MessageType = 0x41
	MsgPortInputFormatSetupCombined MessageType = 0x42
	MsgPortInfo                     MessageType = 0x43
	MsgPortModeInfo                 MessageType = 0x44
	MsgPortValueSingle              MessageType = 0x45
	MsgPortValueCombined            MessageType = 0x46
	MsgPortInputFormatSingle        MessageType = 0x47
	MsgPortInputFormatCombined      MessageType = 0x48
	MsgVirtualPortSetup             MessageType = 0x61
	MsgPortOutputCommand            MessageType = 0x81
	MsgPortOutputCommandFeedback    MessageType = 0x82
)

// IsKnownType reports whether b is one of the enumerated message types.
func IsKnownType(b uint8) bool {
	switch MessageType(b) {
	case MsgHubProperties, MsgHubActions, MsgHubAlerts, MsgHubAttachedIO,
		MsgGenericError, MsgHWNetworkCommands,
		MsgFWUpdateGoIntoBootMode, MsgFWUpdateLockMemory,
		MsgFWUpdateLockStatusRequest, MsgFWLockStatus,
		MsgPortInfoRequest, MsgPortModeInfoRequest,
		MsgPortInputFormatSetupSingle, MsgPortInputFormatSetupCombined,
		MsgPortInfo, MsgPortModeInfo, MsgPortValueSingle, MsgPortValueCombined,
		MsgPortInputFormatSingle, MsgPortInputFormatCombined,
		MsgVirtualPortSetup, MsgPortOutputCommand, MsgPortOutputCommandFeedback:
		return true
	}
	return false
}

// SubCommand selects the action inside a PortOutputCommand message.
type SubCommand uint8

// Output sub-commands
const (
	SubStartPower            SubCommand = 0x02
	SubSetAccTime            SubCommand = 0x05
	SubSetDecTime            SubCommand = 0x06
	SubStartSpeed            SubCommand = 0x07
	SubStartSpeed2           SubCommand = 0x08
	SubStartSpeedForTime     SubCommand = 0x09
	SubStartSpeedForTime2    SubCommand = 0x0A
	SubStartSpeedForDegrees  SubCommand = 0x0B
	SubStartSpeedForDegrees2 SubCommand = 0x0C
	SubGotoAbsolutePosition  SubCommand = 0x0D
	SubGotoAbsolutePosition2 SubCommand = 0x0E
	SubPresetEncoder         SubCommand = 0x14
	SubWriteDirect           SubCommand = 0x50
	SubWriteDirectModeData   SubCommand = 0x51
)

// Startup and completion flags for output commands
const (
	StartupBuffer       = 0x00
	StartupImmediate    = 0x10
	CompletionNoAction  = 0x00
	CompletionFeedback  = 0x01
	DefaultStartupFlags = StartupImmediate | CompletionFeedback
)

// HubAction is the action byte of a HubActions message.
type HubAction uint8

// Hub actions
const (
	HubActionSwitchOff         HubAction = 0x01
	HubActionDisconnect        HubAction = 0x02
	HubActionVCCPortControlOn  HubAction = 0x03
	HubActionVCCPortControlOff HubAction = 0x04
	HubActionActivateBusyInd   HubAction = 0x05
	HubActionResetBusyInd      HubAction = 0x06
	HubActionShutdown          HubAction = 0x2F
	HubActionWillSwitchOff     HubAction = 0x30
	HubActionWillDisconnect    HubAction = 0x31
	HubActionWillGoIntoBoot    HubAction = 0x32
)

// ErrorCode is the error code carried by a GenericError message.
type ErrorCode uint8

// Generic error codes
const (
	ErrorCodeACK                  ErrorCode = 0x01
	ErrorCodeMACK                 ErrorCode = 0x02
	ErrorCodeBufferOverflow       ErrorCode = 0x03
	ErrorCodeTimeout              ErrorCode = 0x04
	ErrorCodeCommandNotRecognized ErrorCode = 0x05
	ErrorCodeInvalidUse           ErrorCode = 0x06
	ErrorCodeOvercurrent          ErrorCode = 0x07
	ErrorCodeInternalError        ErrorCode = 0x08
)

// IOEvent is the event byte of a HubAttachedIO message.
type IOEvent uint8

// Attached IO events
const (
	IOEventDetached        IOEvent = 0x00
	IOEventAttached        IOEvent = 0x01
	IOEventAttachedVirtual IOEvent = 0x02
)

// IOType identifies the device attached to a port.
type IOType uint16

// IO type ids
const (
	IOTypeMotor              IOType = 0x0001
	IOTypeSystemTrainMotor   IOType = 0x0002
	IOTypeButton             IOType = 0x0005
	IOTypeLEDLight           IOType = 0x0008
	IOTypeVoltage            IOType = 0x0014
	IOTypeCurrent            IOType = 0x0015
	IOTypePiezoTone          IOType = 0x0016
	IOTypeRGBLight           IOType = 0x0017
	IOTypeExternalTiltSensor IOType = 0x0022
	IOTypeMotionSensor       IOType = 0x0023
	IOTypeVisionSensor       IOType = 0x0025
	IOTypeExternalMotorTacho IOType = 0x0026
	IOTypeInternalMotorTacho IOType = 0x0027
	IOTypeInternalTilt       IOType = 0x0028
)

// PortInfoType selects the reply of a PortInfoRequest.
type PortInfoType uint8

// Port information types
const (
	PortInfoValue                PortInfoType = 0x00
	PortInfoModeInfo             PortInfoType = 0x01
	PortInfoPossibleCombinations PortInfoType = 0x02
)

// ModeInfoType selects the reply of a PortModeInfoRequest.
type ModeInfoType uint8

// Port mode information types
const (
	ModeInfoName        ModeInfoType = 0x00
	ModeInfoRaw         ModeInfoType = 0x01
	ModeInfoPct         ModeInfoType = 0x02
	ModeInfoSI          ModeInfoType = 0x03
	ModeInfoSymbol      ModeInfoType = 0x04
	ModeInfoMapping     ModeInfoType = 0x05
	ModeInfoMotorBias   ModeInfoType = 0x07
	ModeInfoCapability  ModeInfoType = 0x08
	ModeInfoValueFormat ModeInfoType = 0x80
)

// Mode names and indexes used during port bring-up
const (
	ModeNameAbsolutePosition = "APOS"
	ModePower                = 0x00 // Direct power mode of Control+ motors
	ModePosition             = 0x02 // Relative encoder position mode
	MaxModeNameLength        = 11
	MaxSymbolLength          = 5
)

// End states for positional output commands
const (
	EndStateFloat = 0
	EndStateHold  = 126
	EndStateBrake = 127
)

// Profile flags for output commands
const (
	ProfileNone         = 0x00
	ProfileAcceleration = 0x01
	ProfileDeceleration = 0x02
)

// FeedbackStatus is the per-port status bitmask of a PortOutputCommandFeedback.
type FeedbackStatus uint8

// Feedback status bits
const (
	FeedbackBufferEmptyInProgress FeedbackStatus = 0x01
	FeedbackBufferEmptyComplete   FeedbackStatus = 0x02
	FeedbackCommandDiscarded      FeedbackStatus = 0x04
	FeedbackIdle                  FeedbackStatus = 0x08
	FeedbackBusyFull              FeedbackStatus = 0x10

	// Not listed by LEGO, but reported by hubs: complete and idle together.
	FeedbackBufferEmptyCompleteIdle = FeedbackBufferEmptyComplete | FeedbackIdle
)

// IsIdle reports whether the status carries the idle or completed bit and
// the port is not reporting a full buffer.
func (s FeedbackStatus) IsIdle() bool {
	return s&(FeedbackIdle|FeedbackBufferEmptyComplete) != 0 && s&FeedbackBusyFull == 0
}

// WordOrder controls how decoded 32-bit fields are assembled from two
// 16-bit halves. Encoded fields are always plain little-endian, which is
// what the hub expects.
type WordOrder int

const (
	// WordOrderHighFirst reads a 32-bit field as (first16 << 16) | second16,
	// each half little-endian.
	WordOrderHighFirst WordOrder = iota
	// WordOrderLittleEndian is plain little-endian.
	WordOrderLittleEndian
)
