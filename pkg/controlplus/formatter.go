// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controlplus

import (
	"fmt"
	"strings"
	"time"
)

// FormatMessage formats a message into a human-readable multi-line string
func FormatMessage(m Message, timestamp time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s (0x%02X)", timestamp.Format("15:04:05.000"), messageName(m), uint8(m.Type()))
	if ports := m.Ports(); len(ports) > 0 {
		fmt.Fprintf(&sb, " ports=%v", ports)
	}
	sb.WriteByte('\n')

	fields := m.describe()
	if len(fields) == 0 {
		sb.WriteString("  (no fields)\n")
	}
	for _, fl := range fields {
		fmt.Fprintf(&sb, "  %s: %s\n", fl.name, fl.value)
	}
	return sb.String()
}

// FormatFrame returns the bytes of a raw frame as space separated hex
func FormatFrame(frame []byte) string {
	return fmt.Sprintf("% X", frame)
}

// FormatMessageType returns the human-readable name for a message type
func FormatMessageType(msgType MessageType) string {
	switch msgType {
	// Hub related (0x01-0x13)
	case MsgHubProperties:
		return "HUB_PROPERTIES"
	case MsgHubActions:
		return "HUB_ACTIONS"
	case MsgHubAlerts:
		return "HUB_ALERTS"
	case MsgHubAttachedIO:
		return "HUB_ATTACHED_IO"
	case MsgGenericError:
		return "GENERIC_ERROR"
	case MsgHWNetworkCommands:
		return "HW_NETWORK_COMMANDS"
	case MsgFWUpdateGoIntoBootMode:
		return "FW_UPDATE_GO_INTO_BOOT_MODE"
	case MsgFWUpdateLockMemory:
		return "FW_UPDATE_LOCK_MEMORY"
	case MsgFWUpdateLockStatusRequest:
		return "FW_UPDATE_LOCK_STATUS_REQUEST"
	case MsgFWLockStatus:
		return "FW_LOCK_STATUS"

	// Port information (0x21-0x22)
	case MsgPortInfoRequest:
		return "PORT_INFO_REQUEST"
	case MsgPortModeInfoRequest:
		return "PORT_MODE_INFO_REQUEST"

	// Port input (0x41-0x48)
	case MsgPortInputFormatSetupSingle:
		return "PORT_INPUT_FORMAT_SETUP_SINGLE"
	case MsgPortInputFormatSetupCombined:
		return "PORT_INPUT_FORMAT_SETUP_COMBINED"
	case MsgPortInfo:
		return "PORT_INFO"
	case MsgPortModeInfo:
		return "PORT_MODE_INFO"
	case MsgPortValueSingle:
		return "PORT_VALUE_SINGLE"
	case MsgPortValueCombined:
		return "PORT_VALUE_COMBINED"
	case MsgPortInputFormatSingle:
		return "PORT_INPUT_FORMAT_SINGLE"
	case MsgPortInputFormatCombined:
		return "PORT_INPUT_FORMAT_COMBINED"

	// Virtual ports and output (0x61-0x82)
	case MsgVirtualPortSetup:
		return "VIRTUAL_PORT_SETUP"
	case MsgPortOutputCommand:
		return "PORT_OUTPUT_COMMAND"
	case MsgPortOutputCommandFeedback:
		return "PORT_OUTPUT_COMMAND_FEEDBACK"

	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", uint8(msgType))
	}
}

// FormatSubCommand returns the human-readable name for an output sub-command
func FormatSubCommand(sub SubCommand) string {
	switch sub {
	case SubStartPower:
		return "START_POWER"
	case SubSetAccTime:
		return "SET_ACC_TIME"
	case SubSetDecTime:
		return "SET_DEC_TIME"
	case SubStartSpeed:
		return "START_SPEED"
	case SubStartSpeed2:
		return "START_SPEED_2"
	case SubStartSpeedForTime:
		return "START_SPEED_FOR_TIME"
	case SubStartSpeedForTime2:
		return "START_SPEED_FOR_TIME_2"
	case SubStartSpeedForDegrees:
		return "START_SPEED_FOR_DEGREES"
	case SubStartSpeedForDegrees2:
		return "START_SPEED_FOR_DEGREES_2"
	case SubGotoAbsolutePosition:
		return "GOTO_ABSOLUTE_POSITION"
	case SubGotoAbsolutePosition2:
		return "GOTO_ABSOLUTE_POSITION_2"
	case SubPresetEncoder:
		return "PRESET_ENCODER"
	case SubWriteDirect:
		return "WRITE_DIRECT"
	case SubWriteDirectModeData:
		return "WRITE_DIRECT_MODE_DATA"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", uint8(sub))
	}
}

// FormatHubAction returns the human-readable name for a hub action
func FormatHubAction(action HubAction) string {
	switch action {
	case HubActionSwitchOff:
		return "SWITCH_OFF"
	case HubActionDisconnect:
		return "DISCONNECT"
	case HubActionVCCPortControlOn:
		return "VCC_PORT_CONTROL_ON"
	case HubActionVCCPortControlOff:
		return "VCC_PORT_CONTROL_OFF"
	case HubActionActivateBusyInd:
		return "ACTIVATE_BUSY_INDICATION"
	case HubActionResetBusyInd:
		return "RESET_BUSY_INDICATION"
	case HubActionShutdown:
		return "SHUTDOWN"
	case HubActionWillSwitchOff:
		return "WILL_SWITCH_OFF"
	case HubActionWillDisconnect:
		return "WILL_DISCONNECT"
	case HubActionWillGoIntoBoot:
		return "WILL_GO_INTO_BOOT_MODE"
	default:
		return "UNKNOWN"
	}
}

// FormatErrorCode returns the human-readable name for a generic error code
func FormatErrorCode(code ErrorCode) string {
	switch code {
	case ErrorCodeACK:
		return "ACK"
	case ErrorCodeMACK:
		return "MACK"
	case ErrorCodeBufferOverflow:
		return "BUFFER_OVERFLOW"
	case ErrorCodeTimeout:
		return "TIMEOUT"
	case ErrorCodeCommandNotRecognized:
		return "COMMAND_NOT_RECOGNIZED"
	case ErrorCodeInvalidUse:
		return "INVALID_USE"
	case ErrorCodeOvercurrent:
		return "OVERCURRENT"
	case ErrorCodeInternalError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// FormatIOEvent returns the human-readable name for an attached IO event
func FormatIOEvent(event IOEvent) string {
	switch event {
	case IOEventDetached:
		return "DETACHED"
	case IOEventAttached:
		return "ATTACHED"
	case IOEventAttachedVirtual:
		return "ATTACHED_VIRTUAL"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", uint8(event))
	}
}

// FormatIOType returns the human-readable name for an IO type id
func FormatIOType(t IOType) string {
	switch t {
	case IOTypeMotor:
		return "MOTOR"
	case IOTypeSystemTrainMotor:
		return "SYSTEM_TRAIN_MOTOR"
	case IOTypeButton:
		return "BUTTON"
	case IOTypeLEDLight:
		return "LED_LIGHT"
	case IOTypeVoltage:
		return "VOLTAGE"
	case IOTypeCurrent:
		return "CURRENT"
	case IOTypePiezoTone:
		return "PIEZO_TONE"
	case IOTypeRGBLight:
		return "RGB_LIGHT"
	case IOTypeExternalTiltSensor:
		return "EXTERNAL_TILT_SENSOR"
	case IOTypeMotionSensor:
		return "MOTION_SENSOR"
	case IOTypeVisionSensor:
		return "VISION_SENSOR"
	case IOTypeExternalMotorTacho:
		return "EXTERNAL_MOTOR_TACHO"
	case IOTypeInternalMotorTacho:
		return "INTERNAL_MOTOR_TACHO"
	case IOTypeInternalTilt:
		return "INTERNAL_TILT"
	default:
		return "UNKNOWN"
	}
}

// FormatPortInfoType returns the human-readable name for a port info type
func FormatPortInfoType(t PortInfoType) string {
	switch t {
	case PortInfoValue:
		return "VALUE"
	case PortInfoModeInfo:
		return "MODE_INFO"
	case PortInfoPossibleCombinations:
		return "POSSIBLE_MODE_COMBINATIONS"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", uint8(t))
	}
}

// FormatModeInfoType returns the human-readable name for a mode info type
func FormatModeInfoType(t ModeInfoType) string {
	switch t {
	case ModeInfoName:
		return "NAME"
	case ModeInfoRaw:
		return "RAW"
	case ModeInfoPct:
		return "PCT"
	case ModeInfoSI:
		return "SI"
	case ModeInfoSymbol:
		return "SYMBOL"
	case ModeInfoMapping:
		return "MAPPING"
	case ModeInfoMotorBias:
		return "MOTOR_BIAS"
	case ModeInfoCapability:
		return "CAPABILITY_BITS"
	case ModeInfoValueFormat:
		return "VALUE_FORMAT"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", uint8(t))
	}
}

// FormatFeedbackStatus lists the bits set in a feedback status
func FormatFeedbackStatus(s FeedbackStatus) string {
	var parts []string
	if s&FeedbackBufferEmptyInProgress != 0 {
		parts = append(parts, "IN_PROGRESS")
	}
	if s&FeedbackBufferEmptyComplete != 0 {
		parts = append(parts, "COMPLETE")
	}
	if s&FeedbackCommandDiscarded != 0 {
		parts = append(parts, "DISCARDED")
	}
	if s&FeedbackIdle != 0 {
		parts = append(parts, "IDLE")
	}
	if s&FeedbackBusyFull != 0 {
		parts = append(parts, "BUSY_FULL")
	}
	if len(parts) == 0 {
		return fmt.Sprintf("NONE (0x%02X)", uint8(s))
	}
	return fmt.Sprintf("%s (0x%02X)", strings.Join(parts, "|"), uint8(s))
}

// FormatEndState returns the human-readable name for an end state
func FormatEndState(state uint8) string {
	switch state {
	case EndStateFloat:
		return "FLOAT"
	case EndStateHold:
		return "HOLD"
	case EndStateBrake:
		return "BRAKE"
	default:
		return fmt.Sprintf("%d", state)
	}
}

// FormatVersion formats a BCD encoded hardware or software revision as
// major.minor.bugfix.build
func FormatVersion(v uint32) string {
	major := (v >> 28) & 0x07
	minor := (v >> 24) & 0x0F
	bugfix := (v >> 16) & 0xFF
	build := v & 0xFFFF
	return fmt.Sprintf("%d.%d.%02X.%04X", major, minor, bugfix, build)
}
