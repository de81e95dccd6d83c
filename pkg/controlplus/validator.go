// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controlplus

import "fmt"

// AnomalyType represents different types of message anomalies
type AnomalyType int

const (
	AnomalyGenericError AnomalyType = iota
	AnomalyCommandDiscarded
	AnomalyBusyFull
	AnomalyUnknownIOType
	AnomalyInvalidModeName
	AnomalyInvalidRange
	AnomalyInvalidValue
	AnomalyDecodeError
)

// ValidationError represents a message validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateMessage checks a decoded message for values that decode cleanly
// but indicate trouble on the hub side.
// Returns a slice of validation errors (empty if the message is fine)
func ValidateMessage(m Message) []ValidationError {
	errors := []ValidationError{}

	switch msg := m.(type) {
	case *GenericError:
		errors = append(errors, validateGenericError(msg)...)
	case *PortOutputCommandFeedback:
		errors = append(errors, validateFeedback(msg)...)
	case *HubAttachedIO:
		errors = append(errors, validateAttachedIO(msg)...)
	case *PortModeInfo:
		errors = append(errors, validateModeInfo(msg)...)
	case *StartSpeed:
		errors = append(errors, validatePercent("speed", msg.Port, int(msg.Speed))...)
		errors = append(errors, validatePower(msg.Port, int(msg.MaxPower))...)
	case *GotoAbsolutePosition:
		errors = append(errors, validatePercent("speed", msg.Port, int(msg.Speed))...)
		errors = append(errors, validatePower(msg.Port, int(msg.MaxPower))...)
	}

	return errors
}

// validateGenericError flags every GENERIC_ERROR other than an ACK
func validateGenericError(m *GenericError) []ValidationError {
	if m.Code == ErrorCodeACK || m.Code == ErrorCodeMACK {
		return nil
	}
	return []ValidationError{{
		Type: AnomalyGenericError,
		Message: fmt.Sprintf("Hub rejected %s: %s",
			FormatMessageType(m.Command), FormatErrorCode(m.Code)),
		Details: map[string]interface{}{"command": uint8(m.Command), "code": uint8(m.Code)},
	}}
}

// validateFeedback flags discarded commands and full buffers
func validateFeedback(m *PortOutputCommandFeedback) []ValidationError {
	errors := []ValidationError{}

	for _, e := range m.Entries {
		if e.Status&FeedbackCommandDiscarded != 0 {
			errors = append(errors, ValidationError{
				Type:    AnomalyCommandDiscarded,
				Message: fmt.Sprintf("Port %d discarded a command", e.Port),
				Details: map[string]interface{}{"port": e.Port, "status": uint8(e.Status)},
			})
		}
		if e.Status&FeedbackBusyFull != 0 {
			errors = append(errors, ValidationError{
				Type:    AnomalyBusyFull,
				Message: fmt.Sprintf("Port %d command buffer full", e.Port),
				Details: map[string]interface{}{"port": e.Port, "status": uint8(e.Status)},
			})
		}
	}

	return errors
}

// validateAttachedIO flags devices this tool has no name for
func validateAttachedIO(m *HubAttachedIO) []ValidationError {
	if m.Event == IOEventDetached || FormatIOType(m.IOType) != "UNKNOWN" {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyUnknownIOType,
		Message: fmt.Sprintf("Unknown IO type 0x%04X on port %d", uint16(m.IOType), m.Port),
		Details: map[string]interface{}{"port": m.Port, "io_type": uint16(m.IOType)},
	}}
}

// validateModeInfo checks mode names and value ranges
func validateModeInfo(m *PortModeInfo) []ValidationError {
	errors := []ValidationError{}

	switch m.InfoType {
	case ModeInfoName:
		if len(m.Name) == 0 || len(m.Name) > MaxModeNameLength {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidModeName,
				Message: fmt.Sprintf("Invalid mode name %q on port %d mode %d (1-%d chars)", m.Name, m.Port, m.Mode, MaxModeNameLength),
				Details: map[string]interface{}{"port": m.Port, "mode": m.Mode, "length": len(m.Name)},
			})
		}
	case ModeInfoRaw, ModeInfoPct, ModeInfoSI:
		if m.Min > m.Max {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidRange,
				Message: fmt.Sprintf("Mode range min > max (%g > %g) on port %d mode %d", m.Min, m.Max, m.Port, m.Mode),
				Details: map[string]interface{}{"port": m.Port, "mode": m.Mode, "min": m.Min, "max": m.Max},
			})
		}
	}

	return errors
}

func validatePercent(name string, port uint8, v int) []ValidationError {
	if v >= -100 && v <= 100 {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyInvalidValue,
		Message: fmt.Sprintf("Invalid %s=%d on port %d (valid -100 to 100)", name, v, port),
		Details: map[string]interface{}{"port": port, name: v},
	}}
}

func validatePower(port uint8, v int) []ValidationError {
	if v >= 0 && v <= 100 {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyInvalidValue,
		Message: fmt.Sprintf("Invalid max power=%d on port %d (valid 0-100)", v, port),
		Details: map[string]interface{}{"port": port, "max_power": v},
	}}
}
