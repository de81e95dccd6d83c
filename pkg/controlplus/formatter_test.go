// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controlplus

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		v    uint32
		want string
	}{
		{0x10000004, "1.0.00.0004"},
		{0x10000002, "1.0.00.0002"},
		{0x17381234, "1.7.38.1234"},
		{0x00000000, "0.0.00.0000"},
	}
	for _, tt := range tests {
		if got := FormatVersion(tt.v); got != tt.want {
			t.Errorf("FormatVersion(0x%08X) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestFormatMessageType_Unknown(t *testing.T) {
	if got := FormatMessageType(0x99); got != "UNKNOWN_0x99" {
		t.Errorf("FormatMessageType(0x99) = %q", got)
	}
}

func TestFormatFeedbackStatus(t *testing.T) {
	if got := FormatFeedbackStatus(0x0A); got != "COMPLETE|IDLE (0x0A)" {
		t.Errorf("FormatFeedbackStatus(0x0A) = %q", got)
	}
	if got := FormatFeedbackStatus(0); got != "NONE (0x00)" {
		t.Errorf("FormatFeedbackStatus(0) = %q", got)
	}
}

func TestMessage_String(t *testing.T) {
	tests := []struct {
		msg      Message
		contains []string
	}{
		{NewHubAction(HubActionShutdown), []string{"HUB_ACTIONS", "action=SHUTDOWN"}},
		{NewGotoAbsolutePosition(1, -90, 60, 60, EndStateHold), []string{"PORT_OUTPUT_COMMAND/GOTO_ABSOLUTE_POSITION", "position=-90", "end_state=HOLD"}},
		{&PortModeInfo{Port: 0, Mode: 3, InfoType: ModeInfoName, Name: "APOS"}, []string{"PORT_MODE_INFO", `name="APOS"`}},
		{&PortOutputCommandFeedback{Entries: []FeedbackEntry{{Port: 2, Status: FeedbackIdle}}}, []string{"port_2=IDLE"}},
	}

	for _, tt := range tests {
		s := tt.msg.String()
		for _, want := range tt.contains {
			if !strings.Contains(s, want) {
				t.Errorf("String() = %q, missing %q", s, want)
			}
		}
	}
}

func TestFormatMessage(t *testing.T) {
	ts := time.Date(2025, 1, 1, 12, 30, 45, 123000000, time.UTC)
	msg := &HubAttachedIO{Port: 0, Event: IOEventAttached, IOType: IOTypeMotor, HardwareRev: 0x10000004, SoftwareRev: 0x10000002}

	out := FormatMessage(msg, ts)
	for _, want := range []string{
		"[12:30:45.123] HUB_ATTACHED_IO (0x04) ports=[0]",
		"  Event: ATTACHED",
		"  IO Type: MOTOR (0x0001)",
		"  HW: 1.0.00.0004",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatMessage output missing %q:\n%s", want, out)
		}
	}
}

// ============================================================
// Validator Tests
// ============================================================

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name  string
		msg   Message
		types []AnomalyType
	}{
		{"ack is fine", &GenericError{Command: MsgPortOutputCommand, Code: ErrorCodeACK}, nil},
		{"invalid use", &GenericError{Command: MsgPortOutputCommand, Code: ErrorCodeInvalidUse}, []AnomalyType{AnomalyGenericError}},
		{"idle feedback", &PortOutputCommandFeedback{Entries: []FeedbackEntry{{0, FeedbackIdle}}}, nil},
		{"discarded and full", &PortOutputCommandFeedback{Entries: []FeedbackEntry{{0, FeedbackCommandDiscarded | FeedbackBusyFull}}}, []AnomalyType{AnomalyCommandDiscarded, AnomalyBusyFull}},
		{"unknown io", &HubAttachedIO{Port: 1, Event: IOEventAttached, IOType: 0x7777}, []AnomalyType{AnomalyUnknownIOType}},
		{"detached", &HubAttachedIO{Port: 1, Event: IOEventDetached}, nil},
		{"empty name", &PortModeInfo{InfoType: ModeInfoName}, []AnomalyType{AnomalyInvalidModeName}},
		{"inverted range", &PortModeInfo{InfoType: ModeInfoRaw, Min: 10, Max: -10}, []AnomalyType{AnomalyInvalidRange}},
		{"speed out of range", NewStartSpeed(0, 127, 100, ProfileNone), []AnomalyType{AnomalyInvalidValue}},
		{"negative power", NewGotoAbsolutePosition(0, 0, 10, -5, EndStateBrake), []AnomalyType{AnomalyInvalidValue}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateMessage(tt.msg)
			if len(errs) != len(tt.types) {
				t.Fatalf("got %d errors (%v), want %d", len(errs), errs, len(tt.types))
			}
			for i, e := range errs {
				if e.Type != tt.types[i] {
					t.Errorf("error %d type = %d, want %d", i, e.Type, tt.types[i])
				}
			}
		})
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()

	s.Update(NewHubAction(HubActionShutdown), nil, nil)
	s.Update(&GenericError{Code: ErrorCodeInvalidUse}, nil, ValidateMessage(&GenericError{Code: ErrorCodeInvalidUse}))
	s.Update(nil, ErrUnknownType, nil)
	s.Update(nil, errors.Join(errors.New("PORT_OUTPUT_COMMAND"), ErrUnsupported), nil)
	s.Update(nil, ErrTruncated, nil)

	if s.TotalMessages != 5 {
		t.Errorf("TotalMessages = %d, want 5", s.TotalMessages)
	}
	if s.ValidMessages != 1 {
		t.Errorf("ValidMessages = %d, want 1", s.ValidMessages)
	}
	if s.DecodeErrors != 3 || s.UnknownTypes != 1 || s.Unsupported != 1 || s.MalformedMessages != 1 {
		t.Errorf("decode counters: errors=%d unknown=%d unsupported=%d malformed=%d",
			s.DecodeErrors, s.UnknownTypes, s.Unsupported, s.MalformedMessages)
	}
	if s.Anomalies != 1 || s.GenericErrors != 1 {
		t.Errorf("Anomalies=%d GenericErrors=%d, want 1 and 1", s.Anomalies, s.GenericErrors)
	}
	if s.ByType[MsgHubActions] != 1 || s.ByType[MsgGenericError] != 1 {
		t.Errorf("ByType = %v", s.ByType)
	}

	clone := s.Clone()
	s.Reset()
	if s.TotalMessages != 0 || len(s.ByType) != 0 {
		t.Error("Reset did not clear counters")
	}
	if clone.TotalMessages != 5 || clone.ByType[MsgHubActions] != 1 {
		t.Error("Clone shares state with the original")
	}
	if !strings.Contains(clone.String(), "Total Messages:") {
		t.Error("String() missing summary")
	}
}
