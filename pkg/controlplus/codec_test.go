// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controlplus

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// sampleMessages returns one populated message per catalog entry
func sampleMessages() []Message {
	return []Message{
		&HubActions{Action: HubActionShutdown},
		&GenericError{Command: MsgPortOutputCommand, Code: ErrorCodeInvalidUse},
		&HubAttachedIO{Port: 0, Event: IOEventAttached, IOType: IOTypeMotor, HardwareRev: 0x10000004, SoftwareRev: 0x10000002},
		&HubAttachedIO{Port: 0x10, Event: IOEventAttachedVirtual, IOType: IOTypeMotor, PortA: 0, PortB: 1},
		&HubAttachedIO{Port: 2, Event: IOEventDetached},
		&PortInfoRequest{Port: 1, InfoType: PortInfoModeInfo},
		&PortModeInfoRequest{Port: 1, Mode: 3, InfoType: ModeInfoName},
		&PortInputFormatSetupSingle{InputFormat{Port: 0, Mode: 3, DeltaInterval: 5, NotificationEnabled: true}},
		&PortInputFormatSingle{InputFormat{Port: 0, Mode: 3, DeltaInterval: 0x00010002, NotificationEnabled: false}},
		&PortInfo{Port: 0, InfoType: PortInfoModeInfo, Capabilities: 0x0F, ModeCount: 6, InputModes: 0x001E, OutputModes: 0x0001},
		&PortInfo{Port: 0, InfoType: PortInfoPossibleCombinations, Combinations: []uint16{0x000E, 0x0003}},
		&PortModeInfo{Port: 0, Mode: 3, InfoType: ModeInfoName, Name: "APOS"},
		&PortModeInfo{Port: 0, Mode: 3, InfoType: ModeInfoRaw, Min: -180, Max: 179},
		&PortModeInfo{Port: 0, Mode: 3, InfoType: ModeInfoPct, Min: -200, Max: 200},
		&PortModeInfo{Port: 0, Mode: 3, InfoType: ModeInfoSI, Min: -180.5, Max: 179.25},
		&PortModeInfo{Port: 0, Mode: 3, InfoType: ModeInfoSymbol, Symbol: "DEG"},
		&PortModeInfo{Port: 0, Mode: 3, InfoType: ModeInfoMapping, InputMapping: 0x08, OutputMapping: 0x08},
		&PortModeInfo{Port: 0, Mode: 0, InfoType: ModeInfoMotorBias, MotorBias: 20},
		&PortModeInfo{Port: 0, Mode: 0, InfoType: ModeInfoCapability, Capability: [6]byte{1, 2, 3, 4, 5, 6}},
		&PortModeInfo{Port: 0, Mode: 3, InfoType: ModeInfoValueFormat, ValueFormat: ValueFormat{Datasets: 1, Format: 1, Figures: 3, Decimals: 0}},
		&PortValueSingle{Port: 0, Value: -10, Width: 1},
		&PortValueSingle{Port: 0, Value: 1000, Width: 2},
		&PortValueSingle{Port: 0, Value: -123456, Width: 4},
		&PortOutputCommandFeedback{Entries: []FeedbackEntry{{Port: 0, Status: FeedbackIdle}}},
		&PortOutputCommandFeedback{Entries: []FeedbackEntry{{0, FeedbackIdle}, {1, FeedbackBufferEmptyInProgress}, {2, FeedbackBufferEmptyCompleteIdle}}},
		NewStartPower(0, 50, -50),
		NewSetAccTime(1, 500, ProfileAcceleration),
		NewSetDecTime(1, 300, ProfileDeceleration),
		NewStartSpeed(2, -75, 100, ProfileAcceleration|ProfileDeceleration),
		NewStartSpeedForTime(0, 2000, 50, 100, EndStateBrake, ProfileNone),
		NewStartSpeedForDegrees(0, -720, 30, 60, EndStateHold, ProfileNone),
		NewGotoAbsolutePosition(0, -1000, 10, 60, EndStateBrake),
		NewPresetEncoder(3, 90),
		NewWriteDirect(0, []byte{0x01, 0x02}),
		NewWriteDirectModeData(0, ModePower, []byte{0x9C}),
		NewPositionPreset(0, 0),
	}
}

// ============================================================
// Round Trip Tests
// ============================================================

// Encoding is always little-endian, so only the little-endian codec reads
// every 32-bit field back unchanged
func TestCodec_RoundTripAllVariants(t *testing.T) {
	codecs := map[string]Codec{
		"little-endian": {WordOrder: WordOrderLittleEndian},
	}

	for codecName, codec := range codecs {
		for _, msg := range sampleMessages() {
			name := codecName + "/" + messageName(msg)
			t.Run(name, func(t *testing.T) {
				data, err := codec.Encode(msg)
				if err != nil {
					t.Fatalf("Encode failed: %v", err)
				}
				if int(data[0]) != len(data) {
					t.Errorf("size byte = %d, want %d", data[0], len(data))
				}

				decoded, err := codec.Decode(data)
				if err != nil {
					t.Fatalf("Decode failed: %v (bytes % X)", err, data)
				}
				if !reflect.DeepEqual(decoded, msg) {
					t.Errorf("round trip mismatch:\n got  %#v\n want %#v", decoded, msg)
				}
			})
		}
	}
}

func TestCodec_EveryCatalogEntryHasSample(t *testing.T) {
	covered := make(map[catalogKey]bool)
	for _, msg := range sampleMessages() {
		key := catalogKey{typ: msg.Type()}
		if oc, ok := msg.(OutputCommand); ok {
			key.sub = oc.SubCommand()
		}
		covered[key] = true
	}
	for key := range catalog {
		if !covered[key] {
			t.Errorf("no round trip sample for %s", key)
		}
	}
}

// ============================================================
// Known Byte Sequences
// ============================================================

func TestEncode_KnownBytes(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		expected []byte
	}{
		{
			name:     "shutdown",
			msg:      NewHubAction(HubActionShutdown),
			expected: []byte{0x04, 0x00, 0x02, 0x2F},
		},
		{
			name:     "port info request",
			msg:      NewPortInfoRequest(1, PortInfoModeInfo),
			expected: []byte{0x05, 0x00, 0x21, 0x01, 0x01},
		},
		{
			name:     "mode name request",
			msg:      NewPortModeInfoRequest(0, 2, ModeInfoName),
			expected: []byte{0x06, 0x00, 0x22, 0x00, 0x02, 0x00},
		},
		{
			name:     "input format setup",
			msg:      NewPortInputFormatSetup(0, 3, 5, true),
			expected: []byte{0x0A, 0x00, 0x41, 0x00, 0x03, 0x05, 0x00, 0x00, 0x00, 0x01},
		},
		{
			name:     "goto absolute position",
			msg:      NewGotoAbsolutePosition(0, -1000, 10, 60, EndStateBrake),
			expected: []byte{0x0E, 0x00, 0x81, 0x00, 0x11, 0x0D, 0x18, 0xFC, 0xFF, 0xFF, 0x0A, 0x3C, 0x7F, 0x00},
		},
		{
			name:     "start speed",
			msg:      NewStartSpeed(1, 50, 100, ProfileAcceleration),
			expected: []byte{0x09, 0x00, 0x81, 0x01, 0x11, 0x07, 0x32, 0x64, 0x01},
		},
		{
			name:     "motor power",
			msg:      NewMotorPower(2, -100),
			expected: []byte{0x08, 0x00, 0x81, 0x02, 0x11, 0x51, 0x00, 0x9C},
		},
		{
			name:     "position preset",
			msg:      NewPositionPreset(0, 0),
			expected: []byte{0x0B, 0x00, 0x81, 0x00, 0x11, 0x51, 0x02, 0x00, 0x00, 0x00, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if !bytes.Equal(data, tt.expected) {
				t.Errorf("Encode() = % X, want % X", data, tt.expected)
			}
		})
	}
}

func TestDecode_PortValueWidths(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		value int32
		width int
	}{
		{"int8 negative", []byte{0x05, 0x00, 0x45, 0x00, 0xF6}, -10, 1},
		{"int8 positive", []byte{0x05, 0x00, 0x45, 0x00, 0x7F}, 127, 1},
		{"int16", []byte{0x06, 0x00, 0x45, 0x00, 0xE8, 0x03}, 1000, 2},
		{"int16 negative", []byte{0x06, 0x00, 0x45, 0x00, 0x18, 0xFC}, -1000, 2},
		{"int32 high first", []byte{0x08, 0x00, 0x45, 0x00, 0x01, 0x00, 0x02, 0x00}, 0x00010002, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			pv, ok := msg.(*PortValueSingle)
			if !ok {
				t.Fatalf("Decode returned %T, want *PortValueSingle", msg)
			}
			if pv.Value != tt.value {
				t.Errorf("Value = %d, want %d", pv.Value, tt.value)
			}
			if pv.Width != tt.width {
				t.Errorf("Width = %d, want %d", pv.Width, tt.width)
			}
		})
	}
}

func TestCodec_HighFirstOnlyAffectsDecode(t *testing.T) {
	high := Codec{WordOrder: WordOrderHighFirst}
	le := Codec{WordOrder: WordOrderLittleEndian}

	tests := []struct {
		name  string
		msg   Message
		field []byte // little-endian bytes of the 32-bit field
		at    int
	}{
		{"goto absolute position", NewGotoAbsolutePosition(0, -1000, 10, 60, EndStateBrake), []byte{0x18, 0xFC, 0xFF, 0xFF}, 6},
		{"start speed for degrees", NewStartSpeedForDegrees(1, 720, 30, 60, EndStateHold, ProfileNone), []byte{0xD0, 0x02, 0x00, 0x00}, 6},
		{"preset encoder", NewPresetEncoder(2, 90), []byte{0x5A, 0x00, 0x00, 0x00}, 6},
		{"input format setup", NewPortInputFormatSetup(0, 3, 5, true), []byte{0x05, 0x00, 0x00, 0x00}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := high.Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			b, err := le.Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if !bytes.Equal(a, b) {
				t.Errorf("word order changed the encoding:\n high % X\n le   % X", a, b)
			}
			if got := a[tt.at : tt.at+4]; !bytes.Equal(got, tt.field) {
				t.Errorf("field bytes = % X, want % X", got, tt.field)
			}
		})
	}

	// Reads still swap the halves
	msg, err := high.Decode([]byte{0x08, 0x00, 0x45, 0x00, 0x01, 0x00, 0x02, 0x00})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := msg.(*PortValueSingle).Value; got != 0x00010002 {
		t.Errorf("Value = 0x%08X, want 0x00010002", got)
	}
}

func TestDecode_WordOrderLittleEndian(t *testing.T) {
	codec := Codec{WordOrder: WordOrderLittleEndian}
	msg, err := codec.Decode([]byte{0x08, 0x00, 0x45, 0x00, 0x01, 0x00, 0x02, 0x00})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := msg.(*PortValueSingle).Value; got != 0x00020001 {
		t.Errorf("Value = 0x%08X, want 0x00020001", got)
	}
}

func TestDecode_Feedback(t *testing.T) {
	msg, err := Decode([]byte{0x05, 0x00, 0x82, 0x00, 0x0A})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	fb, ok := msg.(*PortOutputCommandFeedback)
	if !ok {
		t.Fatalf("Decode returned %T", msg)
	}
	status, ok := fb.Status(0)
	if !ok {
		t.Fatal("Status(0) not found")
	}
	if !status.IsIdle() {
		t.Errorf("status 0x%02X should be idle", uint8(status))
	}
	if _, ok := fb.Status(1); ok {
		t.Error("Status(1) should not be found")
	}
}

func TestDecode_ModeNameTrimsNUL(t *testing.T) {
	data := []byte{0x0E, 0x00, 0x44, 0x00, 0x03, 0x00, 'A', 'P', 'O', 'S', 0x00, 0x00, 0x00, 0x00}
	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if name := msg.(*PortModeInfo).Name; name != "APOS" {
		t.Errorf("Name = %q, want %q", name, "APOS")
	}
}

// ============================================================
// Size Field Tests
// ============================================================

func TestEncode_SizeFieldBoundary(t *testing.T) {
	tests := []struct {
		name       string
		payloadLen int
		header     []byte
		wantErr    bool
	}{
		{"largest short", 121, []byte{0x7F}, false},
		{"smallest extended", 122, []byte{0x80, 0x81}, false},
		{"largest encodable", 248, []byte{0x80, 0xFF}, false},
		{"too long", 249, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewWriteDirect(0, bytes.Repeat([]byte{0xAA}, tt.payloadLen))
			data, err := Encode(msg)
			if tt.wantErr {
				if !errors.Is(err, ErrTooLong) {
					t.Fatalf("Encode error = %v, want ErrTooLong", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if !bytes.HasPrefix(data, tt.header) {
				t.Errorf("header = % X, want % X", data[:len(tt.header)], tt.header)
			}
			if data[len(tt.header)] != HubID {
				t.Errorf("hub id byte = 0x%02X", data[len(tt.header)])
			}

			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !reflect.DeepEqual(decoded, msg) {
				t.Error("extended round trip mismatch")
			}
		})
	}
}

// ============================================================
// Decode Error Tests
// ============================================================

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", nil, ErrTooShort},
		{"two bytes", []byte{0x02, 0x00}, ErrTooShort},
		{"extended header only", []byte{0x80, 0x04, 0x00}, ErrTooShort},
		{"unknown type", []byte{0x03, 0x00, 0x99}, ErrUnknownType},
		{"hub id not zero", []byte{0x04, 0x01, 0x02, 0x2F}, ErrReservedHubID},
		{"size larger than buffer", []byte{0x05, 0x00, 0x02, 0x2F}, ErrSizeMismatch},
		{"size smaller than buffer", []byte{0x03, 0x00, 0x02, 0x2F}, ErrSizeMismatch},
		{"missing body", []byte{0x03, 0x00, 0x02}, ErrTruncated},
		{"trailing bytes", []byte{0x05, 0x00, 0x02, 0x2F, 0x00}, ErrTrailingBytes},
		{"known but unsupported type", []byte{0x03, 0x00, 0x01}, ErrUnsupported},
		{"unsupported sub-command", []byte{0x07, 0x00, 0x81, 0x00, 0x11, 0x08, 0x00}, ErrUnsupported},
		{"output without sub-command", []byte{0x05, 0x00, 0x81, 0x00, 0x11}, ErrTooShort},
		{"port value bad width", []byte{0x07, 0x00, 0x45, 0x00, 0x01, 0x02, 0x03}, ErrSizeMismatch},
		{"feedback odd length", []byte{0x06, 0x00, 0x82, 0x00, 0x0A, 0x01}, ErrTruncated},
		{"feedback too many entries", []byte{0x0B, 0x00, 0x82, 0, 8, 1, 8, 2, 8, 3, 8}, ErrTrailingBytes},
		{"port info unknown info type", []byte{0x05, 0x00, 0x43, 0x00, 0x09}, ErrUnsupported},
		{"attached io truncated", []byte{0x07, 0x00, 0x04, 0x00, 0x01, 0x01, 0x00}, ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.data)
			if err == nil {
				t.Fatalf("Decode() = %v, want error", msg)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecode_UnsupportedNamesSubCommand(t *testing.T) {
	_, err := Decode([]byte{0x07, 0x00, 0x81, 0x00, 0x11, 0x08, 0x00})
	if err == nil || !strings.Contains(err.Error(), "START_SPEED_2") {
		t.Errorf("error %v should name the sub-command", err)
	}
}

func TestEncode_InvalidFields(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"empty feedback", &PortOutputCommandFeedback{}},
		{"four feedback entries", &PortOutputCommandFeedback{Entries: make([]FeedbackEntry, 4)}},
		{"long symbol", &PortModeInfo{InfoType: ModeInfoSymbol, Symbol: "TOOLONG"}},
		{"value width 3", &PortValueSingle{Value: 1, Width: 3}},
		{"unknown mode info", &PortModeInfo{InfoType: 0x42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encode(tt.msg); err == nil {
				t.Error("Encode() should fail")
			}
		})
	}
}

func TestMustEncode_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustEncode should panic on an invalid message")
		}
	}()
	MustEncode(&PortOutputCommandFeedback{})
}

func TestPortValueSingle_DefaultWidth(t *testing.T) {
	tests := []struct {
		value int32
		size  int
	}{
		{0, 5},
		{-128, 5},
		{128, 6},
		{-32768, 6},
		{40000, 8},
	}

	for _, tt := range tests {
		data, err := Encode(&PortValueSingle{Port: 0, Value: tt.value})
		if err != nil {
			t.Fatalf("Encode(%d) failed: %v", tt.value, err)
		}
		if len(data) != tt.size {
			t.Errorf("Encode(%d) size = %d, want %d", tt.value, len(data), tt.size)
		}
	}
}

// ============================================================
// Feedback Status Tests
// ============================================================

func TestFeedbackStatus_IsIdle(t *testing.T) {
	tests := []struct {
		status FeedbackStatus
		idle   bool
	}{
		{0x08, true},
		{0x02, true},
		{0x0A, true},
		{0x01, false},
		{0x04, false},
		{0x10, false},
		{0x18, false},
		{0x00, false},
	}

	for _, tt := range tests {
		if got := tt.status.IsIdle(); got != tt.idle {
			t.Errorf("FeedbackStatus(0x%02X).IsIdle() = %v, want %v", uint8(tt.status), got, tt.idle)
		}
	}
}
