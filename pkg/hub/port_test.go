// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hub

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/hubpad/pkg/controlplus"
)

// scriptedSender records sent messages and answers them synchronously
// through the port's OnMessage
type scriptedSender struct {
	mu    sync.Mutex
	sent  []controlplus.Message
	port  *Port
	reply func(msg controlplus.Message) []controlplus.Message
}

func (s *scriptedSender) Enqueue(msg controlplus.Message) {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	port, reply := s.port, s.reply
	s.mu.Unlock()

	if reply == nil {
		return
	}
	for _, r := range reply(msg) {
		port.OnMessage(r)
	}
}

func (s *scriptedSender) messages() []controlplus.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]controlplus.Message(nil), s.sent...)
}

func (s *scriptedSender) clear() {
	s.mu.Lock()
	s.sent = nil
	s.mu.Unlock()
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.ReplyTimeout = 200 * time.Millisecond
	return opts
}

func newScriptedPort(kind PortKind, opts Options, reply func(controlplus.Message) []controlplus.Message, mappings ...Mapping) (*Port, *scriptedSender) {
	sender := &scriptedSender{reply: reply}
	p := NewPort(PortConfig{ID: 0, Kind: kind, Mappings: mappings}, sender, opts)
	sender.port = p
	return p, sender
}

// hubScript answers bring-up requests like a hub with the given mode names
// and absolute position
func hubScript(names []string, absolute int32) func(controlplus.Message) []controlplus.Message {
	return func(msg controlplus.Message) []controlplus.Message {
		switch m := msg.(type) {
		case *controlplus.PortInfoRequest:
			return []controlplus.Message{&controlplus.PortInfo{
				Port:         m.Port,
				InfoType:     controlplus.PortInfoModeInfo,
				Capabilities: controlplus.CapabilityOutput | controlplus.CapabilityInput,
				ModeCount:    uint8(len(names)),
			}}
		case *controlplus.PortModeInfoRequest:
			return []controlplus.Message{&controlplus.PortModeInfo{
				Port:     m.Port,
				Mode:     m.Mode,
				InfoType: controlplus.ModeInfoName,
				Name:     names[m.Mode],
			}}
		case *controlplus.PortInputFormatSetupSingle:
			return []controlplus.Message{
				&controlplus.PortInputFormatSingle{InputFormat: m.InputFormat},
				&controlplus.PortValueSingle{Port: m.Port, Value: absolute, Width: 4},
			}
		case *controlplus.GotoAbsolutePosition:
			return []controlplus.Message{
				&controlplus.PortOutputCommandFeedback{Entries: []controlplus.FeedbackEntry{{Port: m.Port, Status: controlplus.FeedbackBufferEmptyInProgress}}},
				&controlplus.PortOutputCommandFeedback{Entries: []controlplus.FeedbackEntry{{Port: m.Port, Status: 0x0A}}},
			}
		}
		return nil
	}
}

// readyPort returns a port that has completed bring-up with no modes
func readyPort(t *testing.T, kind PortKind, opts Options, mappings ...Mapping) (*Port, *scriptedSender) {
	t.Helper()
	p, sender := newScriptedPort(PortMotor, opts, hubScript(nil, 0), mappings...)
	if err := p.BringUp(context.Background()); err != nil {
		t.Fatalf("BringUp failed: %v", err)
	}
	p.kind = kind
	sender.clear()
	return p, sender
}

// ============================================================
// Bring-up Tests
// ============================================================

func TestBringUp_ServoCalibrates(t *testing.T) {
	p, sender := newScriptedPort(PortServo, testOptions(), hubScript([]string{"APOS", "POWER"}, 1000))

	if err := p.BringUp(context.Background()); err != nil {
		t.Fatalf("BringUp failed: %v", err)
	}

	if !p.Initialized() || p.State() != StateReady {
		t.Errorf("state = %v, want READY", p.State())
	}
	if p.Position() != 0 || p.InitialPosition() != 0 {
		t.Errorf("position = %d, initial = %d, want 0, 0", p.Position(), p.InitialPosition())
	}
	if p.AbsPosMode() != 0 {
		t.Errorf("AbsPosMode() = %d, want 0", p.AbsPosMode())
	}
	if p.NumModes() != 2 {
		t.Errorf("NumModes() = %d, want 2", p.NumModes())
	}
	if names := p.ModeNames(); !reflect.DeepEqual(names, []string{"APOS", "POWER"}) {
		t.Errorf("ModeNames() = %v", names)
	}
	if p.LastError() != nil {
		t.Errorf("LastError() = %v", p.LastError())
	}

	want := []controlplus.Message{
		controlplus.NewPortInfoRequest(0, controlplus.PortInfoModeInfo),
		controlplus.NewPortModeInfoRequest(0, 0, controlplus.ModeInfoName),
		controlplus.NewPortModeInfoRequest(0, 1, controlplus.ModeInfoName),
		controlplus.NewPortInputFormatSetup(0, 0, 5, true),
		controlplus.NewGotoAbsolutePosition(0, -1000, 10, 60, controlplus.EndStateBrake),
		controlplus.NewPositionPreset(0, 0),
	}
	if got := sender.messages(); !reflect.DeepEqual(got, want) {
		t.Errorf("sent:\n%v\nwant:\n%v", got, want)
	}
}

func TestBringUp_MotorSkipsCalibration(t *testing.T) {
	p, sender := newScriptedPort(PortMotor, testOptions(), hubScript([]string{"POWER", "SPEED", "POS", "APOS"}, 0))

	if err := p.BringUp(context.Background()); err != nil {
		t.Fatalf("BringUp failed: %v", err)
	}
	if !p.Initialized() {
		t.Error("motor port should be ready")
	}
	if p.AbsPosMode() != 3 {
		t.Errorf("AbsPosMode() = %d, want 3", p.AbsPosMode())
	}
	if n := len(sender.messages()); n != 5 {
		t.Errorf("sent %d messages, want 5 (info + 4 names)", n)
	}
}

func TestBringUp_Timeout(t *testing.T) {
	opts := testOptions()
	opts.ReplyTimeout = 50 * time.Millisecond
	p, sender := newScriptedPort(PortServo, opts, nil)

	start := time.Now()
	err := p.BringUp(context.Background())
	if !errors.Is(err, ErrReplyTimeout) {
		t.Fatalf("BringUp error = %v, want ErrReplyTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < opts.ReplyTimeout {
		t.Errorf("returned after %v, before the reply timeout", elapsed)
	}

	// Nothing more is sent for the aborted sequence
	time.Sleep(2 * opts.ReplyTimeout)
	if n := len(sender.messages()); n != 1 {
		t.Errorf("sent %d messages, want only the port info request", n)
	}
	if p.Initialized() || p.State() != StateUninitialized {
		t.Errorf("state = %v, want UNINITIALIZED", p.State())
	}
	if !errors.Is(p.LastError(), ErrReplyTimeout) {
		t.Errorf("LastError() = %v", p.LastError())
	}
}

func TestBringUp_NoAbsolutePositionMode(t *testing.T) {
	for _, kind := range []PortKind{PortServo, PortStepper} {
		t.Run(kind.String(), func(t *testing.T) {
			p, sender := newScriptedPort(kind, testOptions(), hubScript([]string{"POWER", "SPEED"}, 0))

			err := p.BringUp(context.Background())
			if !errors.Is(err, ErrNoAbsolutePositionMode) {
				t.Fatalf("BringUp error = %v, want ErrNoAbsolutePositionMode", err)
			}
			if p.Initialized() {
				t.Error("port should not be ready")
			}
			if p.AbsPosMode() != -1 {
				t.Errorf("AbsPosMode() = %d, want -1", p.AbsPosMode())
			}
			if n := len(sender.messages()); n != 3 {
				t.Errorf("sent %d messages, want 3", n)
			}
		})
	}
}

func TestBringUp_IgnoresOtherPortsAndModes(t *testing.T) {
	script := hubScript([]string{"APOS"}, 250)
	p, _ := newScriptedPort(PortStepper, testOptions(), func(msg controlplus.Message) []controlplus.Message {
		replies := []controlplus.Message{
			&controlplus.PortInfo{Port: 7, InfoType: controlplus.PortInfoModeInfo, ModeCount: 9},
			&controlplus.PortValueSingle{Port: 7, Value: 99, Width: 4},
			&controlplus.PortOutputCommandFeedback{Entries: []controlplus.FeedbackEntry{{Port: 7, Status: controlplus.FeedbackIdle}}},
		}
		return append(replies, script(msg)...)
	})

	if err := p.BringUp(context.Background()); err != nil {
		t.Fatalf("BringUp failed: %v", err)
	}
	if p.NumModes() != 1 {
		t.Errorf("NumModes() = %d, want 1", p.NumModes())
	}
}

func TestBringUp_BusyFeedbackRewaits(t *testing.T) {
	opts := testOptions()
	var p *Port
	reply := func(msg controlplus.Message) []controlplus.Message {
		if g, ok := msg.(*controlplus.GotoAbsolutePosition); ok {
			// Idle arrives later than one reply timeout, after two busy reports
			go func() {
				for i := 0; i < 2; i++ {
					time.Sleep(opts.ReplyTimeout * 3 / 4)
					p.OnMessage(&controlplus.PortOutputCommandFeedback{Entries: []controlplus.FeedbackEntry{{Port: g.Port, Status: controlplus.FeedbackBusyFull}}})
				}
				time.Sleep(opts.ReplyTimeout / 2)
				p.OnMessage(&controlplus.PortOutputCommandFeedback{Entries: []controlplus.FeedbackEntry{{Port: g.Port, Status: controlplus.FeedbackIdle}}})
			}()
			return nil
		}
		return hubScript([]string{"APOS"}, -40)(msg)
	}
	p, _ = newScriptedPort(PortServo, opts, reply)

	if err := p.BringUp(context.Background()); err != nil {
		t.Fatalf("BringUp failed: %v", err)
	}
	if !p.Initialized() {
		t.Error("port should be ready")
	}
}

func TestBringUp_CommandDiscarded(t *testing.T) {
	reply := func(msg controlplus.Message) []controlplus.Message {
		if g, ok := msg.(*controlplus.GotoAbsolutePosition); ok {
			return []controlplus.Message{&controlplus.PortOutputCommandFeedback{Entries: []controlplus.FeedbackEntry{{Port: g.Port, Status: controlplus.FeedbackCommandDiscarded}}}}
		}
		return hubScript([]string{"APOS"}, 10)(msg)
	}
	p, _ := newScriptedPort(PortServo, testOptions(), reply)

	if err := p.BringUp(context.Background()); !errors.Is(err, ErrCommandDiscarded) {
		t.Errorf("BringUp error = %v, want ErrCommandDiscarded", err)
	}
}

func TestBringUp_CancelDoesNotRecordError(t *testing.T) {
	opts := testOptions()
	opts.ReplyTimeout = time.Minute
	p, _ := newScriptedPort(PortServo, opts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.BringUp(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("BringUp error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("BringUp did not return after cancel")
	}
	if p.LastError() != nil {
		t.Errorf("LastError() = %v, want nil", p.LastError())
	}
	if p.State() != StateUninitialized {
		t.Errorf("state = %v", p.State())
	}
}

func TestBringUp_SettleDelay(t *testing.T) {
	opts := testOptions()
	opts.SettleDelay = 50 * time.Millisecond
	p, _ := newScriptedPort(PortMotor, opts, hubScript([]string{"POWER"}, 0))

	start := time.Now()
	if err := p.BringUp(context.Background()); err != nil {
		t.Fatalf("BringUp failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < opts.SettleDelay {
		t.Errorf("bring-up finished after %v, before the settle delay", elapsed)
	}
}

func TestWaitBringUp(t *testing.T) {
	p, _ := newScriptedPort(PortServo, testOptions(), hubScript([]string{"APOS"}, 5))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	if err := p.WaitBringUp(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitBringUp before attach = %v, want deadline exceeded", err)
	}
	cancel()

	go p.BringUp(context.Background())

	ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.WaitBringUp(ctx); err != nil {
		t.Errorf("WaitBringUp() = %v", err)
	}
}

func TestWaitBringUp_ReturnsFailure(t *testing.T) {
	opts := testOptions()
	opts.ReplyTimeout = 20 * time.Millisecond
	p, _ := newScriptedPort(PortMotor, opts, nil)

	go p.BringUp(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.WaitBringUp(ctx); !errors.Is(err, ErrReplyTimeout) {
		t.Errorf("WaitBringUp() = %v, want ErrReplyTimeout", err)
	}
}

func TestPort_ResetClearsState(t *testing.T) {
	p, _ := readyPort(t, PortServo, testOptions())
	p.Reset()
	if p.Initialized() || p.AbsPosMode() != -1 || p.NumModes() != 0 {
		t.Errorf("after Reset: state=%v absPos=%d modes=%d", p.State(), p.AbsPosMode(), p.NumModes())
	}
}

// ============================================================
// Action Tests
// ============================================================

func mapping(button byte, trigger Trigger, kind ActionKind, on, off int32) Mapping {
	return Mapping{Button: button, Trigger: trigger, Action: Action{Kind: kind, OnValue: on, OffValue: off}}
}

func TestActions_IgnoredBeforeReady(t *testing.T) {
	p, sender := newScriptedPort(PortMotor, testOptions(), nil, mapping('A', TriggerContinuous, ActionValue, 50, 0))
	p.ButtonDown('A')
	p.ButtonUp('A')
	if n := len(sender.messages()); n != 0 {
		t.Errorf("sent %d messages before bring-up", n)
	}
}

func TestActions(t *testing.T) {
	tests := []struct {
		name     string
		kind     PortKind
		opts     func(*Options)
		mappings []Mapping
		initial  int32
		presses  []func(p *Port)
		want     []controlplus.Message
		position int32
	}{
		{
			name:     "value speed continuous",
			kind:     PortMotor,
			mappings: []Mapping{mapping('A', TriggerContinuous, ActionValue, 80, -5)},
			presses:  []func(*Port){down('A'), up('A')},
			want: []controlplus.Message{
				controlplus.NewStartSpeed(0, 80, 100, controlplus.ProfileAcceleration),
				controlplus.NewStartSpeed(0, -5, 100, controlplus.ProfileDeceleration),
			},
		},
		{
			name:     "value speed release zero",
			kind:     PortMotor,
			opts:     func(o *Options) { o.ValueRelease = ReleaseZero },
			mappings: []Mapping{mapping('A', TriggerContinuous, ActionValue, 80, -5)},
			presses:  []func(*Port){down('A'), up('A')},
			want: []controlplus.Message{
				controlplus.NewStartSpeed(0, 80, 100, controlplus.ProfileAcceleration),
				controlplus.NewStartSpeed(0, 0, 100, controlplus.ProfileDeceleration),
			},
		},
		{
			name:     "value power",
			kind:     PortMotor,
			opts:     func(o *Options) { o.ValueCommand = ValuePower },
			mappings: []Mapping{mapping('B', TriggerContinuous, ActionValue, -100, 0)},
			presses:  []func(*Port){down('B'), up('B')},
			want: []controlplus.Message{
				controlplus.NewMotorPower(0, -100),
				controlplus.NewMotorPower(0, 0),
			},
		},
		{
			name:     "servo speed clamps to signed byte",
			kind:     PortServo,
			mappings: []Mapping{mapping('A', TriggerContinuous, ActionValue, 1000, -1000)},
			presses:  []func(*Port){down('A'), up('A')},
			want: []controlplus.Message{
				controlplus.NewStartSpeed(0, 127, 100, controlplus.ProfileAcceleration),
				controlplus.NewStartSpeed(0, -128, 100, controlplus.ProfileDeceleration),
			},
		},
		{
			name:     "power clamps to signed byte",
			kind:     PortStepper,
			opts:     func(o *Options) { o.ValueCommand = ValuePower },
			mappings: []Mapping{mapping('A', TriggerSingle, ActionValue, -300, 0)},
			presses:  []func(*Port){down('A')},
			want: []controlplus.Message{
				controlplus.NewMotorPower(0, -128),
			},
		},
		{
			name:     "single value fires on press only",
			kind:     PortMotor,
			mappings: []Mapping{mapping('C', TriggerSingle, ActionValue, 30, 0)},
			presses:  []func(*Port){down('C'), up('C')},
			want: []controlplus.Message{
				controlplus.NewStartSpeed(0, 30, 100, controlplus.ProfileAcceleration),
			},
		},
		{
			name: "steps accumulate",
			kind: PortServo,
			mappings: []Mapping{
				mapping('R', TriggerSingle, ActionStepForward, 90, 0),
				mapping('L', TriggerContinuous, ActionStepBackward, 45, 0),
			},
			presses: []func(*Port){down('R'), down('R'), down('L'), up('L')},
			want: []controlplus.Message{
				controlplus.NewGotoAbsolutePosition(0, 90, 60, 60, controlplus.EndStateHold),
				controlplus.NewGotoAbsolutePosition(0, 180, 60, 60, controlplus.EndStateHold),
				controlplus.NewGotoAbsolutePosition(0, 135, 60, 60, controlplus.EndStateHold),
			},
			position: 135,
		},
		{
			name:     "absolute relative to initial position",
			kind:     PortServo,
			mappings: []Mapping{mapping('X', TriggerContinuous, ActionAbsolute, 50, -20)},
			initial:  100,
			presses:  []func(*Port){down('X'), up('X')},
			want: []controlplus.Message{
				controlplus.NewGotoAbsolutePosition(0, -50, 60, 60, controlplus.EndStateHold),
				controlplus.NewGotoAbsolutePosition(0, -120, 60, 60, controlplus.EndStateHold),
			},
			position: -120,
		},
		{
			name: "single and continuous on one button",
			kind: PortServo,
			mappings: []Mapping{
				mapping('Y', TriggerSingle, ActionStepForward, 10, 0),
				mapping('Y', TriggerContinuous, ActionAbsolute, 0, 40),
			},
			presses: []func(*Port){down('Y'), up('Y')},
			want: []controlplus.Message{
				controlplus.NewGotoAbsolutePosition(0, 0, 60, 60, controlplus.EndStateHold),
				controlplus.NewGotoAbsolutePosition(0, 10, 60, 60, controlplus.EndStateHold),
				controlplus.NewGotoAbsolutePosition(0, 40, 60, 60, controlplus.EndStateHold),
			},
			position: 40,
		},
		{
			name:     "unmapped button",
			kind:     PortMotor,
			mappings: []Mapping{mapping('A', TriggerContinuous, ActionValue, 80, 0)},
			presses:  []func(*Port){down('Z'), up('Z')},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			p, sender := readyPort(t, tt.kind, opts, tt.mappings...)
			p.mu.Lock()
			p.initialPos = tt.initial
			p.mu.Unlock()

			for _, press := range tt.presses {
				press(p)
			}

			got := sender.messages()
			if len(got) != len(tt.want) {
				t.Fatalf("sent %d messages, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range tt.want {
				if !reflect.DeepEqual(got[i], tt.want[i]) {
					t.Errorf("message %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
			if p.Position() != tt.position {
				t.Errorf("Position() = %d, want %d", p.Position(), tt.position)
			}
		})
	}
}

func down(b byte) func(*Port) { return func(p *Port) { p.ButtonDown(b) } }
func up(b byte) func(*Port) { return func(p *Port) { p.ButtonUp(b) } }

func TestParseEnums(t *testing.T) {
	if k, err := ParsePortKind("stepper"); err != nil || k != PortStepper {
		t.Errorf("ParsePortKind(stepper) = %v, %v", k, err)
	}
	if _, err := ParsePortKind("sensor"); err == nil {
		t.Error("ParsePortKind(sensor) should fail")
	}
	if a, err := ParseActionKind("position"); err != nil || a != ActionAbsolute {
		t.Errorf("ParseActionKind(position) = %v, %v", a, err)
	}
	if v, err := ParseValueCommand("power"); err != nil || v != ValuePower {
		t.Errorf("ParseValueCommand(power) = %v, %v", v, err)
	}
	if r, err := ParseValueRelease("zero"); err != nil || r != ReleaseZero {
		t.Errorf("ParseValueRelease(zero) = %v, %v", r, err)
	}
	if _, err := ParseTrigger("hold"); err == nil {
		t.Error("ParseTrigger(hold) should fail")
	}
	if s := StateCalibrating.String(); s != "CALIBRATING" {
		t.Errorf("StateCalibrating.String() = %q", s)
	}
}
