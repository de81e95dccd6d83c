// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hub

import (
	"fmt"
	"math"

	"github.com/Thermoquad/hubpad/pkg/controlplus"
)

// ActionKind selects what a mapped button does to its port
type ActionKind int

const (
	ActionValue ActionKind = iota
	ActionStepForward
	ActionStepBackward
	ActionAbsolute
)

func (k ActionKind) String() string {
	switch k {
	case ActionValue:
		return "value"
	case ActionStepForward:
		return "stepForward"
	case ActionStepBackward:
		return "stepBackward"
	case ActionAbsolute:
		return "position"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// ParseActionKind parses a profile mapping type
func ParseActionKind(s string) (ActionKind, error) {
	switch s {
	case "value":
		return ActionValue, nil
	case "stepForward":
		return ActionStepForward, nil
	case "stepBackward":
		return ActionStepBackward, nil
	case "position":
		return ActionAbsolute, nil
	default:
		return 0, fmt.Errorf("unknown mapping type %q", s)
	}
}

// Trigger selects when a mapping fires. Single mappings fire on press,
// continuous mappings fire on press and again on release.
type Trigger int

const (
	TriggerSingle Trigger = iota
	TriggerContinuous
)

func (t Trigger) String() string {
	switch t {
	case TriggerSingle:
		return "single"
	case TriggerContinuous:
		return "continuous"
	default:
		return fmt.Sprintf("Trigger(%d)", int(t))
	}
}

// ParseTrigger parses a profile trigger type
func ParseTrigger(s string) (Trigger, error) {
	switch s {
	case "single":
		return TriggerSingle, nil
	case "continuous":
		return TriggerContinuous, nil
	default:
		return 0, fmt.Errorf("unknown trigger type %q", s)
	}
}

// Action is the effect of one button mapping
type Action struct {
	Kind     ActionKind
	OnValue  int32
	OffValue int32
}

// ValueCommand selects the command sent for value actions
type ValueCommand int

const (
	// ValueSpeed sends StartSpeed with an acceleration profile on press and
	// a deceleration profile on release
	ValueSpeed ValueCommand = iota
	// ValuePower writes the value straight to the motor power mode
	ValuePower
)

// ParseValueCommand parses "speed" or "power"
func ParseValueCommand(s string) (ValueCommand, error) {
	switch s {
	case "speed":
		return ValueSpeed, nil
	case "power":
		return ValuePower, nil
	default:
		return 0, fmt.Errorf("unknown value command %q (want speed or power)", s)
	}
}

// ValueRelease selects what a continuous value action sends on release
type ValueRelease int

const (
	// ReleaseOff sends the mapping's off_value
	ReleaseOff ValueRelease = iota
	// ReleaseZero always sends zero
	ReleaseZero
)

// ParseValueRelease parses "off" or "zero"
func ParseValueRelease(s string) (ValueRelease, error) {
	switch s {
	case "off":
		return ReleaseOff, nil
	case "zero":
		return ReleaseZero, nil
	default:
		return 0, fmt.Errorf("unknown value release %q (want off or zero)", s)
	}
}

// Motion parameters used by position actions
const (
	actionSpeed    = 60
	actionMaxPower = 60
	valueMaxPower  = 100
)

// ButtonDown runs the mappings bound to button b. Ignored until the port is
// ready.
func (p *Port) ButtonDown(b byte) {
	if !p.Initialized() {
		return
	}
	if a, ok := p.continuous[b]; ok {
		p.execute(a, true)
	}
	if a, ok := p.single[b]; ok {
		p.execute(a, true)
	}
}

// ButtonUp runs the release half of continuous mappings bound to button b.
// Ignored until the port is ready.
func (p *Port) ButtonUp(b byte) {
	if !p.Initialized() {
		return
	}
	if a, ok := p.continuous[b]; ok {
		p.execute(a, false)
	}
}

func (p *Port) execute(a Action, press bool) {
	msg := p.actionMessage(a, press)
	if msg == nil {
		return
	}
	p.logger.Debug().Stringer("action", a.Kind).Bool("press", press).Stringer("msg", msg).Msg("Button action")
	p.sender.Enqueue(msg)
}

// actionMessage builds the command for an action and updates the tracked
// position. Steps only move on press.
func (p *Port) actionMessage(a Action, press bool) controlplus.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch a.Kind {
	case ActionValue:
		value := a.OnValue
		if !press {
			value = 0
			if p.opts.ValueRelease == ReleaseOff {
				value = a.OffValue
			}
		}
		speed := clampInt8(value)
		if p.opts.ValueCommand == ValuePower {
			return controlplus.NewMotorPower(p.id, speed)
		}
		profile := uint8(controlplus.ProfileAcceleration)
		if !press {
			profile = controlplus.ProfileDeceleration
		}
		return controlplus.NewStartSpeed(p.id, speed, valueMaxPower, profile)

	case ActionAbsolute:
		target := a.OnValue
		if !press {
			target = a.OffValue
		}
		p.position = target - p.initialPos
		return controlplus.NewGotoAbsolutePosition(p.id, p.position, actionSpeed, actionMaxPower, controlplus.EndStateHold)

	case ActionStepForward, ActionStepBackward:
		if !press {
			return nil
		}
		if a.Kind == ActionStepForward {
			p.position += a.OnValue
		} else {
			p.position -= a.OnValue
		}
		return controlplus.NewGotoAbsolutePosition(p.id, p.position, actionSpeed, actionMaxPower, controlplus.EndStateHold)
	}
	return nil
}

func clampInt8(v int32) int8 {
	switch {
	case v > math.MaxInt8:
		return math.MaxInt8
	case v < math.MinInt8:
		return math.MinInt8
	}
	return int8(v)
}
