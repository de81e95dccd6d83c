// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/hubpad/pkg/controlplus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Defaults for Options
const (
	DefaultReplyTimeout = 1000 * time.Millisecond
	DefaultSettleDelay  = 0
)

// Sender queues outbound messages. *session.Session implements it.
type Sender interface {
	Enqueue(msg controlplus.Message)
}

// Options tune port bring-up and button actions
type Options struct {
	// ReplyTimeout bounds each wait for a hub reply during bring-up
	ReplyTimeout time.Duration
	// SettleDelay is slept after an attach event before bring-up starts
	SettleDelay  time.Duration
	ValueCommand ValueCommand
	ValueRelease ValueRelease
}

// DefaultOptions returns the options used when none are given
func DefaultOptions() Options {
	return Options{
		ReplyTimeout: DefaultReplyTimeout,
		SettleDelay:  DefaultSettleDelay,
		ValueCommand: ValueSpeed,
		ValueRelease: ReleaseOff,
	}
}

// PortKind is the device type configured for a port
type PortKind int

const (
	PortMotor PortKind = iota
	PortServo
	PortStepper
)

func (k PortKind) String() string {
	switch k {
	case PortMotor:
		return "motor"
	case PortServo:
		return "servo"
	case PortStepper:
		return "stepper"
	default:
		return fmt.Sprintf("PortKind(%d)", int(k))
	}
}

// ParsePortKind parses a profile port type
func ParsePortKind(s string) (PortKind, error) {
	switch s {
	case "motor":
		return PortMotor, nil
	case "servo":
		return PortServo, nil
	case "stepper":
		return PortStepper, nil
	default:
		return 0, fmt.Errorf("unknown port type %q", s)
	}
}

// positional reports whether the port needs absolute position calibration
func (k PortKind) positional() bool {
	return k == PortServo || k == PortStepper
}

// State is the bring-up state of a port
type State int

const (
	StateUninitialized State = iota
	StateDiscoveringModes
	StateNamingModes
	StateCalibrating
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateDiscoveringModes:
		return "DISCOVERING_MODES"
	case StateNamingModes:
		return "NAMING_MODES"
	case StateCalibrating:
		return "CALIBRATING"
	case StateReady:
		return "READY"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrNotReady is returned by WaitBringUp when bring-up ended without the
// port becoming ready and no error was recorded
var ErrNotReady = errors.New("port not ready")

// Port is one configured hub port. Inbound messages arrive through
// OnMessage; bring-up runs on a task started by the Hub.
type Port struct {
	id         uint8
	kind       PortKind
	sender     Sender
	opts       Options
	single     map[byte]Action
	continuous map[byte]Action
	logger     zerolog.Logger

	mu         sync.Mutex
	state      State
	numModes   int
	absPosMode int
	modeNames  []string
	position   int32
	initialPos int32
	lastValue  int32
	lastErr    error
	waiter     *waiter
	changed    chan struct{}
}

// NewPort creates a port from its profile configuration
func NewPort(cfg PortConfig, sender Sender, opts Options) *Port {
	p := &Port{
		id:         cfg.ID,
		kind:       cfg.Kind,
		sender:     sender,
		opts:       opts,
		single:     make(map[byte]Action),
		continuous: make(map[byte]Action),
		logger:     log.With().Uint8("port", cfg.ID).Logger(),
		absPosMode: -1,
		changed:    make(chan struct{}),
	}
	for _, m := range cfg.Mappings {
		if m.Trigger == TriggerContinuous {
			p.continuous[m.Button] = m.Action
		} else {
			p.single[m.Button] = m.Action
		}
	}
	return p
}

// ID returns the hub port number
func (p *Port) ID() uint8 { return p.id }

// Kind returns the configured device type
func (p *Port) Kind() PortKind { return p.kind }

// State returns the bring-up state
func (p *Port) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Initialized reports whether bring-up completed and buttons are live
func (p *Port) Initialized() bool {
	return p.State() == StateReady
}

// Position returns the tracked target position
func (p *Port) Position() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// InitialPosition returns the absolute position read during calibration,
// or 0 once the encoder has been preset
func (p *Port) InitialPosition() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialPos
}

// LastValue returns the most recent PortValueSingle reading
func (p *Port) LastValue() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastValue
}

// NumModes returns the mode count reported by the hub
func (p *Port) NumModes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.numModes
}

// ModeNames returns the discovered mode names indexed by mode
func (p *Port) ModeNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.modeNames...)
}

// AbsPosMode returns the absolute position mode index, or -1 if none was
// found
func (p *Port) AbsPosMode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.absPosMode
}

// LastError returns the error that aborted the last bring-up, if any
func (p *Port) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// WaitBringUp blocks until the port is ready, bring-up fails, or ctx ends.
// A port that has not been attached yet is waited for.
func (p *Port) WaitBringUp(ctx context.Context) error {
	for {
		p.mu.Lock()
		state, lastErr, changed := p.state, p.lastErr, p.changed
		p.mu.Unlock()

		switch {
		case state == StateReady:
			return nil
		case state == StateUninitialized && lastErr != nil:
			return lastErr
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// OnMessage handles one inbound message addressed to this port
func (p *Port) OnMessage(msg controlplus.Message) {
	p.mu.Lock()
	switch m := msg.(type) {
	case *controlplus.PortInfo:
		if m.Port == p.id && m.InfoType == controlplus.PortInfoModeInfo {
			p.numModes = int(m.ModeCount)
		}
	case *controlplus.PortValueSingle:
		if m.Port == p.id {
			p.lastValue = m.Value
		}
	}
	w := p.waiter
	state := p.state
	p.mu.Unlock()

	if w != nil && w.offer(msg) {
		return
	}
	if state == StateReady {
		p.logger.Debug().Stringer("msg", msg).Msg("Telemetry")
	}
}

// setState must be called with p.mu held. Waiters are woken even when the
// state is unchanged so they can see a new lastErr.
func (p *Port) setState(s State) {
	if p.state != s {
		p.logger.Debug().Stringer("from", p.state).Stringer("to", s).Msg("Port state")
	}
	p.state = s
	close(p.changed)
	p.changed = make(chan struct{})
}

// Reset returns the port to Uninitialized and clears discovered state
func (p *Port) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

func (p *Port) reset() {
	p.numModes = 0
	p.absPosMode = -1
	p.modeNames = nil
	p.position = 0
	p.initialPos = 0
	p.waiter = nil
	p.setState(StateUninitialized)
}
