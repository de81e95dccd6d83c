// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/hubpad/pkg/controlplus"
)

// Bring-up errors. Both leave the port Uninitialized.
var (
	ErrReplyTimeout           = errors.New("timed out waiting for hub reply")
	ErrNoAbsolutePositionMode = errors.New("port has no absolute position mode")
	ErrCommandDiscarded       = errors.New("hub discarded calibration command")
)

// Calibration parameters
const (
	calibrationDelta    = 5
	calibrationSpeed    = 10
	calibrationMaxPower = 60
)

// waiter is a single-slot mailbox for the reply a bring-up step expects.
// A newer matching message replaces an unread one.
type waiter struct {
	expect controlplus.MessageType
	match  func(controlplus.Message) bool
	ch     chan controlplus.Message
}

func newWaiter(expect controlplus.MessageType, match func(controlplus.Message) bool) *waiter {
	return &waiter{expect: expect, match: match, ch: make(chan controlplus.Message, 1)}
}

// offer delivers msg if it is the expected reply. Called only from the
// inbound dispatch goroutine.
func (w *waiter) offer(msg controlplus.Message) bool {
	if msg.Type() != w.expect || !w.match(msg) {
		return false
	}
	select {
	case w.ch <- msg:
		return true
	default:
	}
	select {
	case <-w.ch:
	default:
	}
	select {
	case w.ch <- msg:
	default:
	}
	return true
}

// arm registers w as the port's pending reply. It must be called before the
// request is sent so a fast reply is not missed.
func (p *Port) arm(w *waiter) {
	p.mu.Lock()
	p.waiter = w
	p.mu.Unlock()
}

func (p *Port) disarm(w *waiter) {
	p.mu.Lock()
	if p.waiter == w {
		p.waiter = nil
	}
	p.mu.Unlock()
}

// await blocks for the next reply on w, bounded by the reply timeout
func (p *Port) await(ctx context.Context, w *waiter) (controlplus.Message, error) {
	timer := time.NewTimer(p.opts.ReplyTimeout)
	defer timer.Stop()

	select {
	case msg := <-w.ch:
		return msg, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s", ErrReplyTimeout, controlplus.FormatMessageType(w.expect))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// request sends msg and waits for the first reply accepted by w
func (p *Port) request(ctx context.Context, msg controlplus.Message, w *waiter) (controlplus.Message, error) {
	p.arm(w)
	defer p.disarm(w)
	p.sender.Enqueue(msg)
	return p.await(ctx, w)
}

func (p *Port) forPort(port uint8) bool { return port == p.id }

// BringUp runs the port's discovery and calibration sequence. It returns
// when the port is ready, a step fails, or ctx is cancelled. Failures leave
// the port Uninitialized with LastError set; cancellation does not record
// an error.
func (p *Port) BringUp(ctx context.Context) error {
	p.mu.Lock()
	p.reset()
	p.lastErr = nil
	p.mu.Unlock()

	if p.opts.SettleDelay > 0 {
		select {
		case <-time.After(p.opts.SettleDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := p.bringUp(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.waiter = nil
		if !errors.Is(err, context.Canceled) {
			p.lastErr = err
		}
		p.setState(StateUninitialized)
		return err
	}
	p.setState(StateReady)
	return nil
}

func (p *Port) bringUp(ctx context.Context) error {
	logger := p.logger.With().Stringer("kind", p.kind).Logger()
	logger.Info().Msg("Starting port bring-up")

	// Mode count
	p.transition(StateDiscoveringModes)
	reply, err := p.request(ctx,
		controlplus.NewPortInfoRequest(p.id, controlplus.PortInfoModeInfo),
		newWaiter(controlplus.MsgPortInfo, func(m controlplus.Message) bool {
			info := m.(*controlplus.PortInfo)
			return p.forPort(info.Port) && info.InfoType == controlplus.PortInfoModeInfo
		}))
	if err != nil {
		return p.fail("port info", err)
	}
	numModes := int(reply.(*controlplus.PortInfo).ModeCount)
	logger.Debug().Int("modes", numModes).Msg("Port modes discovered")

	// Mode names
	p.transition(StateNamingModes)
	for i := 0; i < numModes; i++ {
		mode := uint8(i)
		reply, err := p.request(ctx,
			controlplus.NewPortModeInfoRequest(p.id, mode, controlplus.ModeInfoName),
			newWaiter(controlplus.MsgPortModeInfo, func(m controlplus.Message) bool {
				info := m.(*controlplus.PortModeInfo)
				return p.forPort(info.Port) && info.Mode == mode && info.InfoType == controlplus.ModeInfoName
			}))
		if err != nil {
			return p.fail(fmt.Sprintf("mode %d name", mode), err)
		}
		name := reply.(*controlplus.PortModeInfo).Name
		p.mu.Lock()
		p.modeNames = append(p.modeNames, name)
		if name == controlplus.ModeNameAbsolutePosition && p.absPosMode < 0 {
			p.absPosMode = int(mode)
		}
		p.mu.Unlock()
		logger.Debug().Uint8("mode", mode).Str("name", name).Msg("Port mode named")
	}

	if !p.kind.positional() {
		logger.Info().Msg("Port bring-up complete")
		return nil
	}

	absPosMode := p.AbsPosMode()
	if absPosMode < 0 {
		return p.fail("calibration", ErrNoAbsolutePositionMode)
	}

	// Read the absolute position
	p.transition(StateCalibrating)
	reply, err = p.request(ctx,
		controlplus.NewPortInputFormatSetup(p.id, uint8(absPosMode), calibrationDelta, true),
		newWaiter(controlplus.MsgPortValueSingle, func(m controlplus.Message) bool {
			return p.forPort(m.(*controlplus.PortValueSingle).Port)
		}))
	if err != nil {
		return p.fail("absolute position", err)
	}
	initial := reply.(*controlplus.PortValueSingle).Value
	p.mu.Lock()
	p.initialPos = initial
	p.position = initial
	p.mu.Unlock()
	logger.Debug().Int32("position", initial).Msg("Absolute position read")

	// Re-centre on zero and wait until the motor settles
	if err := p.recentre(ctx, initial); err != nil {
		return p.fail("re-centre", err)
	}

	p.sender.Enqueue(controlplus.NewPositionPreset(p.id, 0))
	p.mu.Lock()
	p.initialPos = 0
	p.position = 0
	p.mu.Unlock()

	logger.Info().Int32("initial_position", initial).Msg("Port calibrated")
	return nil
}

// recentre drives the motor to -initial and waits for idle feedback. Busy
// feedback restarts the reply timeout.
func (p *Port) recentre(ctx context.Context, initial int32) error {
	w := newWaiter(controlplus.MsgPortOutputCommandFeedback, func(m controlplus.Message) bool {
		_, ok := m.(*controlplus.PortOutputCommandFeedback).Status(p.id)
		return ok
	})
	p.arm(w)
	defer p.disarm(w)

	p.sender.Enqueue(controlplus.NewGotoAbsolutePosition(p.id, -initial, calibrationSpeed, calibrationMaxPower, controlplus.EndStateBrake))
	for {
		reply, err := p.await(ctx, w)
		if err != nil {
			return err
		}
		status, _ := reply.(*controlplus.PortOutputCommandFeedback).Status(p.id)
		switch {
		case status.IsIdle():
			return nil
		case status&controlplus.FeedbackCommandDiscarded != 0:
			return ErrCommandDiscarded
		}
		p.logger.Debug().Str("status", controlplus.FormatFeedbackStatus(status)).Msg("Motor still busy")
	}
}

func (p *Port) transition(s State) {
	p.mu.Lock()
	p.setState(s)
	p.mu.Unlock()
}

func (p *Port) fail(step string, err error) error {
	if errors.Is(err, context.Canceled) {
		p.logger.Debug().Str("step", step).Msg("Port bring-up cancelled")
		return err
	}
	p.logger.Error().Err(err).Str("step", step).Msg("Port bring-up aborted")
	return fmt.Errorf("%s: %w", step, err)
}
