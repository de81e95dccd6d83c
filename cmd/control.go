// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/hubpad/pkg/controlplus"
	"github.com/Thermoquad/hubpad/pkg/hub"
	"github.com/Thermoquad/hubpad/pkg/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	controlRecord      string
	controlHoldTimeout time.Duration
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for driving a hub from the keyboard",
	Long: `Drive the profile hub from the keyboard via an interactive terminal UI.

Each key acts as a gamepad button: the profile maps it to speed, power,
step or position commands on the hub ports. Terminals report key presses but
not releases, so a key counts as held while it keeps auto-repeating and is
released --hold-timeout after the last repeat.

Features:
  - Port bring-up status (modes, calibration, position)
  - Held keys and the messages they send
  - Statistics tracking
  - Event logging
  - Automatic reconnection on connection loss

Press Esc or Ctrl+C to quit. Logs are written to hubpad.log unless
--log-file is set.

Supports BLE, serial bridge and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().StringVar(&controlRecord, "record", "", "Record frames to a capture file")
	controlCmd.Flags().DurationVar(&controlHoldTimeout, "hold-timeout", 500*time.Millisecond, "Release a key this long after its last repeat")
}

// connectionManager handles the hub lifecycle and reconnection
type connectionManager struct {
	hub      *hub.Hub
	connInfo string
	p        *tea.Program
	done     chan struct{}
	events   chan controlplus.Message
}

func runControl(cmd *cobra.Command, args []string) error {
	if err := setupLogging(true); err != nil {
		return err
	}

	var sessionOpts []session.Option
	if controlRecord != "" {
		w, closeCapture, err := openCapture(controlRecord, "control")
		if err != nil {
			return err
		}
		defer closeCapture()
		sessionOpts = append(sessionOpts, session.WithTap(w.Tap))
	}

	h, connInfo, err := newHub(sessionOpts...)
	if err != nil {
		return err
	}

	cm := &connectionManager{
		hub:      h,
		connInfo: connInfo,
		done:     make(chan struct{}),
		events:   make(chan controlplus.Message, 256),
	}
	h.Observe(session.SinkFunc(cm.observe))

	m := initialControlModel(h, connInfo, controlHoldTimeout)
	p := tea.NewProgram(m, tea.WithAltScreen())
	cm.p = p

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		cm.run()
	}()
	go cm.batchLoop()

	_, runErr := p.Run()
	close(cm.done)
	<-runDone
	if err := h.Disconnect(); err != nil {
		log.Warn().Err(err).Msg("Disconnect failed")
	}
	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}

// observe is called on the session dispatch goroutine and must not block
func (cm *connectionManager) observe(msg controlplus.Message) {
	select {
	case cm.events <- msg:
	default:
	}
}

// run connects, waits for the connection to drop, and reconnects with
// exponential backoff until shutdown
func (cm *connectionManager) run() {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-cm.done:
				cancel()
			case <-ctx.Done():
			}
		}()
		err := cm.hub.Connect(ctx)
		cancel()

		if err == nil {
			backoff = 1 * time.Second
			cm.p.Send(connectedMsg{connInfo: cm.connInfo})

			if !cm.waitLost() {
				return
			}
			cm.p.Send(connectionLostMsg{})
			cm.hub.Disconnect()
		} else {
			log.Error().Err(err).Msg("Connect failed")
			cm.hub.Disconnect()
			cm.p.Send(connectFailedMsg{err: err})
		}

		select {
		case <-cm.done:
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// waitLost blocks until the link drops. Returns false if shutdown was
// requested first.
func (cm *connectionManager) waitLost() bool {
	select {
	case <-cm.done:
		return false
	case <-linkDone(cm.hub.Link()):
		return true
	}
}

// batchLoop forwards observed messages to the TUI at a fixed rate
func (cm *connectionManager) batchLoop() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-cm.done:
			return
		case <-ticker.C:
			var batch controlBatchMsg
		drainLoop:
			for {
				select {
				case msg := <-cm.events:
					batch.messages = append(batch.messages, msg)
				default:
					break drainLoop
				}
			}
			if len(batch.messages) > 0 {
				cm.p.Send(batch)
			}
		}
	}
}
