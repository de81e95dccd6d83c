// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package hub drives the ports of one Control+ hub: it routes inbound
// messages to ports, runs each port's bring-up when the hub reports it
// attached, and turns button presses into output commands.
package hub

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Thermoquad/hubpad/pkg/controlplus"
	"github.com/Thermoquad/hubpad/pkg/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Hub owns the session to one physical hub and its configured ports
type Hub struct {
	cfg     HubConfig
	link    session.Link
	session *session.Session
	ports   map[uint8]*Port
	order   []uint8
	logger  zerolog.Logger

	mu         sync.Mutex
	supervisor *Supervisor
	cancel     context.CancelFunc
	observer   session.Sink
}

// New creates a hub from its configuration. Nothing is sent until Connect.
func New(cfg HubConfig, link session.Link, opts Options, sessionOpts ...session.Option) *Hub {
	h := &Hub{
		cfg:    cfg,
		link:   link,
		ports:  make(map[uint8]*Port),
		logger: log.With().Str("hub", cfg.Name).Logger(),
	}
	h.session = session.New(link, h, sessionOpts...)
	for _, pc := range cfg.Ports {
		h.ports[pc.ID] = NewPort(pc, h.session, opts)
		h.order = append(h.order, pc.ID)
	}
	sort.Slice(h.order, func(i, j int) bool { return h.order[i] < h.order[j] })
	return h
}

// Name returns the configured hub name
func (h *Hub) Name() string { return h.cfg.Name }

// Config returns the configuration the hub was created with
func (h *Hub) Config() HubConfig { return h.cfg }

// Link returns the transport the hub was created with
func (h *Hub) Link() session.Link { return h.link }

// Session returns the hub's transport session
func (h *Hub) Session() *session.Session { return h.session }

// Observe installs a sink that sees every inbound message after the ports
// have handled it. Must be called before Connect.
func (h *Hub) Observe(s session.Sink) {
	h.mu.Lock()
	h.observer = s
	h.mu.Unlock()
}

// Connect opens the link and starts the session. Each port's bring-up
// begins when the hub reports it attached.
func (h *Hub) Connect(ctx context.Context) error {
	if err := h.session.Connect(ctx, h.cfg.ID); err != nil {
		return err
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	h.mu.Lock()
	h.supervisor = NewSupervisor(taskCtx)
	h.cancel = cancel
	h.mu.Unlock()

	if err := h.session.Run(); err != nil {
		cancel()
		return fmt.Errorf("failed to start session: %w", err)
	}
	h.logger.Info().Int("ports", len(h.ports)).Msg("Hub connected")
	return nil
}

// Disconnect cancels bring-up, stops the session and closes the link.
// Every port returns to Uninitialized.
func (h *Hub) Disconnect() error {
	h.mu.Lock()
	supervisor, cancel := h.supervisor, h.cancel
	h.supervisor, h.cancel = nil, nil
	h.mu.Unlock()

	if supervisor != nil {
		cancel()
		supervisor.StopAll()
	}
	err := h.session.Close()
	for _, p := range h.ports {
		p.Reset()
	}
	h.logger.Info().Msg("Hub disconnected")
	return err
}

// Ports returns the configured ports ordered by id
func (h *Hub) Ports() []*Port {
	ports := make([]*Port, 0, len(h.order))
	for _, id := range h.order {
		ports = append(ports, h.ports[id])
	}
	return ports
}

// Port returns the port with the given id
func (h *Hub) Port(id uint8) (*Port, bool) {
	p, ok := h.ports[id]
	return p, ok
}

// ButtonDown forwards a button press to every port
func (h *Hub) ButtonDown(b byte) {
	for _, id := range h.order {
		h.ports[id].ButtonDown(b)
	}
}

// ButtonUp forwards a button release to every port
func (h *Hub) ButtonUp(b byte) {
	for _, id := range h.order {
		h.ports[id].ButtonUp(b)
	}
}

// WaitReady waits for every port to finish bring-up. The first failure is
// returned.
func (h *Hub) WaitReady(ctx context.Context) error {
	for _, id := range h.order {
		if err := h.ports[id].WaitBringUp(ctx); err != nil {
			return fmt.Errorf("port %d: %w", id, err)
		}
	}
	return nil
}

// Consume routes one inbound message. Called by the session dispatcher.
func (h *Hub) Consume(msg controlplus.Message) {
	if attached, ok := msg.(*controlplus.HubAttachedIO); ok {
		h.onAttachedIO(attached)
	} else {
		h.route(msg)
	}

	h.mu.Lock()
	observer := h.observer
	h.mu.Unlock()
	if observer != nil {
		observer.Consume(msg)
	}
}

func (h *Hub) route(msg controlplus.Message) {
	ports := msg.Ports()
	if len(ports) == 0 {
		h.logger.Debug().Stringer("msg", msg).Msg("Hub message")
		return
	}
	seen := make(map[uint8]bool, len(ports))
	for _, id := range ports {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := h.ports[id]; ok {
			p.OnMessage(msg)
		}
	}
}

func (h *Hub) onAttachedIO(m *controlplus.HubAttachedIO) {
	logger := h.logger.With().Uint8("port", m.Port).Logger()
	p, ok := h.ports[m.Port]
	if !ok {
		logger.Debug().Str("event", controlplus.FormatIOEvent(m.Event)).Str("io_type", controlplus.FormatIOType(m.IOType)).Msg("Unconfigured port")
		return
	}

	h.mu.Lock()
	supervisor := h.supervisor
	h.mu.Unlock()
	if supervisor == nil {
		return
	}

	switch m.Event {
	case controlplus.IOEventAttached:
		logger.Info().Str("io_type", controlplus.FormatIOType(m.IOType)).Msg("Port attached")
		supervisor.Start(m.Port, func(ctx context.Context) {
			_ = p.BringUp(ctx)
		})
	case controlplus.IOEventDetached:
		logger.Info().Msg("Port detached")
		supervisor.Cancel(m.Port)
		p.Reset()
	default:
		logger.Debug().Uint8("port_a", m.PortA).Uint8("port_b", m.PortB).Msg("Virtual port attached")
	}
}
