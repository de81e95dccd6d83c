// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session runs the outbound send queue and inbound dispatch for one
// Control+ hub link.
//
// Outbound messages are queued by Enqueue and written by a single worker
// goroutine, one frame at a time. Inbound frames arrive on the link's
// callback, are copied into a bounded channel and decoded by a single
// dispatch goroutine that hands each message to the Sink.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Thermoquad/hubpad/pkg/capture"
	"github.com/Thermoquad/hubpad/pkg/controlplus"
	"github.com/rs/zerolog/log"
)

// DefaultInboundBuffer is the number of inbound frames held before new
// frames are dropped
const DefaultInboundBuffer = 256

var (
	ErrNotConnected = errors.New("session not connected")
	ErrRunning      = errors.New("session already running")
)

// Link is the byte-level transport to a hub. Each Write carries exactly one
// frame; each notification delivers exactly one frame.
type Link interface {
	// Open finds and connects to the hub matching identity
	Open(ctx context.Context, identity string) error
	// Subscribe registers the notification handler. The handler may be
	// called from any goroutine and must not retain the slice.
	Subscribe(handler func(frame []byte)) error
	Unsubscribe() error
	Write(frame []byte) error
	Close() error
}

// Sink receives decoded inbound messages
type Sink interface {
	Consume(msg controlplus.Message)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(msg controlplus.Message)

// Consume calls f(msg)
func (f SinkFunc) Consume(msg controlplus.Message) { f(msg) }

// Tap observes every frame written or received
type Tap func(dir capture.Direction, frame []byte)

// Option configures a Session
type Option func(*Session)

// WithCodec sets the codec used for both directions
func WithCodec(codec controlplus.Codec) Option {
	return func(s *Session) { s.codec = codec }
}

// WithTap installs a frame observer, such as a capture writer
func WithTap(tap Tap) Option {
	return func(s *Session) { s.tap = tap }
}

// WithInboundBuffer sets the inbound frame buffer size
func WithInboundBuffer(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.inboundSize = n
		}
	}
}

// WithStopAction sets the hub action sent by Stop
func WithStopAction(action controlplus.HubAction) Option {
	return func(s *Session) { s.stopAction = action }
}

// Session owns the send queue and worker for one link
type Session struct {
	link        Link
	sink        Sink
	codec       controlplus.Codec
	tap         Tap
	stopAction  controlplus.HubAction
	inboundSize int

	mu         sync.Mutex
	queue      []controlplus.Message
	connected  bool
	running    bool
	subscribed bool
	signal     chan struct{}
	quit       chan struct{}
	wg         sync.WaitGroup

	statsMu sync.Mutex
	stats   *controlplus.Statistics
	dropped atomic.Uint64
}

// New creates a session over link that delivers inbound messages to sink
func New(link Link, sink Sink, opts ...Option) *Session {
	s := &Session{
		link:        link,
		sink:        sink,
		codec:       controlplus.DefaultCodec,
		stopAction:  controlplus.HubActionShutdown,
		inboundSize: DefaultInboundBuffer,
		stats:       controlplus.NewStatistics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens the link to the hub matching identity
func (s *Session) Connect(ctx context.Context, identity string) error {
	if err := s.link.Open(ctx, identity); err != nil {
		// Release whatever a partial open left behind
		if cerr := s.link.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("Close after failed open")
		}
		return fmt.Errorf("failed to connect to %q: %w", identity, err)
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	log.Info().Str("identity", identity).Msg("Connected to hub")
	return nil
}

// Connected reports whether the link is open
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Running reports whether the worker is running
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins the send worker. A stopped session can be started again.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	if s.running {
		return ErrRunning
	}

	s.signal = make(chan struct{}, 1)
	s.quit = make(chan struct{})
	s.queue = nil
	s.running = true

	s.wg.Add(1)
	go s.worker(s.signal, s.quit)
	return nil
}

// Run starts the worker and subscribes to inbound notifications
func (s *Session) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	s.mu.Lock()
	inbound := make(chan []byte, s.inboundSize)
	quit := s.quit
	s.wg.Add(1)
	go s.dispatcher(inbound, quit)
	s.mu.Unlock()

	if err := s.link.Subscribe(s.notifyHandler(inbound, quit)); err != nil {
		s.halt(false)
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	s.mu.Lock()
	s.subscribed = true
	s.mu.Unlock()
	return nil
}

// Enqueue appends msg to the send queue. The message is dropped if the
// session is not running or not connected.
func (s *Session) Enqueue(msg controlplus.Message) {
	s.mu.Lock()
	if !s.running || !s.connected {
		s.mu.Unlock()
		log.Debug().Stringer("msg", msg).Msg("Session not running, dropping message")
		return
	}
	s.queue = append(s.queue, msg)
	signal := s.signal
	s.mu.Unlock()

	select {
	case signal <- struct{}{}:
	default:
	}
}

// Stop unsubscribes from notifications, queues the stop action, and waits
// for the worker to write everything queued before it. Must not be called
// from the Sink.
func (s *Session) Stop() {
	s.halt(true)
}

func (s *Session) halt(sendStop bool) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	subscribed := s.subscribed
	s.subscribed = false
	s.mu.Unlock()

	if subscribed {
		if err := s.link.Unsubscribe(); err != nil {
			log.Warn().Err(err).Msg("Failed to unsubscribe")
		}
	}

	s.mu.Lock()
	if sendStop {
		s.queue = append(s.queue, controlplus.NewHubAction(s.stopAction))
	}
	s.running = false
	close(s.quit)
	s.mu.Unlock()

	s.wg.Wait()
	log.Debug().Bool("stop_action", sendStop).Msg("Session stopped")
}

// Close stops the session and closes the link
func (s *Session) Close() error {
	s.Stop()
	s.mu.Lock()
	wasConnected := s.connected
	s.connected = false
	s.mu.Unlock()
	if !wasConnected {
		return nil
	}
	return s.link.Close()
}

// Stats returns a snapshot of inbound message statistics
func (s *Session) Stats() *controlplus.Statistics {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats.Clone()
}

// Dropped returns the number of inbound frames dropped on a full buffer
func (s *Session) Dropped() uint64 {
	return s.dropped.Load()
}

// worker is the only writer to the link
func (s *Session) worker(signal <-chan struct{}, quit <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-signal:
			s.drain()
		case <-quit:
			s.drain()
			return
		}
	}
}

// drain writes queued messages until the queue is empty
func (s *Session) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		msg := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.write(msg)
	}
}

func (s *Session) write(msg controlplus.Message) {
	frame, err := s.codec.Encode(msg)
	if err != nil {
		log.Error().Err(err).Stringer("msg", msg).Msg("Failed to encode message")
		return
	}
	if s.tap != nil {
		s.tap(capture.Outbound, frame)
	}
	if err := s.link.Write(frame); err != nil {
		log.Error().Err(err).Stringer("msg", msg).Msg("Failed to write message")
		return
	}
	log.Debug().Stringer("msg", msg).Str("frame", hex.EncodeToString(frame)).Msg("Sent")
}

// notifyHandler copies each frame into inbound without blocking the
// transport's callback goroutine
func (s *Session) notifyHandler(inbound chan<- []byte, quit <-chan struct{}) func([]byte) {
	return func(frame []byte) {
		cp := append([]byte(nil), frame...)
		select {
		case <-quit:
			return
		default:
		}
		select {
		case inbound <- cp:
		default:
			s.dropped.Add(1)
			log.Warn().Str("frame", hex.EncodeToString(cp)).Msg("Inbound buffer full, dropping frame")
		}
	}
}

// dispatcher decodes inbound frames and hands them to the sink
func (s *Session) dispatcher(inbound <-chan []byte, quit <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case frame := <-inbound:
			s.dispatch(frame)
		case <-quit:
			return
		}
	}
}

func (s *Session) dispatch(frame []byte) {
	if s.tap != nil {
		s.tap(capture.Inbound, frame)
	}

	msg, err := s.codec.Decode(frame)
	var anomalies []controlplus.ValidationError
	if err == nil {
		anomalies = controlplus.ValidateMessage(msg)
	}

	s.statsMu.Lock()
	s.stats.Update(msg, err, anomalies)
	s.statsMu.Unlock()

	if err != nil {
		log.Warn().Err(err).Str("frame", hex.EncodeToString(frame)).Msg("Dropping undecodable frame")
		return
	}
	for _, a := range anomalies {
		log.Warn().Str("anomaly", a.Message).Msg("Hub reported a problem")
	}
	log.Debug().Stringer("msg", msg).Msg("Received")

	if s.sink != nil {
		s.sink.Consume(msg)
	}
}
