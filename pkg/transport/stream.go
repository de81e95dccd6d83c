// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport provides session.Link implementations: a direct BLE
// connection to the hub, and byte-stream links for a serial or WebSocket
// bridge that relays the hub characteristic.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Thermoquad/hubpad/pkg/controlplus"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotOpen     = errors.New("link not open")
	ErrAlreadyOpen = errors.New("link already open")
)

// Dialer opens the underlying byte stream of a Stream
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Stream is a Link over a byte stream. Inbound bytes are reassembled into
// frames with the size field; each Write sends one frame unchanged.
type Stream struct {
	name string
	dial Dialer

	mu      sync.Mutex
	conn    io.ReadWriteCloser
	handler func([]byte)
	closing bool
	done    chan struct{}
	err     error
}

// NewStream creates a stream link. name is used in logs and String.
func NewStream(name string, dial Dialer) *Stream {
	return &Stream{name: name, dial: dial}
}

func (s *Stream) String() string { return s.name }

// Open dials the stream and starts the reader. A bridge relays a single
// hub, so identity is only logged.
func (s *Stream) Open(ctx context.Context, identity string) error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return ErrAlreadyOpen
	}
	s.mu.Unlock()

	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.conn = conn
	s.closing = false
	s.done = done
	s.err = nil
	s.mu.Unlock()

	log.Debug().Str("link", s.name).Str("identity", identity).Msg("Stream opened")
	go s.reader(conn, done)
	return nil
}

// Subscribe sets the frame handler
func (s *Stream) Subscribe(handler func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotOpen
	}
	s.handler = handler
	return nil
}

// Unsubscribe removes the frame handler; frames received afterwards are
// discarded
func (s *Stream) Unsubscribe() error {
	s.mu.Lock()
	s.handler = nil
	s.mu.Unlock()
	return nil
}

// Write sends one encoded frame
func (s *Stream) Write(frame []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotOpen
	}
	n, err := conn.Write(frame)
	if err != nil {
		return err
	}
	if n != len(frame) {
		return io.ErrShortWrite
	}
	return nil
}

// Close closes the stream and waits for the reader to exit
func (s *Stream) Close() error {
	s.mu.Lock()
	conn, done := s.conn, s.done
	s.conn = nil
	s.handler = nil
	s.closing = true
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	err := conn.Close()
	<-done
	return err
}

// Err returns the read error that ended the stream, if any
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the reader exits, either from Close or a read error
func (s *Stream) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Stream) reader(conn io.Reader, done chan struct{}) {
	defer close(done)

	framer := controlplus.NewFramer()
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			frames, errs := framer.Push(buf[:n])
			for _, ferr := range errs {
				log.Warn().Err(ferr).Str("link", s.name).Msg("Framing error")
			}
			s.mu.Lock()
			handler := s.handler
			s.mu.Unlock()
			if handler != nil {
				for _, frame := range frames {
					handler(frame)
				}
			}
		}
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			if !closing {
				s.err = err
			}
			s.mu.Unlock()
			if !closing {
				log.Error().Err(err).Str("link", s.name).Msg("Stream read failed")
			}
			return
		}
	}
}
