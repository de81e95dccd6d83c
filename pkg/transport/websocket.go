// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when reading from a closed WebSocket
var ErrConnectionClosed = errors.New("websocket connection closed")

// Dial and handshake limits for WebSocket bridges
const (
	wsHandshakeTimeout = 10 * time.Second
	wsDialTimeout      = 15 * time.Second
)

// WebSocketConfig describes a WebSocket bridge endpoint
type WebSocketConfig struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

// wsConn adapts a WebSocket to a byte stream. Each binary message is
// returned through Read; other message types are skipped.
type wsConn struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool
}

func (w *wsConn) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

// Write sends p as one binary message, so one frame stays one message
func (w *wsConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

func parseWebSocketURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %q (use ws:// or wss://)", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host")
	}
	return u, nil
}

// basicAuthHeader returns the request headers for cfg, with Basic auth set
// when both username and password are given
func basicAuthHeader(cfg WebSocketConfig) http.Header {
	headers := http.Header{}
	if cfg.Username != "" && cfg.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}
	return headers
}

// WebSocketDialer returns a Dialer for the bridge at cfg.URL
func WebSocketDialer(cfg WebSocketConfig) Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		u, err := parseWebSocketURL(cfg.URL)
		if err != nil {
			return nil, err
		}

		dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
		if u.Scheme == "wss" {
			dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.SkipSSLVerify}
		}

		ctx, cancel := context.WithTimeout(ctx, wsDialTimeout)
		defer cancel()

		conn, resp, err := dialer.DialContext(ctx, u.String(), basicAuthHeader(cfg))
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
			}
			return nil, fmt.Errorf("WebSocket connection failed: %w", err)
		}
		return &wsConn{conn: conn}, nil
	}
}

// NewWebSocket creates a stream link over a WebSocket bridge
func NewWebSocket(cfg WebSocketConfig) *Stream {
	return NewStream("WebSocket: "+cfg.URL, WebSocketDialer(cfg))
}
