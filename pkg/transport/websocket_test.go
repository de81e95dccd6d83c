// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Thermoquad/hubpad/pkg/controlplus"
	"github.com/gorilla/websocket"
)

// bridgeServer echoes each binary message back, preceded by a text message
// that the link must skip
func bridgeServer(t *testing.T, authHeader chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authHeader != nil {
			authHeader <- r.Header.Get("Authorization")
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			conn.WriteMessage(websocket.TextMessage, []byte("status"))
			conn.WriteMessage(mt, data)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// ============================================================
// WebSocket Tests
// ============================================================

func TestWebSocket_EchoFrames(t *testing.T) {
	srv := bridgeServer(t, nil)
	link := NewWebSocket(WebSocketConfig{URL: wsURL(srv)})
	if err := link.Open(context.Background(), "hub"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer link.Close()
	frames := collect(link)

	frame := controlplus.MustEncode(controlplus.NewGotoAbsolutePosition(1, -90, 60, 60, controlplus.EndStateHold))
	if err := link.Write(frame); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := nextFrame(t, frames); !bytes.Equal(got, frame) {
		t.Errorf("echo = % X, want % X", got, frame)
	}
}

func TestWebSocket_BasicAuth(t *testing.T) {
	auth := make(chan string, 1)
	srv := bridgeServer(t, auth)
	link := NewWebSocket(WebSocketConfig{URL: wsURL(srv), Username: "hub", Password: "secret"})
	if err := link.Open(context.Background(), "hub"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer link.Close()

	// base64("hub:secret")
	if got := <-auth; got != "Basic aHViOnNlY3JldA==" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestBasicAuthHeader_RequiresBoth(t *testing.T) {
	if h := basicAuthHeader(WebSocketConfig{Username: "hub"}); h.Get("Authorization") != "" {
		t.Error("Authorization set without a password")
	}
}

func TestParseWebSocketURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"ws://bridge.local:8080/hub", true},
		{"wss://bridge.local/hub", true},
		{"http://bridge.local/hub", false},
		{"bridge.local", false},
		{"ws://", false},
		{"ws://%zz", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			_, err := parseWebSocketURL(tt.url)
			if (err == nil) != tt.valid {
				t.Errorf("parseWebSocketURL(%q) error = %v, want valid=%v", tt.url, err, tt.valid)
			}
		})
	}
}

func TestWebSocket_DialFailure(t *testing.T) {
	link := NewWebSocket(WebSocketConfig{URL: "http://bridge.local"})
	if err := link.Open(context.Background(), "hub"); err == nil {
		link.Close()
		t.Fatal("Open with an http:// URL should fail")
	}
}
