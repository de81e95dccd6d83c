// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/hubpad/pkg/hub"
)

// stubLink accepts every write and never notifies
type stubLink struct {
	mu      sync.Mutex
	openErr error
	closed  bool
}

func (l *stubLink) Open(context.Context, string) error { return l.openErr }
func (l *stubLink) Subscribe(func([]byte)) error { return nil }
func (l *stubLink) Unsubscribe() error { return nil }
func (l *stubLink) Write([]byte) error { return nil }

func (l *stubLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *stubLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// ============================================================
// Profile loading
// ============================================================

func TestLoadHubConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	profile := `{"hubs": [
		{"id": "90842b5480f3", "name": "Buggy", "ports": [
			{"id": 1, "type": "motor", "mappings": []}
		]},
		{"id": "90842b596c22", "name": "Truck", "ports": []}
	]}`
	if err := os.WriteFile(path, []byte(profile), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	oldPath, oldKey := profilePath, hubKey
	t.Cleanup(func() { profilePath, hubKey = oldPath, oldKey })
	profilePath = path

	tests := []struct {
		key     string
		wantID  string
		wantErr bool
	}{
		{"", "90842b5480f3", false},
		{"Truck", "90842b596c22", false},
		{"90842b5480f3", "90842b5480f3", false},
		{"Boat", "", true},
	}

	for _, tt := range tests {
		t.Run("hub="+tt.key, func(t *testing.T) {
			hubKey = tt.key
			cfg, err := loadHubConfig()
			if tt.wantErr {
				if err == nil {
					t.Errorf("loadHubConfig() = %+v, want error", cfg)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadHubConfig failed: %v", err)
			}
			if cfg.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", cfg.ID, tt.wantID)
			}
		})
	}
}

// ============================================================
// Bring-up
// ============================================================

func TestBringup(t *testing.T) {
	motor := []hub.PortConfig{{ID: 1, Kind: hub.PortMotor}}

	tests := []struct {
		name     string
		link     *stubLink
		ports    []hub.PortConfig
		wantCode int
		wantOut  string
	}{
		{"connection error", &stubLink{openErr: errors.New("no such hub")}, motor, bringupConnError, ""},
		{"port never attaches", &stubLink{}, motor, bringupPortsFailed, "FAILED"},
		{"no ports", &stubLink{}, nil, bringupOK, "Ready: 0/0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := hub.HubConfig{ID: "90842b5480f3", Name: "Buggy", Ports: tt.ports}
			opts := hub.DefaultOptions()
			opts.SettleDelay = 0
			h := hub.New(cfg, tt.link, opts)

			var out bytes.Buffer
			code := bringup(context.Background(), h, &out, 50*time.Millisecond)
			if code != tt.wantCode {
				t.Errorf("bringup() = %d, want %d", code, tt.wantCode)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output %q missing %q", out.String(), tt.wantOut)
			}
			if !tt.link.isClosed() {
				t.Error("link left open")
			}
		})
	}
}
