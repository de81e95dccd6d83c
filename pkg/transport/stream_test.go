// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/Thermoquad/hubpad/pkg/controlplus"
)

func pipeStream(t *testing.T) (*Stream, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	s := NewStream("pipe", func(context.Context) (io.ReadWriteCloser, error) {
		return local, nil
	})
	if err := s.Open(context.Background(), "hub"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
		remote.Close()
	})
	return s, remote
}

func collect(s *Stream) <-chan []byte {
	frames := make(chan []byte, 16)
	s.Subscribe(func(frame []byte) {
		frames <- append([]byte(nil), frame...)
	})
	return frames
}

func nextFrame(t *testing.T, frames <-chan []byte) []byte {
	t.Helper()
	select {
	case f := <-frames:
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

// ============================================================
// Stream Tests
// ============================================================

func TestStream_ReassemblesSplitFrames(t *testing.T) {
	s, remote := pipeStream(t)
	frames := collect(s)

	first := controlplus.MustEncode(controlplus.NewPortInfoRequest(1, controlplus.PortInfoModeInfo))
	second := controlplus.MustEncode(controlplus.NewStartSpeed(0, 50, 100, controlplus.ProfileAcceleration))
	stream := append(append([]byte(nil), first...), second...)

	go func() {
		// Split mid-frame, then deliver the remainder in one chunk
		remote.Write(stream[:3])
		remote.Write(stream[3:])
	}()

	if got := nextFrame(t, frames); !bytes.Equal(got, first) {
		t.Errorf("frame 1 = % X, want % X", got, first)
	}
	if got := nextFrame(t, frames); !bytes.Equal(got, second) {
		t.Errorf("frame 2 = % X, want % X", got, second)
	}
}

func TestStream_ResynchronizesAfterGarbage(t *testing.T) {
	s, remote := pipeStream(t)
	frames := collect(s)

	frame := controlplus.MustEncode(controlplus.NewHubAction(controlplus.HubActionSwitchOff))
	go remote.Write(append([]byte{0x01, 0x02}, frame...))

	if got := nextFrame(t, frames); !bytes.Equal(got, frame) {
		t.Errorf("frame = % X, want % X", got, frame)
	}
}

func TestStream_Write(t *testing.T) {
	s, remote := pipeStream(t)

	frame := controlplus.MustEncode(controlplus.NewMotorPower(2, -40))
	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := remote.Read(buf)
		got <- buf[:n]
	}()

	if err := s.Write(frame); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	select {
	case b := <-got:
		if !bytes.Equal(b, frame) {
			t.Errorf("wrote % X, want % X", b, frame)
		}
	case <-time.After(time.Second):
		t.Fatal("nothing written")
	}
}

func TestStream_UnsubscribeDropsFrames(t *testing.T) {
	s, remote := pipeStream(t)
	frames := collect(s)
	s.Unsubscribe()

	frame := controlplus.MustEncode(controlplus.NewHubAction(controlplus.HubActionShutdown))
	if _, err := remote.Write(frame); err != nil {
		t.Fatalf("remote write failed: %v", err)
	}

	select {
	case f := <-frames:
		t.Errorf("received % X after Unsubscribe", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStream_CloseWaitsForReader(t *testing.T) {
	s, _ := pipeStream(t)
	done := s.Done()

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case <-done:
	default:
		t.Error("reader still running after Close")
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v after Close, want nil", s.Err())
	}
	if err := s.Write([]byte{3, 0, 1}); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Write after Close = %v, want ErrNotOpen", err)
	}
}

func TestStream_RemoteCloseRecordsError(t *testing.T) {
	s, remote := pipeStream(t)
	remote.Close()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("reader did not exit")
	}
	if s.Err() == nil {
		t.Error("Err() = nil after remote close")
	}
}

func TestStream_OpenErrors(t *testing.T) {
	dialErr := errors.New("no such port")
	s := NewStream("broken", func(context.Context) (io.ReadWriteCloser, error) {
		return nil, dialErr
	})
	if err := s.Open(context.Background(), "hub"); !errors.Is(err, dialErr) {
		t.Errorf("Open = %v, want wrapped dial error", err)
	}
	if err := s.Subscribe(func([]byte) {}); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Subscribe on closed stream = %v, want ErrNotOpen", err)
	}

	open, _ := pipeStream(t)
	if err := open.Open(context.Background(), "hub"); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("second Open = %v, want ErrAlreadyOpen", err)
	}
}
