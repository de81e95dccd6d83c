// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/hubpad/pkg/capture"
	"github.com/Thermoquad/hubpad/pkg/controlplus"
	"github.com/Thermoquad/hubpad/pkg/session"
	"github.com/Thermoquad/hubpad/pkg/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	rawLogRecord string
	rawLogHex    bool
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display hub messages in human-readable format",
	Long: `Connect to a hub and continuously decode and display every message it sends.

Each message is shown with a timestamp, its type and decoded fields. Use --hex
to also print the raw frames, and --record to save both directions to a
capture file for later replay.

Supports BLE, serial bridge and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVar(&rawLogRecord, "record", "", "Record frames to a capture file")
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Print raw frames")
}

// openCapture creates a capture file at path. The returned close function
// flushes and closes the file.
func openCapture(path, source string) (*capture.Writer, func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create capture: %w", err)
	}
	w, err := capture.NewWriter(f, source)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return w, f.Close, nil
}

// linkDone returns a channel closed when a stream link's reader exits, or
// nil for links without one
func linkDone(link session.Link) <-chan struct{} {
	if s, ok := link.(*transport.Stream); ok {
		return s.Done()
	}
	return nil
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	link, connInfo, err := NewLink()
	if err != nil {
		return err
	}
	codec, err := codecFromFlags()
	if err != nil {
		return err
	}

	var taps []session.Tap
	if rawLogRecord != "" {
		w, closeCapture, err := openCapture(rawLogRecord, connInfo)
		if err != nil {
			return err
		}
		defer closeCapture()
		taps = append(taps, w.Tap)
	}
	if rawLogHex {
		taps = append(taps, func(dir capture.Direction, frame []byte) {
			fmt.Printf("[%s] %-3s %s\n", time.Now().Format("15:04:05.000"), dir, controlplus.FormatFrame(frame))
		})
	}

	sink := session.SinkFunc(func(msg controlplus.Message) {
		fmt.Print(controlplus.FormatMessage(msg, time.Now()))
	})
	s := session.New(link, sink, session.WithCodec(codec), session.WithTap(func(dir capture.Direction, frame []byte) {
		for _, tap := range taps {
			tap(dir, frame)
		}
	}))

	identity := resolveIdentity()

	fmt.Printf("Hubpad - Raw Message Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if identity != "" {
		fmt.Printf("Hub: %s\n", identity)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signalContext()
	defer stop()

	if err := s.Connect(ctx, identity); err != nil {
		return err
	}
	defer s.Close()
	if err := s.Run(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-linkDone(link):
		log.Info().Msg("Connection closed")
	}
	return nil
}
