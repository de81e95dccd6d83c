// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/hubpad/pkg/capture"
	"github.com/Thermoquad/hubpad/pkg/controlplus"
	"github.com/Thermoquad/hubpad/pkg/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed messages and hub errors",
	Long: `Track decode failures, hub error replies and anomalous values with statistics.

This command validates each inbound message and detects:
  - Malformed frames (size mismatch, truncated bodies, trailing bytes)
  - Unknown and unsupported message types
  - GENERIC_ERROR replies and discarded output commands
  - Unknown attached IO types and unreadable mode names

By default, only errors are displayed. Use --show-all to display valid messages too.

Messages are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all messages (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// inboundMsg is one decoded (or undecodable) inbound frame
type inboundMsg struct {
	frame            []byte
	msg              controlplus.Message
	decodeErr        error
	validationErrors []controlplus.ValidationError
}

// inspector decodes each inbound frame independently of the session so
// undecodable frames are reported too
func inspector(codec controlplus.Codec, report func(inboundMsg)) session.Tap {
	return func(dir capture.Direction, frame []byte) {
		if dir != capture.Inbound {
			return
		}
		in := inboundMsg{frame: append([]byte(nil), frame...)}
		in.msg, in.decodeErr = codec.Decode(frame)
		if in.decodeErr == nil {
			in.validationErrors = controlplus.ValidateMessage(in.msg)
		}
		report(in)
	}
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	codec, err := codecFromFlags()
	if err != nil {
		return err
	}
	link, connInfo, err := NewLink()
	if err != nil {
		return err
	}
	identity := resolveIdentity()

	if useTUI {
		if err := setupLogging(true); err != nil {
			return err
		}
		return runTUIMode(link, connInfo, identity, codec)
	}
	return runTextMode(link, connInfo, identity, codec)
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(frame []byte, err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  Frame: %s\n", controlplus.FormatFrame(frame))
	fmt.Printf("  >>> DECODE FAILED <<<\n\n")
}

// printValidationErrors prints validation errors for a message
func printValidationErrors(msg controlplus.Message, errors []controlplus.ValidationError) {
	timestamp := time.Now().Format("15:04:05.000")
	msgType := controlplus.FormatMessageType(msg.Type())

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (0x%02X)\n", timestamp, msgType, uint8(msg.Type()))

	for i, err := range errors {
		switch err.Type {
		case controlplus.AnomalyGenericError, controlplus.AnomalyCommandDiscarded:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
		default:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
		}
		for k, v := range err.Details {
			fmt.Printf("    %s=%v\n", k, v)
		}
	}
	fmt.Printf("  >>> MESSAGE FLAGGED <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(link session.Link, connInfo, identity string, codec controlplus.Codec) error {
	m := initialModel(connInfo, identity, statsInterval, showAll)
	p := tea.NewProgram(m)

	s := session.New(link, nil,
		session.WithCodec(codec),
		session.WithTap(inspector(codec, func(in inboundMsg) { p.Send(in) })),
	)

	ctx, stop := signalContext()
	defer stop()
	if err := s.Connect(ctx, identity); err != nil {
		return err
	}
	defer s.Close()
	if err := s.Run(); err != nil {
		return err
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-linkDone(link):
		}
		p.Send(connectionLostMsg{})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(link session.Link, connInfo, identity string, codec controlplus.Codec) error {
	fmt.Printf("Hubpad - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All messages\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	received := make(chan inboundMsg, 64)
	quit := make(chan struct{})
	s := session.New(link, nil,
		session.WithCodec(codec),
		session.WithTap(inspector(codec, func(in inboundMsg) {
			select {
			case received <- in:
			case <-quit:
			}
		})),
	)

	ctx, stop := signalContext()
	defer stop()
	if err := s.Connect(ctx, identity); err != nil {
		return err
	}
	defer s.Close()
	// Runs before Close so a blocked tap cannot stall the dispatcher
	defer close(quit)
	if err := s.Run(); err != nil {
		return err
	}

	stats := controlplus.NewStatistics()
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case in := <-received:
			stats.Update(in.msg, in.decodeErr, in.validationErrors)
			switch {
			case in.decodeErr != nil:
				printDecodeError(in.frame, in.decodeErr)
			case len(in.validationErrors) > 0:
				printValidationErrors(in.msg, in.validationErrors)
			case showAll:
				fmt.Print(controlplus.FormatMessage(in.msg, time.Now()))
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()

		case <-linkDone(link):
			fmt.Printf("Connection closed\n")
			fmt.Print(stats.String())
			return nil

		case <-ctx.Done():
			fmt.Println()
			fmt.Print(stats.String())
			return nil
		}
	}
}
