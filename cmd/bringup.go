// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/hubpad/pkg/hub"
	"github.com/spf13/cobra"
)

var bringupTimeout int

var bringupCmd = &cobra.Command{
	Use:   "bringup",
	Short: "Bring up every profile port and report the result",
	Long: `Connect to the profile hub, wait for each configured port to attach and
complete bring-up, then print what was discovered and disconnect.

Servo and stepper ports are calibrated: their absolute position mode is
located, the motor is driven back to its zero position, and the encoder is
preset to 0. Motors only have their modes named.

Exit codes:
  0 - All ports ready
  1 - One or more ports failed or timed out
  2 - Connection error`,
	RunE: runBringup,
}

func init() {
	rootCmd.AddCommand(bringupCmd)
	bringupCmd.Flags().IntVar(&bringupTimeout, "timeout", 30, "Timeout in seconds for all ports to become ready")
}

const (
	bringupOK          = 0
	bringupPortsFailed = 1
	bringupConnError   = 2
)

func runBringup(cmd *cobra.Command, args []string) error {
	h, connInfo, err := newHub()
	if err != nil {
		return err
	}

	fmt.Printf("Hubpad - Bring-up\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Hub: %s\n", h.Name())
	fmt.Printf("Timeout: %d seconds\n\n", bringupTimeout)

	ctx, stop := signalContext()
	code := bringup(ctx, h, os.Stdout, time.Duration(bringupTimeout)*time.Second)
	stop()
	if code != bringupOK {
		os.Exit(code)
	}
	return nil
}

// bringup connects h, reports every port and disconnects. Returns the
// process exit code; the hub is always disconnected on return.
func bringup(ctx context.Context, h *hub.Hub, out io.Writer, timeout time.Duration) int {
	if err := h.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		if err := h.Disconnect(); err != nil {
			fmt.Fprintf(os.Stderr, "Disconnect error: %v\n", err)
		}
		return bringupConnError
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	waitErr := h.WaitReady(waitCtx)
	elapsed := time.Since(start)

	failed := 0
	for _, p := range h.Ports() {
		fmt.Fprintf(out, "Port %d (%s): %s\n", p.ID(), p.Kind(), p.State())
		if names := p.ModeNames(); len(names) > 0 {
			fmt.Fprintf(out, "  Modes (%d): %s\n", p.NumModes(), strings.Join(names, ", "))
		}
		if p.AbsPosMode() >= 0 {
			fmt.Fprintf(out, "  Absolute position mode: %d\n", p.AbsPosMode())
			fmt.Fprintf(out, "  Position: %d\n", p.Position())
		}
		if err := p.LastError(); err != nil {
			fmt.Fprintf(out, "  Error: %v\n", err)
		}
		if !p.Initialized() {
			failed++
		}
	}

	if err := h.Disconnect(); err != nil {
		fmt.Fprintf(os.Stderr, "Disconnect error: %v\n", err)
	}

	fmt.Fprintf(out, "\n--- Bring-up summary ---\n")
	fmt.Fprintf(out, "Ready: %d/%d in %s\n", len(h.Ports())-failed, len(h.Ports()), elapsed.Round(time.Millisecond))
	if failed > 0 {
		fmt.Fprintf(out, "FAILED: %v\n", waitErr)
		return bringupPortsFailed
	}
	return bringupOK
}
