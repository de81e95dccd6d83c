// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/hubpad/pkg/capture"
	"github.com/Thermoquad/hubpad/pkg/controlplus"
	"github.com/spf13/cobra"
)

var (
	replayRealtime  bool
	replayDirection string
	replayStats     bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Decode and display a capture file",
	Long: `Decode every frame of a capture recorded with raw_log --record or
control --record, printing each message with its original timestamp.

Use --realtime to reproduce the original timing between frames and
--direction to show only inbound (hub to host) or outbound frames.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayRealtime, "realtime", false, "Sleep between frames to match the recording")
	replayCmd.Flags().StringVar(&replayDirection, "direction", "all", "Frames to show: all|in|out")
	replayCmd.Flags().BoolVar(&replayStats, "stats", true, "Print inbound statistics at the end")
}

func parseDirection(s string) (capture.Direction, error) {
	switch s {
	case "all", "":
		return 0, nil
	case "in":
		return capture.Inbound, nil
	case "out":
		return capture.Outbound, nil
	default:
		return 0, fmt.Errorf("invalid --direction %q (use all, in or out)", s)
	}
}

func runReplay(cmd *cobra.Command, args []string) error {
	only, err := parseDirection(replayDirection)
	if err != nil {
		return err
	}
	codec, err := codecFromFlags()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := capture.NewReader(f)
	if err != nil {
		return err
	}
	header := r.Header()
	fmt.Printf("Hubpad - Capture Replay\n")
	fmt.Printf("File: %s (recorded %s", args[0], header.Created.Local().Format(time.RFC3339))
	if header.Source != "" {
		fmt.Printf(" from %s", header.Source)
	}
	fmt.Printf(")\n\n")

	stats := controlplus.NewStatistics()
	var last time.Time
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("capture read failed: %w", err)
		}

		msg, decodeErr := codec.Decode(rec.Frame)
		if rec.Direction == capture.Inbound {
			var anomalies []controlplus.ValidationError
			if decodeErr == nil {
				anomalies = controlplus.ValidateMessage(msg)
			}
			stats.Update(msg, decodeErr, anomalies)
		}
		if only != 0 && rec.Direction != only {
			continue
		}

		if replayRealtime && !last.IsZero() {
			if gap := rec.Time.Sub(last); gap > 0 {
				time.Sleep(gap)
			}
		}
		last = rec.Time

		if decodeErr != nil {
			fmt.Printf("[%s] %-3s [ERROR] %s: %v\n", rec.Time.Local().Format("15:04:05.000"), rec.Direction, controlplus.FormatFrame(rec.Frame), decodeErr)
			continue
		}
		fmt.Printf("%-3s ", rec.Direction)
		fmt.Print(controlplus.FormatMessage(msg, rec.Time.Local()))
	}

	if replayStats {
		fmt.Println()
		fmt.Print(stats.String())
	}
	return nil
}
