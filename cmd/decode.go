// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/hubpad/pkg/controlplus"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>...",
	Short: "Decode hub frames given as hex",
	Long: `Decode one or more frames given as hex strings and print their fields.

Spaces, colons and a 0x prefix are ignored, so frames can be pasted from
logs or packet captures:

  hubpad decode "0F 00 04 00 01 2F 00 00 10 00 00 00 10 00 00"
  hubpad decode 0a004101000500000001

Each argument may hold several concatenated frames.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func parseHexArg(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(s)
	return hex.DecodeString(s)
}

func runDecode(cmd *cobra.Command, args []string) error {
	codec, err := codecFromFlags()
	if err != nil {
		return err
	}

	failed := 0
	for _, arg := range args {
		data, err := parseHexArg(arg)
		if err != nil {
			return fmt.Errorf("invalid hex %q: %w", arg, err)
		}

		framer := controlplus.NewFramer()
		frames, errs := framer.Push(data)
		for _, ferr := range errs {
			fmt.Printf("[ERROR] %v\n", ferr)
			failed++
		}
		if pending := framer.Pending(); len(pending) > 0 {
			fmt.Printf("[ERROR] incomplete frame: %s\n", controlplus.FormatFrame(pending))
			failed++
		}

		for _, frame := range frames {
			msg, err := codec.Decode(frame)
			if err != nil {
				fmt.Printf("[ERROR] %s: %v\n", controlplus.FormatFrame(frame), err)
				failed++
				continue
			}
			fmt.Print(controlplus.FormatMessage(msg, time.Now()))
			for _, anomaly := range controlplus.ValidateMessage(msg) {
				fmt.Printf("  ! %s\n", anomaly.Message)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d frame(s) failed to decode", failed)
	}
	return nil
}
