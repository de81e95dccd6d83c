// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/hubpad/pkg/controlplus"
	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid Control+ message",
	Long: `Wait for a valid Control+ message on the connection until timeout.

This command connects over BLE, serial or WebSocket and waits for any frame
that decodes to a known message. A hub announces its attached devices as
soon as it is connected, so a healthy link reports within a second or two.
Frames that fail to decode are counted and skipped.

Exit codes:
  0 - Message received before timeout
  1 - Timeout reached without receiving a valid message
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a message")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	codec, err := codecFromFlags()
	if err != nil {
		return err
	}
	link, connInfo, err := NewLink()
	if err != nil {
		return err
	}

	identity := resolveIdentity()
	ctx, stop := signalContext()
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, time.Duration(packetTestTimeout)*time.Second)
	defer cancel()
	if err := link.Open(openCtx, identity); err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer link.Close()

	fmt.Printf("Hubpad - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid Control+ message...\n\n")

	type result struct {
		frame   []byte
		msg     controlplus.Message
		invalid int
	}
	resultChan := make(chan result, 1)

	invalid := 0
	handler := func(frame []byte) {
		msg, err := codec.Decode(frame)
		if err != nil {
			invalid++
			return
		}
		select {
		case resultChan <- result{frame: append([]byte(nil), frame...), msg: msg, invalid: invalid}:
		default:
		}
	}
	if err := link.Subscribe(handler); err != nil {
		fmt.Fprintf(os.Stderr, "Subscribe error: %v\n", err)
		os.Exit(2)
	}

	// Wait for message or timeout
	select {
	case r := <-resultChan:
		if r.invalid > 0 {
			fmt.Printf("(skipped %d invalid frames)\n", r.invalid)
		}
		fmt.Printf("SUCCESS: Received valid message\n")
		fmt.Printf("  Type: %s (0x%02X)\n", controlplus.FormatMessageType(r.msg.Type()), uint8(r.msg.Type()))
		fmt.Printf("  Length: %d bytes\n", len(r.frame))
		fmt.Printf("  Frame: % X\n", r.frame)
		fmt.Print(controlplus.FormatMessage(r.msg, time.Now()))
		return nil

	case <-linkDone(link):
		fmt.Fprintf(os.Stderr, "Connection closed before a message arrived\n")
		os.Exit(2)

	case <-openCtx.Done():
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid message received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
