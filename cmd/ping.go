// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/hubpad/pkg/controlplus"
	"github.com/Thermoquad/hubpad/pkg/session"
	"github.com/spf13/cobra"
)

var (
	pingTimeout int
	pingCount   int
	pingPort    uint8
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round trips by requesting port information",
	Long: `Send Port Information Requests to the hub and wait for each reply.

The hub answers every request for an attached port, so this verifies:
  - The link is established in both directions
  - The codec settings match the hub
  - The hub is processing commands

The session is closed with a disconnect action so the hub stays powered.

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().Uint8Var(&pingPort, "port-id", 0, "Hub port to query")
}

// portInfoReplies forwards PortInfo replies for one port without blocking
// the dispatch goroutine
func portInfoReplies(port uint8, replies chan<- *controlplus.PortInfo) session.SinkFunc {
	return func(msg controlplus.Message) {
		info, ok := msg.(*controlplus.PortInfo)
		if !ok || info.Port != port {
			return
		}
		select {
		case replies <- info:
		default:
		}
	}
}

func runPing(cmd *cobra.Command, args []string) error {
	codec, err := codecFromFlags()
	if err != nil {
		return err
	}
	link, connInfo, err := NewLink()
	if err != nil {
		return err
	}

	replies := make(chan *controlplus.PortInfo, 1)
	s := session.New(link, portInfoReplies(pingPort, replies),
		session.WithCodec(codec),
		session.WithStopAction(controlplus.HubActionDisconnect),
	)

	ctx, stop := signalContext()
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err = s.Connect(connectCtx, resolveIdentity())
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	if err := s.Run(); err != nil {
		s.Close()
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Hubpad - Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Port: %d\n", pingPort)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	successCount := 0
	failCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startTime := time.Now()
		s.Enqueue(controlplus.NewPortInfoRequest(pingPort, controlplus.PortInfoModeInfo))

		select {
		case info := <-replies:
			rtt := time.Since(startTime)
			fmt.Printf("reply from port %d, modes=%d, rtt=%v\n", info.Port, info.ModeCount, rtt.Round(time.Millisecond))
			successCount++

		case <-linkDone(link):
			fmt.Printf("CONNECTION CLOSED\n")
			failCount += pingCount - i + 1
			i = pingCount

		case <-ctx.Done():
			fmt.Printf("INTERRUPTED\n")
			failCount += pingCount - i + 1
			i = pingCount

		case <-time.After(time.Duration(pingTimeout) * time.Second):
			fmt.Printf("TIMEOUT (no response in %ds)\n", pingTimeout)
			failCount++
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	if err := s.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Close error: %v\n", err)
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
