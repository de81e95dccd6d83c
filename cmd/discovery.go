// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/hubpad/pkg/transport"
	"github.com/spf13/cobra"
)

var (
	discoveryTimeout int
	discoverySerial  bool
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Scan for Control+ hubs over BLE",
	Long: `Scan for hubs advertising the LEGO hub service and list their addresses.

Use an address (or a unique part of it) as the hub id in a profile, or pass it
with --ble. Hubs only advertise while their light is flashing, so press the
hub button before scanning.

With --serial, list the serial ports that can be used with --port instead.

Exit codes:
  0 - At least one hub found
  1 - No hubs found
  2 - Adapter error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 5, "Scan duration in seconds")
	discoveryCmd.Flags().BoolVar(&discoverySerial, "serial", false, "List serial ports instead of scanning")
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	if discoverySerial {
		ports, err := transport.SerialPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Printf("No serial ports found\n")
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	}

	fmt.Printf("Hubpad - Hub Discovery\n")
	fmt.Printf("Scanning for %d seconds...\n\n", discoveryTimeout)

	ctx, stop := signalContext()
	defer stop()

	ble := transport.NewBLE()
	hubs, err := ble.Discover(ctx, time.Duration(discoveryTimeout)*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan error: %v\n", err)
		os.Exit(2)
	}

	for _, h := range hubs {
		fmt.Printf("Hub found:\n")
		fmt.Printf("  Address: %s\n", h.Address)
		fmt.Printf("  Name: %s\n", h.Name)
		fmt.Printf("  RSSI: %d dBm\n", h.RSSI)
	}

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Hubs found: %d\n", len(hubs))
	if len(hubs) == 0 {
		fmt.Printf("No hubs discovered. Press the hub button and scan again.\n")
		os.Exit(1)
	}
	return nil
}
