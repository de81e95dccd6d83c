// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"time"

	"github.com/Thermoquad/hubpad/pkg/hub"
	"github.com/spf13/cobra"
)

var (
	// BLE connection flags
	bleIdentity string

	// Serial bridge flags
	portName string
	baudRate int

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Profile flags
	profilePath string
	hubKey      string

	// Protocol and bring-up flags
	replyTimeout time.Duration
	settleDelay  time.Duration
	valueCommand string
	valueRelease string
	wordOrder    string

	// Logging flags
	logLevel string
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:   "hubpad",
	Short: "LEGO Control+ hub controller",
	Long: `Hubpad - drive LEGO Control+ hubs from the keyboard.

Connects to a Technic hub, brings up the motors and servos listed in a
profile, and maps keys to motor commands. Also provides raw message logging,
error detection and capture replay for debugging the hub protocol.

Connection modes:
  BLE (default): --ble 90:84:2B:54:80:F3 (or the hub id from the profile)
  Serial bridge: --port /dev/ttyUSB0 [--baud 115200]
  WebSocket:     --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the HUBPAD_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return setupLogging(false) },
}

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&bleIdentity, "ble", "", "Hub address or name substring (defaults to the profile hub id)")

	flags.StringVarP(&portName, "port", "p", "", "Serial bridge device")
	flags.IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	flags.StringVarP(&wsURL, "url", "u", "", "WebSocket bridge URL (ws:// or wss://)")
	flags.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	flags.BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	flags.StringVar(&profilePath, "profile", "profile.json", "Hub profile file")
	flags.StringVar(&hubKey, "hub", "", "Profile hub name or id (defaults to the first hub)")

	flags.DurationVar(&replyTimeout, "reply-timeout", hub.DefaultReplyTimeout, "Timeout for each hub reply during bring-up")
	flags.DurationVar(&settleDelay, "settle-delay", hub.DefaultSettleDelay, "Delay after a device attaches before bring-up")
	flags.StringVar(&valueCommand, "value-command", "speed", "Command for value mappings: speed|power")
	flags.StringVar(&valueRelease, "value-release", "off", "Value sent on key release: off (mapping off_value) | zero")
	flags.StringVar(&wordOrder, "word-order", "high-first", "32-bit value word order: high-first|le")

	flags.StringVar(&logLevel, "log-level", "info", "Log level: trace|debug|info|warn|error")
	flags.StringVar(&logFile, "log-file", "", "Write logs to a file (TUI commands default to hubpad.log)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
