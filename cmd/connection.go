// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/Thermoquad/hubpad/pkg/controlplus"
	"github.com/Thermoquad/hubpad/pkg/hub"
	"github.com/Thermoquad/hubpad/pkg/session"
	"github.com/Thermoquad/hubpad/pkg/transport"
	"golang.org/x/term"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("HUBPAD_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// NewLink creates the link selected by the connection flags. The link is
// opened by Session.Connect.
func NewLink() (session.Link, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}
		link := transport.NewWebSocket(transport.WebSocketConfig{
			URL:           wsURL,
			Username:      wsUsername,
			Password:      password,
			SkipSSLVerify: wsNoSSLVerify,
		})
		return link, link.String(), nil
	}

	if portName != "" {
		link := transport.NewSerial(portName, baudRate)
		return link, link.String(), nil
	}

	return transport.NewBLE(), "BLE", nil
}

// parseWordOrder parses the --word-order flag
func parseWordOrder(s string) (controlplus.WordOrder, error) {
	switch strings.ToLower(s) {
	case "high-first", "":
		return controlplus.WordOrderHighFirst, nil
	case "le", "little-endian":
		return controlplus.WordOrderLittleEndian, nil
	default:
		return 0, fmt.Errorf("invalid --word-order %q (use high-first or le)", s)
	}
}

func codecFromFlags() (controlplus.Codec, error) {
	order, err := parseWordOrder(wordOrder)
	if err != nil {
		return controlplus.Codec{}, err
	}
	return controlplus.Codec{WordOrder: order}, nil
}

func hubOptionsFromFlags() (hub.Options, error) {
	opts := hub.DefaultOptions()
	opts.ReplyTimeout = replyTimeout
	opts.SettleDelay = settleDelay

	var err error
	if opts.ValueCommand, err = hub.ParseValueCommand(valueCommand); err != nil {
		return opts, fmt.Errorf("invalid --value-command: %w", err)
	}
	if opts.ValueRelease, err = hub.ParseValueRelease(valueRelease); err != nil {
		return opts, fmt.Errorf("invalid --value-release: %w", err)
	}
	return opts, nil
}

// loadHubConfig loads the profile and selects the hub named by --hub
func loadHubConfig() (hub.HubConfig, error) {
	profile, err := hub.LoadProfile(profilePath)
	if err != nil {
		return hub.HubConfig{}, err
	}
	if hubKey == "" {
		if len(profile.Hubs) == 0 {
			return hub.HubConfig{}, fmt.Errorf("profile %s lists no hubs", profilePath)
		}
		return profile.Hubs[0], nil
	}
	cfg, ok := profile.Find(hubKey)
	if !ok {
		return hub.HubConfig{}, fmt.Errorf("hub %q not found in %s", hubKey, profilePath)
	}
	return *cfg, nil
}

// resolveIdentity returns the hub identity for commands that need no
// profile: --ble, or the profile hub id when a profile is readable
func resolveIdentity() string {
	if bleIdentity != "" {
		return bleIdentity
	}
	if cfg, err := loadHubConfig(); err == nil {
		return cfg.ID
	}
	return ""
}

// newHub builds a hub controller from the flags and profile
func newHub(sessionOpts ...session.Option) (*hub.Hub, string, error) {
	cfg, err := loadHubConfig()
	if err != nil {
		return nil, "", err
	}
	if bleIdentity != "" {
		cfg.ID = bleIdentity
	}
	opts, err := hubOptionsFromFlags()
	if err != nil {
		return nil, "", err
	}
	codec, err := codecFromFlags()
	if err != nil {
		return nil, "", err
	}
	link, connInfo, err := NewLink()
	if err != nil {
		return nil, "", err
	}

	sessionOpts = append([]session.Option{session.WithCodec(codec)}, sessionOpts...)
	return hub.New(cfg, link, opts, sessionOpts...), connInfo, nil
}
