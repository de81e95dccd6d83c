// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Hubpad - LEGO Control+ hub controller
//
// A CLI tool for driving Control+ hubs from the keyboard and for monitoring
// and decoding the hub wire protocol in human-readable format.

package main

import (
	"os"

	"github.com/Thermoquad/hubpad/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
