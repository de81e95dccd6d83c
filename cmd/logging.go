// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// defaultTUILogFile keeps log output off the screen while a TUI is running
const defaultTUILogFile = "hubpad.log"

var logOutput *os.File

// setupLogging configures the global logger from the logging flags. TUI
// commands call it again with tui set so logs go to a file.
func setupLogging(tui bool) error {
	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	path := logFile
	if path == "" && tui {
		path = defaultTUILogFile
	}

	var w io.Writer
	if path == "" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	} else {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		if logOutput != nil {
			logOutput.Close()
		}
		logOutput = f
		w = f
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return nil
}
