// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/hubpad/pkg/hub"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile [file]",
	Short: "Validate a hub profile and print its mappings",
	Long: `Load a hub profile, validate it, and print every hub, port and key mapping.

The file defaults to --profile. Exits non-zero if the profile is invalid.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfile,
}

func init() {
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	path := profilePath
	if len(args) == 1 {
		path = args[0]
	}

	profile, err := hub.LoadProfile(path)
	if err != nil {
		return err
	}

	fmt.Printf("Profile: %s (%d hubs)\n", path, len(profile.Hubs))
	for _, h := range profile.Hubs {
		fmt.Printf("\nHub %q (%s)\n", h.Name, h.ID)
		if len(h.Ports) == 0 {
			fmt.Printf("  (no ports)\n")
		}
		for _, p := range h.Ports {
			fmt.Printf("  Port %d: %s\n", p.ID, p.Kind)
			for _, m := range p.Mappings {
				fmt.Printf("    %s\n", describeMapping(m))
			}
		}
	}
	return nil
}

func describeMapping(m hub.Mapping) string {
	s := fmt.Sprintf("%q %-10s %-12s on=%d", m.Button, m.Trigger, m.Action.Kind, m.Action.OnValue)
	if m.Trigger == hub.TriggerContinuous {
		s += fmt.Sprintf(" off=%d", m.Action.OffValue)
	}
	return s
}
