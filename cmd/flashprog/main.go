// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// flashprog is the CLI front end driving the SPI-NOR/SPI-NAND stack (spec
// §1, ambient-stack expansion "CLI").
//
// Grounded on cmd/smartctl/smartctl.go's flag-parsed verb dispatch to the
// library, generalized from flag to cobra subcommands in the shape
// oisee-z80-optimizer's cmd/z80opt command tree uses. The real CH341/CH347
// USB-SPI bridge backends are out of scope (spec §1): this front end talks
// to the in-memory internal/simctl reference controller, exercising the
// same controller.Controller contract a real bridge backend would
// implement.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "flashprog",
		Short: "SPI-NOR/SPI-NAND flash programmer",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}
			logrus.SetLevel(lvl)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(
		newProbeCmd(),
		newReadCmd(),
		newWriteCmd(),
		newEraseCmd(),
		newOTPCmd(),
		newWPCmd(),
		newNANDBBTCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
