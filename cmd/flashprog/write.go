// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newWriteCmd() *cobra.Command {
	var kind string
	var addr int64
	var page uint64
	var input string
	flags := &nandSimFlags{}

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Program flash contents from a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return fmt.Errorf("--input is required")
			}
			data, err := os.ReadFile(input)
			if err != nil {
				return err
			}

			switch kind {
			case "nor":
				flash, _, err := flags.commonFlags.attachNOR()
				if err != nil {
					return err
				}
				return flash.Program(cmdCtx(), uint64(addr), data)
			case "nand":
				flash, _, err := flags.attachNAND()
				if err != nil {
					return err
				}
				raw := int(flash.Aux.OOBPageSize)
				if len(data) != raw {
					return fmt.Errorf("--input must be exactly %d bytes (page_size+oob_size), got %d", raw, len(data))
				}
				return flash.ProgramPage(cmdCtx(), page, data)
			default:
				return fmt.Errorf("--type must be nor or nand, got %q", kind)
			}
		},
	}
	cmd.Flags().StringVar(&kind, "type", "nor", "chip type: nor or nand")
	cmd.Flags().Int64Var(&addr, "addr", 0, "byte address (nor)")
	cmd.Flags().Uint64Var(&page, "page", 0, "page number (nand)")
	cmd.Flags().StringVar(&input, "input", "", "input file to program")
	flags.register(cmd)
	return cmd
}
