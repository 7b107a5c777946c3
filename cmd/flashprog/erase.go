// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEraseCmd() *cobra.Command {
	var kind string
	var addr int64
	var length int64
	var chip bool
	var page uint64
	flags := &nandSimFlags{}

	cmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase a flash region (nor) or block (nand)",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch kind {
			case "nor":
				flash, _, err := flags.commonFlags.attachNOR()
				if err != nil {
					return err
				}
				if chip {
					return flash.ChipErase(cmdCtx())
				}
				return flash.Erase(cmdCtx(), uint64(addr), uint64(length))
			case "nand":
				flash, _, err := flags.attachNAND()
				if err != nil {
					return err
				}
				return flash.EraseBlock(cmdCtx(), page)
			default:
				return fmt.Errorf("--type must be nor or nand, got %q", kind)
			}
		},
	}
	cmd.Flags().StringVar(&kind, "type", "nor", "chip type: nor or nand")
	cmd.Flags().Int64Var(&addr, "addr", 0, "byte address (nor)")
	cmd.Flags().Int64Var(&length, "length", 4096, "byte length (nor)")
	cmd.Flags().BoolVar(&chip, "chip", false, "erase the entire chip (nor)")
	cmd.Flags().Uint64Var(&page, "page", 0, "any page within the block to erase (nand)")
	flags.register(cmd)
	return cmd
}
