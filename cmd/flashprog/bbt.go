// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hackpascal/goflashprog/bbt"
)

func newNANDBBTCmd() *cobra.Command {
	var action string
	var block uint32
	var readOnly bool
	flags := &nandSimFlags{}

	cmd := &cobra.Command{
		Use:   "nand-bbt",
		Short: "Inspect or rescan a NAND chip's bad-block table",
		RunE: func(cmd *cobra.Command, args []string) error {
			flash, _, err := flags.attachNAND()
			if err != nil {
				return err
			}

			table, err := bbt.New(cmdCtx(), flash, flash.Org)
			if err != nil {
				return err
			}
			if readOnly {
				table.ModifyConfig(bbt.ReadOnly, bbt.ReadOnly)
			}

			switch action {
			case "rescan":
				if err := table.Reprobe(cmdCtx()); err != nil {
					return err
				}
				fmt.Println("rescan complete")
				return nil
			case "show":
				for b := uint64(0); b < flash.Aux.BlockCount; b++ {
					state, err := table.GetState(uint32(b))
					if err != nil {
						return err
					}
					if state != bbt.StateGood {
						fmt.Printf("block %d: %v (reserved=%v)\n", b, state, table.IsReserved(uint32(b)))
					}
				}
				return nil
			case "mark-bad":
				return flash.MarkBad(cmdCtx(), uint64(block)<<flash.Aux.PagesPerBlockShift)
			default:
				return fmt.Errorf("--action must be rescan, show, or mark-bad, got %q", action)
			}
		},
	}
	cmd.Flags().StringVar(&action, "action", "show", "rescan, show, or mark-bad")
	cmd.Flags().Uint32Var(&block, "block", 0, "block number (mark-bad)")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "do not persist table changes back to flash")
	flags.register(cmd)
	return cmd
}
