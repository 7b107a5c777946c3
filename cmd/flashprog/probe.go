// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	var kind string
	flags := &nandSimFlags{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Identify the attached chip and print its probed configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch kind {
			case "nor":
				flash, _, err := flags.commonFlags.attachNOR()
				if err != nil {
					return err
				}
				fmt.Printf("part:     %s (%s)\n", flash.Part.Name, flash.Part.Vendor)
				fmt.Printf("id:       % x\n", flash.ID.Slice())
				fmt.Printf("size:     %d bytes\n", flash.Size())
				fmt.Printf("naddr:    %d\n", flash.State.NAddr)
				fmt.Printf("read_io:  opcode=%#02x\n", flash.State.ReadOpcode)
				return nil
			case "nand":
				flash, _, err := flags.attachNAND()
				if err != nil {
					return err
				}
				fmt.Printf("part:       %s (%s)\n", flash.Part.Name, flash.Part.Vendor)
				fmt.Printf("id:         % x\n", flash.ID.Slice())
				fmt.Printf("page_size:  %d\n", flash.Org.PageSize)
				fmt.Printf("oob_size:   %d\n", flash.Org.OOBSize)
				fmt.Printf("block_size: %d\n", flash.Aux.BlockSize)
				fmt.Printf("total_size: %d\n", flash.Aux.TotalSize)
				fmt.Printf("ecc:        enabled=%v quad=%v\n", flash.State.ECCEnabled, flash.State.QuadEnabled)
				return nil
			default:
				return fmt.Errorf("--type must be nor or nand, got %q", kind)
			}
		},
	}
	cmd.Flags().StringVar(&kind, "type", "nor", "chip type: nor or nand")
	flags.register(cmd)
	return cmd
}
