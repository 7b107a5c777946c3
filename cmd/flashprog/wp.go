// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hackpascal/goflashprog/nor"
)

func newWPCmd() *cobra.Command {
	var action string
	var base int64
	var size int64
	flags := &commonFlags{}

	cmd := &cobra.Command{
		Use:   "wp",
		Short: "Get or set the write-protect region (nor)",
		RunE: func(cmd *cobra.Command, args []string) error {
			flash, _, err := flags.attachNOR()
			if err != nil {
				return err
			}

			switch action {
			case "get":
				region, err := flash.GetWPRegion(cmdCtx())
				if err != nil {
					return err
				}
				fmt.Printf("base=%#x size=%#x field_value=%d\n", region.Base, region.Size, region.FieldValue)
				return nil
			case "set":
				return flash.SetWPRegion(cmdCtx(), nor.WPRange{Base: uint64(base), Size: uint64(size)})
			default:
				return fmt.Errorf("--action must be get or set, got %q", action)
			}
		},
	}
	cmd.Flags().StringVar(&action, "action", "get", "get or set")
	cmd.Flags().Int64Var(&base, "base", 0, "write-protect range base address (set)")
	cmd.Flags().Int64Var(&size, "size", 0, "write-protect range size (set)")
	flags.register(cmd)
	return cmd
}
