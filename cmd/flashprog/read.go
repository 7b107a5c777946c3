// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newReadCmd() *cobra.Command {
	var kind string
	var addr int64
	var length int64
	var page uint64
	var output string
	flags := &nandSimFlags{}

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read flash contents to a file (or stdout if --output is omitted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			switch kind {
			case "nor":
				flash, _, err := flags.commonFlags.attachNOR()
				if err != nil {
					return err
				}
				buf := make([]byte, length)
				if err := flash.Read(cmdCtx(), uint64(addr), buf); err != nil {
					return err
				}
				_, err = out.Write(buf)
				return err
			case "nand":
				flash, _, err := flags.attachNAND()
				if err != nil {
					return err
				}
				buf := make([]byte, flash.Aux.OOBPageSize)
				if _, err := flash.ReadPage(cmdCtx(), page, buf); err != nil {
					return err
				}
				_, err = out.Write(buf)
				return err
			default:
				return fmt.Errorf("--type must be nor or nand, got %q", kind)
			}
		},
	}
	cmd.Flags().StringVar(&kind, "type", "nor", "chip type: nor or nand")
	cmd.Flags().Int64Var(&addr, "addr", 0, "byte address (nor)")
	cmd.Flags().Int64Var(&length, "length", 256, "byte count (nor)")
	cmd.Flags().Uint64Var(&page, "page", 0, "page number (nand)")
	cmd.Flags().StringVar(&output, "output", "", "output file; defaults to stdout")
	flags.register(cmd)
	return cmd
}
