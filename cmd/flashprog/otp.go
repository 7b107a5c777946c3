// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newOTPCmd() *cobra.Command {
	var action string
	var index int
	var offset int
	var length int
	var input string
	var output string
	flags := &commonFlags{}

	cmd := &cobra.Command{
		Use:   "otp",
		Short: "Read, write, erase, or lock a one-time-programmable region (nor)",
		RunE: func(cmd *cobra.Command, args []string) error {
			flash, _, err := flags.attachNOR()
			if err != nil {
				return err
			}

			switch action {
			case "read":
				buf := make([]byte, length)
				if err := flash.OTPRead(cmdCtx(), uint32(index), uint32(offset), buf); err != nil {
					return err
				}
				out := os.Stdout
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					out = f
				}
				_, err := out.Write(buf)
				return err
			case "write":
				if input == "" {
					return fmt.Errorf("--input is required for write")
				}
				data, err := os.ReadFile(input)
				if err != nil {
					return err
				}
				return flash.OTPWrite(cmdCtx(), uint32(index), uint32(offset), data)
			case "erase":
				return flash.OTPErase(cmdCtx(), uint32(index))
			case "lock":
				return flash.OTPLock(cmdCtx(), uint32(index))
			case "locked":
				locked, err := flash.OTPLocked(cmdCtx(), uint32(index))
				if err != nil {
					return err
				}
				fmt.Println(locked)
				return nil
			default:
				return fmt.Errorf("--action must be one of read, write, erase, lock, locked, got %q", action)
			}
		},
	}
	cmd.Flags().StringVar(&action, "action", "read", "read, write, erase, lock, or locked")
	cmd.Flags().IntVar(&index, "index", 0, "OTP region index")
	cmd.Flags().IntVar(&offset, "offset", 0, "byte offset within the region")
	cmd.Flags().IntVar(&length, "length", 32, "bytes to read")
	cmd.Flags().StringVar(&input, "input", "", "input file to program (write)")
	cmd.Flags().StringVar(&output, "output", "", "output file (read); defaults to stdout")
	flags.register(cmd)
	return cmd
}
