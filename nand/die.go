// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nand

import (
	"context"

	"github.com/hackpascal/goflashprog/controller"
)

// selectDie issues SELECT_DIE (C2h) if the target die differs from the
// state's current die (spec §4.8 "Die selection uses SELECT_DIE (C2h)").
func (f *Flash) selectDie(ctx context.Context, die int) error {
	if f.Part == nil || f.Part.NumDies <= 1 {
		return nil
	}
	if f.State.CurrDie == die {
		return nil
	}
	op := &controller.Op{
		Opcode:    opSelectDie,
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Data:      []byte{byte(die)},
		DataDir:   controller.DirOut,
		DataPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
	}
	if err := f.Bus.ExecOp(ctx, op); err != nil {
		return err
	}
	f.State.CurrDie = die
	return nil
}
